package submission

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/leadform/internal/dynamic"
	"github.com/jonathan/leadform/internal/fetch"
	"github.com/jonathan/leadform/internal/fingerprint"
	"github.com/jonathan/leadform/internal/form"
	"github.com/jonathan/leadform/internal/geo"
	"github.com/jonathan/leadform/internal/identity"
	"github.com/jonathan/leadform/internal/location"
	"github.com/jonathan/leadform/internal/validation"
)

const contactPage = `<html><body>
<form eloquaform="true" action="/capture">
	<input type="hidden" name="elqFormName" value="{{FORM}}">
	<div class="form-input-wrap"><div class="form-input-inner-wrap"><input name="first_name" value="Ada"></div></div>
	<div class="form-input-wrap"><div class="form-input-inner-wrap"><input name="last_name" value="Lovelace"></div></div>
	<div class="form-input-wrap"><div class="form-input-inner-wrap"><input name="email" value="ada@acme.com"></div></div>
	<div class="form-input-wrap"><div class="form-input-inner-wrap"><input name="phone" value="5551234567"></div></div>
	<div class="form-input-wrap"><div class="form-input-inner-wrap">
		<select name="subject" required errorlabel="subject">
			<option value="">Subject</option>
			<option value="Sales" selected>Sales</option>
			<option value="Support">Support</option>
		</select>
	</div></div>
	<input type="hidden" name="domo_id">
	<input type="hidden" name="g_id">
	<input type="hidden" name="uniqueFFID">
	<input type="hidden" name="utmSource1">
	<input type="hidden" name="utmCampid1">
	<input type="hidden" name="geoip_country_code">
	<input type="hidden" name="contentURL1" value="/thank-you">
	<input type="hidden" name="pathName1">
	<input type="hidden" name="utmquerystring1">
	<input type="hidden" name="company">
	<input type="hidden" name="sFDCCanadaEmailOptIn1" value="1">
	<input type="submit" value="Send">
</form>
</body></html>`

type captured struct {
	mu     sync.Mutex
	bodies []url.Values
}

func (c *captured) last() url.Values {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.bodies) == 0 {
		return nil
	}
	return c.bodies[len(c.bodies)-1]
}

func (c *captured) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.bodies)
}

func captureServer(t *testing.T, status int) (*httptest.Server, *captured) {
	t.Helper()
	c := &captured{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/capture", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.NoError(t, r.ParseForm())
		c.mu.Lock()
		c.bodies = append(c.bodies, r.PostForm)
		c.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server, c
}

type fixture struct {
	page      *Page
	form      *form.Form
	jar       *identity.Jar
	navigator *location.Recorder
	events    *[]State
}

func newFixture(t *testing.T, formName, pageURL string) fixture {
	t.Helper()
	f := parseOne(t, strings.Replace(contactPage, "{{FORM}}", formName, 1))

	jar := identity.NewJar()
	jar.Set(identity.DurableCookie, "1234567890", identity.DurableTTL)
	jar.Set(identity.AnalyticsCookie, "GA1.2.111.222", 0)

	loc := fixedLocation(t, pageURL)
	navigator := &location.Recorder{}
	var mu sync.Mutex
	events := []State{}

	page, err := NewPage(f, Options{
		Location:  loc,
		Cookies:   jar,
		Resolver:  &fingerprint.Resolver{Token: func() string { return "token" }},
		Navigator: navigator,
		HTTP:      &fetch.Options{Timeout: 5 * time.Second},
		OnProgress: func(e ProgressEvent) {
			mu.Lock()
			events = append(events, e.State)
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	return fixture{page: page, form: f, jar: jar, navigator: navigator, events: &events}
}

func TestNewPage_RequiresCollaborators(t *testing.T) {
	f := parseOne(t, `<form eloquaform="true"></form>`)
	_, err := NewPage(f, Options{Cookies: identity.NewJar()})
	assert.Error(t, err)

	loc := fixedLocation(t, "https://www.example.com/")
	_, err = NewPage(f, Options{Location: loc})
	assert.Error(t, err)

	_, err = NewPage(nil, Options{Location: loc, Cookies: identity.NewJar()})
	assert.Error(t, err)
}

func TestLoad_PopulatesIdentityAndAttribution(t *testing.T) {
	fx := newFixture(t, "website_cta_contactus", "https://www.example.com/contact?utm_source=news&campid=77")

	visitor, err := fx.page.Load(context.Background())
	require.NoError(t, err)

	expectedFFID := fingerprint.Digest("token|1234567890")
	assert.Equal(t, identity.Visitor{
		DomoID:            "1234567890",
		AnalyticsClientID: "GA1.2.111.222",
		FingerprintID:     expectedFFID,
	}, visitor)
	assert.Equal(t, "1234567890", fx.form.Value(DurableIDField))
	assert.Equal(t, "GA1.2.111.222", fx.form.Value(AnalyticsIDField))
	assert.Equal(t, expectedFFID, fx.form.Value(fingerprint.Field))
	assert.Equal(t, "news", fx.form.Value("utmSource1"))
	assert.Equal(t, "77", fx.form.Value("utmCampid1"))
	assert.Nil(t, fx.page.GeoDone())

	// Subject is preselected as Sales, so load brings in the dependent group.
	assert.Equal(t, dynamic.Present, fx.page.Dynamic().State())
	assert.True(t, fx.form.Has("title"))
	assert.True(t, fx.form.Has("department"))
}

func TestLoad_FallbackCookieAndOverride(t *testing.T) {
	fx := newFixture(t, "website_cta_contactus", "https://www.example.com/contact?unique_ffid=abc")
	fx.jar.Set("_pubweb_utm", "utm_source=cookie", 0)

	visitor, err := fx.page.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", visitor.FingerprintID)
	assert.Equal(t, "abc", fx.form.Value(fingerprint.Field))
	assert.Equal(t, "cookie", fx.form.Value("utmSource1"))
}

func TestLoad_GeneratesDurableID(t *testing.T) {
	f := parseOne(t, strings.Replace(contactPage, "{{FORM}}", "other", 1))
	jar := identity.NewJar()
	page, err := NewPage(f, Options{
		Location: fixedLocation(t, "https://www.example.com/"),
		Cookies:  jar,
		Identity: []identity.Option{
			identity.WithClock(func() time.Time { return time.Unix(1_700_000_000, 0) }),
			identity.WithRand(func(int64) int64 { return 12345678 }),
		},
	})
	require.NoError(t, err)

	visitor, err := page.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2098765260", visitor.DomoID)
	assert.Equal(t, "2098765260", jar.Get(identity.DurableCookie))
	assert.Equal(t, "", visitor.AnalyticsClientID)
}

func TestLoad_GeoRunsInBackground(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /echo", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ip":"198.51.100.1"}`))
	})
	mux.HandleFunc("GET /getIp", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"iso_code":"CA"}`))
	})
	geoServer := httptest.NewServer(mux)
	defer geoServer.Close()

	f := parseOne(t, strings.Replace(contactPage, "{{FORM}}", "other", 1))
	page, err := NewPage(f, Options{
		Location: fixedLocation(t, "https://www.example.com/"),
		Cookies:  identity.NewJar(),
		Geo:      &geo.Client{IPEchoURL: geoServer.URL + "/echo", LookupURL: geoServer.URL + "/getIp"},
	})
	require.NoError(t, err)

	_, err = page.Load(context.Background())
	require.NoError(t, err)

	done := page.GeoDone()
	require.NotNil(t, done)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("geo lookup did not finish")
	}
	assert.Equal(t, "CA", f.Value(geo.CountryField))
}

func TestSubmit_SalesRequiresInjectedSelects(t *testing.T) {
	server, body := captureServer(t, http.StatusOK)
	fx := newFixture(t, "website_cta_contactus", server.URL+"/contact?utm_source=news&campid=77&x=1")

	_, err := fx.page.Load(context.Background())
	require.NoError(t, err)

	_, err = fx.page.Submit(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))

	var invalid *InvalidError
	require.ErrorAs(t, err, &invalid)
	var fields []string
	for _, o := range invalid.Failures {
		fields = append(fields, o.Field)
		assert.Equal(t, validation.ReasonRequired, o.Reason)
	}
	assert.Equal(t, []string{"title", "department"}, fields)
	assert.Equal(t, Idle, fx.page.State())
	assert.Equal(t, 0, body.count())

	text, ok := fx.form.Annotation("title")
	require.True(t, ok)
	assert.Equal(t, "job title is required.", text)

	require.True(t, fx.page.Change("title", "Director"))
	require.True(t, fx.page.Change("department", "IT"))
	_, ok = fx.form.Annotation("title")
	assert.False(t, ok)

	res, err := fx.page.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, server.URL+"/capture", res.Action)
	assert.Equal(t, server.URL+"/thank-you", res.Target)
	assert.Equal(t, server.URL+"/thank-you", fx.navigator.Last())
	assert.Equal(t, Redirecting, fx.page.State())

	sent := body.last()
	require.NotNil(t, sent)
	assert.Equal(t, "Sales", sent.Get("subject"))
	assert.Equal(t, "Director", sent.Get("title"))
	assert.Equal(t, "IT", sent.Get("department"))
	assert.Equal(t, fingerprint.Digest("token|1234567890"), sent.Get("uniqueFFID"))
	assert.Equal(t, "1234567890", sent.Get("domo_id"))
	assert.Equal(t, "/contact", sent.Get("pathName1"))
	assert.Equal(t, "campid=77&x=1", sent.Get("utmquerystring1"))
	assert.Equal(t, "acme.com", sent.Get("company"))
	assert.Equal(t, "1", sent.Get("sFDCCanadaEmailOptIn1"))
	assert.Equal(t, "news", sent.Get("utmSource1"))
}

func TestSubmit_ProgressOrder(t *testing.T) {
	server, _ := captureServer(t, http.StatusNoContent)
	fx := newFixture(t, "website_cta_videodemorequest", server.URL+"/demo")

	_, err := fx.page.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []State{Validating, Enriching, Serializing, Submitting, Redirecting}, *fx.events)
}

func TestSubmit_VideoDemoWritesSnapshot(t *testing.T) {
	server, body := captureServer(t, http.StatusOK)
	fx := newFixture(t, "website_cta_videodemorequest", server.URL+"/demo")

	_, err := fx.page.Submit(context.Background())
	require.NoError(t, err)

	raw := fx.jar.Get(identity.SnapshotCookie)
	require.NotEmpty(t, raw)
	snapshot, err := url.ParseQuery(raw)
	require.NoError(t, err)
	assert.Equal(t, "1234567890", snapshot.Get("domoid"))
	assert.Equal(t, "Ada", snapshot.Get("firstname"))
	assert.Equal(t, "ada@acme.com", snapshot.Get("email"))

	expires, ok := fx.jar.Expiry(identity.SnapshotCookie)
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(identity.SnapshotTTL), expires, time.Minute)

	// The snapshot is local only.
	assert.Empty(t, body.last().Get("domoid"))
}

func TestSubmit_ContactFormWritesNoSnapshot(t *testing.T) {
	server, _ := captureServer(t, http.StatusOK)
	fx := newFixture(t, "website_cta_contactus", server.URL+"/contact")
	fx.form.SetValue("subject", "Support")

	_, err := fx.page.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "", fx.jar.Get(identity.SnapshotCookie))
	assert.False(t, fx.form.Has("title"))
}

func TestSubmit_PostFailureStaysOnPage(t *testing.T) {
	server, body := captureServer(t, http.StatusInternalServerError)
	fx := newFixture(t, "website_cta_videodemorequest", server.URL+"/demo")

	_, err := fx.page.Submit(context.Background())
	require.Error(t, err)

	var fetchErr *fetch.Error
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusInternalServerError, fetchErr.StatusCode)
	assert.Equal(t, 1, body.count())
	assert.Equal(t, 0, fx.navigator.Count())
	assert.Equal(t, Idle, fx.page.State())
	assert.Contains(t, *fx.events, Failed)
}

func TestSubmit_RetryDoesNotDoublePrefixRedirect(t *testing.T) {
	server, _ := captureServer(t, http.StatusOK)
	fx := newFixture(t, "website_cta_videodemorequest", server.URL+"/demo")

	_, err := fx.page.Submit(context.Background())
	require.NoError(t, err)
	res, err := fx.page.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/thank-you", res.Target)
	assert.Equal(t, 2, fx.navigator.Count())
}

func TestSubmit_RedirectFallsBackToOrigin(t *testing.T) {
	server, _ := captureServer(t, http.StatusOK)
	f := parseOne(t, `<form eloquaform="true" action="/capture">
		<div><input name="first_name" value="Ada"></div>
	</form>`)
	navigator := &location.Recorder{}
	page, err := NewPage(f, Options{
		Location:  fixedLocation(t, server.URL+"/x"),
		Cookies:   identity.NewJar(),
		Navigator: navigator,
	})
	require.NoError(t, err)

	res, err := page.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, server.URL, res.Target)
	assert.Equal(t, server.URL, navigator.Last())
}

func TestBlur(t *testing.T) {
	fx := newFixture(t, "website_cta_contactus", "https://www.example.com/contact")
	fx.form.SetValue("email", "ada@gmail.com")

	assert.False(t, fx.page.Blur("email"))
	assert.False(t, fx.page.Blur("email"))
	assert.Equal(t, 1, fx.form.Annotations())
	assert.True(t, fx.page.Blur("g_id"))
}

func TestChange(t *testing.T) {
	fx := newFixture(t, "website_cta_contactus", "https://www.example.com/contact")
	fx.page.Dynamic().Sync()
	require.True(t, fx.form.Has("title"))

	assert.True(t, fx.page.Change("subject", "Support"))
	assert.False(t, fx.form.Has("title"))
	assert.False(t, fx.form.HasMarked(dynamic.DepartmentMarker))

	assert.True(t, fx.page.Change("subject", ""))
	text, ok := fx.form.Annotation("subject")
	require.True(t, ok)
	assert.Equal(t, "subject is required.", text)

	assert.False(t, fx.page.Change("missing", "x"))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "redirecting", Redirecting.String())
	assert.Equal(t, "unknown", State(42).String())
}
