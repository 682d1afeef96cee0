package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jonathan/leadform/internal/form"
)

const consentPage = `<form eloquaform="true">
	<input type="hidden" name="geoip_country_code">
	<div class="consent-wrapper" style="display:none"><input type="checkbox" name="consent" checked></div>
</form>`

func newForm(t *testing.T, html string) *form.Form {
	t.Helper()
	doc, err := form.ParseString(html)
	require.NoError(t, err)
	return doc.Forms()[0]
}

func geoServer(t *testing.T, code string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /echo", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ip":"203.0.113.7"}`))
	})
	mux.HandleFunc("GET /getIp", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "203.0.113.7", r.URL.Query().Get("ip"))
		_, _ = w.Write([]byte(`{"iso_code":"` + code + `","country":"x"}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func clientFor(server *httptest.Server) *Client {
	return &Client{IPEchoURL: server.URL + "/echo", LookupURL: server.URL + "/getIp"}
}

func TestLookup(t *testing.T) {
	server := geoServer(t, "DE")
	code, err := clientFor(server).Lookup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "DE", code)
}

func TestLookup_EchoFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := (&Client{IPEchoURL: server.URL, LookupURL: server.URL}).Lookup(context.Background())
	assert.Error(t, err)
}

func TestApply_Canada(t *testing.T) {
	f := newForm(t, consentPage)
	Apply(f, "CA")

	assert.Equal(t, "CA", f.Value(CountryField))
	checked, found := f.Checked(ConsentCheckbox)
	assert.True(t, found)
	assert.False(t, checked)
	assert.Equal(t, 0, Consent(f))
}

func TestApply_OtherCountry(t *testing.T) {
	f := newForm(t, consentPage)
	Apply(f, "US")

	assert.Equal(t, "US", f.Value(CountryField))
	checked, _ := f.Checked(ConsentCheckbox)
	assert.True(t, checked)
	assert.Equal(t, 1, Consent(f))
}

func TestStart_AppliesInBackground(t *testing.T) {
	server := geoServer(t, "CA")
	f := newForm(t, consentPage)

	select {
	case <-Start(context.Background(), f, clientFor(server), nil):
	case <-time.After(5 * time.Second):
		t.Fatal("geo task did not finish")
	}
	assert.Equal(t, "CA", f.Value(CountryField))
}

func TestStart_FailureIsLoggedOnly(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`garbage`))
	}))
	defer server.Close()

	core, logs := observer.New(zap.WarnLevel)
	f := newForm(t, consentPage)
	<-Start(context.Background(), f, &Client{IPEchoURL: server.URL, LookupURL: server.URL}, zap.New(core))

	assert.Equal(t, "", f.Value(CountryField))
	assert.Equal(t, 1, logs.FilterMessage("geo lookup failed").Len())
}

func TestConsent(t *testing.T) {
	tests := []struct {
		name string
		html string
		want int
	}{
		{"checkbox checked", `<form eloquaform="true"><input type="checkbox" name="consent" checked></form>`, 1},
		{"checkbox unchecked", `<form eloquaform="true"><input type="checkbox" name="consent"></form>`, 0},
		{"legacy yes", `<form eloquaform="true"><input type="hidden" name="sFDCCanadaEmailOptIn1" value="Yes"></form>`, 1},
		{"legacy true", `<form eloquaform="true"><input type="hidden" name="sFDCCanadaEmailOptIn1" value="true"></form>`, 1},
		{"legacy no", `<form eloquaform="true"><input type="hidden" name="sFDCCanadaEmailOptIn1" value="No"></form>`, 0},
		{"legacy empty", `<form eloquaform="true"><input type="hidden" name="sFDCCanadaEmailOptIn1"></form>`, 0},
		{"no control", `<form eloquaform="true"><input name="email"></form>`, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Consent(newForm(t, tt.html)))
		})
	}
}
