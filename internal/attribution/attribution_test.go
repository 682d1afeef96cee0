package attribution

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/leadform/internal/form"
)

const page = `<form eloquaform="true">
	<input type="hidden" name="utmSource1">
	<input type="hidden" name="utmMedium1" value="stale">
	<input type="hidden" name="utmCampid1">
	<input type="hidden" name="gCLID1">
	<input type="hidden" name="utmOrgid1">
</form>`

func newForm(t *testing.T) *form.Form {
	t.Helper()
	doc, err := form.ParseString(page)
	require.NoError(t, err)
	return doc.Forms()[0]
}

func TestResolve_URLBeatsCookie(t *testing.T) {
	params := url.Values{"utm_source": {"newsletter"}}
	values, _ := Resolve(params, "utm_source=cookie&utm_medium=email")

	assert.Equal(t, "newsletter", values["utmSource1"])
	assert.Equal(t, "email", values["utmMedium1"])
	assert.Equal(t, "", values["utmCampaign1"])
}

func TestResolve_AliasesShareDestination(t *testing.T) {
	values, _ := Resolve(url.Values{"campid": {"c1"}}, "")
	assert.Equal(t, "c1", values["utmCampid1"])

	values, _ = Resolve(url.Values{"utm_campid": {"c2"}}, "")
	assert.Equal(t, "c2", values["utmCampid1"])

	values, _ = Resolve(url.Values{"campid": {"c1"}, "utm_campid": {"c2"}}, "")
	assert.Equal(t, "c2", values["utmCampid1"], "later alias wins")

	values, _ = Resolve(url.Values{"orgid": {"o1"}, "utm_orgid": {"o2"}}, "")
	assert.Equal(t, "o1", values["utmOrgid1"], "orgid is listed after utm_orgid")
}

func TestResolve_MalformedCookie(t *testing.T) {
	values, _ := Resolve(url.Values{}, "gclid=abc&bad=%zz")
	assert.Equal(t, "abc", values["gCLID1"])
}

func TestResolve_OrderIsStable(t *testing.T) {
	_, order := Resolve(url.Values{}, "")
	require.NotEmpty(t, order)
	assert.Equal(t, "utmSource1", order[0])
	assert.Equal(t, "utmOrgid1", order[len(order)-1])
}

func TestApply_WritesExistingFields(t *testing.T) {
	f := newForm(t)
	var events []string
	f.OnInput(func(name, _ string) { events = append(events, name) })

	written := Apply(f, url.Values{"utm_source": {"ads"}, "gclid": {"G-1"}, "gkeyword": {"crm"}}, "")

	assert.Equal(t, "ads", f.Value("utmSource1"))
	assert.Equal(t, "", f.Value("utmMedium1"), "absent parameters clear stale values")
	assert.Equal(t, "G-1", f.Value("gCLID1"))
	assert.NotContains(t, written, "utmGkeyword1", "missing destination is skipped")
	assert.Equal(t, written, events)
}

func TestApply_Idempotent(t *testing.T) {
	f := newForm(t)
	params := url.Values{"utm_source": {"ads"}}
	Apply(f, params, "")
	first := f.Serialize()
	Apply(f, params, "")
	assert.Equal(t, first, f.Serialize())
}
