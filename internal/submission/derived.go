package submission

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/jonathan/leadform/internal/form"
	"github.com/jonathan/leadform/internal/geo"
	"github.com/jonathan/leadform/internal/identity"
	"github.com/jonathan/leadform/internal/location"
)

// Hidden fields filled on every submission.
const (
	DurableIDField   = "domo_id"
	AnalyticsIDField = "g_id"
	FormNameField    = "elqFormName"

	ContentURLField     = "contentURL1"
	PathField           = "pathName1"
	UTMQueryField       = "utmquerystring1"
	FormSubmitField     = "formSubmit1"
	LanguageField       = "language"
	CompanyField        = "company"
	EmailField          = "email"
	ConsentDateField    = "sFDCCanadaEmailOptInOutDate1"
	ConsentOptInField   = geo.LegacyConsentField
	SnapshotFormName    = "website_cta_videodemorequest"
	submitTimeLayout    = "01/02/2006 15:04:05"
	consentDateLayout   = "2006-01-02"
	utmQueryMarker      = "campid"
	snapshotDepartment  = "department"
)

// QueryFields receive the raw query string verbatim.
var QueryFields = []string{"rFCDMJunkReason1", "originalUtmquerystring1"}

// Derive fills the submission-only fields from the page location and the
// form's current values. Fields the form lacks are skipped.
func Derive(f *form.Form, loc *location.Context) {
	origin := loc.Origin()
	if f.Has(ContentURLField) {
		f.SetValue(ContentURLField, absolute(origin, f.Value(ContentURLField)))
	}
	f.SetValue(PathField, loc.Path())

	query := loc.RawQuery()
	for _, name := range QueryFields {
		f.SetValue(name, query)
	}
	f.SetValue(UTMQueryField, UTMQuery(query))

	now := loc.Time()
	f.SetValue(FormSubmitField, now.Format(submitTimeLayout))
	f.SetValue(LanguageField, loc.Language())
	if f.Has(CompanyField) {
		f.SetValue(CompanyField, Company(f.Value(EmailField)))
	}
	f.SetValue(ConsentDateField, now.UTC().Format(consentDateLayout))
	if f.Has(ConsentOptInField) {
		f.SetValue(ConsentOptInField, strconv.Itoa(geo.Consent(f)))
	}
}

// absolute prefixes a relative redirect target with the origin. A value that
// is already absolute is kept, so a retried submission does not prefix twice.
func absolute(origin, value string) string {
	if u, err := url.Parse(value); err == nil && u.IsAbs() {
		return value
	}
	return origin + value
}

// UTMQuery returns the query string from the first "campid" onward, or "".
func UTMQuery(query string) string {
	if i := strings.Index(query, utmQueryMarker); i >= 0 {
		return query[i:]
	}
	return ""
}

// Company returns the part of an email address after its last "@".
func Company(email string) string {
	if i := strings.LastIndexByte(email, '@'); i >= 0 {
		return email[i+1:]
	}
	return email
}

// Snapshot is the visitor record kept locally after a demo request.
func Snapshot(f *form.Form, cookies identity.CookieStore) url.Values {
	return url.Values{
		"domoid":    {cookies.Get(identity.DurableCookie)},
		"firstname": {f.Value("first_name")},
		"lastname":  {f.Value("last_name")},
		"email":     {f.Value(EmailField)},
		"phone":     {f.Value("phone")},
		"selected":  {f.Value(snapshotDepartment)},
	}
}
