// Package attribution maps campaign and ad-click parameters from the page URL
// (falling back to the attribution cookie) onto hidden form fields.
package attribution

import (
	"net/url"

	"github.com/jonathan/leadform/internal/form"
)

// FallbackCookie holds url-encoded attribution pairs set by other pages.
const FallbackCookie = "_pubweb_utm"

// Alias maps a source parameter to a destination field.
type Alias struct {
	Param string
	Field string
}

// Aliases is the fixed alias table. Several parameters may share a
// destination; later entries win when both carry a value.
var Aliases = []Alias{
	{"utm_source", "utmSource1"},
	{"utm_medium", "utmMedium1"},
	{"utm_campaign", "utmCampaign1"},
	{"campid", "utmCampid1"},
	{"utm_campid", "utmCampid1"},
	{"gclid", "gCLID1"},
	{"gadposition", "utmGadposition1"},
	{"utm_gadposition", "utmGadposition1"},
	{"gcreative", "utmGcreative1"},
	{"utm_gcreative", "utmGcreative1"},
	{"gdevice", "utmGdevice1"},
	{"utm_gdevice", "utmGdevice1"},
	{"gnetwork", "utmGnetwork1"},
	{"utm_gnetwork", "utmGnetwork1"},
	{"gkeyword", "utmGkeyword1"},
	{"utm_gkeyword", "utmGkeyword1"},
	{"gplacement", "utmGplacement1"},
	{"utm_gplacement", "utmGplacement1"},
	{"gmatchtype", "utmGmatchtype1"},
	{"utm_gmatchtype", "utmGmatchtype1"},
	{"gtarget", "utmGtarget1"},
	{"utm_gtarget", "utmGtarget1"},
	{"utm_orgid", "utmOrgid1"},
	{"orgid", "utmOrgid1"},
}

// Resolve computes destination field values without touching a form. The
// URL wins over the fallback cookie; an alias that resolves empty never
// erases a value an earlier alias found for the same destination.
func Resolve(params url.Values, fallback string) (map[string]string, []string) {
	// Malformed pairs are dropped; the well-formed remainder is still used.
	cookie, _ := url.ParseQuery(fallback)

	values := make(map[string]string)
	var order []string
	for _, a := range Aliases {
		v := params.Get(a.Param)
		if v == "" {
			v = cookie.Get(a.Param)
		}
		prev, seen := values[a.Field]
		if !seen {
			order = append(order, a.Field)
		}
		if v != "" || !seen || prev == "" {
			values[a.Field] = v
		}
	}
	return values, order
}

// Apply writes resolved values into the form. Destination fields that do not
// exist are skipped. It returns the names of the fields written.
func Apply(f *form.Form, params url.Values, fallback string) []string {
	values, order := Resolve(params, fallback)
	var written []string
	for _, field := range order {
		if f.SetAll(field, values[field]) > 0 {
			written = append(written, field)
		}
	}
	return written
}
