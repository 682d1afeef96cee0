// Package geo resolves the visitor's country with a two-hop lookup (public IP
// echo, then geolocation) and applies the regional consent rules to the form.
package geo

import (
	"context"
	"net/url"

	"go.uber.org/zap"

	"github.com/jonathan/leadform/internal/fetch"
	"github.com/jonathan/leadform/internal/form"
)

// Default service endpoints.
const (
	DefaultIPEchoURL = "https://api.ipify.org?format=json"
	DefaultLookupURL = "https://max-mind-get-production.up.railway.app/getIp"
)

// Field names and the consent jurisdiction.
const (
	CountryField        = "geoip_country_code"
	ConsentCheckbox     = "consent"
	LegacyConsentField  = "sFDCCanadaEmailOptIn1"
	ExplicitOptInRegion = "CA"
)

// Client performs the IP echo and geo lookups.
type Client struct {
	IPEchoURL string
	LookupURL string
	Options   *fetch.Options
}

// NewClient returns a client for the default services.
func NewClient() *Client {
	return &Client{IPEchoURL: DefaultIPEchoURL, LookupURL: DefaultLookupURL}
}

type echoResponse struct {
	IP string `json:"ip"`
}

type lookupResponse struct {
	ISOCode string `json:"iso_code"`
}

// Lookup returns the caller's ISO country code. Any network or decode
// failure is returned as is; there is no retry.
func (c *Client) Lookup(ctx context.Context) (string, error) {
	var echo echoResponse
	if err := fetch.GetJSON(ctx, c.IPEchoURL, &echo, c.Options); err != nil {
		return "", err
	}

	lookupURL, err := url.Parse(c.LookupURL)
	if err != nil {
		return "", &fetch.Error{URL: c.LookupURL, Message: "invalid URL", Cause: err}
	}
	q := lookupURL.Query()
	q.Set("ip", echo.IP)
	lookupURL.RawQuery = q.Encode()

	var geo lookupResponse
	if err := fetch.GetJSON(ctx, lookupURL.String(), &geo, c.Options); err != nil {
		return "", err
	}
	return geo.ISOCode, nil
}

// Apply writes the country code and, for the explicit opt-in jurisdiction,
// reveals the consent controls unchecked.
func Apply(f *form.Form, code string) {
	f.SetAll(CountryField, code)
	if code == ExplicitOptInRegion {
		f.ShowConsentWrappers()
	}
}

// Start runs the lookup in the background and applies the result to the
// form. Failures are logged and otherwise ignored. The returned channel is
// closed when the task ends; the submission path never waits on it.
func Start(ctx context.Context, f *form.Form, c *Client, logger *zap.Logger) <-chan struct{} {
	if logger == nil {
		logger = zap.NewNop()
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		code, err := c.Lookup(ctx)
		if err != nil {
			logger.Warn("geo lookup failed", zap.Error(err))
			return
		}
		Apply(f, code)
		logger.Debug("geo lookup applied", zap.String("country", code))
	}()
	return done
}

var acceptedConsent = map[string]bool{"1": true, "Yes": true, "true": true}

// Consent returns the consent flag: the consent checkbox when present, else
// the legacy hidden field against the accepted values, else opted in.
func Consent(f *form.Form) int {
	if checked, found := f.Checked(ConsentCheckbox); found {
		if checked {
			return 1
		}
		return 0
	}
	if f.Has(LegacyConsentField) {
		if acceptedConsent[f.RawValue(LegacyConsentField)] {
			return 1
		}
		return 0
	}
	return 1
}
