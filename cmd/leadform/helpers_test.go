package main

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jonathan/leadform/internal/config"
	"github.com/jonathan/leadform/internal/db"
	"github.com/jonathan/leadform/internal/server"
	"github.com/jonathan/leadform/internal/server/ratelimit"
)

const contactPage = `<html><body>
<form eloquaform="true" action="/submit">
	<input type="hidden" name="elqFormName" value="website_cta_contactus">
	<div class="form-input-wrap"><div class="form-input-inner-wrap"><input name="first_name" value="Ada"></div></div>
	<div class="form-input-wrap"><div class="form-input-inner-wrap"><input name="last_name" value="Lovelace"></div></div>
	<div class="form-input-wrap"><div class="form-input-inner-wrap"><input name="email" value="ada@acme.com"></div></div>
	<div class="form-input-wrap"><div class="form-input-inner-wrap"><input name="phone" value="5551234567"></div></div>
	<div class="form-input-wrap"><div class="form-input-inner-wrap">
		<select name="subject" required errorlabel="subject">
			<option value="">Subject</option>
			<option value="Sales">Sales</option>
			<option value="Support" selected>Support</option>
		</select>
	</div></div>
	<input type="hidden" name="domo_id">
	<input type="hidden" name="g_id">
	<input type="hidden" name="uniqueFFID">
	<input type="hidden" name="utmSource1">
	<input type="hidden" name="contentURL1" value="/thank-you">
	<input type="hidden" name="pathName1">
	<input type="hidden" name="company">
	<input type="submit" value="Send">
</form>
</body></html>`

// writeFile writes content into the test's temp dir and returns the path.
func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// captureEndpoint starts the capture server in memory mode.
func captureEndpoint(t *testing.T) (*httptest.Server, *db.Memory) {
	t.Helper()
	journal := db.NewMemory(0)
	srv, err := server.New(context.Background(), server.Config{
		Journal:   journal,
		RateLimit: &ratelimit.Config{Enabled: false},
	})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return ts, journal
}

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.SkipGeo = true
	return &cfg
}
