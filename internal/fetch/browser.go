// Package fetch - browser.go renders landing pages in a headless browser for
// forms injected by client-side scripts.
package fetch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// FormReadySelector is what the browser waits for before capturing HTML.
const FormReadySelector = `form[eloquaform="true"]`

// NeedsBrowser reports whether a statically fetched page lacks the lead form,
// which usually means the form is rendered by JavaScript.
func NeedsBrowser(html string) bool {
	return !strings.Contains(html, `eloquaform="true"`) && !strings.Contains(html, `eloquaform=true`)
}

// WithBrowser renders a page in a headless browser and returns the HTML once
// the lead form is present. Requires Chrome/Chromium on the system.
func WithBrowser(ctx context.Context, url string, timeout time.Duration, logger *zap.Logger) (string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug("starting headless browser", zap.String("url", url))

	allocCtx, cancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)...,
	)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, timeout)
	defer cancel()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady(FormReadySelector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("browser rendering failed: %w", err)
	}

	logger.Debug("rendered page", zap.String("url", url), zap.Int("bytes", len(html)))
	return html, nil
}

// Page fetches a page over HTTP and, when useBrowser is set and the static
// HTML has no lead form, falls back to headless rendering.
func Page(ctx context.Context, url string, useBrowser bool, opts *Options, logger *zap.Logger) (string, error) {
	result, err := URL(ctx, url, opts)
	if err != nil {
		return "", err
	}
	if !useBrowser || !NeedsBrowser(result.Body) {
		return result.Body, nil
	}
	timeout := DefaultTimeout
	if opts != nil && opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	return WithBrowser(ctx, url, timeout, logger)
}
