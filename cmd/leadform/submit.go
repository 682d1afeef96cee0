package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/leadform/internal/config"
	"github.com/jonathan/leadform/internal/geo"
	"github.com/jonathan/leadform/internal/identity"
	"github.com/jonathan/leadform/internal/location"
	"github.com/jonathan/leadform/internal/observability"
	"github.com/jonathan/leadform/internal/submission"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Enrich, validate and post a lead form",
	Long: `Load a page holding a lead form, run the page-load enrichment (visitor ids,
campaign attribution, fingerprint and geo consent), apply field edits and
submit the form to its action the way the browser would.`,
	RunE: runSubmitCmd,
}

var submitOpts submitOptions

func init() {
	submitCmd.Flags().StringVarP(&submitOpts.Input, "in", "i", "", "Path to the page HTML (- for stdin)")
	submitCmd.Flags().StringVarP(&submitOpts.URL, "url", "u", "", "URL to fetch the page from")
	submitCmd.Flags().BoolVar(&submitOpts.UseBrowser, "browser", false, "Render the page with a headless browser when the static HTML has no lead form")
	submitCmd.Flags().StringVar(&submitOpts.PageURL, "page-url", "", "URL the form is served from (defaults to --url)")
	submitCmd.Flags().IntVar(&submitOpts.FormIndex, "form", 0, "Index of the lead form on the page")
	submitCmd.Flags().StringArrayVarP(&submitOpts.Edits, "set", "s", nil, "Field edit as name=value (repeatable)")
	submitCmd.Flags().StringVar(&submitOpts.CookieJar, "cookies", "", "Cookie jar JSON file (read and updated)")
	submitCmd.Flags().StringVarP(&submitOpts.Output, "out", "o", "", "Write the page HTML after submission")
	submitCmd.Flags().BoolVar(&submitOpts.SkipGeo, "no-geo", false, "Skip the geo lookup")
	submitCmd.Flags().BoolVar(&submitOpts.WaitGeo, "wait-geo", true, "Give the geo lookup time to finish before submitting")

	rootCmd.AddCommand(submitCmd)
}

type submitOptions struct {
	pageSource
	PageURL   string
	FormIndex int
	Edits     []string
	CookieJar string
	Output    string
	SkipGeo   bool
	WaitGeo   bool
}

func runSubmitCmd(cmd *cobra.Command, _ []string) error {
	return runSubmit(cmd.Context(), appConfig, submitOpts, cmd.InOrStdin(), cmd.OutOrStdout(), logger)
}

func runSubmit(ctx context.Context, cfg *config.Config, opts submitOptions, stdin io.Reader, out io.Writer, logger *zap.Logger) error {
	edits, err := parseEdits(opts.Edits)
	if err != nil {
		return err
	}
	pageURL := firstNonEmpty(opts.PageURL, cfg.PageURL, opts.URL)
	if pageURL == "" {
		return fmt.Errorf("page URL is required (use --page-url, --url or page_url in config)")
	}
	loc, err := location.Parse(pageURL, cfg.Locale)
	if err != nil {
		return err
	}

	html, err := opts.read(ctx, cfg, stdin, logger)
	if err != nil {
		return err
	}
	doc, f, err := selectForm(html, opts.FormIndex)
	if err != nil {
		return err
	}

	jarPath := firstNonEmpty(opts.CookieJar, cfg.CookieJar)
	jar := identity.NewJar()
	if jarPath != "" {
		if jar, err = identity.LoadJar(jarPath); err != nil {
			return err
		}
	}

	validator, err := newValidator(cfg, logger)
	if err != nil {
		return err
	}

	var geoClient *geo.Client
	if !opts.SkipGeo && !cfg.SkipGeo {
		geoClient = &geo.Client{
			IPEchoURL: cfg.IPEchoURL,
			LookupURL: cfg.GeoLookupURL,
			Options:   httpOptions(cfg),
		}
	}

	printer := observability.NewPrinter(out)
	navigator := &location.Recorder{}
	page, err := submission.NewPage(f, submission.Options{
		Location:  loc,
		Cookies:   jar,
		Validator: validator,
		Geo:       geoClient,
		Navigator: navigator,
		HTTP:      httpOptions(cfg),
		Logger:    logger,
		OnProgress: func(event submission.ProgressEvent) {
			logger.Debug(event.Message, zap.Stringer("state", event.State))
		},
	})
	if err != nil {
		return err
	}

	visitor, err := page.Load(ctx)
	if err != nil {
		return err
	}
	if cfg.Verbose {
		printer.PrintVisitor(visitor)
	}
	if opts.WaitGeo {
		waitForGeo(ctx, page.GeoDone(), cfg.Timeout(), logger)
	}

	for _, e := range edits {
		if !page.Change(e.Name, e.Value) {
			logger.Warn("field not on form", zap.String("field", e.Name))
			continue
		}
		page.Blur(e.Name)
	}

	result, submitErr := page.Submit(ctx)

	if jarPath != "" {
		if err := jar.Save(jarPath); err != nil {
			return err
		}
	}
	if err := writeHTML(doc, opts.Output); err != nil {
		return err
	}

	var invalid *submission.InvalidError
	if errors.As(submitErr, &invalid) {
		printer.PrintOutcomes(invalid.Failures)
		return submitErr
	}
	if submitErr != nil {
		return submitErr
	}

	if cfg.Verbose {
		printer.PrintPayload(result.Payload)
	}
	printer.PrintSubmission(result.Action, result.StatusCode, result.Target)
	return nil
}

// waitForGeo blocks until the background lookup ends, the timeout passes or
// ctx is done. A nil done channel returns at once.
func waitForGeo(ctx context.Context, done <-chan struct{}, timeout time.Duration, logger *zap.Logger) {
	if done == nil {
		return
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		logger.Warn("geo lookup still running, submitting without it")
	case <-ctx.Done():
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
