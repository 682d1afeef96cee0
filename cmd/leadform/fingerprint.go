package main

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/jonathan/leadform/internal/config"
	"github.com/jonathan/leadform/internal/fingerprint"
	"github.com/jonathan/leadform/internal/identity"
)

var fingerprintCmd = &cobra.Command{
	Use:   "fingerprint",
	Short: "Print the visitor ids a form would be enriched with",
	Long: `Resolve the durable visitor id from the cookie jar (generating and storing
one when missing or malformed), the analytics client id and the form-fill
fingerprint for a page URL.`,
	RunE: runFingerprintCmd,
}

var fingerprintOpts fingerprintOptions

func init() {
	fingerprintCmd.Flags().StringVar(&fingerprintOpts.PageURL, "page-url", "", "Page URL whose query may override the fingerprint")
	fingerprintCmd.Flags().StringVar(&fingerprintOpts.CookieJar, "cookies", "", "Cookie jar JSON file (read and updated)")

	rootCmd.AddCommand(fingerprintCmd)
}

type fingerprintOptions struct {
	PageURL   string
	CookieJar string
}

func runFingerprintCmd(cmd *cobra.Command, _ []string) error {
	return runFingerprint(cmd.Context(), appConfig, fingerprintOpts, cmd.OutOrStdout())
}

func runFingerprint(ctx context.Context, cfg *config.Config, opts fingerprintOptions, out io.Writer) error {
	params := url.Values{}
	if raw := firstNonEmpty(opts.PageURL, cfg.PageURL); raw != "" {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("failed to parse page URL: %w", err)
		}
		params = u.Query()
	}

	jarPath := firstNonEmpty(opts.CookieJar, cfg.CookieJar)
	jar := identity.NewJar()
	if jarPath != "" {
		var err error
		if jar, err = identity.LoadJar(jarPath); err != nil {
			return err
		}
	}

	store := identity.NewStore(jar)
	durableID := store.DurableID()
	ffid, err := fingerprint.NewResolver().Resolve(ctx, params, durableID)
	if err != nil {
		return err
	}

	if jarPath != "" {
		if err := jar.Save(jarPath); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "domo_id:    %s\n", durableID)
	fmt.Fprintf(out, "g_id:       %s\n", store.AnalyticsID())
	fmt.Fprintf(out, "uniqueFFID: %s\n", ffid)
	return nil
}
