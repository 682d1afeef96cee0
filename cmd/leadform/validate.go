package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/leadform/internal/config"
	"github.com/jonathan/leadform/internal/dynamic"
	"github.com/jonathan/leadform/internal/observability"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a lead form without submitting it",
	Long: `Apply field edits to a lead form and run the pre-submit validation. Failing
fields are annotated in the page; use --out to write the annotated HTML.
With --rules-only the rule file is checked and nothing else is done.`,
	RunE: runValidateCmd,
}

var validateOpts validateOptions

func init() {
	validateCmd.Flags().StringVarP(&validateOpts.Input, "in", "i", "", "Path to the page HTML (- for stdin)")
	validateCmd.Flags().StringVarP(&validateOpts.URL, "url", "u", "", "URL to fetch the page from")
	validateCmd.Flags().BoolVar(&validateOpts.UseBrowser, "browser", false, "Render the page with a headless browser when the static HTML has no lead form")
	validateCmd.Flags().IntVar(&validateOpts.FormIndex, "form", 0, "Index of the lead form on the page")
	validateCmd.Flags().StringArrayVarP(&validateOpts.Edits, "set", "s", nil, "Field edit as name=value (repeatable)")
	validateCmd.Flags().StringVarP(&validateOpts.Output, "out", "o", "", "Write the annotated page HTML")
	validateCmd.Flags().BoolVar(&validateOpts.RulesOnly, "rules-only", false, "Only check the configured rule file")

	rootCmd.AddCommand(validateCmd)
}

type validateOptions struct {
	pageSource
	FormIndex int
	Edits     []string
	Output    string
	RulesOnly bool
}

func runValidateCmd(cmd *cobra.Command, _ []string) error {
	return runValidate(cmd.Context(), appConfig, validateOpts, cmd.InOrStdin(), cmd.OutOrStdout(), logger)
}

func runValidate(ctx context.Context, cfg *config.Config, opts validateOptions, stdin io.Reader, out io.Writer, logger *zap.Logger) error {
	validator, err := newValidator(cfg, logger)
	if err != nil {
		return err
	}
	if opts.RulesOnly {
		fmt.Fprintf(out, "%d rules OK\n", len(validator.Rules()))
		return nil
	}

	edits, err := parseEdits(opts.Edits)
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

	controller := dynamic.New(f, logger)
	controller.Sync()
	for _, e := range edits {
		if !f.SetValue(e.Name, e.Value) {
			logger.Warn("field not on form", zap.String("field", e.Name))
		}
		if e.Name == dynamic.SubjectField {
			controller.Sync()
		}
	}

	ok, outcomes := validator.All(f)
	observability.NewPrinter(out).PrintOutcomes(outcomes)
	if err := writeHTML(doc, opts.Output); err != nil {
		return err
	}
	if !ok {
		failed := 0
		for _, o := range outcomes {
			if !o.Passed {
				failed++
			}
		}
		return fmt.Errorf("%d of %d fields failed validation", failed, len(outcomes))
	}
	return nil
}
