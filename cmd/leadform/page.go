package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/leadform/internal/config"
	"github.com/jonathan/leadform/internal/fetch"
	"github.com/jonathan/leadform/internal/form"
	"github.com/jonathan/leadform/internal/validation"
)

// pageSource says where the page HTML comes from. Input wins over URL; "-"
// reads standard input.
type pageSource struct {
	Input      string
	URL        string
	UseBrowser bool
}

func (s pageSource) read(ctx context.Context, cfg *config.Config, stdin io.Reader, logger *zap.Logger) (string, error) {
	switch {
	case s.Input == "-":
		content, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(content), nil
	case s.Input != "":
		content, err := os.ReadFile(s.Input)
		if err != nil {
			return "", fmt.Errorf("failed to read input file: %w", err)
		}
		return string(content), nil
	case s.URL != "":
		return fetch.Page(ctx, s.URL, s.UseBrowser || cfg.UseBrowser, httpOptions(cfg), logger)
	default:
		return "", fmt.Errorf("either --in or --url is required")
	}
}

func httpOptions(cfg *config.Config) *fetch.Options {
	opts := fetch.DefaultOptions()
	if t := cfg.Timeout(); t > 0 {
		opts.Timeout = t
	}
	return opts
}

// selectForm parses the page and returns the form at index together with
// its document.
func selectForm(html string, index int) (*form.Document, *form.Form, error) {
	doc, err := form.ParseString(html)
	if err != nil {
		return nil, nil, err
	}
	forms := doc.Forms()
	if len(forms) == 0 {
		return nil, nil, fmt.Errorf("no lead form found (looking for %s)", form.Selector)
	}
	if index < 0 || index >= len(forms) {
		return nil, nil, fmt.Errorf("form index %d out of range, page has %d form(s)", index, len(forms))
	}
	return doc, forms[index], nil
}

func newValidator(cfg *config.Config, logger *zap.Logger) (*validation.Validator, error) {
	if cfg.RulesFile == "" {
		return validation.New(nil, logger), nil
	}
	rules, err := validation.LoadRules(cfg.RulesFile)
	if err != nil {
		return nil, err
	}
	logger.Debug("loaded rule file", zap.String("path", cfg.RulesFile), zap.Int("rules", len(rules)))
	return validation.New(rules, logger), nil
}

// fieldEdit is one --set name=value pair.
type fieldEdit struct {
	Name  string
	Value string
}

func parseEdits(pairs []string) ([]fieldEdit, error) {
	edits := make([]fieldEdit, 0, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --set %q, expected name=value", pair)
		}
		edits = append(edits, fieldEdit{Name: name, Value: value})
	}
	return edits, nil
}

func writeHTML(doc *form.Document, path string) error {
	if path == "" {
		return nil
	}
	html, err := doc.HTML()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(html), 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}
