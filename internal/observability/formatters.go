// Package observability provides logging, tracing and formatted output
// utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"

	"github.com/jonathan/leadform/internal/identity"
	"github.com/jonathan/leadform/internal/validation"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintVisitor outputs the identifiers attached to a submission.
func (p *Printer) PrintVisitor(v identity.Visitor) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Visitor ID:   %s\n", orNone(v.DomoID)))
	sb.WriteString(fmt.Sprintf("Analytics ID: %s\n", orNone(v.AnalyticsClientID)))
	sb.WriteString(fmt.Sprintf("Fingerprint:  %s\n", orNone(v.FingerprintID)))
	p.printBox("VISITOR IDENTITY", sb.String())
}

// PrintOutcomes outputs validation results, failures first.
func (p *Printer) PrintOutcomes(outcomes []validation.Outcome) {
	if len(outcomes) == 0 {
		return
	}

	var failed, passed []validation.Outcome
	for _, o := range outcomes {
		if o.Passed {
			passed = append(passed, o)
		} else {
			failed = append(failed, o)
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Fields: %d  Failed: %d\n", len(outcomes), len(failed)))
	if len(failed) > 0 {
		sb.WriteString("\n")
		for _, o := range failed {
			sb.WriteString(fmt.Sprintf("  ✗ %s (%s)\n", o.Field, o.Reason))
		}
	}
	if len(passed) > 0 {
		sb.WriteString("\n")
		count := min(len(passed), maxItemsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  ✓ %s\n", passed[i].Field))
		}
		if len(passed) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(passed)-maxItemsToShow))
		}
	}
	p.printBox("VALIDATION", sb.String())
}

// PrintPayload outputs the serialized form, one field per line in key order.
// Empty fields are counted rather than listed.
func (p *Printer) PrintPayload(payload url.Values) {
	if len(payload) == 0 {
		return
	}

	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	empty := 0
	for _, k := range keys {
		v := strings.Join(payload[k], ",")
		if v == "" {
			empty++
			continue
		}
		sb.WriteString(fmt.Sprintf("%s = %s\n", k, v))
	}
	if empty > 0 {
		sb.WriteString(fmt.Sprintf("(%d empty fields)\n", empty))
	}
	p.printBox(fmt.Sprintf("PAYLOAD (%d fields)", len(keys)), sb.String())
}

// PrintSubmission outputs where a submission went and where it redirects.
func (p *Printer) PrintSubmission(action string, status int, target string) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Action:   %s\n", action))
	sb.WriteString(fmt.Sprintf("Status:   %d\n", status))
	sb.WriteString(fmt.Sprintf("Redirect: %s\n", target))
	p.printBox("SUBMISSION", sb.String())
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
