// Package form provides an in-memory lead form document backed by goquery.
// It implements the DOM contract the enrichment pipeline relies on: named
// field reads and writes, inline error annotations, marker-attributed
// wrappers and url-encoded serialization.
package form

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// Selector matches every form the pipeline attaches to.
const Selector = `form[eloquaform="true"]`

// Error represents a failure to load a form document.
type Error struct {
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("form error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("form error: %s", e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Document is a parsed page holding one or more lead forms.
type Document struct {
	doc       *goquery.Document
	mu        sync.Mutex
	formsOnce sync.Once
	forms     []*Form
}

// Parse reads an HTML page.
func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, &Error{Message: "failed to parse HTML", Cause: err}
	}
	return &Document{doc: doc}, nil
}

// ParseString is a convenience wrapper around Parse.
func ParseString(html string) (*Document, error) {
	return Parse(strings.NewReader(html))
}

// Forms returns every form marked for enrichment, in document order.
// Repeated calls return the same *Form values, so listeners registered on
// one call see writes made through another.
func (d *Document) Forms() []*Form {
	d.formsOnce.Do(func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.doc.Find(Selector).Each(func(_ int, s *goquery.Selection) {
			d.forms = append(d.forms, &Form{sel: s, mu: &d.mu})
		})
	})
	return append([]*Form(nil), d.forms...)
}

// HTML renders the current state of the whole page.
func (d *Document) HTML() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	html, err := goquery.OuterHtml(d.doc.Selection)
	if err != nil {
		return "", &Error{Message: "failed to render HTML", Cause: err}
	}
	return html, nil
}
