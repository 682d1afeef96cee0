// Package location models the page's ambient browser state: the current URL,
// the browser locale, the local clock and navigation.
package location

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/language"
)

// Context is the page location the pipeline reads from.
type Context struct {
	URL    *url.URL
	Locale string
	Now    func() time.Time
}

// Parse builds a Context from a page URL.
func Parse(rawURL, locale string) (*Context, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("page URL must be absolute: %s", rawURL)
	}
	return &Context{URL: u, Locale: locale, Now: time.Now}, nil
}

// Origin returns scheme://host[:port].
func (c *Context) Origin() string {
	return c.URL.Scheme + "://" + c.URL.Host
}

// Path returns the page path without the query.
func (c *Context) Path() string {
	if c.URL.Path == "" {
		return "/"
	}
	return c.URL.Path
}

// RawQuery returns the query string without the leading "?".
func (c *Context) RawQuery() string {
	return c.URL.RawQuery
}

// Params returns the parsed query parameters.
func (c *Context) Params() url.Values {
	return c.URL.Query()
}

// Param returns the first value of a query parameter, or "".
func (c *Context) Param(name string) string {
	return c.URL.Query().Get(name)
}

// Time returns the current local time.
func (c *Context) Time() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// Language returns the locale as a canonical BCP 47 tag. Values that do not
// parse are returned as given.
func (c *Context) Language() string {
	raw := strings.TrimSpace(c.Locale)
	if raw == "" {
		return ""
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return raw
	}
	return tag.String()
}

// Resolve resolves a possibly relative reference against the page URL.
func (c *Context) Resolve(ref string) (string, error) {
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("failed to parse reference %q: %w", ref, err)
	}
	return c.URL.ResolveReference(r).String(), nil
}

// Navigator performs the client-side redirect after a successful submission.
type Navigator interface {
	Navigate(target string) error
}

// Recorder is a Navigator that remembers every navigation.
type Recorder struct {
	mu      sync.Mutex
	targets []string
}

// Navigate records the target.
func (r *Recorder) Navigate(target string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets = append(r.targets, target)
	return nil
}

// Last returns the most recent navigation target, or "".
func (r *Recorder) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.targets) == 0 {
		return ""
	}
	return r.targets[len(r.targets)-1]
}

// Count returns how many navigations were recorded.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.targets)
}
