// Package identity derives and persists the durable visitor id and reads the
// ambient tracking cookies the lead form is enriched with.
package identity

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"
)

// CookieStore is the read/write contract the pipeline has with the cookie
// jar. Get returns "" for a missing or expired cookie.
type CookieStore interface {
	Get(name string) string
	Set(name, value string, ttl time.Duration)
}

// Cookie is a stored cookie value with its expiry. A zero Expires never
// expires.
type Cookie struct {
	Value   string    `json:"value"`
	Expires time.Time `json:"expires,omitempty"`
}

// Jar is an in-memory CookieStore that can be persisted as JSON.
type Jar struct {
	mu      sync.Mutex
	cookies map[string]Cookie
	now     func() time.Time
}

// NewJar creates an empty jar.
func NewJar() *Jar {
	return &Jar{cookies: make(map[string]Cookie), now: time.Now}
}

// FromHTTP builds a jar from request cookies.
func FromHTTP(cookies []*http.Cookie) *Jar {
	j := NewJar()
	for _, c := range cookies {
		j.cookies[c.Name] = Cookie{Value: c.Value}
	}
	return j
}

// LoadJar reads a jar saved by Save. A missing file yields an empty jar.
func LoadJar(path string) (*Jar, error) {
	j := NewJar()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return j, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cookie jar %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &j.cookies); err != nil {
		return nil, fmt.Errorf("failed to parse cookie jar %s: %w", path, err)
	}
	if j.cookies == nil {
		j.cookies = make(map[string]Cookie)
	}
	return j, nil
}

// Save writes the jar as JSON.
func (j *Jar) Save(path string) error {
	j.mu.Lock()
	data, err := json.MarshalIndent(j.cookies, "", "  ")
	j.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to encode cookie jar: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write cookie jar %s: %w", path, err)
	}
	return nil
}

// Get returns the cookie value, or "" when missing or expired.
func (j *Jar) Get(name string) string {
	j.mu.Lock()
	defer j.mu.Unlock()
	c, ok := j.cookies[name]
	if !ok {
		return ""
	}
	if !c.Expires.IsZero() && !j.now().Before(c.Expires) {
		delete(j.cookies, name)
		return ""
	}
	return c.Value
}

// Set stores a cookie. A non-positive ttl stores a session cookie.
func (j *Jar) Set(name, value string, ttl time.Duration) {
	j.mu.Lock()
	defer j.mu.Unlock()
	c := Cookie{Value: value}
	if ttl > 0 {
		c.Expires = j.now().Add(ttl)
	}
	j.cookies[name] = c
}

// Expiry returns the cookie's expiry and whether the cookie exists.
func (j *Jar) Expiry(name string) (time.Time, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	c, ok := j.cookies[name]
	return c.Expires, ok
}
