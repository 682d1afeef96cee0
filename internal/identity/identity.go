package identity

import (
	"math/rand/v2"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Cookie names and lifetimes.
const (
	DurableCookie   = "did"
	AnalyticsCookie = "_ga"
	SnapshotCookie  = "uinfo"

	DurableTTL  = 3650 * 24 * time.Hour
	SnapshotTTL = 30 * 24 * time.Hour

	durableIDLength = 10

	// maxDraws bounds the redraw loop before DurableID falls back to a
	// fixed-width draw.
	maxDraws = 32
)

// Visitor groups the identifiers attached to a submission.
type Visitor struct {
	DomoID            string
	AnalyticsClientID string
	FingerprintID     string
}

// Store reads and writes visitor identity through a CookieStore.
type Store struct {
	cookies CookieStore
	now     func() time.Time
	randInt func(n int64) int64
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the clock used for id generation.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithRand overrides the random source used for id generation. fn must
// return a value in [0, n).
func WithRand(fn func(n int64) int64) Option {
	return func(s *Store) { s.randInt = fn }
}

// NewStore creates a Store over the given cookies.
func NewStore(cookies CookieStore, opts ...Option) *Store {
	s := &Store{
		cookies: cookies,
		now:     time.Now,
		randInt: rand.Int64N,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ValidDurableID reports whether a stored id can be reused.
func ValidDurableID(id string) bool {
	if id == "" || id == "undefined" || len(id) < durableIDLength {
		return false
	}
	return !numericZero(id)
}

// numericZero reports whether s reads as the number zero: blank, a decimal
// zero such as "0000000000" or "0e5", or a zero with a 0x, 0o or 0b prefix.
func numericZero(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			n, err := strconv.ParseUint(s[2:], base, 64)
			return err == nil && n == 0
		}
	}
	n, err := strconv.ParseFloat(s, 64)
	return err == nil && n == 0
}

// DurableID returns the persisted visitor id, generating and persisting a
// new one when the stored value is missing or corrupt.
func (s *Store) DurableID() string {
	id := s.cookies.Get(DurableCookie)
	if ValidDurableID(id) {
		return id
	}
	id = s.generate()
	for i := 1; !ValidDurableID(id); i++ {
		if i == maxDraws {
			id = s.fallback()
			break
		}
		id = s.generate()
	}
	s.cookies.Set(DurableCookie, id, DurableTTL)
	return id
}

// generate yields floor(epochSeconds * r) truncated to ten digits. Small
// draws give short ids, which DurableID rejects and redraws.
func (s *Store) generate() string {
	t := s.now().Unix()
	r := s.randInt(1e8)
	id := strconv.FormatInt(t*r, 10)
	if len(id) > durableIDLength {
		id = id[:durableIDLength]
	}
	return id
}

// fallback draws a ten digit id from [1e9, 1e10). It is used when the clock
// or the random source keeps producing short ids, e.g. a clock at the epoch.
func (s *Store) fallback() string {
	id := strconv.FormatInt(1e9+s.randInt(9e9), 10)
	if len(id) > durableIDLength {
		id = id[:durableIDLength]
	}
	return id
}

// AnalyticsID returns the ambient analytics client id verbatim, or "".
func (s *Store) AnalyticsID() string {
	return s.cookies.Get(AnalyticsCookie)
}

// WriteSnapshot persists a url-encoded visitor snapshot for 30 days.
func (s *Store) WriteSnapshot(values url.Values) {
	s.cookies.Set(SnapshotCookie, values.Encode(), SnapshotTTL)
}
