// Package fingerprint resolves the per-session form-fill id: an explicit URL
// override when present, otherwise a SHA-1 digest over a random token and the
// durable visitor id.
package fingerprint

import (
	"context"
	"crypto/sha1" //nolint:gosec // identifier derivation, not a security boundary
	"encoding/hex"
	"net/url"

	"github.com/google/uuid"

	"github.com/jonathan/leadform/internal/form"
)

// Field is the hidden field receiving the resolved id.
const Field = "uniqueFFID"

// OverrideParams are checked in order; the first non-empty value wins.
var OverrideParams = []string{"unique_ffid", "uniqueFFID"}

// SeedParam overrides the durable id used as digest input.
const SeedParam = "domo_id"

const delimiter = "|"

// Digest returns the lowercase hex SHA-1 of s (always 40 characters).
func Digest(s string) string {
	sum := sha1.Sum([]byte(s)) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// Resolver computes fingerprint ids.
type Resolver struct {
	// Token returns the random component; defaults to uuid.NewString.
	Token func() string
	// Hash is the digest function; defaults to Digest.
	Hash func(string) string
}

// NewResolver returns a Resolver with the default token and digest.
func NewResolver() *Resolver {
	return &Resolver{Token: uuid.NewString, Hash: Digest}
}

// Override returns the explicit URL override, if any.
func Override(params url.Values) (string, bool) {
	for _, name := range OverrideParams {
		if v := params.Get(name); v != "" {
			return v, true
		}
	}
	return "", false
}

// Resolve returns the override verbatim when present, without computing a
// digest. Otherwise the digest runs on its own goroutine and Resolve blocks
// until it completes or ctx is done.
func (r *Resolver) Resolve(ctx context.Context, params url.Values, durableID string) (string, error) {
	if v, ok := Override(params); ok {
		return v, nil
	}

	seed := params.Get(SeedParam)
	if seed == "" {
		seed = durableID
	}
	input := r.token() + delimiter + seed

	done := make(chan string, 1)
	go func() {
		done <- r.hash(input)
	}()

	select {
	case id := <-done:
		return id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Populate resolves the id and writes it into every fingerprint field.
func (r *Resolver) Populate(ctx context.Context, f *form.Form, params url.Values, durableID string) (string, error) {
	id, err := r.Resolve(ctx, params, durableID)
	if err != nil {
		return "", err
	}
	f.SetAll(Field, id)
	return id, nil
}

func (r *Resolver) token() string {
	if r.Token == nil {
		return uuid.NewString()
	}
	return r.Token()
}

func (r *Resolver) hash(s string) string {
	if r.Hash == nil {
		return Digest(s)
	}
	return r.Hash(s)
}
