package db

import (
	"time"

	"github.com/google/uuid"
)

// Submission is one captured form post.
type Submission struct {
	ID         uuid.UUID           `json:"id"`
	FormName   string              `json:"form_name"`
	RemoteAddr string              `json:"remote_addr"`
	Fields     map[string][]string `json:"fields"`
	CreatedAt  time.Time           `json:"created_at"`
}

// Get returns the first value of a field, or "".
func (s *Submission) Get(field string) string {
	if v := s.Fields[field]; len(v) > 0 {
		return v[0]
	}
	return ""
}
