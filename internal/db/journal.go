package db

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Journal records captured submissions. DB and Memory implement it.
type Journal interface {
	Save(ctx context.Context, s *Submission) error
	Get(ctx context.Context, id uuid.UUID) (*Submission, error)
	List(ctx context.Context, limit int) ([]Submission, error)
	Close()
}

var (
	_ Journal = (*DB)(nil)
	_ Journal = (*Memory)(nil)
)

// Memory is an in-process Journal used when no database is configured.
// It keeps at most capacity submissions, dropping the oldest.
type Memory struct {
	mu          sync.Mutex
	submissions []Submission
	capacity    int
	now         func() time.Time
}

// NewMemory creates a Memory journal. A capacity of zero or less keeps 1000.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Memory{capacity: capacity, now: time.Now}
}

// Save stores a submission, assigning its ID when unset
func (m *Memory) Save(_ context.Context, s *Submission) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.CreatedAt = m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.submissions = append(m.submissions, *s)
	if over := len(m.submissions) - m.capacity; over > 0 {
		m.submissions = append([]Submission(nil), m.submissions[over:]...)
	}
	return nil
}

// Get retrieves a submission by ID, or nil when it does not exist
func (m *Memory) Get(_ context.Context, id uuid.UUID) (*Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.submissions {
		if m.submissions[i].ID == id {
			s := m.submissions[i]
			return &s, nil
		}
	}
	return nil, nil
}

// List retrieves the most recent submissions, newest first
func (m *Memory) List(_ context.Context, limit int) ([]Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.submissions)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Submission, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, m.submissions[i])
	}
	return out, nil
}

// Close is a no-op.
func (m *Memory) Close() {}
