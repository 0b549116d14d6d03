package store

import (
	"context"
	"errors"
	"time"

	"github.com/JakeFAU/siteclone/internal/session"
)

// ErrNotFound signals that the requested session does not exist.
var ErrNotFound = errors.New("session not found")

// SessionStatus is the persisted lifecycle of a session.
type SessionStatus string

// Session statuses.
const (
	StatusRunning   SessionStatus = "running"
	StatusCompleted SessionStatus = "completed"
)

// Snapshot is the latest known state of one request.
type Snapshot struct {
	Token      string          `json:"token"`
	RequestID  string          `json:"request_id"`
	Website    string          `json:"website"`
	Status     SessionStatus   `json:"status"`
	Phase      string          `json:"phase"`
	Pages      int64           `json:"pages"`
	Files      int64           `json:"files"`
	Filename   string          `json:"filename,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Log        []session.Entry `json:"log"`
}

// Update is the effect of one applied event.
type Update struct {
	Phase string
	Pages int64
	Files int64
	Entry session.Entry
	At    time.Time
}

// SessionRepository persists session snapshots keyed by request ID.
type SessionRepository interface {
	// StartSession records a new request with its initial log entry.
	StartSession(ctx context.Context, token, requestID, website string, first session.Entry, at time.Time) error
	// RecordEvent applies counters and appends a log entry.
	RecordEvent(ctx context.Context, requestID string, u Update) error
	// CompleteSession marks the request finished.
	CompleteSession(ctx context.Context, requestID, filename string, at time.Time) error
	// GetSession returns the most recent session for token.
	GetSession(ctx context.Context, token string) (Snapshot, error)
	// ListSessions returns sessions, newest first.
	ListSessions(ctx context.Context, limit, offset int) ([]Snapshot, error)
}
