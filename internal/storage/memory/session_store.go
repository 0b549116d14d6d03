// Package memory provides an in-memory session snapshot store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/siteclone/internal/session"
	"github.com/JakeFAU/siteclone/internal/store"
)

// DefaultMaxSessions bounds how many sessions are retained.
const DefaultMaxSessions = 100

type record struct {
	snap store.Snapshot
	log  session.Log
}

// SessionStore implements store.SessionRepository. Each session keeps a
// bounded log of the same capacity the observer uses.
type SessionStore struct {
	mu          sync.RWMutex
	sessions    map[string]*record
	logCapacity int
	maxSessions int
}

// NewSessionStore constructs a SessionStore. Non-positive values take the
// defaults.
func NewSessionStore(logCapacity, maxSessions int) *SessionStore {
	if logCapacity <= 0 {
		logCapacity = session.DefaultLogCapacity
	}
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	return &SessionStore{
		sessions:    make(map[string]*record),
		logCapacity: logCapacity,
		maxSessions: maxSessions,
	}
}

var _ store.SessionRepository = (*SessionStore)(nil)

// StartSession implements store.SessionRepository. Starting an existing
// request ID is a no-op.
func (s *SessionStore) StartSession(_ context.Context, token, requestID, website string, first session.Entry, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[requestID]; ok {
		return nil
	}
	rec := &record{
		snap: store.Snapshot{
			Token:     token,
			RequestID: requestID,
			Website:   website,
			Status:    store.StatusRunning,
			Phase:     string(session.PhaseConnecting),
			StartedAt: at,
			UpdatedAt: at,
		},
		log: session.NewLog(s.logCapacity),
	}
	if first.Text != "" {
		rec.log = rec.log.Append(first)
	}
	s.sessions[requestID] = rec
	s.evictLocked()
	return nil
}

// RecordEvent implements store.SessionRepository.
func (s *SessionStore) RecordEvent(_ context.Context, requestID string, u store.Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[requestID]
	if !ok {
		return fmt.Errorf("record event %s: %w", requestID, store.ErrNotFound)
	}
	rec.snap.Phase = u.Phase
	// Counters only move forward.
	if u.Pages > rec.snap.Pages {
		rec.snap.Pages = u.Pages
	}
	if u.Files > rec.snap.Files {
		rec.snap.Files = u.Files
	}
	if u.Entry.Text != "" {
		rec.log = rec.log.Append(u.Entry)
	}
	rec.snap.UpdatedAt = u.At
	return nil
}

// CompleteSession implements store.SessionRepository.
func (s *SessionStore) CompleteSession(_ context.Context, requestID, filename string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[requestID]
	if !ok {
		return fmt.Errorf("complete session %s: %w", requestID, store.ErrNotFound)
	}
	rec.snap.Status = store.StatusCompleted
	rec.snap.Phase = string(session.PhaseCompleted)
	rec.snap.Filename = filename
	rec.snap.UpdatedAt = at
	finished := at
	rec.snap.FinishedAt = &finished
	return nil
}

// GetSession implements store.SessionRepository.
func (s *SessionStore) GetSession(_ context.Context, token string) (store.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *record
	for _, rec := range s.sessions {
		if rec.snap.Token != token {
			continue
		}
		if latest == nil || rec.snap.StartedAt.After(latest.snap.StartedAt) {
			latest = rec
		}
	}
	if latest == nil {
		return store.Snapshot{}, store.ErrNotFound
	}
	return latest.snapshot(), nil
}

// ListSessions implements store.SessionRepository.
func (s *SessionStore) ListSessions(_ context.Context, limit, offset int) ([]store.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.sortedLocked()
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return []store.Snapshot{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	out := make([]store.Snapshot, 0, len(all))
	for _, rec := range all {
		out = append(out, rec.snapshot())
	}
	return out, nil
}

func (r *record) snapshot() store.Snapshot {
	snap := r.snap
	snap.Log = r.log.Entries()
	if r.snap.FinishedAt != nil {
		finished := *r.snap.FinishedAt
		snap.FinishedAt = &finished
	}
	return snap
}

// sortedLocked returns records newest first.
func (s *SessionStore) sortedLocked() []*record {
	all := make([]*record, 0, len(s.sessions))
	for _, rec := range s.sessions {
		all = append(all, rec)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].snap.StartedAt.Equal(all[j].snap.StartedAt) {
			return all[i].snap.RequestID > all[j].snap.RequestID
		}
		return all[i].snap.StartedAt.After(all[j].snap.StartedAt)
	})
	return all
}

func (s *SessionStore) evictLocked() {
	if len(s.sessions) <= s.maxSessions {
		return
	}
	all := s.sortedLocked()
	for _, rec := range all[s.maxSessions:] {
		delete(s.sessions, rec.snap.RequestID)
	}
}
