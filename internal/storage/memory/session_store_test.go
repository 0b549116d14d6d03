package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/siteclone/internal/progress"
	"github.com/JakeFAU/siteclone/internal/session"
	"github.com/JakeFAU/siteclone/internal/store"
)

var t0 = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func TestSessionStoreLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewSessionStore(0, 0)

	first := session.Entry{Text: session.LineConnecting, Style: progress.StyleInfo}
	require.NoError(t, s.StartSession(ctx, "TOK", "req-1", "https://example.com", first, t0))
	require.NoError(t, s.RecordEvent(ctx, "req-1", store.Update{
		Phase: string(session.PhaseRunning),
		Pages: 1,
		Files: 4,
		Entry: session.Entry{Text: "[页面] https://example.com/", Style: progress.StyleInfo},
		At:    t0.Add(time.Second),
	}))
	require.NoError(t, s.CompleteSession(ctx, "req-1", "example_com", t0.Add(2*time.Second)))

	snap, err := s.GetSession(ctx, "TOK")
	require.NoError(t, err)
	require.Equal(t, store.StatusCompleted, snap.Status)
	require.Equal(t, string(session.PhaseCompleted), snap.Phase)
	require.Equal(t, int64(1), snap.Pages)
	require.Equal(t, int64(4), snap.Files)
	require.Equal(t, "example_com", snap.Filename)
	require.NotNil(t, snap.FinishedAt)
	require.Len(t, snap.Log, 2)
}

func TestSessionStoreCountersNeverDecrease(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewSessionStore(0, 0)
	require.NoError(t, s.StartSession(ctx, "TOK", "req-1", "", session.Entry{}, t0))
	require.NoError(t, s.RecordEvent(ctx, "req-1", store.Update{Pages: 5, Files: 10, At: t0}))
	require.NoError(t, s.RecordEvent(ctx, "req-1", store.Update{Pages: 2, Files: 1, At: t0}))

	snap, err := s.GetSession(ctx, "TOK")
	require.NoError(t, err)
	require.Equal(t, int64(5), snap.Pages)
	require.Equal(t, int64(10), snap.Files)
	require.Empty(t, snap.Log)
}

func TestSessionStoreBoundedLog(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewSessionStore(3, 0)
	require.NoError(t, s.StartSession(ctx, "TOK", "req-1", "", session.Entry{Text: "first"}, t0))
	for i := 0; i < 5; i++ {
		require.NoError(t, s.RecordEvent(ctx, "req-1", store.Update{Entry: session.Entry{Text: fmt.Sprintf("line %d", i)}, At: t0}))
	}
	snap, err := s.GetSession(ctx, "TOK")
	require.NoError(t, err)
	require.Equal(t, []session.Entry{{Text: "line 2"}, {Text: "line 3"}, {Text: "line 4"}}, snap.Log)
}

func TestSessionStoreNotFound(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewSessionStore(0, 0)

	_, err := s.GetSession(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
	require.ErrorIs(t, s.RecordEvent(ctx, "missing", store.Update{}), store.ErrNotFound)
	require.ErrorIs(t, s.CompleteSession(ctx, "missing", "", t0), store.ErrNotFound)
}

func TestSessionStoreListAndEvict(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewSessionStore(0, 3)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.StartSession(ctx, "TOK", fmt.Sprintf("req-%d", i), "", session.Entry{}, t0.Add(time.Duration(i)*time.Minute)))
	}

	all, err := s.ListSessions(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "req-4", all[0].RequestID)
	require.Equal(t, "req-2", all[2].RequestID)

	page, err := s.ListSessions(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, "req-3", page[0].RequestID)

	empty, err := s.ListSessions(ctx, 10, 10)
	require.NoError(t, err)
	require.Empty(t, empty)

	// The latest session wins for a reused token.
	snap, err := s.GetSession(ctx, "TOK")
	require.NoError(t, err)
	require.Equal(t, "req-4", snap.RequestID)
}
