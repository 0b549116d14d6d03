package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/siteclone/internal/progress"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestState() State {
	return New("tok", "req", "https://example.com", t0, Options{})
}

func TestNewResetsEverything(t *testing.T) {
	t.Parallel()

	s := newTestState()
	require.Equal(t, PhaseConnecting, s.Phase)
	require.Zero(t, s.Pages)
	require.Zero(t, s.Files)
	require.True(t, s.Loading)
	require.False(t, s.Ready)
	require.Equal(t, []Entry{{Text: LineConnecting, Style: progress.StyleInfo}}, s.Log.Entries())
	require.Equal(t, "Connecting...", s.StatusText())
}

func TestApplyPageVisitedIncrementsByOne(t *testing.T) {
	t.Parallel()

	s := newTestState()
	for i := 1; i <= 3; i++ {
		s = s.Apply(progress.PageVisited{Raw: "[页面] /p", Style: progress.StyleInfo}, t0)
		require.EqualValues(t, i, s.Pages)
	}
	require.Equal(t, PhaseRunning, s.Phase)
	require.Equal(t, "Downloading...", s.StatusText())
	last, _ := s.Log.Last()
	require.Equal(t, Entry{Text: "[页面] /p", Style: progress.StyleInfo}, last)
}

func TestApplyResourcesAddsCount(t *testing.T) {
	t.Parallel()

	s := newTestState()
	s = s.Apply(progress.ResourcesFetched{Raw: "资源下载完成 5", Count: 5}, t0)
	s = s.Apply(progress.ResourcesFetched{Raw: "资源下载完成"}, t0)
	s = s.Apply(progress.ResourcesFetched{Raw: "bogus", Count: -3}, t0)
	require.EqualValues(t, 5, s.Files)

	s = s.Apply(progress.PageVisited{Raw: "[页面] 资源下载完成 2", Resources: 2}, t0)
	require.EqualValues(t, 7, s.Files)
	require.EqualValues(t, 1, s.Pages)
}

func TestApplyErrorOnlyLogs(t *testing.T) {
	t.Parallel()

	s := newTestState().Apply(progress.PageVisited{Raw: "[页面] /"}, t0)
	before := s
	s = s.Apply(progress.ErrorReported{Raw: "错误：下载失败"}, t0.Add(time.Second))

	require.Equal(t, before.Pages, s.Pages)
	require.Equal(t, before.Files, s.Files)
	require.Equal(t, before.Phase, s.Phase)
	last, _ := s.Log.Last()
	require.Equal(t, Entry{Text: "错误：下载失败", Style: progress.StyleError}, last)
}

func TestApplyConvertingAndCompleted(t *testing.T) {
	t.Parallel()

	s := newTestState()
	s = s.Apply(progress.Converting{Raw: "Converting"}, t0)
	require.Equal(t, PhaseCompressing, s.Phase)
	require.Equal(t, "Compressing...", s.StatusText())
	require.True(t, s.Loading)

	s = s.Apply(progress.Completed{Raw: "Completed", Filename: "example.com"}, t0)
	require.True(t, s.Done())
	require.False(t, s.Loading)
	require.True(t, s.Ready)
	require.Equal(t, "example.com", s.Filename)
	last, _ := s.Log.Last()
	require.Equal(t, Entry{Text: LineComplete, Style: progress.StyleSuccess}, last)
}

func TestApplyAfterCompletionIsIgnored(t *testing.T) {
	t.Parallel()

	done := newTestState().Apply(progress.Completed{Raw: "Completed", Filename: "a"}, t0)
	after := done.Apply(progress.PageVisited{Raw: "[页面] late"}, t0.Add(time.Minute))
	after = after.Apply(progress.Completed{Raw: "Completed", Filename: "b"}, t0.Add(time.Minute))

	require.Equal(t, done, after)
}

func TestApplyDoesNotMutateReceiver(t *testing.T) {
	t.Parallel()

	s := newTestState()
	_ = s.Apply(progress.PageVisited{Raw: "[页面] /"}, t0)
	require.Zero(t, s.Pages)
	require.Equal(t, 1, s.Log.Len())
}

func TestApplyReplayDoubleCounts(t *testing.T) {
	t.Parallel()

	evt := progress.ResourcesFetched{Raw: "资源下载完成 4", Count: 4}
	s := newTestState().Apply(evt, t0).Apply(evt, t0)
	require.EqualValues(t, 8, s.Files)
	require.Equal(t, 3, s.Log.Len())
}
