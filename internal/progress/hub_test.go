package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// TestHubBatchBySize verifies the hub flushes once the batch size limit is reached.
func TestHubBatchBySize(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{
		BufferSize: 8,
		MaxBatch:   2,
		MaxWait:    time.Minute,
	}, sink)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	hub.Emit(sampleObservation(StageEvent))
	hub.Emit(sampleObservation(StageEvent))
	require.Eventually(t, func() bool {
		b := sink.Batches()
		return len(b) == 1 && len(b[0]) == 2
	}, time.Second, 10*time.Millisecond)
}

// TestHubBatchByTimer verifies the periodic flush kicks in when the batch is small.
func TestHubBatchByTimer(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{
		BufferSize: 4,
		MaxBatch:   10,
		MaxWait:    20 * time.Millisecond,
	}, sink)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	hub.Emit(sampleObservation(StageSessionStart))
	require.Eventually(t, func() bool {
		return len(sink.Batches()) == 1
	}, time.Second, 5*time.Millisecond)
}

// TestHubEmitNonBlocking asserts Emit never blocks even when nothing drains the queue.
func TestHubEmitNonBlocking(t *testing.T) {
	t.Parallel()

	hub := &Hub{
		queue:  make(chan Observation),
		logger: zap.NewNop(),
	}
	start := time.Now()
	hub.Emit(sampleObservation(StageEvent))
	require.Less(t, time.Since(start), 50*time.Millisecond)
	require.EqualValues(t, 0, hub.Dropped())
}

// TestHubDiscardsInvalid ensures observations failing validation never reach sinks.
func TestHubDiscardsInvalid(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{MaxBatch: 1, MaxWait: time.Minute}, sink)

	bad := sampleObservation(StageEvent)
	bad.Kind = "bogus"
	hub.Emit(bad)
	hub.Emit(Observation{})

	require.NoError(t, hub.Close(context.Background()))
	require.Empty(t, sink.Batches())
	require.True(t, sink.closed)
}

// TestHubFlushOnClose ensures Close drains buffered observations before returning.
func TestHubFlushOnClose(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{
		BufferSize: 4,
		MaxBatch:   100,
		MaxWait:    time.Minute,
	}, sink)

	hub.Emit(sampleObservation(StageSessionDone))
	require.NoError(t, hub.Close(context.Background()))
	require.NoError(t, hub.Close(context.Background()))
	require.Len(t, sink.Batches(), 1)
	require.Len(t, sink.Batches()[0], 1)

	hub.Emit(sampleObservation(StageEvent))
	require.Len(t, sink.Batches(), 1)
}

func TestObservationValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, sampleObservation(StageSessionStart).Validate())
	require.NoError(t, sampleObservation(StageEvent).Validate())

	noToken := sampleObservation(StageEvent)
	noToken.Token = ""
	require.Error(t, noToken.Validate())

	badStage := sampleObservation(StageEvent)
	badStage.Stage = "LATER"
	require.Error(t, badStage.Validate())

	negative := sampleObservation(StageEvent)
	negative.Files = -1
	require.Error(t, negative.Validate())
}

type stubSink struct {
	mu      sync.Mutex
	batches [][]Observation
	closed  bool
}

func newStubSink() *stubSink {
	return &stubSink{}
}

func (s *stubSink) Consume(_ context.Context, batch []Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, append([]Observation(nil), batch...))
	return nil
}

func (s *stubSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubSink) Batches() [][]Observation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]Observation, len(s.batches))
	copy(out, s.batches)
	return out
}

func sampleObservation(stage Stage) Observation {
	obs := Observation{
		Token:     "abcdefghij0123456789",
		RequestID: "req-1",
		TS:        time.Now(),
		Stage:     stage,
		Phase:     "running",
	}
	if stage != StageSessionStart {
		obs.Kind = KindPageVisited
		obs.Text = "[页面] https://example.com"
		obs.Pages = 1
	}
	return obs
}
