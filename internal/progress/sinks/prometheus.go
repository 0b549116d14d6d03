package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/siteclone/internal/progress"
)

// PrometheusSink exports session progress metrics. Counter deltas are derived
// from the absolute counters each observation carries.
type PrometheusSink struct {
	sessionsStarted   prometheus.Counter
	sessionsCompleted prometheus.Counter
	sessionsActive    prometheus.Gauge
	events            *prometheus.CounterVec
	pages             prometheus.Counter
	files             prometheus.Counter

	tracker *sessionTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "siteclone_sessions_started_total",
			Help: "Total download sessions started.",
		}),
		sessionsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "siteclone_sessions_completed_total",
			Help: "Total download sessions that reported completion.",
		}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "siteclone_sessions_active",
			Help: "Sessions currently being observed.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "siteclone_events_total",
			Help: "Status messages received partitioned by classified kind.",
		}, []string{"kind"}),
		pages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "siteclone_pages_visited_total",
			Help: "Pages the service reported visiting.",
		}),
		files: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "siteclone_files_fetched_total",
			Help: "Resource files the service reported fetching.",
		}),
		tracker: newSessionTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.sessionsStarted,
		s.sessionsCompleted,
		s.sessionsActive,
		s.events,
		s.pages,
		s.files,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors using the provided batch. It is safe for
// concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Observation) error {
	for _, obs := range batch {
		s.consume(obs)
	}
	return nil
}

func (s *PrometheusSink) consume(obs progress.Observation) {
	switch obs.Stage {
	case progress.StageSessionStart:
		s.sessionsStarted.Inc()
		if s.tracker.start(obs.RequestID) {
			s.sessionsActive.Inc()
		}
	case progress.StageEvent:
		s.events.WithLabelValues(string(obs.Kind)).Inc()
		dPages, dFiles := s.tracker.advance(obs.RequestID, obs.Pages, obs.Files)
		if dPages > 0 {
			s.pages.Add(float64(dPages))
		}
		if dFiles > 0 {
			s.files.Add(float64(dFiles))
		}
	case progress.StageSessionDone:
		s.sessionsCompleted.Inc()
		if s.tracker.complete(obs.RequestID) {
			s.sessionsActive.Dec()
		}
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type counters struct {
	pages int64
	files int64
}

type sessionTracker struct {
	mu      sync.Mutex
	running map[string]counters
}

func newSessionTracker() *sessionTracker {
	return &sessionTracker{running: make(map[string]counters)}
}

func (t *sessionTracker) start(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = counters{}
	return true
}

// advance records the latest counters and returns how far they moved.
func (t *sessionTracker) advance(id string, pages, files int64) (int64, int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev, ok := t.running[id]
	if !ok {
		return 0, 0
	}
	next := prev
	if pages > next.pages {
		next.pages = pages
	}
	if files > next.files {
		next.files = files
	}
	t.running[id] = next
	return next.pages - prev.pages, next.files - prev.files
}

func (t *sessionTracker) complete(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
