package render

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/JakeFAU/siteclone/internal/progress"
	"github.com/JakeFAU/siteclone/internal/session"
	"github.com/JakeFAU/siteclone/internal/status"
)

// Record is one line of JSON output.
type Record struct {
	Type      string         `json:"type"`
	TS        time.Time      `json:"ts"`
	Token     string         `json:"token,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Website   string         `json:"website,omitempty"`
	Phase     session.Phase  `json:"phase,omitempty"`
	Status    string         `json:"status,omitempty"`
	Kind      progress.Kind  `json:"kind,omitempty"`
	Pages     int64          `json:"pages"`
	Files     int64          `json:"files"`
	Entry     *session.Entry `json:"entry,omitempty"`
	Archive   string         `json:"archive,omitempty"`
	Warning   string         `json:"warning,omitempty"`
	Clock     string         `json:"clock,omitempty"`
	IP        string         `json:"ip,omitempty"`
}

// JSON writes newline-delimited Records.
type JSON struct {
	mu  sync.Mutex
	enc *json.Encoder
	bar *status.Bar
	now func() time.Time
}

// NewJSON renders to w. bar may be nil.
func NewJSON(w io.Writer, bar *status.Bar) *JSON {
	return &JSON{enc: json.NewEncoder(w), bar: bar, now: time.Now}
}

// Reset implements Renderer.
func (j *JSON) Reset(s session.State) {
	rec := j.record("reset", s)
	j.write(rec)
}

// Event implements Renderer.
func (j *JSON) Event(s session.State, evt progress.Event) {
	rec := j.record("event", s)
	if evt != nil {
		rec.Kind = evt.Kind()
	}
	if e, ok := s.Log.Last(); ok {
		rec.Entry = &e
	}
	rec.Archive = archivePath(s)
	j.write(rec)
}

// Warning implements Renderer.
func (j *JSON) Warning(text string) {
	j.write(Record{Type: "warning", TS: j.now().UTC(), Warning: text})
}

// Close implements Renderer.
func (j *JSON) Close() error { return nil }

func (j *JSON) record(kind string, s session.State) Record {
	rec := Record{
		Type:      kind,
		TS:        j.now().UTC(),
		Token:     s.Token,
		RequestID: s.RequestID,
		Website:   s.Website,
		Phase:     s.Phase,
		Status:    s.StatusText(),
		Pages:     s.Pages,
		Files:     s.Files,
	}
	if j.bar != nil {
		snap := j.bar.Snapshot()
		rec.Clock, rec.IP = snap.Time, snap.IP
	}
	return rec
}

func (j *JSON) write(rec Record) {
	j.mu.Lock()
	defer j.mu.Unlock()
	// Encoding a Record cannot fail.
	_ = j.enc.Encode(rec)
}
