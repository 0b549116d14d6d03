// Package session holds the observable state of one download request and the
// pure transition applied for each classified progress event.
package session

import (
	"time"

	"github.com/JakeFAU/siteclone/internal/progress"
)

// Phase is the coarse lifecycle of a session as shown to the user.
type Phase string

// Session phases.
const (
	PhaseConnecting  Phase = "connecting"
	PhaseRunning     Phase = "running"
	PhaseCompressing Phase = "compressing"
	PhaseCompleted   Phase = "completed"
)

// Fixed lines the client itself writes to the log.
const (
	LineConnecting  = "Connecting to server..."
	LineCompressing = "Compressing files..."
	LineComplete    = "Download complete!"
)

// Options tunes a new State.
type Options struct {
	LogCapacity int
}

// State is the full observable state of one session. It is a value: Apply
// returns a new State and leaves the receiver untouched.
type State struct {
	Token     string    `json:"token"`
	RequestID string    `json:"request_id"`
	Website   string    `json:"website"`
	Phase     Phase     `json:"phase"`
	Pages     int64     `json:"pages"`
	Files     int64     `json:"files"`
	Log       Log       `json:"log"`
	Filename  string    `json:"filename,omitempty"`
	Loading   bool      `json:"loading"`
	Ready     bool      `json:"archive_ready"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns the reset state for a request that is about to be sent:
// counters at zero, a fresh log holding only the connecting line, and the
// loading indicator on.
func New(token, requestID, website string, now time.Time, opts Options) State {
	return State{
		Token:     token,
		RequestID: requestID,
		Website:   website,
		Phase:     PhaseConnecting,
		Log:       NewLog(opts.LogCapacity).Append(Entry{Text: LineConnecting, Style: progress.StyleInfo}),
		Loading:   true,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// Done reports whether the session reached completion.
func (s State) Done() bool {
	return s.Phase == PhaseCompleted
}

// StatusText is the short progress label for the current phase.
func (s State) StatusText() string {
	switch s.Phase {
	case PhaseConnecting:
		return "Connecting..."
	case PhaseRunning:
		return "Downloading..."
	case PhaseCompressing:
		return "Compressing..."
	case PhaseCompleted:
		return "Done"
	default:
		return ""
	}
}

// Apply returns the state after evt. A completed session is terminal and is
// returned unchanged.
func (s State) Apply(evt progress.Event, now time.Time) State {
	if s.Done() || evt == nil {
		return s
	}
	next := s
	next.UpdatedAt = now

	switch e := evt.(type) {
	case progress.Converting:
		next.Phase = PhaseCompressing
		next.Log = next.Log.Append(Entry{Text: LineCompressing, Style: progress.StyleInfo})
	case progress.Completed:
		next.Phase = PhaseCompleted
		next.Loading = false
		next.Filename = e.Filename
		next.Ready = true
		next.Log = next.Log.Append(Entry{Text: LineComplete, Style: progress.StyleSuccess})
	case progress.ErrorReported:
		next.Log = next.Log.Append(Entry{Text: e.Raw, Style: progress.StyleError})
	case progress.PageVisited:
		next.running()
		next.Pages++
		next.addFiles(e.Resources)
		next.Log = next.Log.Append(Entry{Text: e.Raw, Style: e.Style})
	case progress.ResourcesFetched:
		next.running()
		next.addFiles(e.Count)
		next.Log = next.Log.Append(Entry{Text: e.Raw, Style: e.Style})
	case progress.Unclassified:
		next.running()
		next.Log = next.Log.Append(Entry{Text: e.Raw, Style: e.Style})
	default:
		return s
	}
	return next
}

func (s *State) running() {
	if s.Phase == PhaseConnecting {
		s.Phase = PhaseRunning
	}
}

func (s *State) addFiles(n int64) {
	if n > 0 {
		s.Files += n
	}
}
