package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes where in a session an Observation was taken.
type Stage string

// Supported observation stages.
const (
	StageSessionStart Stage = "SESSION_START"
	StageEvent        Stage = "EVENT"
	StageSessionDone  Stage = "SESSION_DONE"
)

// Observation is a snapshot of one step of a session, published to sinks
// after the observer has applied it.
type Observation struct {
	// Token is the session channel token.
	Token string
	// RequestID correlates all observations of one download request.
	RequestID string
	// Website is the URL that was submitted, already truncated.
	Website string
	// TS is the time the observer applied the step.
	TS time.Time
	// Stage tells session boundaries apart from ordinary events.
	Stage Stage
	// Kind and Text describe the event; empty on StageSessionStart.
	Kind Kind
	Text string
	// Line and Style are the log entry the step produced.
	Line  string
	Style Style
	// Pages and Files are the session counters after the step.
	Pages int64
	Files int64
	// Phase is the session phase after the step.
	Phase string
	// Filename is set once the session completed.
	Filename string
}

// Validate performs coarse validation on Observation payloads.
func (o Observation) Validate() error {
	if o.Token == "" {
		return errors.New("token is required")
	}
	if o.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch o.Stage {
	case StageSessionStart:
	case StageEvent, StageSessionDone:
		if !o.Kind.Valid() {
			return fmt.Errorf("unknown kind %q", o.Kind)
		}
	default:
		return fmt.Errorf("unknown stage %q", o.Stage)
	}
	if o.Pages < 0 || o.Files < 0 {
		return errors.New("counters must be >= 0")
	}
	return nil
}

// Valid reports whether k names one of the event variants.
func (k Kind) Valid() bool {
	switch k {
	case KindPageVisited, KindResourcesFetched, KindConverting, KindCompleted, KindError, KindUnclassified:
		return true
	default:
		return false
	}
}
