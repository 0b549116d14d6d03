package progress

import "context"

// Sink consumes batches of observations. Implementations must be safe for
// repeated calls, honor ctx deadlines, and may be invoked concurrently.
type Sink interface {
	Consume(ctx context.Context, batch []Observation) error
	Close(ctx context.Context) error
}

// Emitter publishes individual observations; Hub satisfies this interface so
// the observer stays agnostic about buffering and persistence.
type Emitter interface {
	Emit(obs Observation)
}

// NopEmitter discards everything.
type NopEmitter struct{}

// Emit implements Emitter.
func (NopEmitter) Emit(Observation) {}
