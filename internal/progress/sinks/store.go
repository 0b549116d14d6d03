package sinks

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/siteclone/internal/progress"
	"github.com/JakeFAU/siteclone/internal/session"
	"github.com/JakeFAU/siteclone/internal/store"
)

// StoreSink persists session snapshots via a store.SessionRepository.
type StoreSink struct {
	repo   store.SessionRepository
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink for the provided repository.
func NewStoreSink(repo store.SessionRepository, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{repo: repo, logger: logger}
}

// Consume forwards each observation to the repository in order. It respects
// ctx deadlines and returns the first repository error.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Observation) error {
	if s == nil || s.repo == nil {
		return nil
	}
	for _, obs := range batch {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("store sink: %w", err)
		}
		if err := s.consume(ctx, obs); err != nil {
			return err
		}
	}
	return nil
}

func (s *StoreSink) consume(ctx context.Context, obs progress.Observation) error {
	entry := session.Entry{Text: obs.Line, Style: obs.Style}
	switch obs.Stage {
	case progress.StageSessionStart:
		if err := s.repo.StartSession(ctx, obs.Token, obs.RequestID, obs.Website, entry, obs.TS); err != nil {
			return fmt.Errorf("start session: %w", err)
		}
	case progress.StageEvent:
		if err := s.repo.RecordEvent(ctx, obs.RequestID, store.Update{
			Phase: obs.Phase,
			Pages: obs.Pages,
			Files: obs.Files,
			Entry: entry,
			At:    obs.TS,
		}); err != nil {
			return fmt.Errorf("record event: %w", err)
		}
	case progress.StageSessionDone:
		if err := s.repo.CompleteSession(ctx, obs.RequestID, obs.Filename, obs.TS); err != nil {
			return fmt.Errorf("complete session: %w", err)
		}
	default:
		s.logger.Debug("ignoring observation", zap.String("stage", string(obs.Stage)))
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}
