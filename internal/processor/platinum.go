package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/achievements/internal/achievement"
	"github.com/roach88/achievements/internal/store"
)

// checkPlatinum unlocks the platinum achievement once the user holds every
// active non-platinum achievement of the catalog for the period.
//
// It recounts from the store on every run, so duplicate or out of order
// deliveries converge on the same answer.
func (p *Processor) checkPlatinum(ctx context.Context, logger *slog.Logger, runID string, in achievement.Input) ([]achievement.Event, error) {
	has, err := p.store.HoldsPlatinum(ctx, in.UserID, in.PeriodID)
	if err != nil {
		return nil, fmt.Errorf("platinum: %w", err)
	}
	if has {
		logger.Debug("Platinum already achieved")
		return nil, nil
	}

	total, err := p.store.CountCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("platinum: %w", err)
	}
	held, err := p.store.CountHeld(ctx, in.UserID, in.PeriodID)
	if err != nil {
		return nil, fmt.Errorf("platinum: %w", err)
	}
	if total == 0 || held < total {
		logger.Debug("achievements still to earn platinum", "remaining", total-held)
		return nil, nil
	}

	def, err := p.store.PlatinumDefinition(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, newPlatinumNotFound(in.UserID, in.PeriodID, err)
		}
		return nil, fmt.Errorf("platinum: %w", err)
	}

	created, err := achievement.NewCreatedEvent(def, in.UserID, in.PeriodID, 0, in.WorkoutDate).WithID()
	if err != nil {
		return nil, err
	}
	platinum, err := created.AsPlatinum().WithID()
	if err != nil {
		return nil, err
	}

	stored, err := p.store.CommitOutcome(ctx, store.Commit{
		ProcessedAt: p.now(),
		RunID:       runID,
		Unlocks: []store.Unlock{{
			UserID:        in.UserID,
			PeriodID:      in.PeriodID,
			AchievementID: def.ID,
			AchievedAt:    in.WorkoutDate,
			Events:        []achievement.Event{created, platinum},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("platinum: %w", err)
	}
	if len(stored.Events) > 0 {
		logger.Info("platinum unlocked", "achievement_id", def.ID, "held", held)
	}
	return stored.Events, nil
}
