package catalog

import (
	"context"
	"fmt"

	"github.com/roach88/achievements/internal/achievement"
)

// Seeder stores catalog entries. Implemented by *store.Store.
type Seeder interface {
	UpsertPeriod(ctx context.Context, p achievement.Period) error
	UpsertDefinition(ctx context.Context, d achievement.Definition) error
}

// Seed upserts every period and definition of c. Entries already present
// are overwritten, so seeding the same catalog twice is a no-op.
func Seed(ctx context.Context, s Seeder, c *Catalog) error {
	for _, p := range c.Periods {
		if err := s.UpsertPeriod(ctx, p); err != nil {
			return fmt.Errorf("seed period %d: %w", p.ID, err)
		}
	}
	for _, d := range c.Definitions {
		if err := s.UpsertDefinition(ctx, d); err != nil {
			return fmt.Errorf("seed achievement %d: %w", d.ID, err)
		}
	}
	return nil
}
