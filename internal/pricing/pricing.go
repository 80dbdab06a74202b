// Package pricing enforces the per-modality, per-duration price floor
// at confirm time.
package pricing

import (
	"context"
	"errors"

	"lessonbook/internal/metrics"
)

// ErrFloorNotFound is returned by FloorTable implementations when no
// floor is configured for a modality/duration pair.
var ErrFloorNotFound = errors.New("price floor not found")

// FloorTable looks up the minimum allowed charge in cents for a
// modality/duration pair. Sourced from remote config.
type FloorTable interface {
	Lookup(ctx context.Context, modality string, durationMinutes int) (int64, error)
}

// Violation reports a price below the configured floor. Ephemeral and
// derived, never persisted.
type Violation struct {
	FloorCents int64 `json:"floor_cents"`
	BaseCents  int64 `json:"base_cents"`
}

// Guard evaluates prices against the floor table.
type Guard struct {
	table FloorTable
}

// NewGuard creates a guard over the given floor table.
func NewGuard(table FloorTable) *Guard {
	return &Guard{table: table}
}

// BaseCents computes the pro-rated lesson price in cents from an
// hourly rate, rounded to the nearest cent.
func BaseCents(hourlyRateCents int64, durationMinutes int) int64 {
	return (hourlyRateCents*int64(durationMinutes) + 30) / 60
}

// Evaluate returns a violation when the pro-rated price falls below
// the floor for the modality/duration pair, nil otherwise. A missing
// table entry means no floor applies. The check is advisory: it never
// touches the selection, only blocks the confirm action.
func (g *Guard) Evaluate(ctx context.Context, hourlyRateCents int64, durationMinutes int, modality string) (*Violation, error) {
	floor, err := g.table.Lookup(ctx, modality, durationMinutes)
	if err != nil {
		if errors.Is(err, ErrFloorNotFound) {
			return nil, nil
		}
		return nil, err
	}

	base := BaseCents(hourlyRateCents, durationMinutes)
	if base < floor {
		metrics.IncPriceFloorViolation()
		return &Violation{FloorCents: floor, BaseCents: base}, nil
	}
	return nil, nil
}

// StaticFloorTable is an in-memory FloorTable, useful for tests and
// for serving a snapshot of remote config.
type StaticFloorTable map[string]map[int]int64

func (t StaticFloorTable) Lookup(_ context.Context, modality string, durationMinutes int) (int64, error) {
	byDuration, ok := t[modality]
	if !ok {
		return 0, ErrFloorNotFound
	}
	floor, ok := byDuration[durationMinutes]
	if !ok {
		return 0, ErrFloorNotFound
	}
	return floor, nil
}
