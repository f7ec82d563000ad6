package cache

import (
	"context"
	"fmt"

	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/domain"
)

// RoundPointer publishes the period currently accepting wagers under a
// single key.
type RoundPointer struct {
	store Store
	key   string
}

// NewRoundPointer returns a RoundPointer writing key in store.
func NewRoundPointer(store Store, key string) *RoundPointer {
	return &RoundPointer{store: store, key: key}
}

// SetCurrent records period as the open round.
func (p *RoundPointer) SetCurrent(ctx context.Context, period domain.Period) error {
	if err := p.store.Set(ctx, p.key, []byte(period.String()), 0); err != nil {
		return fmt.Errorf("cache.RoundPointer.SetCurrent: %w", err)
	}
	return nil
}

// Current returns the open round, or 0 when none has been published.
func (p *RoundPointer) Current(ctx context.Context) (domain.Period, error) {
	b, ok, err := p.store.Get(ctx, p.key)
	if err != nil {
		return 0, fmt.Errorf("cache.RoundPointer.Current: %w", err)
	}
	if !ok {
		return 0, nil
	}
	period, err := domain.ParsePeriod(string(b))
	if err != nil {
		return 0, fmt.Errorf("cache.RoundPointer.Current: %w", err)
	}
	return period, nil
}
