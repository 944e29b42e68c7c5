package port

import (
	"context"

	"github.com/rl1809/beer-stock/internal/core/domain"
)

type EventPublisher interface {
	// Publish delivers a committed change. Failures never undo the change.
	Publish(ctx context.Context, event domain.BeerEvent) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, domain.BeerEvent) error { return nil }
