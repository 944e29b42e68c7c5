package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/beer-stock/internal/core/domain"
	"github.com/rl1809/beer-stock/internal/port"
)

const tracerName = "github.com/rl1809/beer-stock/internal/core/service"

type BeerService struct {
	repo      port.BeerRepository
	publisher port.EventPublisher
	logger    *zap.Logger
	tracer    trace.Tracer
}

func NewBeerService(repo port.BeerRepository, publisher port.EventPublisher, logger *zap.Logger) *BeerService {
	if publisher == nil {
		publisher = port.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BeerService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		tracer:    otel.Tracer(tracerName),
	}
}

func (s *BeerService) Create(ctx context.Context, in domain.BeerInput) (*domain.Beer, error) {
	ctx, span := s.tracer.Start(ctx, "BeerService.Create", trace.WithAttributes(
		attribute.String("beer.name", in.Name),
		attribute.Int("beer.max", in.Max),
		attribute.Int("beer.quantity", in.Quantity),
	))
	defer span.End()

	existing, err := s.repo.FindByName(ctx, in.Name)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("find beer by name: %w", err))
	}
	if existing != nil {
		return nil, s.fail(span, fmt.Errorf("%w: %s", ErrAlreadyExists, in.Name))
	}

	beer, err := s.repo.Insert(ctx, domain.NewBeer(in))
	if errors.Is(err, port.ErrDuplicateName) {
		return nil, s.fail(span, fmt.Errorf("%w: %s", ErrAlreadyExists, in.Name))
	}
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("insert beer: %w", err))
	}

	span.SetAttributes(attribute.String("beer.id", beer.ID))
	s.logger.Info("beer created", zap.String("beer_id", beer.ID), zap.String("name", beer.Name))
	s.publish(ctx, domain.BeerCreated, *beer, 0)
	return beer, nil
}

func (s *BeerService) GetByName(ctx context.Context, name string) (*domain.Beer, error) {
	ctx, span := s.tracer.Start(ctx, "BeerService.GetByName", trace.WithAttributes(
		attribute.String("beer.name", name),
	))
	defer span.End()

	beer, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("find beer by name: %w", err))
	}
	if beer == nil {
		return nil, s.fail(span, fmt.Errorf("%w: name %s", ErrNotFound, name))
	}
	return beer, nil
}

func (s *BeerService) List(ctx context.Context) ([]domain.Beer, error) {
	ctx, span := s.tracer.Start(ctx, "BeerService.List")
	defer span.End()

	beers, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("find all beers: %w", err))
	}
	if beers == nil {
		beers = []domain.Beer{}
	}
	span.SetAttributes(attribute.Int("beer.count", len(beers)))
	return beers, nil
}

func (s *BeerService) Delete(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "BeerService.Delete", trace.WithAttributes(
		attribute.String("beer.id", id),
	))
	defer span.End()

	var deleted domain.Beer
	err := s.repo.Atomically(ctx, id, func(ctx context.Context, repo port.BeerRepository) error {
		current, err := findExisting(ctx, repo, id)
		if err != nil {
			return err
		}
		if err := repo.Delete(ctx, *current); err != nil {
			return fmt.Errorf("delete beer %s: %w", id, err)
		}
		deleted = *current
		return nil
	})
	if err != nil {
		return s.fail(span, err)
	}

	s.logger.Info("beer deleted", zap.String("beer_id", id), zap.String("name", deleted.Name))
	s.publish(ctx, domain.BeerDeleted, deleted, 0)
	return nil
}

// Replace overwrites every field except the identifier. The new quantity and max are taken as
// given; they are not checked against the record being replaced.
func (s *BeerService) Replace(ctx context.Context, id string, in domain.BeerInput) (*domain.Beer, error) {
	ctx, span := s.tracer.Start(ctx, "BeerService.Replace", trace.WithAttributes(
		attribute.String("beer.id", id),
		attribute.String("beer.name", in.Name),
	))
	defer span.End()

	var replaced *domain.Beer
	err := s.repo.Atomically(ctx, id, func(ctx context.Context, repo port.BeerRepository) error {
		current, err := findExisting(ctx, repo, id)
		if err != nil {
			return err
		}
		saved, err := repo.Save(ctx, current.Overwrite(in))
		if errors.Is(err, port.ErrDuplicateName) {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, in.Name)
		}
		if err != nil {
			return fmt.Errorf("save beer %s: %w", id, err)
		}
		replaced = saved
		return nil
	})
	if err != nil {
		return nil, s.fail(span, err)
	}

	s.logger.Info("beer replaced", zap.String("beer_id", id), zap.String("name", replaced.Name))
	s.publish(ctx, domain.BeerReplaced, *replaced, 0)
	return replaced, nil
}

func (s *BeerService) Increment(ctx context.Context, id string, delta int) (*domain.Beer, error) {
	return s.adjust(ctx, "BeerService.Increment", domain.BeerIncremented, id, delta, func(b domain.Beer) (int, error) {
		next, ok := b.Increment(delta)
		if !ok {
			return 0, fmt.Errorf("%w: %d + %d > max %d", ErrStockExceeded, b.Quantity, delta, b.Max)
		}
		return next, nil
	})
}

func (s *BeerService) Decrement(ctx context.Context, id string, delta int) (*domain.Beer, error) {
	return s.adjust(ctx, "BeerService.Decrement", domain.BeerDecremented, id, delta, func(b domain.Beer) (int, error) {
		next, ok := b.Decrement(delta)
		if !ok {
			return 0, fmt.Errorf("%w: %d - %d < 0", ErrNegativeStock, b.Quantity, delta)
		}
		return next, nil
	})
}

// adjust reads, bounds-checks and commits a new quantity as one unit under the record lock.
func (s *BeerService) adjust(
	ctx context.Context,
	spanName string,
	eventType domain.BeerEventType,
	id string,
	delta int,
	next func(domain.Beer) (int, error),
) (*domain.Beer, error) {
	ctx, span := s.tracer.Start(ctx, spanName, trace.WithAttributes(
		attribute.String("beer.id", id),
		attribute.Int("stock.delta", delta),
	))
	defer span.End()

	if delta < 0 {
		return nil, s.fail(span, fmt.Errorf("%w: %d", ErrInvalidQuantity, delta))
	}

	var updated *domain.Beer
	err := s.repo.Atomically(ctx, id, func(ctx context.Context, repo port.BeerRepository) error {
		current, err := findExisting(ctx, repo, id)
		if err != nil {
			return err
		}
		quantity, err := next(*current)
		if err != nil {
			return err
		}
		current.Quantity = quantity
		saved, err := repo.Save(ctx, *current)
		if err != nil {
			return fmt.Errorf("save beer %s: %w", id, err)
		}
		updated = saved
		return nil
	})
	if err != nil {
		return nil, s.fail(span, err)
	}

	span.SetAttributes(attribute.Int("stock.quantity", updated.Quantity))
	s.logger.Debug("beer stock adjusted",
		zap.String("beer_id", id),
		zap.String("event", string(eventType)),
		zap.Int("delta", delta),
		zap.Int("quantity", updated.Quantity),
		zap.Int("max", updated.Max),
	)
	s.publish(ctx, eventType, *updated, delta)
	return updated, nil
}

func findExisting(ctx context.Context, repo port.BeerRepository, id string) (*domain.Beer, error) {
	beer, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find beer %s: %w", id, err)
	}
	if beer == nil {
		return nil, fmt.Errorf("%w: id %s", ErrNotFound, id)
	}
	return beer, nil
}

func (s *BeerService) fail(span trace.Span, err error) error {
	if IsDomainError(err) {
		span.SetAttributes(attribute.String("beer.outcome", err.Error()))
		return err
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if port.IsTransient(err) {
		s.logger.Warn("transient store failure", zap.Error(err))
	} else {
		s.logger.Error("store failure", zap.Error(err))
	}
	return err
}

func (s *BeerService) publish(ctx context.Context, eventType domain.BeerEventType, beer domain.Beer, delta int) {
	event := domain.BeerEvent{
		Type:       eventType,
		Beer:       beer,
		Delta:      delta,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish beer event failed",
			zap.String("event", string(eventType)),
			zap.String("beer_id", beer.ID),
			zap.Error(err),
		)
	}
}
