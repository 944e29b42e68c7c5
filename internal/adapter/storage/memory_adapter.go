package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/rl1809/beer-stock/internal/core/domain"
	"github.com/rl1809/beer-stock/internal/port"
)

const lockStripes = 64

// MemoryAdapter keeps beers in process memory. Record locks are striped by ID hash, so two
// records may share a stripe but a record never has two.
type MemoryAdapter struct {
	mu     sync.RWMutex
	beers  map[string]domain.Beer
	byName map[string]string

	locks [lockStripes]sync.Mutex
	now   func() time.Time
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		beers:  make(map[string]domain.Beer),
		byName: make(map[string]string),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryAdapter) FindByName(ctx context.Context, name string) (*domain.Beer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byName[name]
	if !ok {
		return nil, nil
	}
	beer := m.beers[id]
	return &beer, nil
}

func (m *MemoryAdapter) FindByID(ctx context.Context, id string) (*domain.Beer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	beer, ok := m.beers[id]
	if !ok {
		return nil, nil
	}
	return &beer, nil
}

func (m *MemoryAdapter) FindAll(ctx context.Context) ([]domain.Beer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	beers := make([]domain.Beer, 0, len(m.beers))
	for _, b := range m.beers {
		beers = append(beers, b)
	}
	sort.Slice(beers, func(i, j int) bool {
		if beers[i].CreatedAt.Equal(beers[j].CreatedAt) {
			return beers[i].ID < beers[j].ID
		}
		return beers[i].CreatedAt.Before(beers[j].CreatedAt)
	})
	return beers, nil
}

func (m *MemoryAdapter) Insert(ctx context.Context, beer domain.Beer) (*domain.Beer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.byName[beer.Name]; taken {
		return nil, port.ErrDuplicateName
	}

	now := m.now()
	beer.ID = uuid.NewString()
	beer.Version = 0
	beer.CreatedAt = now
	beer.UpdatedAt = now

	m.beers[beer.ID] = beer
	m.byName[beer.Name] = beer.ID
	return &beer, nil
}

func (m *MemoryAdapter) Save(ctx context.Context, beer domain.Beer) (*domain.Beer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.beers[beer.ID]
	if !ok || stored.Version != beer.Version {
		return nil, port.ErrOptimisticLock
	}
	if owner, taken := m.byName[beer.Name]; taken && owner != beer.ID {
		return nil, port.ErrDuplicateName
	}

	beer.Version = stored.Version + 1
	beer.CreatedAt = stored.CreatedAt
	beer.UpdatedAt = m.now()

	delete(m.byName, stored.Name)
	m.byName[beer.Name] = beer.ID
	m.beers[beer.ID] = beer
	return &beer, nil
}

func (m *MemoryAdapter) Delete(ctx context.Context, beer domain.Beer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.beers[beer.ID]
	if !ok || stored.Version != beer.Version {
		return port.ErrOptimisticLock
	}

	delete(m.byName, stored.Name)
	delete(m.beers, beer.ID)
	return nil
}

func (m *MemoryAdapter) Atomically(ctx context.Context, id string, fn func(ctx context.Context, repo port.BeerRepository) error) error {
	lock := &m.locks[xxhash.Sum64String(id)%lockStripes]
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, lockedMemory{m})
}

// lockedMemory is the view handed to Atomically callbacks; the stripe is already held.
type lockedMemory struct {
	*MemoryAdapter
}

func (l lockedMemory) Atomically(ctx context.Context, id string, fn func(ctx context.Context, repo port.BeerRepository) error) error {
	return fn(ctx, l)
}
