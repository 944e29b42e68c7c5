package port

import (
	"context"
	"errors"

	"github.com/rl1809/beer-stock/internal/core/domain"
)

// Transient store failures. Callers may retry the whole operation.
var (
	ErrOptimisticLock = errors.New("optimistic lock conflict")
	ErrLockTimeout    = errors.New("record lock wait timed out")
)

// ErrDuplicateName is returned by Insert and Save when another live beer already holds the name.
var ErrDuplicateName = errors.New("duplicate beer name")

type BeerRepository interface {
	// FindByName returns nil when no live beer has the name.
	FindByName(ctx context.Context, name string) (*domain.Beer, error)

	// FindByID returns nil when no live beer has the id.
	FindByID(ctx context.Context, id string) (*domain.Beer, error)

	FindAll(ctx context.Context) ([]domain.Beer, error)

	// Insert assigns the identifier, version and timestamps of a new beer
	Insert(ctx context.Context, beer domain.Beer) (*domain.Beer, error)

	// Save overwrites the beer with the same ID, with version check for optimistic locking
	Save(ctx context.Context, beer domain.Beer) (*domain.Beer, error)

	// Delete removes the beer with the same ID, with version check for optimistic locking
	Delete(ctx context.Context, beer domain.Beer) error

	// Atomically runs fn holding exclusive access to the beer keyed by id, from the first read
	// until the last write. fn writes as its final step; transactional stores also discard
	// its writes when it returns an error.
	Atomically(ctx context.Context, id string, fn func(ctx context.Context, repo BeerRepository) error) error
}

// IsTransient reports whether err is a store conflict that a caller may retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrOptimisticLock) || errors.Is(err, ErrLockTimeout)
}
