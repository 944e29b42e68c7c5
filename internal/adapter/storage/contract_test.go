package storage

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"

	"github.com/rl1809/beer-stock/internal/core/domain"
	"github.com/rl1809/beer-stock/internal/port"
)

// runRepositoryContract exercises the record store contract against any backend. Names are
// randomised so the suite can run against shared databases.
func runRepositoryContract(t *testing.T, repo port.BeerRepository) {
	t.Run("InsertAndFind", func(t *testing.T) { testInsertAndFind(t, repo) })
	t.Run("InsertDuplicateName", func(t *testing.T) { testInsertDuplicateName(t, repo) })
	t.Run("SaveOptimisticLock", func(t *testing.T) { testSaveOptimisticLock(t, repo) })
	t.Run("SaveRenameConflict", func(t *testing.T) { testSaveRenameConflict(t, repo) })
	t.Run("DeleteVisible", func(t *testing.T) { testDeleteVisible(t, repo) })
	t.Run("AtomicallyNoLostUpdate", func(t *testing.T) { testAtomicallyNoLostUpdate(t, repo) })
}

func newTestBeer(max, quantity int) domain.Beer {
	return domain.Beer{
		Name:     "contract-" + uuid.NewString()[:8],
		Brand:    "Ambev",
		Type:     domain.BeerTypeLager,
		Max:      max,
		Quantity: quantity,
	}
}

func testInsertAndFind(t *testing.T, repo port.BeerRepository) {
	ctx := context.Background()

	beer, err := repo.Insert(ctx, newTestBeer(50, 10))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	defer repo.Delete(ctx, *beer)

	if beer.ID == "" {
		t.Fatal("expected assigned ID")
	}

	byID, err := repo.FindByID(ctx, beer.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if byID == nil || byID.Name != beer.Name || byID.Quantity != 10 || byID.Max != 50 {
		t.Errorf("unexpected beer by id: %+v", byID)
	}

	byName, err := repo.FindByName(ctx, beer.Name)
	if err != nil {
		t.Fatalf("FindByName failed: %v", err)
	}
	if byName == nil || byName.ID != beer.ID {
		t.Errorf("unexpected beer by name: %+v", byName)
	}

	missing, err := repo.FindByID(ctx, uuid.NewString())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for nonexistent beer")
	}

	all, err := repo.FindAll(ctx)
	if err != nil {
		t.Fatalf("FindAll failed: %v", err)
	}
	found := false
	for _, b := range all {
		if b.ID == beer.ID {
			found = true
		}
	}
	if !found {
		t.Error("inserted beer missing from FindAll")
	}
}

func testInsertDuplicateName(t *testing.T, repo port.BeerRepository) {
	ctx := context.Background()

	first, err := repo.Insert(ctx, newTestBeer(50, 10))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	defer repo.Delete(ctx, *first)

	dup := newTestBeer(20, 1)
	dup.Name = first.Name
	_, err = repo.Insert(ctx, dup)
	if !errors.Is(err, port.ErrDuplicateName) {
		t.Errorf("expected ErrDuplicateName, got: %v", err)
	}
}

func testSaveOptimisticLock(t *testing.T, repo port.BeerRepository) {
	ctx := context.Background()

	beer, err := repo.Insert(ctx, newTestBeer(100, 10))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// Update with correct version
	update := *beer
	update.Quantity = 90
	saved, err := repo.Save(ctx, update)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if saved.Version != beer.Version+1 {
		t.Errorf("expected version %d, got %d", beer.Version+1, saved.Version)
	}

	// Try update with stale version
	_, err = repo.Save(ctx, update)
	if !errors.Is(err, port.ErrOptimisticLock) {
		t.Errorf("expected ErrOptimisticLock, got: %v", err)
	}

	stored, _ := repo.FindByID(ctx, beer.ID)
	if stored.Quantity != 90 {
		t.Errorf("expected quantity 90, got %d", stored.Quantity)
	}

	if err := repo.Delete(ctx, *beer); !errors.Is(err, port.ErrOptimisticLock) {
		t.Errorf("expected ErrOptimisticLock on stale delete, got: %v", err)
	}
	if err := repo.Delete(ctx, *saved); err != nil {
		t.Errorf("Delete failed: %v", err)
	}
}

func testSaveRenameConflict(t *testing.T, repo port.BeerRepository) {
	ctx := context.Background()

	a, err := repo.Insert(ctx, newTestBeer(50, 1))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	defer repo.Delete(ctx, *a)
	b, err := repo.Insert(ctx, newTestBeer(50, 1))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	rename := *b
	rename.Name = a.Name
	if _, err := repo.Save(ctx, rename); !errors.Is(err, port.ErrDuplicateName) {
		t.Errorf("expected ErrDuplicateName, got: %v", err)
	}

	// renaming to a fresh name frees the old one
	rename.Name = b.Name + "-renamed"
	saved, err := repo.Save(ctx, rename)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	defer repo.Delete(ctx, *saved)

	old, _ := repo.FindByName(ctx, b.Name)
	if old != nil {
		t.Error("old name should no longer resolve")
	}
	renamed, _ := repo.FindByName(ctx, rename.Name)
	if renamed == nil || renamed.ID != b.ID {
		t.Errorf("expected renamed beer, got %+v", renamed)
	}
}

func testDeleteVisible(t *testing.T, repo port.BeerRepository) {
	ctx := context.Background()

	beer, err := repo.Insert(ctx, newTestBeer(50, 10))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := repo.Delete(ctx, *beer); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	byID, _ := repo.FindByID(ctx, beer.ID)
	byName, _ := repo.FindByName(ctx, beer.Name)
	if byID != nil || byName != nil {
		t.Error("deleted beer still visible")
	}

	// the name is free again
	again := newTestBeer(50, 10)
	again.Name = beer.Name
	reinserted, err := repo.Insert(ctx, again)
	if err != nil {
		t.Fatalf("re-insert failed: %v", err)
	}
	repo.Delete(ctx, *reinserted)
}

func testAtomicallyNoLostUpdate(t *testing.T, repo port.BeerRepository) {
	ctx := context.Background()
	workers := 20

	beer, err := repo.Insert(ctx, newTestBeer(500, 0))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	var failCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Atomically(ctx, beer.ID, func(ctx context.Context, tx port.BeerRepository) error {
				current, err := tx.FindByID(ctx, beer.ID)
				if err != nil {
					return err
				}
				current.Quantity++
				_, err = tx.Save(ctx, *current)
				return err
			})
			if err != nil {
				failCount.Add(1)
				t.Errorf("Atomically failed: %v", err)
			}
		}()
	}
	wg.Wait()

	stored, err := repo.FindByID(ctx, beer.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if want := workers - int(failCount.Load()); stored.Quantity != want {
		t.Errorf("expected quantity %d, got %d", want, stored.Quantity)
	}
	repo.Delete(ctx, *stored)
}
