package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rl1809/beer-stock/internal/adapter/storage"
	"github.com/rl1809/beer-stock/internal/config"
	"github.com/rl1809/beer-stock/internal/core/domain"
	"github.com/rl1809/beer-stock/internal/core/service"
	"github.com/rl1809/beer-stock/internal/platform/observability"
)

type result struct {
	success  atomic.Int32
	rejected atomic.Int32
	failed   atomic.Int32
}

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	totalRequests := flag.Int("requests", 50, "concurrent adjustments per phase")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := observability.NewLogger("warn", false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx := context.Background()

	repo, closeStore, err := storage.Open(ctx, cfg.Store, logger)
	if err != nil {
		logger.Fatal("open store", zap.Error(err))
	}
	defer closeStore()

	beerService := service.NewBeerService(repo, nil, logger)

	// One short of the request count so exactly one increment must be rejected.
	capacity := *totalRequests - 1
	beer, err := beerService.Create(ctx, domain.BeerInput{
		Name:     "stress-" + uuid.NewString()[:8],
		Brand:    "Stress",
		Type:     domain.BeerTypeLager,
		Max:      capacity,
		Quantity: 0,
	})
	if err != nil {
		logger.Fatal("create beer", zap.Error(err))
	}
	defer beerService.Delete(ctx, beer.ID)

	passed := true

	inc, elapsed := hammer(*totalRequests, func() error {
		_, err := beerService.Increment(ctx, beer.ID, 1)
		return err
	}, service.ErrStockExceeded)
	passed = report("INCREMENT", cfg.Store.Driver, capacity, *totalRequests, inc, elapsed) && passed
	passed = checkQuantity(ctx, beerService, beer.Name, int(inc.success.Load())) && passed

	dec, elapsed := hammer(*totalRequests, func() error {
		_, err := beerService.Decrement(ctx, beer.ID, 1)
		return err
	}, service.ErrNegativeStock)
	passed = report("DECREMENT", cfg.Store.Driver, int(inc.success.Load()), *totalRequests, dec, elapsed) && passed
	passed = checkQuantity(ctx, beerService, beer.Name, int(inc.success.Load())-int(dec.success.Load())) && passed

	if !passed {
		os.Exit(1)
	}
}

func hammer(n int, call func() error, rejection error) (*result, time.Duration) {
	var res result
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			err := call()
			switch {
			case err == nil:
				res.success.Add(1)
			case errors.Is(err, rejection):
				res.rejected.Add(1)
			default:
				res.failed.Add(1)
			}
		}()
	}

	wg.Wait()
	return &res, time.Since(start)
}

func report(phase, driver string, capacity, total int, res *result, elapsed time.Duration) bool {
	success := int(res.success.Load())
	rejected := int(res.rejected.Load())
	failed := int(res.failed.Load())

	fmt.Printf("========== %s RESULTS (%s) ==========\n", phase, driver)
	fmt.Printf("Capacity:         %d\n", capacity)
	fmt.Printf("Total Requests:   %d\n", total)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Rejected:         %d\n", rejected)
	fmt.Printf("Failed:           %d\n", failed)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	// Lock timeouts count as failures; the counter bound must hold either way.
	if success > capacity || (failed == 0 && success != capacity) {
		fmt.Printf("FAIL: expected %d success/%d rejected, got %d/%d\n", capacity, total-capacity, success, rejected)
		return false
	}
	fmt.Printf("PASS: %d succeeded, %d rejected, %d transient failures\n", success, rejected, failed)
	return true
}

func checkQuantity(ctx context.Context, svc *service.BeerService, name string, want int) bool {
	beer, err := svc.GetByName(ctx, name)
	if err != nil {
		fmt.Printf("FAIL: read back beer: %v\n", err)
		return false
	}
	fmt.Printf("Final Quantity:   %d\n", beer.Quantity)
	if beer.Quantity != want {
		fmt.Printf("FAIL: expected quantity %d, got %d\n", want, beer.Quantity)
		return false
	}
	if beer.Quantity < 0 || beer.Quantity > beer.Max {
		fmt.Printf("FAIL: quantity %d outside [0, %d]\n", beer.Quantity, beer.Max)
		return false
	}
	fmt.Printf("PASS: quantity %d within [0, %d]\n", beer.Quantity, beer.Max)
	return true
}
