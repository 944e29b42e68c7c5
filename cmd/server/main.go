package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/rl1809/beer-stock/internal/adapter/handler"
	"github.com/rl1809/beer-stock/internal/adapter/messaging"
	"github.com/rl1809/beer-stock/internal/adapter/storage"
	"github.com/rl1809/beer-stock/internal/config"
	"github.com/rl1809/beer-stock/internal/core/service"
	"github.com/rl1809/beer-stock/internal/platform/observability"
	"github.com/rl1809/beer-stock/internal/port"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := observability.NewLogger(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, observability.TracingConfig{
		ServiceName:    config.ServiceName,
		ServiceVersion: config.ServiceVersion,
		Endpoint:       cfg.Telemetry.OTLPEndpoint,
		Insecure:       cfg.Telemetry.Insecure,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	repo, closeStore, err := storage.Open(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	var publisher port.EventPublisher = port.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher := messaging.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.BatchTimeout)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
		logger.Info("publishing change events", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	beerService := service.NewBeerService(repo, publisher, logger)

	// gRPC server
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(handler.TraceInterceptor()))
	handler.RegisterBeerServiceServer(grpcServer, handler.NewGRPCHandler(beerService, metrics, logger))

	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.GRPC.Addr, err)
	}

	// HTTP server
	httpServer := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: handler.NewHTTPHandler(beerService, metrics, logger).Routes(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPC.Addr))
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP shutdown", zap.Error(err))
		}
		logger.Info("HTTP server stopped")

		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")
		return nil
	})

	return g.Wait()
}
