package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	"github.com/rl1809/lending-ledger/internal/adapter/handler"
	"github.com/rl1809/lending-ledger/internal/adapter/storage"
	"github.com/rl1809/lending-ledger/internal/config"
	"github.com/rl1809/lending-ledger/internal/core/domain"
	"github.com/rl1809/lending-ledger/internal/core/service"
	"github.com/rl1809/lending-ledger/internal/port"
)

// seedableStore is a store that can bootstrap its catalog.
type seedableStore interface {
	port.Store
	Seed(ctx context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize store
	store, db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}
	logger.Info("store ready", "driver", cfg.DBDriver)

	if cfg.Seed {
		if err := store.Seed(ctx); err != nil {
			return err
		}
	}

	opts := []service.Option{
		service.WithLogger(logger),
		service.WithEventQueue(cfg.QueueSize),
	}

	// Initialize Redis
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			PoolSize: 100,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		defer rdb.Close()
		logger.Info("connected to redis", "addr", cfg.RedisAddr)

		opts = append(opts, service.WithCache(storage.NewRedisAdapter(rdb)))
	}

	// Initialize service
	ledgerService := service.NewLedgerService(store, opts...)

	// Start worker pool
	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			workerLoop(id, ledgerService.GetEventQueue(), ledgerService, logger)
		}(i)
	}
	logger.Info("started workers", "count", cfg.Workers)

	// Initialize gRPC server
	grpcServer := grpc.NewServer()
	grpcServer.RegisterService(&handler.LedgerServiceDesc, handler.NewGRPCHandler(ledgerService))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}

	go func() {
		logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", "error", err)
		}
	}()

	// Initialize HTTP server
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.NewHTTPHandler(ledgerService).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown", "error", err)
	}
	logger.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	// Close event queue and wait for workers
	ledgerService.Close()
	wg.Wait()
	logger.Info("workers stopped")

	return nil
}

func openStore(ctx context.Context, cfg config.Config) (seedableStore, *sqlx.DB, error) {
	if cfg.DBDriver == config.DriverMemory {
		return storage.NewMemoryStore(), nil, nil
	}

	db, err := storage.OpenDB(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, nil, err
	}

	store, err := storage.NewSQLStore(db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return store, db, nil
}

// workerLoop mirrors committed ledger changes into the availability cache.
func workerLoop(id int, queue <-chan domain.LedgerEvent, ledgerService *service.LedgerService, logger *slog.Logger) {
	for event := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)

		if err := ledgerService.SyncAvailability(ctx, event); err != nil {
			logger.Warn("availability sync failed",
				"worker", id, "record_id", event.RecordID, "book_id", event.BookID, "error", err)
		} else {
			logger.Debug("availability synced",
				"worker", id, "kind", string(event.Kind), "book_id", event.BookID, "quantity", event.Quantity)
		}

		cancel()
	}
}
