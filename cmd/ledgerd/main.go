package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Jjjbit/ledger/internal/config"
	"github.com/Jjjbit/ledger/internal/domain"
	"github.com/Jjjbit/ledger/internal/handler"
	"github.com/Jjjbit/ledger/internal/infra/cache"
	"github.com/Jjjbit/ledger/internal/infra/memstore"
	"github.com/Jjjbit/ledger/internal/infra/observability"
	"github.com/Jjjbit/ledger/internal/port"
	"github.com/Jjjbit/ledger/internal/service"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = godotenv.Load()

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("networth_cache_ttl", cfg.NetWorthCacheTTL),
		zap.Duration("jwt_access_ttl", cfg.JWTAccessTTL),
		zap.Bool("seed_template", cfg.SeedTemplate),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "ledgerd")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Store & cache ---
	store := memstore.New()
	nwCache := cache.NewNetWorth(cfg.NetWorthCacheTTL)

	if cfg.SeedTemplate {
		if err := seedTemplateCategories(context.Background(), store); err != nil {
			logger.Fatal("failed to seed category template", zap.Error(err))
		}
		logger.Info("category template seeded")
	}

	// --- Services ---
	locks := service.NewUserLocks()
	nw := service.NewNetWorthRefresher(store, nwCache, metrics)

	svcs := handler.Services{
		Auth:         service.NewAuthService(store, cfg.JWTSecret, cfg.JWTAccessTTL, nw, logger),
		Accounts:     service.NewAccountsService(store, nw, locks, metrics, logger),
		Transactions: service.NewTransactionsService(store, nw, locks, metrics, logger),
		Categories:   service.NewCategoriesService(store, nw, locks, metrics, logger),
		Ledgers:      service.NewLedgersService(store, nw, locks, metrics, logger),
		Budgets:      service.NewBudgetsService(store, metrics, logger),
	}

	// --- Router ---
	router := handler.NewRouter(svcs, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

// seedTemplateCategories installs the default two-level tree that new
// ledgers are copied from.
func seedTemplateCategories(ctx context.Context, store port.Store) error {
	tree := []struct {
		name     string
		catType  domain.CategoryType
		children []string
	}{
		{"Salary", domain.CategoryIncome, []string{"Wages", "Bonus"}},
		{"Investments", domain.CategoryIncome, []string{"Dividends", "Interest"}},
		{"Other Income", domain.CategoryIncome, nil},
		{"Food", domain.CategoryExpense, []string{"Groceries", "Dining Out"}},
		{"Housing", domain.CategoryExpense, []string{"Rent", "Utilities"}},
		{"Transport", domain.CategoryExpense, []string{"Fuel", "Public Transit"}},
		{"Entertainment", domain.CategoryExpense, nil},
		{"Health", domain.CategoryExpense, nil},
		{"Other Expenses", domain.CategoryExpense, nil},
	}

	existing, err := store.TemplateCategories(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	now := time.Now()
	for _, root := range tree {
		r := &domain.Category{
			ID:        uuid.New().String(),
			Name:      root.name,
			Type:      root.catType,
			CreatedAt: now,
		}
		if err := store.PutCategory(ctx, r); err != nil {
			return err
		}
		for _, child := range root.children {
			c := &domain.Category{
				ID:        uuid.New().String(),
				Name:      child,
				Type:      root.catType,
				ParentID:  r.ID,
				CreatedAt: now,
			}
			if err := store.PutCategory(ctx, c); err != nil {
				return err
			}
		}
	}
	return nil
}
