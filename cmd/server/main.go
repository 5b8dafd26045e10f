package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"cafepos/internal/cache"
	"cafepos/internal/config"
	"cafepos/internal/domain"
	"cafepos/internal/httpapi"
	"cafepos/internal/logger"
	"cafepos/internal/service"
	"cafepos/internal/store"
	"cafepos/internal/store/memory"
	pgstore "cafepos/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.ForEnvironment(cfg.AppEnv, cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = log.Sync() }()

	if err := validateSecurityConfig(cfg); err != nil {
		if cfg.IsProduction() {
			log.Fatal("invalid security configuration", zap.Error(err))
		}
		log.Warn("weak security configuration, acceptable only outside production", zap.Error(err))
	}

	if err := run(cfg, log); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("postgres unavailable and DATABASE_URL is set, refusing in-memory fallback: %w", err)
		}
		closers = append(closers, pg.Close)
		if cfg.DatabaseAutoMigrate {
			if err := pgstore.Migrate(pg.DB(), log.Named("migrate")); err != nil {
				return err
			}
		}
		seeded, err := pg.SeedProducts(ctx, memory.SampleProducts())
		if err != nil {
			return fmt.Errorf("seed products: %w", err)
		}
		if err := seedAccounts(ctx, pg, cfg); err != nil {
			return fmt.Errorf("seed accounts: %w", err)
		}
		repo = pg
		log.Info("repository: postgres", zap.Int("seeded_products", seeded))
	} else {
		repo = memory.NewSeeded(memory.SeedCredentials{
			AdminPassword:   cfg.SeedAdminPassword,
			CashierPassword: cfg.SeedCashierPassword,
		}, log.Named("memory"))
		log.Info("repository: in-memory")
	}

	deps := service.Dependencies{
		KPICache: cache.NewMemoryKPICache(),
		Logger:   log,
	}
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Warn("redis unavailable, using in-process kpi cache and store sequences", zap.Error(err))
			_ = redisCache.Close()
		} else {
			deps.KPICache = redisCache
			deps.Sequencer = redisCache
			deps.Cache = redisCache
			closers = append(closers, redisCache.Close)
			log.Info("cache: redis", zap.String("addr", cfg.RedisAddr))
		}
	} else {
		log.Info("cache: in-process")
	}

	svc := service.New(repo, deps, service.Options{
		TaxRate:           cfg.TaxRate,
		Location:          cfg.Location,
		KPICacheTTL:       cfg.KPICacheTTL,
		LowStockThreshold: cfg.LowStockThreshold,
		ReportPageSize:    cfg.ReportPageSize,
		ManagerPIN:        cfg.ManagerPIN,
	})
	auth := httpapi.NewAuthManager(ctx, cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo, log.Named("auth"))
	api := httpapi.New(svc, auth, cfg.AllowedOrigin, log.Named("http"))

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("cafe pos listening",
			zap.String("addr", cfg.Address()),
			zap.String("tax_rate", cfg.TaxRate.String()),
			zap.String("timezone", cfg.BusinessTimezone),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sig:
		log.Info("shutting down", zap.String("signal", s.String()))
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown error", zap.Error(err))
	}
	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Warn("close error", zap.Error(err))
		}
	}

	log.Info("server stopped")
	return nil
}

// seedAccounts creates the admin and cashier logins on an empty user table.
func seedAccounts(ctx context.Context, users httpapi.UserStore, cfg config.Config) error {
	existing, err := users.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	accounts := []struct {
		username string
		password string
		role     string
	}{
		{"admin", cfg.SeedAdminPassword, domain.RoleAdmin},
		{"cashier", cfg.SeedCashierPassword, domain.RoleCashier},
	}
	for _, a := range accounts {
		if a.password == "" {
			return fmt.Errorf("SEED_%s_PASSWORD is required to seed an empty user table", strings.ToUpper(a.username))
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(a.password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		err = users.CreateUser(ctx, domain.UserAccount{
			Username:  a.username,
			Password:  string(hash),
			Role:      a.role,
			Active:    true,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil && !errors.Is(err, store.ErrConflict) {
			return err
		}
	}
	return nil
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if len(cfg.ManagerPIN) < 6 {
		return fmt.Errorf("MANAGER_PIN must be set and at least 6 digits")
	}
	if err := validatePINStrength(cfg.ManagerPIN); err != nil {
		return fmt.Errorf("MANAGER_PIN is too weak: %w", err)
	}
	return nil
}

// validatePINStrength rejects PINs that repeat one digit, run sequentially
// in either direction, or appear on a short list of common choices.
func validatePINStrength(pin string) error {
	known := map[string]bool{
		"123456": true, "654321": true, "121212": true, "112233": true, "123123": true,
	}
	if known[pin] {
		return fmt.Errorf("common PIN not allowed")
	}

	allSame := true
	for i := 1; i < len(pin); i++ {
		if pin[i] != pin[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("all-same-digit PIN not allowed")
	}

	ascending, descending := true, true
	for i := 1; i < len(pin); i++ {
		diff := int(pin[i]) - int(pin[i-1])
		if diff != 1 {
			ascending = false
		}
		if diff != -1 {
			descending = false
		}
	}
	if ascending || descending {
		return fmt.Errorf("sequential PIN not allowed")
	}
	return nil
}
