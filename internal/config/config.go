package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	AppEnv                string
	LogLevel              string
	LogFormat             string
	DatabaseURL           string
	DatabaseAutoMigrate   bool
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	TaxRate               decimal.Decimal
	BusinessTimezone      string
	Location              *time.Location
	KPICacheTTL           time.Duration
	LowStockThreshold     int
	ReportPageSize        int
	AuthSecret            string
	AccessTokenTTLMinutes int
	ManagerPIN            string
	SeedAdminPassword     string
	SeedCashierPassword   string
}

// Load reads configuration from the environment, after merging a .env file
// when one is present in the working directory.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("PORT", "8080")
	v.SetDefault("ALLOWED_ORIGIN", "http://127.0.0.1:3000")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DATABASE_AUTO_MIGRATE", true)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("TAX_RATE", "0.08")
	v.SetDefault("BUSINESS_TIMEZONE", "UTC")
	v.SetDefault("KPI_CACHE_TTL_SECONDS", 15)
	v.SetDefault("LOW_STOCK_THRESHOLD", 10)
	v.SetDefault("REPORT_PAGE_SIZE", 200)
	v.SetDefault("AUTH_SECRET", "")
	v.SetDefault("ACCESS_TOKEN_TTL_MINUTES", 480)
	v.SetDefault("MANAGER_PIN", "")
	v.SetDefault("SEED_ADMIN_PASSWORD", "")
	v.SetDefault("SEED_CASHIER_PASSWORD", "")
	v.AutomaticEnv()

	taxRate, err := decimal.NewFromString(strings.TrimSpace(v.GetString("TAX_RATE")))
	if err != nil {
		return Config{}, fmt.Errorf("TAX_RATE: %w", err)
	}
	if taxRate.IsNegative() || taxRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return Config{}, fmt.Errorf("TAX_RATE must be a fraction in [0, 1), got %s", taxRate)
	}

	tzName := strings.TrimSpace(v.GetString("BUSINESS_TIMEZONE"))
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return Config{}, fmt.Errorf("BUSINESS_TIMEZONE: %w", err)
	}

	kpiTTL := v.GetInt("KPI_CACHE_TTL_SECONDS")
	if kpiTTL < 0 {
		kpiTTL = 0
	}
	tokenTTL := v.GetInt("ACCESS_TOKEN_TTL_MINUTES")
	if tokenTTL < 1 {
		tokenTTL = 480
	}
	pageSize := v.GetInt("REPORT_PAGE_SIZE")
	if pageSize < 1 {
		pageSize = 200
	}

	cfg := Config{
		Port:                  v.GetString("PORT"),
		AllowedOrigin:         v.GetString("ALLOWED_ORIGIN"),
		AppEnv:                strings.ToLower(v.GetString("APP_ENV")),
		LogLevel:              v.GetString("LOG_LEVEL"),
		LogFormat:             v.GetString("LOG_FORMAT"),
		DatabaseURL:           strings.TrimSpace(v.GetString("DATABASE_URL")),
		DatabaseAutoMigrate:   v.GetBool("DATABASE_AUTO_MIGRATE"),
		RedisAddr:             strings.TrimSpace(v.GetString("REDIS_ADDR")),
		RedisPassword:         v.GetString("REDIS_PASSWORD"),
		RedisDB:               v.GetInt("REDIS_DB"),
		TaxRate:               taxRate,
		BusinessTimezone:      tzName,
		Location:              loc,
		KPICacheTTL:           time.Duration(kpiTTL) * time.Second,
		LowStockThreshold:     v.GetInt("LOW_STOCK_THRESHOLD"),
		ReportPageSize:        pageSize,
		AuthSecret:            strings.TrimSpace(v.GetString("AUTH_SECRET")),
		AccessTokenTTLMinutes: tokenTTL,
		ManagerPIN:            strings.TrimSpace(v.GetString("MANAGER_PIN")),
		SeedAdminPassword:     v.GetString("SEED_ADMIN_PASSWORD"),
		SeedCashierPassword:   v.GetString("SEED_CASHIER_PASSWORD"),
	}

	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) IsProduction() bool {
	return c.AppEnv == "production"
}
