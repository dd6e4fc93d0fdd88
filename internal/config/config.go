// Package config provides application configuration loaded from environment variables.
// Use the package-level Get() function to obtain the singleton Config instance.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sub-config structs
// ──────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port                 string        // e.g. "8080"
	BackofficePort       string        // e.g. "8081"
	Env                  string        // "development" | "production"
	ReadTimeout          time.Duration // default 10s
	WriteTimeout         time.Duration // default 10s
	AllowedOrigins       string        // comma-separated CORS origins; "" = allow all
	BackofficeAllowedIPs string        // comma-separated IPs; "" = allow all
	BackofficeToken      string        // bearer token for admin routes; "" = unprotected (dev)
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	DSN             string        // full postgres DSN
	MaxOpenConns    int           // default 25
	MaxIdleConns    int           // default 10
	ConnMaxLifetime time.Duration // default 5m
}

// RedisConfig holds pub/sub transport settings.
type RedisConfig struct {
	Addr     string // host:port; "" = use in-process bus instead
	Password string
	DB       int
}

// JWTConfig holds session token settings.
type JWTConfig struct {
	Secret string        // must be set
	TTL    time.Duration // default 24h
}

// ChainConfig holds BettingPool contract access settings.
type ChainConfig struct {
	RPCURL          string        // JSON-RPC endpoint
	ContractAddress string        // BettingPool deployment
	ChainID         int64         // default 84532 (Base Sepolia)
	OperatorKey     string        // hex private key signing contract txs
	ReceiptTimeout  time.Duration // default 90s
}

// BettingConfig holds stake limits.
type BettingConfig struct {
	MinBet float64 // minimum stake in display units
	MaxBet float64 // maximum stake in display units
}

// ──────────────────────────────────────────────────────────────────────────────
// Top-level Config
// ──────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object for the entire application.
type Config struct {
	Server  ServerConfig
	DB      DBConfig
	Redis   RedisConfig
	JWT     JWTConfig
	Chain   ChainConfig
	Betting BettingConfig
}

// IsProd returns true when running in the production environment.
func (c *Config) IsProd() bool {
	return c.Server.Env == "production"
}

// Validate checks that all required configuration values are present and valid.
// Returns the first validation error encountered.
func (c *Config) Validate() error {
	var errs []error

	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET must be set"))
	}

	if c.IsProd() && c.DB.DSN == "" {
		errs = append(errs, errors.New("DATABASE_DSN must be set in production"))
	}
	if c.IsProd() && c.Server.BackofficeToken == "" {
		errs = append(errs, errors.New("BACKOFFICE_TOKEN must be set in production"))
	}

	if c.Chain.RPCURL == "" {
		errs = append(errs, errors.New("CHAIN_RPC_URL must be set"))
	}
	if c.Chain.ContractAddress == "" {
		errs = append(errs, errors.New("CHAIN_CONTRACT_ADDRESS must be set"))
	}
	if c.Chain.OperatorKey == "" {
		errs = append(errs, errors.New("CHAIN_OPERATOR_KEY must be set"))
	}
	if c.Chain.ChainID <= 0 {
		errs = append(errs, fmt.Errorf("CHAIN_ID must be positive, got %d", c.Chain.ChainID))
	}

	if c.Betting.MinBet <= 0 {
		errs = append(errs, fmt.Errorf("BETTING_MIN_BET must be positive, got %.6f", c.Betting.MinBet))
	}
	if c.Betting.MaxBet <= c.Betting.MinBet {
		errs = append(errs, fmt.Errorf(
			"BETTING_MAX_BET must exceed BETTING_MIN_BET, got %.6f <= %.6f",
			c.Betting.MaxBet, c.Betting.MinBet,
		))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Singleton
// ──────────────────────────────────────────────────────────────────────────────

var (
	instance *Config
	once     sync.Once
	loadErr  error
)

// Get returns the singleton Config, loading it once from environment variables.
// Panics if loading fails — call this early in main() to catch misconfigurations
// at startup.
func Get() *Config {
	once.Do(func() {
		instance, loadErr = load()
	})
	if loadErr != nil {
		panic(fmt.Sprintf("config: failed to load: %v", loadErr))
	}
	return instance
}

// MustLoad loads and validates configuration. Intended for use in main().
// Panics on any error so misconfiguration is caught immediately at boot.
func MustLoad() *Config {
	cfg := Get()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: validation failed: %v", err))
	}
	return cfg
}

// ──────────────────────────────────────────────────────────────────────────────
// Internal loader
// ──────────────────────────────────────────────────────────────────────────────

func load() (*Config, error) {
	cfg := &Config{}

	// ── Server ────────────────────────────────────────────────────────────────
	cfg.Server = ServerConfig{
		Port:                 getEnv("SERVER_PORT", "8080"),
		BackofficePort:       getEnv("BACKOFFICE_PORT", "8081"),
		Env:                  getEnv("ENVIRONMENT", "development"),
		ReadTimeout:          getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:         getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
		AllowedOrigins:       getEnv("CORS_ALLOWED_ORIGINS", ""),
		BackofficeAllowedIPs: getEnv("BACKOFFICE_ALLOWED_IPS", ""),
		BackofficeToken:      getEnv("BACKOFFICE_TOKEN", ""),
	}

	// ── Database ──────────────────────────────────────────────────────────────
	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		// Build DSN from individual components for convenience in dev
		dsn = fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			getEnv("DB_HOST", "localhost"),
			getEnv("DB_PORT", "5432"),
			getEnv("DB_USER", "postgres"),
			getEnv("DB_PASSWORD", ""),
			getEnv("DB_NAME", "streambet"),
			getEnv("DB_SSLMODE", "disable"),
		)
	}

	maxOpen, err := getInt("DB_MAX_OPEN_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("DB_MAX_OPEN_CONNS: %w", err)
	}
	maxIdle, err := getInt("DB_MAX_IDLE_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("DB_MAX_IDLE_CONNS: %w", err)
	}

	cfg.DB = DBConfig{
		DSN:             dsn,
		MaxOpenConns:    maxOpen,
		MaxIdleConns:    maxIdle,
		ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	redisDB, err := getInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("REDIS_DB: %w", err)
	}
	cfg.Redis = RedisConfig{
		Addr:     getEnv("REDIS_ADDR", ""),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       redisDB,
	}

	// ── JWT ───────────────────────────────────────────────────────────────────
	cfg.JWT = JWTConfig{
		Secret: getEnv("JWT_SECRET", ""),
		TTL:    getDuration("JWT_TTL", 24*time.Hour),
	}

	// ── Chain ─────────────────────────────────────────────────────────────────
	chainID, err := getInt("CHAIN_ID", 84532)
	if err != nil {
		return nil, fmt.Errorf("CHAIN_ID: %w", err)
	}
	cfg.Chain = ChainConfig{
		RPCURL:          getEnv("CHAIN_RPC_URL", "https://sepolia.base.org"),
		ContractAddress: getEnv("CHAIN_CONTRACT_ADDRESS", ""),
		ChainID:         int64(chainID),
		OperatorKey:     getEnv("CHAIN_OPERATOR_KEY", ""),
		ReceiptTimeout:  getDuration("CHAIN_RECEIPT_TIMEOUT", 90*time.Second),
	}

	// ── Betting ───────────────────────────────────────────────────────────────
	minBet, err := getFloat("BETTING_MIN_BET", 0.001)
	if err != nil {
		return nil, fmt.Errorf("BETTING_MIN_BET: %w", err)
	}
	maxBet, err := getFloat("BETTING_MAX_BET", 10)
	if err != nil {
		return nil, fmt.Errorf("BETTING_MAX_BET: %w", err)
	}
	cfg.Betting = BettingConfig{
		MinBet: minBet,
		MaxBet: maxBet,
	}

	return cfg, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Helper functions
// ──────────────────────────────────────────────────────────────────────────────

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", v)
	}
	return n, nil
}

func getFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float %q", v)
	}
	return f, nil
}

// getDuration parses an env var as a Go duration string (e.g. "15m", "2s").
// Falls back to defaultVal if the variable is unset or empty.
func getDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		// Log warning and fall back to default; do not crash on parse error
		return defaultVal
	}
	return d
}
