package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/geocoder89/identityhub/internal/security"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// minJWTSecretBytes matches the HS256 output size.
const minJWTSecretBytes = 32

type Config struct {
	Env         string `env:"APP_ENV" envDefault:"dev"`
	Port        int    `env:"PORT" envDefault:"8080"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"identityhub"`

	// no default: a missing secret must stop startup
	JWTSecret string        `env:"JWT_SECRET"`
	JWTIssuer string        `env:"JWT_ISSUER" envDefault:"identityhub"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"24h"`

	GateHeaderSecret string `env:"GATE_HEADER_SECRET"`
	GateQuerySecret  string `env:"GATE_QUERY_SECRET"`

	PasswordMinLength    int  `env:"PASSWORD_MIN_LENGTH" envDefault:"8"`
	PasswordRequireUpper bool `env:"PASSWORD_REQUIRE_UPPER" envDefault:"true"`
	PasswordRequireLower bool `env:"PASSWORD_REQUIRE_LOWER" envDefault:"true"`
	PasswordRequireDigit bool `env:"PASSWORD_REQUIRE_DIGIT" envDefault:"true"`
	BcryptCost           int  `env:"BCRYPT_COST" envDefault:"10"`
	HashConcurrency      int  `env:"HASH_CONCURRENCY"`

	DBURL     string `env:"DB_URL"`
	DBMigrate bool   `env:"DB_MIGRATE" envDefault:"true"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	RateLimitMax    int           `env:"RATE_LIMIT_MAX" envDefault:"100"`
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"15m"`

	// UserRateLimitMax applies per authenticated caller on /users; 0 turns it off.
	UserRateLimitMax int `env:"USER_RATE_LIMIT_MAX" envDefault:"300"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	MaxBodyBytes       int64    `env:"MAX_BODY_BYTES" envDefault:"10240"`

	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
	AdminName     string `env:"ADMIN_NAME" envDefault:"Admin User"`

	// ConnectAttempts bounds startup retries against postgres and redis.
	ConnectAttempts int `env:"CONNECT_ATTEMPTS" envDefault:"5"`

	OTLPEndpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelSampleRatio float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"1"`
}

var (
	ErrMissingJWTSecret = errors.New("JWT_SECRET must be set")
	ErrWeakJWTSecret    = fmt.Errorf("JWT_SECRET must be at least %d bytes", minJWTSecretBytes)
)

// Load reads an optional .env file, parses the environment and validates the
// result. Any error means the service must not start.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse reads config from the process environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error

	switch {
	case c.JWTSecret == "":
		errs = append(errs, ErrMissingJWTSecret)
	case len(c.JWTSecret) < minJWTSecretBytes:
		errs = append(errs, ErrWeakJWTSecret)
	}

	if c.JWTTTL <= 0 {
		errs = append(errs, fmt.Errorf("JWT_TTL must be positive, got %s", c.JWTTTL))
	}
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT out of range: %d", c.Port))
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}
	if err := c.PasswordPolicy().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.RateLimitMax <= 0 || c.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_MAX and RATE_LIMIT_WINDOW must be positive"))
	}
	if c.UserRateLimitMax < 0 {
		errs = append(errs, fmt.Errorf("USER_RATE_LIMIT_MAX must not be negative, got %d", c.UserRateLimitMax))
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("MAX_BODY_BYTES must be positive"))
	}
	if c.AdminEmail != "" {
		if err := validator.New().Var(c.AdminEmail, "required,email"); err != nil {
			errs = append(errs, fmt.Errorf("ADMIN_EMAIL is not a valid email address: %q", c.AdminEmail))
		}
	}
	if c.AdminPassword != "" {
		if v := c.PasswordPolicy().Check(c.AdminPassword); len(v) > 0 {
			errs = append(errs, errors.New("ADMIN_PASSWORD does not satisfy the password policy"))
		}
	}

	return errors.Join(errs...)
}

func (c Config) PasswordPolicy() security.PasswordPolicy {
	return security.PasswordPolicy{
		MinLength:    c.PasswordMinLength,
		RequireUpper: c.PasswordRequireUpper,
		RequireLower: c.PasswordRequireLower,
		RequireDigit: c.PasswordRequireDigit,
	}
}

func (c Config) IsDev() bool {
	return c.Env == "dev"
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}
