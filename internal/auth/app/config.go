package app

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/aussiebroadwan/accounts/pkg/jwtx"
)

type Config struct {
	Issuer string `env:"AUTH_ISSUER" envDefault:"accounts"`

	// Token signing. SigningSecret (HS256) wins over SigningKeyFile.
	Algorithm      string `env:"AUTH_ALGORITHM"        envDefault:"EdDSA"`
	SigningKeyFile string `env:"AUTH_SIGNING_KEY_FILE" envDefault:"signing.pem"`
	SigningSecret  string `env:"AUTH_SIGNING_SECRET"`
	KeyID          string `env:"AUTH_KEY_ID"`

	SessionTTL time.Duration `env:"AUTH_SESSION_TTL" envDefault:"24h"`
	ResetTTL   time.Duration `env:"AUTH_RESET_TTL"   envDefault:"1h"`

	RegistrationOTPWindow  time.Duration `env:"AUTH_REGISTRATION_OTP_WINDOW"  envDefault:"1h"`
	TransactionalOTPWindow time.Duration `env:"AUTH_TRANSACTIONAL_OTP_WINDOW" envDefault:"10m"`

	DirectResetRequiresOTP bool   `env:"AUTH_DIRECT_RESET_REQUIRES_OTP" envDefault:"true"`
	ResetBaseURL           string `env:"AUTH_RESET_BASE_URL"            envDefault:"http://localhost:3000/users/reset"`

	PepperFile string `env:"AUTH_PEPPER_FILE" envDefault:"pepper"`

	// Database: sqlite (DatabaseFile) or postgres (DatabaseURL)
	DatabaseDriver string `env:"AUTH_DATABASE_DRIVER" envDefault:"sqlite"`
	DatabaseFile   string `env:"AUTH_DATABASE_FILE"   envDefault:"accounts.db"`
	DatabaseURL    string `env:"AUTH_DATABASE_URL"`
	DBPingRetries  uint64 `env:"AUTH_DB_PING_RETRIES" envDefault:"5"`

	// Profile images: fs (BlobDir) or s3
	BlobDriver  string `env:"AUTH_BLOB_DRIVER"   envDefault:"fs"`
	BlobDir     string `env:"AUTH_BLOB_DIR"      envDefault:"uploads"`
	S3Endpoint  string `env:"AUTH_S3_ENDPOINT"`
	S3Region    string `env:"AUTH_S3_REGION"     envDefault:"us-east-1"`
	S3Bucket    string `env:"AUTH_S3_BUCKET"`
	S3AccessKey string `env:"AUTH_S3_ACCESS_KEY"`
	S3SecretKey string `env:"AUTH_S3_SECRET_KEY"`

	// Mail: log (dev) or smtp
	Notifier     string `env:"AUTH_NOTIFIER"      envDefault:"log"`
	SMTPAddr     string `env:"AUTH_SMTP_ADDR"`
	SMTPUsername string `env:"AUTH_SMTP_USERNAME"`
	SMTPPassword string `env:"AUTH_SMTP_PASSWORD"`
	SMTPFrom     string `env:"AUTH_SMTP_FROM"`

	FrontendOrigins []string `env:"AUTH_FRONTEND_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`

	Env       string `env:"ENV"        envDefault:"dev"`
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	Port                 int           `env:"PORT"                  envDefault:"8080"`
	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"15m"`
}

// LoadConfig reads the configuration from the environment and validates it.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsProduction hides OTPs and reset tokens from responses and marks the
// session cookie Secure.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "prod") || strings.EqualFold(c.Env, "production")
}

// Validate reports every configuration problem at once.
func (c Config) Validate() error {
	var errs []error

	algs := []string{jwtx.AlgorithmEdDSA, jwtx.AlgorithmES256, jwtx.AlgorithmRS256, jwtx.AlgorithmHS256}
	if !slices.Contains(algs, c.Algorithm) {
		errs = append(errs, fmt.Errorf("AUTH_ALGORITHM must be one of %v", algs))
	}
	if c.Algorithm == jwtx.AlgorithmHS256 && c.SigningSecret == "" && c.SigningKeyFile == "" {
		errs = append(errs, errors.New("HS256 needs AUTH_SIGNING_SECRET or AUTH_SIGNING_KEY_FILE"))
	}
	if c.SessionTTL <= 0 || c.ResetTTL <= 0 {
		errs = append(errs, errors.New("token TTLs must be positive"))
	}
	if c.RegistrationOTPWindow <= 0 || c.TransactionalOTPWindow <= 0 {
		errs = append(errs, errors.New("OTP windows must be positive"))
	}

	switch c.DatabaseDriver {
	case "sqlite":
		if c.DatabaseFile == "" {
			errs = append(errs, errors.New("AUTH_DATABASE_FILE is required for sqlite"))
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("AUTH_DATABASE_URL is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown AUTH_DATABASE_DRIVER %q", c.DatabaseDriver))
	}

	switch c.BlobDriver {
	case "fs":
		if c.BlobDir == "" {
			errs = append(errs, errors.New("AUTH_BLOB_DIR is required for fs"))
		}
	case "s3":
		if c.S3Bucket == "" {
			errs = append(errs, errors.New("AUTH_S3_BUCKET is required for s3"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown AUTH_BLOB_DRIVER %q", c.BlobDriver))
	}

	switch c.Notifier {
	case "log":
	case "smtp":
		if c.SMTPAddr == "" || c.SMTPFrom == "" {
			errs = append(errs, errors.New("AUTH_SMTP_ADDR and AUTH_SMTP_FROM are required for smtp"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown AUTH_NOTIFIER %q", c.Notifier))
	}

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}

	return errors.Join(errs...)
}
