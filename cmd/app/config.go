package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"mission_rewards/internal/model"
	"mission_rewards/internal/notify"
	"mission_rewards/internal/repository"
	"mission_rewards/internal/scheduler"
	"mission_rewards/internal/verify"
	"mission_rewards/pkg/auth"

	"github.com/spf13/viper"
)

const (
	configPath   = "./"
	configName   = "config"
	configFormat = "yaml"

	defaultServerPort = "8080"
)

type Config struct {
	Database repository.Config `mapstructure:"database"`
	Server   ServerConfig      `mapstructure:"server"`

	TelegramAuth TelegramAuthConfig       `mapstructure:"telegramAuth"`
	ReviewerAuth auth.ReviewerTokenConfig `mapstructure:"reviewerAuth"`

	Verification VerificationConfig         `mapstructure:"verification"`
	ProofToken   ProofTokenConfig           `mapstructure:"proofToken"`
	Run          RunConfig                  `mapstructure:"run"`
	Ledger       LedgerConfig               `mapstructure:"ledger"`
	RateLimit    repository.RateLimitConfig `mapstructure:"rateLimit"`
	Scheduler    scheduler.Config           `mapstructure:"scheduler"`
	Notify       notify.TelegramConfig      `mapstructure:"notify"`
	Cache        CacheConfig                `mapstructure:"cache"`

	LogLevel string `mapstructure:"logLevel"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
}

type TelegramAuthConfig struct {
	TelegramBotToken string `mapstructure:"telegramBotToken"`
	DebugMode        bool   `mapstructure:"debugMode"`
}

type VerificationConfig struct {
	Gps    verify.GpsConfig    `mapstructure:"gps"`
	Social verify.SocialConfig `mapstructure:"social"`
}

type ProofTokenConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type RunConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type LedgerConfig struct {
	MaxRetries int    `mapstructure:"maxRetries"`
	Currency   string `mapstructure:"currency"`
}

type CacheConfig struct {
	CatalogSize int           `mapstructure:"catalogSize"`
	CatalogTTL  time.Duration `mapstructure:"catalogTTL"`
}

func setDefaults(v *viper.Viper) {
	gps := verify.DefaultGpsConfig()
	social := verify.DefaultSocialConfig()

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "missions")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.connMaxLifetime", 30*time.Minute)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.shutdownTimeout", 10*time.Second)

	v.SetDefault("telegramAuth.telegramBotToken", "")
	v.SetDefault("telegramAuth.debugMode", false)

	v.SetDefault("reviewerAuth.secret", "")
	v.SetDefault("reviewerAuth.issuer", "mission-rewards")
	v.SetDefault("reviewerAuth.ttl", 12*time.Hour)

	v.SetDefault("verification.gps.maxAccuracyMeters", gps.MaxAccuracyMeters)
	v.SetDefault("verification.gps.freshnessWindow", gps.FreshnessWindow)
	v.SetDefault("verification.gps.radiusMeters", gps.RadiusMeters)
	v.SetDefault("verification.gps.clockSkew", gps.ClockSkew)
	v.SetDefault("verification.gps.rejectMockLocations", gps.RejectMockLocations)
	v.SetDefault("verification.social.brandTag", social.BrandTag)

	v.SetDefault("proofToken.secret", "")
	v.SetDefault("proofToken.ttl", verify.DefaultTokenTTL)

	v.SetDefault("run.ttl", 24*time.Hour)

	v.SetDefault("ledger.maxRetries", 3)
	v.SetDefault("ledger.currency", model.DefaultCurrency)

	v.SetDefault("rateLimit.limit", 10)
	v.SetDefault("rateLimit.window", time.Minute)

	v.SetDefault("scheduler.expireInterval", time.Minute)
	v.SetDefault("scheduler.expireBatch", 100)
	v.SetDefault("scheduler.purgeInterval", 10*time.Minute)
	v.SetDefault("scheduler.rateLimitRetention", time.Hour)

	v.SetDefault("notify.botToken", "")
	v.SetDefault("notify.reviewChatId", 0)
	v.SetDefault("notify.debug", false)
	v.SetDefault("notify.queueSize", 64)

	v.SetDefault("cache.catalogSize", 512)
	v.SetDefault("cache.catalogTTL", 5*time.Minute)

	v.SetDefault("logLevel", "info")
}

// LoadConfig reads config.yaml from dir when present. Every key can be overridden
// with an APP_ prefixed environment variable, e.g. APP_DATABASE_HOST.
func LoadConfig(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(configName)
	v.AddConfigPath(dir)
	v.SetConfigType(configFormat)

	v.AutomaticEnv()
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(cfg.Verification.Social.Platforms) == 0 {
		cfg.Verification.Social.Platforms = verify.DefaultSocialConfig().Platforms
	}

	return &cfg, nil
}

// Validate checks the settings a serving process cannot run without.
func (c *Config) Validate() error {
	if c.ProofToken.Secret == "" {
		return errors.New("proofToken.secret is required")
	}
	if c.ReviewerAuth.Secret == "" {
		return errors.New("reviewerAuth.secret is required")
	}
	if !c.TelegramAuth.DebugMode && c.TelegramAuth.TelegramBotToken == "" {
		return errors.New("telegramAuth.telegramBotToken is required unless debugMode is set")
	}
	if c.Verification.Gps.RadiusMeters <= 0 || c.Verification.Gps.MaxAccuracyMeters <= 0 {
		return errors.New("verification.gps radius and accuracy thresholds must be positive")
	}
	return nil
}
