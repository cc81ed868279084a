package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"itcwallet/database"
	"itcwallet/domain/services"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL  string
	DatabaseName string

	// Transport configuration
	HTTPAddr           string
	GRPCAddr           string
	CORSAllowedOrigins []string

	// Auth configuration
	JWTSecret      string
	InternalAPIKey string

	// Messaging and cache
	NATSServers string // empty disables event publication
	RedisURL    string // empty disables the webhook event cache

	// Payout processor configuration
	ProcessorBaseURL       string
	ProcessorAPIKey        string
	ProcessorWebhookSecret string
	ProcessorTimeout       time.Duration
	WebhookTolerance       time.Duration

	// Cash-out fees and limits
	TokenUSDRate           decimal.Decimal
	PlatformFeeRate        decimal.Decimal
	InstantFeeRate         decimal.Decimal
	InstantFeeMinimum      decimal.Decimal
	MinimumCashoutTokens   decimal.Decimal
	ProcessorMinimumPayout decimal.Decimal

	// Rewards
	RewardBaseRate              decimal.Decimal // tokens per currency unit spent
	RewardCeilingFraction       decimal.Decimal
	FirstPurchaseMultiplier     decimal.Decimal
	ReferralSignupReward        decimal.Decimal
	ReferralFirstPurchaseReward decimal.Decimal
	CommunityBoostReward        decimal.Decimal

	// Cash-out recovery worker
	CashoutRecoveryInterval time.Duration
	CashoutStaleAfter       time.Duration

	// OpenTelemetry configuration
	OTelEnabled          bool
	OTelExporterType     string // console, otlp or none
	OTelOTLPEndpoint     string
	OTelServiceName      string
	OTelExportIntervalMS int

	// Logging
	LogLevel string

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g., by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			if os.Getenv("GO_TEST") == "1" || os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// IsProduction returns true when running in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// FeeSchedule returns the cash-out fee schedule
func (c *Config) FeeSchedule() services.FeeSchedule {
	return services.FeeSchedule{
		TokenUSDRate:           c.TokenUSDRate,
		PlatformFeeRate:        c.PlatformFeeRate,
		InstantFeeRate:         c.InstantFeeRate,
		InstantFeeMinimum:      c.InstantFeeMinimum,
		MinimumCashoutTokens:   c.MinimumCashoutTokens,
		ProcessorMinimumPayout: c.ProcessorMinimumPayout,
	}
}

// RewardSchedule returns the reward rates, starting from the defaults for tiers and milestones
func (c *Config) RewardSchedule() services.RewardSchedule {
	schedule := services.DefaultRewardSchedule()
	schedule.BaseRatePerCurrencyUnit = c.RewardBaseRate
	schedule.TokenUSDRate = c.TokenUSDRate
	schedule.CeilingFraction = c.RewardCeilingFraction
	schedule.FirstPurchaseMultiplier = c.FirstPurchaseMultiplier
	schedule.ReferralRewards[services.ReferralKindSignup] = c.ReferralSignupReward
	schedule.ReferralRewards[services.ReferralKindFirstPurchase] = c.ReferralFirstPurchaseReward
	schedule.CommunityBoostReward = c.CommunityBoostReward
	return schedule
}

// load loads configuration from an optional .env file and the environment
func load() (*Config, error) {
	_ = godotenv.Load()

	config := &Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabaseName: os.Getenv("DATABASE_NAME"),

		HTTPAddr: getEnvWithDefault("HTTP_ADDR", ":8080"),
		GRPCAddr: getEnvWithDefault("GRPC_ADDR", ":9090"),

		JWTSecret:      os.Getenv("JWT_SECRET"),
		InternalAPIKey: os.Getenv("INTERNAL_API_KEY"),

		NATSServers: os.Getenv("NATS_SERVERS"),
		RedisURL:    os.Getenv("REDIS_URL"),

		ProcessorBaseURL:       os.Getenv("PROCESSOR_BASE_URL"),
		ProcessorAPIKey:        os.Getenv("PROCESSOR_API_KEY"),
		ProcessorWebhookSecret: os.Getenv("PROCESSOR_WEBHOOK_SECRET"),

		OTelEnabled:      os.Getenv("OTEL_ENABLED") == "true",
		OTelExporterType: getEnvWithDefault("OTEL_EXPORTER_TYPE", "console"),
		OTelOTLPEndpoint: os.Getenv("OTEL_OTLP_ENDPOINT"),
		OTelServiceName:  getEnvWithDefault("OTEL_SERVICE_NAME", "itc-wallet"),

		LogLevel:    getEnvWithDefault("LOG_LEVEL", "info"),
		Environment: getEnvWithDefault("ENVIRONMENT", "development"),
	}

	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		for _, origin := range strings.Split(origins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				config.CORSAllowedOrigins = append(config.CORSAllowedOrigins, origin)
			}
		}
	}

	var err error
	durations := []struct {
		key    string
		def    string
		target *time.Duration
	}{
		{"PROCESSOR_TIMEOUT", "10s", &config.ProcessorTimeout},
		{"WEBHOOK_TOLERANCE", "5m", &config.WebhookTolerance},
		{"CASHOUT_RECOVERY_INTERVAL", "5m", &config.CashoutRecoveryInterval},
		{"CASHOUT_STALE_AFTER", "15m", &config.CashoutStaleAfter},
	}
	for _, d := range durations {
		if *d.target, err = time.ParseDuration(getEnvWithDefault(d.key, d.def)); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
	}

	amounts := []struct {
		key    string
		def    string
		target *decimal.Decimal
	}{
		{"TOKEN_USD_RATE", "0.01", &config.TokenUSDRate},
		{"PLATFORM_FEE_RATE", "0.07", &config.PlatformFeeRate},
		{"INSTANT_FEE_RATE", "0.015", &config.InstantFeeRate},
		{"INSTANT_FEE_MIN", "0.50", &config.InstantFeeMinimum},
		{"MIN_CASHOUT_TOKENS", "1000", &config.MinimumCashoutTokens},
		{"PROCESSOR_MIN_PAYOUT", "1.00", &config.ProcessorMinimumPayout},
		{"REWARD_BASE_RATE", "10", &config.RewardBaseRate},
		{"REWARD_CEILING_FRACTION", "0.5", &config.RewardCeilingFraction},
		{"FIRST_PURCHASE_MULTIPLIER", "2", &config.FirstPurchaseMultiplier},
		{"REFERRAL_SIGNUP_REWARD", "50", &config.ReferralSignupReward},
		{"REFERRAL_FIRST_PURCHASE_REWARD", "100", &config.ReferralFirstPurchaseReward},
		{"COMMUNITY_BOOST_REWARD", "5", &config.CommunityBoostReward},
	}
	for _, a := range amounts {
		if *a.target, err = decimal.NewFromString(getEnvWithDefault(a.key, a.def)); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", a.key, err)
		}
		if a.target.IsNegative() {
			return nil, fmt.Errorf("%s cannot be negative", a.key)
		}
	}

	config.OTelExportIntervalMS, err = strconv.Atoi(getEnvWithDefault("OTEL_EXPORT_INTERVAL_MS", "15000"))
	if err != nil {
		return nil, fmt.Errorf("invalid OTEL_EXPORT_INTERVAL_MS: %w", err)
	}

	if config.Environment != "test" {
		if err := config.validate(); err != nil {
			return nil, err
		}
	}

	return config, nil
}

func (c *Config) validate() error {
	required := []struct{ key, value string }{
		{"DATABASE_URL", c.DatabaseURL},
		{"JWT_SECRET", c.JWTSecret},
		{"INTERNAL_API_KEY", c.InternalAPIKey},
		{"PROCESSOR_WEBHOOK_SECRET", c.ProcessorWebhookSecret},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%s is required", r.key)
		}
	}
	if c.PlatformFeeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("PLATFORM_FEE_RATE must be below 1")
	}
	return nil
}

// getEnvWithDefault returns the environment variable value or a default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// SetTestConfig sets a test configuration instance
// This should only be called from test files
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
// This should only be called from test files
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	fees := services.DefaultFeeSchedule()
	rewards := services.DefaultRewardSchedule()
	return &Config{
		Environment:                 "test",
		HTTPAddr:                    ":0",
		GRPCAddr:                    ":0",
		JWTSecret:                   "test-jwt-secret",
		InternalAPIKey:              "test-api-key",
		ProcessorWebhookSecret:      "whsec_test",
		ProcessorTimeout:            2 * time.Second,
		WebhookTolerance:            5 * time.Minute,
		TokenUSDRate:                fees.TokenUSDRate,
		PlatformFeeRate:             fees.PlatformFeeRate,
		InstantFeeRate:              fees.InstantFeeRate,
		InstantFeeMinimum:           fees.InstantFeeMinimum,
		MinimumCashoutTokens:        fees.MinimumCashoutTokens,
		ProcessorMinimumPayout:      fees.ProcessorMinimumPayout,
		RewardBaseRate:              rewards.BaseRatePerCurrencyUnit,
		RewardCeilingFraction:       rewards.CeilingFraction,
		FirstPurchaseMultiplier:     rewards.FirstPurchaseMultiplier,
		ReferralSignupReward:        rewards.ReferralRewards[services.ReferralKindSignup],
		ReferralFirstPurchaseReward: rewards.ReferralRewards[services.ReferralKindFirstPurchase],
		CommunityBoostReward:        rewards.CommunityBoostReward,
		CashoutRecoveryInterval:     time.Minute,
		CashoutStaleAfter:           15 * time.Minute,
		OTelServiceName:             "itc-wallet-test",
		LogLevel:                    "debug",
	}
}
