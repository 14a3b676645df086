package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	EnvPrefix = "centpay"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "CENTPAY_DB_DSN"
	EnvDBHost = "CENTPAY_DB_HOST"
	EnvDBUser = "CENTPAY_DB_USER"
	EnvDBName = "CENTPAY_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Gateway      GatewayConfig
	Platform     PlatformConfig
	Fees         FeesConfig
	Settlement   SettlementConfig
	Anticipation AnticipationConfig
	Withdrawal   WithdrawalConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Fees.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CENTPAY_APP_ENV" required:"true"`
	Port         string `envconfig:"CENTPAY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CENTPAY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CENTPAY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CENTPAY_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CENTPAY_DB_DSN"`
	Driver string `envconfig:"CENTPAY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CENTPAY_DB_HOST"`
	LegacyPort     int    `envconfig:"CENTPAY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CENTPAY_DB_USER"`
	LegacyPassword string `envconfig:"CENTPAY_DB_PASSWORD"`
	LegacyName     string `envconfig:"CENTPAY_DB_NAME"`
	LegacySSLMode  string `envconfig:"CENTPAY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CENTPAY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CENTPAY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CENTPAY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CENTPAY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CENTPAY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CENTPAY_REDIS_ADDR"`
	Password     string        `envconfig:"CENTPAY_REDIS_PASSWORD"`
	DB           int           `envconfig:"CENTPAY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CENTPAY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CENTPAY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CENTPAY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CENTPAY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CENTPAY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"CENTPAY_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CENTPAY_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"CENTPAY_JWT_EXPIRATION_MINUTES" default:"60"`
}

// GatewayConfig describes the payment gateway whose webhooks we ingest.
type GatewayConfig struct {
	Name          string        `envconfig:"CENTPAY_GATEWAY_NAME" default:"primepag"`
	WebhookSecret string        `envconfig:"CENTPAY_GATEWAY_WEBHOOK_SECRET" required:"true"`
	MaxRetries    int           `envconfig:"CENTPAY_GATEWAY_WEBHOOK_MAX_RETRIES" default:"5"`
	DedupTTL      time.Duration `envconfig:"CENTPAY_GATEWAY_WEBHOOK_DEDUP_TTL" default:"720h"`
	PixExpiry     time.Duration `envconfig:"CENTPAY_GATEWAY_PIX_EXPIRY" default:"30m"`
	BoletoExpiry  time.Duration `envconfig:"CENTPAY_GATEWAY_BOLETO_EXPIRY" default:"72h"`
}

// PlatformConfig identifies the ledger account that collects platform fees.
type PlatformConfig struct {
	AccountID string `envconfig:"CENTPAY_PLATFORM_ACCOUNT_ID" required:"true"`
}

// FeesConfig is the injected fee schedule. Percentages are expressed as
// decimal strings ("9.9" means 9.9%). The schedule is frozen into each
// transaction's calculation_details at checkout so later changes never
// affect recorded sales.
type FeesConfig struct {
	PlatformPercent  string `envconfig:"CENTPAY_FEE_PLATFORM_PERCENT" default:"9.9"`
	PlatformMinCents int64  `envconfig:"CENTPAY_FEE_PLATFORM_MIN_CENTS" default:"100"`
	PlatformMaxCents int64  `envconfig:"CENTPAY_FEE_PLATFORM_MAX_CENTS" default:"0"`
	PixPercent       string `envconfig:"CENTPAY_FEE_PIX_PERCENT" default:"0.99"`
	PixFixedCents    int64  `envconfig:"CENTPAY_FEE_PIX_FIXED_CENTS" default:"0"`
	BoletoFixedCents int64  `envconfig:"CENTPAY_FEE_BOLETO_FIXED_CENTS" default:"349"`
	CardPercentD2    string `envconfig:"CENTPAY_FEE_CARD_PERCENT_D2" default:"4.99"`
	CardPercentD15   string `envconfig:"CENTPAY_FEE_CARD_PERCENT_D15" default:"4.49"`
	CardPercentD30   string `envconfig:"CENTPAY_FEE_CARD_PERCENT_D30" default:"3.99"`
	CardFixedCents   int64  `envconfig:"CENTPAY_FEE_CARD_FIXED_CENTS" default:"39"`
}

func (f FeesConfig) validate() error {
	for name, raw := range map[string]string{
		"CENTPAY_FEE_PLATFORM_PERCENT": f.PlatformPercent,
		"CENTPAY_FEE_PIX_PERCENT":      f.PixPercent,
		"CENTPAY_FEE_CARD_PERCENT_D2":  f.CardPercentD2,
		"CENTPAY_FEE_CARD_PERCENT_D15": f.CardPercentD15,
		"CENTPAY_FEE_CARD_PERCENT_D30": f.CardPercentD30,
	} {
		if _, err := decimal.NewFromString(raw); err != nil {
			return fmt.Errorf("%s: invalid percentage %q: %w", name, raw, err)
		}
	}
	return nil
}

// SettlementConfig controls when approved funds become withdrawable.
type SettlementConfig struct {
	HoldDays           int `envconfig:"CENTPAY_SETTLEMENT_HOLD_DAYS" default:"30"`
	PixHoldDays        int `envconfig:"CENTPAY_SETTLEMENT_PIX_HOLD_DAYS" default:"2"`
	CardSettlementDays int `envconfig:"CENTPAY_SETTLEMENT_CARD_DAYS" default:"30"`
}

// HoldFor returns the release delay for the given payment method name.
func (s SettlementConfig) HoldFor(method string) time.Duration {
	days := s.HoldDays
	if method == "pix" && s.PixHoldDays > 0 {
		days = s.PixHoldDays
	}
	return time.Duration(days) * 24 * time.Hour
}

type AnticipationConfig struct {
	DailyRatePercent string `envconfig:"CENTPAY_ANTICIPATION_DAILY_RATE_PERCENT" default:"0.04"`
	MinAmountCents   int64  `envconfig:"CENTPAY_ANTICIPATION_MIN_AMOUNT_CENTS" default:"1000"`
}

type WithdrawalConfig struct {
	MinAmountCents int64 `envconfig:"CENTPAY_WITHDRAWAL_MIN_AMOUNT_CENTS" default:"2000"`
	FeeCents       int64 `envconfig:"CENTPAY_WITHDRAWAL_FEE_CENTS" default:"367"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"CENTPAY_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"CENTPAY_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"CENTPAY_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"CENTPAY_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"CENTPAY_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	SalesTopic          string `envconfig:"CENTPAY_PUBSUB_SALES_TOPIC" required:"true"`
	SalesSubscription   string `envconfig:"CENTPAY_PUBSUB_SALES_SUBSCRIPTION"`
	PayoutsTopic        string `envconfig:"CENTPAY_PUBSUB_PAYOUTS_TOPIC" required:"true"`
	PayoutsSubscription string `envconfig:"CENTPAY_PUBSUB_PAYOUTS_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"CENTPAY_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"CENTPAY_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"CENTPAY_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
