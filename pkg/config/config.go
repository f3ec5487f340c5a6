package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "ORDERCORE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App      AppConfig
	Service  ServiceConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Checkout CheckoutConfig
	Square   SquareConfig
	Odoo     OdooConfig
	ErpSync  ErpSyncConfig
	GCP      GCPConfig
	PubSub   PubSubConfig
	BigQuery BigQueryConfig
	Outbox   OutboxConfig
	Eventing EventingConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ORDERCORE_APP_ENV" required:"true"`
	Port         string `envconfig:"ORDERCORE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ORDERCORE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ORDERCORE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ORDERCORE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"ORDERCORE_DB_DSN"`
	Driver string `envconfig:"ORDERCORE_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"ORDERCORE_DB_HOST"`
	Port     int    `envconfig:"ORDERCORE_DB_PORT" default:"5432"`
	User     string `envconfig:"ORDERCORE_DB_USER"`
	Password string `envconfig:"ORDERCORE_DB_PASSWORD"`
	Name     string `envconfig:"ORDERCORE_DB_NAME"`
	SSLMode  string `envconfig:"ORDERCORE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ORDERCORE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ORDERCORE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ORDERCORE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ORDERCORE_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	AutoMigrate bool `envconfig:"ORDERCORE_DB_AUTO_MIGRATE" default:"false"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ORDERCORE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ORDERCORE_REDIS_ADDR"`
	Password     string        `envconfig:"ORDERCORE_REDIS_PASSWORD"`
	DB           int           `envconfig:"ORDERCORE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ORDERCORE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ORDERCORE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ORDERCORE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ORDERCORE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ORDERCORE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"ORDERCORE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"ORDERCORE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"ORDERCORE_JWT_EXPIRATION_MINUTES" default:"60"`
}

// CheckoutConfig tunes store selection and the delivery-charge tariff.
type CheckoutConfig struct {
	StoreSearchRadiusKM float64  `envconfig:"ORDERCORE_CHECKOUT_STORE_RADIUS_KM" default:"25"`
	DefaultStoreIDs     []string `envconfig:"ORDERCORE_CHECKOUT_DEFAULT_STORE_IDS"`

	DeliveryBaseCents  int    `envconfig:"ORDERCORE_CHECKOUT_DELIVERY_BASE_CENTS" default:"300"`
	DeliveryPerKMCents string `envconfig:"ORDERCORE_CHECKOUT_DELIVERY_PER_KM_CENTS" default:"45.0"`
	FallbackFlatCents  int    `envconfig:"ORDERCORE_CHECKOUT_DELIVERY_FALLBACK_FLAT_CENTS" default:"1200"`

	// Sentinel product representing the delivery-charge line on an order.
	DeliveryProductID string `envconfig:"ORDERCORE_CHECKOUT_DELIVERY_PRODUCT_ID"`
}

type SquareConfig struct {
	AccessToken   string `envconfig:"ORDERCORE_SQUARE_ACCESS_TOKEN"`
	WebhookSecret string `envconfig:"ORDERCORE_SQUARE_WEBHOOK_SECRET"`
	Env           string `envconfig:"ORDERCORE_SQUARE_ENV" default:"sandbox"`
	LocationID    string `envconfig:"ORDERCORE_SQUARE_LOCATION_ID"`
	RedirectURL   string `envconfig:"ORDERCORE_SQUARE_REDIRECT_URL"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type OdooConfig struct {
	BaseURL  string `envconfig:"ORDERCORE_ODOO_BASE_URL"`
	Database string `envconfig:"ORDERCORE_ODOO_DATABASE"`
	Username string `envconfig:"ORDERCORE_ODOO_USERNAME"`
	APIKey   string `envconfig:"ORDERCORE_ODOO_API_KEY"`

	RequestTimeout time.Duration `envconfig:"ORDERCORE_ODOO_REQUEST_TIMEOUT" default:"15s"`
}

type ErpSyncConfig struct {
	QueueSize      int           `envconfig:"ORDERCORE_ERP_SYNC_QUEUE_SIZE" default:"256"`
	RetrySweepLock time.Duration `envconfig:"ORDERCORE_ERP_SYNC_SWEEP_LOCK_TTL" default:"30m"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"ORDERCORE_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"ORDERCORE_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"ORDERCORE_PUBSUB_ORDERS_TOPIC" default:"oc-order-events"`
	OrdersSubscription string `envconfig:"ORDERCORE_PUBSUB_ORDERS_SUBSCRIPTION" default:"oc-order-events-worker"`
}

type BigQueryConfig struct {
	Dataset          string `envconfig:"ORDERCORE_BIGQUERY_DATASET" default:"ordercore"`
	OrderEventsTable string `envconfig:"ORDERCORE_BIGQUERY_ORDER_EVENTS_TABLE" default:"order_events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"ORDERCORE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"ORDERCORE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"ORDERCORE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type EventingConfig struct {
	WebhookIdempotencyTTL time.Duration `envconfig:"ORDERCORE_EVENTING_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	for name, value := range map[string]string{
		"ORDERCORE_DB_HOST": db.Host,
		"ORDERCORE_DB_USER": db.User,
		"ORDERCORE_DB_NAME": db.Name,
	} {
		if value == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either ORDERCORE_DB_DSN or %s are required", strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}
	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
