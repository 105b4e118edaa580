package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Port        string
	Environment string

	AdminAPIToken string
	AppRootDomain string
	AppRootScheme string

	// Control-plane store (tenants, promotion outcomes, outbox).
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	// Shared data-plane store tenants are promoted out of.
	SharedDBHost string
	SharedDBPort int
	SharedDBName string

	// Admin connection for the cluster dedicated stores are created on.
	ProvisionDBHost     string
	ProvisionDBPort     string
	ProvisionDBName     string
	ProvisionDBUser     string
	ProvisionDBPassword string
	ProvisionDBSSLMode  string

	// Version of the data-plane image deployed for promoted tenants.
	DefaultFactoryVersion string

	// Routing artifact store.
	RoutesBucket string
	RoutesPrefix string

	// Notification sink. Mode is "webhook" or "kafka".
	NotifyMode         string
	NotifyWebhookURL   string
	NotifyWebhookToken string
	NotifyKafkaBrokers []string
	NotifyKafkaTopic   string

	// Per-tenant secrets.
	TenantAuthJWTSecretKey  string
	CredentialEncryptionKey string

	// Pipeline tuning.
	StepTimeout       time.Duration
	PromotingDeadline time.Duration
	VerifyCanarySlug  string
}

// Load loads configuration from environment variables and .env file.
func Load() *Config {
	_ = godotenv.Load()
	environment := getenv("ENVIRONMENT", "development")

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "saasfactory-cloud"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Port:        getenv("PORT", "8081"),
		Environment: environment,

		AdminAPIToken: strings.TrimSpace(getenv("ADMIN_API_TOKEN", "")),
		AppRootDomain: strings.TrimLeft(strings.TrimSpace(getenv("APP_ROOT_DOMAIN", "")), "."),
		AppRootScheme: strings.TrimSpace(getenv("APP_ROOT_SCHEME", "")),

		DBHost:            getenv("DB_HOST", "localhost"),
		DBPort:            getenv("DB_PORT", "5432"),
		DBName:            getenv("DB_NAME", "factory_cloud"),
		DBUser:            getenv("DB_USER", "postgres"),
		DBPassword:        getenv("DB_PASSWORD", ""),
		DBSSLMode:         getenv("DB_SSL_MODE", "disable"),
		DBMaxIdleConn:     getenvInt("DB_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DB_MAX_OPEN_CONN", 100),
		DBConnMaxLifetime: getenvInt("DB_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DB_CONN_MAX_IDLE_TIME", 60),

		SharedDBHost: getenv("SHARED_DB_HOST", "localhost"),
		SharedDBPort: getenvInt("SHARED_DB_PORT", 5432),
		SharedDBName: getenv("SHARED_DB_NAME", "factory_shared"),

		ProvisionDBHost:     getenv("PROVISION_DB_HOST", "localhost"),
		ProvisionDBPort:     getenv("PROVISION_DB_PORT", "5432"),
		ProvisionDBName:     getenv("PROVISION_DB_NAME", "postgres"),
		ProvisionDBUser:     getenv("PROVISION_DB_USER", "postgres"),
		ProvisionDBPassword: getenv("PROVISION_DB_PASSWORD", ""),
		ProvisionDBSSLMode:  getenv("PROVISION_DB_SSL_MODE", "disable"),

		DefaultFactoryVersion: getenv("FACTORY_VERSION", "v1.4.0"),

		RoutesBucket: strings.TrimSpace(getenv("ROUTES_S3_BUCKET", "")),
		RoutesPrefix: strings.Trim(getenv("ROUTES_S3_PREFIX", "routes"), "/"),

		NotifyMode:         strings.ToLower(getenv("NOTIFY_MODE", "webhook")),
		NotifyWebhookURL:   strings.TrimSpace(getenv("NOTIFY_WEBHOOK_URL", "")),
		NotifyWebhookToken: strings.TrimSpace(getenv("NOTIFY_WEBHOOK_TOKEN", "")),
		NotifyKafkaBrokers: splitList(getenv("NOTIFY_KAFKA_BROKERS", "")),
		NotifyKafkaTopic:   getenv("NOTIFY_KAFKA_TOPIC", "tenant-promotions"),

		TenantAuthJWTSecretKey:  strings.TrimSpace(getenv("TENANT_AUTH_JWT_SECRET_KEY", "")),
		CredentialEncryptionKey: strings.TrimSpace(getenv("CREDENTIAL_ENCRYPTION_KEY", "")),

		StepTimeout:       time.Duration(getenvInt("STEP_TIMEOUT_SECONDS", 120)) * time.Second,
		PromotingDeadline: time.Duration(getenvInt("PROMOTING_DEADLINE_MINUTES", 30)) * time.Minute,
		VerifyCanarySlug:  getenv("VERIFY_CANARY_SLUG", "isolation-canary"),
	}

	return &cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
