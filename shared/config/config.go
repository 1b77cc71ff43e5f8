package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Dashboard unknown-page policies
const (
	UnknownPageNotFound = "not_found"
	UnknownPageFallback = "fallback"
)

// Identity providers
const (
	AuthProviderLocal   = "local"
	AuthProviderCognito = "cognito"
)

// AppConfig holds the settings shared by the gateway and the services
type AppConfig struct {
	Environment string

	JWTSecret    string
	TokenTTL     time.Duration
	AuthProvider string

	AWSRegion           string
	CognitoUserPoolID   string
	CognitoClientID     string
	CognitoClientSecret string

	LoginURL             string
	UnknownDashboardPage string

	SlotIntervalMinutes  int
	UseFallbackSchedule  bool
	FallbackScheduleFile string

	SlugCooldown time.Duration
	SlugCacheTTL time.Duration

	KafkaBroker        string
	BookingEventsTopic string
	NotifyWebhookURL   string
	BookingSweepCron   string

	AllowedOrigins  []string
	PublicRateLimit float64
	PublicRateBurst int

	AuthServiceURL         string
	TenantServiceURL       string
	AvailabilityServiceURL string
	NotifierServiceURL     string
}

// Load reads the application configuration from the environment
func Load() *AppConfig {
	cfg := &AppConfig{
		Environment: getEnv("APP_ENV", "development"),

		JWTSecret:    getEnv("JWT_SECRET", ""),
		TokenTTL:     getEnvDuration("TOKEN_TTL", 24*time.Hour),
		AuthProvider: strings.ToLower(getEnv("AUTH_PROVIDER", AuthProviderLocal)),

		AWSRegion:           getEnv("AWS_REGION", ""),
		CognitoUserPoolID:   getEnv("COGNITO_USER_POOL_ID", ""),
		CognitoClientID:     getEnv("COGNITO_CLIENT_ID", ""),
		CognitoClientSecret: getEnv("COGNITO_CLIENT_SECRET", ""),

		LoginURL:             getEnv("LOGIN_URL", "/login/"),
		UnknownDashboardPage: strings.ToLower(getEnv("UNKNOWN_DASHBOARD_PAGE", UnknownPageNotFound)),

		SlotIntervalMinutes:  getEnvInt("SLOT_INTERVAL_MINUTES", 30),
		UseFallbackSchedule:  getEnvBool("USE_FALLBACK_SCHEDULE", true),
		FallbackScheduleFile: getEnv("FALLBACK_SCHEDULE_FILE", ""),

		SlugCooldown: getEnvDuration("SLUG_COOLDOWN", 90*24*time.Hour),
		SlugCacheTTL: getEnvDuration("SLUG_CACHE_TTL", 10*time.Minute),

		KafkaBroker:        getEnv("KAFKA_BROKER", "localhost:9092"),
		BookingEventsTopic: getEnv("BOOKING_EVENTS_TOPIC", "booking-events"),
		NotifyWebhookURL:   getEnv("NOTIFY_WEBHOOK_URL", ""),
		BookingSweepCron:   getEnv("BOOKING_SWEEP_CRON", "15 0 * * *"),

		AllowedOrigins:  splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		PublicRateLimit: getEnvFloat("PUBLIC_RATE_LIMIT", 5),
		PublicRateBurst: getEnvInt("PUBLIC_RATE_BURST", 10),

		AuthServiceURL:         getEnv("AUTH_SERVICE_URL", "http://localhost:8001"),
		TenantServiceURL:       getEnv("TENANT_SERVICE_URL", "http://localhost:8002"),
		AvailabilityServiceURL: getEnv("AVAILABILITY_SERVICE_URL", "http://localhost:8003"),
		NotifierServiceURL:     getEnv("NOTIFIER_SERVICE_URL", "http://localhost:8004"),
	}

	if cfg.UnknownDashboardPage != UnknownPageFallback {
		cfg.UnknownDashboardPage = UnknownPageNotFound
	}
	if cfg.SlotIntervalMinutes < 0 {
		cfg.SlotIntervalMinutes = 30
	}

	return cfg
}

// IsProduction reports whether secure cookies and strict settings apply
func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
