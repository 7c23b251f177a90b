package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServiceName string
	ListenAddr  string
	LogLevel    string

	DatabaseURL string

	APIBaseURL string
	// ProtectedPaths are upstream path prefixes that get the user's ID token.
	ProtectedPaths []string

	IdentityURL      string
	IdentityAPIKey   string
	IdentityTokenURL string

	PaymentURL        string
	PaymentPublishKey string

	KafkaBrokers []string
	KafkaTopic   string

	CacheStaleTime time.Duration
	PageSize       int
	SessionTTL     time.Duration
	CookieSecure   bool
	SweepSchedule  string
	// AllowedOrigins are browser origins trusted for CORS, CSRF and the live feed.
	AllowedOrigins []string
	// NoticeRetention bounds how long dismissable notices are kept.
	NoticeRetention time.Duration
}

func Load() Config {
	return Config{
		ServiceName: EnvDefault("SERVICE_NAME", "hostel-web"),
		ListenAddr:  EnvDefault("LISTEN_ADDR", ":8080"),
		LogLevel:    EnvDefault("LOG_LEVEL", "info"),

		DatabaseURL: EnvDefault("DATABASE_URL", "file:hostel.db?_pragma=busy_timeout(5000)"),

		APIBaseURL:     os.Getenv("API_URL"),
		ProtectedPaths: CSV(EnvDefault("API_PROTECTED_PATHS", "/users,/reviews,/serve-requests,/payments,/create-payment-intent,/meals,/upcoming-meals")),

		IdentityURL:      EnvDefault("IDENTITY_URL", "https://identitytoolkit.googleapis.com/v1"),
		IdentityAPIKey:   os.Getenv("IDENTITY_API_KEY"),
		IdentityTokenURL: EnvDefault("IDENTITY_TOKEN_URL", "https://securetoken.googleapis.com/v1"),

		PaymentURL:        EnvDefault("PAYMENT_URL", "https://api.stripe.com"),
		PaymentPublishKey: os.Getenv("PAYMENT_PUBLISHABLE_KEY"),

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   EnvDefault("KAFKA_TOPIC", "cache_invalidations"),

		CacheStaleTime: EnvDurationDefault("CACHE_STALE_TIME", 30*time.Second),
		PageSize:       EnvIntDefault("PAGE_SIZE", 10),
		SessionTTL:     EnvDurationDefault("SESSION_TTL", 7*24*time.Hour),
		CookieSecure:   EnvBoolDefault("COOKIE_SECURE", false),
		SweepSchedule:  EnvDefault("SWEEP_SCHEDULE", "@every 5m"),
		AllowedOrigins: CSV(os.Getenv("ALLOWED_ORIGINS")),

		NoticeRetention: EnvDurationDefault("NOTICE_RETENTION", 72*time.Hour),
	}
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func EnvDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func EnvBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
