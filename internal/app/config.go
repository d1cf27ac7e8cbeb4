package app

import (
	"strings"
	"time"

	"github.com/yungbote/mentorbridge/internal/clients/backend"
	"github.com/yungbote/mentorbridge/internal/platform/envutil"
	"github.com/yungbote/mentorbridge/internal/platform/logger"
)

const (
	StoreModeMemory = "memory"
	StoreModeRedis  = "redis"
)

type Config struct {
	Port        string
	ServiceName string

	SessionSigningKey string
	SessionTTL        time.Duration
	SessionCacheTTL   time.Duration
	CookieDomain      string
	CookieSecure      bool

	OTPResendCooldown time.Duration
	CheckoutAbandon   time.Duration
	// BackendTimeout mirrors the backend client's per-call bound; the wizard
	// busy lease is sized from it.
	BackendTimeout time.Duration
	WizardBusyTTL  time.Duration

	StoreMode      string
	DraftsEnabled  bool
	DraftRetention time.Duration

	AllowedOrigins []string
	MetricsAddr    string
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		Port:        envutil.String("PORT", "8080"),
		ServiceName: envutil.String("OTEL_SERVICE_NAME", "mentorbridge"),

		SessionSigningKey: envutil.String("SESSION_SIGNING_KEY", ""),
		SessionTTL:        envutil.Duration("SESSION_TTL", 24*time.Hour),
		SessionCacheTTL:   envutil.Duration("SESSION_CACHE_EXPIRY", 5*time.Minute),
		CookieDomain:      envutil.String("COOKIE_DOMAIN", ""),
		CookieSecure:      envutil.Bool("COOKIE_SECURE", false),

		OTPResendCooldown: envutil.Duration("OTP_RESEND_COOLDOWN", 30*time.Second),
		CheckoutAbandon:   envutil.Duration("CHECKOUT_ABANDON_AFTER", 30*time.Minute),
		BackendTimeout:    backend.ConfigFromEnv().Timeout,
		WizardBusyTTL:     envutil.Duration("WIZARD_BUSY_TTL", 0),

		StoreMode:      strings.ToLower(envutil.String("STORE_MODE", StoreModeMemory)),
		DraftsEnabled:  envutil.Bool("DRAFTS_ENABLED", true),
		DraftRetention: envutil.Duration("DRAFT_RETENTION", 7*24*time.Hour),

		AllowedOrigins: splitList(envutil.String("CORS_ALLOWED_ORIGINS", "")),
		MetricsAddr:    envutil.String("METRICS_ADDR", ""),
	}
	if cfg.BackendTimeout <= 0 {
		cfg.BackendTimeout = 15 * time.Second
	}
	if cfg.StoreMode != StoreModeMemory && cfg.StoreMode != StoreModeRedis {
		log.Warn("Unknown STORE_MODE, using memory", "store_mode", cfg.StoreMode)
		cfg.StoreMode = StoreModeMemory
	}
	return cfg
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
