package app

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/yungbote/mentorbridge/internal/platform/logger"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "STORE_MODE", "SESSION_CACHE_EXPIRY", "OTP_RESEND_COOLDOWN", "CORS_ALLOWED_ORIGINS", "BACKEND_TIMEOUT_SECONDS", "WIZARD_BUSY_TTL"} {
		t.Setenv(k, "")
	}
	cfg := LoadConfig(logger.Nop())

	if cfg.Port != "8080" || cfg.StoreMode != StoreModeMemory {
		t.Fatalf("port=%q store=%q", cfg.Port, cfg.StoreMode)
	}
	if cfg.SessionCacheTTL != 5*time.Minute || cfg.OTPResendCooldown != 30*time.Second {
		t.Fatalf("cache=%s cooldown=%s", cfg.SessionCacheTTL, cfg.OTPResendCooldown)
	}
	if cfg.AllowedOrigins != nil {
		t.Fatalf("origins=%v", cfg.AllowedOrigins)
	}
	if cfg.BackendTimeout != 15*time.Second || cfg.WizardBusyTTL != 0 {
		t.Fatalf("backend timeout=%s busy ttl=%s", cfg.BackendTimeout, cfg.WizardBusyTTL)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("STORE_MODE", "Redis")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://app.example.com, ,https://admin.example.com ")
	cfg := LoadConfig(logger.Nop())

	if cfg.StoreMode != StoreModeRedis {
		t.Fatalf("store=%q", cfg.StoreMode)
	}
	want := []string{"https://app.example.com", "https://admin.example.com"}
	if diff := cmp.Diff(want, cfg.AllowedOrigins); diff != "" {
		t.Fatalf("origins mismatch (-want +got):\n%s", diff)
	}

	t.Setenv("STORE_MODE", "etcd")
	if got := LoadConfig(logger.Nop()).StoreMode; got != StoreModeMemory {
		t.Fatalf("unknown mode fell back to %q", got)
	}
}
