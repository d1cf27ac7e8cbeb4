package app

import (
	"fmt"

	"github.com/yungbote/mentorbridge/internal/checkout"
	"github.com/yungbote/mentorbridge/internal/platform/logger"
	"github.com/yungbote/mentorbridge/internal/services"
	"github.com/yungbote/mentorbridge/internal/wizard"
)

type Services struct {
	Tokens    services.SessionTokenService
	Sessions  services.SessionService
	Wizards   services.WizardService
	Experts   services.ExpertService
	Purchases services.PurchaseService

	Bridge *checkout.Bridge
}

func wireServices(log *logger.Logger, cfg Config, clients Clients, st Stores, rs Repos) (Services, error) {
	log.Info("Wiring services...")

	tokens, err := services.NewSessionTokenService(log, cfg.SessionSigningKey, cfg.SessionTTL, nil)
	if err != nil {
		return Services{}, fmt.Errorf("init session tokens: %w", err)
	}

	cat, err := wizard.DefaultCatalog()
	if err != nil {
		return Services{}, fmt.Errorf("load wizard catalog: %w", err)
	}

	handshake, err := checkout.NewHandshake(log, clients.Backend, clients.Script, clients.Checkout)
	if err != nil {
		return Services{}, fmt.Errorf("init checkout: %w", err)
	}
	bridge := checkout.NewBridge()

	sessions := services.NewSessionService(log, st.Sessions, clients.Backend, services.SessionConfig{
		CacheExpiry: cfg.SessionCacheTTL,
	})
	wizards := services.NewWizardService(log, cat, st.Wizards, st.Locker, rs.Draft, sessions, clients.Backend, services.WizardConfig{
		ResendCooldown: cfg.OTPResendCooldown,
		CallTimeout:    cfg.BackendTimeout,
		BusyTTL:        cfg.WizardBusyTTL,
	})

	return Services{
		Tokens:    tokens,
		Sessions:  sessions,
		Wizards:   wizards,
		Experts:   services.NewExpertService(log, sessions, clients.Backend),
		Purchases: services.NewPurchaseService(log, sessions, clients.Backend, handshake, bridge, services.PurchaseConfig{AbandonAfter: cfg.CheckoutAbandon}),
		Bridge:    bridge,
	}, nil
}
