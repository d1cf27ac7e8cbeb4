package app

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mentorbridge/internal/http"
	httpH "github.com/yungbote/mentorbridge/internal/http/handlers"
	httpMW "github.com/yungbote/mentorbridge/internal/http/middleware"
	"github.com/yungbote/mentorbridge/internal/observability"
	"github.com/yungbote/mentorbridge/internal/platform/logger"
)

type Middleware struct {
	Session *httpMW.SessionMiddleware
}

type Handlers struct {
	Health   *httpH.HealthHandler
	Session  *httpH.SessionHandler
	Wizard   *httpH.WizardHandler
	Expert   *httpH.ExpertHandler
	Checkout *httpH.CheckoutHandler
}

func wireMiddleware(log *logger.Logger, cfg Config, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Session: httpMW.NewSessionMiddleware(log, services.Tokens, httpMW.SessionCookieConfig{
			Domain: cfg.CookieDomain,
			Secure: cfg.CookieSecure,
		}),
	}
}

func wireHandlers(log *logger.Logger, services Services, clients Clients, middleware Middleware) Handlers {
	log.Info("Wiring handlers...")
	probes := map[string]httpH.Probe{}
	if clients.Redis != nil {
		probes["redis"] = clients.Redis.Ping
	}
	return Handlers{
		Health:   httpH.NewHealthHandler(probes),
		Session:  httpH.NewSessionHandler(services.Sessions, middleware.Session.Clear),
		Wizard:   httpH.NewWizardHandler(services.Wizards, time.Now),
		Expert:   httpH.NewExpertHandler(services.Experts),
		Checkout: httpH.NewCheckoutHandler(services.Purchases),
	}
}

func wireRouter(log *logger.Logger, cfg Config, handlers Handlers, middleware Middleware, metrics *observability.Metrics) *gin.Engine {
	return http.NewRouter(http.RouterConfig{
		Log:               log,
		ServiceName:       cfg.ServiceName,
		AllowedOrigins:    cfg.AllowedOrigins,
		Metrics:           metrics,
		SessionMiddleware: middleware.Session,
		HealthHandler:     handlers.Health,
		SessionHandler:    handlers.Session,
		WizardHandler:     handlers.Wizard,
		ExpertHandler:     handlers.Expert,
		CheckoutHandler:   handlers.Checkout,
	})
}
