package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/mentorbridge/internal/http/handlers"
	httpMW "github.com/yungbote/mentorbridge/internal/http/middleware"
	"github.com/yungbote/mentorbridge/internal/observability"
	"github.com/yungbote/mentorbridge/internal/platform/logger"
)

type RouterConfig struct {
	Log               *logger.Logger
	ServiceName       string
	AllowedOrigins    []string
	Metrics           *observability.Metrics
	SessionMiddleware *httpMW.SessionMiddleware

	HealthHandler   *httpH.HealthHandler
	SessionHandler  *httpH.SessionHandler
	WizardHandler   *httpH.WizardHandler
	ExpertHandler   *httpH.ExpertHandler
	CheckoutHandler *httpH.CheckoutHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	if cfg.Log != nil {
		r.Use(httpMW.RequestLogger(cfg.Log))
	}
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.AllowedOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", func(c *gin.Context) { cfg.Metrics.WriteHTTP(c.Writer, c.Request) })
	}

	api := r.Group("/api")
	if cfg.SessionMiddleware != nil {
		api.Use(cfg.SessionMiddleware.Attach())
	}
	{
		// Session
		if cfg.SessionHandler != nil {
			api.GET("/session", cfg.SessionHandler.Get)
			api.POST("/session/refresh", cfg.SessionHandler.Refresh)
			api.POST("/session/phone", cfg.SessionHandler.UpdatePhone)
			api.POST("/session/logout", cfg.SessionHandler.Logout)
		}

		// Assessment wizard
		if cfg.WizardHandler != nil {
			api.GET("/wizard/catalog", cfg.WizardHandler.Catalog)
			api.POST("/wizard", cfg.WizardHandler.Start)
			api.GET("/wizard/:id", cfg.WizardHandler.Get)
			api.DELETE("/wizard/:id", cfg.WizardHandler.Close)
			api.POST("/wizard/:id/answers", cfg.WizardHandler.Answer)
			api.POST("/wizard/:id/next", cfg.WizardHandler.Next)
			api.POST("/wizard/:id/back", cfg.WizardHandler.Back)
			api.POST("/wizard/:id/otp/send", cfg.WizardHandler.SendOTP)
			api.POST("/wizard/:id/otp/verify", cfg.WizardHandler.VerifyOTP)
			api.POST("/wizard/:id/expertise", cfg.WizardHandler.PickExpertise)
			api.POST("/wizard/:id/retry", cfg.WizardHandler.Retry)
			api.POST("/wizard/:id/select", cfg.WizardHandler.Select)
		}

		// Experts
		if cfg.ExpertHandler != nil {
			api.GET("/experts/search", cfg.ExpertHandler.Search)
		}

		// Checkout
		if cfg.CheckoutHandler != nil {
			api.POST("/checkout/:type/:id/order", cfg.CheckoutHandler.Start)
			api.POST("/checkout/callback", cfg.CheckoutHandler.Callback)
		}
	}

	return r
}
