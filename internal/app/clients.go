package app

import (
	"fmt"

	"github.com/yungbote/mentorbridge/internal/checkout"
	"github.com/yungbote/mentorbridge/internal/clients/backend"
	"github.com/yungbote/mentorbridge/internal/clients/redis"
	"github.com/yungbote/mentorbridge/internal/platform/logger"
)

type Clients struct {
	Backend  backend.Client
	Redis    *redis.Client
	Checkout checkout.Config
	Script   *checkout.HTTPScriptLoader
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	be, err := backend.NewFromEnv(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init backend client: %w", err)
	}

	var rc *redis.Client
	if cfg.StoreMode == StoreModeRedis {
		rc, err = redis.New(log, redis.ConfigFromEnv())
		if err != nil {
			return Clients{}, fmt.Errorf("init redis: %w", err)
		}
	}

	co := checkout.ConfigFromEnv()
	return Clients{
		Backend:  be,
		Redis:    rc,
		Checkout: co,
		Script:   checkout.NewHTTPScriptLoader(log, co.ScriptURL, 0),
	}, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
