package app

import (
	"context"
	"time"

	"github.com/yungbote/mentorbridge/internal/data/stores"
	"github.com/yungbote/mentorbridge/internal/platform/logger"
)

type Stores struct {
	Sessions stores.SessionStore
	Wizards  stores.WizardStore
	Locker   stores.Locker

	// sweepers is empty in redis mode, where keys expire on their own.
	sweepers []func() int
}

func wireStores(log *logger.Logger, cfg Config, clients Clients) Stores {
	log.Info("Wiring stores...", "store_mode", cfg.StoreMode)
	if cfg.StoreMode == StoreModeRedis && clients.Redis != nil {
		return Stores{
			Sessions: clients.Redis.SessionStore(cfg.SessionTTL),
			Wizards:  clients.Redis.WizardStore(cfg.SessionTTL),
			Locker:   clients.Redis.Locker(),
		}
	}
	sessions := stores.NewMemorySessionStore(cfg.SessionTTL, time.Now)
	wizards := stores.NewMemoryWizardStore(cfg.SessionTTL, time.Now)
	return Stores{
		Sessions: sessions,
		Wizards:  wizards,
		Locker:   stores.NewMemoryLocker(time.Now),
		sweepers: []func() int{sessions.Sweep, wizards.Sweep},
	}
}

func (s Stores) startSweeper(ctx context.Context, log *logger.Logger, every time.Duration) {
	if len(s.sweepers) == 0 {
		return
	}
	go func() {
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				n := 0
				for _, sweep := range s.sweepers {
					n += sweep()
				}
				if n > 0 {
					log.Debug("Swept expired entries", "count", n)
				}
			}
		}
	}()
}
