package app

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/mentorbridge/internal/data/repos"
	"github.com/yungbote/mentorbridge/internal/platform/dbctx"
	"github.com/yungbote/mentorbridge/internal/platform/logger"
)

type Repos struct {
	Draft repos.DraftRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	if db == nil {
		return Repos{}
	}
	log.Info("Wiring repos...")
	return Repos{
		Draft: repos.NewDraftRepo(db, log),
	}
}

// startDraftPruner deletes drafts nobody resumed within the retention window.
func (r Repos) startDraftPruner(ctx context.Context, log *logger.Logger, retention time.Duration) {
	if r.Draft == nil || retention <= 0 {
		return
	}
	go func() {
		t := time.NewTicker(time.Hour)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				n, err := r.Draft.DeleteOlderThan(dbctx.Context{Ctx: ctx}, time.Now().Add(-retention))
				if err != nil {
					log.Warn("Draft prune failed", "error", err)
					continue
				}
				if n > 0 {
					log.Info("Pruned stale drafts", "count", n)
				}
			}
		}
	}()
}
