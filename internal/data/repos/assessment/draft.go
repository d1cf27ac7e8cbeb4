package assessment

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/mentorbridge/internal/domain/assessment"
	"github.com/yungbote/mentorbridge/internal/platform/dbctx"
	"github.com/yungbote/mentorbridge/internal/platform/logger"
)

type DraftRepo interface {
	Upsert(dbc dbctx.Context, d *types.Draft) error
	GetBySession(dbc dbctx.Context, sessionID string) (*types.Draft, error)
	DeleteBySession(dbc dbctx.Context, sessionID string) error
	DeleteOlderThan(dbc dbctx.Context, before time.Time) (int64, error)
}

type draftRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDraftRepo(db *gorm.DB, baseLog *logger.Logger) DraftRepo {
	return &draftRepo{db: db, log: baseLog.With("repo", "DraftRepo")}
}

// Upsert keeps one draft per session, replacing the snapshot on conflict.
func (r *draftRepo) Upsert(dbc dbctx.Context, d *types.Draft) error {
	if d == nil {
		return nil
	}
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"wizard_id", "step", "snapshot", "updated_at"}),
		}).
		Create(d).Error
}

func (r *draftRepo) GetBySession(dbc dbctx.Context, sessionID string) (*types.Draft, error) {
	var d types.Draft
	err := dbc.DB(r.db).Where("session_id = ?", sessionID).Limit(1).Take(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *draftRepo) DeleteBySession(dbc dbctx.Context, sessionID string) error {
	return dbc.DB(r.db).Where("session_id = ?", sessionID).Delete(&types.Draft{}).Error
}

func (r *draftRepo) DeleteOlderThan(dbc dbctx.Context, before time.Time) (int64, error) {
	res := dbc.DB(r.db).Where("updated_at < ?", before).Delete(&types.Draft{})
	return res.RowsAffected, res.Error
}
