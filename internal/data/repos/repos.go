package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/mentorbridge/internal/data/repos/assessment"
	"github.com/yungbote/mentorbridge/internal/platform/logger"
)

type DraftRepo = assessment.DraftRepo

func NewDraftRepo(db *gorm.DB, log *logger.Logger) DraftRepo {
	return assessment.NewDraftRepo(db, log)
}
