package assessment

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Draft is a resumable snapshot of an unfinished wizard, one per browser session.
type Draft struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID string         `gorm:"column:session_id;not null;uniqueIndex" json:"session_id"`
	WizardID  string         `gorm:"column:wizard_id;not null;index" json:"wizard_id"`
	Step      int            `gorm:"column:step;not null" json:"step"`
	Snapshot  datatypes.JSON `gorm:"column:snapshot" json:"snapshot"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;index" json:"updated_at"`
}

func (Draft) TableName() string { return "assessment_draft" }
