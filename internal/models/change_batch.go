package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChangeBatch is one committed operation list, kept in change_history.
type ChangeBatch struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID  uuid.UUID `gorm:"type:uuid;index" json:"session_id"`
	Actor      string    `gorm:"type:text" json:"actor,omitempty"`
	Target     string    `gorm:"type:text;not null;index" json:"target"`
	Mode       string    `gorm:"type:text;not null" json:"mode"`
	Script     string    `gorm:"type:text;not null" json:"script"`
	Operations int       `json:"operations"`
	Applied    int       `json:"applied"`
	Success    bool      `json:"success"`
	Error      string    `gorm:"type:text" json:"error,omitempty"`
	ExecutedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"executed_at"`
}

func (ChangeBatch) TableName() string {
	return "change_history"
}

func (b *ChangeBatch) BeforeCreate(tx *gorm.DB) (err error) {
	b.Prepare()
	return
}

func (b *ChangeBatch) Prepare() {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.ExecutedAt.IsZero() {
		b.ExecutedAt = time.Now()
	}
}
