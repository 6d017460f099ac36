package internal_entity

import (
	"time"

	"gorm.io/gorm"

	"github.com/vocalisai/vocalis/pkg/models/gorm/generators"
)

// AuthAttempt is the audit row written for every verification, pass or fail.
type AuthAttempt struct {
	Id        uint64    `gorm:"column:id;primaryKey" json:"id"`
	Phone     string    `gorm:"column:phone;index;not null" json:"phone"`
	Success   bool      `gorm:"column:success;not null" json:"success"`
	Score     float64   `gorm:"column:score;not null" json:"score"`
	CreatedAt time.Time `gorm:"column:created_at;index;not null" json:"created_at"`
}

func (AuthAttempt) TableName() string {
	return "auth_attempts"
}

func (a *AuthAttempt) BeforeCreate(tx *gorm.DB) error {
	if a.Id == 0 {
		a.Id = generators.ID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	return nil
}
