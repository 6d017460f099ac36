package internal_entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vocalisai/vocalis/pkg/models/gorm/generators"
)

// EmbeddingVector stores a speaker embedding as a JSON array column. Works
// unchanged on postgres (jsonb-compatible text) and sqlite.
type EmbeddingVector []float64

func (v EmbeddingVector) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func (v *EmbeddingVector) Scan(src interface{}) error {
	if src == nil {
		*v = nil
		return nil
	}
	switch data := src.(type) {
	case []byte:
		return json.Unmarshal(data, v)
	case string:
		return json.Unmarshal([]byte(data), v)
	default:
		return fmt.Errorf("embedding vector: cannot scan %T", src)
	}
}

// Voiceprint is one enrolled speaker, keyed by normalized phone number.
// Re-enrollment overwrites the embedding in place.
type Voiceprint struct {
	Id         uint64          `gorm:"column:id;primaryKey" json:"id"`
	Uuid       string          `gorm:"column:uuid;type:uuid;not null" json:"uuid"`
	Phone      string          `gorm:"column:phone;uniqueIndex;not null" json:"phone"`
	Embedding  EmbeddingVector `gorm:"column:embedding;type:text;not null" json:"-"`
	EnrolledAt time.Time       `gorm:"column:enrolled_at;not null" json:"enrolled_at"`
	UpdatedAt  time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (Voiceprint) TableName() string {
	return "voiceprints"
}

func (v *Voiceprint) BeforeCreate(tx *gorm.DB) error {
	if v.Id == 0 {
		v.Id = generators.ID()
	}
	if v.Uuid == "" {
		v.Uuid = uuid.NewString()
	}
	if v.EnrolledAt.IsZero() {
		v.EnrolledAt = time.Now().UTC()
	}
	return nil
}
