package internal_store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	internal_entity "github.com/vocalisai/vocalis/api/voice-auth-api/internal/entity"
	"github.com/vocalisai/vocalis/pkg/commons"
	"github.com/vocalisai/vocalis/pkg/connectors"
)

type postgresStore struct {
	postgres connectors.PostgresConnector
	logger   commons.Logger
}

func NewPostgresStore(postgres connectors.PostgresConnector, logger commons.Logger) Store {
	return &postgresStore{postgres: postgres, logger: logger}
}

// Migrate creates or updates the backing tables.
func Migrate(ctx context.Context, postgres connectors.PostgresConnector) error {
	return postgres.DB(ctx).AutoMigrate(
		&internal_entity.Voiceprint{},
		&internal_entity.AuthAttempt{},
	)
}

func (s *postgresStore) UpsertVoiceprint(ctx context.Context, vp *internal_entity.Voiceprint) error {
	vp.UpdatedAt = time.Now().UTC()
	err := s.postgres.DB(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "phone"}},
			DoUpdates: clause.AssignmentColumns([]string{"embedding", "enrolled_at", "updated_at"}),
		}).
		Create(vp).Error
	if err != nil {
		return fmt.Errorf("store: upsert voiceprint: %w", err)
	}
	return nil
}

func (s *postgresStore) GetVoiceprintByPhone(ctx context.Context, phone string) (*internal_entity.Voiceprint, error) {
	var vp internal_entity.Voiceprint
	err := s.postgres.DB(ctx).
		Where("phone = ?", phone).
		First(&vp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get voiceprint: %w", err)
	}
	return &vp, nil
}

func (s *postgresStore) DeleteVoiceprint(ctx context.Context, phone string) (bool, error) {
	result := s.postgres.DB(ctx).
		Where("phone = ?", phone).
		Delete(&internal_entity.Voiceprint{})
	if result.Error != nil {
		return false, fmt.Errorf("store: delete voiceprint: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (s *postgresStore) LogAttempt(ctx context.Context, attempt *internal_entity.AuthAttempt) error {
	if err := s.postgres.DB(ctx).Create(attempt).Error; err != nil {
		return fmt.Errorf("store: log attempt: %w", err)
	}
	return nil
}

func (s *postgresStore) AttemptsByPhone(ctx context.Context, phone string, limit int) ([]internal_entity.AuthAttempt, error) {
	if limit <= 0 {
		limit = 20
	}
	var attempts []internal_entity.AuthAttempt
	err := s.postgres.DB(ctx).
		Where("phone = ?", phone).
		Order("created_at DESC").
		Limit(limit).
		Find(&attempts).Error
	if err != nil {
		return nil, fmt.Errorf("store: attempts by phone: %w", err)
	}
	return attempts, nil
}

func (s *postgresStore) RecentFailureCount(ctx context.Context, phone string, window time.Duration) (int64, error) {
	var count int64
	since := time.Now().UTC().Add(-window)
	err := s.postgres.DB(ctx).
		Model(&internal_entity.AuthAttempt{}).
		Where("phone = ? AND success = ? AND created_at >= ?", phone, false, since).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("store: recent failure count: %w", err)
	}
	return count, nil
}

func (s *postgresStore) HealthCheck(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorw("store health check panicked", "panic", r)
			err = fmt.Errorf("store: health check panic: %v", r)
		}
	}()
	return s.postgres.Ping(ctx)
}
