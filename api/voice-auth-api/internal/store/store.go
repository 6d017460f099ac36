package internal_store

import (
	"context"
	"errors"
	"time"

	internal_entity "github.com/vocalisai/vocalis/api/voice-auth-api/internal/entity"
)

// ErrNotFound marks a lookup for a phone with no enrolled voiceprint.
var ErrNotFound = errors.New("store: voiceprint not found")

// Store is the persistence surface for voiceprints and the attempt audit log.
type Store interface {
	// UpsertVoiceprint creates or overwrites the voiceprint for vp.Phone.
	UpsertVoiceprint(ctx context.Context, vp *internal_entity.Voiceprint) error
	// GetVoiceprintByPhone returns ErrNotFound when the phone is not enrolled.
	GetVoiceprintByPhone(ctx context.Context, phone string) (*internal_entity.Voiceprint, error)
	// DeleteVoiceprint reports whether a row existed.
	DeleteVoiceprint(ctx context.Context, phone string) (bool, error)

	// LogAttempt appends one audit row, filling its id and timestamp.
	LogAttempt(ctx context.Context, attempt *internal_entity.AuthAttempt) error
	// AttemptsByPhone returns up to limit attempts, most recent first.
	AttemptsByPhone(ctx context.Context, phone string, limit int) ([]internal_entity.AuthAttempt, error)
	// RecentFailureCount counts failed attempts for phone inside the window.
	RecentFailureCount(ctx context.Context, phone string, window time.Duration) (int64, error)

	// HealthCheck reports whether the backing database is reachable.
	HealthCheck(ctx context.Context) error
}
