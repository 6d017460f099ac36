package internal_service

import (
	"context"
	"errors"
	"time"

	internal_audio "github.com/vocalisai/vocalis/api/voice-auth-api/internal/audio"
	internal_embedding "github.com/vocalisai/vocalis/api/voice-auth-api/internal/embedding"
	internal_entity "github.com/vocalisai/vocalis/api/voice-auth-api/internal/entity"
	internal_similarity "github.com/vocalisai/vocalis/api/voice-auth-api/internal/similarity"
	internal_store "github.com/vocalisai/vocalis/api/voice-auth-api/internal/store"
	"github.com/vocalisai/vocalis/pkg/commons"
	"github.com/vocalisai/vocalis/pkg/utils"
)

// minEnrollSeconds is the shortest recording accepted for enrollment.
const minEnrollSeconds = 3.0

// minVerifySeconds is the shortest live capture worth comparing.
const minVerifySeconds = 1.0

// Fetcher downloads an enrollment recording.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Normalizer converts arbitrary audio to the canonical wav.
type Normalizer interface {
	Normalize(ctx context.Context, data []byte) ([]byte, error)
}

// Capturer records caller audio from a live listen socket.
type Capturer interface {
	Capture(ctx context.Context, listenURL string) ([]byte, error)
}

// EnrollResult is the public outcome of a successful enrollment.
type EnrollResult struct {
	Status string  `json:"status"`
	Score  float64 `json:"score"`
}

// VerifyResult is the public outcome of a verification. Score is nil when no
// comparison happened (not enrolled, unusable audio).
type VerifyResult struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Score   *float64 `json:"score"`
}

// Service orchestrates the enrollment and verification pipelines.
type Service struct {
	fetcher    Fetcher
	normalizer Normalizer
	capturer   Capturer
	extractor  internal_embedding.Extractor
	judge      *internal_similarity.Judge
	store      internal_store.Store
	audioCfg   internal_audio.AudioConfig
	retry      utils.RetryConfig
	logger     commons.Logger
}

func NewService(
	fetcher Fetcher,
	normalizer Normalizer,
	capturer Capturer,
	extractor internal_embedding.Extractor,
	judge *internal_similarity.Judge,
	store internal_store.Store,
	logger commons.Logger,
) *Service {
	return &Service{
		fetcher:    fetcher,
		normalizer: normalizer,
		capturer:   capturer,
		extractor:  extractor,
		judge:      judge,
		store:      store,
		audioCfg:   internal_audio.NewLinear16khzMonoAudioConfig(),
		retry:      utils.DefaultRetryConfig(),
		logger:     logger,
	}
}

// Enroll downloads the recording at audioURL, extracts a voiceprint and
// stores it under phone. Re-enrolling an existing phone overwrites the
// voiceprint in place.
func (s *Service) Enroll(ctx context.Context, phone, audioURL string) (*EnrollResult, error) {
	normalized, err := utils.NormalizePhone(phone)
	if err != nil {
		return nil, &EnrollmentError{Stage: "validation", Kind: KindValidationFailed, Cause: err}
	}

	started := time.Now()
	raw, err := s.fetcher.Fetch(ctx, audioURL)
	if err != nil {
		return nil, &EnrollmentError{Stage: "download", Kind: classifyFetch(err), Cause: err}
	}

	wav, err := s.normalizer.Normalize(ctx, raw)
	if err != nil {
		return nil, &EnrollmentError{Stage: "processing", Kind: classifyAudio(err), Cause: err}
	}

	dur, err := internal_audio.Duration(wav, s.audioCfg)
	if err != nil {
		return nil, &EnrollmentError{Stage: "processing", Kind: classifyAudio(err), Cause: err}
	}
	if dur < minEnrollSeconds {
		s.logger.Infow("enrollment recording too short",
			"phone", normalized, "duration", dur)
		return nil, &EnrollmentError{Stage: "too_short", Kind: KindTooShort}
	}

	vec, err := s.extractor.Extract(ctx, wav)
	if err != nil {
		return nil, &EnrollmentError{Stage: "embedding", Kind: classifyEmbedding(err), Cause: err}
	}
	if !s.extractor.Validate(vec) {
		return nil, &EnrollmentError{Stage: "embedding", Kind: KindEmbeddingInvalid}
	}

	vp := &internal_entity.Voiceprint{
		Phone:      normalized,
		Embedding:  internal_entity.EmbeddingVector(vec),
		EnrolledAt: time.Now().UTC(),
	}
	err = utils.WithRetry(ctx, s.retry, func(ctx context.Context) error {
		return s.store.UpsertVoiceprint(ctx, vp)
	})
	if err != nil {
		return nil, &EnrollmentError{Stage: "store", Kind: KindStoreError, Cause: err}
	}

	s.logger.Infow("voiceprint enrolled",
		"phone", normalized, "duration", dur,
		"elapsed_ms", time.Since(started).Milliseconds())
	return &EnrollResult{Status: "enrolled", Score: 1.0}, nil
}

// Verify captures live audio from listenURL and compares the speaker against
// the voiceprint enrolled for phone. Exactly zero or one attempt row is
// written per call; a cancelled request writes none.
func (s *Service) Verify(ctx context.Context, phone, listenURL string) (*VerifyResult, error) {
	normalized, err := utils.NormalizePhone(phone)
	if err != nil {
		return nil, &VerificationError{Stage: "validation", Kind: KindValidationFailed, Cause: err}
	}

	logged := false
	logAttempt := func(success bool, score float64) {
		if logged {
			return
		}
		logged = true
		attempt := &internal_entity.AuthAttempt{
			Phone:   normalized,
			Success: success,
			Score:   score,
		}
		if err := s.store.LogAttempt(ctx, attempt); err != nil {
			s.logger.Warnw("attempt logging failed",
				"phone", normalized, "error", err)
		}
	}

	vp, err := s.store.GetVoiceprintByPhone(ctx, normalized)
	if errors.Is(err, internal_store.ErrNotFound) {
		logAttempt(false, 0.0)
		return &VerifyResult{Success: false, Message: "not enrolled"}, nil
	}
	if err != nil {
		return nil, &VerificationError{Stage: "store", Kind: KindStoreError, Cause: err}
	}

	wav, err := s.capturer.Capture(ctx, listenURL)
	if err != nil {
		if ctx.Err() != nil {
			// aborted request: the attempt has no outcome, log nothing
			return nil, ctx.Err()
		}
		logAttempt(false, 0.0)
		stage, kind := classifyCapture(err)
		return nil, &VerificationError{Stage: stage, Kind: kind, Cause: err}
	}

	dur, err := internal_audio.Duration(wav, s.audioCfg)
	if err != nil || dur < minVerifySeconds {
		s.logger.Infow("captured audio unusable",
			"phone", normalized, "duration", dur, "error", err)
		logAttempt(false, 0.0)
		return &VerifyResult{Success: false, Message: "audio too short"}, nil
	}

	live, err := s.extractor.Extract(ctx, wav)
	if err != nil || !s.extractor.Validate(live) {
		s.logger.Warnw("live embedding extraction failed",
			"phone", normalized, "error", err)
		logAttempt(false, 0.0)
		return &VerifyResult{Success: false, Message: "processing failed"}, nil
	}

	score, match, err := s.judge.Decide(vp.Embedding, live)
	if err != nil {
		s.logger.Errorw("similarity comparison failed",
			"phone", normalized, "error", err)
		logAttempt(false, 0.0)
		return &VerifyResult{Success: false, Message: "processing failed"}, nil
	}

	logAttempt(match, score)

	message := "verification successful"
	if !match {
		message = verifyFailMessage(score, s.judge.Threshold())
	}
	s.logger.Infow("verification decided",
		"phone", normalized, "success", match, "score", score, "duration", dur)
	return &VerifyResult{Success: match, Message: message, Score: &score}, nil
}

// Unenroll removes the voiceprint for phone, reporting whether one existed.
func (s *Service) Unenroll(ctx context.Context, phone string) (bool, error) {
	normalized, err := utils.NormalizePhone(phone)
	if err != nil {
		return false, &VerificationError{Stage: "validation", Kind: KindValidationFailed, Cause: err}
	}
	return s.store.DeleteVoiceprint(ctx, normalized)
}

// AuthHistory returns the most recent attempts for phone.
func (s *Service) AuthHistory(ctx context.Context, phone string, limit int) ([]internal_entity.AuthAttempt, error) {
	normalized, err := utils.NormalizePhone(phone)
	if err != nil {
		return nil, &VerificationError{Stage: "validation", Kind: KindValidationFailed, Cause: err}
	}
	return s.store.AttemptsByPhone(ctx, normalized, limit)
}

// RecentFailures counts failed attempts for phone inside the window. Store
// errors degrade to zero: the count feeds advisory rate displays, never
// security decisions.
func (s *Service) RecentFailures(ctx context.Context, phone string, window time.Duration) int64 {
	normalized, err := utils.NormalizePhone(phone)
	if err != nil {
		return 0
	}
	count, err := s.store.RecentFailureCount(ctx, normalized, window)
	if err != nil {
		s.logger.Warnw("recent failure count unavailable",
			"phone", normalized, "error", err)
		return 0
	}
	return count
}
