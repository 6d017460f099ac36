package internal_service

import (
	"errors"
	"fmt"

	internal_audio "github.com/vocalisai/vocalis/api/voice-auth-api/internal/audio"
	internal_capture "github.com/vocalisai/vocalis/api/voice-auth-api/internal/capture"
	internal_embedding "github.com/vocalisai/vocalis/api/voice-auth-api/internal/embedding"
)

// classifyFetch maps fetcher errors onto the public taxonomy.
func classifyFetch(err error) Kind {
	var statusErr *internal_audio.HTTPStatusError
	switch {
	case errors.Is(err, internal_audio.ErrFetchTimeout):
		return KindFetchTimeout
	case errors.As(err, &statusErr):
		return KindFetchHTTPStatus
	case errors.Is(err, internal_audio.ErrEmptyDownload):
		return KindEmptyDownload
	case errors.Is(err, internal_audio.ErrInvalidURL),
		errors.Is(err, internal_audio.ErrDownloadTooLarge):
		return KindValidationFailed
	default:
		return KindInternalError
	}
}

// classifyAudio maps normalizer and header errors onto the taxonomy.
func classifyAudio(err error) Kind {
	switch {
	case errors.Is(err, internal_audio.ErrEmptyInput):
		return KindEmptyDownload
	case errors.Is(err, internal_audio.ErrUnsupportedOrCorrupt),
		errors.Is(err, internal_audio.ErrNotWAV):
		return KindUnsupportedCorrupt
	case errors.Is(err, internal_audio.ErrTruncatedHeader):
		return KindTruncatedHeader
	default:
		return KindInternalError
	}
}

// classifyEmbedding maps extractor errors onto the taxonomy.
func classifyEmbedding(err error) Kind {
	switch {
	case errors.Is(err, internal_embedding.ErrEmbeddingUnavailable):
		return KindEmbeddingUnavail
	case errors.Is(err, internal_embedding.ErrEmbeddingTimeout):
		return KindEmbeddingTimeout
	case errors.Is(err, internal_embedding.ErrEmbeddingInvalid):
		return KindEmbeddingInvalid
	case errors.Is(err, internal_embedding.ErrWaveformTooShort):
		return KindTooShort
	default:
		return KindInternalError
	}
}

// classifyCapture maps capture errors onto a pipeline stage and kind.
func classifyCapture(err error) (stage string, kind Kind) {
	switch {
	case errors.Is(err, internal_capture.ErrConnection),
		errors.Is(err, internal_capture.ErrInvalidListenURL):
		return "connection", KindConnectionError
	case errors.Is(err, internal_capture.ErrConnectionClosed):
		return "capture", KindConnectionClosed
	case errors.Is(err, internal_capture.ErrNoAudioCaptured):
		return "capture", KindNoAudioCaptured
	default:
		return "capture", KindInternalError
	}
}

func verifyFailMessage(score, threshold float64) string {
	return fmt.Sprintf("verification failed: %.3f < %.2f", score, threshold)
}
