package internal_embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/vocalisai/vocalis/pkg/commons"
)

// Dimension is the size of a speaker embedding vector.
const Dimension = 192

// minWaveformSamples is the shortest clip the model accepts: half a second
// at 16 kHz.
const minWaveformSamples = 8000

var (
	// ErrEmbeddingUnavailable marks a model service that cannot be reached.
	ErrEmbeddingUnavailable = errors.New("embedding: service unavailable")
	// ErrEmbeddingTimeout marks an inference call that exceeded its deadline.
	ErrEmbeddingTimeout = errors.New("embedding: inference timed out")
	// ErrEmbeddingInvalid marks a response that is not a valid vector.
	ErrEmbeddingInvalid = errors.New("embedding: invalid vector in response")
	// ErrWaveformTooShort marks audio under the model's minimum length.
	ErrWaveformTooShort = errors.New("embedding: waveform too short")
)

// Extractor turns a canonical wav into a fixed-length speaker embedding.
type Extractor interface {
	Extract(ctx context.Context, wav []byte) ([]float64, error)
	Validate(vec []float64) bool
	Healthy(ctx context.Context) bool
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// httpExtractor talks to the inference sidecar over HTTP. The sidecar loads
// the speaker model once at startup; readiness is probed lazily on first use.
type httpExtractor struct {
	client *resty.Client
	host   string
	logger commons.Logger

	readyOnce sync.Once
}

func NewHTTPExtractor(host string, timeout time.Duration, logger commons.Logger) Extractor {
	client := resty.New().
		SetBaseURL(host).
		SetTimeout(timeout)
	return &httpExtractor{client: client, host: host, logger: logger}
}

// Extract posts the wav to the sidecar and returns the embedding. Audio
// shorter than the model minimum is rejected up front without a network call.
func (e *httpExtractor) Extract(ctx context.Context, wav []byte) ([]float64, error) {
	if samples := (len(wav) - 44) / 2; samples < minWaveformSamples {
		return nil, fmt.Errorf("%w: %d samples", ErrWaveformTooShort, max(samples, 0))
	}

	e.readyOnce.Do(func() {
		if !e.Healthy(ctx) {
			e.logger.Warnw("embedding service not ready at first use", "host", e.host)
		}
	})

	started := time.Now()
	var out embedResponse
	resp, err := e.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "audio/wav").
		SetBody(wav).
		SetResult(&out).
		Post("/embed")
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, ErrEmbeddingTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: status %d", ErrEmbeddingUnavailable, resp.StatusCode())
	}
	if !e.Validate(out.Embedding) {
		return nil, fmt.Errorf("%w: got %d dims", ErrEmbeddingInvalid, len(out.Embedding))
	}

	e.logger.Benchmark("embedding_extract", time.Since(started))
	return out.Embedding, nil
}

// Validate checks dimensionality and that every component is a finite number.
func (e *httpExtractor) Validate(vec []float64) bool {
	if len(vec) != Dimension {
		return false
	}
	allZero := true
	for _, v := range vec {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
		if v != 0 {
			allZero = false
		}
	}
	return !allZero
}

// Healthy probes the sidecar's health endpoint.
func (e *httpExtractor) Healthy(ctx context.Context) bool {
	resp, err := e.client.R().SetContext(ctx).Get("/health")
	return err == nil && resp.IsSuccess()
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
