package internal_embedding

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	internal_audio "github.com/vocalisai/vocalis/api/voice-auth-api/internal/audio"
	"github.com/vocalisai/vocalis/pkg/commons"
)

func newTestLogger(t *testing.T) commons.Logger {
	t.Helper()
	logger, err := commons.NewApplicationLogger(
		commons.Name("test-embedding"),
		commons.Path(t.TempDir()),
		commons.Level("debug"),
	)
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return logger
}

func testWAV(seconds float64) []byte {
	pcm := make([]byte, int(seconds*32000))
	return internal_audio.PCMToWAV(pcm, internal_audio.NewLinear16khzMonoAudioConfig())
}

func sidecar(t *testing.T, embed http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/embed", embed)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestExtractSuccess(t *testing.T) {
	vec := make([]float64, Dimension)
	for i := range vec {
		vec[i] = float64(i) / Dimension
	}
	vec[0] = 0.5

	srv := sidecar(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "audio/wav", r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"embedding": vec})
	})

	e := NewHTTPExtractor(srv.URL, 5*time.Second, newTestLogger(t))
	got, err := e.Extract(context.Background(), testWAV(3))
	assert.NoError(t, err)
	assert.Len(t, got, Dimension)
	assert.InDelta(t, 0.5, got[0], 1e-12)
}

func TestExtractTooShort(t *testing.T) {
	srv := sidecar(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("sidecar must not be called for short audio")
	})

	e := NewHTTPExtractor(srv.URL, 5*time.Second, newTestLogger(t))
	_, err := e.Extract(context.Background(), testWAV(0.25))
	assert.True(t, errors.Is(err, ErrWaveformTooShort), "got %v", err)
}

func TestExtractWrongDimension(t *testing.T) {
	srv := sidecar(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"embedding": []float64{1, 2, 3}})
	})

	e := NewHTTPExtractor(srv.URL, 5*time.Second, newTestLogger(t))
	_, err := e.Extract(context.Background(), testWAV(3))
	assert.True(t, errors.Is(err, ErrEmbeddingInvalid), "got %v", err)
}

func TestExtractServerError(t *testing.T) {
	srv := sidecar(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	})

	e := NewHTTPExtractor(srv.URL, 5*time.Second, newTestLogger(t))
	_, err := e.Extract(context.Background(), testWAV(3))
	assert.True(t, errors.Is(err, ErrEmbeddingUnavailable), "got %v", err)
}

func TestExtractUnreachable(t *testing.T) {
	e := NewHTTPExtractor("http://127.0.0.1:1", time.Second, newTestLogger(t))
	_, err := e.Extract(context.Background(), testWAV(3))
	assert.True(t,
		errors.Is(err, ErrEmbeddingUnavailable) || errors.Is(err, ErrEmbeddingTimeout),
		"got %v", err)
}

func TestValidate(t *testing.T) {
	e := NewHTTPExtractor("http://localhost", time.Second, newTestLogger(t))

	good := make([]float64, Dimension)
	good[7] = 0.3
	assert.True(t, e.Validate(good))

	assert.False(t, e.Validate(nil), "nil vector")
	assert.False(t, e.Validate(make([]float64, Dimension-1)), "short vector")
	assert.False(t, e.Validate(make([]float64, Dimension)), "all-zero vector")

	nan := make([]float64, Dimension)
	nan[0] = math.NaN()
	assert.False(t, e.Validate(nan), "NaN component")

	inf := make([]float64, Dimension)
	inf[0] = math.Inf(1)
	assert.False(t, e.Validate(inf), "Inf component")
}

func TestHealthy(t *testing.T) {
	srv := sidecar(t, func(w http.ResponseWriter, r *http.Request) {})
	e := NewHTTPExtractor(srv.URL, time.Second, newTestLogger(t))
	assert.True(t, e.Healthy(context.Background()))

	down := NewHTTPExtractor("http://127.0.0.1:1", time.Second, newTestLogger(t))
	assert.False(t, down.Healthy(context.Background()))
}
