package voice_auth_routers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	internal_audio "github.com/vocalisai/vocalis/api/voice-auth-api/internal/audio"
	internal_embedding "github.com/vocalisai/vocalis/api/voice-auth-api/internal/embedding"
	internal_store "github.com/vocalisai/vocalis/api/voice-auth-api/internal/store"
	"github.com/vocalisai/vocalis/config"
	"github.com/vocalisai/vocalis/pkg/commons"
	"github.com/vocalisai/vocalis/pkg/connectors"
)

// fixture wires the full HTTP surface against local doubles for the three
// external collaborators: recording host, embedding sidecar, listen socket.
type fixture struct {
	engine *gin.Engine

	// sidecarVec is what the fake embedding model returns next
	sidecarVec []float64
}

func newRouterFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger, err := commons.NewApplicationLogger(
		commons.Name("test-router"),
		commons.Path(t.TempDir()),
		commons.Level("debug"),
	)
	require.NoError(t, err)

	f := &fixture{sidecarVec: fixtureEmbedding(0.05)}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/embed", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"embedding": f.sidecarVec})
	})
	sidecar := httptest.NewServer(mux)
	t.Cleanup(sidecar.Close)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "router_test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	connector := connectors.NewPostgresConnectorFromDB(db, logger)
	require.NoError(t, internal_store.Migrate(context.Background(), connector))

	cfg := &config.AppConfig{
		Name:                    "voice-auth-api",
		Version:                 "test",
		Host:                    "127.0.0.1",
		Port:                    0,
		LogLevel:                "debug",
		EmbeddingHost:           sidecar.URL,
		EmbeddingTimeoutSeconds: 5,
		VoiceThreshold:          0.82,
		MinAudioDuration:        3.0,
		MaxAudioDuration:        30.0,
		SilenceThreshold:        0.01,
		SilenceDurationSecond:   2.0,
		ConnectTimeoutSeconds:   2.0,
		WebsocketTimeout:        65,
	}

	engine := gin.New()
	engine.Use(CallID())
	components := NewComponents(cfg, logger, connector)
	VoiceAuthApiRoute(cfg, engine, logger, components.Service)
	HealthCheckRoutes(cfg, engine, logger, components.Store, components.Extractor)

	f.engine = engine
	return f
}

func fixtureEmbedding(seed float64) []float64 {
	vec := make([]float64, internal_embedding.Dimension)
	for i := range vec {
		vec[i] = seed + float64(i)*0.002
	}
	return vec
}

func orthogonalFixture() []float64 {
	base := fixtureEmbedding(0.05)
	vec := make([]float64, internal_embedding.Dimension)
	vec[0] = base[1]
	vec[1] = -base[0]
	return vec
}

// recordingServer serves a canonical wav of the given length.
func recordingServer(t *testing.T, seconds float64) string {
	t.Helper()
	wav := internal_audio.PCMToWAV(make([]byte, int(seconds*32000)),
		internal_audio.NewLinear16khzMonoAudioConfig())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/wav")
		w.Write(wav)
	}))
	t.Cleanup(srv.Close)
	return srv.URL + "/ok.wav"
}

// listenServer streams speechSeconds of loud audio then trailing silence.
func listenServer(t *testing.T, speechSeconds float64) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		loud := make([]byte, 3200) // 100ms
		for i := 0; i < len(loud); i += 2 {
			loud[i] = 0x00
			loud[i+1] = 0x20 // amplitude 8192
		}
		silent := make([]byte, 3200)

		send := func(pcm []byte) bool {
			msg, _ := json.Marshal(map[string]string{"audio": base64.StdEncoding.EncodeToString(pcm)})
			return conn.WriteMessage(websocket.TextMessage, msg) == nil
		}
		for i := 0; i < int(speechSeconds*10); i++ {
			if !send(loud) {
				return
			}
		}
		for i := 0; i < 25; i++ { // enough silence to endpoint
			if !send(silent) {
				return
			}
		}
		conn.ReadMessage()
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func (f *fixture) post(t *testing.T, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), "body: %s", rec.Body.String())
	return body
}

func (f *fixture) enroll(t *testing.T, phone string, seconds float64) {
	t.Helper()
	rec := f.post(t, "/api/v1/enroll", map[string]string{
		"phone":    phone,
		"audioUrl": recordingServer(t, seconds),
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestEnrollEndpoint(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.post(t, "/api/v1/enroll", map[string]string{
		"phone":    "+15551230000",
		"audioUrl": recordingServer(t, 5),
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, "enrolled", body["status"])
	assert.Equal(t, 1.0, body["score"])
}

func TestEnrollTooShortEndpoint(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.post(t, "/api/v1/enroll", map[string]string{
		"phone":    "+15551230000",
		"audioUrl": recordingServer(t, 2),
	}, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assert.Equal(t, "TooShort", decodeBody(t, rec)["error"])
}

func TestVerifyMatchEndpoint(t *testing.T) {
	f := newRouterFixture(t)
	f.enroll(t, "+15551230000", 5)

	rec := f.post(t, "/api/v1/verify", map[string]string{
		"phone":     "+15551230000",
		"listenUrl": listenServer(t, 4),
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.GreaterOrEqual(t, body["score"].(float64), 0.82)
	assert.Contains(t, body, "records")
}

func TestVerifyMismatchEndpoint(t *testing.T) {
	f := newRouterFixture(t)
	f.enroll(t, "+15551230000", 5)

	f.sidecarVec = orthogonalFixture()
	rec := f.post(t, "/api/v1/verify", map[string]string{
		"phone":     "+15551230000",
		"listenUrl": listenServer(t, 4),
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Less(t, body["score"].(float64), 0.82)
}

func TestVerifyNotEnrolledEndpoint(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.post(t, "/api/v1/verify", map[string]string{
		"phone":     "+15550000001",
		"listenUrl": "wss://irrelevant.example/listen",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "not enrolled", body["message"])
	assert.Nil(t, body["score"])
}

func TestWebhookEnvelope(t *testing.T) {
	f := newRouterFixture(t)
	f.enroll(t, "+15551230000", 5)

	envelope := map[string]interface{}{
		"message": map[string]interface{}{
			"call": map[string]interface{}{
				"customer": map[string]string{"number": "+15551230000"},
				"monitor":  map[string]string{"listenUrl": listenServer(t, 4)},
			},
		},
	}
	rec := f.post(t, "/api/v1/vapi-webhook", envelope, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, decodeBody(t, rec)["success"])
}

func TestWebhookMissingFields(t *testing.T) {
	f := newRouterFixture(t)

	t.Run("missing phone", func(t *testing.T) {
		envelope := map[string]interface{}{
			"message": map[string]interface{}{
				"call": map[string]interface{}{
					"monitor": map[string]string{"listenUrl": "wss://host/listen"},
				},
			},
		}
		rec := f.post(t, "/api/v1/vapi-webhook", envelope, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "MissingPhoneNumber", decodeBody(t, rec)["error"])
	})

	t.Run("missing listen url", func(t *testing.T) {
		envelope := map[string]interface{}{
			"message": map[string]interface{}{
				"call": map[string]interface{}{
					"customer": map[string]string{"number": "+15551230000"},
				},
			},
		}
		rec := f.post(t, "/api/v1/vapi-webhook", envelope, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "MissingListenURL", decodeBody(t, rec)["error"])
	})
}

func TestAuthHistoryEndpoint(t *testing.T) {
	f := newRouterFixture(t)
	f.enroll(t, "+15551230000", 5)

	url := listenServer(t, 4)
	for i := 0; i < 2; i++ {
		rec := f.post(t, "/api/v1/verify", map[string]string{
			"phone": "+15551230000", "listenUrl": url,
		}, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := f.get(t, "/api/v1/users/+15551230000/auth-history?limit=10")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	attempts := body["attempts"].([]interface{})
	assert.Len(t, attempts, 2)
}

func TestCallIDEcho(t *testing.T) {
	f := newRouterFixture(t)

	t.Run("echoes provided id", func(t *testing.T) {
		rec := f.post(t, "/api/v1/verify", map[string]string{
			"phone": "+15550000001", "listenUrl": "wss://host/listen",
		}, map[string]string{CallIDHeader: "call-abc-123"})
		assert.Equal(t, "call-abc-123", rec.Header().Get(CallIDHeader))
	})

	t.Run("mints one when absent", func(t *testing.T) {
		rec := f.get(t, "/healthz")
		assert.NotEmpty(t, rec.Header().Get(CallIDHeader))
	})
}

func TestHealthzEndpoint(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.get(t, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestUnenrollEndpoint(t *testing.T) {
	f := newRouterFixture(t)
	f.enroll(t, "+15551230000", 5)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/users/+15551230000", nil)
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec2 := httptest.NewRecorder()
	f.engine.ServeHTTP(rec2, httptest.NewRequest(http.MethodDelete, "/api/v1/users/+15551230000", nil))
	assert.Equal(t, http.StatusNotFound, rec2.Code)
}

func TestRecentFailuresEndpoint(t *testing.T) {
	f := newRouterFixture(t)
	f.enroll(t, "+15551230000", 5)

	f.sidecarVec = orthogonalFixture()
	rec := f.post(t, "/api/v1/verify", map[string]string{
		"phone": "+15551230000", "listenUrl": listenServer(t, 4),
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.get(t, "/api/v1/users/+15551230000/recent-failures?window_minutes=60")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["failures"])
}
