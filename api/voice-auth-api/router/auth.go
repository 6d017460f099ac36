package voice_auth_routers

import (
	"time"

	"github.com/gin-gonic/gin"

	voiceAuthApi "github.com/vocalisai/vocalis/api/voice-auth-api/api"
	internal_audio "github.com/vocalisai/vocalis/api/voice-auth-api/internal/audio"
	internal_capture "github.com/vocalisai/vocalis/api/voice-auth-api/internal/capture"
	internal_embedding "github.com/vocalisai/vocalis/api/voice-auth-api/internal/embedding"
	internal_service "github.com/vocalisai/vocalis/api/voice-auth-api/internal/service"
	internal_similarity "github.com/vocalisai/vocalis/api/voice-auth-api/internal/similarity"
	internal_store "github.com/vocalisai/vocalis/api/voice-auth-api/internal/store"
	"github.com/vocalisai/vocalis/config"
	"github.com/vocalisai/vocalis/pkg/commons"
	"github.com/vocalisai/vocalis/pkg/connectors"
)

// Components are the wired pipeline pieces shared across route groups.
type Components struct {
	Service   *internal_service.Service
	Store     internal_store.Store
	Extractor internal_embedding.Extractor
}

// NewComponents wires the pipeline from configuration.
func NewComponents(cfg *config.AppConfig, logger commons.Logger, postgres connectors.PostgresConnector) *Components {
	audioCfg := internal_audio.NewLinear16khzMonoAudioConfig()
	captureCfg := internal_capture.Config{
		MinDuration:      secs(cfg.MinAudioDuration),
		MaxDuration:      secs(cfg.MaxAudioDuration),
		SilenceDuration:  secs(cfg.SilenceDurationSecond),
		SilenceThreshold: cfg.SilenceThreshold,
		ConnectTimeout:   secs(cfg.ConnectTimeoutSeconds),
	}

	store := internal_store.NewPostgresStore(postgres, logger)
	extractor := internal_embedding.NewHTTPExtractor(cfg.EmbeddingHost, cfg.EmbeddingTimeout(), logger)
	service := internal_service.NewService(
		internal_audio.NewFetcher(logger),
		internal_audio.NewNormalizer(audioCfg, logger),
		internal_capture.NewEngine(captureCfg, audioCfg, logger),
		extractor,
		internal_similarity.NewJudge(cfg.VoiceThreshold),
		store,
		logger,
	)
	return &Components{Service: service, Store: store, Extractor: extractor}
}

// VoiceAuthApiRoute registers the enrollment and verification routes.
func VoiceAuthApiRoute(cfg *config.AppConfig, engine *gin.Engine, logger commons.Logger, service *internal_service.Service) {
	logger.Info("VoiceAuthApiRoute added to engine.")
	apiv1 := engine.Group("api/v1")
	authApi := voiceAuthApi.NewAuthApi(cfg, logger, service)
	{
		apiv1.POST("/enroll", authApi.Enroll)
		apiv1.POST("/verify", authApi.Verify)
		apiv1.POST("/vapi-webhook", authApi.Webhook)
		apiv1.POST("/vapi-webhook/debug", authApi.WebhookDebug)
		apiv1.GET("/users/:phone/auth-history", authApi.AuthHistory)
		apiv1.GET("/users/:phone/recent-failures", authApi.RecentFailures)
		apiv1.DELETE("/users/:phone", authApi.Unenroll)
	}
}

func secs(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
