package voice_auth_routers

import (
	"github.com/gin-gonic/gin"

	healthCheckApi "github.com/vocalisai/vocalis/api/health-check-api"
	internal_embedding "github.com/vocalisai/vocalis/api/voice-auth-api/internal/embedding"
	internal_store "github.com/vocalisai/vocalis/api/voice-auth-api/internal/store"
	"github.com/vocalisai/vocalis/config"
	"github.com/vocalisai/vocalis/pkg/commons"
)

func HealthCheckRoutes(cfg *config.AppConfig, engine *gin.Engine, logger commons.Logger, store internal_store.Store, extractor internal_embedding.Extractor) {
	logger.Info("HealthCheckRoutes added to engine.")
	apiv1 := engine.Group("")
	hcApi := healthCheckApi.New(cfg, logger, store, extractor)
	{
		apiv1.GET("/readiness", hcApi.Readiness)
		apiv1.GET("/healthz", hcApi.Healthz)
	}
}
