package health_check_api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/vocalisai/vocalis/config"
	"github.com/vocalisai/vocalis/pkg/commons"
)

const probeTimeout = 5 * time.Second

// StoreProbe checks that the backing repository answers queries.
type StoreProbe interface {
	HealthCheck(ctx context.Context) error
}

// ModelProbe checks that the embedding sidecar answers requests.
type ModelProbe interface {
	Healthy(ctx context.Context) bool
}

// HealthCheckApi reports process liveness and dependency readiness.
type HealthCheckApi struct {
	cfg       *config.AppConfig
	logger    commons.Logger
	store     StoreProbe
	extractor ModelProbe
}

func New(cfg *config.AppConfig, logger commons.Logger, store StoreProbe, extractor ModelProbe) *HealthCheckApi {
	return &HealthCheckApi{cfg: cfg, logger: logger, store: store, extractor: extractor}
}

// Healthz probes the repository and the embedding sidecar in parallel.
// Healthy only when both respond.
func (h *HealthCheckApi) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
	defer cancel()

	storeOK, modelOK := true, true
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := h.store.HealthCheck(gctx); err != nil {
			h.logger.Warnw("store health probe failed", "error", err)
			storeOK = false
		}
		return nil
	})
	g.Go(func() error {
		if !h.extractor.Healthy(gctx) {
			modelOK = false
		}
		return nil
	})
	g.Wait()

	status := "healthy"
	code := http.StatusOK
	if !storeOK || !modelOK {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.cfg.Version,
	})
}

// Readiness is a cheap liveness probe: the process is up and serving.
func (h *HealthCheckApi) Readiness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.cfg.Version,
	})
}
