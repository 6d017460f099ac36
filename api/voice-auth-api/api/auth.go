package voice_auth_api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	internal_service "github.com/vocalisai/vocalis/api/voice-auth-api/internal/service"
	"github.com/vocalisai/vocalis/config"
	"github.com/vocalisai/vocalis/pkg/commons"
)

// AuthApi exposes the enrollment and verification pipelines over HTTP.
type AuthApi struct {
	cfg     *config.AppConfig
	logger  commons.Logger
	service *internal_service.Service
}

func NewAuthApi(cfg *config.AppConfig, logger commons.Logger, service *internal_service.Service) *AuthApi {
	return &AuthApi{cfg: cfg, logger: logger, service: service}
}

type enrollRequest struct {
	Phone    string `json:"phone" binding:"required"`
	AudioUrl string `json:"audioUrl" binding:"required,url"`
}

type verifyRequest struct {
	Phone     string `json:"phone" binding:"required"`
	ListenUrl string `json:"listenUrl" binding:"required"`
}

// webhookEnvelope is the provider call-event payload.
type webhookEnvelope struct {
	Message struct {
		Call struct {
			Customer struct {
				Number string `json:"number"`
			} `json:"customer"`
			Monitor struct {
				ListenUrl string `json:"listenUrl"`
			} `json:"monitor"`
		} `json:"call"`
	} `json:"message"`
}

type verifyResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Score   *float64    `json:"score"`
	Records interface{} `json:"records"`
}

// Enroll handles POST /api/v1/enroll.
func (a *AuthApi) Enroll(c *gin.Context) {
	var req enrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "InvalidRequest", "message": err.Error()})
		return
	}

	res, err := a.service.Enroll(c.Request.Context(), req.Phone, req.AudioUrl)
	if err != nil {
		a.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Verify handles POST /api/v1/verify.
func (a *AuthApi) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "InvalidRequest", "message": err.Error()})
		return
	}
	a.runVerify(c, req.Phone, req.ListenUrl)
}

// Webhook handles POST /api/v1/vapi-webhook: the provider call-started event
// carrying the caller number and the live listen socket.
func (a *AuthApi) Webhook(c *gin.Context) {
	phone, listenURL, ok := a.extractWebhook(c)
	if !ok {
		return
	}
	a.runVerify(c, phone, listenURL)
}

// WebhookDebug handles POST /api/v1/vapi-webhook/debug: validates the envelope
// and echoes what would be verified, without touching the live call.
func (a *AuthApi) WebhookDebug(c *gin.Context) {
	phone, listenURL, ok := a.extractWebhook(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"phone":     phone,
		"listenUrl": listenURL,
	})
}

func (a *AuthApi) extractWebhook(c *gin.Context) (phone, listenURL string, ok bool) {
	var envelope webhookEnvelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "InvalidRequest", "message": err.Error()})
		return "", "", false
	}
	phone = envelope.Message.Call.Customer.Number
	listenURL = envelope.Message.Call.Monitor.ListenUrl
	if phone == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "MissingPhoneNumber"})
		return "", "", false
	}
	if listenURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "MissingListenURL"})
		return "", "", false
	}
	return phone, listenURL, true
}

func (a *AuthApi) runVerify(c *gin.Context, phone, listenURL string) {
	res, err := a.service.Verify(c.Request.Context(), phone, listenURL)
	if err != nil {
		a.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, verifyResponse{
		Success: res.Success,
		Message: res.Message,
		Score:   res.Score,
	})
}

// AuthHistory handles GET /api/v1/users/:phone/auth-history.
func (a *AuthApi) AuthHistory(c *gin.Context) {
	phone := c.Param("phone")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	attempts, err := a.service.AuthHistory(c.Request.Context(), phone, limit)
	if err != nil {
		a.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"phone": phone, "attempts": attempts})
}

// RecentFailures handles GET /api/v1/users/:phone/recent-failures.
func (a *AuthApi) RecentFailures(c *gin.Context) {
	phone := c.Param("phone")
	minutes, _ := strconv.Atoi(c.DefaultQuery("window_minutes", "60"))
	if minutes <= 0 {
		minutes = 60
	}

	count := a.service.RecentFailures(c.Request.Context(), phone, time.Duration(minutes)*time.Minute)
	c.JSON(http.StatusOK, gin.H{"phone": phone, "window_minutes": minutes, "failures": count})
}

// Unenroll handles DELETE /api/v1/users/:phone.
func (a *AuthApi) Unenroll(c *gin.Context) {
	existed, err := a.service.Unenroll(c.Request.Context(), c.Param("phone"))
	if err != nil {
		a.renderError(c, err)
		return
	}
	if !existed {
		c.JSON(http.StatusNotFound, gin.H{"error": "NotEnrolled"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// renderError translates pipeline errors into HTTP responses. The cause is
// logged with the call id; the body only carries the kind.
func (a *AuthApi) renderError(c *gin.Context, err error) {
	if errors.Is(err, context.Canceled) {
		// peer is gone, nothing useful to write
		c.Status(499)
		return
	}

	var kind internal_service.Kind
	var enrollErr *internal_service.EnrollmentError
	var verifyErr *internal_service.VerificationError
	switch {
	case errors.As(err, &enrollErr):
		kind = enrollErr.Kind
		a.logger.Errorw("enrollment failed",
			"stage", enrollErr.Stage, "kind", kind, "cause", enrollErr.Cause)
	case errors.As(err, &verifyErr):
		kind = verifyErr.Kind
		a.logger.Errorw("verification failed",
			"stage", verifyErr.Stage, "kind", kind, "cause", verifyErr.Cause)
	default:
		kind = internal_service.KindInternalError
		a.logger.Errorw("request failed", "error", err)
	}

	c.JSON(statusForKind(kind), gin.H{"error": string(kind)})
}

func statusForKind(kind internal_service.Kind) int {
	switch kind {
	case internal_service.KindFetchTimeout,
		internal_service.KindFetchHTTPStatus,
		internal_service.KindEmptyDownload,
		internal_service.KindConnectionError,
		internal_service.KindConnectionClosed,
		internal_service.KindNoAudioCaptured:
		return http.StatusBadRequest
	case internal_service.KindUnsupportedCorrupt,
		internal_service.KindTruncatedHeader,
		internal_service.KindValidationFailed,
		internal_service.KindTooShort,
		internal_service.KindEmbeddingInvalid:
		return http.StatusUnprocessableEntity
	case internal_service.KindEmbeddingUnavail,
		internal_service.KindEmbeddingTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
