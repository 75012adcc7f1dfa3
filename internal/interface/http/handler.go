package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/eldertech-assistant/internal/domain/auth"
	"github.com/yanqian/eldertech-assistant/internal/domain/chat"
	"github.com/yanqian/eldertech-assistant/internal/domain/faq"
	"github.com/yanqian/eldertech-assistant/internal/domain/faqanalysis"
	"github.com/yanqian/eldertech-assistant/internal/domain/speech"
)

// Handler wires the HTTP transport to domain services.
type Handler struct {
	authSvc     auth.Service
	chatSvc     chat.Service
	speechSvc   speech.Service
	faqSvc      faq.Service
	analysisSvc faqanalysis.Service
	logger      *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(
	authSvc auth.Service,
	chatSvc chat.Service,
	speechSvc speech.Service,
	faqSvc faq.Service,
	analysisSvc faqanalysis.Service,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		authSvc:     authSvc,
		chatSvc:     chatSvc,
		speechSvc:   speechSvc,
		faqSvc:      faqSvc,
		analysisSvc: analysisSvc,
		logger:      logger.With("component", "http.handler"),
	}
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// Root is the API banner.
func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "ElderTech Assistant API", "version": "1.0.0"})
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		abortWithError(c, badRequest(errMessage(err), err))
		return false
	}
	return true
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		abortWithError(c, badRequest(name+" must be a positive integer", err))
		return 0, false
	}
	return id, true
}

func requireClaims(c *gin.Context) (auth.Claims, bool) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing token", nil))
	}
	return claims, ok
}

// writeEvents streams every value from ch as a Server-Sent Event.
func writeEvents[T any](c *gin.Context, logger *slog.Logger, ch <-chan T) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "stream_unsupported", "streaming not supported", nil))
		return
	}

	for chunk := range ch {
		payload, err := json.Marshal(chunk)
		if err != nil {
			logger.Error("marshal chunk failed", "error", err)
			continue
		}
		c.Writer.Write([]byte("data: "))
		c.Writer.Write(payload)
		c.Writer.Write([]byte("\n\n"))
		flusher.Flush()
	}
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
