package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/eldertech-assistant/internal/domain/faqanalysis"
)

type analysisRunRequest struct {
	Async bool `json:"async"`
}

// AnalysisReport returns the latest clustering and gap report.
func (h *Handler) AnalysisReport(c *gin.Context) {
	report, err := h.analysisSvc.Latest(c.Request.Context())
	if err != nil {
		abortWithError(c, domainError(err, "analysis_failed"))
		return
	}
	c.JSON(http.StatusOK, report)
}

// RunAnalysis runs the pipeline inline, or queues it when async is requested.
func (h *Handler) RunAnalysis(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req analysisRunRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	if c.Query("async") == "true" {
		req.Async = true
	}

	if req.Async {
		jobID, err := h.analysisSvc.Enqueue(c.Request.Context(), claims.Email)
		if err != nil {
			abortWithError(c, domainError(err, "analysis_failed"))
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"jobId": jobID, "status": "queued"})
		return
	}

	report, err := h.analysisSvc.Run(c.Request.Context(), faqanalysis.TriggerAPI)
	if err != nil {
		abortWithError(c, domainError(err, "analysis_failed"))
		return
	}
	c.JSON(http.StatusOK, report)
}
