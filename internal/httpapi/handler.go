package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Lllllllleong/ocrgrabber/internal/models"
)

// Runner is the pipeline surface the HTTP layer drives.
type Runner interface {
	Submit(ctx context.Context, inputs []models.RawInput) (models.Receipt, error)
	Status(runID uuid.UUID) (models.RunStatusResponse, error)
	Cancel(runID uuid.UUID) error
}

// RunHandler handles batch submission and progress endpoints.
type RunHandler struct {
	runner         Runner
	maxUploadBytes int64
}

// NewRunHandler creates a new RunHandler.
func NewRunHandler(runner Runner, maxUploadBytes int64) *RunHandler {
	return &RunHandler{runner: runner, maxUploadBytes: maxUploadBytes}
}

// Submit handles POST /api/v1/runs
func (h *RunHandler) Submit(c *gin.Context) {
	inputs, err := ReadMultipart(c.Writer, c.Request, h.maxUploadBytes)
	if err != nil {
		HandleError(c, err)
		return
	}

	receipt, err := h.runner.Submit(c.Request.Context(), inputs)
	if err != nil {
		HandleError(c, err)
		return
	}
	loggerFrom(c).Info("Batch submitted.", "runId", receipt.RunID, "admitted", receipt.AdmittedCount, "rejected", len(receipt.Rejections))
	RespondAccepted(c, receipt)
}

// Get handles GET /api/v1/runs/:id
func (h *RunHandler) Get(c *gin.Context) {
	runID, ok := parseRunID(c)
	if !ok {
		return
	}
	status, err := h.runner.Status(runID)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, status)
}

// Cancel handles DELETE /api/v1/runs/:id
func (h *RunHandler) Cancel(c *gin.Context) {
	runID, ok := parseRunID(c)
	if !ok {
		return
	}
	if err := h.runner.Cancel(runID); err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, gin.H{"runId": runID, "canceled": true})
}

// Liveness handles GET /healthz
func Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func parseRunID(c *gin.Context) (uuid.UUID, bool) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid run ID")
		return uuid.Nil, false
	}
	return runID, true
}
