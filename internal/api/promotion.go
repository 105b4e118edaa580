package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/n2nstreams/saasfactory-cloud/internal/domain/promotion"
	"github.com/n2nstreams/saasfactory-cloud/internal/outbox"
)

type triggerRequest struct {
	Label       string `json:"label"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	RequestedBy string `json:"requested_by"`
}

// ReceivePromotionTrigger accepts a raw promotion trigger and enqueues it.
// The response is an acknowledgement, not a result: the run happens
// asynchronously and reports through the configured notifier.
func (r *Router) ReceivePromotionTrigger(c *gin.Context) {
	var req triggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	raw := promotion.RawTrigger{
		Label:       req.Label,
		Title:       req.Title,
		Body:        req.Body,
		RequestedBy: req.RequestedBy,
	}

	eventID, err := outbox.Enqueue(c.Request.Context(), r.db, raw)
	if err != nil {
		r.logger.Error("trigger_enqueue_failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to accept trigger"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"event_id": strconv.FormatInt(eventID, 10)})
}

// GetPromotion returns the audit record of a single promotion run.
func (r *Router) GetPromotion(c *gin.Context) {
	runID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return
	}

	out, err := r.outcomeRepo.FindByRunID(c.Request.Context(), runID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if out == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "promotion not found"})
		return
	}

	c.JSON(http.StatusOK, out)
}

// RunPromotion executes a promotion synchronously. Operators use it to
// re-run a promotion after a reset without going through the trigger
// mechanism.
func (r *Router) RunPromotion(c *gin.Context) {
	var req triggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	out, err := r.orchestrator.Run(c.Request.Context(), promotion.RawTrigger{
		Label:       req.Label,
		Title:       req.Title,
		Body:        req.Body,
		RequestedBy: req.RequestedBy,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, out)
}
