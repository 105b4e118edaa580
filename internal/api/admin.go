package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/n2nstreams/saasfactory-cloud/internal/domain/tenant"
)

// ResetTenant moves a tenant out of promoting or promotion_failed back to
// shared. This is the only path out of a failed promotion: infrastructure
// created by the failed run is left in place for operators to clean up or
// reuse on the next attempt.
func (r *Router) ResetTenant(c *gin.Context) {
	slug := c.Param("slug")

	reset, err := r.tenantRepo.ResetToShared(c.Request.Context(), slug)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !reset {
		t, findErr := r.tenantRepo.FindBySlug(c.Request.Context(), slug)
		if findErr == nil && t == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": tenant.ErrNotFound.Error()})
			return
		}
		c.JSON(http.StatusConflict, gin.H{"error": "tenant is not in a resettable state"})
		return
	}

	r.logger.Info("tenant_reset_to_shared", zap.String("tenant", slug))
	c.JSON(http.StatusOK, gin.H{"slug": slug, "isolation_state": "shared"})
}
