package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/n2nstreams/saasfactory-cloud/internal/domain/tenant"
)

// GetTenant returns the control-plane view of a tenant, including its
// isolation state and, once promoted, its deployment and routing refs.
func (r *Router) GetTenant(c *gin.Context) {
	slug := c.Param("slug")

	t, err := r.tenantRepo.FindBySlug(c.Request.Context(), slug)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if t == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": tenant.ErrNotFound.Error()})
		return
	}

	c.JSON(http.StatusOK, t)
}

// ListTenantPromotions returns the promotion audit records for one tenant,
// newest first.
func (r *Router) ListTenantPromotions(c *gin.Context) {
	slug := c.Param("slug")

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	outcomes, err := r.outcomeRepo.ListBySlug(c.Request.Context(), slug, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"promotions": outcomes})
}
