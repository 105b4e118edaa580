package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/n2nstreams/saasfactory-cloud/internal/api/middleware"
	"github.com/n2nstreams/saasfactory-cloud/internal/config"
	"github.com/n2nstreams/saasfactory-cloud/internal/domain/promotion"
	"github.com/n2nstreams/saasfactory-cloud/internal/domain/tenant"
	"github.com/n2nstreams/saasfactory-cloud/internal/usecase/promote"
)

type Router struct {
	engine       *gin.Engine
	server       *http.Server
	cfg          *config.Config
	db           *gorm.DB
	tenantRepo   tenant.Repository
	outcomeRepo  promotion.OutcomeRepository
	orchestrator *promote.Orchestrator
	logger       *zap.Logger
}

func NewRouter(
	cfg *config.Config,
	db *gorm.DB,
	tenantRepo tenant.Repository,
	outcomeRepo promotion.OutcomeRepository,
	orchestrator *promote.Orchestrator,
	logger *zap.Logger,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Metrics())
	r.Use(middleware.Logger(logger))

	api := &Router{
		engine:       r,
		cfg:          cfg,
		db:           db,
		tenantRepo:   tenantRepo,
		outcomeRepo:  outcomeRepo,
		orchestrator: orchestrator,
		logger:       logger,
	}

	api.RegisterRoutes()
	return api
}

func (r *Router) RegisterRoutes() {
	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Trigger intake. Accepts the raw payload and acknowledges once the
	// outbox write commits; the run itself happens asynchronously.
	hooks := r.engine.Group("/hooks")
	{
		hooks.POST("/promotion", r.ReceivePromotionTrigger)
	}

	api := r.engine.Group("/api")
	{
		api.GET("/tenants/:slug", r.GetTenant)
		api.GET("/tenants/:slug/promotions", r.ListTenantPromotions)
		api.GET("/promotions/:id", r.GetPromotion)
	}

	admin := r.engine.Group("/admin")
	admin.Use(r.adminAuth())
	{
		admin.POST("/tenants/:slug/reset", r.ResetTenant)
		admin.POST("/promotions", r.RunPromotion)
	}
}

func (r *Router) Run() error {
	r.server = &http.Server{
		Addr:         ":" + r.cfg.Port,
		Handler:      r.engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return r.server.ListenAndServe()
}

func (r *Router) adminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		expected := strings.TrimSpace(r.cfg.AdminAPIToken)
		if expected == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin_token_not_configured"})
			return
		}

		provided := strings.TrimSpace(c.GetHeader("X-Admin-Token"))
		if provided == "" {
			authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
			if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
				provided = strings.TrimSpace(authHeader[7:])
			}
		}

		if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// Shutdown gracefully shuts down the HTTP server.
func (r *Router) Shutdown(ctx context.Context) error {
	if r.server == nil {
		return nil
	}
	return r.server.Shutdown(ctx)
}
