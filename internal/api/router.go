package api

import (
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mesikahq/clinical-notes/internal/auth"
	"github.com/mesikahq/clinical-notes/internal/metrics"
	"github.com/mesikahq/clinical-notes/internal/middleware"
)

var registerTagNames sync.Once

type RouterConfig struct {
	RateLimit rate.Limit
	RateBurst int
	CORS      middleware.CORSConfig
}

type Router struct {
	handler        *Handler
	authMiddleware *auth.Middleware
	metrics        *metrics.Metrics
	config         RouterConfig
}

func NewRouter(handler *Handler, verifier auth.Verifier, m *metrics.Metrics, config RouterConfig, logger *zap.Logger) *Router {
	return &Router{
		handler:        handler,
		authMiddleware: auth.NewMiddleware(verifier, logger),
		metrics:        m,
		config:         config,
	}
}

func (r *Router) SetupRouter(logger *zap.Logger) *gin.Engine {
	useJSONFieldNames()

	router := gin.New()

	// Apply global middleware
	router.Use(
		middleware.RequestIDMiddleware(),
		middleware.RecoveryMiddleware(logger),
		middleware.SecurityHeadersMiddleware(),
		middleware.CORS(r.config.CORS),
		middleware.LoggerMiddleware(logger),
		r.metrics.Middleware(),
		middleware.RateLimitMiddleware(r.config.RateLimit, r.config.RateBurst),
		middleware.AuditContextMiddleware(),
	)

	// Public routes
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, livenessMessage)
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	router.GET("/metrics", r.metrics.Handler())

	// Protected routes (require a verified ID token)
	protected := router.Group("")
	protected.Use(r.authMiddleware.RequireUser())
	{
		patients := protected.Group("/patients")
		{
			patients.GET("", r.handler.ListPatients)
			patients.POST("", r.handler.CreatePatient)
			patients.GET("/:id", r.handler.GetPatient)
			patients.GET("/:id/reports", r.handler.ListReports)
		}

		protected.POST("/generate-report", r.handler.GenerateReport)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
	})

	return router
}

// useJSONFieldNames makes validation errors name fields by their json tag.
func useJSONFieldNames() {
	registerTagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
}
