package apihandlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"tidytabs/internal/app"
)

// RouterOptions tune the middleware stack.
type RouterOptions struct {
	RateLimit      float64 // requests per second, 0 disables
	Burst          int
	RequestTimeout time.Duration
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(a *app.App, opts RouterOptions) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), RequestLogger())

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	h := NewAPIHandler(a)
	router.GET("/", h.RootHandler)
	router.GET("/health", h.HealthHandler)

	api := router.Group("", RateLimit(limiter), Timeout(opts.RequestTimeout))
	{
		api.POST("/categorize_local", h.CategorizeLocalHandler)
		api.POST("/categorize_local/confidence", h.CategorizeLocalConfidenceHandler)
		api.POST("/categorize", h.CategorizeHandler)
		api.POST("/generate_tabs", h.GenerateTabsHandler)

		usage := api.Group("/usage")
		{
			usage.GET("", h.ListUsageHandler)
			usage.GET("/summary", h.UsageSummaryHandler)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		NotFound(c, "no route for "+c.Request.Method+" "+c.Request.URL.Path)
	})
	return router
}
