package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"receipt-print-gateway/internal/mw"
)

// RouterOptions tune the middleware.
type RouterOptions struct {
	RateLimitPerSec  float64
	RateLimitBurst   int
	PrintersCacheTTL time.Duration
}

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(mw.Logger(h.log), gin.Recovery())

	r.Use(mw.Loopback())
	r.Use(mw.CORS(func() []string { return h.config.Get().AllowedOrigins }))

	token := func() string { return h.config.Get().PairingToken }
	auth := mw.TokenAuth(token, "")

	// printer listing is cached; a config change invalidates it
	printersCache := cache.New(opts.PrintersCacheTTL, 2*opts.PrintersCacheTTL+time.Minute)
	caching := mw.Cache(printersCache, opts.PrintersCacheTTL)
	invalidate := mw.Invalidate(printersCache)

	r.GET("/health", h.GetHealth)
	r.GET("/config", h.GetConfig)

	r.GET("/events", mw.TokenAuth(token, "token"), h.Events)

	authed := r.Group("/")
	authed.Use(auth)
	{
		authed.POST("/config", invalidate, h.PostConfig)
		authed.POST("/token/regenerate", h.RegenerateToken)
		authed.GET("/printers", caching, h.GetPrinters)
		authed.GET("/jobs", h.GetJobs)

		printing := authed.Group("/print")
		printing.Use(mw.RateLimiter(rate.Limit(opts.RateLimitPerSec), opts.RateLimitBurst))
		{
			printing.POST("/receipt", h.PrintReceipt)
			printing.POST("/cashdrawer", h.OpenCashDrawer)
			printing.POST("/cut", h.Cut)
			printing.POST("/test", h.TestPrint)
		}

		authed.GET("/subscriptions", h.GetSubscription)
		authed.PUT("/subscriptions", h.PutSubscription)
		authed.DELETE("/subscriptions", h.DeleteSubscription)
		authed.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
