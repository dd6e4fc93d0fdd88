package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/plaetorius/streambet/internal/api/handler"
	"github.com/plaetorius/streambet/internal/api/middleware"
	"github.com/plaetorius/streambet/internal/config"
	"github.com/plaetorius/streambet/internal/repository"
	"github.com/plaetorius/streambet/internal/service"
	"github.com/plaetorius/streambet/internal/ws"
)

// RouterDeps bundles every dependency needed to build the router.
// Populated once in main() and passed to SetupRouter.
type RouterDeps struct {
	ProfileSvc *service.ProfileService
	MarketSvc  *service.MarketService
	SettleSvc  *service.SettlementService
	BookSvc    *service.BookService
	BetRepo    *repository.BetRepository
	Hub        *ws.Hub
	Cfg        *config.Config
}

// SetupRouter creates and configures the main Gin engine with all routes,
// middleware, CORS, and rate limiting rules.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	// ── CORS ─────────────────────────────────────────────────────────────────
	r.Use(corsMiddleware(deps.Cfg))

	// ── Health check ─────────────────────────────────────────────────────────
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(deps.ProfileSvc)
	marketH := handler.NewMarketHandler(deps.MarketSvc, deps.BookSvc)
	betH := handler.NewBetHandler(deps.SettleSvc, deps.BetRepo)

	// ── Session middleware (shared) ──────────────────────────────────────────
	sessionMW := middleware.SessionMiddleware(deps.ProfileSvc)
	optionalMW := middleware.OptionalSessionMiddleware(deps.ProfileSvc)

	// ── Rate limiters ─────────────────────────────────────────────────────────
	authRL := middleware.RateLimitMiddleware(10) // 10 req/s per IP for auth endpoints
	betRL := middleware.RateLimitMiddleware(30)  // 30 req/s per IP for bet endpoints

	api := r.Group("/api")
	{
		// ── Auth (public, strict rate limit) ─────────────────────────────────
		auth := api.Group("/auth")
		auth.Use(authRL)
		{
			auth.POST("/sync", authH.Sync)
		}

		// ── Markets (public) ─────────────────────────────────────────────────
		markets := api.Group("/markets")
		{
			markets.GET("", marketH.ListMarkets)
			markets.GET("/stream/:platform/:name", marketH.GetByStream)
			markets.GET("/:id", marketH.GetByID)
		}

		// ── Bet placement (optional session: drives the wallet flow) ─────────
		place := api.Group("/bets")
		place.Use(betRL, optionalMW)
		{
			place.POST("", betH.PlaceBet)
		}

		// ── Authenticated routes ──────────────────────────────────────────────
		authed := api.Group("")
		authed.Use(sessionMW)
		{
			// Profile
			authed.GET("/me", authH.Me)

			// Bets
			bets := authed.Group("/bets")
			bets.Use(betRL)
			{
				bets.GET("/confirmed", betH.GetConfirmed)
				bets.GET("/my", betH.GetMyBets)
				bets.GET("/:id", betH.GetBetByID)
			}
		}
	}

	// ── WebSocket ─────────────────────────────────────────────────────────────
	if deps.Hub != nil {
		r.GET("/ws/results", func(c *gin.Context) {
			deps.Hub.ServeResults(c.Writer, c.Request)
		})
		r.GET("/ws/:platform/:name", func(c *gin.Context) {
			deps.Hub.ServeStream(c.Writer, c.Request, c.Param("platform"), c.Param("name"))
		})
	}

	return r
}

// ── CORS helper ───────────────────────────────────────────────────────────────

// corsMiddleware returns a gin middleware that sets appropriate CORS headers.
// In development all origins are allowed; in production only configured ones.
func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	allowed := make(map[string]bool)
	for _, o := range strings.Split(cfg.Server.AllowedOrigins, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			allowed[o] = true
		}
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if !cfg.IsProd() || len(allowed) == 0 {
			// Development: allow any origin
			c.Header("Access-Control-Allow-Origin", "*")
		} else if allowed[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
