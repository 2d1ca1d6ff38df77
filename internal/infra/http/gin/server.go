package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"staybook/internal/infra/config"
	"staybook/internal/infra/obs"
)

type SearchHTTP interface {
	Search(c *gin.Context)
}

type ReservationHTTP interface {
	Book(c *gin.Context)
	Cancel(c *gin.Context)
	ListMine(c *gin.Context)
}

type StayHTTP interface {
	List(c *gin.Context)
	Get(c *gin.Context)
	Create(c *gin.Context)
	Delete(c *gin.Context)
	Reservations(c *gin.Context)
	Calendar(c *gin.Context)
}

type AdminHTTP interface {
	RebuildLedger(c *gin.Context)
}

type Handlers struct {
	Search         SearchHTTP
	Reservation    ReservationHTTP
	Stay           StayHTTP
	Admin          AdminHTTP
	AuthMiddleware gin.HandlerFunc
	Metrics        http.Handler
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(cfg, obsMW, health, h),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func NewRouter(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.AccessLog())
	router.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	if h.AuthMiddleware != nil {
		router.Use(h.AuthMiddleware)
	}

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)
	if h.Metrics != nil {
		router.GET("/metrics", gin.WrapH(h.Metrics))
	}

	api := router.Group("/api/v1")
	if h.Search != nil {
		api.GET("/search", h.Search.Search)
	}
	if h.Reservation != nil {
		api.POST("/reservations", h.Reservation.Book)
		api.GET("/reservations", h.Reservation.ListMine)
		api.DELETE("/reservations/:id", h.Reservation.Cancel)
	}
	if h.Stay != nil {
		stayGroup := api.Group("/stays")
		stayGroup.GET("", h.Stay.List)
		stayGroup.POST("", h.Stay.Create)
		stayGroup.GET("/:id", h.Stay.Get)
		stayGroup.DELETE("/:id", h.Stay.Delete)
		stayGroup.GET("/:id/reservations", h.Stay.Reservations)
		stayGroup.GET("/:id/calendar", h.Stay.Calendar)
	}
	if h.Admin != nil {
		api.POST("/admin/ledger/rebuild", h.Admin.RebuildLedger)
	}
	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "Content-Type", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
