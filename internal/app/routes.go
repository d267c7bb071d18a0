package app

import (
	"log/slog"
	"net/http"
	"time"

	_ "UserService/docs"
	"UserService/internal/auth"
	"UserService/internal/cache"
	"UserService/internal/config"
	"UserService/internal/events"
	"UserService/internal/handlers"
	"UserService/internal/logging"
	"UserService/internal/metrics"
	"UserService/internal/repo"
	"UserService/internal/service"
	"UserService/internal/session"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/swaggo/swag"
)

// Deps are the already-connected collaborators the router is built from.
type Deps struct {
	Log      *slog.Logger
	Users    repo.UserRepo
	Sessions session.Store
	// Cache is optional.
	Cache   *cache.UserCache
	Events  events.Publisher
	Metrics *metrics.Metrics

	Database handlers.Dependency
	Session  handlers.Dependency
}

// NewRouter builds the engine with every route registered.
func NewRouter(cfg config.Config, d Deps) (*gin.Engine, error) {
	opts := service.Options{
		StorageTimeout: cfg.App.StorageTimeout.Duration(),
		Events:         d.Events,
		Metrics:        d.Metrics,
		Logger:         d.Log,
	}
	hasher := hasherFor(cfg.Auth)
	authSvc, err := service.NewAuthService(d.Users, hasher, d.Sessions,
		auth.NewTokenCodec([]byte(cfg.Auth.SecretKey)), opts)
	if err != nil {
		return nil, err
	}
	userSvc := service.NewUserService(d.Users, hasher, d.Cache, opts)

	r := gin.New()
	r.Use(
		gin.Recovery(),
		logging.RequestID(),
		logging.RequestLogger(d.Log),
		d.Metrics.Middleware(),
		corsMiddleware(cfg.HTTP.FrontendURL),
		limitBody(cfg.HTTP.MaxBodyBytes),
	)

	r.GET("/", rootHandler(cfg))
	r.GET("/health", handlers.NewHealthHandler(d.Database, d.Session).Health)
	r.GET("/version", versionHandler(cfg))
	r.GET("/metrics", d.Metrics.Handler())
	r.GET("/swagger-doc.json", swaggerDocHandler())
	r.GET("/swagger", func(c *gin.Context) { c.Redirect(http.StatusFound, "/swagger/index.html") })
	r.GET("/swagger/*any", ginSwagger.WrapHandler(
		swaggerFiles.Handler,
		ginSwagger.URL("/swagger-doc.json"),
		ginSwagger.DefaultModelsExpandDepth(-1),
		ginSwagger.PersistAuthorization(true),
	))

	authHandler := handlers.NewAuthHandler(authSvc, handlers.CookieConfig{
		Secure: cfg.Session.CookieSecure,
		Domain: cfg.Session.CookieDomain,
		TTL:    cfg.Session.TTL.Duration(),
	})
	userHandler := handlers.NewUserHandler(userSvc, authHandler)

	guard := auth.RequireSession(authSvc)
	registerAuthRoutes(r.Group("/auth"), guard, authHandler)
	registerUserRoutes(r.Group("/api/users", guard), userHandler)
	return r, nil
}

func corsMiddleware(frontendURL string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS", "HEAD"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", logging.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", "Content-Type", logging.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	// cookies cross origins only for the configured frontend
	if frontendURL != "" {
		cfg.AllowOrigins = []string{frontendURL}
		cfg.AllowCredentials = true
	} else {
		cfg.AllowAllOrigins = true
	}
	return cors.New(cfg)
}

func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if n > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}

func rootHandler(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "user-service",
			"version": cfg.App.Version,
			"env":     cfg.App.Env,
			"docs":    "/swagger/index.html",
			"spec":    "/swagger-doc.json",
			"health":  "/health",
			"auth":    "/auth",
			"api":     "/api/users",
		})
	}
}

func versionHandler(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"version": cfg.App.Version})
	}
}

func swaggerDocHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := swag.ReadDoc("swagger")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "docs unavailable"})
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(doc))
	}
}

func registerAuthRoutes(g *gin.RouterGroup, guard gin.HandlerFunc, h *handlers.AuthHandler) {
	g.POST("/register", h.Register)
	g.POST("/login", h.Login)
	g.POST("/logout", guard, h.Logout)
	g.GET("/verify-session", guard, h.VerifySession)
	g.GET("/current-user", guard, h.CurrentUser)
}

func registerUserRoutes(g *gin.RouterGroup, h *handlers.UserHandler) {
	g.GET("", h.List)
	g.GET("/:id", h.GetByID)
	g.GET("/username/:username", h.GetByUsername)
	g.PATCH("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}
