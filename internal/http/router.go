// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, structured logging, panic recovery, metrics,
// rate limiting of writes, CORS, and security headers.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-sync/internal/config"
	"github.com/tbourn/go-chat-sync/internal/domain"
	"github.com/tbourn/go-chat-sync/internal/http/handlers"
	"github.com/tbourn/go-chat-sync/internal/http/middleware"
	"github.com/tbourn/go-chat-sync/internal/repo"
	"github.com/tbourn/go-chat-sync/internal/services"
)

// repoShim adapts the repository free functions to the query interfaces
// expected by the services, keeping services decoupled from package repo.
type repoShim struct{}

func (repoShim) GetChat(ctx context.Context, db *gorm.DB, id int64) (*domain.Chat, error) {
	return repo.GetChat(ctx, db, id)
}

func (repoShim) CountChats(ctx context.Context, db *gorm.DB, f domain.Filter) (int64, error) {
	return repo.CountChats(ctx, db, f)
}

func (repoShim) ListChatsPage(ctx context.Context, db *gorm.DB, f domain.Filter, offset, limit int) ([]domain.Chat, error) {
	return repo.ListChatsPage(ctx, db, f, offset, limit)
}

func (repoShim) ListPermissions(ctx context.Context, db *gorm.DB, chatID int64) ([]domain.Permission, error) {
	return repo.ListPermissions(ctx, db, chatID)
}

func (repoShim) GetPermission(ctx context.Context, db *gorm.DB, chatID, userID int64) (*domain.Permission, error) {
	return repo.GetPermission(ctx, db, chatID, userID)
}

func (repoShim) GetTerm(ctx context.Context, db *gorm.DB, id int64) (*domain.Term, error) {
	return repo.GetTerm(ctx, db, id)
}

func (repoShim) GetSponsor(ctx context.Context, db *gorm.DB, id string) (*domain.Sponsor, error) {
	return repo.GetSponsor(ctx, db, id)
}

func (repoShim) ListSponsors(ctx context.Context, db *gorm.DB) ([]domain.Sponsor, error) {
	return repo.ListSponsors(ctx, db)
}

func (repoShim) GetSponsorshipHistory(ctx context.Context, db *gorm.DB, id string) (*domain.SponsorshipHistory, error) {
	return repo.GetSponsorshipHistory(ctx, db, id)
}

func (repoShim) ListSponsorshipHistories(ctx context.Context, db *gorm.DB, f domain.Filter) ([]domain.SponsorshipHistory, error) {
	return repo.ListSponsorshipHistories(ctx, db, f)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. Reads go straight to db; every write goes through core.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: access log plus request-scoped logger in the request context
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Rate limiter (writes only, per IP)
//  8. CORS and security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, core services.Core, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	r.Use(limitBody(maxBody))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if cfg.RateRPS > 0 {
		rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByIP())
		r.Use(rl.Handler())
	}

	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins))
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: cfg.Security.EnableHSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			handlers.Fail(c, http.StatusServiceUnavailable, handlers.ErrCodeUnavailable, "database unreachable")
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	q := repoShim{}
	h := handlers.New(handlers.Services{
		Chats:        services.NewChatService(db, q, core),
		Permissions:  services.NewPermissionService(db, q, core),
		Terms:        services.NewTermService(db, q, core),
		Sponsors:     services.NewSponsorService(db, q, core),
		Sponsorships: services.NewSponsorshipService(db, q, core),
	})

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.GET("/chats", h.ListChats)
		api.PUT("/chats/:id", h.PutChat)
		api.PATCH("/chats/:id", h.PatchChat)
		api.GET("/chats/:id", h.GetChat)
		api.DELETE("/chats/:id", h.DeleteChat)

		api.PUT("/chats/:id/permissions", h.PutPermissions)
		api.GET("/chats/:id/permissions", h.ListPermissions)
		api.GET("/chats/:id/permissions/:user_id", h.GetPermission)

		api.PUT("/terms/:id", h.PutTerm)
		api.GET("/terms/:id", h.GetTerm)
		api.DELETE("/terms/:id", h.DeleteTerm)

		api.POST("/sponsors", h.CreateSponsor)
		api.GET("/sponsors", h.ListSponsors)
		api.GET("/sponsors/:id", h.GetSponsor)
		api.PUT("/sponsors/:id", h.UpdateSponsor)
		api.DELETE("/sponsors/:id", h.DeleteSponsor)

		api.POST("/sponsorship-histories", h.CreateSponsorship)
		api.GET("/sponsorship-histories", h.ListSponsorships)
		api.GET("/sponsorship-histories/:id", h.GetSponsorship)
		api.PUT("/sponsorship-histories/:id", h.UpdateSponsorship)
		api.DELETE("/sponsorship-histories/:id", h.DeleteSponsorship)
		api.POST("/sponsorship-histories/:id/reached", h.MarkSponsorshipReached)
	}
}

// corsMiddleware allows every origin when allowed is empty, otherwise only
// the listed ones.
func corsMiddleware(allowed []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "If-None-Match", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID", "ETag", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(allowed) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = allowed
	}
	return cors.New(cfg)
}

// limitBody caps the request body size to maxBytes using
// http.MaxBytesReader. Oversized bodies fail to decode and yield 400.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
