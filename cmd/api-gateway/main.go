package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/forum-auth-api/api/swagger"
	"github.com/noah-isme/forum-auth-api/internal/handler"
	"github.com/noah-isme/forum-auth-api/internal/middleware"
	"github.com/noah-isme/forum-auth-api/internal/models"
	"github.com/noah-isme/forum-auth-api/internal/repository"
	"github.com/noah-isme/forum-auth-api/internal/service"
	"github.com/noah-isme/forum-auth-api/internal/token"
	"github.com/noah-isme/forum-auth-api/pkg/cache"
	"github.com/noah-isme/forum-auth-api/pkg/config"
	"github.com/noah-isme/forum-auth-api/pkg/database"
	"github.com/noah-isme/forum-auth-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/forum-auth-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/forum-auth-api/pkg/middleware/requestid"
)

// @title Forum Auth API
// @version 1.0.0
// @description Authentication and session lifecycle service for the community forum
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, guest lookups will hit the store", "error", err)
		redisClient = nil
	}

	actorRepo := repository.NewActorRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	guestRepo := repository.NewGuestRepository(db, redisClient, cfg.Auth.GuestCacheTTL, logr)

	metricsService := service.NewMetricsService()

	auditService := service.NewAuditService(actorRepo, logr, cfg.Audit.Workers, cfg.Audit.BufferSize)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	auditService.Start(ctx)
	defer auditService.Stop()

	codec := token.NewCodec(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.Audience, nil)
	authService := service.NewAuthService(actorRepo, sessionRepo, guestRepo, codec, auditService, metricsService, nil, logr, service.AuthConfig{
		AccessTokenTTL:         cfg.Auth.AccessTokenTTL,
		RefreshTokenTTL:        cfg.Auth.RefreshTokenTTL,
		RefreshSliding:         cfg.Auth.RefreshSliding,
		RevokeOnPasswordChange: cfg.Auth.RevokeOnPasswordChange,
		KeepCurrentSession:     cfg.Auth.KeepCurrentSession,
		BcryptCost:             cfg.Auth.BcryptCost,
	}, nil)

	authHandler := handler.NewAuthHandler(authService)
	sessionHandler := handler.NewSessionHandler(authService)
	adminHandler := handler.NewAdminHandler(authService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	authorizer := middleware.NewAuthorizer(codec, guestRepo, metricsService, nil)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/join", authHandler.Join)
		auth.POST("/login", authHandler.Login)
		auth.POST("/siteadmin/login", authHandler.LoginSiteAdmin)
		auth.POST("/systemadmin/login", authHandler.LoginSystemAdmin)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/guest/join", authHandler.GuestJoin)
		auth.POST("/guest/refresh", authHandler.GuestRefresh)

		anyRole := authorizer.Require(models.RoleGuestVisitor, models.RoleMember, models.RoleSiteAdmin, models.RoleSystemAdmin)
		sessionRoles := authorizer.Require(models.RoleMember, models.RoleSiteAdmin, models.RoleSystemAdmin)

		auth.GET("/me", anyRole, authHandler.Me)
		auth.POST("/guest/upgrade", authorizer.Require(models.RoleGuestVisitor), authHandler.Upgrade)
		auth.POST("/logout", sessionRoles, authHandler.Logout)
		auth.POST("/logout-all", sessionRoles, authHandler.LogoutAll)
		auth.POST("/change-password", sessionRoles, authHandler.ChangePassword)
	}

	api.GET("/sessions",
		authorizer.Require(models.RoleMember, models.RoleSiteAdmin, models.RoleSystemAdmin),
		sessionHandler.ListMine)

	admin := api.Group("/admin", authorizer.Require(models.RoleSystemAdmin))
	{
		admin.GET("/sessions/:id", sessionHandler.Get)
		admin.GET("/actors/:id/sessions", sessionHandler.ListByActor)
		admin.DELETE("/actors/:id", adminHandler.DeactivateActor)
	}

	// Guest moderation is open to both admin tiers; every change is audited.
	moderation := api.Group("/admin/guests",
		authorizer.Require(models.RoleSiteAdmin, models.RoleSystemAdmin),
		middleware.Audit(auditService, models.AuditActionGuestRestrict, "guest"))
	{
		moderation.PUT("/:id/restriction", adminHandler.RestrictGuest)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown failed", "error", err)
	}
}
