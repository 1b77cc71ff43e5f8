package main

import (
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/nordbooking/nordbooking/shared/auth"
	"github.com/nordbooking/nordbooking/shared/config"
	"github.com/nordbooking/nordbooking/shared/middleware"
	"github.com/nordbooking/nordbooking/shared/models"
	"github.com/nordbooking/nordbooking/shared/tenancy"
	"github.com/nordbooking/nordbooking/shared/utils"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logrus.Warn("No .env file found, using environment variables")
	}
	cfg := config.Load()
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	// Initialize Redis for sessions and the slug cache
	if err := utils.InitRedis(); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer utils.CloseRedis()

	// Initialize database
	db, err := config.ConnectDatabase()
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	if err := config.Migrate(db); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	kv := utils.NewRedisKV(utils.RedisClient)
	users := auth.NewGormUserStore(db)
	authenticator := auth.NewAuthenticator(auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL), utils.NewSessionStore(kv), users)

	provider, err := newIdentityProvider(cfg, users)
	if err != nil {
		log.Fatal("Failed to initialize identity provider:", err)
	}

	tenants := tenancy.NewGormStore(db)
	resolver := tenancy.NewResolver(tenants, tenants, kv, cfg.SlugCacheTTL)
	registry := tenancy.NewRegistry(tenants, resolver, cfg.SlugCooldown)

	svc := newAccountService(users, provider, authenticator, registry, tenants)
	router := newRouter(svc, middleware.NewAuthMiddleware(authenticator), cfg.IsProduction())

	// Start server
	port := os.Getenv("AUTH_SERVICE_PORT")
	if port == "" {
		port = "8001"
	}

	logrus.Infof("Auth service starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start auth service:", err)
	}
}

func newIdentityProvider(cfg *config.AppConfig, users auth.UserStore) (auth.IdentityProvider, error) {
	if cfg.AuthProvider != config.AuthProviderCognito {
		return auth.NewLocalProvider(users), nil
	}

	// Initialize circuit breaker for Cognito calls (max 5 failures, 30 second reset)
	breaker := utils.NewCircuitBreaker("cognito", 5, 30*time.Second)
	return auth.NewCognitoProvider(auth.CognitoConfig{
		Region:       cfg.AWSRegion,
		UserPoolID:   cfg.CognitoUserPoolID,
		ClientID:     cfg.CognitoClientID,
		ClientSecret: cfg.CognitoClientSecret,
	}, users, breaker)
}

func newRouter(svc *accountService, am *middleware.AuthMiddleware, secureCookie bool) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger("auth"))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		utils.OKResponse(c, "Auth service is healthy", nil)
	})

	// Authentication routes
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", handleRegister(svc))
		authGroup.POST("/login", handleLogin(svc, secureCookie))
		authGroup.POST("/logout", am.RequireAuth(), handleLogout(svc, secureCookie))
		authGroup.GET("/verify", am.RequireAuth(), handleVerifyToken())
		authGroup.GET("/me", am.RequireAuth(), handleMe(svc))
	}

	// Worker management (business owners only)
	owners := router.Group("/auth")
	owners.Use(am.RequireAuth(), middleware.RequireRole(models.RoleBusinessOwner))
	{
		owners.POST("/workers", handleCreateWorker(svc))
		owners.GET("/workers", handleListWorkers(svc))
		owners.PUT("/users/:id/role", handleChangeRole(svc))
	}

	return router
}
