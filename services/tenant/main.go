package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/nordbooking/nordbooking/shared/auth"
	"github.com/nordbooking/nordbooking/shared/config"
	"github.com/nordbooking/nordbooking/shared/middleware"
	"github.com/nordbooking/nordbooking/shared/tenancy"
	"github.com/nordbooking/nordbooking/shared/utils"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logrus.Warn("No .env file found, using environment variables")
	}
	cfg := config.Load()

	// Initialize Redis for session management and the slug cache
	if err := utils.InitRedis(); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer utils.CloseRedis()

	// Initialize database
	db, err := config.ConnectDatabase()
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	kv := utils.NewRedisKV(utils.RedisClient)
	users := auth.NewGormUserStore(db)
	authenticator := auth.NewAuthenticator(auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL), utils.NewSessionStore(kv), users)

	tenants := tenancy.NewGormStore(db)
	resolver := tenancy.NewResolver(tenants, tenants, kv, cfg.SlugCacheTTL)

	deps := &tenantDeps{
		resolver: resolver,
		slugs:    tenancy.NewRegistry(tenants, resolver, cfg.SlugCooldown),
		settings: tenants,
		accounts: users,
	}
	router := newRouter(deps, middleware.NewAuthMiddleware(authenticator))

	// Start server
	port := os.Getenv("TENANT_SERVICE_PORT")
	if port == "" {
		port = "8002"
	}

	logrus.Infof("Tenant service starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start tenant service:", err)
	}
}

func newRouter(deps *tenantDeps, am *middleware.AuthMiddleware) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger("tenant"))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		utils.OKResponse(c, "Tenant service is healthy", nil)
	})

	router.GET("/tenants/resolve/:slug", handleResolveSlug(deps))

	// Owner routes always act on the caller's own tenant
	me := router.Group("/tenants/me")
	me.Use(am.RequireAuth(), middleware.RequireTenantOwner())
	{
		me.GET("", handleGetTenant(deps))
		me.PUT("", handleUpdateTenant(deps))
		me.POST("/deactivate", handleDeactivateTenant(deps))
		me.GET("/users", handleGetTenantUsers(deps))
	}

	return router
}
