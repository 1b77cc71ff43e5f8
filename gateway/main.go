package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/nordbooking/nordbooking/shared/auth"
	"github.com/nordbooking/nordbooking/shared/authz"
	"github.com/nordbooking/nordbooking/shared/config"
	"github.com/nordbooking/nordbooking/shared/middleware"
	"github.com/nordbooking/nordbooking/shared/routing"
	"github.com/nordbooking/nordbooking/shared/tenancy"
	"github.com/nordbooking/nordbooking/shared/utils"
)

type gateway struct {
	dispatcher RouteDispatcher
	auth       *middleware.AuthMiddleware
	renderer   *Renderer
	services   *ServiceClients
	origins    []string
}

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logrus.Warn("No .env file found, using environment variables")
	}
	cfg := config.Load()

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

	kv := utils.NewRedisKV(utils.RedisClient)
	users := auth.NewGormUserStore(db)
	authenticator := auth.NewAuthenticator(auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL), utils.NewSessionStore(kv), users)

	tenants := tenancy.NewGormStore(db)
	resolver := tenancy.NewResolver(tenants, tenants, kv, cfg.SlugCacheTTL)
	policy := authz.NewPolicy(authz.UserStoreChecker{Users: users}, cfg.LoginURL)

	renderer, err := NewRenderer(apiPrefix)
	if err != nil {
		log.Fatal("Failed to load templates:", err)
	}

	gw := &gateway{
		dispatcher: routing.NewDispatcher(resolver, policy, cfg.UnknownDashboardPage),
		auth:       middleware.NewAuthMiddleware(authenticator),
		renderer:   renderer,
		services: &ServiceClients{
			Auth:         NewServiceClient("auth_service", cfg.AuthServiceURL),
			Tenant:       NewServiceClient("tenant_service", cfg.TenantServiceURL),
			Availability: NewServiceClient("availability_service", cfg.AvailabilityServiceURL),
			Notifier:     NewServiceClient("notifier_service", cfg.NotifierServiceURL),
		},
		origins: cfg.AllowedOrigins,
	}
	router := newRouter(gw)

	// Start server
	port := os.Getenv("API_GATEWAY_PORT")
	if port == "" {
		port = "8080"
	}

	logrus.Infof("API Gateway starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start API Gateway:", err)
	}
}

func newRouter(gw *gateway) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger("gateway"))
	router.SetHTMLTemplate(gw.renderer.Templates())

	// Health check endpoint
	router.GET("/health", handleHealth(gw.services))

	// Service APIs; each service authenticates the forwarded token itself
	api := router.Group(apiPrefix)
	api.Use(middleware.CORS(gw.origins))
	{
		api.Any("/*path", handleProxy(gw.services))
	}

	// Booking and dashboard pages
	router.NoRoute(handleDispatch(gw.dispatcher, gw.auth, gw.renderer))

	return router
}
