package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/nordbooking/nordbooking/shared/auth"
	"github.com/nordbooking/nordbooking/shared/availability"
	"github.com/nordbooking/nordbooking/shared/config"
	"github.com/nordbooking/nordbooking/shared/events"
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

	// Initialize Redis for session management
	if err := utils.InitRedis(); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer utils.CloseRedis()

	// Initialize database
	db, err := config.ConnectDatabase()
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Initialize Kafka producer for booking events
	producer := events.NewKafkaProducer(cfg.KafkaBroker, cfg.BookingEventsTopic)
	defer producer.Close()

	store := availability.NewGormStore(db)
	engine := availability.NewEngine(store, store, cfg.SlotIntervalMinutes)
	if cfg.UseFallbackSchedule {
		file, err := config.LoadFallbackSchedule(cfg.FallbackScheduleFile)
		if err != nil {
			log.Fatal("Failed to load fallback schedule:", err)
		}
		engine = engine.WithFallback(availability.WeekFromFile(file))
	}

	tenants := tenancy.NewGormStore(db)
	kv := utils.NewRedisKV(utils.RedisClient)
	registry := tenancy.NewRegistry(tenants, tenancy.NewResolver(tenants, tenants, kv, cfg.SlugCacheTTL), cfg.SlugCooldown)

	deps := &availabilityDeps{
		engine:    engine,
		schedules: availability.NewScheduleManager(store),
		bookings:  availability.NewBookingService(engine, store, store, producer),
		tenants:   tenants,
	}

	scheduler, err := startScheduler(cfg.BookingSweepCron, deps.bookings, registry)
	if err != nil {
		log.Fatal("Failed to start scheduler:", err)
	}
	defer func() { <-scheduler.Stop().Done() }()

	authenticator := auth.NewAuthenticator(auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL), utils.NewSessionStore(kv), auth.NewGormUserStore(db))
	limiter := middleware.NewIPRateLimiter(cfg.PublicRateLimit, cfg.PublicRateBurst)
	router := newRouter(deps, middleware.NewAuthMiddleware(authenticator), limiter, cfg.AllowedOrigins)

	// Start server
	port := os.Getenv("AVAILABILITY_SERVICE_PORT")
	if port == "" {
		port = "8003"
	}

	logrus.Infof("Availability service starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start availability service:", err)
	}
}

func newRouter(deps *availabilityDeps, am *middleware.AuthMiddleware, limiter *middleware.IPRateLimiter, origins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger("availability"), middleware.CORS(origins))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		utils.OKResponse(c, "Availability service is healthy", nil)
	})

	// Public routes used by the booking form and the embed widget
	public := router.Group("/")
	public.Use(limiter.Middleware())
	{
		public.GET("/availability/:tenant_id/schedule", handleGetSchedule(deps))
		public.GET("/availability/:tenant_id/slots", handleGetSlots(deps))
		public.POST("/bookings/:tenant_id", am.OptionalAuth(), handleCreateBooking(deps))
	}

	owner := router.Group("/")
	owner.Use(am.RequireAuth(), middleware.RequireTenantOwner())
	{
		owner.PUT("/availability/schedule", handlePutSchedule(deps))
		owner.GET("/availability/exceptions", handleListExceptions(deps))
		owner.PUT("/availability/exceptions/:date", handlePutException(deps))
		owner.DELETE("/availability/exceptions/:date", handleDeleteException(deps))
		owner.PATCH("/bookings/:id/status", handleUpdateStatus(deps))
		owner.PATCH("/bookings/:id/reschedule", handleReschedule(deps))
		owner.PATCH("/bookings/:id/staff", handleAssignStaff(deps))
	}

	member := router.Group("/")
	member.Use(am.RequireAuth(), middleware.RequireRole(models.RoleBusinessOwner, models.RoleWorker), middleware.RequireTenantMember(deps.tenants))
	{
		member.GET("/bookings", handleListBookings(deps))
		member.GET("/bookings/:id", handleGetBooking(deps))
	}

	return router
}
