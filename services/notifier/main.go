package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/nordbooking/nordbooking/shared/config"
	"github.com/nordbooking/nordbooking/shared/events"
	"github.com/nordbooking/nordbooking/shared/middleware"
	"github.com/nordbooking/nordbooking/shared/models"
	"github.com/nordbooking/nordbooking/shared/utils"
)

const consumerGroup = "booking-notifier"

// logOnlySender stands in when no webhook is configured
type logOnlySender struct{}

func (logOnlySender) Send(_ context.Context, event models.BookingEvent) error {
	logrus.WithFields(logrus.Fields{
		"event_type": event.EventType,
		"tenant_id":  event.TenantID,
		"reference":  event.Booking.Reference,
	}).Info("Booking event received (no webhook configured)")
	return nil
}

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logrus.Warn("No .env file found, using environment variables")
	}
	cfg := config.Load()

	// Initialize database connection
	db, err := config.ConnectDatabase()
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}

	webhook := NewWebhookClient(cfg.NotifyWebhookURL)
	var sender Sender = webhook
	if !webhook.Enabled() {
		logrus.Warn("NOTIFY_WEBHOOK_URL not set, booking events will only be logged")
		sender = logOnlySender{}
	}
	relay := NewRelay(sender, NewGormDeliveryStore(db))

	// Initialize Kafka consumer for booking events
	consumer := events.NewKafkaConsumer(cfg.KafkaBroker, cfg.BookingEventsTopic, consumerGroup)
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := consumer.Consume(ctx, relay.HandleEvent); err != nil {
			logrus.WithError(err).Error("Booking events consumer stopped")
		}
	}()
	go relay.RunRetryLoop(ctx)

	router := newRouter(relay, webhook)

	// Start server
	port := os.Getenv("NOTIFIER_SERVICE_PORT")
	if port == "" {
		port = "8004"
	}

	logrus.Infof("Notifier service starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start notifier service:", err)
	}
}

func newRouter(relay *Relay, webhook *WebhookClient) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger("notifier"))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		utils.OKResponse(c, "Notifier service is healthy", nil)
	})
	router.GET("/stats", handleGetStats(relay))
	router.GET("/notifier/status", handleGetWebhookStatus(webhook))

	return router
}
