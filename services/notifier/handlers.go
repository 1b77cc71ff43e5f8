package main

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nordbooking/nordbooking/shared/utils"
)

// handleGetStats reports retry statistics
func handleGetStats(relay *Relay) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := relay.GetStats(c.Request.Context())
		if err != nil {
			logrus.WithError(err).Error("Failed to load delivery stats")
			utils.ServiceUnavailableResponse(c, "Failed to load delivery stats")
			return
		}
		utils.OKResponse(c, "Delivery stats retrieved successfully", stats)
	}
}

// handleGetWebhookStatus reports the webhook connection status
func handleGetWebhookStatus(client *WebhookClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		utils.OKResponse(c, "Webhook status retrieved successfully", client.GetStatus())
	}
}
