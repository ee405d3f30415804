package handlers

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chachabrian/hacktruck-backend/internal/services"
)

// ListingFeed upgrades an authenticated request to the realtime listing feed.
func ListingFeed(hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		hub.ServeWS(c.Writer, c.Request, c.GetUint("userId"), c.GetString("userRole"))
	}
}

// SubscribeToListings registers device tokens for new-listing pushes.
func SubscribeToListings(notifier services.Notifier, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Token  string   `json:"token"`
			Tokens []string `json:"tokens"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		tokens := input.Tokens
		if input.Token != "" {
			tokens = append(tokens, input.Token)
		}

		if err := notifier.SubscribeToListings(c.Request.Context(), tokens); err != nil {
			if errors.Is(err, services.ErrNoDeviceTokens) {
				c.JSON(400, gin.H{"error": err.Error()})
				return
			}
			log.Error("failed to subscribe device", zap.Uint("userId", c.GetUint("userId")), zap.Error(err))
			c.JSON(500, gin.H{"error": "Failed to subscribe to notifications"})
			return
		}

		c.JSON(200, gin.H{"message": "Subscribed to new listings", "topic": services.NewListingsTopic})
	}
}

// Health reports whether the database answers.
func Health(ping func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := ping(c.Request.Context()); err != nil {
			c.JSON(503, gin.H{"status": "unavailable", "database": "down"})
			return
		}
		c.JSON(200, gin.H{"status": "ok", "database": "up"})
	}
}
