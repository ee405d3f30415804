package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chachabrian/hacktruck-backend/internal/cargo"
	"github.com/chachabrian/hacktruck-backend/internal/models"
)

// CargoRecommender is satisfied by *cargo.Recommender.
type CargoRecommender interface {
	Recommend(ctx context.Context, req cargo.RecommendRequest) (cargo.RecommendationResult, error)
}

func genericRecommendationError() cargo.RecommendationResult {
	return cargo.RecommendationResult{
		Recommendation: cargo.GenericErrorMessage,
		Posts:          []models.Listing{},
	}
}

// RecommendCargo answers a free-text cargo request. Every pipeline outcome,
// including "no match" and a failed model call, is a 200. Only internal
// failures produce a 500, and those never expose the underlying error.
func RecommendCargo(rec CargoRecommender, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic while recommending cargo", zap.Any("panic", r), zap.Stack("stack"))
				c.AbortWithStatusJSON(500, genericRecommendationError())
			}
		}()

		var req cargo.RecommendRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			log.Debug("unreadable recommendation request, treating as empty query", zap.Error(err))
			req = cargo.RecommendRequest{}
		}

		result, err := rec.Recommend(c.Request.Context(), req)
		if err != nil {
			log.Error("failed to recommend cargo", zap.Error(err))
			c.JSON(500, genericRecommendationError())
			return
		}

		c.JSON(200, result)
	}
}

// ExtractCargoFilters exposes the query extractor so clients share one
// interpretation of free-text requests.
func ExtractCargoFilters() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Query string `json:"query"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		c.JSON(200, cargo.ExtractFilters(input.Query))
	}
}
