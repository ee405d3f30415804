package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chachabrian/hacktruck-backend/internal/middleware"
	"github.com/chachabrian/hacktruck-backend/internal/models"
	"github.com/chachabrian/hacktruck-backend/internal/services"
	"github.com/chachabrian/hacktruck-backend/internal/store"
)

// RouteDeps is everything the HTTP layer needs. Hub, Ping and UploadDir
// are optional.
type RouteDeps struct {
	Auth        AuthConfig
	Users       store.UserStore
	Listings    ListingDeps
	Recommender CargoRecommender
	RateLimiter *middleware.RateLimiter
	Hub         *services.Hub
	Notifier    services.Notifier
	Ping        func(ctx context.Context) error
	UploadDir   string
	Logger      *zap.Logger
}

func RegisterRoutes(r *gin.Engine, d RouteDeps) {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	auth := middleware.AuthMiddleware(d.Auth.JWTSecret)
	driverOnly := middleware.RestrictTo(string(models.RoleDriver))
	recommend := RecommendCargo(d.Recommender, log)

	if d.Ping != nil {
		r.GET("/health", Health(d.Ping))
	}
	if d.UploadDir != "" {
		r.Static("/uploads", d.UploadDir)
	}

	// Public recommendation endpoint used by the landing page.
	public := r.Group("/cargo")
	if d.RateLimiter != nil {
		public.Use(d.RateLimiter.Middleware())
	}
	public.POST("/recommend", recommend)

	api := r.Group("/api")
	{
		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/register", Register(d.Users, d.Auth))
			authRoutes.POST("/login", Login(d.Users, d.Auth))
			authRoutes.POST("/google", GoogleLogin(d.Users, d.Auth))
			authRoutes.POST("/profile/update", auth, UpdateProfile(d.Users, log))
			authRoutes.POST("/change-password", auth, ChangePassword(d.Users, log))
		}

		api.POST("/cargo/extract", ExtractCargoFilters())

		if d.Hub != nil {
			api.GET("/ws", auth, ListingFeed(d.Hub))
		}

		protected := api.Group("/")
		protected.Use(auth)
		{
			protected.GET("/users/profile", GetProfile(d.Users))

			protected.POST("/cargo/recommend", recommend)
			protected.POST("/ai/recommend", recommend)

			if d.Notifier != nil {
				protected.POST("/notifications/subscribe", SubscribeToListings(d.Notifier, log))
			}

			posts := protected.Group("/posts")
			{
				posts.GET("", GetListings(d.Listings))
				posts.GET("/driver", driverOnly, GetDriverListings(d.Listings))
				posts.POST("", driverOnly, CreateListing(d.Listings))
				posts.PUT("/:id", driverOnly, UpdateListing(d.Listings))
				posts.DELETE("/:id", driverOnly, DeleteListing(d.Listings))
			}
		}
	}
}
