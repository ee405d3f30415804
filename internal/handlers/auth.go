package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/api/idtoken"

	"github.com/chachabrian/hacktruck-backend/internal/models"
	"github.com/chachabrian/hacktruck-backend/internal/store"
	"github.com/chachabrian/hacktruck-backend/pkg/utils"
)

// GoogleTokenVerifier checks a Google ID token for the given audience.
type GoogleTokenVerifier func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

type AuthConfig struct {
	JWTSecret      string
	JWTExpiry      time.Duration
	GoogleClientID string
	VerifyGoogle   GoogleTokenVerifier
	Logger         *zap.Logger
}

func (a AuthConfig) logger() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}

func (a AuthConfig) issue(c *gin.Context, status int, user *models.User) {
	token, err := utils.GenerateToken(user.ID, user.Email, string(user.Role), a.JWTSecret, a.JWTExpiry)
	if err != nil {
		a.logger().Error("failed to sign token", zap.Uint("userId", user.ID), zap.Error(err))
		c.JSON(500, gin.H{"error": "Failed to generate token"})
		return
	}
	c.JSON(status, gin.H{"user": user.Public(), "token": token})
}

type RegisterInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role" binding:"required,oneof=driver user"`
	Name     string `json:"name" binding:"required"`
}

type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func Register(users store.UserStore, auth AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input RegisterInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		email := strings.ToLower(strings.TrimSpace(input.Email))
		taken, err := users.EmailTaken(c.Request.Context(), email, 0)
		if err != nil {
			auth.logger().Error("failed to check email", zap.Error(err))
			c.JSON(500, gin.H{"error": "Failed to create user"})
			return
		}
		if taken {
			c.JSON(400, gin.H{"error": "Email already exists"})
			return
		}

		role, _ := models.ParseRole(input.Role)
		user := models.User{
			Email:    email,
			Name:     strings.TrimSpace(input.Name),
			Role:     role,
			Password: input.Password,
		}
		if err := user.HashPassword(); err != nil {
			c.JSON(500, gin.H{"error": "Failed to hash password"})
			return
		}

		if err := users.Create(c.Request.Context(), &user); err != nil {
			auth.logger().Error("failed to create user", zap.Error(err))
			c.JSON(500, gin.H{"error": "Failed to create user"})
			return
		}

		auth.issue(c, 201, &user)
	}
}

func Login(users store.UserStore, auth AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input LoginInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		user, err := users.FindByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(input.Email)))
		if err != nil {
			if !errors.Is(err, store.ErrUserNotFound) {
				auth.logger().Error("failed to load user", zap.Error(err))
			}
			c.JSON(401, gin.H{"error": "Invalid credentials"})
			return
		}

		if err := user.CheckPassword(input.Password); err != nil {
			c.JSON(401, gin.H{"error": "Invalid credentials"})
			return
		}

		auth.issue(c, 200, user)
	}
}

// GoogleLogin signs in with a Google ID token, creating a customer account
// on first use. An existing password account with the same email is linked.
func GoogleLogin(users store.UserStore, auth AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Token string `json:"token" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		if auth.GoogleClientID == "" || auth.VerifyGoogle == nil {
			c.JSON(503, gin.H{"error": "Google sign-in is not configured"})
			return
		}

		ctx := c.Request.Context()
		payload, err := auth.VerifyGoogle(ctx, input.Token, auth.GoogleClientID)
		if err != nil {
			c.JSON(401, gin.H{"error": "Invalid Google token"})
			return
		}
		email, _ := payload.Claims["email"].(string)
		name, _ := payload.Claims["name"].(string)
		if payload.Subject == "" || email == "" {
			c.JSON(401, gin.H{"error": "Invalid Google token"})
			return
		}

		user, err := users.FindByGoogleID(ctx, payload.Subject)
		if errors.Is(err, store.ErrUserNotFound) {
			user, err = linkOrCreateGoogleUser(ctx, users, payload.Subject, strings.ToLower(email), name)
		}
		if err != nil {
			auth.logger().Error("google sign-in failed", zap.Error(err))
			c.JSON(500, gin.H{"error": "Failed to sign in with Google"})
			return
		}

		auth.issue(c, 200, user)
	}
}

func linkOrCreateGoogleUser(ctx context.Context, users store.UserStore, subject, email, name string) (*models.User, error) {
	user, err := users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		user.GoogleID = &subject
		if user.Name == "" {
			user.Name = name
		}
		return user, users.Update(ctx, user)
	case errors.Is(err, store.ErrUserNotFound):
		user = &models.User{Email: email, Name: name, Role: models.RoleUser, GoogleID: &subject}
		return user, users.Create(ctx, user)
	default:
		return nil, err
	}
}

func GetProfile(users store.UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := users.FindByID(c.Request.Context(), c.GetUint("userId"))
		if err != nil {
			c.JSON(404, gin.H{"error": "User not found"})
			return
		}
		c.JSON(200, user.Public())
	}
}

func UpdateProfile(users store.UserStore, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("userId")

		var input struct {
			Name     *string `json:"name"`
			Username *string `json:"username"`
			Email    *string `json:"email" binding:"omitempty,email"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		ctx := c.Request.Context()
		user, err := users.FindByID(ctx, userID)
		if err != nil {
			c.JSON(404, gin.H{"error": "User not found"})
			return
		}

		if input.Email != nil && strings.TrimSpace(*input.Email) != "" {
			email := strings.ToLower(strings.TrimSpace(*input.Email))
			taken, err := users.EmailTaken(ctx, email, userID)
			if err != nil {
				log.Error("failed to check email", zap.Error(err))
				c.JSON(500, gin.H{"error": "Failed to update profile"})
				return
			}
			if taken {
				c.JSON(400, gin.H{"error": "Email already in use by another account"})
				return
			}
			user.Email = email
		}

		if input.Username != nil && strings.TrimSpace(*input.Username) != "" {
			username := strings.TrimSpace(*input.Username)
			taken, err := users.UsernameTaken(ctx, username, userID)
			if err != nil {
				log.Error("failed to check username", zap.Error(err))
				c.JSON(500, gin.H{"error": "Failed to update profile"})
				return
			}
			if taken {
				c.JSON(400, gin.H{"error": "Username already in use by another account"})
				return
			}
			user.Username = &username
		}

		if input.Name != nil && strings.TrimSpace(*input.Name) != "" {
			user.Name = strings.TrimSpace(*input.Name)
		}

		if err := users.Update(ctx, user); err != nil {
			log.Error("failed to update profile", zap.Uint("userId", userID), zap.Error(err))
			c.JSON(500, gin.H{"error": "Failed to update profile"})
			return
		}

		c.JSON(200, user.Public())
	}
}

func ChangePassword(users store.UserStore, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			CurrentPassword string `json:"currentPassword" binding:"required"`
			NewPassword     string `json:"newPassword" binding:"required,min=6"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		ctx := c.Request.Context()
		user, err := users.FindByID(ctx, c.GetUint("userId"))
		if err != nil {
			c.JSON(404, gin.H{"error": "User not found"})
			return
		}

		if !user.HasPassword() {
			c.JSON(400, gin.H{"error": "Cannot change password for accounts created with Google"})
			return
		}
		if err := user.CheckPassword(input.CurrentPassword); err != nil {
			c.JSON(401, gin.H{"error": "Current password is incorrect"})
			return
		}

		user.Password = input.NewPassword
		if err := user.HashPassword(); err != nil {
			c.JSON(500, gin.H{"error": "Failed to hash password"})
			return
		}
		if err := users.Update(ctx, user); err != nil {
			log.Error("failed to change password", zap.Uint("userId", user.ID), zap.Error(err))
			c.JSON(500, gin.H{"error": "Failed to change password"})
			return
		}

		c.JSON(200, gin.H{"message": "Password changed successfully"})
	}
}
