package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/chachabrian/hacktruck-backend/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uint) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByGoogleID(ctx context.Context, googleID string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	// EmailTaken and UsernameTaken ignore the user with id exceptID.
	EmailTaken(ctx context.Context, email string, exceptID uint) (bool, error)
	UsernameTaken(ctx context.Context, username string, exceptID uint) (bool, error)
}

type GormUserStore struct {
	db *gorm.DB
}

func NewGormUserStore(db *gorm.DB) *GormUserStore {
	return &GormUserStore{db: db}
}

func (s *GormUserStore) Create(ctx context.Context, user *models.User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *GormUserStore) first(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where(query, args...).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

func (s *GormUserStore) FindByID(ctx context.Context, id uint) (*models.User, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *GormUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.first(ctx, "LOWER(email) = LOWER(?)", email)
}

func (s *GormUserStore) FindByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	return s.first(ctx, "google_id = ?", googleID)
}

func (s *GormUserStore) Update(ctx context.Context, user *models.User) error {
	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (s *GormUserStore) taken(ctx context.Context, query string, value string, exceptID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where(query, value).
		Where("id <> ?", exceptID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check user uniqueness: %w", err)
	}
	return count > 0, nil
}

func (s *GormUserStore) EmailTaken(ctx context.Context, email string, exceptID uint) (bool, error) {
	return s.taken(ctx, "LOWER(email) = LOWER(?)", email, exceptID)
}

func (s *GormUserStore) UsernameTaken(ctx context.Context, username string, exceptID uint) (bool, error) {
	return s.taken(ctx, "username = ?", username, exceptID)
}
