package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/chachabrian/hacktruck-backend/internal/models"
)

type GormListingStore struct {
	db *gorm.DB
}

func NewGormListingStore(db *gorm.DB) *GormListingStore {
	return &GormListingStore{db: db}
}

func preloadDriver(db *gorm.DB) *gorm.DB {
	return db.Preload("Driver", func(tx *gorm.DB) *gorm.DB {
		return tx.Select("id", "name")
	})
}

func (s *GormListingStore) Create(ctx context.Context, listing *models.Listing) error {
	if err := s.db.WithContext(ctx).Create(listing).Error; err != nil {
		return fmt.Errorf("create listing: %w", err)
	}
	return nil
}

func (s *GormListingStore) List(ctx context.Context, q ListingQuery) (ListingPage, error) {
	q = q.Normalize()

	filtered := func(db *gorm.DB) *gorm.DB {
		if search := strings.TrimSpace(q.Search); search != "" {
			like := "%" + strings.ToLower(search) + "%"
			db = db.Where("LOWER(listings.origin) LIKE LOWER(?) OR LOWER(listings.destination) LIKE LOWER(?)", like, like)
		}
		if truckType := strings.TrimSpace(q.TruckType); truckType != "" {
			db = db.Where("listings.truck_type = ?", strings.ToLower(truckType))
		}
		return db
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Listing{}).Scopes(filtered).Count(&total).Error; err != nil {
		return ListingPage{}, fmt.Errorf("count listings: %w", err)
	}

	posts := []models.Listing{}
	err := preloadDriver(s.db.WithContext(ctx)).
		Scopes(filtered).
		Order(q.orderClause()).
		Limit(q.Limit).
		Offset(q.offset()).
		Find(&posts).Error
	if err != nil {
		return ListingPage{}, fmt.Errorf("list listings: %w", err)
	}

	return ListingPage{
		Posts:       posts,
		TotalPages:  totalPages(total, q.Limit),
		CurrentPage: q.Page,
		Total:       total,
	}, nil
}

func (s *GormListingStore) ListAll(ctx context.Context) ([]models.Listing, error) {
	listings := []models.Listing{}
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&listings).Error; err != nil {
		return nil, fmt.Errorf("list all listings: %w", err)
	}
	return listings, nil
}

func (s *GormListingStore) ListByDriver(ctx context.Context, driverID uint) ([]models.Listing, error) {
	listings := []models.Listing{}
	err := s.db.WithContext(ctx).
		Where("driver_id = ?", driverID).
		Order("created_at DESC").
		Find(&listings).Error
	if err != nil {
		return nil, fmt.Errorf("list driver listings: %w", err)
	}
	return listings, nil
}

func (s *GormListingStore) FindOwned(ctx context.Context, id string, driverID uint) (*models.Listing, error) {
	var listing models.Listing
	err := s.db.WithContext(ctx).
		Where("id = ? AND driver_id = ?", id, driverID).
		First(&listing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrListingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find listing: %w", err)
	}
	return &listing, nil
}

// Update writes every column of listing. The owner check is part of the
// WHERE clause so a stale caller cannot take over another driver's row.
func (s *GormListingStore) Update(ctx context.Context, listing *models.Listing) error {
	result := s.db.WithContext(ctx).
		Model(listing).
		Where("driver_id = ?", listing.DriverID).
		Select("*").
		Omit("id", "driver_id", "created_at", "Driver").
		Updates(listing)
	if result.Error != nil {
		return fmt.Errorf("update listing: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrListingNotFound
	}
	return nil
}

func (s *GormListingStore) Delete(ctx context.Context, id string, driverID uint) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND driver_id = ?", id, driverID).
		Delete(&models.Listing{})
	if result.Error != nil {
		return fmt.Errorf("delete listing: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrListingNotFound
	}
	return nil
}
