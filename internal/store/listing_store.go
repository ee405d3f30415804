// Package store persists truck listings.
package store

import (
	"context"
	"errors"

	"github.com/chachabrian/hacktruck-backend/internal/models"
)

// ErrListingNotFound is returned when a listing does not exist or is not
// owned by the requesting driver.
var ErrListingNotFound = errors.New("listing not found")

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// ListingQuery describes one page of the public listing feed.
type ListingQuery struct {
	Page      int
	Limit     int
	Search    string
	TruckType string
	SortBy    string
	Order     string
}

type ListingPage struct {
	Posts       []models.Listing `json:"posts"`
	TotalPages  int              `json:"totalPages"`
	CurrentPage int              `json:"currentPage"`
	Total       int64            `json:"total"`
}

type ListingStore interface {
	Create(ctx context.Context, listing *models.Listing) error
	List(ctx context.Context, q ListingQuery) (ListingPage, error)
	ListAll(ctx context.Context) ([]models.Listing, error)
	ListByDriver(ctx context.Context, driverID uint) ([]models.Listing, error)
	FindOwned(ctx context.Context, id string, driverID uint) (*models.Listing, error)
	Update(ctx context.Context, listing *models.Listing) error
	Delete(ctx context.Context, id string, driverID uint) error
}

var sortColumns = map[string]string{
	"createdAt":     "created_at",
	"departureDate": "departure_date",
	"price":         "price",
	"maxWeight":     "max_weight",
	"rating":        "rating",
}

// Normalize applies paging defaults and whitelists the sort column.
func (q ListingQuery) Normalize() ListingQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}
	if _, ok := sortColumns[q.SortBy]; !ok {
		q.SortBy = "createdAt"
	}
	if q.Order != "ASC" && q.Order != "asc" {
		q.Order = "DESC"
	} else {
		q.Order = "ASC"
	}
	return q
}

func (q ListingQuery) orderClause() string {
	clause := sortColumns[q.SortBy] + " " + q.Order
	if q.SortBy == "rating" {
		clause += " NULLS LAST"
	}
	return clause
}

func (q ListingQuery) offset() int {
	return (q.Page - 1) * q.Limit
}

func totalPages(total int64, limit int) int {
	if total == 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
