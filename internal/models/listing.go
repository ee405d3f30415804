package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chachabrian/hacktruck-backend/pkg/utils"
)

type TruckType string

const (
	TruckPickup       TruckType = "pickup"
	TruckBox          TruckType = "box"
	TruckFlatbed      TruckType = "flatbed"
	TruckRefrigerated TruckType = "refrigerated"
)

// TruckTypes lists every accepted truck type in display order.
var TruckTypes = []TruckType{TruckPickup, TruckBox, TruckFlatbed, TruckRefrigerated}

var (
	ErrInvalidTruckType   = errors.New("truckType must be one of pickup, box, flatbed, refrigerated")
	ErrDepartureInPast    = errors.New("departureDate cannot be in the past")
	ErrInvalidMaxWeight   = errors.New("maxWeight must be greater than 0")
	ErrInvalidPrice       = errors.New("price cannot be negative")
	ErrInvalidRating      = errors.New("rating must be between 0 and 5")
	ErrMissingRoute       = errors.New("origin and destination are required")
	ErrMissingPhoneNumber = errors.New("phoneNumber is required")
)

// ParseTruckType normalises s and checks it against the fixed set.
func ParseTruckType(s string) (TruckType, error) {
	t := TruckType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range TruckTypes {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: got %q", ErrInvalidTruckType, s)
}

// Listing is a truck offering posted by a driver. Rows are hard-deleted,
// so the struct deliberately does not embed gorm.Model.
type Listing struct {
	ID              string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	DepartureDate   time.Time `gorm:"type:date;not null" json:"departureDate"`
	Origin          string    `gorm:"not null" json:"origin"`
	Destination     string    `gorm:"not null" json:"destination"`
	TruckType       TruckType `gorm:"type:varchar(16);not null;index" json:"truckType"`
	MaxWeight       float64   `gorm:"not null" json:"maxWeight"`
	PhoneNumber     string    `gorm:"not null" json:"phoneNumber"`
	ImageURL        string    `json:"imageUrl,omitempty"`
	Price           int64     `gorm:"not null;default:0" json:"price"`
	MapEmbedURL     string    `gorm:"type:text" json:"mapEmbedUrl,omitempty"`
	CompanyName     string    `json:"companyName,omitempty"`
	Description     string    `gorm:"type:text" json:"description,omitempty"`
	EstimasiWaktu   string    `json:"estimasiWaktu,omitempty"`
	Rating          *float64  `json:"rating,omitempty"`
	LayananTambahan string    `json:"layananTambahan,omitempty"`
	Website         string    `json:"website,omitempty"`
	Kontak          string    `json:"kontak,omitempty"`
	DriverID        uint      `gorm:"not null;index" json:"driverId"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`

	Driver         *User          `gorm:"foreignKey:DriverID;constraint:OnDelete:CASCADE" json:"-"`
	DriverInfo     *DriverSummary `gorm:"-" json:"driver,omitempty"`
	WhatsAppNumber string         `gorm:"-" json:"whatsappNumber,omitempty"`
}

func (Listing) TableName() string {
	return "listings"
}

// BeforeCreate assigns the opaque id.
func (l *Listing) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

func (l *Listing) AfterFind(tx *gorm.DB) error {
	l.fillDerived()
	return nil
}

func (l *Listing) AfterSave(tx *gorm.DB) error {
	l.fillDerived()
	return nil
}

func (l *Listing) fillDerived() {
	l.WhatsAppNumber = utils.FormatWhatsAppNumber(l.PhoneNumber)
	if l.Driver != nil && l.Driver.ID != 0 {
		l.DriverInfo = &DriverSummary{ID: l.Driver.ID, Name: l.Driver.Name}
	}
}

// RatingValue returns the rating, treating an unrated listing as 0.
func (l *Listing) RatingValue() float64 {
	if l.Rating == nil {
		return 0
	}
	return *l.Rating
}

// Validate checks the invariants that hold for every stored listing.
func (l *Listing) Validate() error {
	if strings.TrimSpace(l.Origin) == "" || strings.TrimSpace(l.Destination) == "" {
		return ErrMissingRoute
	}
	if _, err := ParseTruckType(string(l.TruckType)); err != nil {
		return err
	}
	if l.MaxWeight <= 0 {
		return ErrInvalidMaxWeight
	}
	if l.Price < 0 {
		return ErrInvalidPrice
	}
	if strings.TrimSpace(l.PhoneNumber) == "" {
		return ErrMissingPhoneNumber
	}
	if l.Rating != nil && (*l.Rating < 0 || *l.Rating > 5) {
		return ErrInvalidRating
	}
	return nil
}

// ValidateForCreate additionally requires the departure date to be today or
// later, compared by calendar date in now's location.
func (l *Listing) ValidateForCreate(now time.Time) error {
	if err := l.Validate(); err != nil {
		return err
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dep := l.DepartureDate.In(now.Location())
	departure := time.Date(dep.Year(), dep.Month(), dep.Day(), 0, 0, 0, 0, now.Location())
	if departure.Before(today) {
		return ErrDepartureInPast
	}
	return nil
}
