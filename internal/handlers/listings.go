package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chachabrian/hacktruck-backend/internal/models"
	"github.com/chachabrian/hacktruck-backend/internal/services"
	"github.com/chachabrian/hacktruck-backend/internal/store"
	"github.com/chachabrian/hacktruck-backend/pkg/utils"
)

const listingImageFolder = "listings"

// ListingPublisher receives listing change events for realtime clients.
type ListingPublisher interface {
	PublishListingEvent(eventType string, listing models.Listing)
}

type ListingDeps struct {
	Store     store.ListingStore
	Images    services.ImageStore
	Publisher ListingPublisher
	Notifier  services.Notifier
	Logger    *zap.Logger
	Now       func() time.Time
}

func (d ListingDeps) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

func (d ListingDeps) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// publish fans a change out to websocket clients and, for new listings,
// push subscribers. Neither can fail the request.
func (d ListingDeps) publish(eventType string, listing models.Listing) {
	if d.Publisher != nil {
		d.Publisher.PublishListingEvent(eventType, listing)
	}
	if eventType != services.EventListingCreated || d.Notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := d.Notifier.NotifyNewListing(ctx, listing); err != nil {
			d.logger().Warn("failed to send new listing notification", zap.String("listingId", listing.ID), zap.Error(err))
		}
	}()
}

// listingInput binds from JSON or a multipart form. Empty strings and nil
// pointers leave a field unchanged on update.
type listingInput struct {
	DepartureDate   string   `json:"departureDate" form:"departureDate"`
	Origin          string   `json:"origin" form:"origin"`
	Destination     string   `json:"destination" form:"destination"`
	TruckType       string   `json:"truckType" form:"truckType"`
	MaxWeight       *float64 `json:"maxWeight" form:"maxWeight"`
	PhoneNumber     string   `json:"phoneNumber" form:"phoneNumber"`
	Price           *int64   `json:"price" form:"price"`
	MapEmbedURL     string   `json:"mapEmbedUrl" form:"mapEmbedUrl"`
	CompanyName     string   `json:"companyName" form:"companyName"`
	Description     string   `json:"description" form:"description"`
	EstimasiWaktu   string   `json:"estimasiWaktu" form:"estimasiWaktu"`
	Rating          *float64 `json:"rating" form:"rating"`
	LayananTambahan string   `json:"layananTambahan" form:"layananTambahan"`
	Website         string   `json:"website" form:"website"`
	Kontak          string   `json:"kontak" form:"kontak"`
}

var errInvalidDate = errors.New("departureDate must be a date (YYYY-MM-DD)")

func parseDepartureDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(time.DateOnly, s, time.Local); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, errInvalidDate
}

func setString(dst *string, src string) {
	if v := strings.TrimSpace(src); v != "" {
		*dst = v
	}
}

// apply copies the supplied fields onto l.
func (in listingInput) apply(l *models.Listing) error {
	if in.DepartureDate != "" {
		date, err := parseDepartureDate(in.DepartureDate)
		if err != nil {
			return err
		}
		l.DepartureDate = date
	}
	if in.TruckType != "" {
		truckType, err := models.ParseTruckType(in.TruckType)
		if err != nil {
			return err
		}
		l.TruckType = truckType
	}
	setString(&l.Origin, in.Origin)
	setString(&l.Destination, in.Destination)
	setString(&l.PhoneNumber, in.PhoneNumber)
	setString(&l.CompanyName, in.CompanyName)
	setString(&l.Description, in.Description)
	setString(&l.EstimasiWaktu, in.EstimasiWaktu)
	setString(&l.LayananTambahan, in.LayananTambahan)
	setString(&l.Website, in.Website)
	setString(&l.Kontak, in.Kontak)
	if in.MapEmbedURL != "" {
		l.MapEmbedURL = utils.NormalizeMapEmbedURL(in.MapEmbedURL)
	}
	if in.MaxWeight != nil {
		l.MaxWeight = *in.MaxWeight
	}
	if in.Price != nil {
		l.Price = *in.Price
	}
	if in.Rating != nil {
		l.Rating = in.Rating
	}
	return nil
}

func (in listingInput) missingRequired() []string {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"departureDate", in.DepartureDate},
		{"origin", in.Origin},
		{"destination", in.Destination},
		{"truckType", in.TruckType},
		{"phoneNumber", in.PhoneNumber},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if in.MaxWeight == nil {
		missing = append(missing, "maxWeight")
	}
	return missing
}

// uploadImage stores the optional "image" form file. It returns an empty
// URL when the request carries no file, and a non-zero status with a client
// message when the upload is refused or fails.
func uploadImage(c *gin.Context, images services.ImageStore, log *zap.Logger) (string, int, string) {
	file, err := c.FormFile("image")
	if err != nil {
		return "", 0, ""
	}
	if images == nil {
		return "", 503, "Image storage is not configured"
	}
	url, err := images.Upload(c.Request.Context(), file, listingImageFolder)
	if errors.Is(err, services.ErrImageTooLarge) || errors.Is(err, services.ErrUnsupportedImage) {
		return "", 400, err.Error()
	}
	if err != nil {
		log.Error("failed to upload listing image", zap.Error(err))
		return "", 500, "Failed to upload image"
	}
	return url, 0, ""
}

func GetListings(deps ListingDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(store.DefaultPageSize)))

		result, err := deps.Store.List(c.Request.Context(), store.ListingQuery{
			Page:      page,
			Limit:     limit,
			Search:    c.Query("search"),
			TruckType: c.Query("truckType"),
			SortBy:    c.Query("sortBy"),
			Order:     c.Query("order"),
		})
		if err != nil {
			deps.logger().Error("failed to list listings", zap.Error(err))
			c.JSON(500, gin.H{"error": "Failed to fetch posts"})
			return
		}

		c.JSON(200, result)
	}
}

func GetDriverListings(deps ListingDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		listings, err := deps.Store.ListByDriver(c.Request.Context(), c.GetUint("userId"))
		if err != nil {
			deps.logger().Error("failed to list driver listings", zap.Error(err))
			c.JSON(500, gin.H{"error": "Failed to fetch posts"})
			return
		}
		c.JSON(200, listings)
	}
}

func CreateListing(deps ListingDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input listingInput
		if err := c.ShouldBind(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		if missing := input.missingRequired(); len(missing) > 0 {
			c.JSON(400, gin.H{"error": "Missing required fields", "fields": missing})
			return
		}

		listing := models.Listing{DriverID: c.GetUint("userId")}
		if err := input.apply(&listing); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		if err := listing.ValidateForCreate(deps.now()); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		imageURL, status, msg := uploadImage(c, deps.Images, deps.logger())
		if status != 0 {
			c.JSON(status, gin.H{"error": msg})
			return
		}
		listing.ImageURL = imageURL

		if err := deps.Store.Create(c.Request.Context(), &listing); err != nil {
			deps.logger().Error("failed to create listing", zap.Error(err))
			c.JSON(500, gin.H{"error": "Failed to create post"})
			return
		}

		deps.publish(services.EventListingCreated, listing)
		c.JSON(201, listing)
	}
}

func UpdateListing(deps ListingDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		listing, err := deps.Store.FindOwned(ctx, c.Param("id"), c.GetUint("userId"))
		if errors.Is(err, store.ErrListingNotFound) {
			c.JSON(404, gin.H{"error": "Post not found"})
			return
		}
		if err != nil {
			deps.logger().Error("failed to load listing", zap.Error(err))
			c.JSON(500, gin.H{"error": "Failed to update post"})
			return
		}

		var input listingInput
		if err := c.ShouldBind(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		previousDate := listing.DepartureDate
		if err := input.apply(listing); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		validate := listing.Validate
		if !listing.DepartureDate.Equal(previousDate) {
			validate = func() error { return listing.ValidateForCreate(deps.now()) }
		}
		if err := validate(); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		previousImage := listing.ImageURL
		imageURL, status, msg := uploadImage(c, deps.Images, deps.logger())
		if status != 0 {
			c.JSON(status, gin.H{"error": msg})
			return
		}
		if imageURL != "" {
			listing.ImageURL = imageURL
		}

		if err := deps.Store.Update(ctx, listing); err != nil {
			if errors.Is(err, store.ErrListingNotFound) {
				c.JSON(404, gin.H{"error": "Post not found"})
				return
			}
			deps.logger().Error("failed to update listing", zap.String("listingId", listing.ID), zap.Error(err))
			c.JSON(500, gin.H{"error": "Failed to update post"})
			return
		}

		if imageURL != "" && previousImage != "" {
			deps.removeImage(previousImage)
		}
		deps.publish(services.EventListingUpdated, *listing)
		c.JSON(200, listing)
	}
}

func DeleteListing(deps ListingDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		driverID := c.GetUint("userId")

		listing, err := deps.Store.FindOwned(ctx, c.Param("id"), driverID)
		if errors.Is(err, store.ErrListingNotFound) {
			c.JSON(404, gin.H{"error": "Post not found"})
			return
		}
		if err != nil {
			deps.logger().Error("failed to load listing", zap.Error(err))
			c.JSON(500, gin.H{"error": "Failed to delete post"})
			return
		}

		if err := deps.Store.Delete(ctx, listing.ID, driverID); err != nil {
			if errors.Is(err, store.ErrListingNotFound) {
				c.JSON(404, gin.H{"error": "Post not found"})
				return
			}
			deps.logger().Error("failed to delete listing", zap.String("listingId", listing.ID), zap.Error(err))
			c.JSON(500, gin.H{"error": "Failed to delete post"})
			return
		}

		if listing.ImageURL != "" {
			deps.removeImage(listing.ImageURL)
		}
		deps.publish(services.EventListingDeleted, *listing)
		c.JSON(200, gin.H{"message": "Post deleted"})
	}
}

func (d ListingDeps) removeImage(url string) {
	if d.Images == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := d.Images.Delete(ctx, url); err != nil {
			d.logger().Warn("failed to delete listing image", zap.String("url", url), zap.Error(err))
		}
	}()
}
