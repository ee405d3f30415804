package handlers

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chachabrian/hacktruck-backend/internal/models"
	"github.com/chachabrian/hacktruck-backend/internal/services"
	"github.com/chachabrian/hacktruck-backend/internal/store"
)

const driverID = 7

func newListingBody() gin.H {
	return gin.H{
		"departureDate": "2026-10-20",
		"origin":        "Jakarta",
		"destination":   "Surabaya",
		"truckType":     "Box",
		"maxWeight":     1500,
		"phoneNumber":   "081234567890",
		"price":         2500000,
		"mapEmbedUrl":   `<iframe src="https://maps.test/embed?pb=1" width="600"></iframe>`,
		"companyName":   "Cepat Express",
	}
}

func TestCreateListing(t *testing.T) {
	env := newTestEnv(t, nil)
	auth := bearer(t, driverID, models.RoleDriver)

	w := doJSON(env.router, http.MethodPost, "/api/posts", auth, newListingBody())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created models.Listing
	decode(t, w, &created)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, uint(driverID), created.DriverID)
	assert.Equal(t, models.TruckBox, created.TruckType)
	assert.Equal(t, int64(2500000), created.Price)
	assert.Equal(t, "https://maps.test/embed?pb=1", created.MapEmbedURL)

	assert.Equal(t, []string{services.EventListingCreated + ":" + created.ID}, env.publisher.list())
	assert.Eventually(t, func() bool { return env.notifier.notifiedCount() == 1 }, time.Second, 5*time.Millisecond)
}

func TestCreateListingRejects(t *testing.T) {
	env := newTestEnv(t, nil)
	driver := bearer(t, driverID, models.RoleDriver)

	withField := func(key string, value interface{}) gin.H {
		body := newListingBody()
		if value == nil {
			delete(body, key)
		} else {
			body[key] = value
		}
		return body
	}

	tests := []struct {
		name   string
		auth   string
		body   gin.H
		status int
	}{
		{"customer cannot post", bearer(t, 8, models.RoleUser), newListingBody(), http.StatusForbidden},
		{"no token", "", newListingBody(), http.StatusUnauthorized},
		{"missing origin", driver, withField("origin", nil), http.StatusBadRequest},
		{"missing weight", driver, withField("maxWeight", nil), http.StatusBadRequest},
		{"past departure", driver, withField("departureDate", "2026-10-14"), http.StatusBadRequest},
		{"bad date", driver, withField("departureDate", "besok"), http.StatusBadRequest},
		{"unknown truck", driver, withField("truckType", "tanker"), http.StatusBadRequest},
		{"zero weight", driver, withField("maxWeight", 0), http.StatusBadRequest},
		{"negative price", driver, withField("price", -5), http.StatusBadRequest},
		{"rating out of range", driver, withField("rating", 7), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(env.router, http.MethodPost, "/api/posts", tt.auth, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}

	all, _ := env.listings.ListAll(context.Background())
	assert.Empty(t, all)
}

func TestCreateListingDefaultsPriceToZero(t *testing.T) {
	env := newTestEnv(t, nil)
	body := newListingBody()
	delete(body, "price")

	w := doJSON(env.router, http.MethodPost, "/api/posts", bearer(t, driverID, models.RoleDriver), body)
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.Listing
	decode(t, w, &created)
	assert.Equal(t, int64(0), created.Price)
}

func TestCreateListingMultipartWithImage(t *testing.T) {
	env := newTestEnv(t, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range map[string]string{
		"departureDate": "2026-10-15",
		"origin":        "Bandung",
		"destination":   "Semarang",
		"truckType":     "pickup",
		"maxWeight":     "800",
		"phoneNumber":   "0812",
		"price":         "900000",
	} {
		require.NoError(t, mw.WriteField(k, v))
	}
	part, err := mw.CreateFormFile("image", "truck.png")
	require.NoError(t, err)
	_, _ = part.Write([]byte("\x89PNG\r\n\x1a\n"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/posts", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", bearer(t, driverID, models.RoleDriver))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.Listing
	decode(t, w, &created)
	assert.Equal(t, "https://cdn.test/listings/truck.png", created.ImageURL)
	assert.Equal(t, 800.0, created.MaxWeight)
}

func existingListing() models.Listing {
	return models.Listing{
		ID:            "listing-1",
		DriverID:      driverID,
		DepartureDate: time.Date(2026, 10, 20, 0, 0, 0, 0, time.Local),
		Origin:        "Jakarta",
		Destination:   "Surabaya",
		TruckType:     models.TruckBox,
		MaxWeight:     1500,
		PhoneNumber:   "0812",
		Price:         2000000,
		ImageURL:      "https://cdn.test/listings/old.png",
	}
}

func TestUpdateListing(t *testing.T) {
	env := newTestEnv(t, nil, existingListing())

	w := doJSON(env.router, http.MethodPut, "/api/posts/listing-1", bearer(t, 99, models.RoleDriver), gin.H{"price": 1})
	assert.Equal(t, http.StatusNotFound, w.Code, "other drivers cannot edit")

	w = doJSON(env.router, http.MethodPut, "/api/posts/listing-1", bearer(t, driverID, models.RoleDriver), gin.H{"price": 1750000, "destination": "Malang"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var updated models.Listing
	decode(t, w, &updated)
	assert.Equal(t, int64(1750000), updated.Price)
	assert.Equal(t, "Malang", updated.Destination)
	assert.Equal(t, "Jakarta", updated.Origin, "omitted fields are kept")
	assert.Equal(t, []string{services.EventListingUpdated + ":listing-1"}, env.publisher.list())

	w = doJSON(env.router, http.MethodPut, "/api/posts/listing-1", bearer(t, driverID, models.RoleDriver), gin.H{"maxWeight": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteListing(t *testing.T) {
	env := newTestEnv(t, nil, existingListing())
	driver := bearer(t, driverID, models.RoleDriver)

	w := doJSON(env.router, http.MethodDelete, "/api/posts/listing-1", bearer(t, 99, models.RoleDriver), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(env.router, http.MethodDelete, "/api/posts/listing-1", driver, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Post deleted"}`, w.Body.String())

	w = doJSON(env.router, http.MethodDelete, "/api/posts/listing-1", driver, nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "deletes are permanent")

	assert.Eventually(t, func() bool { return len(env.images.deletedURLs()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{services.EventListingDeleted + ":listing-1"}, env.publisher.list())
}

func TestGetListings(t *testing.T) {
	other := existingListing()
	other.ID = "listing-2"
	other.DriverID = 99
	env := newTestEnv(t, nil, existingListing(), other)

	w := doJSON(env.router, http.MethodGet, "/api/posts?page=1&limit=5", bearer(t, 1, models.RoleUser), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page store.ListingPage
	decode(t, w, &page)
	assert.Len(t, page.Posts, 2)
	assert.Equal(t, 1, page.CurrentPage)

	w = doJSON(env.router, http.MethodGet, "/api/posts/driver", bearer(t, driverID, models.RoleDriver), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var own []models.Listing
	decode(t, w, &own)
	require.Len(t, own, 1)
	assert.Equal(t, "listing-1", own[0].ID)

	w = doJSON(env.router, http.MethodGet, "/api/posts/driver", bearer(t, 1, models.RoleUser), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
