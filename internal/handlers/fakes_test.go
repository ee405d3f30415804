package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chachabrian/hacktruck-backend/internal/models"
	"github.com/chachabrian/hacktruck-backend/internal/store"
	"github.com/chachabrian/hacktruck-backend/pkg/utils"
)

const testSecret = "handler-test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeUserStore struct {
	mu     sync.Mutex
	users  map[uint]*models.User
	nextID uint
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[uint]*models.User{}, nextID: 1}
}

func (s *fakeUserStore) Create(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = s.nextID
	u.CreatedAt = time.Now()
	s.nextID++
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *fakeUserStore) find(match func(*models.User) bool) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (s *fakeUserStore) FindByID(ctx context.Context, id uint) (*models.User, error) {
	return s.find(func(u *models.User) bool { return u.ID == id })
}

func (s *fakeUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.find(func(u *models.User) bool { return u.Email == email })
}

func (s *fakeUserStore) FindByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	return s.find(func(u *models.User) bool { return u.GoogleID != nil && *u.GoogleID == googleID })
}

func (s *fakeUserStore) Update(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *fakeUserStore) EmailTaken(ctx context.Context, email string, exceptID uint) (bool, error) {
	_, err := s.find(func(u *models.User) bool { return u.Email == email && u.ID != exceptID })
	return err == nil, nil
}

func (s *fakeUserStore) UsernameTaken(ctx context.Context, username string, exceptID uint) (bool, error) {
	_, err := s.find(func(u *models.User) bool {
		return u.Username != nil && *u.Username == username && u.ID != exceptID
	})
	return err == nil, nil
}

type fakeListingStore struct {
	mu       sync.Mutex
	listings map[string]models.Listing
	err      error
}

func newFakeListingStore(listings ...models.Listing) *fakeListingStore {
	s := &fakeListingStore{listings: map[string]models.Listing{}}
	for _, l := range listings {
		s.listings[l.ID] = l
	}
	return s
}

func (s *fakeListingStore) Create(ctx context.Context, l *models.Listing) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	l.CreatedAt = time.Now()
	s.listings[l.ID] = *l
	return nil
}

func (s *fakeListingStore) sorted() []models.Listing {
	out := make([]models.Listing, 0, len(s.listings))
	for _, l := range s.listings {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *fakeListingStore) List(ctx context.Context, q store.ListingQuery) (store.ListingPage, error) {
	if s.err != nil {
		return store.ListingPage{}, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	q = q.Normalize()
	all := s.sorted()
	return store.ListingPage{Posts: all, TotalPages: 1, CurrentPage: q.Page, Total: int64(len(all))}, nil
}

func (s *fakeListingStore) ListAll(ctx context.Context) ([]models.Listing, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(), nil
}

func (s *fakeListingStore) ListByDriver(ctx context.Context, driverID uint) ([]models.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Listing{}
	for _, l := range s.sorted() {
		if l.DriverID == driverID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *fakeListingStore) FindOwned(ctx context.Context, id string, driverID uint) (*models.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok || l.DriverID != driverID {
		return nil, store.ErrListingNotFound
	}
	return &l, nil
}

func (s *fakeListingStore) Update(ctx context.Context, l *models.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings[l.ID] = *l
	return nil
}

func (s *fakeListingStore) Delete(ctx context.Context, id string, driverID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.listings[id]; !ok || l.DriverID != driverID {
		return store.ErrListingNotFound
	}
	delete(s.listings, id)
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *fakePublisher) PublishListingEvent(eventType string, listing models.Listing) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType+":"+listing.ID)
}

func (p *fakePublisher) list() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

type fakeNotifier struct {
	mu       sync.Mutex
	notified []string
	tokens   []string
}

func (n *fakeNotifier) NotifyNewListing(ctx context.Context, l models.Listing) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notified = append(n.notified, l.ID)
	return nil
}

func (n *fakeNotifier) SubscribeToListings(ctx context.Context, tokens []string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tokens = append(n.tokens, tokens...)
	return nil
}

func (n *fakeNotifier) notifiedCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.notified)
}

type fakeImageStore struct {
	mu       sync.Mutex
	uploaded []string
	deleted  []string
}

func (s *fakeImageStore) Upload(ctx context.Context, file *multipart.FileHeader, folder string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	url := "https://cdn.test/" + folder + "/" + file.Filename
	s.uploaded = append(s.uploaded, url)
	return url, nil
}

func (s *fakeImageStore) Delete(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, url)
	return nil
}

func (s *fakeImageStore) deletedURLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}

func bearer(t *testing.T, id uint, role models.UserRole) string {
	t.Helper()
	tok, err := utils.GenerateToken(id, "test@example.com", string(role), testSecret, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func doJSON(r http.Handler, method, path, auth string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			_ = json.NewEncoder(&buf).Encode(body)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

type testEnv struct {
	router    *gin.Engine
	users     *fakeUserStore
	listings  *fakeListingStore
	publisher *fakePublisher
	notifier  *fakeNotifier
	images    *fakeImageStore
}

func newTestEnv(t *testing.T, rec CargoRecommender, listings ...models.Listing) *testEnv {
	t.Helper()
	env := &testEnv{
		router:    gin.New(),
		users:     newFakeUserStore(),
		listings:  newFakeListingStore(listings...),
		publisher: &fakePublisher{},
		notifier:  &fakeNotifier{},
		images:    &fakeImageStore{},
	}
	authCfg := AuthConfig{JWTSecret: testSecret, JWTExpiry: time.Hour, Logger: zap.NewNop()}
	RegisterRoutes(env.router, RouteDeps{
		Auth:  authCfg,
		Users: env.users,
		Listings: ListingDeps{
			Store:     env.listings,
			Images:    env.images,
			Publisher: env.publisher,
			Notifier:  env.notifier,
			Logger:    zap.NewNop(),
			Now:       func() time.Time { return time.Date(2026, 10, 15, 9, 0, 0, 0, time.Local) },
		},
		Recommender: rec,
		Notifier:    env.notifier,
		Ping:        func(context.Context) error { return nil },
		Logger:      zap.NewNop(),
	})
	return env
}
