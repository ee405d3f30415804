package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/chachabrian/hacktruck-backend/internal/models"
)

const NewListingsTopic = "new-listings"

var ErrNoDeviceTokens = errors.New("at least one device token is required")

// Notifier delivers push notifications about marketplace activity.
type Notifier interface {
	NotifyNewListing(ctx context.Context, listing models.Listing) error
	SubscribeToListings(ctx context.Context, tokens []string) error
}

type FirebaseNotifier struct {
	client *messaging.Client
	log    *zap.Logger
}

// NewNotifier returns an FCM-backed notifier, or a no-op one when no service
// account is configured.
func NewNotifier(ctx context.Context, serviceAccountPath string, log *zap.Logger) (Notifier, error) {
	if serviceAccountPath == "" {
		log.Warn("FIREBASE_SERVICE_ACCOUNT_PATH not set, push notifications disabled")
		return NoopNotifier{}, nil
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(serviceAccountPath))
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}

	log.Info("firebase cloud messaging initialized")
	return &FirebaseNotifier{client: client, log: log}, nil
}

func (n *FirebaseNotifier) NotifyNewListing(ctx context.Context, listing models.Listing) error {
	id, err := n.client.Send(ctx, newListingMessage(listing))
	if err != nil {
		return fmt.Errorf("send new listing notification: %w", err)
	}
	n.log.Debug("new listing notification sent", zap.String("listingId", listing.ID), zap.String("messageId", id))
	return nil
}

func (n *FirebaseNotifier) SubscribeToListings(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return ErrNoDeviceTokens
	}
	resp, err := n.client.SubscribeToTopic(ctx, tokens, NewListingsTopic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", NewListingsTopic, err)
	}
	if resp.FailureCount > 0 {
		n.log.Warn("some device tokens could not be subscribed",
			zap.Int("failed", resp.FailureCount),
			zap.Int("succeeded", resp.SuccessCount),
		)
	}
	return nil
}

func newListingMessage(l models.Listing) *messaging.Message {
	title := "Truk baru tersedia 🚚"
	body := fmt.Sprintf("%s → %s, truk %s, berangkat %s", l.Origin, l.Destination, l.TruckType, l.DepartureDate.Format("02 Jan 2006"))
	if l.CompanyName != "" {
		title = l.CompanyName + " membuka muatan baru"
	}

	return &messaging.Message{
		Topic: NewListingsTopic,
		Notification: &messaging.Notification{
			Title:    title,
			Body:     body,
			ImageURL: l.ImageURL,
		},
		Data: map[string]string{
			"type":          "new_listing",
			"listingId":     l.ID,
			"origin":        l.Origin,
			"destination":   l.Destination,
			"truckType":     string(l.TruckType),
			"maxWeight":     strconv.FormatFloat(l.MaxWeight, 'f', -1, 64),
			"price":         strconv.FormatInt(l.Price, 10),
			"departureDate": l.DepartureDate.Format(time.DateOnly),
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID:    "hacktruck_listings",
				Sound:        "default",
				DefaultSound: true,
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default", ContentAvailable: true},
			},
		},
	}
}

// NoopNotifier is used when Firebase is not configured.
type NoopNotifier struct{}

func (NoopNotifier) NotifyNewListing(ctx context.Context, listing models.Listing) error {
	return nil
}

func (NoopNotifier) SubscribeToListings(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return ErrNoDeviceTokens
	}
	return nil
}
