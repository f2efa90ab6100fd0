package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// messageSender is the subset of *messaging.Client used by FCMDispatcher.
type messageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMDispatcher sends to Firebase Cloud Messaging registration tokens.
type FCMDispatcher struct {
	client messageSender
	ttl    time.Duration
}

// NewFCMDispatcher initialises a Firebase app from credentialsFile (application default credentials
// when empty). ttl bounds how long FCM keeps an undelivered message and should match the challenge TTL.
func NewFCMDispatcher(ctx context.Context, credentialsFile string, ttl time.Duration) (*FCMDispatcher, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("notify: initialize firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("notify: messaging client: %w", err)
	}
	log.Println("notify: FCM client initialized")
	return &FCMDispatcher{client: client, ttl: ttl}, nil
}

func (d *FCMDispatcher) Send(ctx context.Context, token string, p Payload) error {
	msg := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: p.Title,
			Body:  p.Body,
		},
		Data: p.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{"apns-priority": "10"},
		},
	}
	if d.ttl > 0 {
		ttl := d.ttl
		msg.Android.TTL = &ttl
	}
	if _, err := d.client.Send(ctx, msg); err != nil {
		if messaging.IsUnregistered(err) {
			return fmt.Errorf("%w: %v", ErrSubscriptionGone, err)
		}
		return fmt.Errorf("notify: fcm send: %w", err)
	}
	return nil
}
