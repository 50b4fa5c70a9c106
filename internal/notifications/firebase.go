package notifications

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// FirebaseClient handles Firebase Cloud Messaging operations
type FirebaseClient struct {
	client *messaging.Client
}

// NewFirebaseClient creates a new Firebase client. Without a credentials
// path the application default credentials are used.
func NewFirebaseClient(ctx context.Context, credentialsPath string) (*FirebaseClient, error) {
	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create messaging client: %w", err)
	}

	return &FirebaseClient{client: client}, nil
}

// SendPushNotification sends a push notification to a device
func (f *FirebaseClient) SendPushNotification(ctx context.Context, token, title, body string, data map[string]string) (string, error) {
	response, err := f.client.Send(ctx, pushMessage(token, title, body, data))
	if err != nil {
		return "", fmt.Errorf("failed to send push notification: %w", err)
	}
	return response, nil
}

func pushMessage(token, title, body string, data map[string]string) *messaging.Message {
	return &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound: "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
				},
			},
		},
	}
}
