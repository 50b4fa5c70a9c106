package notifications

import "context"

// PushSender sends a push notification to a single device token.
type PushSender interface {
	SendPushNotification(ctx context.Context, token, title, body string, data map[string]string) (string, error)
}

// SMSSender sends a text message to a phone number.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) (string, error)
}
