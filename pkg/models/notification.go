package models

// NotificationType identifies why a driver is being notified
type NotificationType string

const (
	NotificationDocumentApproved NotificationType = "document_approved"
	NotificationDocumentRejected NotificationType = "document_rejected"
	NotificationDriverVerified   NotificationType = "driver_verified"
)

// NotificationChannel represents the delivery channel
type NotificationChannel string

const (
	NotificationChannelPush NotificationChannel = "push"
	NotificationChannelSMS  NotificationChannel = "sms"
)

// Notification is a single outbound message to a driver.
type Notification struct {
	Type    NotificationType    `json:"type"`
	Channel NotificationChannel `json:"channel"`
	Title   string              `json:"title"`
	Body    string              `json:"body"`
	Data    map[string]string   `json:"data,omitempty"`
}
