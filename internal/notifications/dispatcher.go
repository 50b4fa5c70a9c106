package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/richxcame/driver-verification/pkg/logger"
	"github.com/richxcame/driver-verification/pkg/models"
	"github.com/richxcame/driver-verification/pkg/resilience"
	"go.uber.org/zap"
)

// ErrNoChannel is returned when the driver has no reachable channel.
var ErrNoChannel = errors.New("no notification channel available for driver")

// Dispatcher delivers driver notifications over push with an SMS fallback.
// Each provider sits behind its own circuit breaker.
type Dispatcher struct {
	push        PushSender
	sms         SMSSender
	pushBreaker *resilience.CircuitBreaker
	smsBreaker  *resilience.CircuitBreaker
}

// NewDispatcher creates a dispatcher. Either sender may be nil when the
// provider is not configured; nil breakers get defaults.
func NewDispatcher(push PushSender, sms SMSSender, pushBreaker, smsBreaker *resilience.CircuitBreaker) *Dispatcher {
	if pushBreaker == nil {
		pushBreaker = resilience.NewCircuitBreaker(defaultBreakerSettings("firebase-fcm"))
	}
	if smsBreaker == nil {
		smsBreaker = resilience.NewCircuitBreaker(defaultBreakerSettings("twilio-sms"))
	}
	return &Dispatcher{
		push:        push,
		sms:         sms,
		pushBreaker: pushBreaker,
		smsBreaker:  smsBreaker,
	}
}

func defaultBreakerSettings(name string) resilience.Settings {
	return resilience.Settings{
		Name:             name,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
	}
}

// Send delivers n to the driver. An explicit channel on n is honoured;
// otherwise push is tried first and SMS is used when push is unavailable
// or fails.
func (d *Dispatcher) Send(ctx context.Context, driver *models.Driver, n *models.Notification) error {
	if driver == nil || n == nil {
		return errors.New("driver and notification are required")
	}

	switch n.Channel {
	case models.NotificationChannelPush:
		return d.sendPush(ctx, driver, n)
	case models.NotificationChannelSMS:
		return d.sendSMS(ctx, driver, n)
	}

	pushErr := d.sendPush(ctx, driver, n)
	if pushErr == nil {
		return nil
	}
	smsErr := d.sendSMS(ctx, driver, n)
	if smsErr == nil {
		return nil
	}
	if errors.Is(pushErr, ErrNoChannel) && errors.Is(smsErr, ErrNoChannel) {
		return ErrNoChannel
	}
	return errors.Join(pushErr, smsErr)
}

func (d *Dispatcher) sendPush(ctx context.Context, driver *models.Driver, n *models.Notification) error {
	if d.push == nil || driver.FCMToken == nil || *driver.FCMToken == "" {
		return ErrNoChannel
	}
	token := *driver.FCMToken

	result, err := d.pushBreaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return d.push.SendPushNotification(ctx, token, n.Title, n.Body, n.Data)
	})
	if err != nil {
		logger.WarnContext(ctx, "push notification failed",
			zap.String("driver_id", driver.ID.String()),
			zap.String("token", maskToken(token)),
			zap.String("type", string(n.Type)),
			zap.Error(err),
		)
		return fmt.Errorf("push: %w", err)
	}

	logger.DebugContext(ctx, "push notification sent",
		zap.String("driver_id", driver.ID.String()),
		zap.Any("message_id", result),
		zap.String("type", string(n.Type)),
	)
	return nil
}

func (d *Dispatcher) sendSMS(ctx context.Context, driver *models.Driver, n *models.Notification) error {
	phone := strings.TrimSpace(driver.PhoneNumber)
	if d.sms == nil || phone == "" {
		return ErrNoChannel
	}

	result, err := d.smsBreaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return d.sms.SendSMS(ctx, phone, smsBody(n))
	})
	if err != nil {
		logger.WarnContext(ctx, "sms notification failed",
			zap.String("driver_id", driver.ID.String()),
			zap.String("to", maskPhoneNumber(phone)),
			zap.String("type", string(n.Type)),
			zap.Error(err),
		)
		return fmt.Errorf("sms: %w", err)
	}

	logger.DebugContext(ctx, "sms notification sent",
		zap.String("driver_id", driver.ID.String()),
		zap.Any("message_sid", result),
		zap.String("type", string(n.Type)),
	)
	return nil
}

func smsBody(n *models.Notification) string {
	if n.Title == "" {
		return n.Body
	}
	return n.Title + ": " + n.Body
}

// maskToken masks FCM token for logging (show only first/last 4 chars)
func maskToken(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// maskPhoneNumber masks phone number for logging (show only last 4 digits)
func maskPhoneNumber(phoneNumber string) string {
	if len(phoneNumber) <= 4 {
		return "***"
	}
	return "***" + phoneNumber[len(phoneNumber)-4:]
}
