package documents

import (
	"context"
	"fmt"
	"time"

	"github.com/richxcame/driver-verification/pkg/async"
	"github.com/richxcame/driver-verification/pkg/common"
	"github.com/richxcame/driver-verification/pkg/eventbus"
	"github.com/richxcame/driver-verification/pkg/logger"
	"github.com/richxcame/driver-verification/pkg/models"
	"go.uber.org/zap"
)

const (
	eventSource          = "documents-service"
	recomputeConsumer    = "documents-recompute"
	publishTimeout       = 5 * time.Second
	notificationDeadline = 30 * time.Second
)

// Subscriber is the consuming side of the event bus.
type Subscriber interface {
	Subscribe(ctx context.Context, subject, consumerName string, handler eventbus.HandlerFunc) error
}

// publish sends a domain event. Failures are logged and never fail the
// operation that produced the event.
func (s *Service) publish(ctx context.Context, subject string, data interface{}) {
	event, err := eventbus.NewEvent(subject, eventSource, data)
	if err != nil {
		logger.WarnContext(ctx, "failed to build event", zap.String("subject", subject), zap.Error(err))
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, subject, event); err != nil {
		logger.WarnContext(ctx, "failed to publish event",
			zap.String("subject", subject),
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
	}
}

// RegisterRecomputeConsumer subscribes to recompute requests raised when an
// aggregate write failed. A request that fails again is redelivered by the
// bus; an unknown driver is dropped.
func (s *Service) RegisterRecomputeConsumer(ctx context.Context, sub Subscriber) error {
	return sub.Subscribe(ctx, eventbus.SubjectVerificationRecompute, recomputeConsumer, s.handleRecompute)
}

func (s *Service) handleRecompute(ctx context.Context, event *eventbus.Event) error {
	var data eventbus.VerificationRecomputeData
	if err := event.Decode(&data); err != nil {
		logger.WarnContext(ctx, "dropping malformed recompute request", zap.String("event_id", event.ID), zap.Error(err))
		return nil
	}

	state, err := s.RecomputeDriver(ctx, data.DriverID)
	if err != nil {
		if common.IsNotFound(err) {
			logger.WarnContext(ctx, "recompute requested for unknown driver", zap.String("driver_id", data.DriverID.String()))
			return nil
		}
		return fmt.Errorf("recompute driver %s: %w", data.DriverID, err)
	}

	logger.InfoContext(ctx, "driver verification recomputed",
		zap.String("driver_id", data.DriverID.String()),
		zap.String("document_status", string(state.DocumentStatus)),
		zap.String("reason", data.Reason),
	)
	return nil
}

// notifyReview tells the driver about a review decision in the background.
func (s *Service) notifyReview(ctx context.Context, doc *Document, result *Recomputation) {
	if s.notifier == nil || doc.Status == StatusPending {
		return
	}

	notifications := []*models.Notification{reviewNotification(doc)}
	if result.Changed() && result.State.IsVerified {
		notifications = append(notifications, &models.Notification{
			Type:  models.NotificationDriverVerified,
			Title: "You're verified",
			Body:  "All your documents are approved. You can start accepting trips.",
			Data:  map[string]string{"driver_id": doc.DriverID.String()},
		})
	}

	async.GoWithTimeout(ctx, "notify-review", notificationDeadline, func(ctx context.Context) {
		driver, err := s.repo.GetDriver(ctx, doc.DriverID)
		if err != nil {
			logger.WarnContext(ctx, "failed to load driver for notification",
				zap.String("driver_id", doc.DriverID.String()), zap.Error(err))
			return
		}
		for _, n := range notifications {
			if err := s.notifier.Send(ctx, driver, n); err != nil {
				logger.WarnContext(ctx, "failed to send review notification",
					zap.String("driver_id", driver.ID.String()),
					zap.String("type", string(n.Type)),
					zap.Error(err),
				)
			}
		}
	})
}

func reviewNotification(doc *Document) *models.Notification {
	data := map[string]string{
		"document_id": doc.ID.String(),
		"doc_type":    doc.DocType,
		"side":        doc.Side,
	}
	if doc.Status == StatusApproved {
		return &models.Notification{
			Type:  models.NotificationDocumentApproved,
			Title: "Document approved",
			Body:  fmt.Sprintf("Your %s (%s) was approved.", doc.DocType, doc.Side),
			Data:  data,
		}
	}

	body := fmt.Sprintf("Your %s (%s) was rejected. Please upload it again.", doc.DocType, doc.Side)
	if doc.Remarks != "" {
		body = fmt.Sprintf("Your %s (%s) was rejected: %s", doc.DocType, doc.Side, doc.Remarks)
	}
	return &models.Notification{
		Type:  models.NotificationDocumentRejected,
		Title: "Document rejected",
		Body:  body,
		Data:  data,
	}
}
