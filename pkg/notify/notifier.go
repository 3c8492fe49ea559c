// Package notify publishes outbound alerts. Laurel never delivers
// email or chat messages itself; it hands notifications to Kafka and
// downstream workers take it from there.
package notify

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/laurel/pkg/kafka"
	"github.com/Ramsey-B/laurel/pkg/metrics"
)

// Notification is one outbound alert
type Notification struct {
	Type       string
	RequestID  *uuid.UUID
	ProspectID *uuid.UUID
	Recipients []string
	Subject    string
	Body       string
}

// Notifier dispatches notifications to the delivery pipeline
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// NotificationProducer is the Kafka surface the notifier needs
type NotificationProducer interface {
	PublishNotification(ctx context.Context, msg *kafka.NotificationMessage) error
}

// KafkaNotifier publishes notifications to the notification topic
type KafkaNotifier struct {
	producer NotificationProducer
	logger   ectologger.Logger
}

// NewKafkaNotifier creates a Kafka-backed notifier
func NewKafkaNotifier(producer NotificationProducer, logger ectologger.Logger) *KafkaNotifier {
	return &KafkaNotifier{
		producer: producer,
		logger:   logger,
	}
}

// Send publishes a notification message
func (n *KafkaNotifier) Send(ctx context.Context, notification Notification) error {
	msg := &kafka.NotificationMessage{
		Type:       notification.Type,
		Recipients: notification.Recipients,
		Subject:    notification.Subject,
		Body:       notification.Body,
	}
	if notification.RequestID != nil {
		msg.RequestID = notification.RequestID.String()
	}
	if notification.ProspectID != nil {
		msg.ProspectID = notification.ProspectID.String()
	}

	if err := n.producer.PublishNotification(ctx, msg); err != nil {
		metrics.NotificationsTotal.WithLabelValues(notification.Type, "error").Inc()
		n.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"notification_type": notification.Type,
		}).Error("failed to publish notification")
		return err
	}

	metrics.NotificationsTotal.WithLabelValues(notification.Type, "sent").Inc()
	return nil
}
