package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Ramsey-B/laurel/pkg/tracing"
)

// Config holds Kafka configuration
type Config struct {
	Brokers           []string
	NotificationTopic string
	FunnelTopic       string
}

// Producer publishes notification and funnel-event messages to Kafka.
type Producer struct {
	notificationWriter *kafka.Writer
	funnelWriter       *kafka.Writer
	logger             ectologger.Logger
	notificationTopic  string
	funnelTopic        string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg Config, logger ectologger.Logger) *Producer {
	return &Producer{
		notificationWriter: newWriter(cfg.Brokers, cfg.NotificationTopic),
		funnelWriter:       newWriter(cfg.Brokers, cfg.FunnelTopic),
		logger:             logger,
		notificationTopic:  cfg.NotificationTopic,
		funnelTopic:        cfg.FunnelTopic,
	}
}

func newWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		// Allow Kafka to auto-create the topic in dev environments when it doesn't exist yet.
		// Without this, a first publish may fail with "Unknown Topic Or Partition".
		AllowAutoTopicCreation: true,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	var firstErr error
	if err := p.notificationWriter.Close(); err != nil {
		firstErr = err
	}
	if err := p.funnelWriter.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// NotificationMessage is an outbound alert for downstream delivery
// (email, Slack, etc). Laurel only publishes; delivery is someone
// else's job.
type NotificationMessage struct {
	Type       string    `json:"type"`
	RequestID  string    `json:"request_id,omitempty"`
	ProspectID string    `json:"prospect_id,omitempty"`
	Recipients []string  `json:"recipients"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	Timestamp  time.Time `json:"timestamp"`

	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`
}

// FunnelEventMessage mirrors a funnel_events row for downstream
// analytics consumers.
type FunnelEventMessage struct {
	EventID         string          `json:"event_id"`
	ProspectID      string          `json:"prospect_id,omitempty"`
	RequestID       string          `json:"request_id,omitempty"`
	FromStage       string          `json:"from_stage,omitempty"`
	ToStage         string          `json:"to_stage"`
	Actor           string          `json:"actor"`
	DaysInPrevStage *int            `json:"days_in_prev_stage,omitempty"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
	Timestamp       time.Time       `json:"timestamp"`

	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`
}

// PublishNotification publishes a notification message.
func (p *Producer) PublishNotification(ctx context.Context, msg *NotificationMessage) error {
	ctx, span := tracing.StartSpan(ctx, "Kafka.PublishNotification")
	defer span.End()

	span.SetAttributes(
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination", p.notificationTopic),
		attribute.String("messaging.operation", "publish"),
		attribute.String("notification.type", msg.Type),
	)

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	msg.TraceID = tracing.GetTraceID(ctx)
	msg.SpanID = tracing.GetSpanID(ctx)

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to marshal message")
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	key := msg.RequestID
	if key == "" {
		key = msg.ProspectID
	}

	headers := []kafka.Header{
		{Key: "type", Value: []byte(msg.Type)},
	}
	headers = appendTraceHeaders(ctx, headers)

	err = p.notificationWriter.WriteMessages(ctx, kafka.Message{
		Key:     []byte(key),
		Value:   data,
		Headers: headers,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to publish message")
		p.logger.WithContext(ctx).WithError(err).Errorf("Failed to publish to Kafka topic %s", p.notificationTopic)
		return err
	}

	span.SetStatus(codes.Ok, "message published")
	p.logger.WithContext(ctx).Debugf("Published notification to Kafka: type=%s request=%s recipients=%d",
		msg.Type, msg.RequestID, len(msg.Recipients))

	return nil
}

// PublishFunnelEvent publishes a funnel event message.
func (p *Producer) PublishFunnelEvent(ctx context.Context, msg *FunnelEventMessage) error {
	ctx, span := tracing.StartSpan(ctx, "Kafka.PublishFunnelEvent")
	defer span.End()

	span.SetAttributes(
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination", p.funnelTopic),
		attribute.String("messaging.operation", "publish"),
		attribute.String("funnel.to_stage", msg.ToStage),
	)

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	msg.TraceID = tracing.GetTraceID(ctx)
	msg.SpanID = tracing.GetSpanID(ctx)

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to marshal message")
		return fmt.Errorf("failed to marshal funnel event: %w", err)
	}

	key := msg.RequestID
	if key == "" {
		key = msg.ProspectID
	}

	headers := []kafka.Header{
		{Key: "to_stage", Value: []byte(msg.ToStage)},
		{Key: "event_id", Value: []byte(msg.EventID)},
	}
	headers = appendTraceHeaders(ctx, headers)

	err = p.funnelWriter.WriteMessages(ctx, kafka.Message{
		Key:     []byte(key),
		Value:   data,
		Headers: headers,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to publish message")
		p.logger.WithContext(ctx).WithError(err).Errorf("Failed to publish to Kafka topic %s", p.funnelTopic)
		return err
	}

	span.SetStatus(codes.Ok, "message published")
	return nil
}

// appendTraceHeaders adds W3C trace context headers for distributed tracing
func appendTraceHeaders(ctx context.Context, headers []kafka.Header) []kafka.Header {
	if traceparent := tracing.GetTraceParent(ctx); traceparent != "" {
		headers = append(headers, kafka.Header{Key: "traceparent", Value: []byte(traceparent)})
	}
	if tracestate := tracing.GetTraceState(ctx); tracestate != "" {
		headers = append(headers, kafka.Header{Key: "tracestate", Value: []byte(tracestate)})
	}
	return headers
}

// Stats returns producer statistics
func (p *Producer) Stats() kafka.WriterStats {
	return p.notificationWriter.Stats()
}
