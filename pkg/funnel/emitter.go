// Package funnel records stage transitions into the append-only
// analytics trail. Funnel recording is observability, not business
// state: a failure here is logged and never aborts the operation that
// triggered it.
package funnel

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/laurel/pkg/appctx"
	"github.com/Ramsey-B/laurel/pkg/clock"
	"github.com/Ramsey-B/laurel/pkg/kafka"
	"github.com/Ramsey-B/laurel/pkg/metrics"
	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/repositories"
	"github.com/Ramsey-B/laurel/pkg/tracing"
)

// SystemActor attributes sweep-driven transitions
const SystemActor = "system"

// Transition describes one stage change to record
type Transition struct {
	ProspectID *uuid.UUID
	RequestID  *uuid.UUID
	ToStage    string
	Notes      *string
	Metadata   json.RawMessage
}

// Emitter records funnel transitions
type Emitter interface {
	Emit(ctx context.Context, t Transition)
}

// FunnelProducer is the Kafka surface the emitter needs
type FunnelProducer interface {
	PublishFunnelEvent(ctx context.Context, msg *kafka.FunnelEventMessage) error
}

// EventEmitter persists each transition and mirrors it to Kafka
type EventEmitter struct {
	events   repositories.FunnelEventRepo
	producer FunnelProducer
	clk      clock.Clock
	logger   ectologger.Logger
}

// NewEventEmitter creates a new funnel emitter. producer may be nil
// when Kafka mirroring is disabled.
func NewEventEmitter(events repositories.FunnelEventRepo, producer FunnelProducer, clk clock.Clock, logger ectologger.Logger) *EventEmitter {
	return &EventEmitter{
		events:   events,
		producer: producer,
		clk:      clk,
		logger:   logger,
	}
}

// Emit records a transition. The from-stage and time-in-stage are
// derived from the subject's latest prior event; the first event for a
// subject has neither.
func (e *EventEmitter) Emit(ctx context.Context, t Transition) {
	ctx, span := tracing.StartSpan(ctx, "EventEmitter.Emit")
	defer span.End()

	actor := appctx.GetActor(ctx)
	if actor == "" {
		actor = SystemActor
	}

	event := &models.FunnelEvent{
		ID:         uuid.New(),
		ProspectID: t.ProspectID,
		RequestID:  t.RequestID,
		ToStage:    t.ToStage,
		Actor:      actor,
		Notes:      t.Notes,
		Metadata:   t.Metadata,
	}

	if prev := e.latest(ctx, t); prev != nil {
		event.FromStage = &prev.ToStage
		days := clock.DaysSince(e.clk.Now(), prev.CreatedAt)
		if days < 0 {
			days = 0
		}
		event.DaysInPrevStage = &days
	}

	if err := e.events.Append(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"to_stage": t.ToStage,
		}).Error("failed to record funnel event")
		return
	}

	metrics.FunnelEventsTotal.WithLabelValues(t.ToStage).Inc()

	if e.producer == nil {
		return
	}

	msg := &kafka.FunnelEventMessage{
		EventID:         event.ID.String(),
		ToStage:         event.ToStage,
		Actor:           event.Actor,
		DaysInPrevStage: event.DaysInPrevStage,
		Metadata:        event.Metadata,
	}
	if event.ProspectID != nil {
		msg.ProspectID = event.ProspectID.String()
	}
	if event.RequestID != nil {
		msg.RequestID = event.RequestID.String()
	}
	if event.FromStage != nil {
		msg.FromStage = *event.FromStage
	}

	if err := e.producer.PublishFunnelEvent(ctx, msg); err != nil {
		// The row is already durable; the Kafka mirror is best-effort.
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"to_stage": t.ToStage,
		}).Warn("failed to publish funnel event")
	}
}

func (e *EventEmitter) latest(ctx context.Context, t Transition) *models.FunnelEvent {
	var (
		prev *models.FunnelEvent
		err  error
	)
	switch {
	case t.RequestID != nil:
		prev, err = e.events.GetLatestForRequest(ctx, *t.RequestID)
	case t.ProspectID != nil:
		prev, err = e.events.GetLatestForProspect(ctx, *t.ProspectID)
	default:
		return nil
	}
	if err != nil {
		if !httperror.IsHTTPError(err) || httperror.GetStatusCode(err) != 404 {
			e.logger.WithContext(ctx).WithError(err).Warn("failed to load previous funnel event")
		}
		return nil
	}
	return prev
}
