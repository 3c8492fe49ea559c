// Package staleness flags prospects and prospect-originated requests
// that have gone quiet. Detection is sweep-driven; marking something
// lost is always a manual, terminal act.
package staleness

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/laurel/pkg/clock"
	"github.com/Ramsey-B/laurel/pkg/funnel"
	"github.com/Ramsey-B/laurel/pkg/metrics"
	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/repositories"
	"github.com/Ramsey-B/laurel/pkg/tracing"
)

// Thresholds are the inactivity windows, in days
type Thresholds struct {
	FollowupDays      int
	StaleDays         int
	ProposalStaleDays int
}

// DefaultThresholds returns the standard inactivity windows
func DefaultThresholds() Thresholds {
	return Thresholds{
		FollowupDays:      14,
		StaleDays:         30,
		ProposalStaleDays: 30,
	}
}

// JobSummary reports what one detection sweep did
type JobSummary struct {
	ProspectsScanned  int `json:"prospects_scanned"`
	ProspectsFlagged  int `json:"prospects_flagged"`
	FollowupNeeded    int `json:"followup_needed"`
	ProposalsScanned  int `json:"proposals_scanned"`
	ProposalsFlagged  int `json:"proposals_flagged"`
	RowFailures       int `json:"row_failures"`
}

// Detector runs staleness detection and the manual prospect transitions
type Detector struct {
	prospects  repositories.ProspectRepo
	requests   repositories.RequestRepo
	emitter    funnel.Emitter
	clk        clock.Clock
	thresholds Thresholds
	logger     ectologger.Logger
}

// NewDetector creates a new stale detector
func NewDetector(
	prospects repositories.ProspectRepo,
	requests repositories.RequestRepo,
	emitter funnel.Emitter,
	clk clock.Clock,
	thresholds Thresholds,
	logger ectologger.Logger,
) *Detector {
	if thresholds.FollowupDays <= 0 {
		thresholds.FollowupDays = DefaultThresholds().FollowupDays
	}
	if thresholds.StaleDays <= 0 {
		thresholds.StaleDays = DefaultThresholds().StaleDays
	}
	if thresholds.ProposalStaleDays <= 0 {
		thresholds.ProposalStaleDays = DefaultThresholds().ProposalStaleDays
	}
	return &Detector{
		prospects:  prospects,
		requests:   requests,
		emitter:    emitter,
		clk:        clk,
		thresholds: thresholds,
		logger:     logger,
	}
}

func (d *Detector) staleCutoff(now time.Time) time.Time {
	return now.AddDate(0, 0, -d.thresholds.StaleDays)
}

func (d *Detector) followupCutoff(now time.Time) time.Time {
	return now.AddDate(0, 0, -d.thresholds.FollowupDays)
}

// DetectStaleProspects returns active, unflagged prospects past the
// stale threshold. Read-only; marking is a separate step.
func (d *Detector) DetectStaleProspects(ctx context.Context) ([]models.Prospect, error) {
	ctx, span := tracing.StartSpan(ctx, "StaleDetector.DetectStaleProspects")
	defer span.End()

	return d.prospects.ListStaleCandidates(ctx, d.staleCutoff(d.clk.Now()))
}

// DetectProspectsNeedingFollowup returns active prospects inside the
// follow-up window: quiet past the follow-up threshold but not yet
// stale. Disjoint from DetectStaleProspects by construction.
func (d *Detector) DetectProspectsNeedingFollowup(ctx context.Context) ([]models.Prospect, error) {
	ctx, span := tracing.StartSpan(ctx, "StaleDetector.DetectProspectsNeedingFollowup")
	defer span.End()

	now := d.clk.Now()
	return d.prospects.ListNeedingFollowup(ctx, d.staleCutoff(now), d.followupCutoff(now))
}

// DetectStaleProposals returns unresolved prospect-originated requests
// past the proposal stale threshold.
func (d *Detector) DetectStaleProposals(ctx context.Context) ([]models.Request, error) {
	ctx, span := tracing.StartSpan(ctx, "StaleDetector.DetectStaleProposals")
	defer span.End()

	cutoff := d.clk.Now().AddDate(0, 0, -d.thresholds.ProposalStaleDays)
	return d.requests.ListStaleProposalCandidates(ctx, cutoff)
}

// MarkProspectStale flags a prospect as stale and logs the detection.
// A prospect already flagged is left alone: the guard means the funnel
// trail gets exactly one stale_detected event per quiet period.
func (d *Detector) MarkProspectStale(ctx context.Context, id uuid.UUID) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "StaleDetector.MarkProspectStale")
	defer span.End()

	won, err := d.prospects.MarkStale(ctx, id, d.clk.Now())
	if err != nil || !won {
		return false, err
	}

	metrics.StaleFlaggedTotal.WithLabelValues("prospect").Inc()
	d.emitter.Emit(ctx, funnel.Transition{
		ProspectID: &id,
		ToStage:    models.FunnelStageStaleDetected,
	})
	return true, nil
}

// MarkProposalStale flags a prospect-originated request as stale
func (d *Detector) MarkProposalStale(ctx context.Context, id uuid.UUID) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "StaleDetector.MarkProposalStale")
	defer span.End()

	won, err := d.requests.MarkStale(ctx, id, d.clk.Now())
	if err != nil || !won {
		return false, err
	}

	metrics.StaleFlaggedTotal.WithLabelValues("proposal").Inc()
	d.emitter.Emit(ctx, funnel.Transition{
		RequestID: &id,
		ToStage:   models.FunnelStageStaleDetected,
	})
	return true, nil
}

// MarkProspectLost manually deactivates a prospect. Terminal: a lost
// prospect never comes back, and a second call is rejected rather than
// double-logged.
func (d *Detector) MarkProspectLost(ctx context.Context, id uuid.UUID, reason, stage string) error {
	ctx, span := tracing.StartSpan(ctx, "StaleDetector.MarkProspectLost")
	defer span.End()

	if reason == "" {
		return repositories.BadRequest("lost reason is required")
	}

	won, err := d.prospects.MarkLost(ctx, id, reason, stage, d.clk.Now())
	if err != nil {
		return err
	}
	if !won {
		return repositories.Conflict("prospect is already inactive")
	}

	d.emitter.Emit(ctx, funnel.Transition{
		ProspectID: &id,
		ToStage:    models.FunnelStageLost,
		Notes:      &reason,
	})
	return nil
}

// UpdateProspectActivity records fresh activity on a prospect and
// clears any stale flag. This is the only way a stale flag unsets.
func (d *Detector) UpdateProspectActivity(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "StaleDetector.UpdateProspectActivity")
	defer span.End()

	return d.prospects.UpdateActivity(ctx, id, d.clk.Now())
}

// UpdateRequestActivity records fresh activity on a request and clears
// any stale flag.
func (d *Detector) UpdateRequestActivity(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "StaleDetector.UpdateRequestActivity")
	defer span.End()

	return d.requests.UpdateActivity(ctx, id, d.clk.Now())
}

// RunDetectionJob runs the full sweep: flag stale prospects, count
// follow-up candidates without marking them, flag stale proposals.
// One row's failure skips that row only.
func (d *Detector) RunDetectionJob(ctx context.Context) (*JobSummary, error) {
	ctx, span := tracing.StartSpan(ctx, "StaleDetector.RunDetectionJob")
	defer span.End()

	summary := &JobSummary{}

	prospects, err := d.DetectStaleProspects(ctx)
	if err != nil {
		return nil, err
	}
	summary.ProspectsScanned = len(prospects)
	for _, p := range prospects {
		won, err := d.MarkProspectStale(ctx, p.ID)
		if err != nil {
			summary.RowFailures++
			d.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"prospect_id": p.ID,
			}).Error("failed to mark prospect stale, skipping row")
			continue
		}
		if won {
			summary.ProspectsFlagged++
		}
	}

	followups, err := d.DetectProspectsNeedingFollowup(ctx)
	if err != nil {
		return nil, err
	}
	summary.FollowupNeeded = len(followups)

	proposals, err := d.DetectStaleProposals(ctx)
	if err != nil {
		return nil, err
	}
	summary.ProposalsScanned = len(proposals)
	for _, request := range proposals {
		won, err := d.MarkProposalStale(ctx, request.ID)
		if err != nil {
			summary.RowFailures++
			d.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"request_id": request.ID,
			}).Error("failed to mark proposal stale, skipping row")
			continue
		}
		if won {
			summary.ProposalsFlagged++
		}
	}

	d.logger.WithContext(ctx).WithFields(map[string]any{
		"prospects_flagged": summary.ProspectsFlagged,
		"followup_needed":   summary.FollowupNeeded,
		"proposals_flagged": summary.ProposalsFlagged,
		"row_failures":      summary.RowFailures,
	}).Infof("Stale detection sweep complete")
	return summary, nil
}
