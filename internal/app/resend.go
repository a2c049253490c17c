package app

import (
	"context"
	"fmt"
	"time"

	"telegram-campaign-dispatch/internal/domain"
	"telegram-campaign-dispatch/internal/ports"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Resend retries exactly the previously-failed subset of a persisted
// campaign. Each retried recipient goes through the same pacing and
// classification path as the initial run, but the existing outcome rows
// are updated in place: the row count for a campaign never changes, no
// matter how many resends happen.
//
// Returns domain.ErrCampaignNotFound for unknown ids. A campaign with no
// failed outcomes is a no-op that still recomputes aggregates.
func (e *Executor) Resend(ctx context.Context, campaignID uuid.UUID) error {
	log := e.log.With("campaign_id", campaignID)

	campaign, err := e.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return err
	}

	failed, err := e.campaigns.FailedOutcomes(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("load failed outcomes: %w", err)
	}

	prog := newRunProgress(e.progress, campaignID, len(failed))
	prog.publish(ctx, ports.RunRunning)
	log.Info("campaign resend started", "retrying", len(failed))

	limiter := rate.NewLimiter(rate.Every(e.sendInterval), 1)
	updates := make([]domain.RecipientOutcome, 0, len(failed))
	state := ports.RunCompleted

	for _, prev := range failed {
		if e.cancelRequested(ctx, campaignID) {
			state = ports.RunCancelled
			break
		}

		status, errMsg, attempted := e.dispatchOne(ctx, limiter, campaign, prev.ChatID)
		if !attempted {
			state = ports.RunCancelled
			break
		}
		e.applySideEffects(ctx, log, status, prev.RecipientID)

		prev.Status = status
		prev.ErrorMessage = errMsg
		prev.SentAt = time.Now().UTC()
		updates = append(updates, prev)
		prog.record(ctx, status)
	}

	persistCtx := context.WithoutCancel(ctx)

	if err := e.campaigns.UpdateOutcomes(persistCtx, updates); err != nil {
		prog.publish(ctx, ports.RunFailed)
		return fmt.Errorf("update outcomes: %w", err)
	}

	updated, err := e.campaigns.RecomputeAggregates(persistCtx, campaignID)
	if err != nil {
		prog.publish(ctx, ports.RunFailed)
		return fmt.Errorf("recompute aggregates: %w", err)
	}

	// A completed resend supersedes an earlier cancellation; a cancelled
	// resend marks the campaign cancelled again.
	if err := e.campaigns.SetCancelled(persistCtx, campaignID, state == ports.RunCancelled); err != nil {
		log.Error("update cancelled flag failed", "err", err)
	}
	if err := e.progress.ClearCancel(persistCtx, campaignID); err != nil {
		log.Error("clear cancel flag failed", "err", err)
	}

	prog.publish(ctx, state)
	log.Info("campaign resend finished",
		"state", state,
		"status", updated.Status,
		"retried", len(updates),
		"success", updated.SuccessCount,
		"failed", updated.FailedCount,
	)
	return nil
}
