package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"telegram-campaign-dispatch/internal/domain"
	"telegram-campaign-dispatch/internal/ports"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	defaultBatchSize    = 100
	defaultSendInterval = 50 * time.Millisecond
)

// Executor runs campaign dispatch jobs: it resolves recipients in bounded
// batches, delivers to each one sequentially with pacing, classifies every
// outcome, and hands the collected results to the campaign store in a
// single durable write.
type Executor struct {
	campaigns  ports.CampaignStore
	recipients ports.RecipientStore
	gateway    ports.Gateway
	progress   ports.ProgressStore
	log        *slog.Logger

	batchSize    int
	sendInterval time.Duration
}

// NewExecutor wires the executor with its dependencies. Non-positive
// batchSize or sendInterval fall back to the defaults (100, 50ms).
func NewExecutor(
	campaigns ports.CampaignStore,
	recipients ports.RecipientStore,
	gateway ports.Gateway,
	progress ports.ProgressStore,
	log *slog.Logger,
	batchSize int,
	sendInterval time.Duration,
) *Executor {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if sendInterval <= 0 {
		sendInterval = defaultSendInterval
	}
	return &Executor{
		campaigns:    campaigns,
		recipients:   recipients,
		gateway:      gateway,
		progress:     progress,
		log:          log,
		batchSize:    batchSize,
		sendInterval: sendInterval,
	}
}

// Handle routes one queue job. Jobs are delivered at least once: a launch
// redelivered after a crash between the durable write and the queue ack
// only recomputes aggregates instead of dispatching again.
func (e *Executor) Handle(ctx context.Context, job domain.DispatchJob) error {
	switch job.Kind {
	case domain.JobLaunch:
		_, err := e.campaigns.GetCampaign(ctx, job.CampaignID)
		if err == nil {
			e.log.Info("campaign already persisted, skipping redelivered launch", "campaign_id", job.CampaignID)
			_, err = e.campaigns.RecomputeAggregates(ctx, job.CampaignID)
			return err
		}
		if !errors.Is(err, domain.ErrCampaignNotFound) {
			return err
		}
		return e.Run(ctx, job.Campaign)
	case domain.JobResend:
		return e.Resend(ctx, job.CampaignID)
	default:
		e.log.Error("unknown job kind, dropping", "kind", job.Kind, "campaign_id", job.CampaignID)
		return nil
	}
}

// Run executes the initial dispatch of a campaign intent.
func (e *Executor) Run(ctx context.Context, campaign domain.Campaign) error {
	log := e.log.With("campaign_id", campaign.ID)
	resolver := NewResolver(e.recipients)

	total, err := resolver.Count(ctx, campaign.Selector)
	if err != nil {
		var selErr *domain.SelectorError
		if errors.As(err, &selErr) || errors.Is(err, domain.ErrNoRecipients) {
			// Nothing dispatchable. Record the campaign durably anyway so
			// the operator sees a terminal status instead of a vanished id.
			log.Warn("campaign run has no dispatchable recipients", "err", err)
			return e.finalize(ctx, log, campaign, nil, newRunProgress(e.progress, campaign.ID, 0), ports.RunCompleted)
		}
		e.progress.Publish(ctx, ports.ProgressSnapshot{CampaignID: campaign.ID, State: ports.RunFailed, UpdatedAt: time.Now().UTC()})
		return fmt.Errorf("resolve recipients: %w", err)
	}

	prog := newRunProgress(e.progress, campaign.ID, total)
	prog.publish(ctx, ports.RunRunning)
	log.Info("campaign run started", "total", total, "attachments", len(campaign.AttachmentRefs))

	limiter := rate.NewLimiter(rate.Every(e.sendInterval), 1)
	outcomes := make([]domain.RecipientOutcome, 0, total)
	state := ports.RunCompleted

loop:
	for {
		batch, err := resolver.Next(ctx, campaign.Selector, e.batchSize)
		if err != nil {
			// No outcomes are durable yet; leave the job on the queue so
			// the whole run is replayed.
			e.progress.Publish(ctx, ports.ProgressSnapshot{CampaignID: campaign.ID, State: ports.RunFailed, UpdatedAt: time.Now().UTC()})
			return fmt.Errorf("fetch recipients: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		for _, rcpt := range batch {
			if e.cancelRequested(ctx, campaign.ID) {
				state = ports.RunCancelled
				break loop
			}

			status, errMsg, attempted := e.dispatchOne(ctx, limiter, campaign, rcpt.ChatID)
			if !attempted {
				state = ports.RunCancelled
				break loop
			}
			e.applySideEffects(ctx, log, status, rcpt.ID)

			outcomes = append(outcomes, domain.NewOutcome(campaign.ID, rcpt, status, errMsg))
			prog.record(ctx, status)
		}
	}

	return e.finalize(ctx, log, campaign, outcomes, prog, state)
}

// dispatchOne paces, sends, and classifies a single delivery. It reports
// attempted=false when the run context was cancelled before the send, in
// which case no outcome must be recorded for the recipient.
func (e *Executor) dispatchOne(ctx context.Context, limiter *rate.Limiter, campaign domain.Campaign, chatID int64) (domain.DeliveryStatus, string, bool) {
	if err := limiter.Wait(ctx); err != nil {
		return "", "", false
	}

	status, err := e.sendSafely(ctx, campaign, chatID)

	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	} else if status != domain.DeliverySuccess {
		errMsg = "unclassified gateway failure"
	}
	return status, errMsg, true
}

// sendSafely shields the dispatch loop from the gateway: panics and
// out-of-range statuses come back as transient failures so one recipient
// can never abort the run for the others.
func (e *Executor) sendSafely(ctx context.Context, campaign domain.Campaign, chatID int64) (status domain.DeliveryStatus, err error) {
	defer func() {
		if r := recover(); r != nil {
			status = domain.DeliveryTransient
			err = fmt.Errorf("gateway panic: %v", r)
		}
	}()

	status, err = e.gateway.Send(ctx, chatID, campaign.Message, campaign.AttachmentRefs)
	switch status {
	case domain.DeliverySuccess, domain.DeliveryBlocked, domain.DeliveryUnreachable, domain.DeliveryTransient:
	default:
		status = domain.DeliveryTransient
	}
	return status, err
}

// applySideEffects persists the cross-campaign blocked flag when a
// recipient blocked the channel, so future resolver calls exclude them.
func (e *Executor) applySideEffects(ctx context.Context, log *slog.Logger, status domain.DeliveryStatus, recipientID int64) {
	if status != domain.DeliveryBlocked {
		return
	}
	if err := e.recipients.MarkBlocked(context.WithoutCancel(ctx), recipientID); err != nil {
		log.Error("mark recipient blocked failed", "recipient_id", recipientID, "err", err)
	}
}

// finalize makes the run durable: one transaction for the campaign row
// plus every outcome row, then an aggregate recompute from those rows.
// Cancellation never drops collected outcomes, so the write runs on a
// context that survives the job's cancellation.
func (e *Executor) finalize(
	ctx context.Context,
	log *slog.Logger,
	campaign domain.Campaign,
	outcomes []domain.RecipientOutcome,
	prog *runProgress,
	state ports.RunState,
) error {
	persistCtx := context.WithoutCancel(ctx)
	campaign.Cancelled = state == ports.RunCancelled

	if err := e.campaigns.Persist(persistCtx, campaign, outcomes); err != nil {
		prog.publish(ctx, ports.RunFailed)
		return fmt.Errorf("persist outcomes: %w", err)
	}

	updated, err := e.campaigns.RecomputeAggregates(persistCtx, campaign.ID)
	if err != nil {
		prog.publish(ctx, ports.RunFailed)
		return fmt.Errorf("recompute aggregates: %w", err)
	}

	// The run is terminal and durable: a stale cancel flag would
	// otherwise suppress a later resend on its first recipient.
	if err := e.progress.ClearCancel(persistCtx, campaign.ID); err != nil {
		log.Error("clear cancel flag failed", "err", err)
	}

	prog.publish(ctx, state)
	log.Info("campaign run finished",
		"state", state,
		"status", updated.Status,
		"total", updated.TotalCount,
		"success", updated.SuccessCount,
		"failed", updated.FailedCount,
	)
	return nil
}

// cancelRequested is the cooperative cancellation check, evaluated once
// per recipient.
func (e *Executor) cancelRequested(ctx context.Context, campaignID uuid.UUID) bool {
	return ctx.Err() != nil || e.progress.CancelRequested(ctx, campaignID)
}

// runProgress accumulates live counters and publishes them after every
// recipient. Publishing is fire-and-forget; the store drops failures.
type runProgress struct {
	store ports.ProgressStore
	snap  ports.ProgressSnapshot
}

func newRunProgress(store ports.ProgressStore, campaignID uuid.UUID, total int) *runProgress {
	return &runProgress{
		store: store,
		snap: ports.ProgressSnapshot{
			CampaignID: campaignID,
			Total:      total,
			State:      ports.RunPending,
		},
	}
}

func (p *runProgress) record(ctx context.Context, status domain.DeliveryStatus) {
	p.snap.Current++
	if status == domain.DeliverySuccess {
		p.snap.Success++
	} else {
		p.snap.Failed++
	}
	p.publish(ctx, ports.RunRunning)
}

func (p *runProgress) publish(ctx context.Context, state ports.RunState) {
	p.snap.State = state
	p.snap.UpdatedAt = time.Now().UTC()
	p.store.Publish(ctx, p.snap)
}
