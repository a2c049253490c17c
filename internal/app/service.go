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
)

// CampaignService is the operator-facing application service: it accepts
// campaign intents, hands them to the dispatch queue, and answers reads
// while and after the worker runs them.
type CampaignService struct {
	campaigns ports.CampaignStore
	publisher ports.JobPublisher
	progress  ports.ProgressStore
	log       *slog.Logger
}

// NewCampaignService wires the service with its dependencies.
func NewCampaignService(
	campaigns ports.CampaignStore,
	publisher ports.JobPublisher,
	progress ports.ProgressStore,
	log *slog.Logger,
) *CampaignService {
	return &CampaignService{
		campaigns: campaigns,
		publisher: publisher,
		progress:  progress,
		log:       log,
	}
}

// CreateCampaignRequest is the input for launching a new campaign.
type CreateCampaignRequest struct {
	Message        string
	AttachmentRefs []string
	Selector       domain.Selector
}

// CreateCampaign validates the intent and enqueues a launch job. Selector
// problems surface here, before any dispatch work begins; the campaign
// row itself only becomes durable when the run completes.
func (s *CampaignService) CreateCampaign(ctx context.Context, req CreateCampaignRequest) (domain.Campaign, error) {
	if err := req.Selector.Validate(); err != nil {
		return domain.Campaign{}, err
	}

	campaign := domain.NewCampaign(req.Message, req.AttachmentRefs, req.Selector)

	if err := s.publisher.Publish(ctx, domain.NewLaunchJob(campaign)); err != nil {
		return domain.Campaign{}, fmt.Errorf("enqueue launch job: %w", err)
	}

	// Seed a pending snapshot so progress polls resolve immediately,
	// before a worker picks the job up.
	s.progress.Publish(ctx, ports.ProgressSnapshot{
		CampaignID: campaign.ID,
		State:      ports.RunPending,
		UpdatedAt:  time.Now().UTC(),
	})

	s.log.Info("campaign enqueued",
		"campaign_id", campaign.ID,
		"selector", campaign.Selector.Kind,
		"attachments", len(campaign.AttachmentRefs),
	)
	return campaign, nil
}

// Resend enqueues a retry of the failed subset of a persisted campaign.
// Returns domain.ErrCampaignNotFound before enqueueing anything if the id
// is unknown.
func (s *CampaignService) Resend(ctx context.Context, campaignID uuid.UUID) error {
	if _, err := s.campaigns.GetCampaign(ctx, campaignID); err != nil {
		return err
	}

	if err := s.publisher.Publish(ctx, domain.NewResendJob(campaignID)); err != nil {
		return fmt.Errorf("enqueue resend job: %w", err)
	}

	s.log.Info("campaign resend enqueued", "campaign_id", campaignID)
	return nil
}

// Cancel flags a running campaign for cooperative cancellation. Outcomes
// collected so far are still persisted by the worker.
func (s *CampaignService) Cancel(ctx context.Context, campaignID uuid.UUID) error {
	return s.progress.RequestCancel(ctx, campaignID)
}

// Progress returns the live snapshot while a run is in flight and falls
// back to the persisted aggregates once the run is durable.
func (s *CampaignService) Progress(ctx context.Context, campaignID uuid.UUID) (ports.ProgressSnapshot, error) {
	snap, ok, err := s.progress.Snapshot(ctx, campaignID)
	if err != nil {
		s.log.Error("progress snapshot lookup failed", "campaign_id", campaignID, "err", err)
	}
	if ok {
		return snap, nil
	}

	campaign, err := s.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		if errors.Is(err, domain.ErrCampaignNotFound) {
			return ports.ProgressSnapshot{}, domain.ErrCampaignNotFound
		}
		return ports.ProgressSnapshot{}, err
	}

	state := ports.RunCompleted
	if campaign.Cancelled {
		state = ports.RunCancelled
	}
	return ports.ProgressSnapshot{
		CampaignID: campaign.ID,
		Current:    campaign.TotalCount,
		Total:      campaign.TotalCount,
		Success:    campaign.SuccessCount,
		Failed:     campaign.FailedCount,
		State:      state,
		UpdatedAt:  campaign.UpdatedAt,
	}, nil
}

// GetCampaign returns one persisted campaign with its aggregates.
func (s *CampaignService) GetCampaign(ctx context.Context, campaignID uuid.UUID) (domain.Campaign, error) {
	return s.campaigns.GetCampaign(ctx, campaignID)
}

// ListCampaigns returns one page of persisted campaigns, newest first.
func (s *CampaignService) ListCampaigns(ctx context.Context, page, pageSize int) ([]domain.Campaign, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return s.campaigns.ListCampaigns(ctx, (page-1)*pageSize, pageSize)
}
