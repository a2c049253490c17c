package ports

import (
	"context"

	"telegram-campaign-dispatch/internal/domain"

	"github.com/google/uuid"
)

// CampaignStore is the durable record of campaigns and their per-recipient
// outcomes.
type CampaignStore interface {
	// Persist writes the campaign row and all of its outcome rows in a
	// single transaction, so a crash mid-send never leaves a campaign
	// with missing outcomes.
	Persist(ctx context.Context, campaign domain.Campaign, outcomes []domain.RecipientOutcome) error

	// RecomputeAggregates recounts outcome rows by status and rewrites
	// the campaign's counters and status. Counts are always derived from
	// rows, never accepted from callers.
	RecomputeAggregates(ctx context.Context, campaignID uuid.UUID) (domain.Campaign, error)

	// GetCampaign returns domain.ErrCampaignNotFound for unknown ids.
	GetCampaign(ctx context.Context, campaignID uuid.UUID) (domain.Campaign, error)

	// ListCampaigns returns a page of campaigns (newest first) plus the
	// total count.
	ListCampaigns(ctx context.Context, offset, limit int) ([]domain.Campaign, int, error)

	// FailedOutcomes returns every outcome of the campaign whose status
	// is not success, in recipient order.
	FailedOutcomes(ctx context.Context, campaignID uuid.UUID) ([]domain.RecipientOutcome, error)

	// UpdateOutcomes rewrites each row identified by (campaign_id,
	// recipient_id) in place, all inside one transaction. It never
	// inserts.
	UpdateOutcomes(ctx context.Context, outcomes []domain.RecipientOutcome) error

	// SetCancelled rewrites the campaign's cancelled flag. Returns
	// domain.ErrCampaignNotFound for unknown ids.
	SetCancelled(ctx context.Context, campaignID uuid.UUID, cancelled bool) error
}

// RecipientStore provides the recipient queries the resolver is built on.
// Every listing excludes recipients flagged blocked or unreachable.
type RecipientStore interface {
	CountReachable(ctx context.Context) (int, error)

	// ListReachable returns up to limit reachable recipients with id
	// greater than afterID, in id order. Keyset paging keeps pages
	// stable when rows leave the reachable set between calls.
	ListReachable(ctx context.Context, afterID int64, limit int) ([]domain.Recipient, error)

	// ListReachableByIDs returns the reachable subset of the given ids,
	// in id order. Unknown ids are silently skipped.
	ListReachableByIDs(ctx context.Context, ids []int64) ([]domain.Recipient, error)

	// ListSegment materializes a full segment result in one query.
	ListSegment(ctx context.Context, selector domain.Selector) ([]domain.Recipient, error)

	// MarkBlocked sets the cross-campaign blocked flag on a recipient.
	MarkBlocked(ctx context.Context, recipientID int64) error
}
