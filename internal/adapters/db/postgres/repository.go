package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"telegram-campaign-dispatch/internal/domain"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Repository implements ports.CampaignStore and ports.RecipientStore on a
// single gorm connection.
type Repository struct {
	db *gorm.DB
}

// New opens a PostgreSQL connection and returns a Repository.
func New(dsn string) (*Repository, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sql db handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Repository{db: db}, nil
}

// NewWithDB wraps an already opened gorm connection. Tests use this with
// an in-memory sqlite database.
func NewWithDB(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// AutoMigrate creates or updates the schema for all domain models.
func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&domain.Recipient{},
		&domain.Booking{},
		&domain.Campaign{},
		&domain.RecipientOutcome{},
	)
}

// Close closes the underlying connection pool.
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ── CampaignStore ─────────────────────────────────────────────────────────────

// Persist inserts the campaign row and all outcome rows in one transaction.
func (r *Repository) Persist(ctx context.Context, campaign domain.Campaign, outcomes []domain.RecipientOutcome) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&campaign).Error; err != nil {
			return fmt.Errorf("insert campaign: %w", err)
		}
		if len(outcomes) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(outcomes, 500).Error; err != nil {
			return fmt.Errorf("insert outcomes: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("persist campaign %s: %w", campaign.ID, err)
	}
	return nil
}

// RecomputeAggregates recounts outcome rows by status and rewrites the
// campaign's counters and derived status.
func (r *Repository) RecomputeAggregates(ctx context.Context, campaignID uuid.UUID) (domain.Campaign, error) {
	var campaign domain.Campaign

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&campaign, "id = ?", campaignID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrCampaignNotFound
			}
			return fmt.Errorf("load campaign: %w", err)
		}

		type statusCount struct {
			Status domain.DeliveryStatus
			Count  int
		}
		var rows []statusCount
		if err := tx.Model(&domain.RecipientOutcome{}).
			Select("status, COUNT(*) AS count").
			Where("campaign_id = ?", campaignID).
			Group("status").
			Scan(&rows).Error; err != nil {
			return fmt.Errorf("count outcomes: %w", err)
		}

		total, success := 0, 0
		for _, row := range rows {
			total += row.Count
			if row.Status == domain.DeliverySuccess {
				success += row.Count
			}
		}

		campaign.TotalCount = total
		campaign.SuccessCount = success
		campaign.FailedCount = total - success
		campaign.Status = domain.DeriveStatus(total, success)

		if err := tx.Model(&domain.Campaign{}).
			Where("id = ?", campaignID).
			Updates(map[string]any{
				"total_count":   campaign.TotalCount,
				"success_count": campaign.SuccessCount,
				"failed_count":  campaign.FailedCount,
				"status":        campaign.Status,
			}).Error; err != nil {
			return fmt.Errorf("update aggregates: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Campaign{}, err
	}
	return campaign, nil
}

// GetCampaign loads one campaign by id.
func (r *Repository) GetCampaign(ctx context.Context, campaignID uuid.UUID) (domain.Campaign, error) {
	var campaign domain.Campaign
	if err := r.db.WithContext(ctx).First(&campaign, "id = ?", campaignID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Campaign{}, domain.ErrCampaignNotFound
		}
		return domain.Campaign{}, fmt.Errorf("get campaign: %w", err)
	}
	return campaign, nil
}

// ListCampaigns returns a page of campaigns, newest first, and the total count.
func (r *Repository) ListCampaigns(ctx context.Context, offset, limit int) ([]domain.Campaign, int, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&domain.Campaign{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count campaigns: %w", err)
	}

	var campaigns []domain.Campaign
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&campaigns).Error; err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	return campaigns, int(total), nil
}

// FailedOutcomes returns every non-success outcome of a campaign in
// recipient order.
func (r *Repository) FailedOutcomes(ctx context.Context, campaignID uuid.UUID) ([]domain.RecipientOutcome, error) {
	var outcomes []domain.RecipientOutcome
	if err := r.db.WithContext(ctx).
		Where("campaign_id = ? AND status <> ?", campaignID, domain.DeliverySuccess).
		Order("recipient_id ASC").
		Find(&outcomes).Error; err != nil {
		return nil, fmt.Errorf("list failed outcomes: %w", err)
	}
	return outcomes, nil
}

// UpdateOutcomes rewrites rows identified by (campaign_id, recipient_id)
// in one transaction. Row count never changes: a missing row is an error,
// not an insert.
func (r *Repository) UpdateOutcomes(ctx context.Context, outcomes []domain.RecipientOutcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, outcome := range outcomes {
			res := tx.Model(&domain.RecipientOutcome{}).
				Where("campaign_id = ? AND recipient_id = ?", outcome.CampaignID, outcome.RecipientID).
				Updates(map[string]any{
					"status":        outcome.Status,
					"error_message": outcome.ErrorMessage,
					"sent_at":       outcome.SentAt,
				})
			if res.Error != nil {
				return fmt.Errorf("update outcome: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("update outcome: no row for campaign %s recipient %d", outcome.CampaignID, outcome.RecipientID)
			}
		}
		return nil
	})
}

// SetCancelled rewrites the campaign's cancelled flag.
func (r *Repository) SetCancelled(ctx context.Context, campaignID uuid.UUID, cancelled bool) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Campaign{}).
		Where("id = ?", campaignID).
		Update("cancelled", cancelled)
	if res.Error != nil {
		return fmt.Errorf("update cancelled flag: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrCampaignNotFound
	}
	return nil
}

// ── RecipientStore ────────────────────────────────────────────────────────────

func (r *Repository) reachable(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&domain.Recipient{}).
		Where("blocked = ? AND unreachable = ?", false, false)
}

// CountReachable counts recipients not excluded at the channel level.
func (r *Repository) CountReachable(ctx context.Context) (int, error) {
	var total int64
	if err := r.reachable(ctx).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("count recipients: %w", err)
	}
	return int(total), nil
}

// ListReachable returns the next page of reachable recipients with id
// greater than afterID, in id order. Keyset paging instead of OFFSET:
// a dispatch run marks recipients blocked while it pages, and OFFSET
// over the shrinking set would shift later pages and skip recipients.
func (r *Repository) ListReachable(ctx context.Context, afterID int64, limit int) ([]domain.Recipient, error) {
	var recipients []domain.Recipient
	if err := r.reachable(ctx).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&recipients).Error; err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	return recipients, nil
}

// ListReachableByIDs returns the reachable subset of the given ids.
func (r *Repository) ListReachableByIDs(ctx context.Context, ids []int64) ([]domain.Recipient, error) {
	var recipients []domain.Recipient
	if err := r.reachable(ctx).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&recipients).Error; err != nil {
		return nil, fmt.Errorf("list recipients by ids: %w", err)
	}
	return recipients, nil
}

// ListSegment materializes the full result of a segment selector. Segment
// predicates cannot all be paginated server-side, so callers slice the
// returned set client-side.
func (r *Repository) ListSegment(ctx context.Context, selector domain.Selector) ([]domain.Recipient, error) {
	q := r.reachable(ctx)

	switch selector.Segment {
	case domain.SegmentRegisteredBefore:
		q = q.Where("registered_at < ?", selector.Date())
	case domain.SegmentRegisteredAfter:
		q = q.Where("registered_at > ?", selector.Date())
	case domain.SegmentNoCompletedBooking:
		q = q.Where(
			"NOT EXISTS (SELECT 1 FROM bookings WHERE bookings.recipient_id = recipients.id AND bookings.status = ?)",
			domain.BookingCompleted,
		)
	default:
		return nil, &domain.SelectorError{Reason: fmt.Sprintf("unknown segment %q", selector.Segment)}
	}

	var recipients []domain.Recipient
	if err := q.Order("id ASC").Find(&recipients).Error; err != nil {
		return nil, fmt.Errorf("list segment %q: %w", selector.Segment, err)
	}
	return recipients, nil
}

// MarkBlocked sets the cross-campaign blocked flag so future resolver
// calls exclude the recipient.
func (r *Repository) MarkBlocked(ctx context.Context, recipientID int64) error {
	if err := r.db.WithContext(ctx).
		Model(&domain.Recipient{}).
		Where("id = ?", recipientID).
		Update("blocked", true).Error; err != nil {
		return fmt.Errorf("mark recipient %d blocked: %w", recipientID, err)
	}
	return nil
}
