package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// CampaignStatus is the terminal result of a campaign run, derived from
// the per-recipient outcome rows and never set directly by callers.
type CampaignStatus string

const (
	CampaignSuccess CampaignStatus = "success" // every recipient received the message
	CampaignPartial CampaignStatus = "partial" // some deliveries failed
	CampaignFailed  CampaignStatus = "failed"  // no delivery succeeded
)

// DeliveryStatus classifies the outcome of a single gateway send. It is a
// closed set: the dispatch loop never sees raw gateway errors, only these.
type DeliveryStatus string

const (
	DeliverySuccess     DeliveryStatus = "success"
	DeliveryBlocked     DeliveryStatus = "blocked"           // recipient blocked the bot; terminal, excluded from future campaigns
	DeliveryUnreachable DeliveryStatus = "unreachable"       // chat gone or account deactivated; terminal
	DeliveryTransient   DeliveryStatus = "transient_failure" // anything else; eligible for resend
)

// Failed reports whether the status makes the outcome eligible for resend
// bookkeeping (i.e. anything but a successful delivery).
func (s DeliveryStatus) Failed() bool {
	return s != DeliverySuccess
}

// Campaign is one message-send job over a resolved recipient set.
// The row is inserted by the outcome store when a run completes, in the
// same transaction as its outcome rows.
type Campaign struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Message        string         `gorm:"not null" json:"message"`
	AttachmentRefs []string       `gorm:"serializer:json" json:"attachment_refs"`
	Selector       Selector       `gorm:"serializer:json" json:"selector"`
	TotalCount     int            `json:"total_count"`
	SuccessCount   int            `json:"success_count"`
	FailedCount    int            `json:"failed_count"`
	Status         CampaignStatus `json:"status"`
	// Cancelled records that the latest run over this campaign ended by
	// operator cancellation; a later completed resend clears it.
	Cancelled bool      `gorm:"not null;default:false" json:"cancelled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCampaign creates a campaign intent with a generated ID. Counters and
// status stay zero until the first run persists and recomputes them.
func NewCampaign(message string, attachmentRefs []string, selector Selector) Campaign {
	return Campaign{
		ID:             uuid.New(),
		Message:        message,
		AttachmentRefs: attachmentRefs,
		Selector:       selector,
		CreatedAt:      time.Now().UTC(),
	}
}

// DeriveStatus computes the campaign status from aggregate counts.
func DeriveStatus(total, success int) CampaignStatus {
	switch {
	case success == 0:
		return CampaignFailed
	case success == total:
		return CampaignSuccess
	default:
		return CampaignPartial
	}
}

// RecipientOutcome is the durable per-recipient result of one campaign.
// At most one row exists per (campaign_id, recipient_id); a resend updates
// the row in place instead of inserting a duplicate.
type RecipientOutcome struct {
	ID           int64          `gorm:"primaryKey" json:"id"`
	CampaignID   uuid.UUID      `gorm:"type:uuid;uniqueIndex:uq_outcome_campaign_recipient;not null" json:"campaign_id"`
	RecipientID  int64          `gorm:"uniqueIndex:uq_outcome_campaign_recipient;not null" json:"recipient_id"`
	ChatID       int64          `gorm:"not null" json:"chat_id"`
	DisplayName  string         `json:"display_name"`
	Status       DeliveryStatus `gorm:"not null" json:"status"`
	ErrorMessage string         `json:"error_message,omitempty"`
	SentAt       time.Time      `json:"sent_at"`
}

// NewOutcome records the result of one delivery attempt for a recipient.
func NewOutcome(campaignID uuid.UUID, r Recipient, status DeliveryStatus, errMessage string) RecipientOutcome {
	return RecipientOutcome{
		CampaignID:   campaignID,
		RecipientID:  r.ID,
		ChatID:       r.ChatID,
		DisplayName:  r.DisplayName(),
		Status:       status,
		ErrorMessage: errMessage,
		SentAt:       time.Now().UTC(),
	}
}

// Domain errors
var (
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrNoRecipients     = errors.New("selector matched no recipients")
)
