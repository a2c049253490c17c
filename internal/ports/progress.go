package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RunState is the live state of a campaign run as seen by pollers.
type RunState string

const (
	RunPending   RunState = "pending"
	RunRunning   RunState = "running"
	RunCompleted RunState = "completed"
	RunCancelled RunState = "cancelled"
	RunFailed    RunState = "failed" // run aborted before its outcomes became durable
)

// ProgressSnapshot is the unit published after every dispatched recipient.
type ProgressSnapshot struct {
	CampaignID uuid.UUID `json:"campaign_id"`
	Current    int       `json:"current"`
	Total      int       `json:"total"`
	Success    int       `json:"success"`
	Failed     int       `json:"failed"`
	State      RunState  `json:"state"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ProgressStore exposes live run counters to external pollers and carries
// the cooperative cancellation flag between the admin API and the worker.
type ProgressStore interface {
	// Publish is fire-and-forget: it must never block the dispatch loop
	// and failures are dropped, not returned.
	Publish(ctx context.Context, snap ProgressSnapshot)

	// Snapshot returns the latest published snapshot, if any.
	Snapshot(ctx context.Context, campaignID uuid.UUID) (ProgressSnapshot, bool, error)

	// RequestCancel flags the run for cooperative cancellation.
	RequestCancel(ctx context.Context, campaignID uuid.UUID) error

	// CancelRequested is checked by the executor once per recipient.
	// Errors are treated as "not cancelled".
	CancelRequested(ctx context.Context, campaignID uuid.UUID) bool

	// ClearCancel removes the cancellation flag once a run reaches a
	// terminal state, so a cancelled campaign stays eligible for a later
	// resend.
	ClearCancel(ctx context.Context, campaignID uuid.UUID) error
}
