package domain

import "github.com/google/uuid"

// JobKind distinguishes the two kinds of work a dispatch worker performs.
type JobKind string

const (
	JobLaunch JobKind = "launch" // initial run over a freshly resolved recipient set
	JobResend JobKind = "resend" // retry of the failed subset of a persisted campaign
)

// DispatchJob is the durable queue payload handed from the admin API to a
// dispatch worker. A launch job carries the full campaign intent because
// the campaign row does not exist until the run completes; a resend job
// only needs the persisted campaign id.
type DispatchJob struct {
	Kind       JobKind   `json:"kind"`
	CampaignID uuid.UUID `json:"campaign_id"`
	Campaign   Campaign  `json:"campaign,omitempty"`
}

// NewLaunchJob wraps a campaign intent for publication.
func NewLaunchJob(c Campaign) DispatchJob {
	return DispatchJob{Kind: JobLaunch, CampaignID: c.ID, Campaign: c}
}

// NewResendJob targets an existing, already persisted campaign.
func NewResendJob(id uuid.UUID) DispatchJob {
	return DispatchJob{Kind: JobResend, CampaignID: id}
}
