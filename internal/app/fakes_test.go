package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"telegram-campaign-dispatch/internal/domain"

	"github.com/google/uuid"
)

// fakeCampaignStore is an in-memory ports.CampaignStore tracking calls.
type fakeCampaignStore struct {
	mu             sync.Mutex
	campaigns      map[uuid.UUID]domain.Campaign
	outcomes       map[uuid.UUID][]domain.RecipientOutcome
	persistCalls   int
	recomputeCalls int
	updateCalls    [][]domain.RecipientOutcome
	persistErr     error
}

func newFakeCampaignStore() *fakeCampaignStore {
	return &fakeCampaignStore{
		campaigns: make(map[uuid.UUID]domain.Campaign),
		outcomes:  make(map[uuid.UUID][]domain.RecipientOutcome),
	}
}

func (f *fakeCampaignStore) Persist(_ context.Context, campaign domain.Campaign, outcomes []domain.RecipientOutcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.persistErr != nil {
		return f.persistErr
	}
	f.persistCalls++
	campaign.UpdatedAt = time.Now().UTC()
	f.campaigns[campaign.ID] = campaign
	f.outcomes[campaign.ID] = append([]domain.RecipientOutcome(nil), outcomes...)
	return nil
}

func (f *fakeCampaignStore) SetCancelled(_ context.Context, campaignID uuid.UUID, cancelled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	campaign, ok := f.campaigns[campaignID]
	if !ok {
		return domain.ErrCampaignNotFound
	}
	campaign.Cancelled = cancelled
	campaign.UpdatedAt = time.Now().UTC()
	f.campaigns[campaignID] = campaign
	return nil
}

func (f *fakeCampaignStore) RecomputeAggregates(_ context.Context, campaignID uuid.UUID) (domain.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recomputeCalls++
	campaign, ok := f.campaigns[campaignID]
	if !ok {
		return domain.Campaign{}, domain.ErrCampaignNotFound
	}
	total, success := 0, 0
	for _, o := range f.outcomes[campaignID] {
		total++
		if o.Status == domain.DeliverySuccess {
			success++
		}
	}
	campaign.TotalCount = total
	campaign.SuccessCount = success
	campaign.FailedCount = total - success
	campaign.Status = domain.DeriveStatus(total, success)
	campaign.UpdatedAt = time.Now().UTC()
	f.campaigns[campaignID] = campaign
	return campaign, nil
}

func (f *fakeCampaignStore) GetCampaign(_ context.Context, campaignID uuid.UUID) (domain.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	campaign, ok := f.campaigns[campaignID]
	if !ok {
		return domain.Campaign{}, domain.ErrCampaignNotFound
	}
	return campaign, nil
}

func (f *fakeCampaignStore) ListCampaigns(_ context.Context, offset, limit int) ([]domain.Campaign, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := make([]domain.Campaign, 0, len(f.campaigns))
	for _, c := range f.campaigns {
		all = append(all, c)
	}
	return all, len(all), nil
}

func (f *fakeCampaignStore) FailedOutcomes(_ context.Context, campaignID uuid.UUID) ([]domain.RecipientOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var failed []domain.RecipientOutcome
	for _, o := range f.outcomes[campaignID] {
		if o.Status.Failed() {
			failed = append(failed, o)
		}
	}
	return failed, nil
}

func (f *fakeCampaignStore) UpdateOutcomes(_ context.Context, outcomes []domain.RecipientOutcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls = append(f.updateCalls, append([]domain.RecipientOutcome(nil), outcomes...))
	for _, update := range outcomes {
		found := false
		rows := f.outcomes[update.CampaignID]
		for i, row := range rows {
			if row.RecipientID == update.RecipientID {
				rows[i].Status = update.Status
				rows[i].ErrorMessage = update.ErrorMessage
				rows[i].SentAt = update.SentAt
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("no row for campaign %s recipient %d", update.CampaignID, update.RecipientID)
		}
	}
	return nil
}

func (f *fakeCampaignStore) rowCount(campaignID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.outcomes[campaignID])
}

func (f *fakeCampaignStore) persistedOutcomes(campaignID uuid.UUID) []domain.RecipientOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.RecipientOutcome(nil), f.outcomes[campaignID]...)
}

// fakeRecipientStore serves a live reachable set with the real store's
// semantics: MarkBlocked removes the recipient from every later listing.
type fakeRecipientStore struct {
	mu           sync.Mutex
	recipients   []domain.Recipient
	segmentCalls int
	blocked      []int64
}

func (f *fakeRecipientStore) CountReachable(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.recipients), nil
}

func (f *fakeRecipientStore) ListReachable(_ context.Context, afterID int64, limit int) ([]domain.Recipient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var batch []domain.Recipient
	for _, r := range f.recipients {
		if r.ID <= afterID {
			continue
		}
		batch = append(batch, r)
		if len(batch) == limit {
			break
		}
	}
	return batch, nil
}

func (f *fakeRecipientStore) ListReachableByIDs(_ context.Context, ids []int64) ([]domain.Recipient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var matched []domain.Recipient
	for _, r := range f.recipients {
		if want[r.ID] {
			matched = append(matched, r)
		}
	}
	return matched, nil
}

func (f *fakeRecipientStore) ListSegment(_ context.Context, _ domain.Selector) ([]domain.Recipient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.segmentCalls++
	return f.recipients, nil
}

func (f *fakeRecipientStore) MarkBlocked(_ context.Context, recipientID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocked = append(f.blocked, recipientID)

	var kept []domain.Recipient
	for _, r := range f.recipients {
		if r.ID != recipientID {
			kept = append(kept, r)
		}
	}
	f.recipients = kept
	return nil
}

// fakeGateway routes sends through a test-provided function.
type fakeGateway struct {
	mu     sync.Mutex
	sendFn func(chatID int64) (domain.DeliveryStatus, error)
	calls  []gatewayCall
}

type gatewayCall struct {
	chatID      int64
	message     string
	attachments []string
}

func (f *fakeGateway) Send(_ context.Context, chatID int64, message string, attachmentRefs []string) (domain.DeliveryStatus, error) {
	f.mu.Lock()
	f.calls = append(f.calls, gatewayCall{chatID: chatID, message: message, attachments: attachmentRefs})
	f.mu.Unlock()
	if f.sendFn != nil {
		return f.sendFn(chatID)
	}
	return domain.DeliverySuccess, nil
}

func (f *fakeGateway) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeJobPublisher records published jobs.
type fakeJobPublisher struct {
	jobs       []domain.DispatchJob
	publishErr error
}

func (f *fakeJobPublisher) Publish(_ context.Context, job domain.DispatchJob) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func recipientsFixture(n int) []domain.Recipient {
	recipients := make([]domain.Recipient, 0, n)
	for i := 1; i <= n; i++ {
		recipients = append(recipients, domain.Recipient{
			ID:        int64(i),
			ChatID:    int64(1000 + i),
			FirstName: fmt.Sprintf("user-%d", i),
		})
	}
	return recipients
}
