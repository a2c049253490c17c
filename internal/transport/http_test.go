package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"telegram-campaign-dispatch/internal/adapters/progress/memory"
	"telegram-campaign-dispatch/internal/app"
	"telegram-campaign-dispatch/internal/domain"
	"telegram-campaign-dispatch/internal/ports"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubCampaignStore is the minimal ports.CampaignStore the HTTP tests need.
type stubCampaignStore struct {
	campaigns map[uuid.UUID]domain.Campaign
}

func (s *stubCampaignStore) Persist(context.Context, domain.Campaign, []domain.RecipientOutcome) error {
	return nil
}

func (s *stubCampaignStore) RecomputeAggregates(_ context.Context, id uuid.UUID) (domain.Campaign, error) {
	return s.GetCampaign(context.Background(), id)
}

func (s *stubCampaignStore) GetCampaign(_ context.Context, id uuid.UUID) (domain.Campaign, error) {
	campaign, ok := s.campaigns[id]
	if !ok {
		return domain.Campaign{}, domain.ErrCampaignNotFound
	}
	return campaign, nil
}

func (s *stubCampaignStore) ListCampaigns(context.Context, int, int) ([]domain.Campaign, int, error) {
	all := make([]domain.Campaign, 0, len(s.campaigns))
	for _, c := range s.campaigns {
		all = append(all, c)
	}
	return all, len(all), nil
}

func (s *stubCampaignStore) FailedOutcomes(context.Context, uuid.UUID) ([]domain.RecipientOutcome, error) {
	return nil, nil
}

func (s *stubCampaignStore) UpdateOutcomes(context.Context, []domain.RecipientOutcome) error {
	return nil
}

func (s *stubCampaignStore) SetCancelled(_ context.Context, id uuid.UUID, cancelled bool) error {
	campaign, ok := s.campaigns[id]
	if !ok {
		return domain.ErrCampaignNotFound
	}
	campaign.Cancelled = cancelled
	s.campaigns[id] = campaign
	return nil
}

type stubPublisher struct {
	jobs []domain.DispatchJob
}

func (p *stubPublisher) Publish(_ context.Context, job domain.DispatchJob) error {
	p.jobs = append(p.jobs, job)
	return nil
}

type testEnv struct {
	app       *fiber.App
	store     *stubCampaignStore
	publisher *stubPublisher
	progress  *memory.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := &stubCampaignStore{campaigns: make(map[uuid.UUID]domain.Campaign)}
	publisher := &stubPublisher{}
	progress := memory.New()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc := app.NewCampaignService(store, publisher, progress, log)

	fiberApp := fiber.New()
	NewHandler(svc, log).Register(fiberApp.Group("/api"))

	return &testEnv{app: fiberApp, store: store, publisher: publisher, progress: progress}
}

func TestCreateCampaignAccepted(t *testing.T) {
	env := newTestEnv(t)

	body, _ := json.Marshal(fiber.Map{
		"message":         "spring promo",
		"attachment_refs": []string{"file-1", "file-2"},
		"recipient_selector": fiber.Map{
			"kind": "all",
		},
	})
	req := httptest.NewRequest("POST", "/api/campaigns", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	var out struct {
		CampaignID string `json:"campaign_id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	id, err := uuid.Parse(out.CampaignID)
	require.NoError(t, err)

	require.Len(t, env.publisher.jobs, 1)
	assert.Equal(t, domain.JobLaunch, env.publisher.jobs[0].Kind)
	assert.Equal(t, id, env.publisher.jobs[0].CampaignID)
}

func TestCreateCampaignValidation(t *testing.T) {
	cases := []struct {
		name string
		body fiber.Map
	}{
		{"missing message", fiber.Map{
			"recipient_selector": fiber.Map{"kind": "all"},
		}},
		{"unknown selector kind", fiber.Map{
			"message":            "hi",
			"recipient_selector": fiber.Map{"kind": "everyone"},
		}},
		{"too many attachments", fiber.Map{
			"message": "hi",
			"attachment_refs": []string{
				"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11",
			},
			"recipient_selector": fiber.Map{"kind": "all"},
		}},
		{"ids selector without ids", fiber.Map{
			"message":            "hi",
			"recipient_selector": fiber.Map{"kind": "ids"},
		}},
		{"segment without date", fiber.Map{
			"message": "hi",
			"recipient_selector": fiber.Map{
				"kind":    "segment",
				"segment": "registered_before",
			},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)

			body, _ := json.Marshal(tc.body)
			req := httptest.NewRequest("POST", "/api/campaigns", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")

			resp, err := env.app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			assert.Empty(t, env.publisher.jobs)
		})
	}
}

func TestGetCampaign(t *testing.T) {
	env := newTestEnv(t)
	campaign := domain.NewCampaign("hello", nil, domain.Selector{Kind: domain.SelectAll})
	env.store.campaigns[campaign.ID] = campaign

	resp, err := env.app.Test(httptest.NewRequest("GET", "/api/campaigns/"+campaign.ID.String(), nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = env.app.Test(httptest.NewRequest("GET", "/api/campaigns/"+uuid.NewString(), nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, err = env.app.Test(httptest.NewRequest("GET", "/api/campaigns/not-a-uuid", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestProgressEndpoint(t *testing.T) {
	env := newTestEnv(t)
	campaignID := uuid.New()
	env.progress.Publish(context.Background(), ports.ProgressSnapshot{
		CampaignID: campaignID,
		Current:    40,
		Total:      100,
		Success:    38,
		Failed:     2,
		State:      ports.RunRunning,
	})

	resp, err := env.app.Test(httptest.NewRequest("GET", "/api/campaigns/"+campaignID.String()+"/progress", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var out struct {
		Current int    `json:"current"`
		Total   int    `json:"total"`
		Success int    `json:"success"`
		Failed  int    `json:"failed"`
		Status  string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 40, out.Current)
	assert.Equal(t, 100, out.Total)
	assert.Equal(t, 38, out.Success)
	assert.Equal(t, 2, out.Failed)
	assert.Equal(t, string(ports.RunRunning), out.Status)
}

func TestProgressUnknownCampaign(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.app.Test(httptest.NewRequest("GET", "/api/campaigns/"+uuid.NewString()+"/progress", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestResendEndpoint(t *testing.T) {
	env := newTestEnv(t)
	campaign := domain.NewCampaign("hello", nil, domain.Selector{Kind: domain.SelectAll})
	env.store.campaigns[campaign.ID] = campaign

	resp, err := env.app.Test(httptest.NewRequest("POST", "/api/campaigns/"+campaign.ID.String()+"/resend", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	require.Len(t, env.publisher.jobs, 1)
	assert.Equal(t, domain.JobResend, env.publisher.jobs[0].Kind)

	resp, err = env.app.Test(httptest.NewRequest("POST", "/api/campaigns/"+uuid.NewString()+"/resend", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestCancelEndpoint(t *testing.T) {
	env := newTestEnv(t)
	campaignID := uuid.New()

	resp, err := env.app.Test(httptest.NewRequest("POST", "/api/campaigns/"+campaignID.String()+"/cancel", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	assert.True(t, env.progress.CancelRequested(context.Background(), campaignID))
}
