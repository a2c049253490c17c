package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"telegram-campaign-dispatch/internal/ports"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const opTimeout = 500 * time.Millisecond

// Store implements ports.ProgressStore on Redis so the admin API can poll
// progress of runs executed by a separate worker process.
type Store struct {
	client *goredis.Client
	ttl    time.Duration
	log    *slog.Logger
}

// New connects to Redis and verifies the connection.
func New(addr string, ttl time.Duration, log *slog.Logger) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Store{client: client, ttl: ttl, log: log}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}

func progressKey(id uuid.UUID) string { return "campaign:progress:" + id.String() }
func cancelKey(id uuid.UUID) string   { return "campaign:cancel:" + id.String() }

// Publish stores the latest snapshot with a TTL. Errors are dropped after
// logging: publishing must never slow down or fail the dispatch loop.
func (s *Store) Publish(ctx context.Context, snap ports.ProgressSnapshot) {
	body, err := json.Marshal(snap)
	if err != nil {
		s.log.Error("marshal progress snapshot", "campaign_id", snap.CampaignID, "err", err)
		return
	}

	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opTimeout)
	defer cancel()
	if err := s.client.Set(opCtx, progressKey(snap.CampaignID), body, s.ttl).Err(); err != nil {
		s.log.Debug("publish progress dropped", "campaign_id", snap.CampaignID, "err", err)
	}
}

// Snapshot returns the latest published snapshot for a campaign.
func (s *Store) Snapshot(ctx context.Context, campaignID uuid.UUID) (ports.ProgressSnapshot, bool, error) {
	body, err := s.client.Get(ctx, progressKey(campaignID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return ports.ProgressSnapshot{}, false, nil
	}
	if err != nil {
		return ports.ProgressSnapshot{}, false, fmt.Errorf("get progress: %w", err)
	}

	var snap ports.ProgressSnapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return ports.ProgressSnapshot{}, false, fmt.Errorf("unmarshal progress: %w", err)
	}
	return snap, true, nil
}

// RequestCancel flags the run for cooperative cancellation.
func (s *Store) RequestCancel(ctx context.Context, campaignID uuid.UUID) error {
	if err := s.client.Set(ctx, cancelKey(campaignID), "1", s.ttl).Err(); err != nil {
		return fmt.Errorf("set cancel flag: %w", err)
	}
	return nil
}

// ClearCancel drops the cancel flag so it cannot leak into a later
// resend of the same campaign.
func (s *Store) ClearCancel(ctx context.Context, campaignID uuid.UUID) error {
	if err := s.client.Del(ctx, cancelKey(campaignID)).Err(); err != nil {
		return fmt.Errorf("clear cancel flag: %w", err)
	}
	return nil
}

// CancelRequested reports whether a cancel flag is set. Lookup failures
// count as "not cancelled" so a Redis outage cannot abort a run.
func (s *Store) CancelRequested(ctx context.Context, campaignID uuid.UUID) bool {
	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opTimeout)
	defer cancel()

	_, err := s.client.Get(opCtx, cancelKey(campaignID)).Result()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			s.log.Debug("cancel flag lookup failed", "campaign_id", campaignID, "err", err)
		}
		return false
	}
	return true
}
