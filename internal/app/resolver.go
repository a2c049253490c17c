package app

import (
	"context"
	"fmt"

	"telegram-campaign-dispatch/internal/domain"
	"telegram-campaign-dispatch/internal/ports"
)

// Resolver turns a recipient selector into a batched recipient stream.
// One Resolver serves one run: id and segment selectors are materialized
// once on first use and sliced client-side, so the recipient set stays
// stable for the whole run even if the underlying tables change. The
// "all" selector pages through the store by keyset (id > cursor) and
// needs only O(batch) memory; because the cursor only moves forward,
// rows that leave the reachable set mid-run (a recipient blocking the
// bot during the run itself) never shift later pages.
type Resolver struct {
	store ports.RecipientStore

	materialized []domain.Recipient
	resolved     bool
	offset       int
	cursor       int64
}

func NewResolver(store ports.RecipientStore) *Resolver {
	return &Resolver{store: store}
}

// Count returns the number of recipients the selector matches after
// channel-level exclusions. It validates the selector and fails with
// *domain.SelectorError before any dispatch work begins; an ids selector
// matching no reachable recipient fails with domain.ErrNoRecipients.
func (r *Resolver) Count(ctx context.Context, selector domain.Selector) (int, error) {
	if err := selector.Validate(); err != nil {
		return 0, err
	}

	switch selector.Kind {
	case domain.SelectAll:
		return r.store.CountReachable(ctx)
	case domain.SelectIDs:
		if err := r.materialize(ctx, selector); err != nil {
			return 0, err
		}
		if len(r.materialized) == 0 {
			return 0, domain.ErrNoRecipients
		}
		return len(r.materialized), nil
	default: // domain.SelectSegment, per Validate
		if err := r.materialize(ctx, selector); err != nil {
			return 0, err
		}
		return len(r.materialized), nil
	}
}

// Next returns the next batch of at most size recipients, or an empty
// batch once the resolved set is exhausted.
func (r *Resolver) Next(ctx context.Context, selector domain.Selector, size int) ([]domain.Recipient, error) {
	if err := selector.Validate(); err != nil {
		return nil, err
	}

	if selector.Kind == domain.SelectAll {
		batch, err := r.store.ListReachable(ctx, r.cursor, size)
		if err != nil {
			return nil, err
		}
		if len(batch) > 0 {
			r.cursor = batch[len(batch)-1].ID
		}
		return batch, nil
	}

	if err := r.materialize(ctx, selector); err != nil {
		return nil, err
	}
	if r.offset >= len(r.materialized) {
		return nil, nil
	}
	end := r.offset + size
	if end > len(r.materialized) {
		end = len(r.materialized)
	}
	batch := r.materialized[r.offset:end]
	r.offset = end
	return batch, nil
}

func (r *Resolver) materialize(ctx context.Context, selector domain.Selector) error {
	if r.resolved {
		return nil
	}

	var (
		recipients []domain.Recipient
		err        error
	)
	switch selector.Kind {
	case domain.SelectIDs:
		recipients, err = r.store.ListReachableByIDs(ctx, selector.RecipientIDs)
	case domain.SelectSegment:
		recipients, err = r.store.ListSegment(ctx, selector)
	default:
		return &domain.SelectorError{Reason: fmt.Sprintf("selector kind %q cannot be materialized", selector.Kind)}
	}
	if err != nil {
		return err
	}

	r.materialized = recipients
	r.resolved = true
	return nil
}
