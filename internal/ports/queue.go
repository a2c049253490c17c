package ports

import (
	"context"

	"telegram-campaign-dispatch/internal/domain"
)

// JobPublisher publishes dispatch jobs to the durable job queue.
type JobPublisher interface {
	Publish(ctx context.Context, job domain.DispatchJob) error
}

// JobConsumer consumes dispatch jobs from the queue.
type JobConsumer interface {
	// Consume passes each job to handler and blocks until ctx is
	// cancelled or a fatal transport error occurs. A handler error
	// leaves the job on the queue for redelivery.
	Consume(ctx context.Context, handler func(ctx context.Context, job domain.DispatchJob) error) error
}
