package ports

import (
	"context"

	"telegram-campaign-dispatch/internal/domain"
)

// Gateway abstracts the external messaging transport. Implementations own
// the mapping from gateway-specific errors to the closed DeliveryStatus
// set; the dispatch loop never inspects raw errors.
//
// The returned error retains the raw gateway failure for diagnostics and
// is nil if and only if the status is DeliverySuccess.
type Gateway interface {
	// Send delivers the message to one chat. Zero attachment refs send
	// plain text, exactly one sends a captioned photo, more than one send
	// an album with the message attached to the first item only.
	Send(ctx context.Context, chatID int64, message string, attachmentRefs []string) (domain.DeliveryStatus, error)
}
