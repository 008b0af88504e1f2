package domain

import "context"

// Notifier delivers "care is due" messages. Delivery itself (email, push) lives
// outside the engine; implementations must not block the caller for long.
type Notifier interface {
	NotifyDue(ctx context.Context, occurrences []*TaskOccurrence) error
}
