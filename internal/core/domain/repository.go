package domain

import (
	"context"
	"errors"
)

var (
	ErrReminderNotFound   = errors.New("reminder not found")
	ErrOccurrenceNotFound = errors.New("task occurrence not found")
	ErrDuplicateRule      = errors.New("a reminder for this plant and care type already exists")
	ErrReminderConflict   = errors.New("reminder version conflict")
	ErrStoreUnavailable   = errors.New("store temporarily unavailable")
)

type ReminderRepository interface {
	// Create persists a new rule. Returns ErrDuplicateRule if the (plant, care type) pair is taken.
	Create(ctx context.Context, rule *ReminderRule) error

	GetByID(ctx context.Context, id string) (*ReminderRule, error)

	GetByPlantAndCareType(ctx context.Context, plantID string, careType CareType) (*ReminderRule, error)

	ListByUserID(ctx context.Context, userID string) ([]*ReminderRule, error)

	// ListDueOn returns every rule, across all users, whose next due date is day.
	ListDueOn(ctx context.Context, day Date) ([]*ReminderRule, error)

	// ListByUserIDAndDueRange returns the user's rules with next_due_date in [from, to].
	ListByUserIDAndDueRange(ctx context.Context, userID string, from, to Date) ([]*ReminderRule, error)

	// Update writes frequency and next due date.
	// Implementations must check the version (optimistic locking) and bump it.
	Update(ctx context.Context, rule *ReminderRule) error

	// Delete removes the rule. Ledger rows that reference it are untouched.
	Delete(ctx context.Context, id string, userID string) error

	// AdvanceWithCompletion marks occ completed and stores rule's new next due date
	// as a single atomic unit scoped by userID. On error neither write is visible.
	AdvanceWithCompletion(ctx context.Context, rule *ReminderRule, occ *TaskOccurrence) error
}

type TaskHistoryRepository interface {
	// CreateIfAbsent inserts occ unless its (plant, care type, scheduled date) slot is
	// already filled. Reports whether a row was inserted.
	CreateIfAbsent(ctx context.Context, occ *TaskOccurrence) (bool, error)

	GetByID(ctx context.Context, id string) (*TaskOccurrence, error)

	// ListByUserIDAndDateRange returns occurrences scheduled in [from, to], oldest first.
	ListByUserIDAndDateRange(ctx context.Context, userID string, from, to Date) ([]*TaskOccurrence, error)

	// MarkCompleted persists the completion of an occurrence whose rule no longer exists.
	MarkCompleted(ctx context.Context, occ *TaskOccurrence) error
}
