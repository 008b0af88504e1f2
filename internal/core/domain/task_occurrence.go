package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAlreadyCompleted           = errors.New("task occurrence already completed")
	ErrFutureCompletionNotAllowed = errors.New("completion date cannot be after today")
	ErrCompletionBeforeSchedule   = errors.New("completion date cannot be before the scheduled date")
)

// TaskOccurrence is one append-only ledger row: a care action that fell due on ScheduledDate.
// Plant, care type and owner are copied from the rule so history outlives it.
type TaskOccurrence struct {
	ID            string    `json:"id" db:"id"`
	ReminderID    string    `json:"reminder_id" db:"reminder_id"`
	UserID        string    `json:"user_id" db:"user_id"`
	PlantID       string    `json:"plant_id" db:"plant_id"`
	CareType      CareType  `json:"care_type" db:"care_type"`
	ScheduledDate Date      `json:"scheduled_date" db:"scheduled_date"`
	IsCompleted   bool      `json:"is_completed" db:"is_completed"`
	CompletedDate *Date     `json:"completed_date,omitempty" db:"completed_date"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

func NewTaskOccurrence(rule *ReminderRule, scheduled Date) *TaskOccurrence {
	now := time.Now().UTC()

	return &TaskOccurrence{
		ID:            uuid.NewString(),
		ReminderID:    rule.ID,
		UserID:        rule.UserID,
		PlantID:       rule.PlantID,
		CareType:      rule.CareType,
		ScheduledDate: scheduled,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// SlotKey identifies the (rule, day) slot an occurrence fills.
// The ledger holds at most one occurrence per slot.
func (o *TaskOccurrence) SlotKey() string {
	return SlotKey(o.ReminderID, o.ScheduledDate)
}

func SlotKey(reminderID string, day Date) string {
	return reminderID + "|" + day.String()
}

func (o *TaskOccurrence) CanComplete(completionDate, today Date) error {
	if o.IsCompleted {
		return ErrAlreadyCompleted
	}
	if completionDate.IsZero() {
		return ErrInvalidDate
	}
	if completionDate.After(today) {
		return fmt.Errorf("%w: %s is after %s", ErrFutureCompletionNotAllowed, completionDate, today)
	}
	if completionDate.Before(o.ScheduledDate) {
		return fmt.Errorf("%w: %s is before %s", ErrCompletionBeforeSchedule, completionDate, o.ScheduledDate)
	}
	return nil
}

func (o *TaskOccurrence) MarkCompleted(completionDate, today Date) error {
	if err := o.CanComplete(completionDate, today); err != nil {
		return err
	}

	done := completionDate
	o.IsCompleted = true
	o.CompletedDate = &done
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// Validate checks the completion invariant: CompletedDate is set iff IsCompleted.
func (o *TaskOccurrence) Validate() error {
	if o.IsCompleted != (o.CompletedDate != nil) {
		return errors.New("completed_date must be set if and only if is_completed is true")
	}
	if o.CompletedDate != nil && o.CompletedDate.Before(o.ScheduledDate) {
		return ErrCompletionBeforeSchedule
	}
	return nil
}
