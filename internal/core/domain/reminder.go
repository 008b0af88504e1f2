package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidFrequency   = errors.New("frequency must be a positive number of days")
	ErrInvalidCareType    = errors.New("unknown care type")
	ErrReminderInvalidIDs = errors.New("reminder requires user id and plant id")
)

type CareType string

const (
	CareWatering    CareType = "watering"
	CareFertilizing CareType = "fertilizing"

	DefaultFrequencyDays = 7
	MaxFrequencyDays     = 366
)

func NormalizeCareType(raw string) CareType {
	return CareType(strings.ToLower(strings.TrimSpace(raw)))
}

// CarePolicy lists the care types a deployment accepts and the cadence a fresh
// rule starts with before the user configures one.
type CarePolicy struct {
	Defaults map[CareType]int
}

func DefaultCarePolicy() CarePolicy {
	return CarePolicy{
		Defaults: map[CareType]int{
			CareWatering:    DefaultFrequencyDays,
			CareFertilizing: DefaultFrequencyDays,
		},
	}
}

func (p CarePolicy) Supports(ct CareType) bool {
	_, ok := p.Defaults[ct]
	return ok
}

func (p CarePolicy) DefaultFrequency(ct CareType) int {
	if f, ok := p.Defaults[ct]; ok && f > 0 {
		return f
	}
	return DefaultFrequencyDays
}

func (p CarePolicy) CareTypes() []CareType {
	types := make([]CareType, 0, len(p.Defaults))
	for ct := range p.Defaults {
		types = append(types, ct)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// ReminderRule is the live recurrence for one (plant, care type) pair.
type ReminderRule struct {
	ID            string    `json:"id" db:"id"`
	UserID        string    `json:"user_id" db:"user_id"`
	PlantID       string    `json:"plant_id" db:"plant_id"`
	CareType      CareType  `json:"care_type" db:"care_type"`
	FrequencyDays int       `json:"frequency_days" db:"frequency_days"`
	NextDueDate   Date      `json:"next_due_date" db:"next_due_date"`
	Version       int       `json:"version" db:"version"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

func ValidateFrequency(frequencyDays int) error {
	if frequencyDays < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidFrequency, frequencyDays)
	}
	return nil
}

// ValidateFrequencyInput is the stricter check applied to cadences coming from
// clients and policy files. Rules already stored with a longer cadence keep working.
func ValidateFrequencyInput(frequencyDays int) error {
	if err := ValidateFrequency(frequencyDays); err != nil {
		return err
	}
	if frequencyDays > MaxFrequencyDays {
		return fmt.Errorf("%w: got %d, at most %d", ErrInvalidFrequency, frequencyDays, MaxFrequencyDays)
	}
	return nil
}

// ComputeNextDueDate returns today + frequencyDays calendar days.
func ComputeNextDueDate(today Date, frequencyDays int) (Date, error) {
	if err := ValidateFrequency(frequencyDays); err != nil {
		return Date{}, err
	}
	return today.AddDays(frequencyDays), nil
}

// NewReminderRule seeds a rule that is due today with the policy's default cadence.
func NewReminderRule(userID, plantID string, careType CareType, today Date, policy CarePolicy) (*ReminderRule, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(plantID) == "" {
		return nil, ErrReminderInvalidIDs
	}
	if !policy.Supports(careType) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCareType, careType)
	}
	if today.IsZero() {
		return nil, ErrInvalidDate
	}

	now := time.Now().UTC()

	return &ReminderRule{
		ID:            uuid.NewString(),
		UserID:        userID,
		PlantID:       strings.TrimSpace(plantID),
		CareType:      careType,
		FrequencyDays: policy.DefaultFrequency(careType),
		NextDueDate:   today,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// UpdateFrequency restarts the countdown from today; any partially elapsed interval is discarded.
func (r *ReminderRule) UpdateFrequency(frequencyDays int, today Date) error {
	next, err := ComputeNextDueDate(today, frequencyDays)
	if err != nil {
		return err
	}

	r.FrequencyDays = frequencyDays
	r.NextDueDate = next
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// Advance moves the next due date one interval past today.
func (r *ReminderRule) Advance(today Date) error {
	next, err := ComputeNextDueDate(today, r.FrequencyDays)
	if err != nil {
		return err
	}

	r.NextDueDate = next
	r.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *ReminderRule) IsDueOn(day Date) bool {
	return r.NextDueDate.Equal(day)
}

// CompleteOccurrence applies a user completion to both the ledger entry and its rule.
// Nothing is mutated unless both changes are valid; persisting them is the caller's
// job and must happen in one transaction.
func CompleteOccurrence(rule *ReminderRule, occ *TaskOccurrence, completionDate, today Date) error {
	if err := occ.CanComplete(completionDate, today); err != nil {
		return err
	}
	if rule != nil {
		if _, err := ComputeNextDueDate(today, rule.FrequencyDays); err != nil {
			return err
		}
	}

	if err := occ.MarkCompleted(completionDate, today); err != nil {
		return err
	}
	if rule != nil {
		return rule.Advance(today)
	}
	return nil
}
