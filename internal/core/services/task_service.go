package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/comitanigiacomo/kanso-care-engine/internal/core/domain"
)

const (
	maxListRangeDays    = 366
	maxCompleteAttempts = 3
)

// Recorder receives engine counters. Satisfied by *metrics.Metrics.
type Recorder interface {
	AddMaterialized(created, skipped, failed int)
	IncCompletion(careType string)
}

type nopRecorder struct{}

func (nopRecorder) AddMaterialized(int, int, int) {}
func (nopRecorder) IncCompletion(string)          {}

type TaskService struct {
	reminders domain.ReminderRepository
	history   domain.TaskHistoryRepository
	clock     domain.Clock
	recorder  Recorder
	logger    *zap.Logger
}

func NewTaskService(reminders domain.ReminderRepository, history domain.TaskHistoryRepository, clock domain.Clock, recorder Recorder, logger *zap.Logger) *TaskService {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskService{
		reminders: reminders,
		history:   history,
		clock:     clock,
		recorder:  recorder,
		logger:    logger,
	}
}

type MaterializationResult struct {
	Day     domain.Date              `json:"day"`
	Created []*domain.TaskOccurrence `json:"created"`
	Skipped int                      `json:"skipped"`
	Failed  int                      `json:"failed"`
}

type CompleteTaskInput struct {
	OccurrenceID   string
	UserID         string
	CompletionDate *domain.Date
}

type CompletionResult struct {
	Occurrence *domain.TaskOccurrence `json:"occurrence"`
	Rule       *domain.ReminderRule   `json:"rule,omitempty"`
}

// MaterializeDueOccurrences appends one pending occurrence for every rule due on day.
// Slots that are already filled count as skipped, so reruns are harmless. A failing
// rule is logged and counted; the rest of the batch still runs.
func (s *TaskService) MaterializeDueOccurrences(ctx context.Context, day domain.Date) (*MaterializationResult, error) {
	if day.IsZero() {
		return nil, domain.ErrInvalidDate
	}

	rules, err := s.reminders.ListDueOn(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("task service: list due rules: %w", err)
	}

	result := &MaterializationResult{Day: day, Created: []*domain.TaskOccurrence{}}
	defer func() {
		s.recorder.AddMaterialized(len(result.Created), result.Skipped, result.Failed)
	}()

	for _, rule := range rules {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		occ := domain.NewTaskOccurrence(rule, day)
		created, err := s.history.CreateIfAbsent(ctx, occ)
		switch {
		case err != nil:
			result.Failed++
			s.logger.Error("materialize_rule_failed",
				zap.String("reminder_id", rule.ID),
				zap.String("day", day.String()),
				zap.Error(err),
			)
		case created:
			result.Created = append(result.Created, occ)
		default:
			result.Skipped++
		}
	}

	s.logger.Info("materialization_finished",
		zap.String("day", day.String()),
		zap.Int("due", len(rules)),
		zap.Int("created", len(result.Created)),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// Complete marks an occurrence done and advances its rule from today in one atomic
// write. When the rule no longer exists only the ledger changes. A concurrent edit of
// the rule is retried against fresh state.
func (s *TaskService) Complete(ctx context.Context, input CompleteTaskInput) (*CompletionResult, error) {
	var err error
	for attempt := 1; attempt <= maxCompleteAttempts; attempt++ {
		var result *CompletionResult
		result, err = s.completeOnce(ctx, input)
		if err == nil {
			s.recorder.IncCompletion(string(result.Occurrence.CareType))
			return result, nil
		}
		if !errors.Is(err, domain.ErrReminderConflict) {
			return nil, err
		}
		s.logger.Warn("completion_conflict_retry",
			zap.String("occurrence_id", input.OccurrenceID),
			zap.Int("attempt", attempt),
		)
	}
	return nil, err
}

func (s *TaskService) completeOnce(ctx context.Context, input CompleteTaskInput) (*CompletionResult, error) {
	today := s.clock.Today()

	occ, err := s.history.GetByID(ctx, input.OccurrenceID)
	if err != nil {
		return nil, err
	}
	if occ.UserID != input.UserID {
		return nil, domain.ErrOccurrenceNotFound
	}

	completion := today
	if input.CompletionDate != nil && !input.CompletionDate.IsZero() {
		completion = *input.CompletionDate
	}

	rule, err := s.reminders.GetByID(ctx, occ.ReminderID)
	switch {
	case errors.Is(err, domain.ErrReminderNotFound):
		rule = nil
	case err != nil:
		return nil, err
	}

	if err := domain.CompleteOccurrence(rule, occ, completion, today); err != nil {
		return nil, err
	}

	if rule == nil {
		if err := s.history.MarkCompleted(ctx, occ); err != nil {
			return nil, err
		}
	} else if err := s.reminders.AdvanceWithCompletion(ctx, rule, occ); err != nil {
		return nil, err
	}

	fields := []zap.Field{
		zap.String("occurrence_id", occ.ID),
		zap.String("completed_date", completion.String()),
	}
	if rule != nil {
		fields = append(fields, zap.String("next_due_date", rule.NextDueDate.String()))
	}
	s.logger.Info("occurrence_completed", fields...)

	return &CompletionResult{Occurrence: occ, Rule: rule}, nil
}

// ListOccurrences returns the user's ledger in [from, to], oldest first.
func (s *TaskService) ListOccurrences(ctx context.Context, userID string, from, to domain.Date) ([]*domain.TaskOccurrence, error) {
	if from.IsZero() || to.IsZero() || to.Before(from) {
		return nil, domain.ErrInvalidDateRange
	}
	if from.DaysUntil(to) > maxListRangeDays {
		return nil, fmt.Errorf("%w: at most %d days", domain.ErrInvalidDateRange, maxListRangeDays)
	}
	return s.history.ListByUserIDAndDateRange(ctx, userID, from, to)
}
