package services

import (
	"context"

	"github.com/comitanigiacomo/kanso-care-engine/internal/core/domain"
)

type CalendarService struct {
	reminders domain.ReminderRepository
	history   domain.TaskHistoryRepository
	clock     domain.Clock
}

func NewCalendarService(reminders domain.ReminderRepository, history domain.TaskHistoryRepository, clock domain.Clock) *CalendarService {
	return &CalendarService{
		reminders: reminders,
		history:   history,
		clock:     clock,
	}
}

// GetMonth builds the 6-week grid for the requested month, or the current one when
// Year is zero.
func (s *CalendarService) GetMonth(ctx context.Context, input domain.CalendarInput) (*domain.CalendarMonth, error) {
	today := s.clock.Today()

	year, month := input.Year, input.Month
	if year == 0 {
		year, month = today.Year(), today.Month()
	}
	if month < 1 || month > 12 {
		return nil, domain.ErrInvalidMonth
	}

	start, end := domain.CalendarWindow(year, month)

	occurrences, err := s.history.ListByUserIDAndDateRange(ctx, input.UserID, start, end)
	if err != nil {
		return nil, err
	}

	rules, err := s.reminders.ListByUserIDAndDueRange(ctx, input.UserID, start, end)
	if err != nil {
		return nil, err
	}

	return domain.BuildCalendarMonth(year, month, today, input.Selected, occurrences, rules), nil
}
