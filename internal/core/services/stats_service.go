package services

import (
	"context"
	"fmt"

	"github.com/comitanigiacomo/kanso-care-engine/internal/core/domain"
)

type StatsService struct {
	history domain.TaskHistoryRepository
}

func NewStatsService(history domain.TaskHistoryRepository) *StatsService {
	return &StatsService{history: history}
}

func (s *StatsService) GetCareStats(ctx context.Context, input domain.StatsInput) (*domain.CareStats, error) {
	if input.StartDate.IsZero() || input.EndDate.IsZero() || input.EndDate.Before(input.StartDate) {
		return nil, domain.ErrInvalidDateRange
	}
	if input.StartDate.DaysUntil(input.EndDate) > maxListRangeDays {
		return nil, fmt.Errorf("%w: at most %d days", domain.ErrInvalidDateRange, maxListRangeDays)
	}

	occurrences, err := s.history.ListByUserIDAndDateRange(ctx, input.UserID, input.StartDate, input.EndDate)
	if err != nil {
		return nil, err
	}

	return domain.BuildCareStats(input.StartDate, input.EndDate, occurrences), nil
}
