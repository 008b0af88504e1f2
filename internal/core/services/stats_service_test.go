package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/comitanigiacomo/kanso-care-engine/internal/core/domain"
	"github.com/comitanigiacomo/kanso-care-engine/internal/core/services"
)

func TestStatsService_GetCareStats(t *testing.T) {
	ctx := context.Background()

	t.Run("Success: Aggregates the ledger", func(t *testing.T) {
		f := newFixture("2024-03-01")
		_, occ := seedPending(t, f, "fern")
		_, err := f.tasks.Complete(ctx, services.CompleteTaskInput{OccurrenceID: occ.ID, UserID: "u1"})
		require.NoError(t, err)

		svc := services.NewStatsService(f.store.TaskHistory())
		stats, err := svc.GetCareStats(ctx, domain.StatsInput{UserID: "u1", StartDate: day("2024-02-25"), EndDate: day("2024-03-02")})

		require.NoError(t, err)
		assert.Equal(t, 1, stats.TotalScheduled)
		assert.Equal(t, 1, stats.TotalCompleted)
		require.Len(t, stats.Stats, 1)
		assert.Equal(t, 1, stats.Stats[0].OnTime)
	})

	t.Run("Fail: Range validation happens before the store", func(t *testing.T) {
		history := new(MockTaskHistoryRepo)
		svc := services.NewStatsService(history)

		_, err := svc.GetCareStats(ctx, domain.StatsInput{UserID: "u1", StartDate: day("2024-03-10"), EndDate: day("2024-03-01")})
		assert.ErrorIs(t, err, domain.ErrInvalidDateRange)

		_, err = svc.GetCareStats(ctx, domain.StatsInput{UserID: "u1", StartDate: day("2022-01-01"), EndDate: day("2024-03-01")})
		assert.ErrorIs(t, err, domain.ErrInvalidDateRange)

		history.AssertNotCalled(t, "ListByUserIDAndDateRange", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Fail: Store error", func(t *testing.T) {
		history := new(MockTaskHistoryRepo)
		history.On("ListByUserIDAndDateRange", mock.Anything, "u1", mock.Anything, mock.Anything).Return(nil, domain.ErrStoreUnavailable)
		svc := services.NewStatsService(history)

		_, err := svc.GetCareStats(ctx, domain.StatsInput{UserID: "u1", StartDate: day("2024-03-01"), EndDate: day("2024-03-07")})
		assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	})
}
