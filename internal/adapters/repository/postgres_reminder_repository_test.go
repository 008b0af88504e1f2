package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comitanigiacomo/kanso-care-engine/internal/core/domain"
)

func newTestRule(t *testing.T, userID, plantID string, careType domain.CareType, due string) *domain.ReminderRule {
	t.Helper()
	rule, err := domain.NewReminderRule(userID, plantID, careType, domain.MustParseDate(due), domain.DefaultCarePolicy())
	require.NoError(t, err)
	return rule
}

func TestPostgresReminderRepository_Integration(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostgresReminderRepository(db)
	history := NewPostgresTaskHistoryRepository(db)
	ctx := context.Background()
	uid := uuid.NewString()

	t.Run("Create, read back and reject duplicates", func(t *testing.T) {
		rule := newTestRule(t, uid, "plant-crud", domain.CareWatering, "2024-03-01")
		require.NoError(t, repo.Create(ctx, rule))

		fetched, err := repo.GetByID(ctx, rule.ID)
		require.NoError(t, err)
		assert.Equal(t, "2024-03-01", fetched.NextDueDate.String())
		assert.Equal(t, domain.CareWatering, fetched.CareType)
		assert.Equal(t, 7, fetched.FrequencyDays)
		assert.Equal(t, 1, fetched.Version)

		bySlot, err := repo.GetByPlantAndCareType(ctx, "plant-crud", domain.CareWatering)
		require.NoError(t, err)
		assert.Equal(t, rule.ID, bySlot.ID)

		dup := newTestRule(t, uid, "plant-crud", domain.CareWatering, "2024-03-02")
		assert.ErrorIs(t, repo.Create(ctx, dup), domain.ErrDuplicateRule)
	})

	t.Run("Update uses optimistic locking", func(t *testing.T) {
		rule := newTestRule(t, uid, "plant-lock", domain.CareWatering, "2024-03-01")
		require.NoError(t, repo.Create(ctx, rule))

		clientA, _ := repo.GetByID(ctx, rule.ID)
		clientB, _ := repo.GetByID(ctx, rule.ID)

		require.NoError(t, clientA.UpdateFrequency(3, domain.MustParseDate("2024-03-05")))
		require.NoError(t, repo.Update(ctx, clientA))
		assert.Equal(t, 2, clientA.Version)

		require.NoError(t, clientB.UpdateFrequency(10, domain.MustParseDate("2024-03-05")))
		assert.ErrorIs(t, repo.Update(ctx, clientB), domain.ErrReminderConflict)

		stored, _ := repo.GetByID(ctx, rule.ID)
		assert.Equal(t, "2024-03-08", stored.NextDueDate.String())
	})

	t.Run("Due and range queries", func(t *testing.T) {
		other := uuid.NewString()
		require.NoError(t, repo.Create(ctx, newTestRule(t, other, "plant-a", domain.CareWatering, "2024-04-10")))
		require.NoError(t, repo.Create(ctx, newTestRule(t, other, "plant-a", domain.CareFertilizing, "2024-04-20")))
		require.NoError(t, repo.Create(ctx, newTestRule(t, other, "plant-b", domain.CareWatering, "2024-04-10")))

		due, err := repo.ListDueOn(ctx, domain.MustParseDate("2024-04-10"))
		require.NoError(t, err)
		assert.Len(t, due, 2)

		ranged, err := repo.ListByUserIDAndDueRange(ctx, other, domain.MustParseDate("2024-04-11"), domain.MustParseDate("2024-04-30"))
		require.NoError(t, err)
		require.Len(t, ranged, 1)
		assert.Equal(t, domain.CareFertilizing, ranged[0].CareType)

		all, err := repo.ListByUserID(ctx, other)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("Atomic completion commits both writes", func(t *testing.T) {
		rule := newTestRule(t, uid, "plant-complete", domain.CareWatering, "2024-03-01")
		require.NoError(t, repo.Create(ctx, rule))
		occ := domain.NewTaskOccurrence(rule, rule.NextDueDate)
		_, err := history.CreateIfAbsent(ctx, occ)
		require.NoError(t, err)

		today := domain.MustParseDate("2024-03-01")
		require.NoError(t, domain.CompleteOccurrence(rule, occ, today, today))
		require.NoError(t, repo.AdvanceWithCompletion(ctx, rule, occ))

		storedRule, _ := repo.GetByID(ctx, rule.ID)
		storedOcc, _ := history.GetByID(ctx, occ.ID)
		assert.Equal(t, "2024-03-08", storedRule.NextDueDate.String())
		assert.True(t, storedOcc.IsCompleted)
		assert.Equal(t, "2024-03-01", storedOcc.CompletedDate.String())
	})

	t.Run("Atomic completion rolls back on rule conflict", func(t *testing.T) {
		rule := newTestRule(t, uid, "plant-rollback", domain.CareWatering, "2024-03-01")
		require.NoError(t, repo.Create(ctx, rule))
		occ := domain.NewTaskOccurrence(rule, rule.NextDueDate)
		_, err := history.CreateIfAbsent(ctx, occ)
		require.NoError(t, err)

		stale := *rule
		concurrent, _ := repo.GetByID(ctx, rule.ID)
		require.NoError(t, concurrent.UpdateFrequency(3, domain.MustParseDate("2024-03-01")))
		require.NoError(t, repo.Update(ctx, concurrent))

		today := domain.MustParseDate("2024-03-01")
		require.NoError(t, domain.CompleteOccurrence(&stale, occ, today, today))
		assert.ErrorIs(t, repo.AdvanceWithCompletion(ctx, &stale, occ), domain.ErrReminderConflict)

		storedOcc, _ := history.GetByID(ctx, occ.ID)
		assert.False(t, storedOcc.IsCompleted, "ledger write must roll back with the rule write")
		assert.Nil(t, storedOcc.CompletedDate)
	})

	t.Run("Concurrent completions: exactly one wins", func(t *testing.T) {
		rule := newTestRule(t, uid, "plant-race", domain.CareWatering, "2024-03-01")
		require.NoError(t, repo.Create(ctx, rule))
		occ := domain.NewTaskOccurrence(rule, rule.NextDueDate)
		_, err := history.CreateIfAbsent(ctx, occ)
		require.NoError(t, err)

		today := domain.MustParseDate("2024-03-01")
		var wg sync.WaitGroup
		errs := make(chan error, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				r := *rule
				o := *occ
				_ = domain.CompleteOccurrence(&r, &o, today, today)
				errs <- repo.AdvanceWithCompletion(ctx, &r, &o)
			}()
		}
		wg.Wait()
		close(errs)

		var ok int
		for err := range errs {
			if err == nil {
				ok++
				continue
			}
			assert.Error(t, err)
		}
		assert.Equal(t, 1, ok)
	})

	t.Run("Delete keeps history", func(t *testing.T) {
		rule := newTestRule(t, uid, "plant-delete", domain.CareWatering, "2024-03-01")
		require.NoError(t, repo.Create(ctx, rule))
		occ := domain.NewTaskOccurrence(rule, rule.NextDueDate)
		_, err := history.CreateIfAbsent(ctx, occ)
		require.NoError(t, err)

		require.NoError(t, repo.Delete(ctx, rule.ID, uid))
		assert.ErrorIs(t, repo.Delete(ctx, rule.ID, uid), domain.ErrReminderNotFound)

		_, err = history.GetByID(ctx, occ.ID)
		assert.NoError(t, err)
	})

	t.Run("Delete is scoped by owner", func(t *testing.T) {
		rule := newTestRule(t, uid, "plant-owner", domain.CareWatering, "2024-03-01")
		require.NoError(t, repo.Create(ctx, rule))

		assert.ErrorIs(t, repo.Delete(ctx, rule.ID, "intruder"), domain.ErrReminderNotFound)
	})
}
