package services_test

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/comitanigiacomo/kanso-care-engine/internal/adapters/repository"
	"github.com/comitanigiacomo/kanso-care-engine/internal/core/domain"
	"github.com/comitanigiacomo/kanso-care-engine/internal/core/services"
)

func ptr[T any](v T) *T {
	return &v
}

func day(s string) domain.Date {
	return domain.MustParseDate(s)
}

type fixture struct {
	clock     *domain.FixedClock
	store     *repository.InMemoryStore
	recorder  *countingRecorder
	reminders *services.ReminderService
	tasks     *services.TaskService
	calendar  *services.CalendarService
}

func newFixture(today string) *fixture {
	clock := &domain.FixedClock{Day: day(today)}
	store := repository.NewInMemoryStore()
	rec := &countingRecorder{}

	return &fixture{
		clock:     clock,
		store:     store,
		recorder:  rec,
		reminders: services.NewReminderService(store.Reminders(), clock, domain.DefaultCarePolicy(), nil),
		tasks:     services.NewTaskService(store.Reminders(), store.TaskHistory(), clock, rec, nil),
		calendar:  services.NewCalendarService(store.Reminders(), store.TaskHistory(), clock),
	}
}

type countingRecorder struct {
	mu                       sync.Mutex
	created, skipped, failed int
	completions              map[string]int
}

func (r *countingRecorder) AddMaterialized(created, skipped, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created += created
	r.skipped += skipped
	r.failed += failed
}

func (r *countingRecorder) IncCompletion(careType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.completions == nil {
		r.completions = map[string]int{}
	}
	r.completions[careType]++
}

type MockTaskHistoryRepo struct {
	mock.Mock
}

func (m *MockTaskHistoryRepo) CreateIfAbsent(ctx context.Context, occ *domain.TaskOccurrence) (bool, error) {
	args := m.Called(ctx, occ)
	return args.Bool(0), args.Error(1)
}

func (m *MockTaskHistoryRepo) GetByID(ctx context.Context, id string) (*domain.TaskOccurrence, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TaskOccurrence), args.Error(1)
}

func (m *MockTaskHistoryRepo) ListByUserIDAndDateRange(ctx context.Context, userID string, from, to domain.Date) ([]*domain.TaskOccurrence, error) {
	args := m.Called(ctx, userID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.TaskOccurrence), args.Error(1)
}

func (m *MockTaskHistoryRepo) MarkCompleted(ctx context.Context, occ *domain.TaskOccurrence) error {
	return m.Called(ctx, occ).Error(0)
}

// conflictingReminders fails the first n atomic completions with a version conflict.
type conflictingReminders struct {
	domain.ReminderRepository
	remaining int
}

func (c *conflictingReminders) AdvanceWithCompletion(ctx context.Context, rule *domain.ReminderRule, occ *domain.TaskOccurrence) error {
	if c.remaining > 0 {
		c.remaining--
		return domain.ErrReminderConflict
	}
	return c.ReminderRepository.AdvanceWithCompletion(ctx, rule, occ)
}
