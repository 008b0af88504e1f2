package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/comitanigiacomo/kanso-care-engine/internal/core/domain"
)

// InMemoryStore backs the reminder and ledger repositories with maps guarded by one
// mutex, so the atomic completion and the ledger slot uniqueness hold exactly as they
// do in Postgres. Values are copied in and out.
type InMemoryStore struct {
	mu sync.RWMutex

	reminders     map[string]domain.ReminderRule
	reminderSlots map[string]string

	history      map[string]domain.TaskOccurrence
	historySlots map[string]string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		reminders:     make(map[string]domain.ReminderRule),
		reminderSlots: make(map[string]string),
		history:       make(map[string]domain.TaskOccurrence),
		historySlots:  make(map[string]string),
	}
}

func (s *InMemoryStore) Reminders() *InMemoryReminderRepository {
	return &InMemoryReminderRepository{store: s}
}

func (s *InMemoryStore) TaskHistory() *InMemoryTaskHistoryRepository {
	return &InMemoryTaskHistoryRepository{store: s}
}

func ruleSlot(plantID string, careType domain.CareType) string {
	return plantID + "|" + string(careType)
}

func copyOccurrence(o domain.TaskOccurrence) *domain.TaskOccurrence {
	if o.CompletedDate != nil {
		d := *o.CompletedDate
		o.CompletedDate = &d
	}
	return &o
}

var _ domain.ReminderRepository = (*InMemoryReminderRepository)(nil)

type InMemoryReminderRepository struct {
	store *InMemoryStore
}

func (r *InMemoryReminderRepository) Create(ctx context.Context, rule *domain.ReminderRule) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	slot := ruleSlot(rule.PlantID, rule.CareType)
	if _, taken := s.reminderSlots[slot]; taken {
		return domain.ErrDuplicateRule
	}

	rule.Version = 1
	s.reminders[rule.ID] = *rule
	s.reminderSlots[slot] = rule.ID
	return nil
}

func (r *InMemoryReminderRepository) GetByID(ctx context.Context, id string) (*domain.ReminderRule, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, ok := s.reminders[id]
	if !ok {
		return nil, domain.ErrReminderNotFound
	}
	return &rule, nil
}

func (r *InMemoryReminderRepository) GetByPlantAndCareType(ctx context.Context, plantID string, careType domain.CareType) (*domain.ReminderRule, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.reminderSlots[ruleSlot(plantID, careType)]
	if !ok {
		return nil, domain.ErrReminderNotFound
	}
	rule := s.reminders[id]
	return &rule, nil
}

func (r *InMemoryReminderRepository) ListByUserID(ctx context.Context, userID string) ([]*domain.ReminderRule, error) {
	return r.filter(func(rule domain.ReminderRule) bool {
		return rule.UserID == userID
	}), nil
}

func (r *InMemoryReminderRepository) ListDueOn(ctx context.Context, day domain.Date) ([]*domain.ReminderRule, error) {
	return r.filter(func(rule domain.ReminderRule) bool {
		return rule.NextDueDate.Equal(day)
	}), nil
}

func (r *InMemoryReminderRepository) ListByUserIDAndDueRange(ctx context.Context, userID string, from, to domain.Date) ([]*domain.ReminderRule, error) {
	return r.filter(func(rule domain.ReminderRule) bool {
		return rule.UserID == userID && !rule.NextDueDate.Before(from) && !rule.NextDueDate.After(to)
	}), nil
}

func (r *InMemoryReminderRepository) Update(ctx context.Context, rule *domain.ReminderRule) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkRuleVersion(rule); err != nil {
		return err
	}

	s.storeRule(rule)
	return nil
}

func (r *InMemoryReminderRepository) Delete(ctx context.Context, id string, userID string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	rule, ok := s.reminders[id]
	if !ok || rule.UserID != userID {
		return domain.ErrReminderNotFound
	}

	delete(s.reminders, id)
	delete(s.reminderSlots, ruleSlot(rule.PlantID, rule.CareType))
	return nil
}

func (r *InMemoryReminderRepository) AdvanceWithCompletion(ctx context.Context, rule *domain.ReminderRule, occ *domain.TaskOccurrence) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkPending(occ); err != nil {
		return err
	}
	if err := s.checkRuleVersion(rule); err != nil {
		return err
	}

	s.history[occ.ID] = *copyOccurrence(*occ)
	s.storeRule(rule)
	return nil
}

func (r *InMemoryReminderRepository) filter(keep func(domain.ReminderRule) bool) []*domain.ReminderRule {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := []*domain.ReminderRule{}
	for _, rule := range s.reminders {
		if keep(rule) {
			cp := rule
			list = append(list, &cp)
		}
	}

	sort.Slice(list, func(i, j int) bool {
		if !list[i].NextDueDate.Equal(list[j].NextDueDate) {
			return list[i].NextDueDate.Before(list[j].NextDueDate)
		}
		return ruleSlot(list[i].PlantID, list[i].CareType) < ruleSlot(list[j].PlantID, list[j].CareType)
	})
	return list
}

// callers hold s.mu
func (s *InMemoryStore) checkRuleVersion(rule *domain.ReminderRule) error {
	existing, ok := s.reminders[rule.ID]
	if !ok || existing.UserID != rule.UserID {
		return domain.ErrReminderNotFound
	}
	if existing.Version != rule.Version {
		return domain.ErrReminderConflict
	}
	return nil
}

func (s *InMemoryStore) storeRule(rule *domain.ReminderRule) {
	rule.Version++
	rule.UpdatedAt = time.Now().UTC()
	s.reminders[rule.ID] = *rule
}

func (s *InMemoryStore) checkPending(occ *domain.TaskOccurrence) error {
	existing, ok := s.history[occ.ID]
	if !ok || existing.UserID != occ.UserID {
		return domain.ErrOccurrenceNotFound
	}
	if existing.IsCompleted {
		return domain.ErrAlreadyCompleted
	}
	return nil
}

var _ domain.TaskHistoryRepository = (*InMemoryTaskHistoryRepository)(nil)

type InMemoryTaskHistoryRepository struct {
	store *InMemoryStore
}

func (r *InMemoryTaskHistoryRepository) CreateIfAbsent(ctx context.Context, occ *domain.TaskOccurrence) (bool, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	slot := occ.SlotKey()
	if _, taken := s.historySlots[slot]; taken {
		return false, nil
	}

	s.history[occ.ID] = *copyOccurrence(*occ)
	s.historySlots[slot] = occ.ID
	return true, nil
}

func (r *InMemoryTaskHistoryRepository) GetByID(ctx context.Context, id string) (*domain.TaskOccurrence, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	occ, ok := s.history[id]
	if !ok {
		return nil, domain.ErrOccurrenceNotFound
	}
	return copyOccurrence(occ), nil
}

func (r *InMemoryTaskHistoryRepository) ListByUserIDAndDateRange(ctx context.Context, userID string, from, to domain.Date) ([]*domain.TaskOccurrence, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := []*domain.TaskOccurrence{}
	for _, occ := range s.history {
		if occ.UserID != userID || occ.ScheduledDate.Before(from) || occ.ScheduledDate.After(to) {
			continue
		}
		list = append(list, copyOccurrence(occ))
	}

	sort.Slice(list, func(i, j int) bool {
		if !list[i].ScheduledDate.Equal(list[j].ScheduledDate) {
			return list[i].ScheduledDate.Before(list[j].ScheduledDate)
		}
		return list[i].SlotKey() < list[j].SlotKey()
	})
	return list, nil
}

func (r *InMemoryTaskHistoryRepository) MarkCompleted(ctx context.Context, occ *domain.TaskOccurrence) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkPending(occ); err != nil {
		return err
	}
	s.history[occ.ID] = *copyOccurrence(*occ)
	return nil
}

var _ domain.UserRepository = (*InMemoryUserRepository)(nil)

type InMemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

func NewInMemoryUserRepository() *InMemoryUserRepository {
	return &InMemoryUserRepository{users: make(map[string]domain.User)}
}

func (r *InMemoryUserRepository) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) {
			return domain.ErrEmailAlreadyExists
		}
	}
	r.users[user.ID] = *user
	return nil
}

func (r *InMemoryUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			cp := u
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *InMemoryUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (r *InMemoryUserRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}
