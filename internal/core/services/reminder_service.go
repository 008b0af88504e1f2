package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/comitanigiacomo/kanso-care-engine/internal/core/domain"
)

type ReminderService struct {
	repo   domain.ReminderRepository
	clock  domain.Clock
	policy domain.CarePolicy
	logger *zap.Logger
}

func NewReminderService(repo domain.ReminderRepository, clock domain.Clock, policy domain.CarePolicy, logger *zap.Logger) *ReminderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReminderService{
		repo:   repo,
		clock:  clock,
		policy: policy,
		logger: logger,
	}
}

type CreateReminderInput struct {
	UserID        string
	PlantID       string
	CareType      string
	FrequencyDays int
}

type SeedPlantInput struct {
	UserID    string
	PlantID   string
	CareTypes []string
}

type UpdateFrequencyInput struct {
	ID            string
	UserID        string
	FrequencyDays int
	Version       int
}

func (s *ReminderService) Policy() domain.CarePolicy {
	return s.policy
}

// Create registers a rule that is due today. A non-zero FrequencyDays replaces the
// policy default but does not move the first due date.
func (s *ReminderService) Create(ctx context.Context, input CreateReminderInput) (*domain.ReminderRule, error) {
	rule, err := domain.NewReminderRule(input.UserID, input.PlantID, domain.NormalizeCareType(input.CareType), s.clock.Today(), s.policy)
	if err != nil {
		return nil, err
	}

	if input.FrequencyDays != 0 {
		if err := domain.ValidateFrequencyInput(input.FrequencyDays); err != nil {
			return nil, err
		}
		rule.FrequencyDays = input.FrequencyDays
	}

	if err := s.repo.Create(ctx, rule); err != nil {
		return nil, err
	}

	s.logger.Info("reminder_created",
		zap.String("reminder_id", rule.ID),
		zap.String("plant_id", rule.PlantID),
		zap.String("care_type", string(rule.CareType)),
	)
	return rule, nil
}

// SeedPlant makes sure the plant has one rule per requested care type (all policy
// types when none are given). Rules the user already owns are returned as they are.
func (s *ReminderService) SeedPlant(ctx context.Context, input SeedPlantInput) ([]*domain.ReminderRule, error) {
	requested := input.CareTypes
	if len(requested) == 0 {
		for _, ct := range s.policy.CareTypes() {
			requested = append(requested, string(ct))
		}
	}

	seen := make(map[domain.CareType]bool, len(requested))
	careTypes := make([]domain.CareType, 0, len(requested))
	for _, raw := range requested {
		ct := domain.NormalizeCareType(raw)
		if !s.policy.Supports(ct) {
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidCareType, raw)
		}
		if !seen[ct] {
			seen[ct] = true
			careTypes = append(careTypes, ct)
		}
	}

	rules := make([]*domain.ReminderRule, 0, len(careTypes))
	for _, ct := range careTypes {
		rule, err := s.Create(ctx, CreateReminderInput{
			UserID:   input.UserID,
			PlantID:  input.PlantID,
			CareType: string(ct),
		})
		if errors.Is(err, domain.ErrDuplicateRule) {
			rule, err = s.repo.GetByPlantAndCareType(ctx, strings.TrimSpace(input.PlantID), ct)
			if err == nil && rule.UserID != input.UserID {
				err = domain.ErrDuplicateRule
			}
		}
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	return rules, nil
}

func (s *ReminderService) GetByID(ctx context.Context, id string, userID string) (*domain.ReminderRule, error) {
	rule, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rule.UserID != userID {
		return nil, domain.ErrReminderNotFound
	}
	return rule, nil
}

func (s *ReminderService) ListByUserID(ctx context.Context, userID string) ([]*domain.ReminderRule, error) {
	return s.repo.ListByUserID(ctx, userID)
}

// UpdateFrequency changes the cadence and restarts the countdown from today.
// A positive Version must match the stored one.
func (s *ReminderService) UpdateFrequency(ctx context.Context, input UpdateFrequencyInput) (*domain.ReminderRule, error) {
	if err := domain.ValidateFrequencyInput(input.FrequencyDays); err != nil {
		return nil, err
	}

	rule, err := s.GetByID(ctx, input.ID, input.UserID)
	if err != nil {
		return nil, err
	}

	if input.Version > 0 && rule.Version != input.Version {
		return nil, fmt.Errorf("%w: client v%d vs server v%d", domain.ErrReminderConflict, input.Version, rule.Version)
	}

	if err := rule.UpdateFrequency(input.FrequencyDays, s.clock.Today()); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, rule); err != nil {
		return nil, err
	}

	s.logger.Info("reminder_frequency_updated",
		zap.String("reminder_id", rule.ID),
		zap.Int("frequency_days", rule.FrequencyDays),
		zap.String("next_due_date", rule.NextDueDate.String()),
	)
	return rule, nil
}

// Delete removes the rule. Ledger history for the plant stays.
func (s *ReminderService) Delete(ctx context.Context, id string, userID string) error {
	if err := s.repo.Delete(ctx, id, userID); err != nil {
		return err
	}
	s.logger.Info("reminder_deleted", zap.String("reminder_id", id))
	return nil
}
