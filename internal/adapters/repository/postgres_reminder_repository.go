package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/comitanigiacomo/kanso-care-engine/internal/core/domain"
)

var _ domain.ReminderRepository = (*PostgresReminderRepository)(nil)

type PostgresReminderRepository struct {
	db *sqlx.DB
}

func NewPostgresReminderRepository(db *sqlx.DB) *PostgresReminderRepository {
	return &PostgresReminderRepository{db: db}
}

const reminderColumns = `id, user_id, plant_id, care_type, frequency_days, next_due_date, version, created_at, updated_at`

func (r *PostgresReminderRepository) Create(ctx context.Context, rule *domain.ReminderRule) error {
	query := `
		INSERT INTO reminders (` + reminderColumns + `)
		VALUES (
			:id, :user_id, :plant_id, :care_type, :frequency_days, :next_due_date,
			1, :created_at, :updated_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, rule); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateRule
		}
		return fmt.Errorf("failed to insert reminder: %w", mapStoreError(err))
	}

	rule.Version = 1
	return nil
}

func (r *PostgresReminderRepository) GetByID(ctx context.Context, id string) (*domain.ReminderRule, error) {
	var rule domain.ReminderRule
	query := `SELECT ` + reminderColumns + ` FROM reminders WHERE id = $1`

	if err := r.db.GetContext(ctx, &rule, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrReminderNotFound
		}
		return nil, fmt.Errorf("reminder lookup failed: %w", mapStoreError(err))
	}
	return &rule, nil
}

func (r *PostgresReminderRepository) GetByPlantAndCareType(ctx context.Context, plantID string, careType domain.CareType) (*domain.ReminderRule, error) {
	var rule domain.ReminderRule
	query := `SELECT ` + reminderColumns + ` FROM reminders WHERE plant_id = $1 AND care_type = $2`

	if err := r.db.GetContext(ctx, &rule, query, plantID, careType); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrReminderNotFound
		}
		return nil, fmt.Errorf("reminder lookup failed: %w", mapStoreError(err))
	}
	return &rule, nil
}

func (r *PostgresReminderRepository) ListByUserID(ctx context.Context, userID string) ([]*domain.ReminderRule, error) {
	rules := []*domain.ReminderRule{}
	query := `
		SELECT ` + reminderColumns + ` FROM reminders
		WHERE user_id = $1
		ORDER BY next_due_date ASC, plant_id ASC, care_type ASC`

	if err := r.db.SelectContext(ctx, &rules, query, userID); err != nil {
		return nil, fmt.Errorf("list reminders failed: %w", mapStoreError(err))
	}
	return rules, nil
}

func (r *PostgresReminderRepository) ListDueOn(ctx context.Context, day domain.Date) ([]*domain.ReminderRule, error) {
	rules := []*domain.ReminderRule{}
	query := `
		SELECT ` + reminderColumns + ` FROM reminders
		WHERE next_due_date = $1
		ORDER BY user_id ASC, plant_id ASC, care_type ASC`

	if err := r.db.SelectContext(ctx, &rules, query, day); err != nil {
		return nil, fmt.Errorf("list due reminders failed: %w", mapStoreError(err))
	}
	return rules, nil
}

func (r *PostgresReminderRepository) ListByUserIDAndDueRange(ctx context.Context, userID string, from, to domain.Date) ([]*domain.ReminderRule, error) {
	rules := []*domain.ReminderRule{}
	query := `
		SELECT ` + reminderColumns + ` FROM reminders
		WHERE user_id = $1
		  AND next_due_date >= $2
		  AND next_due_date <= $3
		ORDER BY next_due_date ASC, plant_id ASC, care_type ASC`

	if err := r.db.SelectContext(ctx, &rules, query, userID, from, to); err != nil {
		return nil, fmt.Errorf("list reminders by range failed: %w", mapStoreError(err))
	}
	return rules, nil
}

func (r *PostgresReminderRepository) Update(ctx context.Context, rule *domain.ReminderRule) error {
	query := `
		UPDATE reminders SET
			frequency_days = $1,
			next_due_date = $2,
			updated_at = $3,
			version = version + 1
		WHERE id = $4 AND user_id = $5 AND version = $6
		RETURNING version`

	var newVersion int
	err := r.db.QueryRowxContext(ctx, query,
		rule.FrequencyDays, rule.NextDueDate, time.Now().UTC(),
		rule.ID, rule.UserID, rule.Version,
	).Scan(&newVersion)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r.missingOrConflict(ctx, r.db, rule.ID, rule.UserID)
		}
		return fmt.Errorf("update reminder failed: %w", mapStoreError(err))
	}

	rule.Version = newVersion
	return nil
}

func (r *PostgresReminderRepository) Delete(ctx context.Context, id string, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete reminder failed: %w", mapStoreError(err))
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrReminderNotFound
	}
	return nil
}

func (r *PostgresReminderRepository) AdvanceWithCompletion(ctx context.Context, rule *domain.ReminderRule, occ *domain.TaskOccurrence) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin completion: %v", domain.ErrStoreUnavailable, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = completeOccurrenceTx(ctx, tx, occ); err != nil {
		return err
	}

	var newVersion int
	err = tx.QueryRowxContext(ctx, `
		UPDATE reminders SET
			next_due_date = $1,
			updated_at = $2,
			version = version + 1
		WHERE id = $3 AND user_id = $4 AND version = $5
		RETURNING version`,
		rule.NextDueDate, time.Now().UTC(), rule.ID, rule.UserID, rule.Version,
	).Scan(&newVersion)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = r.missingOrConflict(ctx, tx, rule.ID, rule.UserID)
			return err
		}
		err = fmt.Errorf("advance reminder failed: %w", mapStoreError(err))
		return err
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("%w: commit completion: %v", domain.ErrStoreUnavailable, err)
		return err
	}

	rule.Version = newVersion
	return nil
}

func (r *PostgresReminderRepository) missingOrConflict(ctx context.Context, q sqlx.QueryerContext, id, userID string) error {
	var count int
	if err := sqlx.GetContext(ctx, q, &count, `SELECT count(*) FROM reminders WHERE id = $1 AND user_id = $2`, id, userID); err != nil {
		return fmt.Errorf("existence check failed: %w", mapStoreError(err))
	}
	if count == 0 {
		return domain.ErrReminderNotFound
	}
	return domain.ErrReminderConflict
}
