package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/comitanigiacomo/kanso-care-engine/internal/core/domain"
)

var _ domain.TaskHistoryRepository = (*PostgresTaskHistoryRepository)(nil)

type PostgresTaskHistoryRepository struct {
	db *sqlx.DB
}

func NewPostgresTaskHistoryRepository(db *sqlx.DB) *PostgresTaskHistoryRepository {
	return &PostgresTaskHistoryRepository{db: db}
}

const occurrenceColumns = `id, reminder_id, user_id, plant_id, care_type, scheduled_date, is_completed, completed_date, created_at, updated_at`

func (r *PostgresTaskHistoryRepository) CreateIfAbsent(ctx context.Context, occ *domain.TaskOccurrence) (bool, error) {
	query := `
		INSERT INTO task_history (` + occurrenceColumns + `)
		VALUES (
			:id, :reminder_id, :user_id, :plant_id, :care_type, :scheduled_date,
			:is_completed, :completed_date, :created_at, :updated_at
		)
		ON CONFLICT ON CONSTRAINT task_history_rule_day_key DO NOTHING`

	res, err := r.db.NamedExecContext(ctx, query, occ)
	if err != nil {
		return false, fmt.Errorf("failed to insert task occurrence: %w", mapStoreError(err))
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (r *PostgresTaskHistoryRepository) GetByID(ctx context.Context, id string) (*domain.TaskOccurrence, error) {
	var occ domain.TaskOccurrence
	query := `SELECT ` + occurrenceColumns + ` FROM task_history WHERE id = $1`

	if err := r.db.GetContext(ctx, &occ, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOccurrenceNotFound
		}
		return nil, fmt.Errorf("task occurrence lookup failed: %w", mapStoreError(err))
	}
	return &occ, nil
}

func (r *PostgresTaskHistoryRepository) ListByUserIDAndDateRange(ctx context.Context, userID string, from, to domain.Date) ([]*domain.TaskOccurrence, error) {
	list := []*domain.TaskOccurrence{}
	query := `
		SELECT ` + occurrenceColumns + ` FROM task_history
		WHERE user_id = $1
		  AND scheduled_date >= $2
		  AND scheduled_date <= $3
		ORDER BY scheduled_date ASC, plant_id ASC, care_type ASC`

	if err := r.db.SelectContext(ctx, &list, query, userID, from, to); err != nil {
		return nil, fmt.Errorf("list task history failed: %w", mapStoreError(err))
	}
	return list, nil
}

func (r *PostgresTaskHistoryRepository) MarkCompleted(ctx context.Context, occ *domain.TaskOccurrence) error {
	return completeOccurrenceTx(ctx, r.db, occ)
}

// completeOccurrenceTx flips a pending occurrence to completed.
// The is_completed guard makes a concurrent double completion lose with ErrAlreadyCompleted.
func completeOccurrenceTx(ctx context.Context, ex sqlx.ExtContext, occ *domain.TaskOccurrence) error {
	res, err := ex.ExecContext(ctx, `
		UPDATE task_history SET
			is_completed = TRUE,
			completed_date = $1,
			updated_at = $2
		WHERE id = $3 AND user_id = $4 AND is_completed = FALSE`,
		occ.CompletedDate, occ.UpdatedAt, occ.ID, occ.UserID,
	)
	if err != nil {
		return fmt.Errorf("complete task occurrence failed: %w", mapStoreError(err))
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 1 {
		return nil
	}

	var completed bool
	err = sqlx.GetContext(ctx, ex, &completed,
		`SELECT is_completed FROM task_history WHERE id = $1 AND user_id = $2`, occ.ID, occ.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrOccurrenceNotFound
		}
		return fmt.Errorf("existence check failed: %w", mapStoreError(err))
	}
	if completed {
		return domain.ErrAlreadyCompleted
	}
	return fmt.Errorf("task occurrence %s was not updated", occ.ID)
}
