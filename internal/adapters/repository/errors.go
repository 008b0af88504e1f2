package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/comitanigiacomo/kanso-care-engine/internal/core/domain"
)

const (
	pgUniqueViolation   = "23505"
	pgSerializationFail = "40001"
)

// pgCode extracts the SQLSTATE from either driver: pgx in production, lib/pq in some tests.
func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pgCode(err) == pgUniqueViolation
}

// mapStoreError tags transient failures with domain.ErrStoreUnavailable so callers can retry.
func mapStoreError(err error) error {
	if err == nil {
		return nil
	}

	var netErr net.Error
	var connErr *pgconn.ConnectError
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, driver.ErrBadConn),
		errors.As(err, &connErr),
		errors.As(err, &netErr),
		pgCode(err) == pgSerializationFail:
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return err
}
