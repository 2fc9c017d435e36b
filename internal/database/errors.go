/*-------------------------------------------------------------------------
 *
 * errors.go
 *    Pool and statement errors
 *
 * Pool errors mean "database busy" and are kept apart from statement
 * errors, which mean the statement itself failed.
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronDynamic/internal/database/errors.go
 *
 *-------------------------------------------------------------------------
 */

package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

/* SQLSTATE codes inspected by callers */
const (
	UniqueViolation     = "23505"
	ForeignKeyViolation = "23503"
	NotNullViolation    = "23502"
	CheckViolation      = "23514"
)

/* PoolTimeoutError: no connection within the acquire timeout while the pool had spare capacity */
type PoolTimeoutError struct {
	Timeout time.Duration
	Waited  time.Duration
	Err     error
}

func (e *PoolTimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for a database connection (acquire timeout %s): %v", e.Waited.Round(time.Millisecond), e.Timeout, e.Err)
}

func (e *PoolTimeoutError) Unwrap() error {
	return e.Err
}

/* PoolExhaustedError: every pooled connection stayed checked out for the whole acquire timeout */
type PoolExhaustedError struct {
	Timeout time.Duration
	Waited  time.Duration
	Stats   PoolStats
}

func (e *PoolExhaustedError) Error() string {
	return fmt.Sprintf("connection pool exhausted: all %d connections busy for %s (acquire timeout %s)", e.Stats.MaxConns, e.Waited.Round(time.Millisecond), e.Timeout)
}

/* StatementError wraps a failure of the statement or its transaction */
type StatementError struct {
	SQL string
	Err error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("statement failed: %v", e.Err)
}

func (e *StatementError) Unwrap() error {
	return e.Err
}

/* IsPoolError reports whether err means no connection could be obtained */
func IsPoolError(err error) bool {
	var timeout *PoolTimeoutError
	var exhausted *PoolExhaustedError
	return errors.As(err, &timeout) || errors.As(err, &exhausted)
}

/* SQLState returns the SQLSTATE of a PostgreSQL error anywhere in the chain */
func SQLState(err error) (string, *pgconn.PgError) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr
	}
	return "", nil
}
