/*-------------------------------------------------------------------------
 *
 * errors.go
 *    Invocation errors
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronDynamic/internal/query/errors.go
 *
 *-------------------------------------------------------------------------
 */

package query

import "fmt"

/* ConflictViolation: an insert hit a unique constraint and conflicts were to be raised */
type ConflictViolation struct {
	Operation  string
	Constraint string
	Detail     string
	Err        error
}

func (e *ConflictViolation) Error() string {
	msg := fmt.Sprintf("%s: unique constraint violation", e.Operation)
	if e.Constraint != "" {
		msg += fmt.Sprintf(" on '%s'", e.Constraint)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *ConflictViolation) Unwrap() error {
	return e.Err
}

/* RowError: an input row or value does not match the operation's row model */
type RowError struct {
	Index  int
	Field  string
	Reason string
}

func (e *RowError) Error() string {
	switch {
	case e.Index < 0 && e.Field == "":
		return e.Reason
	case e.Index < 0:
		return fmt.Sprintf("field '%s': %s", e.Field, e.Reason)
	case e.Field == "":
		return fmt.Sprintf("row %d: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("row %d, field '%s': %s", e.Index, e.Field, e.Reason)
}
