/*-------------------------------------------------------------------------
 *
 * errors.go
 *    Mapping of operation errors to tool error results
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronDynamic/internal/tools/errors.go
 *
 *-------------------------------------------------------------------------
 */

package tools

import (
	"errors"
	"fmt"

	"github.com/neurondb/NeuronDynamic/internal/database"
	"github.com/neurondb/NeuronDynamic/internal/filter"
	"github.com/neurondb/NeuronDynamic/internal/query"
)

/* ArgumentError: the call arguments do not match the tool's input schema */
type ArgumentError struct {
	Argument string
	Reason   string
}

func (e *ArgumentError) Error() string {
	if e.Argument == "" {
		return fmt.Sprintf("invalid arguments: %s", e.Reason)
	}
	return fmt.Sprintf("invalid argument '%s': %s", e.Argument, e.Reason)
}

/* errorResult converts an operation error into a tool error result */
func errorResult(err error) *ToolResult {
	var (
		argErr      *ArgumentError
		reserved    *filter.ReservedKeywordError
		unknown     *filter.UnknownFieldError
		operand     *filter.OperandError
		syntax      *filter.SyntaxError
		rowErr      *query.RowError
		conflict    *query.ConflictViolation
		timeout     *database.PoolTimeoutError
		exhausted   *database.PoolExhaustedError
		statementEr *database.StatementError
	)

	switch {
	case errors.As(err, &argErr):
		return Error(err.Error(), CodeInvalidArguments, map[string]interface{}{"argument": argErr.Argument})
	case errors.As(err, &reserved):
		return Error(err.Error(), CodeReservedKeyword, map[string]interface{}{"key": reserved.Key})
	case errors.As(err, &unknown):
		return Error(err.Error(), CodeInvalidFilter, map[string]interface{}{"field": unknown.Field})
	case errors.As(err, &operand):
		return Error(err.Error(), CodeInvalidFilter, map[string]interface{}{"field": operand.Field, "operator": string(operand.Op)})
	case errors.As(err, &syntax):
		return Error(err.Error(), CodeInvalidFilter, map[string]interface{}{"path": syntax.Path})
	case errors.As(err, &rowErr):
		details := map[string]interface{}{"field": rowErr.Field}
		if rowErr.Index >= 0 {
			details["row"] = rowErr.Index
		}
		return Error(err.Error(), CodeInvalidRow, details)
	case errors.As(err, &conflict):
		return Error(err.Error(), CodeConflict, map[string]interface{}{"constraint": conflict.Constraint})
	case errors.As(err, &timeout):
		return Error(err.Error(), CodePoolTimeout, map[string]interface{}{"acquire_timeout": timeout.Timeout.String()})
	case errors.As(err, &exhausted):
		return Error(err.Error(), CodePoolExhausted, map[string]interface{}{
			"acquire_timeout": exhausted.Timeout.String(),
			"max_conns":       exhausted.Stats.MaxConns,
		})
	}

	var details map[string]interface{}
	if state, pgErr := database.SQLState(err); pgErr != nil {
		details = map[string]interface{}{"sqlstate": state}
		if pgErr.ConstraintName != "" {
			details["constraint"] = pgErr.ConstraintName
		}
	} else if errors.As(err, &statementEr) {
		details = map[string]interface{}{"statement": statementEr.SQL}
	}
	return Error(err.Error(), CodeExecutionError, details)
}
