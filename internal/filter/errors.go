/*-------------------------------------------------------------------------
 *
 * errors.go
 *    Filter validation errors
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronDynamic/internal/filter/errors.go
 *
 *-------------------------------------------------------------------------
 */

package filter

import "fmt"

/* ReservedKeywordError: a flat field map used AND, OR or NOT as a field name */
type ReservedKeywordError struct {
	Key string
}

func (e *ReservedKeywordError) Error() string {
	return fmt.Sprintf("'%s' is a logical keyword and cannot be used as a field name alongside other fields; wrap field conditions in {\"%s\": [...]} instead", e.Key, e.Key)
}

/* UnknownFieldError: the filter names a field the operation does not expose */
type UnknownFieldError struct {
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field '%s'", e.Field)
}

/* OperandError: an operator received operands of the wrong shape */
type OperandError struct {
	Field  string
	Op     Op
	Reason string
}

func (e *OperandError) Error() string {
	return fmt.Sprintf("invalid operand for '%s' on field '%s': %s", e.Op, e.Field, e.Reason)
}

/* SyntaxError: the filter document does not follow the grammar */
type SyntaxError struct {
	Path   string
	Reason string
}

func (e *SyntaxError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("invalid filter: %s", e.Reason)
	}
	return fmt.Sprintf("invalid filter at %s: %s", e.Path, e.Reason)
}
