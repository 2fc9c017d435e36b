/*-------------------------------------------------------------------------
 *
 * errors.go
 *    Schema loading errors
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronDynamic/internal/schema/errors.go
 *
 *-------------------------------------------------------------------------
 */

package schema

import "fmt"

/* IntrospectionError reports a failed catalog query; the regeneration pass is aborted */
type IntrospectionError struct {
	Query string
	Err   error
}

func (e *IntrospectionError) Error() string {
	return fmt.Sprintf("schema introspection failed while reading %s: %v", e.Query, e.Err)
}

func (e *IntrospectionError) Unwrap() error {
	return e.Err
}

/* DDLParseError reports DDL text that yields no usable schema model */
type DDLParseError struct {
	LineNo int
	Line   string
	Reason string
}

func (e *DDLParseError) Error() string {
	if e.LineNo > 0 {
		return fmt.Sprintf("DDL parse error at line %d (%q): %s", e.LineNo, e.Line, e.Reason)
	}
	return fmt.Sprintf("DDL parse error: %s", e.Reason)
}
