/*-------------------------------------------------------------------------
 *
 * errors.go
 *    Generation errors, isolated per operation or join group
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronDynamic/internal/generator/errors.go
 *
 *-------------------------------------------------------------------------
 */

package generator

import (
	"fmt"
	"strings"
)

/* JoinPathNotFoundError: no foreign key links Table to the tables already in the group */
type JoinPathNotFoundError struct {
	Group []string
	Table string
}

func (e *JoinPathNotFoundError) Error() string {
	return fmt.Sprintf("join group [%s]: no foreign key connects '%s' to an earlier table in the group", strings.Join(e.Group, ", "), e.Table)
}

/* UnknownTableError: a join group names a table the model does not contain */
type UnknownTableError struct {
	Group []string
	Table string
}

func (e *UnknownTableError) Error() string {
	return fmt.Sprintf("join group [%s]: unknown table '%s'", strings.Join(e.Group, ", "), e.Table)
}

/* Failure records one operation or join group that could not be generated */
type Failure struct {
	Name  string
	Kind  Kind
	Group []string
	Err   error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Name, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}
