/*-------------------------------------------------------------------------
 *
 * result.go
 *    Materialized query results and pool statistics
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronDynamic/internal/database/result.go
 *
 *-------------------------------------------------------------------------
 */

package database

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

/* Result holds every row of a statement, read before the transaction commits */
type Result struct {
	Columns []string
	Rows    [][]interface{}
}

/* PoolStats is a snapshot of pool statistics */
type PoolStats struct {
	AcquiredConns        int32
	IdleConns            int32
	TotalConns           int32
	MaxConns             int32
	AcquireCount         int64
	EmptyAcquireCount    int64
	CanceledAcquireCount int64
	AcquireDuration      time.Duration
}

func collectRows(rows pgx.Rows) (*Result, error) {
	defer rows.Close()

	fields := rows.FieldDescriptions()
	result := &Result{Columns: make([]string, len(fields)), Rows: [][]interface{}{}}
	for i, fd := range fields {
		result.Columns[i] = fd.Name
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row values: %w", err)
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
