/*-------------------------------------------------------------------------
 *
 * executor.go
 *    Statement assembly and execution for operation descriptors
 *
 * Statements are assembled with '?' placeholders in parameter order and
 * renumbered by Rebind right before they reach the database. Each call
 * executes exactly one statement in its own transaction.
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronDynamic/internal/query/executor.go
 *
 *-------------------------------------------------------------------------
 */

package query

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/neurondb/NeuronDynamic/internal/database"
	"github.com/neurondb/NeuronDynamic/internal/filter"
	"github.com/neurondb/NeuronDynamic/internal/generator"
	"github.com/neurondb/NeuronDynamic/internal/logging"
	"github.com/neurondb/NeuronDynamic/internal/order"
	"github.com/neurondb/NeuronDynamic/internal/schema"
	"github.com/neurondb/NeuronDynamic/internal/validation"
)

/* Statement is an assembled statement with '?' placeholders */
type Statement struct {
	SQL    string
	Params []interface{}
}

/* SelectRequest carries the optional parts of a select */
type SelectRequest struct {
	Filter filter.Expr
	Order  order.Spec
	Limit  *int
}

/* Executor runs descriptors against the database */
type Executor struct {
	db      database.Querier
	logger  *logging.Logger
	knnMode order.Mode
}

/* NewExecutor creates an executor; knnMode decides how KNN filters imply ordering */
func NewExecutor(db database.Querier, logger *logging.Logger, knnMode order.Mode) *Executor {
	if logger == nil {
		logger = logging.Nop()
	}
	if knnMode == "" {
		knnMode = order.ModeAuto
	}
	return &Executor{db: db, logger: logger, knnMode: knnMode}
}

func expectKind(d *generator.OperationDescriptor, kinds ...generator.Kind) error {
	for _, k := range kinds {
		if d.Kind == k {
			return nil
		}
	}
	return fmt.Errorf("operation %s is a %s operation", d.Name, d.Kind)
}

/* BuildInsert assembles a multi-row insert; rows must match the shape exactly */
func BuildInsert(d *generator.OperationDescriptor, rows []map[string]interface{}, raiseOnConflict bool) (Statement, error) {
	if err := expectKind(d, generator.KindInsert); err != nil {
		return Statement{}, err
	}

	fields := d.Shape.Fields
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = validation.QuoteIdent(f.Column)
	}
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(fields)), ", ") + ")"

	params := make([]interface{}, 0, len(rows)*len(fields))
	tuples := make([]string, len(rows))
	for i, row := range rows {
		for key := range row {
			if _, ok := d.Shape.Field(key); !ok {
				return Statement{}, &RowError{Index: i, Field: key, Reason: "unknown field"}
			}
		}
		for _, f := range fields {
			v, present := row[f.Name]
			if !present {
				return Statement{}, &RowError{Index: i, Field: f.Name, Reason: "missing field"}
			}
			p, err := toParam(v, f)
			if err != nil {
				return Statement{}, &RowError{Index: i, Field: f.Name, Reason: err.Error()}
			}
			params = append(params, p)
		}
		tuples[i] = tuple
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES %s", d.Target, strings.Join(columns, ", "), strings.Join(tuples, ", "))
	if !raiseOnConflict {
		b.WriteString(" ON CONFLICT DO NOTHING")
	}
	if d.Returning != "" {
		b.WriteString(" RETURNING " + validation.QuoteIdent(d.Returning))
	}
	return Statement{SQL: b.String(), Params: params}, nil
}

/*
 * Insert inserts a batch and returns the values of the returning column.
 * An empty batch returns an empty list without touching the database.
 */
func (e *Executor) Insert(ctx context.Context, d *generator.OperationDescriptor, rows []map[string]interface{}, raiseOnConflict bool) ([]interface{}, error) {
	if len(rows) == 0 {
		return []interface{}{}, nil
	}
	stmt, err := BuildInsert(d, rows, raiseOnConflict)
	if err != nil {
		return nil, err
	}

	ids := []interface{}{}
	if d.Returning == "" {
		_, err = e.exec(ctx, d, stmt)
	} else {
		var res *database.Result
		res, err = e.query(ctx, d, stmt)
		if err == nil {
			returning := generator.ShapeField{Name: d.Returning}
			if c, ok := d.Shape.Field(d.Returning); ok {
				returning = c
			}
			for _, r := range res.Rows {
				if len(r) == 0 {
					continue
				}
				v, nerr := normalize(r[0], returning)
				if nerr != nil {
					return nil, nerr
				}
				ids = append(ids, v)
			}
		}
	}
	if err != nil {
		if state, pgErr := database.SQLState(err); state == database.UniqueViolation && raiseOnConflict {
			return nil, &ConflictViolation{Operation: d.Name, Constraint: pgErr.ConstraintName, Detail: pgErr.Detail, Err: err}
		}
		return nil, err
	}
	return ids, nil
}

/* BuildSelect assembles a select: WHERE params, then ORDER params, then LIMIT */
func (e *Executor) BuildSelect(d *generator.OperationDescriptor, req SelectRequest) (Statement, error) {
	if err := expectKind(d, generator.KindSelect, generator.KindSelectJoined); err != nil {
		return Statement{}, err
	}

	cols := make([]string, len(d.Shape.Fields))
	for i, f := range d.Shape.Fields {
		if f.Column == f.Name {
			cols[i] = validation.QuoteIdent(f.Column)
		} else {
			cols[i] = filter.RenderColumnRef(f.Column) + " AS " + validation.QuoteIdent(f.Name)
		}
	}

	fields := d.FilterFields()
	where, err := filter.Compile(req.Filter, filter.Options{Aliases: d.Aliases, Fields: fields})
	if err != nil {
		return Statement{}, err
	}
	orderBy, err := order.Compile(req.Order, where.Knn, order.Options{Aliases: d.Aliases, Fields: fields, Mode: e.knnMode})
	if err != nil {
		return Statement{}, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s %s", strings.Join(cols, ", "), d.JoinClause)
	params := make([]interface{}, 0, len(where.Params)+len(orderBy.Params)+1)
	if where.SQL != "" {
		b.WriteString(" WHERE " + where.SQL)
		params = append(params, where.Params...)
	}
	if orderBy.SQL != "" {
		b.WriteString(" " + orderBy.SQL)
		params = append(params, orderBy.Params...)
	}
	if req.Limit != nil {
		if err := validation.ValidateLimit(*req.Limit); err != nil {
			return Statement{}, &RowError{Index: -1, Field: "limit", Reason: err.Error()}
		}
		b.WriteString(" LIMIT ?")
		params = append(params, *req.Limit)
	}
	return Statement{SQL: b.String(), Params: params}, nil
}

/* Select runs a select or joined select and maps rows into the row model */
func (e *Executor) Select(ctx context.Context, d *generator.OperationDescriptor, req SelectRequest) ([]*Row, error) {
	stmt, err := e.BuildSelect(d, req)
	if err != nil {
		return nil, err
	}
	res, err := e.query(ctx, d, stmt)
	if err != nil {
		return nil, err
	}

	fields := d.Shape.Fields
	if len(fields) != len(res.Columns) {
		fields = make([]generator.ShapeField, len(res.Columns))
		for i, c := range res.Columns {
			fields[i] = generator.ShapeField{Name: c, Column: c}
		}
	}

	rows := make([]*Row, 0, len(res.Rows))
	for _, values := range res.Rows {
		row := NewRow()
		for i, f := range fields {
			var v interface{}
			if i < len(values) {
				v = values[i]
			}
			n, err := normalize(v, f)
			if err != nil {
				return nil, fmt.Errorf("failed to decode field '%s': %w", f.Name, err)
			}
			row.Set(f.Name, n)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

/*
 * BuildUpdate assembles an update from the fields present in values, in
 * row model order. ok is false when no field is present.
 */
func BuildUpdate(d *generator.OperationDescriptor, values map[string]interface{}, where filter.Expr) (stmt Statement, ok bool, err error) {
	if err := expectKind(d, generator.KindUpdate); err != nil {
		return Statement{}, false, err
	}
	for key := range values {
		if _, known := d.Shape.Field(key); !known {
			return Statement{}, false, &RowError{Index: -1, Field: key, Reason: "unknown field"}
		}
	}

	var sets []string
	var params []interface{}
	for _, f := range d.Shape.Fields {
		v, present := values[f.Name]
		if !present {
			continue
		}
		p, err := toParam(v, f)
		if err != nil {
			return Statement{}, false, &RowError{Index: -1, Field: f.Name, Reason: err.Error()}
		}
		sets = append(sets, validation.QuoteIdent(f.Column)+" = ?")
		params = append(params, p)
	}
	if len(sets) == 0 {
		return Statement{}, false, nil
	}

	frag, err := filter.Compile(where, filter.Options{Fields: d.FilterFields()})
	if err != nil {
		return Statement{}, false, err
	}
	sql := fmt.Sprintf("UPDATE %s SET %s", d.Target, strings.Join(sets, ", "))
	if frag.SQL != "" {
		sql += " WHERE " + frag.SQL
		params = append(params, frag.Params...)
	}
	return Statement{SQL: sql, Params: params}, true, nil
}

/* Update applies a partial row; with no fields present nothing is executed */
func (e *Executor) Update(ctx context.Context, d *generator.OperationDescriptor, values map[string]interface{}, where filter.Expr) (int64, error) {
	stmt, ok, err := BuildUpdate(d, values, where)
	if err != nil || !ok {
		return 0, err
	}
	return e.exec(ctx, d, stmt)
}

/* BuildDelete assembles a delete */
func BuildDelete(d *generator.OperationDescriptor, where filter.Expr) (Statement, error) {
	if err := expectKind(d, generator.KindDelete); err != nil {
		return Statement{}, err
	}
	frag, err := filter.Compile(where, filter.Options{Fields: d.FilterFields()})
	if err != nil {
		return Statement{}, err
	}
	sql := "DELETE FROM " + d.Target
	if frag.SQL != "" {
		sql += " WHERE " + frag.SQL
	}
	return Statement{SQL: sql, Params: frag.Params}, nil
}

/* Delete removes matching rows and returns the affected count */
func (e *Executor) Delete(ctx context.Context, d *generator.OperationDescriptor, where filter.Expr) (int64, error) {
	stmt, err := BuildDelete(d, where)
	if err != nil {
		return 0, err
	}
	return e.exec(ctx, d, stmt)
}

func (e *Executor) exec(ctx context.Context, d *generator.OperationDescriptor, stmt Statement) (int64, error) {
	start := time.Now()
	sql := Rebind(stmt.SQL)
	affected, err := e.db.Exec(ctx, sql, stmt.Params...)
	e.logStatement(d, sql, len(stmt.Params), start, err)
	return affected, err
}

func (e *Executor) query(ctx context.Context, d *generator.OperationDescriptor, stmt Statement) (*database.Result, error) {
	start := time.Now()
	sql := Rebind(stmt.SQL)
	res, err := e.db.Query(ctx, sql, stmt.Params...)
	e.logStatement(d, sql, len(stmt.Params), start, err)
	return res, err
}

func (e *Executor) logStatement(d *generator.OperationDescriptor, sql string, params int, start time.Time, err error) {
	fields := map[string]interface{}{
		"operation":   d.Name,
		"sql":         sql,
		"params":      params,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	e.logger.Debug("Statement executed", fields)
}

/* toParam converts a decoded JSON value into a driver parameter for the field */
func toParam(v interface{}, f generator.ShapeField) (interface{}, error) {
	if v == nil {
		if !f.Type.Optional {
			return nil, fmt.Errorf("null is not allowed")
		}
		return nil, nil
	}

	if isPgVector(f.SQLType) {
		vec, err := toVector(v)
		if err != nil {
			return nil, err
		}
		if err := validation.ValidateVector(vec, f.Name); err != nil {
			return nil, err
		}
		return validation.FormatVector(vec), nil
	}

	if f.Type.Kind == schema.KindBytes {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected a base64 string")
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid base64: %w", err)
		}
		return b, nil
	}
	return v, nil
}

func toVector(v interface{}) ([]float64, error) {
	switch x := v.(type) {
	case []float64:
		return x, nil
	case string:
		return validation.ParseVector(x)
	case []interface{}:
		out := make([]float64, len(x))
		for i, e := range x {
			switch n := e.(type) {
			case float64:
				out[i] = n
			case int64:
				out[i] = float64(n)
			case int:
				out[i] = float64(n)
			default:
				return nil, fmt.Errorf("vector element %d is not a number", i)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected a list of numbers")
}
