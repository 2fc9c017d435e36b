/*-------------------------------------------------------------------------
 *
 * compile.go
 *    Filter expression to SQL predicate compiler
 *
 * Emits '?' placeholders; parameters are appended in exactly the order
 * their placeholders appear in the fragment, depth first, left to right.
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronDynamic/internal/filter/compile.go
 *
 *-------------------------------------------------------------------------
 */

package filter

import (
	"fmt"
	"strings"

	"github.com/neurondb/NeuronDynamic/internal/validation"
)

/* Options controls field resolution */
type Options struct {
	/* Aliases maps caller-facing names to qualified columns (table.column) */
	Aliases map[string]string
	/* Fields, when non-nil, is the set of names a filter may reference */
	Fields map[string]bool
}

/* KnnOrder is the ordering implied by a KNN predicate */
type KnnOrder struct {
	Field     string
	Column    string
	Operator  string
	Vector    string
	Direction Direction
}

/* Fragment is a compiled predicate */
type Fragment struct {
	SQL    string
	Params []interface{}
	Knn    []KnnOrder
}

type compiler struct {
	opts   Options
	params []interface{}
	knn    []KnnOrder
}

/* Compile compiles a filter; a nil filter compiles to an empty fragment */
func Compile(e Expr, opts Options) (Fragment, error) {
	if e == nil {
		return Fragment{}, nil
	}
	c := &compiler{opts: opts}
	sql, err := c.expr(e, false)
	if err != nil {
		return Fragment{}, err
	}
	return Fragment{SQL: sql, Params: c.params, Knn: c.knn}, nil
}

func (c *compiler) expr(e Expr, nested bool) (string, error) {
	switch n := e.(type) {
	case *Logical:
		return c.logical(n, nested)
	case *FieldSet:
		return c.fieldSet(n, nested)
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("unsupported filter node %T", e)
	}
}

func (c *compiler) logical(n *Logical, nested bool) (string, error) {
	var parts []string
	for _, g := range []struct {
		children []Expr
		sep      string
	}{{n.And, " AND "}, {n.Or, " OR "}} {
		s, err := c.group(g.children, g.sep)
		if err != nil {
			return "", err
		}
		if s != "" {
			parts = append(parts, s)
		}
	}
	if n.Not != nil {
		s, err := c.expr(n.Not, false)
		if err != nil {
			return "", err
		}
		if s != "" {
			parts = append(parts, "NOT ("+s+")")
		}
	}

	joined := strings.Join(parts, " AND ")
	if nested && len(parts) > 1 {
		return "(" + joined + ")", nil
	}
	return joined, nil
}

func (c *compiler) group(children []Expr, sep string) (string, error) {
	var parts []string
	for _, child := range children {
		s, err := c.expr(child, true)
		if err != nil {
			return "", err
		}
		if s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return "", nil
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

func (c *compiler) fieldSet(n *FieldSet, nested bool) (string, error) {
	var parts []string
	for _, p := range n.Predicates {
		s, err := c.predicate(p)
		if err != nil {
			return "", err
		}
		if s != "" {
			parts = append(parts, s)
		}
	}
	joined := strings.Join(parts, " AND ")
	if nested && len(parts) > 1 {
		return "(" + joined + ")", nil
	}
	return joined, nil
}

func (c *compiler) predicate(p Predicate) (string, error) {
	column, err := c.resolve(p.FieldName())
	if err != nil {
		return "", err
	}

	switch pr := p.(type) {
	case *Comparison:
		return c.comparison(column, pr)
	case *Knn:
		vector := validation.FormatVector(pr.Query)
		op := pr.Distance.Operator()
		if op == "" {
			return "", &OperandError{Field: pr.Field, Op: OpKnn, Reason: fmt.Sprintf("unsupported distance '%s'", pr.Distance)}
		}
		direction := pr.Direction
		if direction == "" {
			direction = Asc
		}
		c.knn = append(c.knn, KnnOrder{Field: pr.Field, Column: column, Operator: op, Vector: vector, Direction: direction})
		if pr.Threshold == nil {
			return "", nil
		}
		c.params = append(c.params, vector, *pr.Threshold)
		return fmt.Sprintf("%s %s (?)::vector < ?", column, op), nil
	default:
		return "", fmt.Errorf("unsupported predicate %T", p)
	}
}

func (c *compiler) comparison(column string, p *Comparison) (string, error) {
	if sqlOp, ok := binarySQL[p.Op]; ok {
		if len(p.Operands) != 1 {
			return "", &OperandError{Field: p.Field, Op: p.Op, Reason: "expected a single value"}
		}
		c.params = append(c.params, p.Operands[0])
		return fmt.Sprintf("%s %s ?", column, sqlOp), nil
	}

	switch p.Op {
	case OpIn, OpNotIn:
		if len(p.Operands) == 0 {
			if p.Op == OpIn {
				return "FALSE", nil
			}
			return "TRUE", nil
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(p.Operands)), ", ")
		c.params = append(c.params, p.Operands...)
		keyword := "IN"
		if p.Op == OpNotIn {
			keyword = "NOT IN"
		}
		return fmt.Sprintf("%s %s (%s)", column, keyword, placeholders), nil

	case OpBetween:
		if len(p.Operands) != 2 {
			return "", &OperandError{Field: p.Field, Op: p.Op, Reason: "expected exactly two values [low, high]"}
		}
		c.params = append(c.params, p.Operands[0], p.Operands[1])
		return fmt.Sprintf("%s BETWEEN ? AND ?", column), nil

	case OpIsNull:
		isNull := true
		if len(p.Operands) == 1 {
			if b, ok := p.Operands[0].(bool); ok {
				isNull = b
			}
		}
		if isNull {
			return column + " IS NULL", nil
		}
		return column + " IS NOT NULL", nil
	}
	return "", &OperandError{Field: p.Field, Op: p.Op, Reason: "unsupported operator"}
}

/* resolve validates a caller-facing name and renders the column it refers to */
func (c *compiler) resolve(field string) (string, error) {
	if c.opts.Fields != nil && !c.opts.Fields[field] {
		return "", &UnknownFieldError{Field: field}
	}
	if qualified, ok := c.opts.Aliases[field]; ok {
		return RenderColumnRef(qualified), nil
	}
	return validation.QuoteIdent(field), nil
}

/* RenderColumnRef renders "table.column" or "schema.table.column", quoting parts as needed */
func RenderColumnRef(qualified string) string {
	i := strings.LastIndex(qualified, ".")
	if i < 0 {
		return validation.QuoteIdent(qualified)
	}
	column := validation.QuoteIdent(qualified[i+1:])
	first, second, ok := validation.SplitQualified(qualified[:i])
	if !ok {
		return validation.QuoteIdent(first) + "." + column
	}
	return validation.QuoteQualified(first, second) + "." + column
}
