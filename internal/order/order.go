/*-------------------------------------------------------------------------
 *
 * order.go
 *    ORDER BY compilation for plain and KNN distance orderings
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronDynamic/internal/order/order.go
 *
 *-------------------------------------------------------------------------
 */

package order

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/neurondb/NeuronDynamic/internal/filter"
	"github.com/neurondb/NeuronDynamic/internal/validation"
)

/* Item is one sort key */
type Item struct {
	Field     string
	Direction filter.Direction
	Knn       *KnnClause
}

/* KnnClause orders by distance to a query vector */
type KnnClause struct {
	Query     []float64
	Distance  filter.Distance
	Direction filter.Direction
}

/* Spec is an ordered list of sort keys */
type Spec []Item

/* Mode decides how orderings implied by KNN filter predicates are applied */
type Mode string

const (
	/* ModeAuto appends implied orderings only when no explicit order is given */
	ModeAuto Mode = "auto"
	/* ModeAlways puts implied orderings first, ahead of explicit items */
	ModeAlways Mode = "always"
	/* ModeNever drops implied orderings */
	ModeNever Mode = "never"
)

/* ParseMode validates a mode name; empty means auto */
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeAlways:
		return ModeAlways, nil
	case ModeNever:
		return ModeNever, nil
	}
	return "", fmt.Errorf("unsupported knn order mode '%s' (expected auto, always or never)", s)
}

/* Options controls field resolution and implied ordering */
type Options struct {
	Aliases map[string]string
	Fields  map[string]bool
	Mode    Mode
}

/* Fragment is a compiled ORDER BY clause */
type Fragment struct {
	SQL    string
	Params []interface{}
}

type itemDocument struct {
	Field     string           `json:"field"`
	Direction string           `json:"direction"`
	Knn       *knnItemDocument `json:"knn"`
}

type knnItemDocument struct {
	Query     []float64 `json:"query"`
	Distance  string    `json:"distance"`
	Direction string    `json:"direction"`
}

/* Parse decodes an order document: a list of {field, direction, knn} objects */
func Parse(raw json.RawMessage) (Spec, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var docs []itemDocument
	if err := json.Unmarshal(trimmed, &docs); err != nil {
		return nil, &filter.SyntaxError{Path: "order_by", Reason: "expected a list of {\"field\": ..., \"direction\": \"ASC\"} objects"}
	}

	spec := make(Spec, 0, len(docs))
	for i, doc := range docs {
		path := fmt.Sprintf("order_by[%d]", i)
		if doc.Field == "" {
			return nil, &filter.SyntaxError{Path: path, Reason: "field is required"}
		}
		direction, err := filter.ParseDirection(doc.Direction)
		if err != nil {
			return nil, &filter.SyntaxError{Path: path, Reason: err.Error()}
		}
		item := Item{Field: doc.Field, Direction: direction}

		if doc.Knn != nil {
			if err := validation.ValidateVector(doc.Knn.Query, "knn.query"); err != nil {
				return nil, &filter.SyntaxError{Path: path, Reason: err.Error()}
			}
			distance, err := filter.ParseDistance(doc.Knn.Distance)
			if err != nil {
				return nil, &filter.SyntaxError{Path: path, Reason: err.Error()}
			}
			knnDirection := direction
			if doc.Knn.Direction != "" {
				if knnDirection, err = filter.ParseDirection(doc.Knn.Direction); err != nil {
					return nil, &filter.SyntaxError{Path: path, Reason: err.Error()}
				}
			}
			item.Knn = &KnnClause{Query: doc.Knn.Query, Distance: distance, Direction: knnDirection}
		}
		spec = append(spec, item)
	}
	return spec, nil
}

/*
 * Compile renders the ORDER BY clause. Implied KNN orderings come from the
 * filter compiler and are merged according to opts.Mode. An empty result is
 * ("", nil).
 */
func Compile(spec Spec, implied []filter.KnnOrder, opts Options) (Fragment, error) {
	var (
		terms  []string
		params []interface{}
	)

	mode := opts.Mode
	if mode == "" {
		mode = ModeAuto
	}

	useImplied := false
	switch mode {
	case ModeAlways:
		useImplied = true
	case ModeAuto:
		useImplied = len(spec) == 0
	}

	ordered := make(map[string]bool)
	if useImplied {
		for _, k := range implied {
			terms = append(terms, fmt.Sprintf("%s %s (?)::vector %s", k.Column, k.Operator, k.Direction))
			params = append(params, k.Vector)
			ordered[k.Field] = true
		}
	}

	for _, item := range spec {
		if ordered[item.Field] {
			continue
		}
		column, err := resolve(item.Field, opts)
		if err != nil {
			return Fragment{}, err
		}
		if item.Knn == nil {
			terms = append(terms, column+" "+string(directionOrAsc(item.Direction)))
			continue
		}
		op := item.Knn.Distance.Operator()
		if op == "" {
			op = filter.DistanceL2.Operator()
		}
		terms = append(terms, fmt.Sprintf("%s %s (?)::vector %s", column, op, directionOrAsc(item.Knn.Direction)))
		params = append(params, validation.FormatVector(item.Knn.Query))
	}

	if len(terms) == 0 {
		return Fragment{}, nil
	}
	return Fragment{SQL: "ORDER BY " + strings.Join(terms, ", "), Params: params}, nil
}

func directionOrAsc(d filter.Direction) filter.Direction {
	if d == "" {
		return filter.Asc
	}
	return d
}

func resolve(field string, opts Options) (string, error) {
	if opts.Fields != nil && !opts.Fields[field] {
		return "", &filter.UnknownFieldError{Field: field}
	}
	if qualified, ok := opts.Aliases[field]; ok {
		return filter.RenderColumnRef(qualified), nil
	}
	return validation.QuoteIdent(field), nil
}
