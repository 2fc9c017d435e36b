/*-------------------------------------------------------------------------
 *
 * parse.go
 *    Filter document decoding
 *
 * Objects are decoded member by member so that field order in the caller's
 * document decides predicate order, and with it parameter order.
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronDynamic/internal/filter/parse.go
 *
 *-------------------------------------------------------------------------
 */

package filter

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/neurondb/NeuronDynamic/internal/validation"
)

type member struct {
	key   string
	value json.RawMessage
}

/* Parse decodes a filter document; null or empty input means no filter */
func Parse(raw json.RawMessage) (Expr, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	return parseNode(trimmed, "$")
}

func parseNode(raw json.RawMessage, path string) (Expr, error) {
	members, err := decodeObject(raw, path)
	if err != nil {
		return nil, err
	}

	reserved := 0
	firstReserved := ""
	for _, m := range members {
		if isReserved(m.key) {
			reserved++
			if firstReserved == "" {
				firstReserved = m.key
			}
		}
	}

	switch {
	case reserved == 0:
		return parseFieldSet(members, path)
	case reserved < len(members):
		return nil, &ReservedKeywordError{Key: firstReserved}
	}

	node := &Logical{}
	for _, m := range members {
		childPath := path + "." + m.key
		switch m.key {
		case KeyAnd, KeyOr:
			var items []json.RawMessage
			if err := json.Unmarshal(m.value, &items); err != nil {
				return nil, &SyntaxError{Path: childPath, Reason: "expected an array of filters"}
			}
			children := make([]Expr, 0, len(items))
			for i, item := range items {
				child, err := parseNode(item, fmt.Sprintf("%s[%d]", childPath, i))
				if err != nil {
					return nil, err
				}
				children = append(children, child)
			}
			if m.key == KeyAnd {
				node.And = children
			} else {
				node.Or = children
			}
		case KeyNot:
			child, err := parseNode(m.value, childPath)
			if err != nil {
				return nil, err
			}
			node.Not = child
		}
	}
	return node, nil
}

func parseFieldSet(members []member, path string) (Expr, error) {
	set := &FieldSet{}
	for _, m := range members {
		preds, err := parseField(m.key, m.value, path+"."+m.key)
		if err != nil {
			return nil, err
		}
		set.Predicates = append(set.Predicates, preds...)
	}
	return set, nil
}

func parseField(field string, raw json.RawMessage, path string) ([]Predicate, error) {
	members, err := decodeObject(raw, path)
	if err != nil {
		return nil, &SyntaxError{Path: path, Reason: "operators for a field must be an object such as {\"eq\": 1}"}
	}
	if len(members) == 0 {
		return nil, &SyntaxError{Path: path, Reason: "no operator given"}
	}

	ops := make(map[Op]json.RawMessage, len(members))
	for _, m := range members {
		op := Op(m.key)
		if op == "in_" {
			op = OpIn
		}
		if _, known := binarySQL[op]; !known {
			switch op {
			case OpIn, OpNotIn, OpBetween, OpIsNull, OpKnn:
			default:
				return nil, &SyntaxError{Path: path, Reason: fmt.Sprintf("unknown operator '%s'", m.key)}
			}
		}
		ops[op] = m.value
	}

	var preds []Predicate
	for _, op := range opOrder {
		value, ok := ops[op]
		if !ok {
			continue
		}
		pred, err := parseOperator(field, op, value)
		if err != nil {
			return nil, err
		}
		preds = append(preds, pred)
	}
	return preds, nil
}

func parseOperator(field string, op Op, raw json.RawMessage) (Predicate, error) {
	switch op {
	case OpIn, OpNotIn:
		v, err := decodeValue(raw)
		if err != nil {
			return nil, &OperandError{Field: field, Op: op, Reason: err.Error()}
		}
		list, ok := v.([]interface{})
		if !ok {
			return nil, &OperandError{Field: field, Op: op, Reason: "expected a list"}
		}
		return &Comparison{Field: field, Op: op, Operands: list}, nil

	case OpBetween:
		v, err := decodeValue(raw)
		if err != nil {
			return nil, &OperandError{Field: field, Op: op, Reason: err.Error()}
		}
		list, ok := v.([]interface{})
		if !ok || len(list) != 2 {
			return nil, &OperandError{Field: field, Op: op, Reason: "expected exactly two values [low, high]"}
		}
		return &Comparison{Field: field, Op: op, Operands: list}, nil

	case OpIsNull:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, &OperandError{Field: field, Op: op, Reason: "expected true or false"}
		}
		return &Comparison{Field: field, Op: op, Operands: []interface{}{b}}, nil

	case OpKnn:
		return parseKnn(field, raw)
	}

	v, err := decodeValue(raw)
	if err != nil {
		return nil, &OperandError{Field: field, Op: op, Reason: err.Error()}
	}
	if v == nil {
		return nil, &OperandError{Field: field, Op: op, Reason: "null never compares equal; use {\"is_null\": true}"}
	}
	return &Comparison{Field: field, Op: op, Operands: []interface{}{v}}, nil
}

type knnDocument struct {
	Query     []float64 `json:"query"`
	Distance  string    `json:"distance"`
	Threshold *float64  `json:"threshold"`
	Direction string    `json:"direction"`
}

func parseKnn(field string, raw json.RawMessage) (Predicate, error) {
	var doc knnDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &OperandError{Field: field, Op: OpKnn, Reason: "expected {\"query\": [..], \"distance\": \"l2\", \"threshold\": 0.5}"}
	}
	if err := validation.ValidateVector(doc.Query, "query"); err != nil {
		return nil, &OperandError{Field: field, Op: OpKnn, Reason: err.Error()}
	}
	distance, err := ParseDistance(doc.Distance)
	if err != nil {
		return nil, &OperandError{Field: field, Op: OpKnn, Reason: err.Error()}
	}
	direction, err := ParseDirection(doc.Direction)
	if err != nil {
		return nil, &OperandError{Field: field, Op: OpKnn, Reason: err.Error()}
	}
	return &Knn{
		Field:     field,
		Query:     doc.Query,
		Distance:  distance,
		Threshold: doc.Threshold,
		Direction: direction,
	}, nil
}

func decodeObject(raw json.RawMessage, path string) ([]member, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, &SyntaxError{Path: path, Reason: err.Error()}
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, &SyntaxError{Path: path, Reason: "expected an object"}
	}

	var members []member
	seen := make(map[string]bool)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, &SyntaxError{Path: path, Reason: err.Error()}
		}
		key, _ := keyTok.(string)
		if seen[key] {
			return nil, &SyntaxError{Path: path, Reason: fmt.Sprintf("duplicate key '%s'", key)}
		}
		seen[key] = true

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, &SyntaxError{Path: path + "." + key, Reason: err.Error()}
		}
		members = append(members, member{key: key, value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, &SyntaxError{Path: path, Reason: err.Error()}
	}
	return members, nil
}

/* decodeValue decodes an operand, keeping integers as int64 */
func decodeValue(raw json.RawMessage) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return NormalizeNumbers(v), nil
}

/* NormalizeNumbers converts json.Number values to int64 or float64, recursively */
func NormalizeNumbers(v interface{}) interface{} {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case []interface{}:
		for i := range x {
			x[i] = NormalizeNumbers(x[i])
		}
		return x
	case map[string]interface{}:
		for k := range x {
			x[k] = NormalizeNumbers(x[k])
		}
		return x
	}
	return v
}
