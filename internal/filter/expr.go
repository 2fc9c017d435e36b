/*-------------------------------------------------------------------------
 *
 * expr.go
 *    Filter expression tree
 *
 * A filter is either a Logical node (AND / OR / NOT over sub-filters) or a
 * FieldSet, the flat field -> operators map whose predicates are AND-ed.
 * Both node kinds and both predicate kinds are closed sets: the compiler
 * switches over them exhaustively.
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronDynamic/internal/filter/expr.go
 *
 *-------------------------------------------------------------------------
 */

package filter

import (
	"fmt"
	"strings"
)

/* Expr is *Logical or *FieldSet */
type Expr interface {
	exprNode()
}

/* Logical combines sub-filters; any of the three parts may be set */
type Logical struct {
	And []Expr
	Or  []Expr
	Not Expr
}

/* FieldSet is the flat field -> operators form, predicates AND-ed in order */
type FieldSet struct {
	Predicates []Predicate
}

func (*Logical) exprNode()  {}
func (*FieldSet) exprNode() {}

/* Predicate is *Comparison or *Knn */
type Predicate interface {
	FieldName() string
	predicateNode()
}

/* Comparison applies one operator to one field */
type Comparison struct {
	Field    string
	Op       Op
	Operands []interface{}
}

/* Knn is a vector similarity predicate with an optional distance threshold */
type Knn struct {
	Field     string
	Query     []float64
	Distance  Distance
	Threshold *float64
	Direction Direction
}

func (c *Comparison) FieldName() string { return c.Field }
func (k *Knn) FieldName() string        { return k.Field }
func (*Comparison) predicateNode()      {}
func (*Knn) predicateNode()             {}

/* Op is a comparison operator name as used in the filter grammar */
type Op string

const (
	OpEq       Op = "eq"
	OpNe       Op = "ne"
	OpGt       Op = "gt"
	OpGte      Op = "gte"
	OpLt       Op = "lt"
	OpLte      Op = "lte"
	OpLike     Op = "like"
	OpNotLike  Op = "not_like"
	OpILike    Op = "ilike"
	OpNotILike Op = "not_ilike"
	OpIn       Op = "in"
	OpNotIn    Op = "not_in"
	OpBetween  Op = "between"
	OpIsNull   Op = "is_null"
	OpKnn      Op = "knn"
)

/* opOrder is the emission order for operators on one field */
var opOrder = []Op{
	OpEq, OpNe, OpGt, OpGte, OpLt, OpLte,
	OpLike, OpNotLike, OpILike, OpNotILike,
	OpIn, OpNotIn, OpBetween, OpIsNull, OpKnn,
}

var binarySQL = map[Op]string{
	OpEq:       "=",
	OpNe:       "!=",
	OpGt:       ">",
	OpGte:      ">=",
	OpLt:       "<",
	OpLte:      "<=",
	OpLike:     "LIKE",
	OpNotLike:  "NOT LIKE",
	OpILike:    "ILIKE",
	OpNotILike: "NOT ILIKE",
}

/* Distance selects the pgvector distance operator */
type Distance string

const (
	DistanceL2           Distance = "l2"
	DistanceInnerProduct Distance = "inner_product"
	DistanceCosine       Distance = "cosine"
)

var distanceOperators = map[Distance]string{
	DistanceL2:           "<->",
	DistanceInnerProduct: "<#>",
	DistanceCosine:       "<=>",
}

/* Operator returns the SQL operator for the distance */
func (d Distance) Operator() string {
	return distanceOperators[d]
}

/* ParseDistance validates a distance name; empty means l2 */
func ParseDistance(s string) (Distance, error) {
	if s == "" {
		return DistanceL2, nil
	}
	d := Distance(strings.ToLower(s))
	if _, ok := distanceOperators[d]; !ok {
		return "", fmt.Errorf("unsupported distance '%s' (expected l2, inner_product or cosine)", s)
	}
	return d, nil
}

/* Direction is a sort direction */
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

/* ParseDirection validates a direction; empty means ASC */
func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(s) {
	case "", "ASC":
		return Asc, nil
	case "DESC":
		return Desc, nil
	}
	return "", fmt.Errorf("unsupported direction '%s' (expected ASC or DESC)", s)
}

/* Reserved keys of the Logical form */
const (
	KeyAnd = "AND"
	KeyOr  = "OR"
	KeyNot = "NOT"
)

func isReserved(key string) bool {
	return key == KeyAnd || key == KeyOr || key == KeyNot
}
