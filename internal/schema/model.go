/*-------------------------------------------------------------------------
 *
 * model.go
 *    Structured schema model: tables, ordered columns and foreign keys
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronDynamic/internal/schema/model.go
 *
 *-------------------------------------------------------------------------
 */

package schema

import (
	"strings"

	"github.com/neurondb/NeuronDynamic/internal/validation"
)

/* DefaultSchema is assumed for unqualified table names */
const DefaultSchema = "public"

/* Referential actions rendered in ON UPDATE / ON DELETE clauses */
const (
	RuleNoAction   = "NO ACTION"
	RuleRestrict   = "RESTRICT"
	RuleCascade    = "CASCADE"
	RuleSetNull    = "SET NULL"
	RuleSetDefault = "SET DEFAULT"
)

/* ColumnSpec describes one column */
type ColumnSpec struct {
	Name     string  `msgpack:"name" json:"name"`
	SQLType  string  `msgpack:"sql_type" json:"sql_type"`
	Type     TypeRef `msgpack:"type" json:"type"`
	Nullable bool    `msgpack:"nullable" json:"nullable"`
}

/* NewColumn builds a column spec, deriving the semantic type from the SQL type */
func NewColumn(name, sqlType string, nullable bool) ColumnSpec {
	t := MapType(sqlType)
	if nullable {
		t = Nullable(t)
	}
	return ColumnSpec{Name: name, SQLType: sqlType, Type: t, Nullable: nullable}
}

/* TableSchema is one relation with its columns in ordinal order */
type TableSchema struct {
	Schema  string       `msgpack:"schema" json:"schema"`
	Name    string       `msgpack:"name" json:"name"`
	Columns []ColumnSpec `msgpack:"columns" json:"columns"`
}

/* QualifiedName returns schema.table */
func (t *TableSchema) QualifiedName() string {
	return t.Schema + "." + t.Name
}

/* Column looks up a column by name */
func (t *TableSchema) Column(name string) (ColumnSpec, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnSpec{}, false
}

func (t *TableSchema) addColumn(c ColumnSpec) bool {
	if _, exists := t.Column(c.Name); exists {
		return false
	}
	t.Columns = append(t.Columns, c)
	return true
}

/*
 * ForeignKeyEdge is one referencing column pair. Multi-column constraints
 * produce one edge per column pair sharing the same Ordinal, which is the
 * position of the owning constraint among the referencing table's foreign
 * keys.
 */
type ForeignKeyEdge struct {
	FromTable  string `msgpack:"from_table" json:"from_table"`
	FromColumn string `msgpack:"from_column" json:"from_column"`
	ToTable    string `msgpack:"to_table" json:"to_table"`
	ToColumn   string `msgpack:"to_column" json:"to_column"`
	OnUpdate   string `msgpack:"on_update,omitempty" json:"on_update,omitempty"`
	OnDelete   string `msgpack:"on_delete,omitempty" json:"on_delete,omitempty"`
	Ordinal    int    `msgpack:"ordinal" json:"ordinal"`
}

/* Connects reports whether the edge links tables a and b in either direction */
func (e ForeignKeyEdge) Connects(a, b string) bool {
	return (e.FromTable == a && e.ToTable == b) || (e.FromTable == b && e.ToTable == a)
}

/* Model is the root artifact of introspection or parsing */
type Model struct {
	Tables map[string]*TableSchema `msgpack:"tables" json:"tables"`
	Order  []string                `msgpack:"order" json:"order"`
	Edges  []ForeignKeyEdge        `msgpack:"edges" json:"edges"`
}

/* NewModel returns an empty model */
func NewModel() *Model {
	return &Model{Tables: make(map[string]*TableSchema)}
}

/* table returns the named table, creating it at the end of the order if missing */
func (m *Model) table(schemaName, name string) *TableSchema {
	key := schemaName + "." + name
	if t, ok := m.Tables[key]; ok {
		return t
	}
	t := &TableSchema{Schema: schemaName, Name: name, Columns: []ColumnSpec{}}
	m.Tables[key] = t
	m.Order = append(m.Order, key)
	return t
}

/* Table resolves a qualified or unqualified (public) table name */
func (m *Model) Table(name string) (*TableSchema, bool) {
	t, ok := m.Tables[QualifyName(name)]
	return t, ok
}

/* TablesInOrder returns tables in deterministic model order */
func (m *Model) TablesInOrder() []*TableSchema {
	out := make([]*TableSchema, 0, len(m.Order))
	for _, key := range m.Order {
		out = append(out, m.Tables[key])
	}
	return out
}

/* EdgesFrom returns the edges whose referencing side is the given qualified table */
func (m *Model) EdgesFrom(qualified string) []ForeignKeyEdge {
	var out []ForeignKeyEdge
	for _, e := range m.Edges {
		if e.FromTable == qualified {
			out = append(out, e)
		}
	}
	return out
}

/*
 * QualifyName turns a table reference, optionally schema-qualified and
 * optionally double-quoted, into the model key, defaulting the schema.
 */
func QualifyName(name string) string {
	first, second, ok := validation.SplitQualified(name)
	if !ok {
		return DefaultSchema + "." + first
	}
	return first + "." + second
}

/* SplitName splits schema.table, defaulting the schema */
func SplitName(qualified string) (string, string) {
	if s, t, ok := strings.Cut(qualified, "."); ok {
		return s, t
	}
	return DefaultSchema, qualified
}
