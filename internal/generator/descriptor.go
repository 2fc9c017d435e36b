/*-------------------------------------------------------------------------
 *
 * descriptor.go
 *    Operation descriptors produced by the generators
 *
 * A descriptor is plain data: the executor interprets it at invocation
 * time and the registry persists it as a msgpack artifact.
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronDynamic/internal/generator/descriptor.go
 *
 *-------------------------------------------------------------------------
 */

package generator

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/neurondb/NeuronDynamic/internal/schema"
)

/* Kind is the operation verb */
type Kind string

const (
	KindInsert       Kind = "insert"
	KindSelect       Kind = "select"
	KindUpdate       Kind = "update"
	KindDelete       Kind = "delete"
	KindSelectJoined Kind = "select_joined"
)

/* Kinds lists every verb in generation order */
var Kinds = []Kind{KindInsert, KindSelect, KindUpdate, KindDelete, KindSelectJoined}

/* ReadOnly reports whether the verb never writes */
func (k Kind) ReadOnly() bool {
	return k == KindSelect || k == KindSelectJoined
}

/* ShapeField is one field of a row model */
type ShapeField struct {
	/* Name is the caller-facing field name (the alias for joins) */
	Name string `msgpack:"name" json:"name"`
	/* Column is the column reference: a bare name, or table.column for joins */
	Column   string         `msgpack:"column" json:"column"`
	SQLType  string         `msgpack:"sql_type" json:"sql_type"`
	Type     schema.TypeRef `msgpack:"type" json:"type"`
	Required bool           `msgpack:"required" json:"required"`
}

/* RowShape is the typed row model of an operation */
type RowShape struct {
	Model  string       `msgpack:"model" json:"model"`
	Fields []ShapeField `msgpack:"fields" json:"fields"`
}

/* Field looks up a shape field by name */
func (s RowShape) Field(name string) (ShapeField, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return ShapeField{}, false
}

/* OperationDescriptor describes one generated operation */
type OperationDescriptor struct {
	Name        string `msgpack:"name" json:"name"`
	Kind        Kind   `msgpack:"kind" json:"kind"`
	Description string `msgpack:"description" json:"description"`

	/* Tables holds qualified table names, base table first */
	Tables []string `msgpack:"tables" json:"tables"`
	/* Target is the rendered table reference for single-table operations */
	Target string `msgpack:"target,omitempty" json:"target,omitempty"`
	/* JoinClause is the FROM clause of select operations */
	JoinClause string `msgpack:"join_clause,omitempty" json:"join_clause,omitempty"`

	Columns []schema.ColumnSpec `msgpack:"columns,omitempty" json:"columns,omitempty"`
	/* Filterable lists the names a filter or order may reference */
	Filterable []string          `msgpack:"filterable" json:"filterable"`
	Aliases    map[string]string `msgpack:"aliases,omitempty" json:"aliases,omitempty"`
	Shape      RowShape          `msgpack:"shape" json:"shape"`
	Returning  string            `msgpack:"returning,omitempty" json:"returning,omitempty"`
}

/* FilterFields returns Filterable as a set */
func (d *OperationDescriptor) FilterFields() map[string]bool {
	out := make(map[string]bool, len(d.Filterable))
	for _, f := range d.Filterable {
		out[f] = true
	}
	return out
}

var nonNameChars = regexp.MustCompile(`[^A-Za-z0-9_]+`)

/* OperationName builds {verb}_{parts...} with dots and other separators turned into underscores */
func OperationName(kind Kind, parts ...string) string {
	name := string(kind)
	for _, p := range parts {
		name += "_" + nonNameChars.ReplaceAllString(strings.ReplaceAll(p, ".", "_"), "_")
	}
	return name
}

/* ModelName turns an operation name into its CamelCase row model name, e.g. SelectPublicUsersRow */
func ModelName(operation string) string {
	caser := cases.Title(language.English)
	var b strings.Builder
	for _, word := range strings.Split(operation, "_") {
		if word == "" {
			continue
		}
		b.WriteString(caser.String(word))
	}
	b.WriteString("Row")
	return b.String()
}
