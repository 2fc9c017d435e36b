/*-------------------------------------------------------------------------
 *
 * types.go
 *    PostgreSQL type name to semantic type mapping
 *
 * Unknown types map to KindAny so that a new extension type in one table
 * never blocks generation for the rest of the schema.
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronDynamic/internal/schema/types.go
 *
 *-------------------------------------------------------------------------
 */

package schema

import (
	"regexp"
	"strings"
)

/* Kind is the semantic family of a column value */
type Kind uint8

const (
	KindAny Kind = iota
	KindInt
	KindFloat
	KindBool
	KindString
	KindMap
	KindBytes
	KindList
)

var kindNames = map[Kind]string{
	KindAny:    "any",
	KindInt:    "int",
	KindFloat:  "float",
	KindBool:   "bool",
	KindString: "str",
	KindMap:    "dict",
	KindBytes:  "bytes",
	KindList:   "list",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "any"
}

/* TypeRef is a semantic type, optionally a list of an element type, optionally nullable */
type TypeRef struct {
	Kind     Kind     `msgpack:"kind" json:"kind"`
	Elem     *TypeRef `msgpack:"elem,omitempty" json:"elem,omitempty"`
	Optional bool     `msgpack:"optional,omitempty" json:"optional,omitempty"`
}

/* String renders the type as e.g. Optional[list[float]] */
func (t TypeRef) String() string {
	s := t.Kind.String()
	if t.Kind == KindList && t.Elem != nil {
		s = "list[" + t.Elem.String() + "]"
	}
	if t.Optional {
		s = "Optional[" + s + "]"
	}
	return s
}

/* Nullable wraps a type in the optional marker */
func Nullable(t TypeRef) TypeRef {
	t.Optional = true
	return t
}

/* NonNull strips the optional marker */
func NonNull(t TypeRef) TypeRef {
	t.Optional = false
	return t
}

/* IsVector reports whether the type is a list of floats (pgvector and float arrays) */
func (t TypeRef) IsVector() bool {
	return t.Kind == KindList && t.Elem != nil && t.Elem.Kind == KindFloat
}

/* JSONSchema renders the type as a JSON Schema fragment for tool input schemas */
func (t TypeRef) JSONSchema() map[string]interface{} {
	var out map[string]interface{}
	switch t.Kind {
	case KindInt:
		out = map[string]interface{}{"type": "integer"}
	case KindFloat:
		out = map[string]interface{}{"type": "number"}
	case KindBool:
		out = map[string]interface{}{"type": "boolean"}
	case KindString:
		out = map[string]interface{}{"type": "string"}
	case KindMap:
		out = map[string]interface{}{"type": "object"}
	case KindBytes:
		out = map[string]interface{}{"type": "string", "contentEncoding": "base64"}
	case KindList:
		items := map[string]interface{}{}
		if t.Elem != nil {
			items = t.Elem.JSONSchema()
		}
		out = map[string]interface{}{"type": "array", "items": items}
	default:
		return map[string]interface{}{}
	}
	if t.Optional {
		out["type"] = []interface{}{out["type"], "null"}
	}
	return out
}

var scalarTypes = map[string]Kind{
	"smallint": KindInt, "integer": KindInt, "int": KindInt, "int2": KindInt,
	"int4": KindInt, "int8": KindInt, "bigint": KindInt, "smallserial": KindInt,
	"serial": KindInt, "bigserial": KindInt, "serial2": KindInt, "serial4": KindInt,
	"serial8": KindInt, "oid": KindInt,

	"real": KindFloat, "float4": KindFloat, "float8": KindFloat, "float": KindFloat,
	"double precision": KindFloat, "numeric": KindFloat, "decimal": KindFloat,
	"money": KindFloat,

	"boolean": KindBool, "bool": KindBool,

	"text": KindString, "varchar": KindString, "character varying": KindString,
	"char": KindString, "character": KindString, "bpchar": KindString,
	"uuid": KindString, "citext": KindString, "name": KindString, "xml": KindString,
	"tsvector": KindString, "tsquery": KindString, "bit": KindString,
	"bit varying": KindString, "varbit": KindString,

	"date": KindString, "time": KindString, "timetz": KindString,
	"time without time zone": KindString, "time with time zone": KindString,
	"timestamp": KindString, "timestamptz": KindString,
	"timestamp without time zone": KindString, "timestamp with time zone": KindString,
	"interval": KindString,

	"json": KindMap, "jsonb": KindMap,

	"bytea": KindBytes,

	"inet": KindString, "cidr": KindString, "macaddr": KindString, "macaddr8": KindString,
}

var vectorTypes = map[string]bool{
	"vector": true, "halfvec": true, "sparsevec": true,
}

var (
	typeModifierRegex = regexp.MustCompile(`\([^)]*\)`)
	whitespaceRegex   = regexp.MustCompile(`\s+`)
)

/* MapType maps a PostgreSQL type name as printed by format_type to a semantic type */
func MapType(sqlType string) TypeRef {
	name := strings.ToLower(strings.TrimSpace(sqlType))

	isArray := false
	for strings.HasSuffix(name, "[]") {
		isArray = true
		name = strings.TrimSpace(strings.TrimSuffix(name, "[]"))
	}
	if strings.HasPrefix(name, "_") && len(name) > 1 {
		isArray = true
		name = name[1:]
	}

	base := mapBase(name)
	if isArray {
		return TypeRef{Kind: KindList, Elem: &base}
	}
	return base
}

func mapBase(name string) TypeRef {
	name = typeModifierRegex.ReplaceAllString(name, "")
	name = strings.TrimSpace(whitespaceRegex.ReplaceAllString(name, " "))
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = strings.Trim(name[i+1:], `"`)
	}

	if vectorTypes[name] {
		return TypeRef{Kind: KindList, Elem: &TypeRef{Kind: KindFloat}}
	}
	if kind, ok := scalarTypes[name]; ok {
		return TypeRef{Kind: kind}
	}
	if first, _, found := strings.Cut(name, " "); found {
		if vectorTypes[first] {
			return TypeRef{Kind: KindList, Elem: &TypeRef{Kind: KindFloat}}
		}
		if kind, ok := scalarTypes[first]; ok {
			return TypeRef{Kind: kind}
		}
	}
	return TypeRef{Kind: KindAny}
}

/* IsKnownType reports whether MapType resolves the name to something other than any */
func IsKnownType(sqlType string) bool {
	t := MapType(sqlType)
	if t.Kind == KindList && t.Elem != nil {
		return t.Elem.Kind != KindAny
	}
	return t.Kind != KindAny
}
