/*-------------------------------------------------------------------------
 *
 * schema.go
 *    JSON Schemas of generated tools
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronDynamic/internal/tools/schema.go
 *
 *-------------------------------------------------------------------------
 */

package tools

import (
	"github.com/neurondb/NeuronDynamic/internal/generator"
)

const filterDescription = `Filter expression. Field keys map to {"op": value} objects (eq, ne, gt, gte, lt, lte, like, not_like, ilike, not_ilike, in, not_in, between, is_null, knn). Combine with {"AND": [...]}, {"OR": [...]}, {"NOT": {...}}; logical keys may not be mixed with field keys in one object.`

const orderDescription = `List of {"field": name, "direction": "ASC"|"DESC"} items, or {"field": name, "knn": {"query": [..], "distance": "l2"|"cosine"|"inner_product", "direction": "ASC"|"DESC"}} for similarity ordering.`

/* rowSchema renders the row shape as a JSON object schema */
func rowSchema(shape generator.RowShape, withRequired bool) map[string]interface{} {
	props := make(map[string]interface{}, len(shape.Fields))
	required := []interface{}{}
	for _, f := range shape.Fields {
		prop := f.Type.JSONSchema()
		if f.SQLType != "" {
			prop["description"] = f.SQLType
		}
		props[f.Name] = prop
		if withRequired && f.Required {
			required = append(required, f.Name)
		}
	}
	out := map[string]interface{}{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

func filterSchema(d *generator.OperationDescriptor) map[string]interface{} {
	fields := make([]interface{}, len(d.Filterable))
	for i, f := range d.Filterable {
		fields[i] = f
	}
	return map[string]interface{}{
		"type":        "object",
		"description": filterDescription,
		"x-fields":    fields,
	}
}

func inputSchema(d *generator.OperationDescriptor) map[string]interface{} {
	props := map[string]interface{}{}
	var required []interface{}

	switch d.Kind {
	case generator.KindInsert:
		props["rows"] = map[string]interface{}{
			"type":        "array",
			"description": "Rows to insert in one statement",
			"items":       rowSchema(d.Shape, true),
		}
		props["raise_on_conflict"] = map[string]interface{}{
			"type":        "boolean",
			"default":     true,
			"description": "Fail on unique constraint violations; when false conflicting rows are skipped",
		}
		required = []interface{}{"rows"}
	case generator.KindSelect, generator.KindSelectJoined:
		props["filter"] = filterSchema(d)
		props["order_by"] = map[string]interface{}{
			"type":        "array",
			"description": orderDescription,
			"items":       map[string]interface{}{"type": "object"},
		}
		props["limit"] = map[string]interface{}{
			"type":    "integer",
			"minimum": 0,
		}
	case generator.KindUpdate:
		props["values"] = rowSchema(d.Shape, false)
		props["filter"] = filterSchema(d)
		required = []interface{}{"values"}
	case generator.KindDelete:
		props["filter"] = filterSchema(d)
	}

	out := map[string]interface{}{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if required != nil {
		out["required"] = required
	}
	return out
}

func outputSchema(kind generator.Kind) map[string]interface{} {
	var props map[string]interface{}
	switch kind {
	case generator.KindInsert:
		props = map[string]interface{}{"ids": map[string]interface{}{"type": "array"}}
	case generator.KindSelect, generator.KindSelectJoined:
		props = map[string]interface{}{
			"rows":  map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "object"}},
			"count": map[string]interface{}{"type": "integer"},
		}
	default:
		props = map[string]interface{}{"affected": map[string]interface{}{"type": "integer"}}
	}
	return map[string]interface{}{"type": "object", "properties": props}
}
