/*-------------------------------------------------------------------------
 *
 * operation.go
 *    Tools backed by generated operation descriptors
 *
 * One OperationTool is built per active descriptor. Its input schema is
 * derived from the descriptor's row shape and its Execute decodes the
 * arguments and hands them to the query executor.
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronDynamic/internal/tools/operation.go
 *
 *-------------------------------------------------------------------------
 */

package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/neurondb/NeuronDynamic/internal/filter"
	"github.com/neurondb/NeuronDynamic/internal/generator"
	"github.com/neurondb/NeuronDynamic/internal/order"
	"github.com/neurondb/NeuronDynamic/internal/query"
	"github.com/neurondb/NeuronDynamic/internal/validation"
)

/* OperationTool exposes one operation descriptor as a tool */
type OperationTool struct {
	*BaseTool
	desc     *generator.OperationDescriptor
	executor *query.Executor
}

/* NewOperationTool creates the tool of a descriptor */
func NewOperationTool(desc *generator.OperationDescriptor, executor *query.Executor) *OperationTool {
	return &OperationTool{
		BaseTool: NewBaseTool(desc.Name, describe(desc), inputSchema(desc), outputSchema(desc.Kind)),
		desc:     desc,
		executor: executor,
	}
}

/* Descriptor returns the backing descriptor */
func (t *OperationTool) Descriptor() *generator.OperationDescriptor {
	return t.desc
}

/* Execute runs the operation with the given call arguments */
func (t *OperationTool) Execute(ctx context.Context, arguments json.RawMessage) (*ToolResult, error) {
	args, err := decodeArguments(arguments, allowedArguments[t.desc.Kind])
	if err != nil {
		return errorResult(err), nil
	}

	var data map[string]interface{}
	switch t.desc.Kind {
	case generator.KindInsert:
		data, err = t.insert(ctx, args)
	case generator.KindSelect, generator.KindSelectJoined:
		data, err = t.selectRows(ctx, args)
	case generator.KindUpdate:
		data, err = t.update(ctx, args)
	case generator.KindDelete:
		data, err = t.delete(ctx, args)
	default:
		return nil, fmt.Errorf("operation %s has unsupported kind '%s'", t.desc.Name, t.desc.Kind)
	}
	if err != nil {
		return errorResult(err), nil
	}
	return Success(data, map[string]interface{}{"operation": t.desc.Name, "kind": string(t.desc.Kind)}), nil
}

func (t *OperationTool) insert(ctx context.Context, args map[string]json.RawMessage) (map[string]interface{}, error) {
	raw, ok := args["rows"]
	if !ok {
		return nil, &ArgumentError{Argument: "rows", Reason: "is required"}
	}
	var rows []map[string]interface{}
	if err := decodeNumbers(raw, &rows); err != nil {
		return nil, &ArgumentError{Argument: "rows", Reason: "expected a list of objects"}
	}
	for i := range rows {
		if rows[i] == nil {
			return nil, &query.RowError{Index: i, Reason: "row must be an object"}
		}
		filter.NormalizeNumbers(rows[i])
	}

	raise := true
	if v, ok := args["raise_on_conflict"]; ok && !isNull(v) {
		if err := json.Unmarshal(v, &raise); err != nil {
			return nil, &ArgumentError{Argument: "raise_on_conflict", Reason: "expected a boolean"}
		}
	}

	ids, err := t.executor.Insert(ctx, t.desc, rows, raise)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"ids": ids}, nil
}

func (t *OperationTool) selectRows(ctx context.Context, args map[string]json.RawMessage) (map[string]interface{}, error) {
	where, err := filter.Parse(args["filter"])
	if err != nil {
		return nil, err
	}
	spec, err := order.Parse(args["order_by"])
	if err != nil {
		return nil, err
	}

	req := query.SelectRequest{Filter: where, Order: spec}
	if v, ok := args["limit"]; ok && !isNull(v) {
		var limit int
		if err := json.Unmarshal(v, &limit); err != nil {
			return nil, &ArgumentError{Argument: "limit", Reason: "expected an integer"}
		}
		if err := validation.ValidateLimit(limit); err != nil {
			return nil, &ArgumentError{Argument: "limit", Reason: err.Error()}
		}
		req.Limit = &limit
	}

	rows, err := t.executor.Select(ctx, t.desc, req)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"rows": rows, "count": len(rows)}, nil
}

func (t *OperationTool) update(ctx context.Context, args map[string]json.RawMessage) (map[string]interface{}, error) {
	raw, ok := args["values"]
	if !ok || isNull(raw) {
		return nil, &ArgumentError{Argument: "values", Reason: "is required"}
	}
	var values map[string]interface{}
	if err := decodeNumbers(raw, &values); err != nil {
		return nil, &ArgumentError{Argument: "values", Reason: "expected an object"}
	}
	filter.NormalizeNumbers(values)

	where, err := filter.Parse(args["filter"])
	if err != nil {
		return nil, err
	}
	affected, err := t.executor.Update(ctx, t.desc, values, where)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"affected": affected}, nil
}

func (t *OperationTool) delete(ctx context.Context, args map[string]json.RawMessage) (map[string]interface{}, error) {
	where, err := filter.Parse(args["filter"])
	if err != nil {
		return nil, err
	}
	affected, err := t.executor.Delete(ctx, t.desc, where)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"affected": affected}, nil
}

var allowedArguments = map[generator.Kind][]string{
	generator.KindInsert:       {"rows", "raise_on_conflict"},
	generator.KindSelect:       {"filter", "order_by", "limit"},
	generator.KindSelectJoined: {"filter", "order_by", "limit"},
	generator.KindUpdate:       {"values", "filter"},
	generator.KindDelete:       {"filter"},
}

/* decodeArguments splits the call arguments and rejects names the tool does not take */
func decodeArguments(raw json.RawMessage, allowed []string) (map[string]json.RawMessage, error) {
	args := map[string]json.RawMessage{}
	if isNull(raw) {
		return args, nil
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, &ArgumentError{Reason: "arguments must be a JSON object"}
	}
	if args == nil {
		args = map[string]json.RawMessage{}
	}
	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !contains(allowed, name) {
			return nil, &ArgumentError{Argument: name, Reason: fmt.Sprintf("unknown argument, expected one of: %s", strings.Join(allowed, ", "))}
		}
	}
	return args, nil
}

/* decodeNumbers decodes with json.Number so integers survive intact */
func decodeNumbers(raw json.RawMessage, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func describe(d *generator.OperationDescriptor) string {
	if d.Description != "" {
		return d.Description
	}
	return fmt.Sprintf("%s on %s", d.Kind, strings.Join(d.Tables, ", "))
}
