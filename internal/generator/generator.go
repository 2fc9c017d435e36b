/*-------------------------------------------------------------------------
 *
 * generator.go
 *    Operation generation from a schema model
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronDynamic/internal/generator/generator.go
 *
 *-------------------------------------------------------------------------
 */

package generator

import (
	"fmt"

	"github.com/neurondb/NeuronDynamic/internal/logging"
	"github.com/neurondb/NeuronDynamic/internal/schema"
	"github.com/neurondb/NeuronDynamic/internal/validation"
)

/* Options controls which operations are generated */
type Options struct {
	/* Ignore lists column names left out of each verb's shape */
	Ignore map[Kind][]string
	/* JoinGroups are ordered table lists, each producing one joined select */
	JoinGroups [][]string
	/* ReadOnly restricts generation to select and select_joined */
	ReadOnly bool
	/* ReturningColumn is returned by inserts when the table has it */
	ReturningColumn string
}

/* Result holds everything one generation pass produced */
type Result struct {
	Descriptors []*OperationDescriptor
	Failures    []Failure
}

/* Generator builds operation descriptors */
type Generator struct {
	logger *logging.Logger
}

/* NewGenerator creates a generator */
func NewGenerator(logger *logging.Logger) *Generator {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Generator{logger: logger}
}

/*
 * Generate produces descriptors for every table in model order, verbs in
 * fixed order, then one joined select per join group in configuration
 * order. A failing operation or group is recorded and skipped.
 */
func (g *Generator) Generate(model *schema.Model, opts Options) *Result {
	res := &Result{}

	for _, table := range model.TablesInOrder() {
		g.logUnknownTypes(table)
		for _, kind := range []Kind{KindInsert, KindSelect, KindUpdate, KindDelete} {
			if opts.ReadOnly && !kind.ReadOnly() {
				continue
			}
			desc, err := g.single(kind, table, opts)
			if err != nil {
				name := OperationName(kind, table.QualifiedName())
				res.Failures = append(res.Failures, Failure{Name: name, Kind: kind, Err: err})
				g.logger.Warn("Operation generation failed", map[string]interface{}{
					"operation": name,
					"error":     err.Error(),
				})
				continue
			}
			res.Descriptors = append(res.Descriptors, desc)
		}
	}

	for _, group := range opts.JoinGroups {
		desc, err := g.joined(model, group, opts.Ignore[KindSelectJoined])
		if err != nil {
			name := OperationName(KindSelectJoined, group...)
			res.Failures = append(res.Failures, Failure{Name: name, Kind: KindSelectJoined, Group: group, Err: err})
			g.logger.Warn("Join group generation failed", map[string]interface{}{
				"operation": name,
				"error":     err.Error(),
			})
			continue
		}
		res.Descriptors = append(res.Descriptors, desc)
	}

	g.logger.Info("Operation generation complete", map[string]interface{}{
		"descriptors": len(res.Descriptors),
		"failures":    len(res.Failures),
	})
	return res
}

func (g *Generator) logUnknownTypes(table *schema.TableSchema) {
	for _, c := range table.Columns {
		if !schema.IsKnownType(c.SQLType) {
			g.logger.Debug("Unknown SQL type mapped to any", map[string]interface{}{
				"table":    table.QualifiedName(),
				"column":   c.Name,
				"sql_type": c.SQLType,
			})
		}
	}
}

func (g *Generator) single(kind Kind, table *schema.TableSchema, opts Options) (*OperationDescriptor, error) {
	qualified := table.QualifiedName()
	name := OperationName(kind, qualified)
	columns := filterColumns(table.Columns, opts.Ignore[kind])
	target := validation.QuoteQualified(table.Schema, table.Name)

	desc := &OperationDescriptor{
		Name:       name,
		Kind:       kind,
		Tables:     []string{qualified},
		Target:     target,
		Columns:    columns,
		Filterable: columnNames(table.Columns),
		Shape:      RowShape{Model: ModelName(name)},
	}

	switch kind {
	case KindInsert:
		if len(columns) == 0 {
			return nil, fmt.Errorf("no insertable columns remain in %s after the ignore list", qualified)
		}
		for _, c := range columns {
			desc.Shape.Fields = append(desc.Shape.Fields, ShapeField{Name: c.Name, Column: c.Name, SQLType: c.SQLType, Type: c.Type, Required: true})
		}
		if opts.ReturningColumn != "" {
			if _, ok := table.Column(opts.ReturningColumn); ok {
				desc.Returning = opts.ReturningColumn
			}
		}
		desc.Description = fmt.Sprintf("Insert rows into %s. Fields: %s", qualified, fieldList(desc.Shape))

	case KindSelect:
		if len(columns) == 0 {
			return nil, fmt.Errorf("no selectable columns remain in %s after the ignore list", qualified)
		}
		for _, c := range columns {
			desc.Shape.Fields = append(desc.Shape.Fields, ShapeField{Name: c.Name, Column: c.Name, SQLType: c.SQLType, Type: c.Type, Required: !c.Nullable})
		}
		desc.JoinClause = "FROM " + target
		desc.Description = fmt.Sprintf("Select rows from %s with an optional filter, order and limit. Fields: %s", qualified, fieldList(desc.Shape))

	case KindUpdate:
		if len(columns) == 0 {
			return nil, fmt.Errorf("no updatable columns remain in %s after the ignore list", qualified)
		}
		for _, c := range columns {
			desc.Shape.Fields = append(desc.Shape.Fields, ShapeField{Name: c.Name, Column: c.Name, SQLType: c.SQLType, Type: schema.Nullable(c.Type), Required: false})
		}
		desc.Description = fmt.Sprintf("Update rows of %s matching a filter. Fields: %s", qualified, fieldList(desc.Shape))

	case KindDelete:
		desc.Description = fmt.Sprintf("Delete rows of %s matching a filter", qualified)
	}
	return desc, nil
}

func filterColumns(columns []schema.ColumnSpec, ignore []string) []schema.ColumnSpec {
	skip := make(map[string]bool, len(ignore))
	for _, name := range ignore {
		skip[name] = true
	}
	out := make([]schema.ColumnSpec, 0, len(columns))
	for _, c := range columns {
		if !skip[c.Name] {
			out = append(out, c)
		}
	}
	return out
}

func columnNames(columns []schema.ColumnSpec) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = c.Name
	}
	return out
}

func fieldList(shape RowShape) string {
	s := ""
	for i, f := range shape.Fields {
		if i > 0 {
			s += ", "
		}
		s += f.Name + " (" + f.Type.String() + ")"
	}
	return s
}
