/*-------------------------------------------------------------------------
 *
 * join.go
 *    Joined select generation over foreign key paths
 *
 * The path is resolved greedily, left to right: each next table joins the
 * first already included table (in inclusion order) that a foreign key
 * links it to, in either direction.
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronDynamic/internal/generator/join.go
 *
 *-------------------------------------------------------------------------
 */

package generator

import (
	"fmt"
	"strings"

	"github.com/neurondb/NeuronDynamic/internal/schema"
	"github.com/neurondb/NeuronDynamic/internal/validation"
)

type joinMember struct {
	ref   string /* caller-given name, used in SQL */
	table *schema.TableSchema
}

func (g *Generator) joined(model *schema.Model, group []string, ignore []string) (*OperationDescriptor, error) {
	if len(group) < 2 {
		return nil, fmt.Errorf("join group [%s] needs at least two tables", strings.Join(group, ", "))
	}

	members := make([]joinMember, 0, len(group))
	seen := make(map[string]bool, len(group))
	for _, name := range group {
		t, ok := model.Table(name)
		if !ok {
			return nil, &UnknownTableError{Group: group, Table: name}
		}
		if seen[t.QualifiedName()] {
			return nil, fmt.Errorf("join group [%s] names table '%s' twice", strings.Join(group, ", "), name)
		}
		seen[t.QualifiedName()] = true
		members = append(members, joinMember{ref: name, table: t})
	}

	var clause strings.Builder
	clause.WriteString("FROM ")
	clause.WriteString(renderRef(members[0].ref))

	for i := 1; i < len(members); i++ {
		next := members[i]
		edges := findJoinEdges(model, next, members[:i])
		if edges == nil {
			return nil, &JoinPathNotFoundError{Group: group, Table: next.ref}
		}
		refs := make(map[string]string, i+1)
		for _, m := range members[:i+1] {
			refs[m.table.QualifiedName()] = renderRef(m.ref)
		}
		conds := make([]string, len(edges))
		for j, e := range edges {
			conds[j] = fmt.Sprintf("%s.%s = %s.%s",
				refs[e.FromTable], validation.QuoteIdent(e.FromColumn),
				refs[e.ToTable], validation.QuoteIdent(e.ToColumn))
		}
		fmt.Fprintf(&clause, " LEFT JOIN %s ON %s", renderRef(next.ref), strings.Join(conds, " AND "))
	}

	name := OperationName(KindSelectJoined, group...)
	desc := &OperationDescriptor{
		Name:       name,
		Kind:       KindSelectJoined,
		JoinClause: clause.String(),
		Aliases:    make(map[string]string),
		Shape:      RowShape{Model: ModelName(name)},
	}

	skip := make(map[string]bool, len(ignore))
	for _, c := range ignore {
		skip[c] = true
	}

	for i, m := range members {
		desc.Tables = append(desc.Tables, m.table.QualifiedName())
		for _, c := range m.table.Columns {
			alias := m.table.Name + "_" + c.Name
			if _, dup := desc.Aliases[alias]; dup {
				return nil, fmt.Errorf("join group [%s]: alias '%s' is produced by more than one column", strings.Join(group, ", "), alias)
			}
			column := m.ref + "." + c.Name
			desc.Aliases[alias] = column
			desc.Filterable = append(desc.Filterable, alias)

			if skip[c.Name] {
				continue
			}
			field := ShapeField{Name: alias, Column: column, SQLType: c.SQLType, Type: c.Type, Required: !c.Nullable}
			if i > 0 {
				field.Type = schema.Nullable(c.Type)
				field.Required = false
			}
			desc.Shape.Fields = append(desc.Shape.Fields, field)
		}
	}
	if len(desc.Shape.Fields) == 0 {
		return nil, fmt.Errorf("join group [%s]: no columns remain after the ignore list", strings.Join(group, ", "))
	}

	desc.Description = fmt.Sprintf("Select joined rows of %s with an optional filter, order and limit. Fields: %s",
		strings.Join(group, ", "), fieldList(desc.Shape))
	return desc, nil
}

/*
 * findJoinEdges returns the edges of the first foreign key linking next to
 * an included table. All column pairs of a composite key are returned
 * together.
 */
func findJoinEdges(model *schema.Model, next joinMember, included []joinMember) []schema.ForeignKeyEdge {
	nextName := next.table.QualifiedName()
	for _, inc := range included {
		incName := inc.table.QualifiedName()
		for _, e := range model.Edges {
			if !e.Connects(nextName, incName) {
				continue
			}
			var out []schema.ForeignKeyEdge
			for _, other := range model.Edges {
				if other.FromTable == e.FromTable && other.ToTable == e.ToTable && other.Ordinal == e.Ordinal {
					out = append(out, other)
				}
			}
			return out
		}
	}
	return nil
}

func renderRef(name string) string {
	first, second, ok := validation.SplitQualified(name)
	if !ok {
		return validation.QuoteIdent(first)
	}
	return validation.QuoteQualified(first, second)
}
