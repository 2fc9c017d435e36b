/*-------------------------------------------------------------------------
 *
 * ddl_render.go
 *    Deterministic DDL snapshot export of a schema model
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronDynamic/internal/schema/ddl_render.go
 *
 *-------------------------------------------------------------------------
 */

package schema

import (
	"fmt"
	"strings"

	"github.com/neurondb/NeuronDynamic/internal/validation"
)

/* RenderDDL renders the model as CREATE TABLE blocks that ParseDDL reads back unchanged */
func RenderDDL(m *Model) string {
	var b strings.Builder
	for _, t := range m.TablesInOrder() {
		lines := make([]string, 0, len(t.Columns))
		for _, c := range t.Columns {
			line := fmt.Sprintf("    %s %s", validation.QuoteIdent(c.Name), c.SQLType)
			if !c.Nullable {
				line += " NOT NULL"
			}
			lines = append(lines, line)
		}
		for _, fk := range groupConstraints(m.EdgesFrom(t.QualifiedName())) {
			lines = append(lines, "    "+renderForeignKey(fk))
		}

		fmt.Fprintf(&b, "CREATE TABLE %s (\n", validation.QuoteQualified(t.Schema, t.Name))
		b.WriteString(strings.Join(lines, ",\n"))
		if len(lines) > 0 {
			b.WriteString("\n")
		}
		b.WriteString(");\n\n")
	}
	return b.String()
}

func groupConstraints(edges []ForeignKeyEdge) [][]ForeignKeyEdge {
	var groups [][]ForeignKeyEdge
	for _, e := range edges {
		n := len(groups)
		if n > 0 && groups[n-1][0].Ordinal == e.Ordinal && groups[n-1][0].ToTable == e.ToTable {
			groups[n-1] = append(groups[n-1], e)
			continue
		}
		groups = append(groups, []ForeignKeyEdge{e})
	}
	return groups
}

func renderForeignKey(fk []ForeignKeyEdge) string {
	from := make([]string, len(fk))
	to := make([]string, len(fk))
	for i, e := range fk {
		from[i] = validation.QuoteIdent(e.FromColumn)
		to[i] = validation.QuoteIdent(e.ToColumn)
	}
	toSchema, toTable := SplitName(fk[0].ToTable)
	line := fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)",
		strings.Join(from, ", "), validation.QuoteQualified(toSchema, toTable), strings.Join(to, ", "))
	if r := fk[0].OnUpdate; r != "" && r != RuleNoAction {
		line += " ON UPDATE " + r
	}
	if r := fk[0].OnDelete; r != "" && r != RuleNoAction {
		line += " ON DELETE " + r
	}
	return line
}
