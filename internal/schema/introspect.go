/*-------------------------------------------------------------------------
 *
 * introspect.go
 *    Catalog introspection into a schema model
 *
 * Reads ordinary and partitioned tables, their live columns and their
 * foreign keys straight from pg_catalog. Results are ordered by schema,
 * table and ordinal so repeated runs against an unchanged database build
 * identical models.
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronDynamic/internal/schema/introspect.go
 *
 *-------------------------------------------------------------------------
 */

package schema

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/neurondb/NeuronDynamic/internal/database"
)

const columnsQuery = `
SELECT n.nspname, c.relname, a.attname,
       pg_catalog.format_type(a.atttypid, a.atttypmod),
       a.attnotnull
FROM pg_catalog.pg_attribute a
JOIN pg_catalog.pg_class c ON c.oid = a.attrelid
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
WHERE c.relkind IN ('r', 'p')
  AND NOT c.relispartition
  AND a.attnum > 0
  AND NOT a.attisdropped
  AND n.nspname NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
  AND n.nspname NOT LIKE 'pg_temp_%'
  AND ($1::text[] IS NULL OR n.nspname = ANY($1::text[]))
ORDER BY n.nspname, c.relname, a.attnum`

const foreignKeysQuery = `
SELECT n.nspname, c.relname, con.conname, a.attname,
       fn.nspname, fc.relname, fa.attname,
       con.confupdtype::text, con.confdeltype::text
FROM pg_catalog.pg_constraint con
JOIN pg_catalog.pg_class c ON c.oid = con.conrelid
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
JOIN pg_catalog.pg_class fc ON fc.oid = con.confrelid
JOIN pg_catalog.pg_namespace fn ON fn.oid = fc.relnamespace
CROSS JOIN LATERAL unnest(con.conkey, con.confkey) WITH ORDINALITY AS k(attnum, fattnum, ord)
JOIN pg_catalog.pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.attnum
JOIN pg_catalog.pg_attribute fa ON fa.attrelid = con.confrelid AND fa.attnum = k.fattnum
WHERE con.contype = 'f'
  AND NOT c.relispartition
  AND n.nspname NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
  AND ($1::text[] IS NULL OR n.nspname = ANY($1::text[]))
ORDER BY n.nspname, c.relname, con.conname, k.ord`

var ruleCodes = map[string]string{
	"a": "",
	"r": RuleRestrict,
	"c": RuleCascade,
	"n": RuleSetNull,
	"d": RuleSetDefault,
}

/* Source produces a schema model */
type Source interface {
	Load(ctx context.Context) (*Model, error)
}

/* Introspector reads the schema model from the live catalog */
type Introspector struct {
	db      database.Querier
	schemas []string
}

/* NewIntrospector creates an introspector; an empty schema list means every user schema */
func NewIntrospector(db database.Querier, schemas []string) *Introspector {
	return &Introspector{db: db, schemas: schemas}
}

/* Load implements Source */
func (i *Introspector) Load(ctx context.Context) (*Model, error) {
	return i.Introspect(ctx)
}

/* Introspect reads tables, columns and foreign keys */
func (i *Introspector) Introspect(ctx context.Context) (*Model, error) {
	var schemaFilter interface{}
	if len(i.schemas) > 0 {
		schemaFilter = i.schemas
	}

	model := NewModel()

	cols, err := i.db.Query(ctx, columnsQuery, schemaFilter)
	if err != nil {
		return nil, &IntrospectionError{Query: "columns", Err: err}
	}
	for n, row := range cols.Rows {
		if len(row) != 5 {
			return nil, &IntrospectionError{Query: "columns", Err: fmt.Errorf("row %d has %d values, expected 5", n, len(row))}
		}
		schemaName, e1 := asString(row[0])
		table, e2 := asString(row[1])
		column, e3 := asString(row[2])
		sqlType, e4 := asString(row[3])
		notNull, ok := row[4].(bool)
		if err := firstError(e1, e2, e3, e4); err != nil || !ok {
			if err == nil {
				err = fmt.Errorf("attnotnull is %T, expected bool", row[4])
			}
			return nil, &IntrospectionError{Query: "columns", Err: fmt.Errorf("row %d: %w", n, err)}
		}
		model.table(schemaName, table).addColumn(NewColumn(column, sqlType, !notNull))
	}

	fks, err := i.db.Query(ctx, foreignKeysQuery, schemaFilter)
	if err != nil {
		return nil, &IntrospectionError{Query: "foreign keys", Err: err}
	}
	ordinals := make(map[string]int)
	lastConstraint := make(map[string]string)
	for n, row := range fks.Rows {
		if len(row) != 9 {
			return nil, &IntrospectionError{Query: "foreign keys", Err: fmt.Errorf("row %d has %d values, expected 9", n, len(row))}
		}
		vals := make([]string, 9)
		for j := range row {
			s, err := asString(row[j])
			if err != nil {
				return nil, &IntrospectionError{Query: "foreign keys", Err: fmt.Errorf("row %d column %d: %w", n, j, err)}
			}
			vals[j] = s
		}
		from := vals[0] + "." + vals[1]
		if last, seen := lastConstraint[from]; !seen {
			ordinals[from] = 0
		} else if last != vals[2] {
			ordinals[from]++
		}
		lastConstraint[from] = vals[2]

		model.Edges = append(model.Edges, ForeignKeyEdge{
			FromTable:  from,
			FromColumn: vals[3],
			ToTable:    vals[4] + "." + vals[5],
			ToColumn:   vals[6],
			OnUpdate:   ruleCodes[vals[7]],
			OnDelete:   ruleCodes[vals[8]],
			Ordinal:    ordinals[from],
		})
	}

	/* keep edges grouped in table order so the DDL export matches a re-parse */
	position := make(map[string]int, len(model.Order))
	for idx, key := range model.Order {
		position[key] = idx
	}
	sort.SliceStable(model.Edges, func(a, b int) bool {
		pa, okA := position[model.Edges[a].FromTable]
		pb, okB := position[model.Edges[b].FromTable]
		if okA != okB {
			return okA
		}
		return pa < pb
	})

	return model, nil
}

/* DDLFileSource loads the schema model from a DDL snapshot on disk */
type DDLFileSource struct {
	Path string
}

/* Load implements Source */
func (s DDLFileSource) Load(ctx context.Context) (*Model, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read DDL file '%s': %w", s.Path, err)
	}
	return ParseDDL(string(data))
}

func asString(v interface{}) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	}
	return "", fmt.Errorf("value is %T, expected text", v)
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
