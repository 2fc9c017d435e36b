/*-------------------------------------------------------------------------
 *
 * ddl_parser.go
 *    Line-oriented CREATE TABLE parser
 *
 * Reads the DDL snapshot format (and hand-written DDL in the same shape)
 * into a Model. Unknown constructs are skipped; the only hard failure is
 * input that yields no column definitions at all. A REFERENCES clause
 * without a column list points at the target's primary key, resolved once
 * the whole input has been read.
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronDynamic/internal/schema/ddl_parser.go
 *
 *-------------------------------------------------------------------------
 */

package schema

import (
	"bufio"
	"regexp"
	"sort"
	"strings"

	"github.com/neurondb/NeuronDynamic/internal/validation"
)

const identPattern = `(?:"(?:[^"]|"")+"|[A-Za-z_][A-Za-z0-9_$]*)`

const qualifiedPattern = identPattern + `(?:\s*\.\s*` + identPattern + `)?`

var (
	tableStartRegex = regexp.MustCompile(`(?i)^CREATE\s+(?:(?:UNLOGGED|TEMP|TEMPORARY)\s+)?TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?(` + qualifiedPattern + `)\s*\($`)

	foreignKeyRegex = regexp.MustCompile(`(?i)^(?:CONSTRAINT\s+` + identPattern + `\s+)?FOREIGN\s+KEY\s*\(([^)]*)\)\s*REFERENCES\s+(` + qualifiedPattern + `)\s*(?:\(([^)]*)\))?(.*)$`)

	primaryKeyRegex = regexp.MustCompile(`(?i)^(?:CONSTRAINT\s+` + identPattern + `\s+)?PRIMARY\s+KEY\s*\(([^)]*)\)`)

	inlineReferenceRegex = regexp.MustCompile(`(?i)\bREFERENCES\s+(` + qualifiedPattern + `)(?:\s*\(\s*(` + identPattern + `)\s*\))?`)

	ruleRegex = regexp.MustCompile(`(?i)\bON\s+(UPDATE|DELETE)\s+(NO\s+ACTION|RESTRICT|CASCADE|SET\s+NULL|SET\s+DEFAULT)`)

	identRegex = regexp.MustCompile(`^` + identPattern)
)

/* Words that end the type portion of a column definition */
var constraintKeywords = map[string]bool{
	"NOT": true, "NULL": true, "DEFAULT": true, "PRIMARY": true, "UNIQUE": true,
	"CHECK": true, "REFERENCES": true, "GENERATED": true, "COLLATE": true, "CONSTRAINT": true,
}

/* Leading words of table-level constraint lines that carry nothing for the model */
var tableConstraintPrefixes = []string{"PRIMARY KEY", "FOREIGN KEY", "UNIQUE", "CHECK", "EXCLUDE", "CONSTRAINT", "LIKE"}

/* pendingReference is a foreign key whose target columns are the target's primary key */
type pendingReference struct {
	fromTable string
	from      []string
	toTable   string
	onUpdate  string
	onDelete  string
	ordinal   int
}

type ddlParser struct {
	model       *Model
	current     *TableSchema
	ordinals    map[string]int
	primaryKeys map[string][]string
	pending     []pendingReference
	columns     int
	firstLine   string
	firstLineN  int
}

/* ParseDDL parses CREATE TABLE blocks into a schema model */
func ParseDDL(text string) (*Model, error) {
	p := &ddlParser{model: NewModel(), ordinals: make(map[string]int), primaryKeys: make(map[string][]string)}

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		p.line(lineNo, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, &DDLParseError{LineNo: lineNo, Reason: "failed to read input: " + err.Error()}
	}

	if p.columns == 0 {
		if p.firstLine == "" {
			return nil, &DDLParseError{Reason: "input contains no table definitions"}
		}
		return nil, &DDLParseError{LineNo: p.firstLineN, Line: p.firstLine, Reason: "no column definitions found"}
	}
	p.resolvePending()
	return p.model, nil
}

func (p *ddlParser) line(lineNo int, raw string) {
	line := strings.TrimSpace(raw)
	if line == "" || strings.HasPrefix(line, "--") {
		return
	}
	if p.firstLine == "" {
		p.firstLine, p.firstLineN = line, lineNo
	}

	if m := tableStartRegex.FindStringSubmatch(line); m != nil {
		schemaName, name := splitParsedName(m[1])
		p.current = p.model.table(schemaName, name)
		return
	}
	if p.current == nil {
		return
	}
	if strings.HasPrefix(line, ")") {
		p.current = nil
		return
	}

	line = strings.TrimSpace(strings.TrimSuffix(line, ","))
	if line == "" {
		return
	}
	upper := strings.ToUpper(line)

	if m := foreignKeyRegex.FindStringSubmatch(line); m != nil {
		p.foreignKey(m)
		return
	}
	if m := primaryKeyRegex.FindStringSubmatch(line); m != nil {
		key := p.current.QualifiedName()
		p.primaryKeys[key] = splitColumnList(m[1])
		return
	}
	for _, prefix := range tableConstraintPrefixes {
		if upper == prefix || strings.HasPrefix(upper, prefix+" ") || strings.HasPrefix(upper, prefix+"(") {
			return
		}
	}
	p.column(line)
}

func (p *ddlParser) column(line string) {
	name, rest, ok := splitColumnName(line)
	if !ok {
		return
	}

	fields := strings.Fields(rest)
	typeEnd := len(fields)
	for i, f := range fields {
		if constraintKeywords[strings.ToUpper(f)] {
			typeEnd = i
			break
		}
	}
	if typeEnd == 0 {
		return
	}
	sqlType := strings.Join(fields[:typeEnd], " ")
	constraintText := strings.Join(fields[typeEnd:], " ")
	words := constraintWords(constraintText)

	primaryKey := hasWords(words, "PRIMARY", "KEY")
	nullable := !hasWords(words, "NOT", "NULL") && !primaryKey
	if !p.current.addColumn(NewColumn(name, sqlType, nullable)) {
		return
	}
	p.columns++
	if primaryKey {
		key := p.current.QualifiedName()
		p.primaryKeys[key] = append(p.primaryKeys[key], name)
	}

	if !hasWords(words, "REFERENCES") {
		return
	}
	if m := inlineReferenceRegex.FindStringSubmatch(constraintText); m != nil {
		onUpdate, onDelete := parseRules(constraintText)
		if m[2] == "" {
			p.deferReference([]string{name}, m[1], onUpdate, onDelete)
			return
		}
		p.addEdges([]string{name}, m[1], []string{validation.Unquote(m[2])}, onUpdate, onDelete)
	}
}

func (p *ddlParser) foreignKey(m []string) {
	from := splitColumnList(m[1])
	if len(from) == 0 {
		return
	}
	onUpdate, onDelete := parseRules(m[4])
	if strings.TrimSpace(m[3]) == "" {
		p.deferReference(from, m[2], onUpdate, onDelete)
		return
	}
	to := splitColumnList(m[3])
	if len(from) != len(to) {
		return
	}
	p.addEdges(from, m[2], to, onUpdate, onDelete)
}

func (p *ddlParser) nextOrdinal(fromTable string) int {
	ordinal := p.ordinals[fromTable]
	p.ordinals[fromTable] = ordinal + 1
	return ordinal
}

func (p *ddlParser) deferReference(from []string, target string, onUpdate, onDelete string) {
	fromTable := p.current.QualifiedName()
	toSchema, toName := splitParsedName(target)
	p.pending = append(p.pending, pendingReference{
		fromTable: fromTable,
		from:      from,
		toTable:   toSchema + "." + toName,
		onUpdate:  onUpdate,
		onDelete:  onDelete,
		ordinal:   p.nextOrdinal(fromTable),
	})
}

/*
 * resolvePending turns deferred references into edges against the target's
 * primary key. References whose target has no matching key are dropped.
 */
func (p *ddlParser) resolvePending() {
	if len(p.pending) == 0 {
		return
	}
	for _, ref := range p.pending {
		to := p.primaryKeys[ref.toTable]
		if len(to) == 0 || len(to) != len(ref.from) {
			continue
		}
		p.appendEdges(ref.fromTable, ref.from, ref.toTable, to, ref.onUpdate, ref.onDelete, ref.ordinal)
	}

	position := make(map[string]int, len(p.model.Order))
	for i, key := range p.model.Order {
		position[key] = i
	}
	edges := p.model.Edges
	sort.SliceStable(edges, func(i, j int) bool {
		if edges[i].FromTable != edges[j].FromTable {
			return position[edges[i].FromTable] < position[edges[j].FromTable]
		}
		return edges[i].Ordinal < edges[j].Ordinal
	})
}

func (p *ddlParser) addEdges(from []string, target string, to []string, onUpdate, onDelete string) {
	fromTable := p.current.QualifiedName()
	toSchema, toName := splitParsedName(target)
	p.appendEdges(fromTable, from, toSchema+"."+toName, to, onUpdate, onDelete, p.nextOrdinal(fromTable))
}

func (p *ddlParser) appendEdges(fromTable string, from []string, toTable string, to []string, onUpdate, onDelete string, ordinal int) {
	for i := range from {
		p.model.Edges = append(p.model.Edges, ForeignKeyEdge{
			FromTable:  fromTable,
			FromColumn: from[i],
			ToTable:    toTable,
			ToColumn:   to[i],
			OnUpdate:   onUpdate,
			OnDelete:   onDelete,
			Ordinal:    ordinal,
		})
	}
}

/*
 * constraintWords returns the upper-cased words of a column's constraint
 * text, leaving out quoted literals, quoted identifiers and anything in
 * parentheses, so CHECK (x IS NOT NULL) and DEFAULT 'NOT NULL' carry no
 * NOT NULL.
 */
func constraintWords(text string) []string {
	var b strings.Builder
	depth := 0
	var quote byte
	for i := 0; i < len(text); i++ {
		ch := text[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
			continue
		case ch == '\'' || ch == '"':
			quote = ch
			b.WriteByte(' ')
			continue
		case ch == '(':
			depth++
			b.WriteByte(' ')
			continue
		case ch == ')':
			if depth > 0 {
				depth--
			}
			b.WriteByte(' ')
			continue
		case depth > 0:
			continue
		}
		b.WriteByte(ch)
	}
	return strings.Fields(strings.ToUpper(b.String()))
}

/* hasWords reports whether seq occurs as consecutive words */
func hasWords(words []string, seq ...string) bool {
	for i := 0; i+len(seq) <= len(words); i++ {
		match := true
		for j, w := range seq {
			if words[i+j] != w {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func splitColumnName(line string) (string, string, bool) {
	loc := identRegex.FindStringIndex(line)
	if loc == nil {
		/* tolerate identifiers the strict pattern rejects, e.g. non-ASCII names */
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return "", "", false
		}
		return fields[0], strings.TrimSpace(strings.TrimPrefix(line, fields[0])), true
	}
	name := validation.Unquote(line[:loc[1]])
	return name, strings.TrimSpace(line[loc[1]:]), true
}

func splitParsedName(qualified string) (string, string) {
	var names []string
	rest := qualified
	for {
		rest = strings.TrimLeft(rest, " .")
		loc := identRegex.FindStringIndex(rest)
		if loc == nil {
			break
		}
		names = append(names, validation.Unquote(rest[:loc[1]]))
		rest = rest[loc[1]:]
	}
	switch len(names) {
	case 0:
		return DefaultSchema, qualified
	case 1:
		return DefaultSchema, names[0]
	}
	return names[0], names[1]
}

func splitColumnList(list string) []string {
	var out []string
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, validation.Unquote(part))
	}
	return out
}

func parseRules(text string) (string, string) {
	var onUpdate, onDelete string
	for _, m := range ruleRegex.FindAllStringSubmatch(text, -1) {
		rule := normalizeRule(m[2])
		if strings.EqualFold(m[1], "UPDATE") {
			onUpdate = rule
		} else {
			onDelete = rule
		}
	}
	return onUpdate, onDelete
}

/* normalizeRule canonicalizes a referential action; NO ACTION is stored as empty */
func normalizeRule(rule string) string {
	rule = strings.ToUpper(strings.Join(strings.Fields(rule), " "))
	if rule == RuleNoAction {
		return ""
	}
	return rule
}
