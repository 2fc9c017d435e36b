/*-------------------------------------------------------------------------
 *
 * sql.go
 *    SQL identifier validation and quoting for NeuronDynamic
 *
 * Generated statements only ever interpolate identifiers that came from
 * the catalog or the join-group configuration. These helpers decide when
 * such an identifier can be written bare and quote it otherwise.
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronDynamic/internal/validation/sql.go
 *
 *-------------------------------------------------------------------------
 */

package validation

import (
	"regexp"
	"strings"
)

var (
	/* Lower-case identifier that PostgreSQL accepts without quoting */
	bareIdentifierRegex = regexp.MustCompile(`^[a-z_][a-z0-9_$]*$`)

	/* PostgreSQL reserved key words that always need quoting as identifiers */
	reservedKeywords = map[string]bool{
		"all": true, "analyse": true, "analyze": true, "and": true, "any": true,
		"array": true, "as": true, "asc": true, "asymmetric": true, "both": true,
		"case": true, "cast": true, "check": true, "collate": true, "column": true,
		"constraint": true, "create": true, "current_catalog": true, "current_date": true,
		"current_role": true, "current_time": true, "current_timestamp": true,
		"current_user": true, "default": true, "deferrable": true, "desc": true,
		"distinct": true, "do": true, "else": true, "end": true, "except": true,
		"false": true, "fetch": true, "for": true, "foreign": true, "from": true,
		"grant": true, "group": true, "having": true, "in": true, "initially": true,
		"intersect": true, "into": true, "lateral": true, "leading": true, "limit": true,
		"localtime": true, "localtimestamp": true, "not": true, "null": true, "offset": true,
		"on": true, "only": true, "or": true, "order": true, "placing": true,
		"primary": true, "references": true, "returning": true, "select": true,
		"session_user": true, "some": true, "symmetric": true, "system_user": true,
		"table": true, "then": true, "to": true, "trailing": true, "true": true,
		"union": true, "unique": true, "user": true, "using": true, "variadic": true,
		"when": true, "where": true, "window": true, "with": true,
	}
)

/* NeedsQuoting reports whether an identifier must be double-quoted to keep its spelling */
func NeedsQuoting(identifier string) bool {
	return !bareIdentifierRegex.MatchString(identifier) || reservedKeywords[identifier]
}

/* QuoteIdent renders one identifier, bare when possible */
func QuoteIdent(identifier string) string {
	if !NeedsQuoting(identifier) {
		return identifier
	}
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

/* QuoteQualified renders each part of a qualified name and joins them with dots */
func QuoteQualified(parts ...string) string {
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = QuoteIdent(p)
	}
	return strings.Join(quoted, ".")
}

/* SplitQualified splits "schema.table" or "table.column" on the first unquoted dot */
func SplitQualified(name string) (string, string, bool) {
	inQuote := false
	for i := 0; i < len(name); i++ {
		switch name[i] {
		case '"':
			inQuote = !inQuote
		case '.':
			if !inQuote {
				return Unquote(name[:i]), Unquote(name[i+1:]), true
			}
		}
	}
	return Unquote(name), "", false
}

/* Unquote strips surrounding double quotes and collapses doubled quotes */
func Unquote(identifier string) string {
	if len(identifier) >= 2 && identifier[0] == '"' && identifier[len(identifier)-1] == '"' {
		return strings.ReplaceAll(identifier[1:len(identifier)-1], `""`, `"`)
	}
	return identifier
}
