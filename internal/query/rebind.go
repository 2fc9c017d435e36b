/*-------------------------------------------------------------------------
 *
 * rebind.go
 *    Placeholder renumbering
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronDynamic/internal/query/rebind.go
 *
 *-------------------------------------------------------------------------
 */

package query

import (
	"strconv"
	"strings"
)

/*
 * Rebind rewrites '?' placeholders as $1, $2, ... in order of appearance.
 * Question marks inside single-quoted literals and double-quoted
 * identifiers are left alone.
 */
func Rebind(sql string) string {
	var b strings.Builder
	b.Grow(len(sql) + 8)
	n := 0
	var quote byte
	for i := 0; i < len(sql); i++ {
		ch := sql[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"':
			quote = ch
		case ch == '?':
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(ch)
	}
	return b.String()
}
