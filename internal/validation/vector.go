/*-------------------------------------------------------------------------
 *
 * vector.go
 *    Vector validation and pgvector text encoding
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronDynamic/internal/validation/vector.go
 *
 *-------------------------------------------------------------------------
 */

package validation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

/* ValidateVector checks that a query vector is non-empty and finite */
func ValidateVector(vector []float64, fieldName string) error {
	if len(vector) == 0 {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	for i, v := range vector {
		if math.IsNaN(v) {
			return fmt.Errorf("%s contains NaN at index %d", fieldName, i)
		}
		if math.IsInf(v, 0) {
			return fmt.Errorf("%s contains Infinity at index %d", fieldName, i)
		}
	}
	return nil
}

/* FormatVector renders a vector in pgvector text form: [1,2.5,3] */
func FormatVector(vector []float64) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vector {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	b.WriteByte(']')
	return b.String()
}

/* ParseVector parses pgvector text form back into floats */
func ParseVector(text string) ([]float64, error) {
	text = strings.TrimSpace(text)
	if len(text) < 2 || text[0] != '[' || text[len(text)-1] != ']' {
		return nil, fmt.Errorf("invalid vector literal %q: expected [..]", text)
	}
	body := strings.TrimSpace(text[1 : len(text)-1])
	if body == "" {
		return []float64{}, nil
	}
	parts := strings.Split(body, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid vector element %q at index %d: %w", p, i, err)
		}
		out[i] = v
	}
	return out, nil
}

/* ValidateLimit validates a row limit */
func ValidateLimit(limit int) error {
	if limit < 0 {
		return fmt.Errorf("limit must not be negative, got %d", limit)
	}
	return nil
}
