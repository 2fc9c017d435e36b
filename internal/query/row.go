/*-------------------------------------------------------------------------
 *
 * row.go
 *    Typed result rows and value normalization
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronDynamic/internal/query/row.go
 *
 *-------------------------------------------------------------------------
 */

package query

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math/big"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/neurondb/NeuronDynamic/internal/generator"
	"github.com/neurondb/NeuronDynamic/internal/schema"
	"github.com/neurondb/NeuronDynamic/internal/validation"
)

/* Row is one result row; fields keep the row model's order when encoded */
type Row struct {
	fields []string
	values map[string]interface{}
}

/* NewRow creates an empty row */
func NewRow() *Row {
	return &Row{values: make(map[string]interface{})}
}

/* Set assigns a field, appending it if new */
func (r *Row) Set(field string, value interface{}) {
	if _, ok := r.values[field]; !ok {
		r.fields = append(r.fields, field)
	}
	r.values[field] = value
}

/* Get returns a field value */
func (r *Row) Get(field string) (interface{}, bool) {
	v, ok := r.values[field]
	return v, ok
}

/* Fields returns field names in order */
func (r *Row) Fields() []string {
	return r.fields
}

/* Map returns the row as a plain map */
func (r *Row) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

func (r *Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.values[f])
		if err != nil {
			return nil, fmt.Errorf("failed to encode field '%s': %w", f, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

/* isPgVector reports whether the SQL type is a pgvector type taking '[..]' literals */
func isPgVector(sqlType string) bool {
	t := strings.ToLower(strings.TrimSpace(sqlType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = t[:i]
	}
	if i := strings.LastIndexByte(t, '.'); i >= 0 {
		t = t[i+1:]
	}
	return t == "vector" || t == "halfvec" || t == "sparsevec"
}

/* normalize converts a driver value into its JSON-friendly form for the field's type */
func normalize(v interface{}, f generator.ShapeField) (interface{}, error) {
	if v == nil {
		return nil, nil
	}

	switch x := v.(type) {
	case time.Time:
		return x.Format(temporalLayout(f.SQLType)), nil
	case [16]byte:
		return uuid.UUID(x).String(), nil
	case pgtype.UUID:
		if !x.Valid {
			return nil, nil
		}
		return uuid.UUID(x.Bytes).String(), nil
	case pgtype.Numeric:
		return normalizeNumeric(x)
	case *big.Int:
		return json.Number(x.String()), nil
	case int16:
		return normalizeNumber(int64(x), f), nil
	case int32:
		return normalizeNumber(int64(x), f), nil
	case int64:
		return normalizeNumber(x, f), nil
	case int:
		return normalizeNumber(int64(x), f), nil
	case float32:
		return float64(x), nil
	case netip.Prefix:
		return x.String(), nil
	case netip.Addr:
		return x.String(), nil
	case net.IPNet:
		return x.String(), nil
	case net.HardwareAddr:
		return x.String(), nil
	case string:
		if f.Type.IsVector() && isPgVector(f.SQLType) {
			return validation.ParseVector(x)
		}
		return x, nil
	case []interface{}:
		elem := f
		if f.Type.Elem != nil {
			elem.Type = *f.Type.Elem
		}
		elem.SQLType = elementSQLType(f.SQLType)
		out := make([]interface{}, len(x))
		for i := range x {
			n, err := normalize(x[i], elem)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case driver.Valuer:
		dv, err := x.Value()
		if err != nil {
			return nil, err
		}
		if dv == nil {
			return nil, nil
		}
		if _, loops := dv.(driver.Valuer); loops {
			return fmt.Sprint(dv), nil
		}
		return normalize(dv, f)
	case fmt.Stringer:
		return x.String(), nil
	}
	return v, nil
}

func normalizeNumber(i int64, f generator.ShapeField) interface{} {
	if f.Type.Kind == schema.KindFloat {
		return float64(i)
	}
	return i
}

/* normalizeNumeric keeps every digit; NaN and infinities have no JSON number form */
func normalizeNumeric(x pgtype.Numeric) (interface{}, error) {
	if !x.Valid {
		return nil, nil
	}
	dv, err := x.Value()
	if err != nil {
		return nil, err
	}
	s, ok := dv.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected numeric value %T", dv)
	}
	if x.NaN || x.InfinityModifier != pgtype.Finite {
		return s, nil
	}
	return json.Number(s), nil
}

/* elementSQLType strips one array level from a SQL type name */
func elementSQLType(sqlType string) string {
	t := strings.TrimSpace(sqlType)
	if strings.HasSuffix(t, "[]") {
		return strings.TrimSpace(strings.TrimSuffix(t, "[]"))
	}
	return strings.TrimPrefix(t, "_")
}

/* temporalLayout picks the output layout for a date or time column */
func temporalLayout(sqlType string) string {
	t := strings.ToLower(strings.TrimSpace(sqlType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		if j := strings.IndexByte(t[i:], ')'); j >= 0 {
			t = t[:i] + t[i+j+1:]
		}
	}
	if i := strings.LastIndexByte(t, '.'); i >= 0 {
		t = t[i+1:]
	}
	switch strings.Join(strings.Fields(t), " ") {
	case "date":
		return "2006-01-02"
	case "time", "time without time zone":
		return "15:04:05.999999999"
	case "timetz", "time with time zone":
		return "15:04:05.999999999Z07:00"
	case "timestamp", "timestamp without time zone":
		return "2006-01-02T15:04:05.999999999"
	}
	return time.RFC3339Nano
}
