package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapType(t *testing.T) {
	tests := []struct {
		sqlType string
		want    string
	}{
		{"integer", "int"},
		{"bigint", "int"},
		{"smallserial", "int"},
		{"numeric(10,2)", "float"},
		{"double precision", "float"},
		{"real", "float"},
		{"boolean", "bool"},
		{"text", "str"},
		{"character varying(255)", "str"},
		{"uuid", "str"},
		{"timestamp with time zone", "str"},
		{"timestamp(3) without time zone", "str"},
		{"date", "str"},
		{"interval", "str"},
		{"jsonb", "dict"},
		{"bytea", "bytes"},
		{"inet", "str"},
		{"macaddr8", "str"},
		{"vector(3)", "list[float]"},
		{"halfvec(768)", "list[float]"},
		{"integer[]", "list[int]"},
		{"text[]", "list[str]"},
		{"_int4", "list[int]"},
		{"character varying(20)[]", "list[str]"},
		{"  TEXT  ", "str"},
		{"geometry(Point,4326)", "any"},
		{"my_enum", "any"},
		{"public.my_enum[]", "list[any]"},
	}
	for _, tt := range tests {
		t.Run(tt.sqlType, func(t *testing.T) {
			assert.Equal(t, tt.want, MapType(tt.sqlType).String())
		})
	}
}

func TestNullableWrapping(t *testing.T) {
	c := NewColumn("email", "text", true)
	assert.Equal(t, "Optional[str]", c.Type.String())
	assert.True(t, c.Type.Optional)

	c = NewColumn("id", "integer", false)
	assert.Equal(t, "int", c.Type.String())
	assert.Equal(t, "int", NonNull(Nullable(c.Type)).String())
}

func TestJSONSchema(t *testing.T) {
	assert.Equal(t, map[string]interface{}{"type": "integer"}, MapType("int4").JSONSchema())
	assert.Equal(t, map[string]interface{}{"type": []interface{}{"string", "null"}}, Nullable(MapType("text")).JSONSchema())
	assert.Equal(t, map[string]interface{}{
		"type":  "array",
		"items": map[string]interface{}{"type": "number"},
	}, MapType("vector(3)").JSONSchema())
	assert.Equal(t, map[string]interface{}{}, Nullable(MapType("geometry")).JSONSchema())
	assert.True(t, MapType("vector").IsVector())
	assert.False(t, MapType("int[]").IsVector())
}

func TestIsKnownType(t *testing.T) {
	assert.True(t, IsKnownType("integer"))
	assert.True(t, IsKnownType("text[]"))
	assert.False(t, IsKnownType("tsrange"))
	assert.False(t, IsKnownType("my_enum[]"))
}
