package filter

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileJSON(t *testing.T, doc string, opts Options) (Fragment, error) {
	t.Helper()
	expr, err := Parse(json.RawMessage(doc))
	if err != nil {
		return Fragment{}, err
	}
	return Compile(expr, opts)
}

func TestCompile(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		sql    string
		params []interface{}
	}{
		{"gte scenario", `{"age": {"gte": 18}}`, "age >= ?", []interface{}{int64(18)}},
		{"empty", `{}`, "", nil},
		{"null", `null`, "", nil},
		{
			"operators emitted in fixed order",
			`{"age": {"lte": 65, "gte": 18}}`,
			"age >= ? AND age <= ?",
			[]interface{}{int64(18), int64(65)},
		},
		{
			"fields in document order",
			`{"name": {"ilike": "a%"}, "age": {"ne": 3}}`,
			"name ILIKE ? AND age != ?",
			[]interface{}{"a%", int64(3)},
		},
		{
			"nested and/or",
			`{"OR": [{"age": {"lt": 18}}, {"AND": [{"status": {"eq": "active"}}, {"score": {"gt": 1.5}}]}]}`,
			"(age < ? OR (status = ? AND score > ?))",
			[]interface{}{int64(18), "active", 1.5},
		},
		{
			"not",
			`{"NOT": {"deleted_at": {"is_null": false}}}`,
			"NOT (deleted_at IS NOT NULL)",
			nil,
		},
		{"empty not contributes nothing", `{"NOT": {}}`, "", nil},
		{
			"empty children dropped",
			`{"AND": [{}, {"a": {"eq": 1}}, {"OR": []}]}`,
			"(a = ?)",
			[]interface{}{int64(1)},
		},
		{
			"and plus or in one node",
			`{"AND": [{"a": {"eq": 1}}], "OR": [{"b": {"eq": 2}}, {"c": {"eq": 3}}]}`,
			"(a = ?) AND (b = ? OR c = ?)",
			[]interface{}{int64(1), int64(2), int64(3)},
		},
		{
			"multi predicate field set nested",
			`{"OR": [{"a": {"gt": 1, "lt": 5}}, {"b": {"eq": true}}]}`,
			"((a > ? AND a < ?) OR b = ?)",
			[]interface{}{int64(1), int64(5), true},
		},
		{
			"in and not in",
			`{"id": {"in": [1, 2, 3], "not_in": ["x"]}}`,
			"id IN (?, ?, ?) AND id NOT IN (?)",
			[]interface{}{int64(1), int64(2), int64(3), "x"},
		},
		{"in_ alias", `{"id": {"in_": [7]}}`, "id IN (?)", []interface{}{int64(7)}},
		{"empty in", `{"id": {"in": []}}`, "FALSE", nil},
		{"empty not in", `{"id": {"not_in": []}}`, "TRUE", nil},
		{
			"between",
			`{"price": {"between": [1.5, 9]}}`,
			"price BETWEEN ? AND ?",
			[]interface{}{1.5, int64(9)},
		},
		{
			"like family",
			`{"s": {"like": "a%", "not_like": "b%", "ilike": "c%", "not_ilike": "d%"}}`,
			"s LIKE ? AND s NOT LIKE ? AND s ILIKE ? AND s NOT ILIKE ?",
			[]interface{}{"a%", "b%", "c%", "d%"},
		},
		{
			"quoted identifiers",
			`{"Order Date": {"eq": "2024-01-01"}, "user": {"is_null": true}}`,
			`"Order Date" = ? AND "user" IS NULL`,
			[]interface{}{"2024-01-01"},
		},
		{
			"knn with threshold",
			`{"embedding": {"knn": {"query": [1, 2.5, 3], "distance": "cosine", "threshold": 0.5}}}`,
			"embedding <=> (?)::vector < ?",
			[]interface{}{"[1,2.5,3]", 0.5},
		},
		{
			"knn without threshold filters nothing",
			`{"embedding": {"knn": {"query": [1, 2]}}, "a": {"eq": 1}}`,
			"a = ?",
			[]interface{}{int64(1)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frag, err := compileJSON(t, tt.doc, Options{})
			require.NoError(t, err)
			assert.Equal(t, tt.sql, frag.SQL)
			assert.Equal(t, tt.params, frag.Params)
			assert.Equal(t, strings.Count(frag.SQL, "?"), len(frag.Params))
		})
	}
}

func TestKnnImpliesOrdering(t *testing.T) {
	frag, err := compileJSON(t, `{"embedding": {"knn": {"query": [1, 2], "distance": "inner_product", "direction": "desc"}}}`, Options{})
	require.NoError(t, err)
	require.Len(t, frag.Knn, 1)
	assert.Equal(t, KnnOrder{Field: "embedding", Column: "embedding", Operator: "<#>", Vector: "[1,2]", Direction: Desc}, frag.Knn[0])

	frag, err = compileJSON(t, `{"embedding": {"knn": {"query": [1]}}}`, Options{})
	require.NoError(t, err)
	assert.Equal(t, "<->", frag.Knn[0].Operator)
	assert.Equal(t, Asc, frag.Knn[0].Direction)
}

func TestReservedKeyword(t *testing.T) {
	for _, doc := range []string{
		`{"AND": [{"a": {"eq": 1}}], "age": {"gte": 18}}`,
		`{"age": {"gte": 18}, "OR": []}`,
		`{"x": {"eq": 1}, "NOT": {"y": {"eq": 2}}}`,
		`{"AND": [{"a": {"eq": 1}, "AND": []}]}`,
	} {
		_, err := Parse(json.RawMessage(doc))
		var reserved *ReservedKeywordError
		assert.ErrorAs(t, err, &reserved, doc)
	}
}

func TestAliasesAndFieldWhitelist(t *testing.T) {
	opts := Options{
		Aliases: map[string]string{"orders_id": "orders.id", "customers_name": "public.customers.name"},
		Fields:  map[string]bool{"orders_id": true, "customers_name": true},
	}
	frag, err := compileJSON(t, `{"orders_id": {"eq": 5}, "customers_name": {"like": "A%"}}`, opts)
	require.NoError(t, err)
	assert.Equal(t, "orders.id = ? AND public.customers.name LIKE ?", frag.SQL)

	_, err = compileJSON(t, `{"password": {"eq": "x"}}`, opts)
	var unknown *UnknownFieldError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "password", unknown.Field)

	frag, err = compileJSON(t, `{"plain": {"eq": 1}}`, Options{Aliases: opts.Aliases})
	require.NoError(t, err)
	assert.Equal(t, "plain = ?", frag.SQL)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		doc    string
		target interface{}
	}{
		{`[1, 2]`, new(*SyntaxError)},
		{`{"a": 5}`, new(*SyntaxError)},
		{`{"a": {}}`, new(*SyntaxError)},
		{`{"a": {"approx": 1}}`, new(*SyntaxError)},
		{`{"AND": {"a": {"eq": 1}}}`, new(*SyntaxError)},
		{`{"a": {"eq": 1}, "a": {"eq": 2}}`, new(*SyntaxError)},
		{`{"a": {"between": [1]}}`, new(*OperandError)},
		{`{"a": {"in": 3}}`, new(*OperandError)},
		{`{"a": {"is_null": "yes"}}`, new(*OperandError)},
		{`{"a": {"eq": null}}`, new(*OperandError)},
		{`{"e": {"knn": {"query": []}}}`, new(*OperandError)},
		{`{"e": {"knn": {"query": [1], "distance": "manhattan"}}}`, new(*OperandError)},
		{`{"e": {"knn": {"query": [1], "direction": "sideways"}}}`, new(*OperandError)},
	}
	for _, tt := range tests {
		_, err := Parse(json.RawMessage(tt.doc))
		require.Error(t, err, tt.doc)
		assert.ErrorAs(t, err, tt.target, tt.doc)
	}
}

/* random trees: placeholders match params, params follow text order, nesting depth is preserved */
func TestCompileStructureProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for iter := 0; iter < 200; iter++ {
		counter := 0
		depths := map[string]int{}
		expr := randomTree(rng, 0, 0, &counter, depths)

		frag, err := Compile(expr, Options{})
		require.NoError(t, err)
		require.Equal(t, strings.Count(frag.SQL, "?"), len(frag.Params), frag.SQL)

		last := -1
		for i, p := range frag.Params {
			name := fmt.Sprintf("f%d = ?", p.(int))
			pos := strings.Index(frag.SQL, name)
			require.GreaterOrEqual(t, pos, 0, frag.SQL)
			require.Greater(t, pos, last, "param %d out of text order in %s", i, frag.SQL)
			last = pos

			prefix := frag.SQL[:pos]
			depth := strings.Count(prefix, "(") - strings.Count(prefix, ")")
			assert.Equal(t, depths[fmt.Sprintf("f%d", p.(int))], depth, frag.SQL)
		}
	}
}

func randomTree(rng *rand.Rand, level, depth int, counter *int, depths map[string]int) Expr {
	if level >= 4 || rng.Intn(3) == 0 {
		*counter++
		name := fmt.Sprintf("f%d", *counter)
		depths[name] = depth
		return &FieldSet{Predicates: []Predicate{&Comparison{Field: name, Op: OpEq, Operands: []interface{}{*counter}}}}
	}
	switch rng.Intn(3) {
	case 0:
		return &Logical{Not: randomTree(rng, level+1, depth+1, counter, depths)}
	default:
		n := 1 + rng.Intn(3)
		children := make([]Expr, n)
		for i := range children {
			children[i] = randomTree(rng, level+1, depth+1, counter, depths)
		}
		if rng.Intn(2) == 0 {
			return &Logical{And: children}
		}
		return &Logical{Or: children}
	}
}

func TestRenderColumnRef(t *testing.T) {
	assert.Equal(t, "id", RenderColumnRef("id"))
	assert.Equal(t, "orders.id", RenderColumnRef("orders.id"))
	assert.Equal(t, "public.orders.id", RenderColumnRef("public.orders.id"))
	assert.Equal(t, `"eu.sales".orders."Total"`, RenderColumnRef(`"eu.sales".orders.Total`))
}
