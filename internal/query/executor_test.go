package query

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurondb/NeuronDynamic/internal/database"
	"github.com/neurondb/NeuronDynamic/internal/filter"
	"github.com/neurondb/NeuronDynamic/internal/generator"
	"github.com/neurondb/NeuronDynamic/internal/order"
	"github.com/neurondb/NeuronDynamic/internal/schema"
)

type call struct {
	sql  string
	args []interface{}
}

type fakeQuerier struct {
	calls    []call
	result   *database.Result
	affected int64
	err      error
}

func (f *fakeQuerier) Query(ctx context.Context, sql string, args ...interface{}) (*database.Result, error) {
	f.calls = append(f.calls, call{sql, args})
	if f.err != nil {
		return nil, f.err
	}
	if f.result == nil {
		return &database.Result{}, nil
	}
	return f.result, nil
}

func (f *fakeQuerier) Exec(ctx context.Context, sql string, args ...interface{}) (int64, error) {
	f.calls = append(f.calls, call{sql, args})
	return f.affected, f.err
}

const usersDDL = `
CREATE TABLE customers (
    id integer NOT NULL,
    name text
);

CREATE TABLE users (
    id integer NOT NULL,
    name text NOT NULL,
    email text,
    embedding vector(3)
);

CREATE TABLE orders (
    id integer NOT NULL,
    customer_id integer NOT NULL,
    total numeric,
    FOREIGN KEY (customer_id) REFERENCES public.customers (id)
);
`

func descriptors(t *testing.T) map[string]*generator.OperationDescriptor {
	t.Helper()
	m, err := schema.ParseDDL(usersDDL)
	require.NoError(t, err)
	res := generator.NewGenerator(nil).Generate(m, generator.Options{
		Ignore:          map[generator.Kind][]string{generator.KindInsert: {"id"}},
		JoinGroups:      [][]string{{"orders", "customers"}},
		ReturningColumn: "id",
	})
	require.Empty(t, res.Failures)
	out := make(map[string]*generator.OperationDescriptor)
	for _, d := range res.Descriptors {
		out[d.Name] = d
	}
	return out
}

func parseFilter(t *testing.T, doc string) filter.Expr {
	t.Helper()
	e, err := filter.Parse(json.RawMessage(doc))
	require.NoError(t, err)
	return e
}

func TestRebind(t *testing.T) {
	assert.Equal(t, "a = $1 AND b = '?' AND \"c?\" = $2 AND d = 'it''s ?' AND e = $3",
		Rebind("a = ? AND b = '?' AND \"c?\" = ? AND d = 'it''s ?' AND e = ?"))
	assert.Equal(t, "SELECT 1", Rebind("SELECT 1"))
}

func TestInsert(t *testing.T) {
	d := descriptors(t)["insert_public_users"]
	db := &fakeQuerier{result: &database.Result{Columns: []string{"id"}, Rows: [][]interface{}{{int32(7)}, {int32(8)}}}}
	exec := NewExecutor(db, nil, order.ModeAuto)

	rows := []map[string]interface{}{
		{"name": "ann", "email": nil, "embedding": []interface{}{1.0, int64(2), 3.5}},
		{"name": "bob", "email": "b@x.io", "embedding": nil},
	}
	ids, err := exec.Insert(context.Background(), d, rows, true)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(7), int64(8)}, ids)

	require.Len(t, db.calls, 1)
	assert.Equal(t, "INSERT INTO public.users (name, email, embedding) VALUES ($1, $2, $3), ($4, $5, $6) RETURNING id", db.calls[0].sql)
	assert.Equal(t, []interface{}{"ann", nil, "[1,2,3.5]", "bob", "b@x.io", nil}, db.calls[0].args)

	_, err = exec.Insert(context.Background(), d, rows[:1], false)
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO public.users (name, email, embedding) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING RETURNING id", db.calls[1].sql)
}

func TestInsertEmptyBatch(t *testing.T) {
	db := &fakeQuerier{}
	ids, err := NewExecutor(db, nil, "").Insert(context.Background(), descriptors(t)["insert_public_users"], nil, true)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.NotNil(t, ids)
	assert.Empty(t, db.calls)
}

func TestInsertWithoutReturning(t *testing.T) {
	d := descriptors(t)["insert_public_orders"]
	d.Returning = ""
	db := &fakeQuerier{affected: 1}
	ids, err := NewExecutor(db, nil, "").Insert(context.Background(), d, []map[string]interface{}{{"customer_id": int64(1), "total": 9.5}}, true)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Equal(t, "INSERT INTO public.orders (customer_id, total) VALUES ($1, $2)", db.calls[0].sql)
}

func TestInsertConflict(t *testing.T) {
	pgErr := &pgconn.PgError{Code: database.UniqueViolation, ConstraintName: "users_email_key", Detail: "Key (email)=(b@x.io) already exists."}
	db := &fakeQuerier{err: &database.StatementError{SQL: "INSERT", Err: pgErr}}
	row := []map[string]interface{}{{"name": "bob", "email": "b@x.io", "embedding": nil}}

	_, err := NewExecutor(db, nil, "").Insert(context.Background(), descriptors(t)["insert_public_users"], row, true)
	var conflict *ConflictViolation
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "users_email_key", conflict.Constraint)
	assert.Equal(t, "insert_public_users", conflict.Operation)
}

func TestInsertRowValidation(t *testing.T) {
	d := descriptors(t)["insert_public_users"]
	tests := []struct {
		name  string
		row   map[string]interface{}
		field string
	}{
		{"missing field", map[string]interface{}{"name": "a", "email": "x"}, "embedding"},
		{"unknown field", map[string]interface{}{"name": "a", "email": "x", "embedding": nil, "id": 1}, "id"},
		{"null for non-nullable", map[string]interface{}{"name": nil, "email": "x", "embedding": nil}, "name"},
		{"bad vector", map[string]interface{}{"name": "a", "email": "x", "embedding": []interface{}{"x"}}, "embedding"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &fakeQuerier{}
			_, err := NewExecutor(db, nil, "").Insert(context.Background(), d, []map[string]interface{}{tt.row}, true)
			var rowErr *RowError
			require.ErrorAs(t, err, &rowErr)
			assert.Equal(t, tt.field, rowErr.Field)
			assert.Equal(t, 0, rowErr.Index)
			assert.Empty(t, db.calls)
		})
	}
}

func TestSelect(t *testing.T) {
	d := descriptors(t)["select_public_users"]
	db := &fakeQuerier{result: &database.Result{
		Columns: []string{"id", "name", "email", "embedding"},
		Rows:    [][]interface{}{{int32(1), "ann", nil, "[1,2,3]"}},
	}}
	exec := NewExecutor(db, nil, order.ModeAuto)

	limit := 10
	spec, err := order.Parse(json.RawMessage(`[{"field": "id", "direction": "DESC"}]`))
	require.NoError(t, err)
	rows, err := exec.Select(context.Background(), d, SelectRequest{
		Filter: parseFilter(t, `{"name": {"eq": "ann"}}`),
		Order:  spec,
		Limit:  &limit,
	})
	require.NoError(t, err)

	assert.Equal(t, "SELECT id, name, email, embedding FROM public.users WHERE name = $1 ORDER BY id DESC LIMIT $2", db.calls[0].sql)
	assert.Equal(t, []interface{}{"ann", 10}, db.calls[0].args)

	require.Len(t, rows, 1)
	encoded, err := json.Marshal(rows[0])
	require.NoError(t, err)
	assert.Equal(t, `{"id":1,"name":"ann","email":null,"embedding":[1,2,3]}`, string(encoded))
}

func TestSelectKnnParamOrder(t *testing.T) {
	d := descriptors(t)["select_public_users"]
	db := &fakeQuerier{}
	limit := 5
	_, err := NewExecutor(db, nil, order.ModeAuto).Select(context.Background(), d, SelectRequest{
		Filter: parseFilter(t, `{"embedding": {"knn": {"query": [1, 0, 0], "distance": "cosine", "threshold": 0.3}}}`),
		Limit:  &limit,
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, name, email, embedding FROM public.users WHERE embedding <=> ($1)::vector < $2 ORDER BY embedding <=> ($3)::vector ASC LIMIT $4", db.calls[0].sql)
	assert.Equal(t, []interface{}{"[1,0,0]", 0.3, "[1,0,0]", 5}, db.calls[0].args)

	_, err = NewExecutor(db, nil, order.ModeNever).Select(context.Background(), d, SelectRequest{
		Filter: parseFilter(t, `{"embedding": {"knn": {"query": [1, 0, 0]}}}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, name, email, embedding FROM public.users", db.calls[1].sql)
}

func TestSelectRejects(t *testing.T) {
	d := descriptors(t)["select_public_users"]
	db := &fakeQuerier{}
	exec := NewExecutor(db, nil, "")

	limit := -1
	_, err := exec.Select(context.Background(), d, SelectRequest{Limit: &limit})
	var rowErr *RowError
	assert.ErrorAs(t, err, &rowErr)

	_, err = exec.Select(context.Background(), d, SelectRequest{Filter: parseFilter(t, `{"secret; --": {"eq": 1}}`)})
	var unknown *filter.UnknownFieldError
	assert.ErrorAs(t, err, &unknown)

	_, err = exec.Select(context.Background(), descriptors(t)["delete_public_users"], SelectRequest{})
	assert.Error(t, err)
	assert.Empty(t, db.calls)
}

func TestJoinedSelect(t *testing.T) {
	d := descriptors(t)["select_joined_orders_customers"]
	db := &fakeQuerier{}
	_, err := NewExecutor(db, nil, "").Select(context.Background(), d, SelectRequest{
		Filter: parseFilter(t, `{"customers_name": {"like": "A%"}}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT orders.id AS orders_id, orders.customer_id AS orders_customer_id, orders.total AS orders_total, "+
		"customers.id AS customers_id, customers.name AS customers_name "+
		"FROM orders LEFT JOIN customers ON orders.customer_id = customers.id WHERE customers.name LIKE $1", db.calls[0].sql)
}

func TestUpdate(t *testing.T) {
	d := descriptors(t)["update_public_users"]
	db := &fakeQuerier{affected: 3}
	exec := NewExecutor(db, nil, "")

	n, err := exec.Update(context.Background(), d, map[string]interface{}{"email": nil, "name": "z"}, parseFilter(t, `{"id": {"eq": 4}}`))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, "UPDATE public.users SET name = $1, email = $2 WHERE id = $3", db.calls[0].sql)
	assert.Equal(t, []interface{}{"z", nil, int64(4)}, db.calls[0].args)

	n, err = exec.Update(context.Background(), d, map[string]interface{}{}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, db.calls, 1, "no statement when no field is present")

	_, err = exec.Update(context.Background(), d, map[string]interface{}{"nope": 1}, nil)
	var rowErr *RowError
	assert.ErrorAs(t, err, &rowErr)
}

func TestDelete(t *testing.T) {
	d := descriptors(t)["delete_public_users"]
	db := &fakeQuerier{affected: 2}
	n, err := NewExecutor(db, nil, "").Delete(context.Background(), d, parseFilter(t, `{"id": {"in": [1, 2]}}`))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, "DELETE FROM public.users WHERE id IN ($1, $2)", db.calls[0].sql)

	_, err = NewExecutor(db, nil, "").Delete(context.Background(), d, nil)
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM public.users", db.calls[1].sql)
}

func TestPoolErrorsPassThrough(t *testing.T) {
	db := &fakeQuerier{err: &database.PoolExhaustedError{Timeout: time.Second}}
	_, err := NewExecutor(db, nil, "").Delete(context.Background(), descriptors(t)["delete_public_users"], nil)
	var exhausted *database.PoolExhaustedError
	assert.ErrorAs(t, err, &exhausted)
	assert.True(t, database.IsPoolError(err))
	assert.False(t, errors.As(err, new(*ConflictViolation)))
}

func TestNormalize(t *testing.T) {
	ts := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	v, err := normalize(ts, generator.ShapeField{})
	require.NoError(t, err)
	assert.Equal(t, "2024-05-06T07:08:09Z", v)

	id := [16]byte{0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0, 0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0}
	v, err = normalize(id, generator.ShapeField{})
	require.NoError(t, err)
	assert.Equal(t, "12345678-9abc-def0-1234-56789abcdef0", v)

	v, err = normalize(pgtype.Numeric{Int: big.NewInt(1234), Exp: -2, Valid: true}, generator.ShapeField{})
	require.NoError(t, err)
	assert.Equal(t, json.Number("12.34"), v)

	floatField := generator.ShapeField{Type: schema.TypeRef{Kind: schema.KindFloat}}
	v, err = normalize(int64(3), floatField)
	require.NoError(t, err)
	assert.Equal(t, float64(3), v)

	vecField := generator.ShapeField{SQLType: "vector(2)", Type: schema.MapType("vector(2)")}
	v, err = normalize("[0.5,1]", vecField)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 1}, v)

	v, err = normalize("[0.5,1]", generator.ShapeField{SQLType: "text", Type: schema.MapType("text")})
	require.NoError(t, err)
	assert.Equal(t, "[0.5,1]", v)
}

func TestNormalizeNumericKeepsPrecision(t *testing.T) {
	big18, ok := new(big.Int).SetString("123456789012345678901", 10)
	require.True(t, ok)
	field := generator.ShapeField{SQLType: "numeric(30,10)", Type: schema.MapType("numeric(30,10)")}

	v, err := normalize(pgtype.Numeric{Int: big18, Exp: -10, Valid: true}, field)
	require.NoError(t, err)
	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, "12345678901.2345678901", string(out))

	v, err = normalize(pgtype.Numeric{NaN: true, Valid: true}, field)
	require.NoError(t, err)
	assert.Equal(t, "NaN", v)

	v, err = normalize(pgtype.Numeric{}, field)
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = normalize(new(big.Int).Lsh(big.NewInt(1), 70), generator.ShapeField{})
	require.NoError(t, err)
	assert.Equal(t, json.Number("1180591620717411303424"), v)
}

func TestNormalizeTemporalBySQLType(t *testing.T) {
	ts := time.Date(2024, 1, 2, 13, 4, 5, 500000000, time.FixedZone("", 2*3600))
	tests := []struct {
		sqlType string
		want    string
	}{
		{"date", "2024-01-02"},
		{"timestamp without time zone", "2024-01-02T13:04:05.5"},
		{"timestamp(3) without time zone", "2024-01-02T13:04:05.5"},
		{"timestamp with time zone", "2024-01-02T13:04:05.5+02:00"},
		{"time without time zone", "13:04:05.5"},
		{"", "2024-01-02T13:04:05.5+02:00"},
	}
	for _, tt := range tests {
		t.Run(tt.sqlType, func(t *testing.T) {
			v, err := normalize(ts, generator.ShapeField{SQLType: tt.sqlType})
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}

	dates := generator.ShapeField{SQLType: "date[]", Type: schema.MapType("date[]")}
	v, err := normalize([]interface{}{ts, nil}, dates)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"2024-01-02", nil}, v)
}

func TestRowPreservesFieldOrder(t *testing.T) {
	r := NewRow()
	r.Set("z", 1)
	r.Set("a", "x")
	r.Set("z", 2)
	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, `{"z":2,"a":"x"}`, string(out))
	assert.Equal(t, []string{"z", "a"}, r.Fields())
}
