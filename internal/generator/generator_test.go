package generator

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurondb/NeuronDynamic/internal/logging"
	"github.com/neurondb/NeuronDynamic/internal/schema"
)

const shopDDL = `
CREATE TABLE customers (
    id integer NOT NULL,
    name text,
    date_created timestamp without time zone
);

CREATE TABLE orders (
    id integer NOT NULL,
    customer_id integer NOT NULL,
    total numeric,
    FOREIGN KEY (customer_id) REFERENCES public.customers (id)
);

CREATE TABLE a (
    x integer NOT NULL
);

CREATE TABLE b (
    y integer
);
`

func shopModel(t *testing.T) *schema.Model {
	t.Helper()
	m, err := schema.ParseDDL(shopDDL)
	require.NoError(t, err)
	return m
}

func descriptorNames(res *Result) []string {
	out := make([]string, len(res.Descriptors))
	for i, d := range res.Descriptors {
		out[i] = d.Name
	}
	return out
}

func find(t *testing.T, res *Result, name string) *OperationDescriptor {
	t.Helper()
	for _, d := range res.Descriptors {
		if d.Name == name {
			return d
		}
	}
	require.Failf(t, "descriptor not generated", "%s", name)
	return nil
}

func TestGenerateOrderAndNaming(t *testing.T) {
	res := NewGenerator(nil).Generate(shopModel(t), Options{JoinGroups: [][]string{{"orders", "customers"}}})
	require.Empty(t, res.Failures)
	assert.Equal(t, []string{
		"insert_public_customers", "select_public_customers", "update_public_customers", "delete_public_customers",
		"insert_public_orders", "select_public_orders", "update_public_orders", "delete_public_orders",
		"insert_public_a", "select_public_a", "update_public_a", "delete_public_a",
		"insert_public_b", "select_public_b", "update_public_b", "delete_public_b",
		"select_joined_orders_customers",
	}, descriptorNames(res))

	sel := find(t, res, "select_public_customers")
	assert.Equal(t, "SelectPublicCustomersRow", sel.Shape.Model)
	assert.Equal(t, "FROM public.customers", sel.JoinClause)
	assert.Equal(t, "public.customers", sel.Target)
}

func TestModelName(t *testing.T) {
	assert.Equal(t, "SelectPublicUsersRow", ModelName("select_public_users"))
	assert.Equal(t, "SelectJoinedOrdersCustomersRow", ModelName("select_joined_orders_customers"))
	assert.Equal(t, "InsertSalesLineItemsRow", ModelName(OperationName(KindInsert, "sales.line_items")))
	assert.Equal(t, "select_public_Order_Items", OperationName(KindSelect, "public.Order Items"))
}

func TestShapes(t *testing.T) {
	res := NewGenerator(nil).Generate(shopModel(t), Options{ReturningColumn: "id"})

	ins := find(t, res, "insert_public_customers")
	require.Len(t, ins.Shape.Fields, 3)
	for _, f := range ins.Shape.Fields {
		assert.True(t, f.Required, f.Name)
	}
	assert.True(t, ins.Shape.Fields[1].Type.Optional, "nullable columns accept null")
	assert.Equal(t, "id", ins.Returning)
	assert.Equal(t, "", find(t, res, "insert_public_b").Returning)

	sel := find(t, res, "select_public_customers")
	assert.True(t, sel.Shape.Fields[0].Required)
	assert.False(t, sel.Shape.Fields[1].Required)

	upd := find(t, res, "update_public_customers")
	for _, f := range upd.Shape.Fields {
		assert.False(t, f.Required, f.Name)
		assert.True(t, f.Type.Optional, f.Name)
	}

	del := find(t, res, "delete_public_customers")
	assert.Empty(t, del.Shape.Fields)
	assert.Equal(t, []string{"id", "name", "date_created"}, del.Filterable)
}

func TestIgnoredColumnsAbsentFromShapes(t *testing.T) {
	ignore := map[Kind][]string{
		KindInsert:       {"id", "date_created"},
		KindSelect:       {"date_created"},
		KindUpdate:       {"id"},
		KindSelectJoined: {"date_created"},
	}
	res := NewGenerator(nil).Generate(shopModel(t), Options{Ignore: ignore, JoinGroups: [][]string{{"orders", "customers"}}})
	require.Empty(t, res.Failures)

	for _, d := range res.Descriptors {
		for _, f := range d.Shape.Fields {
			column := f.Name
			if d.Kind == KindSelectJoined {
				_, column, _ = cutLast(f.Column)
			}
			assert.NotContains(t, ignore[d.Kind], column, "%s exposes ignored column %s", d.Name, column)
		}
	}

	ins := find(t, res, "insert_public_customers")
	require.Len(t, ins.Shape.Fields, 1)
	assert.Equal(t, "name", ins.Shape.Fields[0].Name)

	upd := find(t, res, "update_public_customers")
	assert.Contains(t, upd.Filterable, "id", "ignored columns stay filterable")
}

func cutLast(s string) (string, string, bool) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return s[:i], s[i+1:], true
		}
	}
	return "", s, false
}

func TestAllColumnsIgnoredFailsOnlyThatOperation(t *testing.T) {
	res := NewGenerator(nil).Generate(shopModel(t), Options{Ignore: map[Kind][]string{KindInsert: {"x"}}})
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "insert_public_a", res.Failures[0].Name)
	find(t, res, "select_public_a")
}

func TestReadOnly(t *testing.T) {
	res := NewGenerator(nil).Generate(shopModel(t), Options{ReadOnly: true, JoinGroups: [][]string{{"orders", "customers"}}})
	for _, d := range res.Descriptors {
		assert.True(t, d.Kind.ReadOnly(), d.Name)
	}
	assert.Len(t, res.Descriptors, 5)
}

func TestJoinScenario(t *testing.T) {
	res := NewGenerator(nil).Generate(shopModel(t), Options{JoinGroups: [][]string{{"orders", "customers"}}})
	d := find(t, res, "select_joined_orders_customers")

	assert.Equal(t, "FROM orders LEFT JOIN customers ON orders.customer_id = customers.id", d.JoinClause)
	assert.Equal(t, []string{"public.orders", "public.customers"}, d.Tables)
	assert.Equal(t, "customers.name", d.Aliases["customers_name"])
	assert.Equal(t, "orders.total", d.Aliases["orders_total"])

	byName := map[string]ShapeField{}
	for _, f := range d.Shape.Fields {
		byName[f.Name] = f
	}
	assert.True(t, byName["orders_id"].Required)
	assert.False(t, byName["customers_id"].Required, "non-base columns are optional")
	assert.True(t, byName["customers_id"].Type.Optional)
	assert.Equal(t, "SelectJoinedOrdersCustomersRow", d.Shape.Model)
}

func TestJoinReverseOrientation(t *testing.T) {
	res := NewGenerator(nil).Generate(shopModel(t), Options{JoinGroups: [][]string{{"customers", "public.orders"}}})
	require.Empty(t, res.Failures)
	d := find(t, res, "select_joined_customers_public_orders")
	assert.Equal(t, "FROM customers LEFT JOIN public.orders ON public.orders.customer_id = customers.id", d.JoinClause)
	assert.Equal(t, "public.orders.total", d.Aliases["orders_total"])
}

func TestJoinFailuresAreIsolated(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, "debug", "json")
	res := NewGenerator(logger).Generate(shopModel(t), Options{JoinGroups: [][]string{
		{"a", "b"},
		{"orders", "ghosts"},
		{"orders", "customers"},
	}})

	require.Len(t, res.Failures, 2)
	var notFound *JoinPathNotFoundError
	require.ErrorAs(t, res.Failures[0], &notFound)
	assert.Equal(t, "b", notFound.Table)
	assert.Equal(t, "select_joined_a_b", res.Failures[0].Name)

	var unknown *UnknownTableError
	require.ErrorAs(t, res.Failures[1], &unknown)
	assert.Equal(t, "ghosts", unknown.Table)

	find(t, res, "select_public_a")
	find(t, res, "select_joined_orders_customers")
	assert.Contains(t, buf.String(), "Join group generation failed")
}

func TestCompositeForeignKeyJoin(t *testing.T) {
	m, err := schema.ParseDDL(`
CREATE TABLE parts (
    maker text NOT NULL,
    code text NOT NULL
);
CREATE TABLE stock (
    maker text,
    code text,
    qty integer,
    FOREIGN KEY (maker, code) REFERENCES public.parts (maker, code)
);
`)
	require.NoError(t, err)
	res := NewGenerator(nil).Generate(m, Options{JoinGroups: [][]string{{"stock", "parts"}}})
	require.Empty(t, res.Failures)
	d := find(t, res, "select_joined_stock_parts")
	assert.Equal(t, "FROM stock LEFT JOIN parts ON stock.maker = parts.maker AND stock.code = parts.code", d.JoinClause)
}

func TestUnknownTypesAreLogged(t *testing.T) {
	var buf bytes.Buffer
	m, err := schema.ParseDDL("CREATE TABLE shapes (\n    g geometry\n);\n")
	require.NoError(t, err)
	res := NewGenerator(logging.NewWithWriter(&buf, "debug", "json")).Generate(m, Options{})
	require.Empty(t, res.Failures)
	assert.Equal(t, schema.KindAny, find(t, res, "select_public_shapes").Shape.Fields[0].Type.Kind)
	assert.Contains(t, buf.String(), "geometry")
}

func TestJoinQuotedSchemaWithDot(t *testing.T) {
	m, err := schema.ParseDDL(`
CREATE TABLE customers (
    id integer NOT NULL
);
CREATE TABLE "eu.sales".orders (
    id integer NOT NULL,
    customer_id integer REFERENCES public.customers (id)
);
`)
	require.NoError(t, err)
	res := NewGenerator(nil).Generate(m, Options{JoinGroups: [][]string{{`"eu.sales".orders`, "customers"}}})
	require.Empty(t, res.Failures)

	var joined *OperationDescriptor
	for _, d := range res.Descriptors {
		if d.Kind == KindSelectJoined {
			joined = d
		}
	}
	require.NotNil(t, joined)
	assert.Equal(t, `FROM "eu.sales".orders LEFT JOIN customers ON "eu.sales".orders.customer_id = customers.id`, joined.JoinClause)
	assert.Equal(t, []string{"eu.sales.orders", "public.customers"}, joined.Tables)
}
