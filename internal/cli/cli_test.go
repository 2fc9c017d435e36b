package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurondb/NeuronDynamic/internal/config"
)

const testDDL = `
CREATE TABLE customers (
    id integer NOT NULL,
    name text
);

CREATE TABLE orders (
    id integer NOT NULL,
    customer_id integer NOT NULL REFERENCES customers (id),
    date_created timestamp with time zone
);
`

func writeDDL(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schema.sql")
	require.NoError(t, os.WriteFile(path, []byte(testDDL), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestParseJoinGroups(t *testing.T) {
	groups, err := parseJoinGroups([]string{"orders, customers", "a,b,c"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"orders", "customers"}, {"a", "b", "c"}}, groups)

	_, err = parseJoinGroups([]string{"orders,"})
	assert.ErrorContains(t, err, "at least two tables")
}

func TestApplyFlagsOnlyChanged(t *testing.T) {
	opts := &options{ignore: map[string]*[]string{}}
	cmd := newServeCommand(opts)
	require.NoError(t, cmd.ParseFlags([]string{
		"--transport", "http",
		"--port", "9100",
		"--read-only",
		"--ignore-select-column", "password",
		"--ignore-select-column", "salt,token",
		"--join-group", "orders,customers",
		"--knn-order", "never",
	}))

	cfg := config.Default()
	require.NoError(t, applyFlags(cmd.Flags(), opts, cfg))

	assert.Equal(t, "http", cfg.Server.Transport)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.True(t, cfg.Generation.ReadOnly)
	assert.False(t, cfg.Generation.Overwrite)
	assert.Equal(t, []string{"password", "salt", "token"}, cfg.Generation.Ignore.Select)
	assert.Equal(t, []string{"id", "date_created", "date_updated"}, cfg.Generation.Ignore.Insert, "unset flags keep the defaults")
	assert.Equal(t, [][]string{{"orders", "customers"}}, cfg.Generation.JoinGroups)
	assert.Equal(t, "never", cfg.Query.KnnOrder)
}

func TestApplyFlagsClearsIgnoreList(t *testing.T) {
	opts := &options{ignore: map[string]*[]string{}}
	cmd := newGenerateCommand(opts)
	require.NoError(t, cmd.ParseFlags([]string{"--ignore-insert-column="}))

	cfg := config.Default()
	require.NoError(t, applyFlags(cmd.Flags(), opts, cfg))
	assert.Empty(t, cfg.Generation.Ignore.Insert)
}

func TestGenerateCommand(t *testing.T) {
	ddl := writeDDL(t)
	dir := filepath.Join(t.TempDir(), "artifacts")

	out, err := run(t, "generate", "--ddl-file", ddl, "--artifacts-dir", dir, "--join-group", "orders,customers")
	require.NoError(t, err)
	assert.Contains(t, out, "Artifacts: "+dir)
	assert.Contains(t, out, "select_joined")
	assert.Contains(t, out, "Operations: 9")

	for _, name := range []string{"insert.msgpack", "select.msgpack", "update.msgpack", "delete.msgpack", "select_joined.msgpack", "schema.sql"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	out, err = run(t, "generate", "--ddl-file", ddl, "--artifacts-dir", dir, "--join-group", "orders,customers")
	require.NoError(t, err)
	assert.Contains(t, out, "Published: -")
}

func TestGenerateReadOnly(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "generate", "--ddl-file", writeDDL(t), "--artifacts-dir", dir, "--read-only")
	require.NoError(t, err)
	assert.Contains(t, out, "Operations: 2")
	assert.NoFileExists(t, filepath.Join(dir, "insert.msgpack"))
}

func TestGenerateReportsFailures(t *testing.T) {
	_, err := run(t, "generate", "--ddl-file", writeDDL(t), "--artifacts-dir", "", "--join-group", "orders,missing")
	assert.ErrorContains(t, err, "failed to generate")
}

func TestDDLCommand(t *testing.T) {
	out, err := run(t, "ddl", "--ddl-file", writeDDL(t))
	require.NoError(t, err)
	assert.Contains(t, out, "CREATE TABLE public.customers (\n    id integer NOT NULL,\n    name text\n);")
	assert.Contains(t, out, "FOREIGN KEY (customer_id) REFERENCES public.customers (id)")

	file := filepath.Join(t.TempDir(), "out.sql")
	_, err = run(t, "ddl", "--ddl-file", writeDDL(t), "-o", file)
	require.NoError(t, err)
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, out, string(data))
}

func TestInvalidFlagValue(t *testing.T) {
	_, err := run(t, "generate", "--ddl-file", writeDDL(t), "--knn-order", "sometimes")
	assert.ErrorContains(t, err, "knn_order")
}
