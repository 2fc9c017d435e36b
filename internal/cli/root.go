/*-------------------------------------------------------------------------
 *
 * root.go
 *    Root command and shared flags for neurondb-dynamic
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronDynamic/internal/cli/root.go
 *
 *-------------------------------------------------------------------------
 */

package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/neurondb/NeuronDynamic/internal/config"
	"github.com/neurondb/NeuronDynamic/internal/server"
)

/* options carries flag values shared by the subcommands */
type options struct {
	configPath string
	logLevel   string

	transport string
	host      string
	port      int

	overwrite    bool
	readOnly     bool
	artifactsDir string
	ddlFile      string
	schemas      []string
	knnOrder     string
	joinGroups   []string
	ignore       map[string]*[]string
}

var ignoreVerbs = []string{"insert", "select", "update", "delete", "select-joined"}

/* NewRootCommand builds the neurondb-dynamic command tree */
func NewRootCommand() *cobra.Command {
	opts := &options{ignore: make(map[string]*[]string, len(ignoreVerbs))}

	root := &cobra.Command{
		Use:   "neurondb-dynamic",
		Short: "NeuronDynamic - MCP tools generated from a PostgreSQL schema",
		Long: `NeuronDynamic introspects a PostgreSQL schema, generates insert, select,
update, delete and joined select operations for its tables and serves them
as MCP tools over stdio or HTTP.

Examples:
  # Serve over stdio using PG_* environment variables
  neurondb-dynamic serve

  # Serve over HTTP with a join between orders and customers
  neurondb-dynamic serve --transport http --port 8000 --join-group orders,customers

  # Regenerate artifacts without serving
  neurondb-dynamic generate --overwrite

  # Print the schema snapshot the operations are generated from
  neurondb-dynamic ddl
`,
		Version:       server.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to YAML configuration file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	root.AddCommand(newServeCommand(opts))
	root.AddCommand(newGenerateCommand(opts))
	root.AddCommand(newDDLCommand(opts))
	return root
}

/* Execute runs the root command and exits non-zero on failure */
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

/* addGenerationFlags registers the flags that shape generated operations */
func addGenerationFlags(fs *pflag.FlagSet, opts *options) {
	fs.BoolVar(&opts.overwrite, "overwrite", false, "Regenerate artifacts even when they are ready")
	fs.BoolVar(&opts.readOnly, "read-only", false, "Generate only select and joined select operations")
	fs.StringVar(&opts.artifactsDir, "artifacts-dir", "", "Directory for operation artifacts (empty keeps them in memory)")
	fs.StringVar(&opts.ddlFile, "ddl-file", "", "Read the schema from a DDL file instead of the database catalog")
	fs.StringSliceVar(&opts.schemas, "schema", nil, "Schemas to introspect (repeatable, default public)")
	fs.StringVar(&opts.knnOrder, "knn-order", "", "Nearest-neighbour ordering mode (auto, always, never)")
	fs.StringArrayVar(&opts.joinGroups, "join-group", nil, "Comma-separated tables joined along foreign keys (repeatable)")
	for _, verb := range ignoreVerbs {
		cols, ok := opts.ignore[verb]
		if !ok {
			cols = new([]string)
			opts.ignore[verb] = cols
		}
		fs.StringSliceVar(cols, "ignore-"+verb+"-column", nil, fmt.Sprintf("Column left out of %s operations (repeatable)", strings.ReplaceAll(verb, "-", " ")))
	}
}

/* loadConfig loads file and environment configuration, then applies changed flags */
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if err := applyFlags(cmd.Flags(), opts, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

/* applyFlags overrides cfg with every flag the user set explicitly */
func applyFlags(fs *pflag.FlagSet, opts *options, cfg *config.Config) error {
	changed := fs.Changed

	if changed("log-level") {
		cfg.Logging.Level = opts.logLevel
	}
	if changed("transport") {
		cfg.Server.Transport = opts.transport
	}
	if changed("host") {
		cfg.Server.Host = opts.host
	}
	if changed("port") {
		cfg.Server.Port = opts.port
	}
	if changed("overwrite") {
		cfg.Generation.Overwrite = opts.overwrite
	}
	if changed("read-only") {
		cfg.Generation.ReadOnly = opts.readOnly
	}
	if changed("artifacts-dir") {
		cfg.Generation.ArtifactsDir = opts.artifactsDir
	}
	if changed("ddl-file") {
		cfg.Generation.DDLFile = opts.ddlFile
	}
	if changed("schema") {
		cfg.Generation.Schemas = opts.schemas
	}
	if changed("knn-order") {
		cfg.Query.KnnOrder = opts.knnOrder
	}
	if changed("join-group") {
		groups, err := parseJoinGroups(opts.joinGroups)
		if err != nil {
			return err
		}
		cfg.Generation.JoinGroups = groups
	}

	ignore := &cfg.Generation.Ignore
	targets := map[string]*[]string{
		"insert":        &ignore.Insert,
		"select":        &ignore.Select,
		"update":        &ignore.Update,
		"delete":        &ignore.Delete,
		"select-joined": &ignore.SelectJoined,
	}
	for verb, cols := range opts.ignore {
		if changed("ignore-" + verb + "-column") {
			*targets[verb] = *cols
		}
	}
	return nil
}

/* parseJoinGroups splits each "a,b,c" flag value into an ordered table list */
func parseJoinGroups(values []string) ([][]string, error) {
	groups := make([][]string, 0, len(values))
	for _, v := range values {
		var group []string
		for _, table := range strings.Split(v, ",") {
			if table = strings.TrimSpace(table); table != "" {
				group = append(group, table)
			}
		}
		if len(group) < 2 {
			return nil, fmt.Errorf("join group '%s' must name at least two tables", v)
		}
		groups = append(groups, group)
	}
	return groups, nil
}
