/*-------------------------------------------------------------------------
 *
 * generate.go
 *    generate and ddl commands
 *
 * generate runs one generation pass and publishes the artifacts without
 * serving; ddl prints the schema snapshot generation works from. Both read
 * the schema from --ddl-file without connecting when it is given.
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronDynamic/internal/cli/generate.go
 *
 *-------------------------------------------------------------------------
 */

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/neurondb/NeuronDynamic/internal/config"
	"github.com/neurondb/NeuronDynamic/internal/database"
	"github.com/neurondb/NeuronDynamic/internal/generator"
	"github.com/neurondb/NeuronDynamic/internal/logging"
	"github.com/neurondb/NeuronDynamic/internal/registry"
	"github.com/neurondb/NeuronDynamic/internal/schema"
	"github.com/neurondb/NeuronDynamic/internal/server"
)

func newGenerateCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate and publish operation artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, opts)
		},
	}
	addGenerationFlags(cmd.Flags(), opts)
	return cmd
}

func newDDLCommand(opts *options) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "ddl",
		Short: "Print the DDL snapshot of the introspected schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDDL(cmd, opts, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the snapshot to a file instead of stdout")
	cmd.Flags().StringVar(&opts.ddlFile, "ddl-file", "", "Normalize a DDL file instead of reading the database catalog")
	cmd.Flags().StringSliceVar(&opts.schemas, "schema", nil, "Schemas to introspect (repeatable, default public)")
	return cmd
}

/* openSource returns the configured schema source and, when it needs one, the pool behind it */
func openSource(ctx context.Context, cfg *config.Config, logger *logging.Logger) (schema.Source, *database.Database, error) {
	if cfg.Generation.DDLFile != "" {
		return schema.DDLFileSource{Path: cfg.Generation.DDLFile}, nil, nil
	}
	db := database.NewDatabase(logger)
	if err := db.Connect(ctx, cfg.Database); err != nil {
		return nil, nil, err
	}
	return schema.NewIntrospector(db, cfg.Generation.Schemas), db, nil
}

func closeDatabase(db *database.Database, logger *logging.Logger) {
	if db == nil {
		return
	}
	if err := db.Close(context.Background()); err != nil {
		logger.Warn("Database close error", map[string]interface{}{"error": err.Error()})
	}
}

func runGenerate(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	logger := logging.NewLogger(cfg.Logging)
	ctx := cmd.Context()

	source, db, err := openSource(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDatabase(db, logger)

	components := server.Components{Source: source}
	if db != nil {
		components.DB = db
	}
	srv, err := server.NewWithComponents(cfg, logger, components)
	if err != nil {
		return err
	}
	report, err := srv.Regenerate(ctx)
	if err != nil {
		return err
	}
	printReport(cmd.OutOrStdout(), cfg.Generation.ArtifactsDir, report)
	if len(report.Failures) > 0 {
		return fmt.Errorf("%d operation(s) failed to generate", len(report.Failures))
	}
	return nil
}

func printReport(w io.Writer, dir string, report *registry.Report) {
	if dir == "" {
		dir = "(in memory)"
	}
	fmt.Fprintf(w, "Artifacts: %s\n", dir)
	fmt.Fprintf(w, "Published: %s\n", joinKinds(report.Published))
	fmt.Fprintf(w, "Reused:    %s\n", joinKinds(report.Reused))

	byKind := make(map[generator.Kind]int)
	for _, d := range report.Descriptors {
		byKind[d.Kind]++
	}
	fmt.Fprintf(w, "Operations: %d\n", len(report.Descriptors))
	kinds := make([]string, 0, len(byKind))
	for k := range byKind {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(w, "  %-14s %d\n", k, byKind[generator.Kind(k)])
	}

	for _, f := range report.Failures {
		fmt.Fprintf(w, "FAILED %s (%s): %v\n", f.Name, f.Kind, f.Err)
	}
}

func joinKinds(kinds []generator.Kind) string {
	if len(kinds) == 0 {
		return "-"
	}
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

func runDDL(cmd *cobra.Command, opts *options, output string) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	logger := logging.NewLogger(cfg.Logging)
	ctx := cmd.Context()

	source, db, err := openSource(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDatabase(db, logger)

	model, err := source.Load(ctx)
	if err != nil {
		return err
	}
	ddl := schema.RenderDDL(model)

	if output == "" {
		_, err = io.WriteString(cmd.OutOrStdout(), ddl)
		return err
	}
	if err := os.WriteFile(output, []byte(ddl), 0o644); err != nil {
		return fmt.Errorf("failed to write DDL snapshot to '%s': %w", output, err)
	}
	return nil
}
