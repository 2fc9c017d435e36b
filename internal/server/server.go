/*-------------------------------------------------------------------------
 *
 * server.go
 *    NeuronDynamic MCP server
 *
 * Assembles configuration, the connection pool, the operation registry
 * and the tool registry, then serves the generated tools over stdio or
 * HTTP. Shutdown stops the transports before closing the pool.
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronDynamic/internal/server/server.go
 *
 *-------------------------------------------------------------------------
 */

package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/neurondb/NeuronDynamic/internal/config"
	"github.com/neurondb/NeuronDynamic/internal/database"
	"github.com/neurondb/NeuronDynamic/internal/generator"
	"github.com/neurondb/NeuronDynamic/internal/logging"
	"github.com/neurondb/NeuronDynamic/internal/metrics"
	"github.com/neurondb/NeuronDynamic/internal/order"
	"github.com/neurondb/NeuronDynamic/internal/query"
	"github.com/neurondb/NeuronDynamic/internal/registry"
	"github.com/neurondb/NeuronDynamic/internal/schema"
	"github.com/neurondb/NeuronDynamic/internal/tools"
	"github.com/neurondb/NeuronDynamic/pkg/mcp"
)

/* Version is the server version reported to clients */
var Version = "1.0.0"

/* Components are the collaborators a Server is assembled from */
type Components struct {
	/* DB executes generated statements */
	DB database.Querier
	/* Source supplies the schema model for generation */
	Source schema.Source
	/* Health backs GET /health; nil reports healthy */
	Health func(ctx context.Context) error
	/* Close releases DB on shutdown */
	Close   func(ctx context.Context) error
	Metrics *metrics.Metrics
}

/* Server is the NeuronDynamic MCP server */
type Server struct {
	cfg    *config.Config
	logger *logging.Logger

	components   Components
	mcpServer    *mcp.Server
	registry     *registry.Registry
	toolRegistry *tools.ToolRegistry

	mu            sync.Mutex
	httpTransport *HTTPTransport
}

/*
 * New connects to the database described by cfg and assembles a server.
 * Generation reads the schema from generation.ddl_file when set, and from
 * the live catalog otherwise.
 */
func New(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*Server, error) {
	db := database.NewDatabase(logger)
	if err := db.Connect(ctx, cfg.Database); err != nil {
		return nil, err
	}

	m := metrics.New()
	m.RegisterPool(db.GetPoolStats)

	var source schema.Source = schema.NewIntrospector(db, cfg.Generation.Schemas)
	if cfg.Generation.DDLFile != "" {
		source = schema.DDLFileSource{Path: cfg.Generation.DDLFile}
	}

	s, err := NewWithComponents(cfg, logger, Components{
		DB:      db,
		Source:  source,
		Health:  db.HealthCheck,
		Close:   db.Close,
		Metrics: m,
	})
	if err != nil {
		if cerr := db.Close(ctx); cerr != nil {
			logger.Warn("Failed to close database after setup error", map[string]interface{}{"error": cerr.Error()})
		}
		return nil, err
	}
	return s, nil
}

/* NewWithComponents assembles a server from existing collaborators */
func NewWithComponents(cfg *config.Config, logger *logging.Logger, c Components) (*Server, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	knnMode, err := order.ParseMode(cfg.Query.KnnOrder)
	if err != nil {
		return nil, fmt.Errorf("invalid query.knn_order: %w", err)
	}

	var store *registry.Store
	if cfg.Generation.ArtifactsDir != "" {
		if store, err = registry.NewStore(cfg.Generation.ArtifactsDir); err != nil {
			return nil, err
		}
	}

	executor := query.NewExecutor(c.DB, logger, knnMode)
	toolRegistry := tools.NewToolRegistry(executor, logger, c.Metrics)
	reg := registry.New(store, c.Source, generator.NewGenerator(logger), logger, c.Metrics)
	reg.AddActivator(toolRegistry)

	s := &Server{
		cfg:          cfg,
		logger:       logger,
		components:   c,
		mcpServer:    mcp.NewServer(cfg.Server.Name, Version),
		registry:     reg,
		toolRegistry: toolRegistry,
	}
	s.mcpServer.SetErrorHandler(func(err error) {
		s.logger.Warn("MCP transport error", map[string]interface{}{"error": err.Error()})
	})
	s.setupToolHandlers()
	return s, nil
}

/* GenerationOptions converts the generation configuration */
func GenerationOptions(cfg *config.Config) registry.Options {
	ignore := make(map[generator.Kind][]string, len(generator.Kinds))
	for _, k := range generator.Kinds {
		if cols := cfg.Generation.Ignore.For(string(k)); len(cols) > 0 {
			ignore[k] = cols
		}
	}
	return registry.Options{
		Overwrite: cfg.Generation.Overwrite,
		Generation: generator.Options{
			Ignore:          ignore,
			JoinGroups:      cfg.Generation.JoinGroups,
			ReadOnly:        cfg.Generation.ReadOnly,
			ReturningColumn: cfg.Generation.ReturningColumn,
		},
	}
}

/* Regenerate runs a generation pass and activates its operations */
func (s *Server) Regenerate(ctx context.Context) (*registry.Report, error) {
	report, err := s.registry.Regenerate(ctx, GenerationOptions(s.cfg))
	if err != nil {
		return nil, err
	}
	for _, f := range report.Failures {
		s.logger.Warn("Operation not generated", map[string]interface{}{
			"operation": f.Name,
			"kind":      string(f.Kind),
			"error":     f.Err.Error(),
		})
	}
	return report, nil
}

/* Registry returns the operation registry */
func (s *Server) Registry() *registry.Registry {
	return s.registry
}

/* Tools returns the tool registry */
func (s *Server) Tools() *tools.ToolRegistry {
	return s.toolRegistry
}

/* MCP returns the protocol server */
func (s *Server) MCP() *mcp.Server {
	return s.mcpServer
}

/* NewHTTPTransport builds the HTTP transport from the server configuration */
func (s *Server) NewHTTPTransport() *HTTPTransport {
	addr := net.JoinHostPort(s.cfg.Server.Host, strconv.Itoa(s.cfg.Server.Port))
	return NewHTTPTransport(addr, s.mcpServer, s.components.Metrics.Handler(), s.components.Health, s.cfg.Server.JWTSecret, s.cfg.Server.MaxRequestSize, s.logger)
}

/*
 * Start generates the operations and serves the configured transport
 * until ctx is cancelled or, for stdio, the client closes the stream.
 */
func (s *Server) Start(ctx context.Context) error {
	report, err := s.Regenerate(ctx)
	if err != nil {
		return fmt.Errorf("failed to generate operations: %w", err)
	}
	s.logger.Info("Starting NeuronDynamic MCP server", map[string]interface{}{
		"transport":  s.cfg.Server.Transport,
		"operations": len(report.Descriptors),
		"tools":      s.toolRegistry.GetCount(),
	})

	switch s.cfg.Server.Transport {
	case "http":
		return s.serveHTTP(ctx)
	default:
		return s.ServeStdio(ctx, os.Stdin, os.Stdout)
	}
}

/* ServeStdio serves MCP over the given streams */
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	transport := mcp.NewStdioTransport(in, out, s.cfg.Server.MaxRequestSize)
	err := s.mcpServer.Run(ctx, transport)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("MCP server stopped", map[string]interface{}{"error": err.Error()})
		return err
	}
	return nil
}

func (s *Server) serveHTTP(ctx context.Context) error {
	transport := s.NewHTTPTransport()
	s.mu.Lock()
	s.httpTransport = transport
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() { errCh <- transport.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}

/*
 * Stop shuts the server down: transports first, then the pool, which
 * waits for checked-out connections. Errors are logged and returned
 * together.
 */
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping NeuronDynamic MCP server", nil)
	var errs []error

	s.mu.Lock()
	transport := s.httpTransport
	s.httpTransport = nil
	s.mu.Unlock()
	if transport != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := transport.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("HTTP transport shutdown error", map[string]interface{}{"error": err.Error()})
			errs = append(errs, fmt.Errorf("HTTP transport shutdown: %w", err))
		}
		cancel()
	}

	if s.components.Close != nil {
		if err := s.components.Close(ctx); err != nil {
			s.logger.Warn("Database close error", map[string]interface{}{"error": err.Error()})
			errs = append(errs, fmt.Errorf("database close: %w", err))
		}
	}
	return errors.Join(errs...)
}
