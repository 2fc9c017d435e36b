/*-------------------------------------------------------------------------
 *
 * registry.go
 *    Tool registry for NeuronDynamic
 *
 * Holds the callable tools. The operation tools are replaced wholesale
 * whenever the registry activates a new descriptor set.
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronDynamic/internal/tools/registry.go
 *
 *-------------------------------------------------------------------------
 */

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/neurondb/NeuronDynamic/internal/generator"
	"github.com/neurondb/NeuronDynamic/internal/logging"
	"github.com/neurondb/NeuronDynamic/internal/metrics"
	"github.com/neurondb/NeuronDynamic/internal/query"
)

/* ToolDefinition represents a tool's definition for MCP */
type ToolDefinition struct {
	Name         string                 `json:"name"`
	Description  string                 `json:"description"`
	InputSchema  map[string]interface{} `json:"inputSchema"`
	OutputSchema map[string]interface{} `json:"outputSchema,omitempty"`
}

/* ToolNotFoundError: no tool is registered under Name */
type ToolNotFoundError struct {
	Name string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool not found: %s", e.Name)
}

/* ToolRegistry manages tool registration and execution */
type ToolRegistry struct {
	mu          sync.RWMutex
	tools       map[string]Tool
	definitions map[string]ToolDefinition

	executor *query.Executor
	logger   *logging.Logger
	metrics  *metrics.Metrics
}

/* NewToolRegistry creates a new tool registry */
func NewToolRegistry(executor *query.Executor, logger *logging.Logger, m *metrics.Metrics) *ToolRegistry {
	if logger == nil {
		logger = logging.Nop()
	}
	return &ToolRegistry{
		tools:       make(map[string]Tool),
		definitions: make(map[string]ToolDefinition),
		executor:    executor,
		logger:      logger,
		metrics:     m,
	}
}

func definitionOf(tool Tool) ToolDefinition {
	return ToolDefinition{
		Name:         tool.Name(),
		Description:  tool.Description(),
		InputSchema:  tool.InputSchema(),
		OutputSchema: tool.OutputSchema(),
	}
}

/* Register registers a tool, replacing any tool of the same name */
func (r *ToolRegistry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
	r.definitions[tool.Name()] = definitionOf(tool)
	r.logger.Debug(fmt.Sprintf("Registered tool: %s", tool.Name()), nil)
}

/*
 * Activate replaces every operation tool with tools for the given
 * descriptors. Tools registered by other means are kept.
 */
func (r *ToolRegistry) Activate(descriptors []*generator.OperationDescriptor) {
	next := make(map[string]Tool, len(descriptors))
	for _, d := range descriptors {
		next[d.Name] = NewOperationTool(d, r.executor)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for name, tool := range r.tools {
		if _, ok := tool.(*OperationTool); ok {
			delete(r.tools, name)
			delete(r.definitions, name)
		}
	}
	for name, tool := range next {
		r.tools[name] = tool
		r.definitions[name] = definitionOf(tool)
	}
	r.logger.Info("Operation tools activated", map[string]interface{}{
		"operations": len(next),
		"tools":      len(r.tools),
	})
}

/* GetTool returns a tool by name */
func (r *ToolRegistry) GetTool(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

/* GetDefinition returns a tool definition by name */
func (r *ToolRegistry) GetDefinition(name string) (ToolDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.definitions[name]
	return def, ok
}

/* GetAllDefinitions returns every definition sorted by name */
func (r *ToolRegistry) GetAllDefinitions() []ToolDefinition {
	r.mu.RLock()
	defs := make([]ToolDefinition, 0, len(r.definitions))
	for _, def := range r.definitions {
		defs = append(defs, def)
	}
	r.mu.RUnlock()

	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

/* GetCount returns the number of registered tools */
func (r *ToolRegistry) GetCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

/*
 * Call executes a tool under a fresh request id, logging and recording
 * the outcome. Only an unknown tool or an internal failure returns an
 * error; operation failures come back as an error result.
 */
func (r *ToolRegistry) Call(ctx context.Context, name string, arguments json.RawMessage) (*ToolResult, error) {
	tool, ok := r.GetTool(name)
	if !ok {
		return nil, &ToolNotFoundError{Name: name}
	}

	requestID := uuid.New().String()
	log := r.logger.With(map[string]interface{}{"request_id": requestID, "tool": name})
	log.Debug("Tool call started", nil)

	start := time.Now()
	result, err := tool.Execute(ctx, arguments)
	elapsed := time.Since(start)

	status := "success"
	switch {
	case err != nil:
		status = "error"
		log.Error("Tool call failed", err, map[string]interface{}{"duration_ms": elapsed.Milliseconds()})
	case result == nil || !result.Success:
		status = "error"
		fields := map[string]interface{}{"duration_ms": elapsed.Milliseconds()}
		if result != nil && result.Error != nil {
			fields["code"] = result.Error.Code
			fields["error"] = result.Error.Message
		}
		log.Warn("Tool call returned an error", fields)
	default:
		log.Info("Tool call completed", map[string]interface{}{"duration_ms": elapsed.Milliseconds()})
	}
	r.metrics.RecordToolCall(name, status, elapsed)

	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("tool %s returned no result", name)
	}
	if result.Metadata == nil {
		result.Metadata = map[string]interface{}{}
	}
	result.Metadata["request_id"] = requestID
	return result, nil
}
