/*-------------------------------------------------------------------------
 *
 * base.go
 *    Base tool types and result helpers for NeuronDynamic
 *
 * Provides the result envelope shared by every generated tool and the
 * error codes a client can branch on.
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronDynamic/internal/tools/base.go
 *
 *-------------------------------------------------------------------------
 */

package tools

import (
	"context"
	"encoding/json"
)

/* Error codes reported in ToolError.Code */
const (
	CodeInvalidArguments = "INVALID_ARGUMENTS"
	CodeReservedKeyword  = "RESERVED_KEYWORD"
	CodeInvalidFilter    = "INVALID_FILTER"
	CodeInvalidRow       = "INVALID_ROW"
	CodeConflict         = "CONFLICT"
	CodePoolTimeout      = "POOL_TIMEOUT"
	CodePoolExhausted    = "POOL_EXHAUSTED"
	CodeExecutionError   = "EXECUTION_ERROR"
)

/* Tool is a callable MCP tool */
type Tool interface {
	Name() string
	Description() string
	InputSchema() map[string]interface{}
	OutputSchema() map[string]interface{}
	Execute(ctx context.Context, arguments json.RawMessage) (*ToolResult, error)
}

/* ToolResult represents the result of tool execution */
type ToolResult struct {
	Success  bool                   `json:"success"`
	Data     interface{}            `json:"data,omitempty"`
	Error    *ToolError             `json:"error,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

/* ToolError represents a tool execution error */
type ToolError struct {
	Message string      `json:"message"`
	Code    string      `json:"code,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

/* BaseTool provides the metadata half of a tool */
type BaseTool struct {
	name         string
	description  string
	inputSchema  map[string]interface{}
	outputSchema map[string]interface{}
}

/* NewBaseTool creates a new base tool */
func NewBaseTool(name, description string, inputSchema, outputSchema map[string]interface{}) *BaseTool {
	return &BaseTool{
		name:         name,
		description:  description,
		inputSchema:  inputSchema,
		outputSchema: outputSchema,
	}
}

/* Name returns the tool name */
func (b *BaseTool) Name() string {
	return b.name
}

/* Description returns the tool description */
func (b *BaseTool) Description() string {
	return b.description
}

/* InputSchema returns the input schema, never nil */
func (b *BaseTool) InputSchema() map[string]interface{} {
	if b.inputSchema == nil {
		return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
	}
	return b.inputSchema
}

/* OutputSchema returns the output schema */
func (b *BaseTool) OutputSchema() map[string]interface{} {
	return b.outputSchema
}

/* Success creates a successful result */
func Success(data interface{}, metadata map[string]interface{}) *ToolResult {
	return &ToolResult{
		Success:  true,
		Data:     data,
		Metadata: metadata,
	}
}

/* Error creates an error result */
func Error(message, code string, details interface{}) *ToolResult {
	return &ToolResult{
		Success: false,
		Error: &ToolError{
			Message: message,
			Code:    code,
			Details: details,
		},
	}
}
