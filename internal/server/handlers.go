/*-------------------------------------------------------------------------
 *
 * handlers.go
 *    MCP tool handlers
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronDynamic/internal/server/handlers.go
 *
 *-------------------------------------------------------------------------
 */

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/neurondb/NeuronDynamic/internal/tools"
	"github.com/neurondb/NeuronDynamic/pkg/mcp"
)

const maxToolNameLength = 128

func (s *Server) setupToolHandlers() {
	s.mcpServer.SetHandler("tools/list", s.handleListTools)
	s.mcpServer.SetHandler("tools/call", s.handleCallTool)
}

/* handleListTools handles the tools/list request */
func (s *Server) handleListTools(ctx context.Context, params json.RawMessage) (interface{}, error) {
	definitions := s.toolRegistry.GetAllDefinitions()

	out := make([]mcp.ToolDefinition, 0, len(definitions))
	for _, def := range definitions {
		if def.Name == "" || len(def.Name) > maxToolNameLength {
			s.logger.Warn("Skipping tool with invalid name", map[string]interface{}{
				"tool_name":   def.Name,
				"name_length": len(def.Name),
			})
			continue
		}
		out = append(out, mcp.ToolDefinition{
			Name:         def.Name,
			Description:  def.Description,
			InputSchema:  def.InputSchema,
			OutputSchema: def.OutputSchema,
		})
	}

	s.logger.Debug("Tools list requested", map[string]interface{}{"tools": len(out)})
	return mcp.ListToolsResponse{Tools: out}, nil
}

/* handleCallTool handles the tools/call request */
func (s *Server) handleCallTool(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if len(params) == 0 {
		return nil, &mcp.InvalidParamsError{Err: fmt.Errorf("tools/call request parameters are required")}
	}
	var req mcp.CallToolRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, &mcp.InvalidParamsError{Err: fmt.Errorf("failed to parse tools/call request: %w", err)}
	}
	if req.Name == "" {
		return nil, &mcp.InvalidParamsError{Err: fmt.Errorf("tool name is required in tools/call request")}
	}

	result, err := s.toolRegistry.Call(ctx, req.Name, req.Arguments)
	if err != nil {
		var notFound *tools.ToolNotFoundError
		if errors.As(err, &notFound) {
			return nil, &mcp.InvalidParamsError{Err: err}
		}
		return formatToolError(&tools.ToolError{Message: err.Error(), Code: tools.CodeExecutionError}, nil), nil
	}
	return formatToolResult(result)
}

/* formatToolResult formats a tool result as an MCP response */
func formatToolResult(result *tools.ToolResult) (*mcp.ToolResponse, error) {
	if !result.Success {
		return formatToolError(result.Error, result.Metadata), nil
	}
	data, err := json.MarshalIndent(result.Data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool result: %w", err)
	}
	return &mcp.ToolResponse{
		Content:           []mcp.ContentBlock{{Type: "text", Text: string(data)}},
		StructuredContent: result.Data,
		Metadata:          result.Metadata,
	}, nil
}

/* formatToolError formats a tool error as an MCP response */
func formatToolError(toolErr *tools.ToolError, metadata map[string]interface{}) *mcp.ToolResponse {
	text := "Unknown error"
	structured := map[string]interface{}{}
	if toolErr != nil {
		text = toolErr.Message
		structured["message"] = toolErr.Message
		if toolErr.Code != "" {
			structured["code"] = toolErr.Code
			text = fmt.Sprintf("%s: %s", toolErr.Code, toolErr.Message)
		}
		if toolErr.Details != nil {
			structured["details"] = toolErr.Details
		}
	}
	return &mcp.ToolResponse{
		Content:           []mcp.ContentBlock{{Type: "text", Text: "Error: " + text}},
		StructuredContent: map[string]interface{}{"error": structured},
		IsError:           true,
		Metadata:          metadata,
	}
}
