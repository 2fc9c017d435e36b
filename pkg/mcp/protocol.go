/*-------------------------------------------------------------------------
 *
 * protocol.go
 *    JSON-RPC 2.0 and MCP message types
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronDynamic/pkg/mcp/protocol.go
 *
 *-------------------------------------------------------------------------
 */

package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
)

/* ProtocolVersion is the MCP revision this server speaks */
const ProtocolVersion = "2024-11-05"

/* JSON-RPC error codes */
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

/* JSONRPCRequest is a request or, without an id, a notification */
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

/* JSONRPCResponse is a response to a request */
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

/* JSONRPCError is the error member of a response */
type JSONRPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

/* ServerInfo identifies the server */
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

/* ClientInfo identifies the client */
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

/* ServerCapabilities advertises what the server supports */
type ServerCapabilities struct {
	Tools map[string]interface{} `json:"tools,omitempty"`
}

/* InitializeRequest is the initialize params */
type InitializeRequest struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities,omitempty"`
	ClientInfo      ClientInfo             `json:"clientInfo"`
}

/* InitializeResponse is the initialize result */
type InitializeResponse struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      ServerInfo         `json:"serverInfo"`
}

/* ToolDefinition describes a tool in tools/list */
type ToolDefinition struct {
	Name         string                 `json:"name"`
	Description  string                 `json:"description,omitempty"`
	InputSchema  map[string]interface{} `json:"inputSchema"`
	OutputSchema map[string]interface{} `json:"outputSchema,omitempty"`
}

/* ListToolsResponse is the tools/list result */
type ListToolsResponse struct {
	Tools []ToolDefinition `json:"tools"`
}

/* CallToolRequest is the tools/call params */
type CallToolRequest struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

/* ContentBlock is one piece of tool output */
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

/* ToolResponse is the tools/call result */
type ToolResponse struct {
	Content           []ContentBlock         `json:"content"`
	StructuredContent interface{}            `json:"structuredContent,omitempty"`
	IsError           bool                   `json:"isError,omitempty"`
	Metadata          map[string]interface{} `json:"_meta,omitempty"`
}

/* ParseRequest decodes a JSON-RPC message */
func ParseRequest(data []byte) (*JSONRPCRequest, error) {
	var req JSONRPCRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, &ParseError{Err: err}
	}
	return &req, nil
}

/* ParseError: a message is not valid JSON-RPC */
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse JSON-RPC message: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

/* ValidateRequest checks the JSON-RPC envelope */
func ValidateRequest(req *JSONRPCRequest) error {
	if req.JSONRPC != "2.0" {
		return fmt.Errorf("invalid jsonrpc version: %q", req.JSONRPC)
	}
	if req.Method == "" {
		return fmt.Errorf("method is required")
	}
	return nil
}

/* IsNotification reports whether the message carries no id */
func IsNotification(req *JSONRPCRequest) bool {
	id := bytes.TrimSpace(req.ID)
	return len(id) == 0 || bytes.Equal(id, []byte("null"))
}

/* CreateResponse creates a successful response */
func CreateResponse(id json.RawMessage, result interface{}) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      normalizeID(id),
		Result:  result,
	}
}

/* CreateErrorResponse creates an error response */
func CreateErrorResponse(id json.RawMessage, code int, message string, data interface{}) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      normalizeID(id),
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

/* SerializeResponse encodes a response */
func SerializeResponse(resp *JSONRPCResponse) ([]byte, error) {
	return json.Marshal(resp)
}

func normalizeID(id json.RawMessage) json.RawMessage {
	if len(bytes.TrimSpace(id)) == 0 {
		return json.RawMessage("null")
	}
	return id
}
