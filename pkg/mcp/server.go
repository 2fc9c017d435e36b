/*-------------------------------------------------------------------------
 *
 * server.go
 *    MCP protocol server
 *
 * Dispatches JSON-RPC messages to registered method handlers. The stdio
 * loop reads messages sequentially and handles requests concurrently;
 * other transports call HandleMessage directly.
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronDynamic/pkg/mcp/server.go
 *
 *-------------------------------------------------------------------------
 */

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

/* HandlerFunc is a function that handles an MCP request */
type HandlerFunc func(ctx context.Context, params json.RawMessage) (interface{}, error)

/* InvalidParamsError makes a handler failure surface as -32602 */
type InvalidParamsError struct {
	Err error
}

func (e *InvalidParamsError) Error() string {
	return e.Err.Error()
}

func (e *InvalidParamsError) Unwrap() error {
	return e.Err
}

/* Server is an MCP protocol server */
type Server struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	info     ServerInfo
	caps     ServerCapabilities
	onError  func(error)
}

/* NewServer creates a new MCP server with initialize and ping registered */
func NewServer(name, version string) *Server {
	s := &Server{
		handlers: make(map[string]HandlerFunc),
		info: ServerInfo{
			Name:    name,
			Version: version,
		},
		caps: ServerCapabilities{
			Tools: map[string]interface{}{"listChanged": false},
		},
		onError: func(error) {},
	}
	s.SetHandler("initialize", s.HandleInitialize)
	s.SetHandler("ping", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		return map[string]interface{}{}, nil
	})
	s.SetHandler("notifications/initialized", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		return nil, nil
	})
	return s
}

/* SetHandler registers a handler for a method */
func (s *Server) SetHandler(method string, handler HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = handler
}

/* SetCapabilities sets server capabilities */
func (s *Server) SetCapabilities(caps ServerCapabilities) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.caps = caps
}

/* SetErrorHandler receives transport errors the loop recovers from */
func (s *Server) SetErrorHandler(fn func(error)) {
	if fn == nil {
		fn = func(error) {}
	}
	s.onError = fn
}

/* HandleInitialize handles the initialize request */
func (s *Server) HandleInitialize(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if len(params) > 0 {
		var req InitializeRequest
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, &InvalidParamsError{Err: fmt.Errorf("failed to parse initialize request: %w", err)}
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return InitializeResponse{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    s.caps,
		ServerInfo:      s.info,
	}, nil
}

/*
 * HandleMessage dispatches one message. It returns nil for notifications,
 * which never get a response.
 */
func (s *Server) HandleMessage(ctx context.Context, req *JSONRPCRequest) *JSONRPCResponse {
	notification := IsNotification(req)
	if err := ValidateRequest(req); err != nil {
		if notification {
			return nil
		}
		return CreateErrorResponse(req.ID, ErrCodeInvalidRequest, err.Error(), nil)
	}

	s.mu.RLock()
	handler, exists := s.handlers[req.Method]
	s.mu.RUnlock()
	if !exists {
		if notification {
			return nil
		}
		return CreateErrorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method), nil)
	}

	result, err := handler(ctx, req.Params)
	if notification {
		if err != nil {
			s.onError(fmt.Errorf("notification %s failed: %w", req.Method, err))
		}
		return nil
	}
	if err != nil {
		var invalid *InvalidParamsError
		if errors.As(err, &invalid) {
			return CreateErrorResponse(req.ID, ErrCodeInvalidParams, err.Error(), nil)
		}
		return CreateErrorResponse(req.ID, ErrCodeInternalError, err.Error(), nil)
	}
	if result == nil {
		result = map[string]interface{}{}
	}
	return CreateResponse(req.ID, result)
}

type readResult struct {
	req *JSONRPCRequest
	err error
}

/*
 * Run serves the transport until the peer closes it or ctx is cancelled.
 * In-flight requests finish before Run returns.
 */
func (s *Server) Run(ctx context.Context, transport *StdioTransport) error {
	var inflight sync.WaitGroup
	defer inflight.Wait()

	messages := make(chan readResult)
	go func() {
		defer close(messages)
		for {
			req, err := transport.ReadMessage()
			select {
			case messages <- readResult{req, err}:
			case <-ctx.Done():
				return
			}
			if err != nil && !recoverable(err) {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			if msg.err != nil {
				if errors.Is(msg.err, io.EOF) {
					return nil
				}
				if !recoverable(msg.err) {
					return msg.err
				}
				s.onError(msg.err)
				var parseErr *ParseError
				if errors.As(msg.err, &parseErr) {
					if err := transport.WriteMessage(CreateErrorResponse(nil, ErrCodeParseError, msg.err.Error(), nil)); err != nil {
						s.onError(err)
					}
				}
				continue
			}

			inflight.Add(1)
			go func(req *JSONRPCRequest) {
				defer inflight.Done()
				resp := s.HandleMessage(ctx, req)
				if resp == nil {
					return
				}
				if err := transport.WriteMessage(resp); err != nil {
					s.onError(err)
				}
			}(msg.req)
		}
	}
}

/* recoverable reports whether the stream can continue after a read error */
func recoverable(err error) bool {
	var frameErr *FrameError
	var parseErr *ParseError
	return errors.As(err, &frameErr) || errors.As(err, &parseErr)
}
