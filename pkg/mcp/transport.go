/*-------------------------------------------------------------------------
 *
 * transport.go
 *    MCP stdio transport
 *
 * Messages are framed with Content-Length headers. A first line that
 * starts with '{' is taken as a bare JSON message instead, and the reply
 * uses the same framing as the message it answers.
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronDynamic/pkg/mcp/transport.go
 *
 *-------------------------------------------------------------------------
 */

package mcp

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

const maxHeaderLines = 10

/* StdioTransport handles MCP communication over a reader/writer pair */
type StdioTransport struct {
	in             *bufio.Reader
	out            *bufio.Writer
	maxRequestSize int64 /* 0 = unlimited */

	mu       sync.Mutex
	lineMode bool
}

/* NewStdioTransport creates a transport reading r and writing w */
func NewStdioTransport(r io.Reader, w io.Writer, maxRequestSize int64) *StdioTransport {
	return &StdioTransport{
		in:             bufio.NewReader(r),
		out:            bufio.NewWriter(w),
		maxRequestSize: maxRequestSize,
	}
}

/* FrameError: the input framing is broken but the stream may continue */
type FrameError struct {
	Reason string
}

func (e *FrameError) Error() string {
	return "invalid message framing: " + e.Reason
}

/* ReadMessage reads one JSON-RPC message; io.EOF means the peer closed the stream */
func (t *StdioTransport) ReadMessage() (*JSONRPCRequest, error) {
	contentLength := -1
	for lines := 0; ; lines++ {
		if lines >= maxHeaderLines {
			return nil, &FrameError{Reason: "too many header lines"}
		}
		line, err := t.in.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				if strings.TrimSpace(line) == "" {
					return nil, io.EOF
				}
				if lines == 0 && strings.HasPrefix(strings.TrimSpace(line), "{") {
					return t.parseLine(line)
				}
				return nil, io.EOF
			}
			return nil, fmt.Errorf("failed to read header: %w", err)
		}

		line = strings.TrimRight(line, "\r\n")
		if lines == 0 && strings.HasPrefix(strings.TrimSpace(line), "{") {
			return t.parseLine(line)
		}
		if line == "" {
			if lines == 0 {
				/* stray blank line between messages */
				lines--
				continue
			}
			break
		}

		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, &FrameError{Reason: fmt.Sprintf("malformed header %q", line)}
		}
		if strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil || n < 0 {
				return nil, &FrameError{Reason: fmt.Sprintf("invalid Content-Length %q", strings.TrimSpace(value))}
			}
			contentLength = n
		}
	}

	if contentLength <= 0 {
		return nil, &FrameError{Reason: "missing Content-Length header"}
	}
	if t.maxRequestSize > 0 && int64(contentLength) > t.maxRequestSize {
		if _, err := t.in.Discard(contentLength); err != nil {
			return nil, io.EOF
		}
		return nil, &FrameError{Reason: fmt.Sprintf("message size %d exceeds maximum %d bytes", contentLength, t.maxRequestSize)}
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(t.in, body); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to read message body: %w", err)
	}
	t.setLineMode(false)
	return ParseRequest(body)
}

func (t *StdioTransport) parseLine(line string) (*JSONRPCRequest, error) {
	line = strings.TrimSpace(line)
	if t.maxRequestSize > 0 && int64(len(line)) > t.maxRequestSize {
		return nil, &FrameError{Reason: fmt.Sprintf("message size %d exceeds maximum %d bytes", len(line), t.maxRequestSize)}
	}
	t.setLineMode(true)
	return ParseRequest([]byte(line))
}

func (t *StdioTransport) setLineMode(on bool) {
	t.mu.Lock()
	t.lineMode = on
	t.mu.Unlock()
}

/* WriteMessage writes a JSON-RPC response */
func (t *StdioTransport) WriteMessage(resp *JSONRPCResponse) error {
	if resp == nil {
		return fmt.Errorf("cannot write nil response")
	}
	data, err := SerializeResponse(resp)
	if err != nil {
		return fmt.Errorf("failed to serialize response: %w", err)
	}
	return t.write(data)
}

/* WriteNotification writes a JSON-RPC notification */
func (t *StdioTransport) WriteNotification(method string, params interface{}) error {
	notification := map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  method,
	}
	if params != nil {
		notification["params"] = params
	}
	data, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to serialize notification: %w", err)
	}
	return t.write(data)
}

func (t *StdioTransport) write(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.lineMode {
		if _, err := t.out.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("failed to write message: %w", err)
		}
	} else {
		header := fmt.Sprintf("Content-Length: %d\r\nContent-Type: application/json\r\n\r\n", len(data))
		if _, err := t.out.WriteString(header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		if _, err := t.out.Write(data); err != nil {
			return fmt.Errorf("failed to write body: %w", err)
		}
	}
	if err := t.out.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}
	return nil
}
