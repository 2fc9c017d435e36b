package mcp

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(body string) string {
	return fmt.Sprintf("Content-Length: %d\r\nContent-Type: application/json\r\n\r\n%s", len(body), body)
}

func TestStdioTransport_ReadMessage(t *testing.T) {
	input := frame(`{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`)
	transport := NewStdioTransport(strings.NewReader(input), &bytes.Buffer{}, 0)

	req, err := transport.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "tools/list", req.Method)
	assert.Equal(t, json.RawMessage("1"), req.ID)

	_, err = transport.ReadMessage()
	assert.ErrorIs(t, err, io.EOF)
}

func TestStdioTransport_LowercaseHeader(t *testing.T) {
	body := `{"jsonrpc":"2.0","id":"a","method":"ping"}`
	input := fmt.Sprintf("content-length: %d\r\n\r\n%s", len(body), body)
	transport := NewStdioTransport(strings.NewReader(input), &bytes.Buffer{}, 0)

	req, err := transport.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "ping", req.Method)
}

func TestStdioTransport_JSONLineFallback(t *testing.T) {
	var out bytes.Buffer
	input := `{"jsonrpc":"2.0","id":2,"method":"ping"}` + "\n" + `{"jsonrpc":"2.0","method":"notifications/initialized"}`
	transport := NewStdioTransport(strings.NewReader(input), &out, 0)

	req, err := transport.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "ping", req.Method)

	require.NoError(t, transport.WriteMessage(CreateResponse(req.ID, map[string]interface{}{})))
	assert.Equal(t, `{"jsonrpc":"2.0","id":2,"result":{}}`+"\n", out.String(), "replies use the framing of the request")

	req, err = transport.ReadMessage()
	require.NoError(t, err, "a final line without newline is still read")
	assert.True(t, IsNotification(req))
}

func TestStdioTransport_WriteMessage(t *testing.T) {
	var buf bytes.Buffer
	transport := NewStdioTransport(strings.NewReader(""), &buf, 0)

	resp := CreateResponse(json.RawMessage("1"), map[string]string{"test": "value"})
	require.NoError(t, transport.WriteMessage(resp))

	output := buf.String()
	assert.True(t, strings.HasPrefix(output, "Content-Length: "))
	assert.Contains(t, output, "Content-Type: application/json\r\n\r\n")
	body := output[strings.Index(output, "\r\n\r\n")+4:]
	assert.Contains(t, output, fmt.Sprintf("Content-Length: %d\r\n", len(body)))
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"result":{"test":"value"}}`, body)

	assert.Error(t, transport.WriteMessage(nil))
}

func TestStdioTransport_FramingErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		max   int64
	}{
		{"missing content length", "Content-Type: application/json\r\n\r\n{}", 0},
		{"bad content length", "Content-Length: abc\r\n\r\n", 0},
		{"malformed header", "garbage\r\n\r\n", 0},
		{"too large", frame(`{"jsonrpc":"2.0","id":1,"method":"ping"}`), 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := NewStdioTransport(strings.NewReader(tt.input), &bytes.Buffer{}, tt.max)
			_, err := transport.ReadMessage()
			var frameErr *FrameError
			assert.ErrorAs(t, err, &frameErr)
		})
	}
}

func TestStdioTransport_TooLargeMessageIsSkipped(t *testing.T) {
	input := frame(`{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{"padding":"xxxxxxxxxxxxxxxx"}}`) +
		frame(`{"jsonrpc":"2.0","id":2,"method":"ping"}`)
	transport := NewStdioTransport(strings.NewReader(input), &bytes.Buffer{}, 60)

	_, err := transport.ReadMessage()
	var frameErr *FrameError
	require.ErrorAs(t, err, &frameErr)

	req, err := transport.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "ping", req.Method)
}

func TestStdioTransport_ParseError(t *testing.T) {
	transport := NewStdioTransport(strings.NewReader(frame(`{not json`)), &bytes.Buffer{}, 0)
	_, err := transport.ReadMessage()
	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestStdioTransport_WriteNotification(t *testing.T) {
	var buf bytes.Buffer
	transport := NewStdioTransport(strings.NewReader(""), &buf, 0)
	require.NoError(t, transport.WriteNotification("notifications/tools/list_changed", nil))

	r := bufio.NewReader(&buf)
	msgs := readFramed(t, r)
	require.Len(t, msgs, 1)
	assert.Equal(t, "notifications/tools/list_changed", msgs[0]["method"])
	assert.NotContains(t, msgs[0], "id")
}

/* readFramed decodes every Content-Length framed message in r */
func readFramed(t *testing.T, r *bufio.Reader) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for {
		contentLength := 0
		for {
			line, err := r.ReadString('\n')
			if err == io.EOF {
				return out
			}
			require.NoError(t, err)
			line = strings.TrimRight(line, "\r\n")
			if line == "" {
				break
			}
			if strings.HasPrefix(line, "Content-Length: ") {
				_, err := fmt.Sscanf(line, "Content-Length: %d", &contentLength)
				require.NoError(t, err)
			}
		}
		body := make([]byte, contentLength)
		_, err := io.ReadFull(r, body)
		require.NoError(t, err)
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(body, &msg))
		out = append(out, msg)
	}
}
