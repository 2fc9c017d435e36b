package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func request(id, method, params string) *JSONRPCRequest {
	req := &JSONRPCRequest{JSONRPC: "2.0", Method: method}
	if id != "" {
		req.ID = json.RawMessage(id)
	}
	if params != "" {
		req.Params = json.RawMessage(params)
	}
	return req
}

func TestHandleMessage(t *testing.T) {
	s := NewServer("neurondb-dynamic", "1.0.0")
	s.SetHandler("echo", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		return params, nil
	})
	s.SetHandler("broken", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		return nil, errors.New("boom")
	})
	s.SetHandler("picky", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		return nil, &InvalidParamsError{Err: errors.New("name is required")}
	})
	ctx := context.Background()

	resp := s.HandleMessage(ctx, request("1", "initialize", `{"protocolVersion":"2024-11-05","clientInfo":{"name":"test","version":"0"}}`))
	require.Nil(t, resp.Error)
	initResp := resp.Result.(InitializeResponse)
	assert.Equal(t, ProtocolVersion, initResp.ProtocolVersion)
	assert.Equal(t, "neurondb-dynamic", initResp.ServerInfo.Name)
	assert.NotNil(t, initResp.Capabilities.Tools)

	resp = s.HandleMessage(ctx, request("2", "ping", ""))
	require.Nil(t, resp.Error)
	assert.Equal(t, map[string]interface{}{}, resp.Result)

	resp = s.HandleMessage(ctx, request("3", "nope", ""))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeMethodNotFound, resp.Error.Code)

	resp = s.HandleMessage(ctx, request("4", "broken", ""))
	assert.Equal(t, ErrCodeInternalError, resp.Error.Code)
	assert.Equal(t, "boom", resp.Error.Message)

	resp = s.HandleMessage(ctx, request("5", "picky", ""))
	assert.Equal(t, ErrCodeInvalidParams, resp.Error.Code)

	bad := request("6", "ping", "")
	bad.JSONRPC = "1.0"
	resp = s.HandleMessage(ctx, bad)
	assert.Equal(t, ErrCodeInvalidRequest, resp.Error.Code)

	resp = s.HandleMessage(ctx, request(`"seven"`, "echo", `{"a":1}`))
	assert.Equal(t, json.RawMessage(`"seven"`), resp.ID)
	assert.Equal(t, json.RawMessage(`{"a":1}`), resp.Result)
}

func TestNotificationsGetNoResponse(t *testing.T) {
	s := NewServer("neurondb-dynamic", "1.0.0")
	ctx := context.Background()
	assert.Nil(t, s.HandleMessage(ctx, request("", "notifications/initialized", "")))
	assert.Nil(t, s.HandleMessage(ctx, request("null", "unknown/notification", "")))
	assert.Nil(t, s.HandleMessage(ctx, request("", "ping", "")))
}

func TestRunServesUntilEOF(t *testing.T) {
	input := frame(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`) +
		frame(`{"jsonrpc":"2.0","method":"notifications/initialized"}`) +
		frame(`{not json`) +
		frame(`{"jsonrpc":"2.0","id":2,"method":"ping"}`)
	var out bytes.Buffer
	transport := NewStdioTransport(strings.NewReader(input), &out, 0)

	s := NewServer("neurondb-dynamic", "1.0.0")
	var recovered []error
	s.SetErrorHandler(func(err error) { recovered = append(recovered, err) })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Run(ctx, transport))

	msgs := readFramed(t, bufio.NewReader(&out))
	require.Len(t, msgs, 3, "two responses plus one parse error, nothing for the notification")
	byID := map[string]map[string]interface{}{}
	for _, m := range msgs {
		id, _ := json.Marshal(m["id"])
		byID[string(id)] = m
	}
	assert.Contains(t, byID["1"], "result")
	assert.Contains(t, byID["2"], "result")
	parseErr := byID["null"]["error"].(map[string]interface{})
	assert.Equal(t, float64(ErrCodeParseError), parseErr["code"])
	require.Len(t, recovered, 1)
}

func TestRunStopsOnCancel(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	transport := NewStdioTransport(r, &bytes.Buffer{}, 0)
	s := NewServer("neurondb-dynamic", "1.0.0")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, transport) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
