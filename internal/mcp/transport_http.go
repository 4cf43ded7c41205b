package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const sessionHeader = "mcp-session-id"

// HTTPTransport speaks MCP streamable HTTP: every message is a POST to
// the endpoint, replies arrive as JSON or as a single-response SSE
// stream. The server-assigned session id is captured on the first reply
// and echoed on every later request.
type HTTPTransport struct {
	config     ServerConfig
	httpClient *http.Client

	mu        sync.Mutex
	sessionID string
}

// NewHTTPTransport creates a transport for the given endpoint.
func NewHTTPTransport(config ServerConfig) *HTTPTransport {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPTransport{
		config:     config,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Call sends a JSON-RPC request and decodes the result.
func (t *HTTPTransport) Call(ctx context.Context, method string, params, result any) error {
	req := JSONRPCRequest{
		JSONRPC: "2.0",
		ID:      uuid.NewString(),
		Method:  method,
		Params:  params,
	}
	body, err := t.post(ctx, req)
	if err != nil {
		return err
	}

	rpcResp, err := decodeResponse(body)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("%s: %w", method, rpcResp.Error)
	}
	if result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("%s: decode result: %w", method, err)
		}
	}
	return nil
}

// Notify sends a JSON-RPC notification.
func (t *HTTPTransport) Notify(ctx context.Context, method string, params any) error {
	note := JSONRPCNotification{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
	}
	_, err := t.post(ctx, note)
	return err
}

// Close is a no-op; the transport holds no persistent connection.
func (t *HTTPTransport) Close() error { return nil }

func (t *HTTPTransport) post(ctx context.Context, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.config.URL, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	req.Header.Set("MCP-Protocol-Version", ProtocolVersion)
	for k, v := range t.config.Headers {
		req.Header.Set(k, v)
	}
	t.mu.Lock()
	if t.sessionID != "" {
		req.Header.Set(sessionHeader, t.sessionID)
	}
	t.mu.Unlock()

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post to %s: %w", t.config.URL, err)
	}
	defer resp.Body.Close()

	if sid := resp.Header.Get(sessionHeader); sid != "" {
		t.mu.Lock()
		t.sessionID = sid
		t.mu.Unlock()
	}

	if resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("mcp server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		return readSSEMessage(resp.Body)
	}
	return io.ReadAll(resp.Body)
}

// readSSEMessage extracts the first data payload from an SSE body.
// Streamable HTTP servers answer a request with at most one response
// event.
func readSSEMessage(r io.Reader) ([]byte, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 10<<20)
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		if after, ok := strings.CutPrefix(line, "data:"); ok {
			data.WriteString(strings.TrimPrefix(after, " "))
			continue
		}
		if line == "" && data.Len() > 0 {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read sse: %w", err)
	}
	if data.Len() == 0 {
		return nil, fmt.Errorf("sse stream closed without a response event")
	}
	return []byte(data.String()), nil
}

func decodeResponse(body []byte) (*JSONRPCResponse, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("empty response body")
	}
	var rpcResp JSONRPCResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &rpcResp, nil
}
