package mcp_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/haasonsaas/showroom/internal/agent"
	"github.com/haasonsaas/showroom/internal/mcp"
)

// fakeMCP is a canned JSON-RPC endpoint. Handlers are keyed by method;
// unhandled methods answer an empty result.
type fakeMCP struct {
	mu       sync.Mutex
	handlers map[string]func(params json.RawMessage) (any, error)
	requests []string
	sse      bool
}

func newFakeMCP() *fakeMCP {
	return &fakeMCP{handlers: map[string]func(json.RawMessage) (any, error){}}
}

func (f *fakeMCP) handle(method string, fn func(json.RawMessage) (any, error)) {
	f.handlers[method] = fn
}

func (f *fakeMCP) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     string          `json:"id"`
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.requests = append(f.requests, req.Method)
	f.mu.Unlock()

	if req.ID == "" {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if fn, ok := f.handlers[req.Method]; ok {
		result, err := fn(req.Params)
		if err != nil {
			resp["error"] = map[string]any{"code": -32602, "message": err.Error()}
		} else {
			resp["result"] = result
		}
	} else {
		resp["result"] = map[string]any{}
	}
	payload, _ := json.Marshal(resp)

	if f.sse {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "event: message\ndata: %s\n\n", payload)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(payload)
}

func connectedClient(t *testing.T, fake *fakeMCP) *mcp.Client {
	t.Helper()
	if _, ok := fake.handlers["tools/list"]; !ok {
		fake.handle("tools/list", func(json.RawMessage) (any, error) {
			return mcp.ListToolsResult{Tools: []mcp.Tool{{
				Name:        "lookup",
				Description: "looks things up",
				InputSchema: json.RawMessage(`{"type":"object"}`),
			}}}, nil
		})
	}
	fake.handle("initialize", func(json.RawMessage) (any, error) {
		return mcp.InitializeResult{
			ProtocolVersion: mcp.ProtocolVersion,
			ServerInfo:      mcp.ServerInfo{Name: "fake", Version: "0.0.1"},
		}, nil
	})

	ts := httptest.NewServer(fake)
	t.Cleanup(ts.Close)

	client, err := mcp.NewClient(mcp.ServerConfig{URL: ts.URL}, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	return client
}

func TestClient_ConnectHandshake(t *testing.T) {
	fake := newFakeMCP()
	client := connectedClient(t, fake)

	tools := client.Tools()
	if len(tools) != 1 || tools[0].Name != "lookup" {
		t.Errorf("tools = %+v", tools)
	}

	var sawInitialized bool
	for _, m := range fake.requests {
		if m == "notifications/initialized" {
			sawInitialized = true
		}
	}
	if !sawInitialized {
		t.Error("initialized notification never sent")
	}

	// Reconnecting is a no-op once connected.
	before := len(fake.requests)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if len(fake.requests) != before {
		t.Error("second Connect re-ran the handshake")
	}
}

func TestClient_SSEResponse(t *testing.T) {
	fake := newFakeMCP()
	fake.sse = true
	client := connectedClient(t, fake)

	if len(client.Tools()) != 1 {
		t.Errorf("tools over sse = %+v", client.Tools())
	}
}

func TestResourceReadBridge_JoinsSegments(t *testing.T) {
	fake := newFakeMCP()
	fake.handle("resources/read", func(json.RawMessage) (any, error) {
		return mcp.ReadResourceResult{Contents: []mcp.ResourceContent{
			{URI: "dealer://info", Text: "first part"},
			{URI: "dealer://info", Blob: "YmxvYg=="},
			{URI: "dealer://info", Text: "last part"},
		}}, nil
	})
	client := connectedClient(t, fake)
	bridge := mcp.NewResourceReadBridge(client)

	result, err := bridge.Execute(context.Background(), json.RawMessage(`{"uri":"dealer://info"}`))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	want := "first part\n\nYmxvYg==\n\nlast part"
	if result.Content != want {
		t.Errorf("content = %q, want %q", result.Content, want)
	}
}

func TestResourceReadBridge_EmptyResultSerializedRaw(t *testing.T) {
	fake := newFakeMCP()
	fake.handle("resources/read", func(json.RawMessage) (any, error) {
		return mcp.ReadResourceResult{}, nil
	})
	client := connectedClient(t, fake)
	bridge := mcp.NewResourceReadBridge(client)

	result, err := bridge.Execute(context.Background(), json.RawMessage(`{"uri":"dealer://info"}`))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	var decoded mcp.ReadResourceResult
	if err := json.Unmarshal([]byte(result.Content), &decoded); err != nil {
		t.Errorf("content is not the raw result: %q", result.Content)
	}
}

func TestResourceReadBridge_RequiresURI(t *testing.T) {
	client := connectedClient(t, newFakeMCP())
	bridge := mcp.NewResourceReadBridge(client)

	if _, err := bridge.Execute(context.Background(), json.RawMessage(`{}`)); err == nil {
		t.Error("missing uri accepted")
	}
}

func TestPromptGetBridge_CoercesArguments(t *testing.T) {
	fake := newFakeMCP()
	var received map[string]string
	fake.handle("prompts/get", func(params json.RawMessage) (any, error) {
		var in struct {
			Arguments map[string]string `json:"arguments"`
		}
		if err := json.Unmarshal(params, &in); err != nil {
			return nil, err
		}
		received = in.Arguments
		return mcp.GetPromptResult{Messages: []mcp.PromptMessage{{
			Role:    "user",
			Content: mcp.PromptContent{Type: "text", Text: "draft the email"},
		}}}, nil
	})
	client := connectedClient(t, fake)
	bridge := mcp.NewPromptGetBridge(client)

	result, err := bridge.Execute(context.Background(),
		json.RawMessage(`{"name":"sales-quotation","arguments":{"carId":"car-001","discountPct":10}}`))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if received["discountPct"] != "10" {
		t.Errorf("numeric argument not coerced: %v", received)
	}

	var decoded mcp.GetPromptResult
	if err := json.Unmarshal([]byte(result.Content), &decoded); err != nil {
		t.Fatalf("result not serialized prompt reply: %v", err)
	}
	if decoded.Messages[0].Content.Text != "draft the email" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestToolBridge_FirstTextSegment(t *testing.T) {
	fake := newFakeMCP()
	fake.handle("tools/call", func(json.RawMessage) (any, error) {
		return mcp.ToolCallResult{Content: []mcp.ToolResultContent{
			{Type: "text", Text: "the answer"},
			{Type: "text", Text: "ignored second segment"},
		}}, nil
	})
	client := connectedClient(t, fake)
	bridge := mcp.NewToolBridge(client, mcp.Tool{Name: "lookup"})

	result, err := bridge.Execute(context.Background(), json.RawMessage(`{"q":"x"}`))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Content != "the answer" {
		t.Errorf("content = %q", result.Content)
	}
}

func TestToolBridge_NoTextFallsBackToJSON(t *testing.T) {
	fake := newFakeMCP()
	fake.handle("tools/call", func(json.RawMessage) (any, error) {
		return mcp.ToolCallResult{Content: []mcp.ToolResultContent{
			{Type: "image", Data: "aW1n"},
		}}, nil
	})
	client := connectedClient(t, fake)
	bridge := mcp.NewToolBridge(client, mcp.Tool{Name: "lookup"})

	result, err := bridge.Execute(context.Background(), json.RawMessage(`{"q":"x"}`))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	var decoded struct {
		Tool      string         `json:"tool"`
		Arguments map[string]any `json:"arguments"`
		RawResult any            `json:"rawResult"`
	}
	if err := json.Unmarshal([]byte(result.Content), &decoded); err != nil {
		t.Fatalf("fallback not JSON: %v", err)
	}
	if decoded.Tool != "lookup" || decoded.Arguments["q"] != "x" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestToolBridge_ErrorFlagPropagates(t *testing.T) {
	fake := newFakeMCP()
	fake.handle("tools/call", func(json.RawMessage) (any, error) {
		return mcp.ToolCallResult{
			Content: []mcp.ToolResultContent{{Type: "text", Text: "car is already sold"}},
			IsError: true,
		}, nil
	})
	client := connectedClient(t, fake)
	bridge := mcp.NewToolBridge(client, mcp.Tool{Name: "create_order"})

	result, err := bridge.Execute(context.Background(), json.RawMessage(`{"carId":"car-001"}`))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.IsError {
		t.Error("IsError not propagated")
	}
	if !strings.Contains(result.Content, "already sold") {
		t.Errorf("content = %q", result.Content)
	}
}

func TestRegisterAll_BridgesFirst(t *testing.T) {
	fake := newFakeMCP()
	client := connectedClient(t, fake)

	registry := agent.NewToolRegistry()
	names := mcp.RegisterAll(registry, client)

	if names[0] != mcp.ReadResourceToolName || names[1] != mcp.GetPromptToolName {
		t.Errorf("bridge names not first: %v", names)
	}
	if len(names) != 3 {
		t.Errorf("names = %v, want 3 entries", names)
	}
	if _, ok := registry.Get("lookup"); !ok {
		t.Error("remote tool not registered")
	}
}
