package mcpserver

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/haasonsaas/showroom/internal/dealership"
	"github.com/haasonsaas/showroom/internal/mcp"
)

func newTestClient(t *testing.T) (*mcp.Client, *dealership.Store) {
	t.Helper()
	store := dealership.NewMemoryStore(dealership.SeedCars())
	srv := NewServer(store, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	client, err := mcp.NewClient(mcp.ServerConfig{URL: ts.URL + "/mcp"}, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	return client, store
}

func TestHandshakeAndCatalog(t *testing.T) {
	client, _ := newTestClient(t)

	tools := client.Tools()
	if len(tools) != 5 {
		t.Fatalf("tools = %d, want 5", len(tools))
	}
	names := map[string]bool{}
	for _, tool := range tools {
		names[tool.Name] = true
		if len(tool.InputSchema) == 0 {
			t.Errorf("tool %s has no input schema", tool.Name)
		}
	}
	for _, want := range []string{"list_cars", "check_car_configuration", "generate_quotation", "create_order", "list_orders"} {
		if !names[want] {
			t.Errorf("missing tool %s", want)
		}
	}

	resources := client.Resources()
	if len(resources) != 1 || resources[0].URI != "dealer://info" {
		t.Errorf("resources = %+v", resources)
	}
	prompts := client.Prompts()
	if len(prompts) != 1 || prompts[0].Name != "sales-quotation" {
		t.Errorf("prompts = %+v", prompts)
	}
}

func TestCallTool_Quotation(t *testing.T) {
	client, _ := newTestClient(t)

	result, err := client.CallTool(context.Background(), "generate_quotation", map[string]any{
		"carId":       "car-001",
		"discountPct": 10,
	})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %+v", result)
	}

	var quote dealership.Quotation
	if err := json.Unmarshal([]byte(result.Content[0].Text), &quote); err != nil {
		t.Fatalf("decode quote: %v", err)
	}
	if quote.FinalPrice != 12510 {
		t.Errorf("final price = %d, want 12510", quote.FinalPrice)
	}
	if quote.Currency != "EUR" {
		t.Errorf("currency = %s", quote.Currency)
	}
}

func TestCallTool_DiscountOutOfRange(t *testing.T) {
	client, _ := newTestClient(t)

	for _, pct := range []float64{-1, 31, 50} {
		result, err := client.CallTool(context.Background(), "generate_quotation", map[string]any{
			"carId":       "car-001",
			"discountPct": pct,
		})
		if err != nil {
			t.Fatalf("call: %v", err)
		}
		if !result.IsError {
			t.Errorf("discount %g accepted", pct)
		}
	}
}

func TestCallTool_DoubleSell(t *testing.T) {
	client, store := newTestClient(t)

	first, err := client.CallTool(context.Background(), "create_order", map[string]any{
		"carId":        "car-002",
		"customerName": "Ana Pop",
		"agreedPrice":  18500,
	})
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if first.IsError {
		t.Fatalf("first order rejected: %+v", first)
	}

	second, err := client.CallTool(context.Background(), "create_order", map[string]any{
		"carId":        "car-002",
		"customerName": "Ion Ionescu",
		"agreedPrice":  18000,
	})
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if !second.IsError {
		t.Fatal("second order for the same car succeeded")
	}
	if !strings.Contains(second.Content[0].Text, "already sold") {
		t.Errorf("second order message = %q", second.Content[0].Text)
	}

	car, err := store.FindCar("car-002")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if car.Status != dealership.CarSold {
		t.Errorf("status = %s, want sold", car.Status)
	}
}

func TestCallTool_ElectricCars(t *testing.T) {
	client, _ := newTestClient(t)

	result, err := client.CallTool(context.Background(), "check_car_configuration", map[string]any{
		"engine": "ev",
	})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool error: %+v", result)
	}

	var reply struct {
		Count   int `json:"count"`
		Matches []struct {
			Engine string `json:"engine"`
			Status string `json:"status"`
			URI    string `json:"uri"`
		} `json:"matches"`
	}
	if err := json.Unmarshal([]byte(result.Content[0].Text), &reply); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if reply.Count == 0 {
		t.Fatal("no electric cars in the reply")
	}
	for _, m := range reply.Matches {
		if m.Engine != "ev" {
			t.Errorf("match with engine %s", m.Engine)
		}
		if m.Status == "sold" {
			t.Error("sold car in default listing")
		}
		if !strings.HasPrefix(m.URI, "car://") {
			t.Errorf("match uri = %s", m.URI)
		}
	}
}

func TestCallTool_UnknownTool(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.CallTool(context.Background(), "no_such_tool", nil)
	if err == nil {
		t.Fatal("expected JSON-RPC error")
	}
	if !strings.Contains(err.Error(), "unknown tool") {
		t.Errorf("error = %v", err)
	}
}

func TestCallTool_SchemaValidation(t *testing.T) {
	client, _ := newTestClient(t)

	// customerName must be a string; numbers are rejected before the
	// handler runs.
	result, err := client.CallTool(context.Background(), "create_order", map[string]any{
		"carId":        "car-001",
		"customerName": 42,
		"agreedPrice":  1000,
	})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if !result.IsError {
		t.Fatal("invalid argument type accepted")
	}
	if !strings.Contains(result.Content[0].Text, "invalid arguments") {
		t.Errorf("message = %q", result.Content[0].Text)
	}
}

func TestReadResource(t *testing.T) {
	client, _ := newTestClient(t)

	result, err := client.ReadResource(context.Background(), "dealer://info")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(result.Contents) != 1 {
		t.Fatalf("contents = %d, want 1", len(result.Contents))
	}

	var info dealership.Info
	if err := json.Unmarshal([]byte(result.Contents[0].Text), &info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(info.Name, "Endava Auto Retail") {
		t.Errorf("name = %q", info.Name)
	}
	if info.Phone == "" || info.Address == "" {
		t.Errorf("incomplete info: %+v", info)
	}
}

func TestReadResource_Unknown(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.ReadResource(context.Background(), "dealer://nope")
	if err == nil {
		t.Fatal("expected error for unknown uri")
	}
}

func TestGetPrompt(t *testing.T) {
	client, _ := newTestClient(t)

	result, err := client.GetPrompt(context.Background(), "sales-quotation", map[string]string{
		"carId":        "car-001",
		"customerName": "Ana Pop",
		"discountPct":  "5",
	})
	if err != nil {
		t.Fatalf("get prompt: %v", err)
	}
	if len(result.Messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(result.Messages))
	}
	text := result.Messages[0].Content.Text
	if !strings.Contains(text, "Ana Pop") || !strings.Contains(text, "discount 5%") {
		t.Errorf("prompt text = %q", text)
	}
}
