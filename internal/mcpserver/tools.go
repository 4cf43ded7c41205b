package mcpserver

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/haasonsaas/showroom/internal/dealership"
	"github.com/haasonsaas/showroom/internal/mcp"
)

// toolDef pairs a tool declaration with its compiled argument schema
// and handler.
type toolDef struct {
	decl    mcp.Tool
	schema  *jsonschema.Schema
	handler func(args map[string]any) (string, error)
}

var schemaCache sync.Map

func compileSchema(schema string) *jsonschema.Schema {
	if cached, ok := schemaCache.Load(schema); ok {
		return cached.(*jsonschema.Schema)
	}
	compiled, err := jsonschema.CompileString("tool.schema.json", schema)
	if err != nil {
		panic(fmt.Sprintf("invalid tool schema: %v", err))
	}
	schemaCache.Store(schema, compiled)
	return compiled
}

func (s *Server) toolDefs() []toolDef {
	listCarsSchema := `{
		"type": "object",
		"properties": {
			"showSold": {"type": "boolean", "description": "Include sold cars in the listing"}
		}
	}`
	checkConfigSchema := `{
		"type": "object",
		"properties": {
			"make": {"type": "string"},
			"model": {"type": "string"},
			"year": {"type": "integer"},
			"engine": {"type": "string", "enum": ["petrol", "diesel", "hybrid", "ev"]},
			"trim": {"type": "string"},
			"status": {"type": "string", "enum": ["available", "sold"]}
		}
	}`
	quotationSchema := `{
		"type": "object",
		"properties": {
			"carId": {"type": "string"},
			"discountPct": {"type": "number", "minimum": 0, "maximum": 30}
		},
		"required": ["carId"]
	}`
	createOrderSchema := `{
		"type": "object",
		"properties": {
			"carId": {"type": "string"},
			"customerName": {"type": "string", "minLength": 1},
			"agreedPrice": {"type": "number", "minimum": 1}
		},
		"required": ["carId", "customerName", "agreedPrice"]
	}`
	listOrdersSchema := `{
		"type": "object",
		"properties": {
			"status": {"type": "string", "enum": ["created", "confirmed", "cancelled"]}
		}
	}`

	return []toolDef{
		{
			decl: mcp.Tool{
				Name:        "list_cars",
				Description: "List cars in the showroom inventory. By default only available cars are returned; set showSold to include sold ones.",
				InputSchema: json.RawMessage(listCarsSchema),
			},
			schema:  compileSchema(listCarsSchema),
			handler: s.listCars,
		},
		{
			decl: mcp.Tool{
				Name:        "check_car_configuration",
				Description: "Find cars matching a configuration. All given fields must match (case-insensitive); sold cars are excluded unless status says otherwise.",
				InputSchema: json.RawMessage(checkConfigSchema),
			},
			schema:  compileSchema(checkConfigSchema),
			handler: s.checkCarConfiguration,
		},
		{
			decl: mcp.Tool{
				Name:        "generate_quotation",
				Description: "Generate a price quotation for a car with an optional discount percentage (0-30).",
				InputSchema: json.RawMessage(quotationSchema),
			},
			schema:  compileSchema(quotationSchema),
			handler: s.generateQuotation,
		},
		{
			decl: mcp.Tool{
				Name:        "create_order",
				Description: "Create a purchase order for an available car and mark it sold.",
				InputSchema: json.RawMessage(createOrderSchema),
			},
			schema:  compileSchema(createOrderSchema),
			handler: s.createOrder,
		},
		{
			decl: mcp.Tool{
				Name:        "list_orders",
				Description: "List purchase orders, optionally filtered by status.",
				InputSchema: json.RawMessage(listOrdersSchema),
			},
			schema:  compileSchema(listOrdersSchema),
			handler: s.listOrders,
		},
	}
}

// callTool validates the arguments against the declared schema, then
// runs the handler. Domain failures come back as error-flagged tool
// results, not JSON-RPC errors, so the model can read them.
func (s *Server) callTool(call mcp.CallToolParams) (any, *mcp.JSONRPCError) {
	for _, def := range s.tools {
		if def.decl.Name != call.Name {
			continue
		}
		args := call.Arguments
		if args == nil {
			args = map[string]any{}
		}
		if err := def.schema.Validate(normalizeArgs(args)); err != nil {
			return toolError(fmt.Sprintf("invalid arguments for %s: %v", call.Name, err)), nil
		}
		text, err := def.handler(args)
		if err != nil {
			s.logger.Warn("tool failed", "tool", call.Name, "error", err)
			return toolError(err.Error()), nil
		}
		return mcp.ToolCallResult{
			Content: []mcp.ToolResultContent{{Type: "text", Text: text}},
		}, nil
	}
	return nil, &mcp.JSONRPCError{
		Code:    mcp.CodeMethodNotFound,
		Message: "unknown tool: " + call.Name,
	}
}

// normalizeArgs round-trips the arguments through JSON so the validator
// sees plain decoded values.
func normalizeArgs(args map[string]any) any {
	payload, err := json.Marshal(args)
	if err != nil {
		return args
	}
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return args
	}
	return decoded
}

func toolError(message string) mcp.ToolCallResult {
	return mcp.ToolCallResult{
		Content: []mcp.ToolResultContent{{Type: "text", Text: message}},
		IsError: true,
	}
}

func (s *Server) listCars(args map[string]any) (string, error) {
	showSold, _ := args["showSold"].(bool)
	cars := s.store.ListCars(dealership.Filter{IncludeSold: showSold})
	return marshalResult(map[string]any{"count": len(cars), "cars": cars})
}

func (s *Server) checkCarConfiguration(args map[string]any) (string, error) {
	filter := dealership.Filter{
		Make:   stringArg(args, "make"),
		Model:  stringArg(args, "model"),
		Engine: stringArg(args, "engine"),
		Trim:   stringArg(args, "trim"),
		Status: stringArg(args, "status"),
	}
	if year, ok := args["year"].(float64); ok {
		filter.Year = int(year)
	}
	cars := s.store.ListCars(filter)

	type match struct {
		dealership.Car
		URI string `json:"uri"`
	}
	matches := make([]match, len(cars))
	for i, c := range cars {
		matches[i] = match{Car: c, URI: "car://" + c.ID}
	}
	return marshalResult(map[string]any{"count": len(matches), "matches": matches})
}

func (s *Server) generateQuotation(args map[string]any) (string, error) {
	discount := 0.0
	if v, ok := args["discountPct"].(float64); ok {
		discount = v
	}
	quote, err := s.store.Quote(stringArg(args, "carId"), discount)
	if err != nil {
		return "", err
	}
	return marshalResult(quote)
}

func (s *Server) createOrder(args map[string]any) (string, error) {
	price := 0
	if v, ok := args["agreedPrice"].(float64); ok {
		price = int(v)
	}
	order, err := s.store.CreateOrder(stringArg(args, "carId"), stringArg(args, "customerName"), price)
	if err != nil {
		return "", err
	}
	return marshalResult(order)
}

func (s *Server) listOrders(args map[string]any) (string, error) {
	orders := s.store.ListOrders(dealership.OrderStatus(stringArg(args, "status")))
	return marshalResult(map[string]any{"count": len(orders), "orders": orders})
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func marshalResult(v any) (string, error) {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(payload), nil
}
