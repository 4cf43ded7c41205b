// Package mcpserver serves the dealership catalog over the Model
// Context Protocol: JSON-RPC 2.0 posted to a single HTTP endpoint.
package mcpserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/haasonsaas/showroom/internal/dealership"
	"github.com/haasonsaas/showroom/internal/mcp"
)

const (
	serverName    = "dealer-mcp"
	serverVersion = "1.0.0"

	dealerInfoURI = "dealer://info"
)

// Server handles MCP requests against a dealership store.
type Server struct {
	store  *dealership.Store
	tools  []toolDef
	logger *slog.Logger
}

// NewServer creates an MCP server over the store.
func NewServer(store *dealership.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:  store,
		logger: logger.With("component", "mcpserver"),
	}
	s.tools = s.toolDefs()
	return s
}

// Handler returns the HTTP handler for the MCP endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", s.handleMCP)
	return mux
}

// handleMCP serves one JSON-RPC message per POST. GET answers a small
// info payload so the endpoint is probeable from a browser.
func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"ok":      true,
			"service": serverName,
			"version": serverVersion,
		})
		return
	case http.MethodPost:
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req mcp.JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "", mcp.CodeParseError, "parse error: "+err.Error())
		return
	}

	// Notifications carry no id and expect no body.
	if req.ID == "" {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	result, rpcErr := s.dispatch(&req)
	w.Header().Set("Content-Type", "application/json")
	if r.Header.Get("mcp-session-id") == "" {
		w.Header().Set("mcp-session-id", uuid.NewString())
	}

	resp := mcp.JSONRPCResponse{JSONRPC: "2.0", ID: req.ID}
	if rpcErr != nil {
		resp.Error = rpcErr
	} else {
		payload, err := json.Marshal(result)
		if err != nil {
			resp.Error = &mcp.JSONRPCError{Code: mcp.CodeInternalError, Message: err.Error()}
		} else {
			resp.Result = payload
		}
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("write response", "error", err)
	}
}

func (s *Server) dispatch(req *mcp.JSONRPCRequest) (any, *mcp.JSONRPCError) {
	params, err := json.Marshal(req.Params)
	if err != nil {
		return nil, &mcp.JSONRPCError{Code: mcp.CodeInvalidParams, Message: err.Error()}
	}

	switch req.Method {
	case "initialize":
		return mcp.InitializeResult{
			ProtocolVersion: mcp.ProtocolVersion,
			Capabilities: map[string]any{
				"tools":     map[string]any{},
				"resources": map[string]any{},
				"prompts":   map[string]any{},
			},
			ServerInfo: mcp.ServerInfo{Name: serverName, Version: serverVersion},
		}, nil

	case "ping":
		return map[string]any{}, nil

	case "tools/list":
		tools := make([]mcp.Tool, len(s.tools))
		for i, def := range s.tools {
			tools[i] = def.decl
		}
		return mcp.ListToolsResult{Tools: tools}, nil

	case "tools/call":
		var call mcp.CallToolParams
		if err := json.Unmarshal(params, &call); err != nil {
			return nil, &mcp.JSONRPCError{Code: mcp.CodeInvalidParams, Message: err.Error()}
		}
		return s.callTool(call)

	case "resources/list":
		return mcp.ListResourcesResult{Resources: []mcp.Resource{{
			URI:         dealerInfoURI,
			Name:        "Dealership info",
			Description: "Static contact details and address for the dealership.",
			MimeType:    "application/json",
		}}}, nil

	case "resources/read":
		var in struct {
			URI string `json:"uri"`
		}
		if err := json.Unmarshal(params, &in); err != nil {
			return nil, &mcp.JSONRPCError{Code: mcp.CodeInvalidParams, Message: err.Error()}
		}
		return s.readResource(in.URI)

	case "prompts/list":
		return mcp.ListPromptsResult{Prompts: []mcp.Prompt{{
			Name:        "sales-quotation",
			Description: "Guides the model to draft a customer-facing quotation email.",
			Arguments: []mcp.PromptArgument{
				{Name: "carId", Description: "Car ID from inventory", Required: true},
				{Name: "customerName", Description: "Customer's full name", Required: true},
				{Name: "discountPct", Description: "Discount percentage as string (0-30)"},
			},
		}}}, nil

	case "prompts/get":
		var in struct {
			Name      string            `json:"name"`
			Arguments map[string]string `json:"arguments"`
		}
		if err := json.Unmarshal(params, &in); err != nil {
			return nil, &mcp.JSONRPCError{Code: mcp.CodeInvalidParams, Message: err.Error()}
		}
		return s.getPrompt(in.Name, in.Arguments)

	default:
		return nil, &mcp.JSONRPCError{
			Code:    mcp.CodeMethodNotFound,
			Message: fmt.Sprintf("method not found: %s", req.Method),
		}
	}
}

func (s *Server) readResource(uri string) (any, *mcp.JSONRPCError) {
	if uri != dealerInfoURI {
		return nil, &mcp.JSONRPCError{
			Code:    mcp.CodeInvalidParams,
			Message: "unknown resource: " + uri,
		}
	}
	payload, err := json.MarshalIndent(dealership.DefaultInfo(), "", "  ")
	if err != nil {
		return nil, &mcp.JSONRPCError{Code: mcp.CodeInternalError, Message: err.Error()}
	}
	return mcp.ReadResourceResult{Contents: []mcp.ResourceContent{{
		URI:      dealerInfoURI,
		MimeType: "application/json",
		Text:     string(payload),
	}}}, nil
}

func (s *Server) getPrompt(name string, args map[string]string) (any, *mcp.JSONRPCError) {
	if name != "sales-quotation" {
		return nil, &mcp.JSONRPCError{
			Code:    mcp.CodeInvalidParams,
			Message: "unknown prompt: " + name,
		}
	}
	discount := args["discountPct"]
	if discount == "" {
		discount = "0"
	}
	text := s.store.QuotationPrompt(args["carId"], args["customerName"], discount)
	return mcp.GetPromptResult{
		Description: "Sales quotation email instructions",
		Messages: []mcp.PromptMessage{{
			Role:    "user",
			Content: mcp.PromptContent{Type: "text", Text: text},
		}},
	}, nil
}

func (s *Server) writeError(w http.ResponseWriter, id string, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	resp := mcp.JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &mcp.JSONRPCError{Code: code, Message: message},
	}
	json.NewEncoder(w).Encode(resp)
}
