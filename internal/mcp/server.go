package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"revenueos/backend/internal/auth"
	"revenueos/backend/internal/automation"
	"revenueos/backend/internal/repository"
)

// brainUserID identifies runs triggered through the assistant tool surface
// rather than by a human in the dashboard.
const brainUserID = "trs-brain"

type Server struct {
	mcpServer *server.MCPServer
	store     repository.PlaybookStore
	loader    *automation.Loader
	engine    *automation.Engine
}

func NewServer(store repository.PlaybookStore, loader *automation.Loader, engine *automation.Engine) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"RevenueOS Automations",
			"1.0.0",
			server.WithToolCapabilities(true),
		),
		store:  store,
		loader: loader,
		engine: engine,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_playbooks",
			mcp.WithDescription("List the automation playbooks of an organization"),
			mcp.WithString("organization_id", mcp.Required(), mcp.Description("The organization to list playbooks for")),
		),
		s.handleListPlaybooks,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"run_playbook",
			mcp.WithDescription("Execute one automation playbook against a trigger context"),
			mcp.WithString("organization_id", mcp.Required(), mcp.Description("The organization that owns the playbook")),
			mcp.WithString("playbook_id", mcp.Required(), mcp.Description("The ID of the playbook to run")),
			mcp.WithString("context", mcp.Description("JSON object of trigger context values (opportunityId, clientId, amount, ...)")),
		),
		s.handleRunPlaybook,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"trigger_closed_won",
			mcp.WithDescription("Run every active closed-won playbook for a won opportunity"),
			mcp.WithString("organization_id", mcp.Required(), mcp.Description("The organization the opportunity belongs to")),
			mcp.WithString("opportunity_id", mcp.Required(), mcp.Description("The won opportunity")),
			mcp.WithString("client_id", mcp.Description("The client attached to the opportunity")),
			mcp.WithNumber("amount", mcp.Description("The closed amount")),
			mcp.WithString("name", mcp.Description("The opportunity name")),
		),
		s.handleTriggerClosedWon,
	)
}

func (s *Server) handleListPlaybooks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	orgID, ok := args["organization_id"].(string)
	if !ok || orgID == "" {
		return mcp.NewToolResultError("Missing required parameter: organization_id"), nil
	}

	playbooks, err := s.store.ListPlaybooks(ctx, orgID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list playbooks: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(playbooks)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleRunPlaybook(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	orgID, ok := args["organization_id"].(string)
	if !ok || orgID == "" {
		return mcp.NewToolResultError("Missing required parameter: organization_id"), nil
	}
	playbookID, ok := args["playbook_id"].(string)
	if !ok || playbookID == "" {
		return mcp.NewToolResultError("Missing required parameter: playbook_id"), nil
	}

	runContext := map[string]any{}
	if raw, ok := args["context"].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &runContext); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid context JSON: %v", err)), nil
		}
	}

	playbook := s.loader.LoadByID(ctx, orgID, playbookID)
	if playbook == nil {
		return mcp.NewToolResultError("Playbook not found"), nil
	}

	ac := auth.Context{UserID: brainUserID, OrganizationID: orgID}
	result, err := s.engine.Execute(ctx, ac, playbook, runContext)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to run playbook: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(result)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleTriggerClosedWon(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	orgID, ok := args["organization_id"].(string)
	if !ok || orgID == "" {
		return mcp.NewToolResultError("Missing required parameter: organization_id"), nil
	}
	opportunityID, ok := args["opportunity_id"].(string)
	if !ok || opportunityID == "" {
		return mcp.NewToolResultError("Missing required parameter: opportunity_id"), nil
	}

	runContext := map[string]any{"opportunityId": opportunityID}
	if clientID, ok := args["client_id"].(string); ok && clientID != "" {
		runContext["clientId"] = clientID
	}
	if amount, ok := args["amount"].(float64); ok {
		runContext["amount"] = amount
	}
	if name, ok := args["name"].(string); ok && name != "" {
		runContext["opportunityName"] = name
	}

	ac := auth.Context{UserID: brainUserID, OrganizationID: orgID}
	playbooks := s.loader.LoadForEvent(ctx, orgID, automation.TriggerClosedWon)

	type runSummary struct {
		PlaybookID string `json:"playbookId"`
		RunID      string `json:"runId"`
		Status     string `json:"status"`
	}
	runs := []runSummary{}

	for _, playbook := range playbooks {
		result, err := s.engine.Execute(ctx, ac, playbook, runContext)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to run playbook %s: %v", playbook.ID, err)), nil
		}
		runs = append(runs, runSummary{
			PlaybookID: playbook.ID,
			RunID:      result.RunID,
			Status:     string(result.Status),
		})
	}

	jsonBytes, _ := json.Marshal(map[string]any{"ok": true, "runs": runs})
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	// Use SSE server for /mcp/sse and /mcp/message endpoints
	sseServer := server.NewSSEServer(mcpServer, server.WithStaticBasePath("/mcp"))

	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		// Direct POST for tool calls
		if r.Method == http.MethodPost {
			sseServer.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	// SSE endpoints
	mux.HandleFunc("/mcp/sse", sseServer.ServeHTTP)
	mux.HandleFunc("/mcp/message", sseServer.ServeHTTP)
}
