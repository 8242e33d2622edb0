package mcp

import (
	"context"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/tripkit/internal/app"
)

// KnownTypes lists all valid type names.
var KnownTypes = []string{"itinerary", "checklist", "expense", "voucher", "weather"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"itinerary_show": {
		def:     itineraryShowToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleItineraryShow },
	},
	"itinerary_check_in": {
		def:     checkInToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCheckIn },
	},
	"itinerary_set_time": {
		def:     setTimeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSetTime },
	},
	"itinerary_clear_check_in": {
		def:     clearCheckInToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleClearCheckIn },
	},
	"itinerary_add_item": {
		def:     addItemToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAddItem },
	},
	"itinerary_update_item": {
		def:     updateItemToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleUpdateItem },
	},
	"itinerary_delete_item": {
		def:     deleteItemToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDeleteItem },
	},
	"checklist_show": {
		def:     checklistShowToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleChecklistShow },
	},
	"checklist_toggle": {
		def:     checklistToggleToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleChecklistToggle },
	},
	"expense_add": {
		def:     expenseAddToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExpenseAdd },
	},
	"expense_summary": {
		def:     expenseSummaryToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExpenseSummary },
	},
	"voucher_list": {
		def:     voucherListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleVoucherList },
	},
	"voucher_add": {
		def:     voucherAddToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleVoucherAdd },
	},
	"weather_forecast": {
		def:     weatherForecastToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleWeatherForecast },
	},
}

// AllToolNames returns all valid tool names, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateDisabledTypes returns a list of unknown type names from the given list.
func ValidateDisabledTypes(names []string) []string {
	known := make(map[string]bool, len(KnownTypes))
	for _, t := range KnownTypes {
		known[t] = true
	}

	unknown := make([]string, 0)
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the type name from a tool name.
// Tool names follow the pattern "type_action" (e.g., "itinerary_show" → "itinerary").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}

	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	tools := make([]string, 0)
	for name := range toolRegistry {
		if typeSet[GetTypeForTool(name)] {
			tools = append(tools, name)
		}
	}
	return tools
}

// NewServer creates a new MCP server with the trip tools registered.
// Tools listed in DisabledTools or belonging to DisabledTypes are skipped.
func NewServer(a *app.App, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"tripkit",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(a)

	// Build set of disabled tools: first expand types, then add individual tools
	disabled := make(map[string]bool)
	for _, tool := range ExpandTypesToTools(a.Config.DisabledTypes) {
		disabled[tool] = true
	}
	for _, name := range a.Config.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(a *app.App, version string) error {
	return server.ServeStdio(NewServer(a, version))
}

// ToolHandlerFunc is the signature for tool handlers.
type ToolHandlerFunc func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
