package mcp

import (
	"encoding/json"
	"sort"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"mcpchat/model"
)

// ToolAggregator merges the tool lists of running servers into one
// name-addressed catalogue.
type ToolAggregator struct {
	processManager *ProcessManager
	logger         *zap.Logger
}

func NewToolAggregator(pm *ProcessManager, logger *zap.Logger) *ToolAggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ToolAggregator{
		processManager: pm,
		logger:         logger,
	}
}

// Tools returns descriptors for the given servers sorted by name. When two
// servers expose the same tool name, the server earlier in serverIDs wins.
func (ta *ToolAggregator) Tools(serverIDs []string) []model.ToolDescriptor {
	owners := make(map[string]string)
	var all []model.ToolDescriptor

	for _, serverID := range serverIDs {
		tools, err := ta.processManager.GetTools(serverID)
		if err != nil {
			continue
		}

		for _, tool := range tools {
			if owner, dup := owners[tool.Name]; dup {
				ta.logger.Warn("duplicate tool name ignored",
					zap.String("tool", tool.Name),
					zap.String("kept", owner),
					zap.String("ignored", serverID))
				continue
			}
			owners[tool.Name] = serverID
			all = append(all, ConvertTool(serverID, tool))
		}
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}

// ConvertTool maps an MCP tool to a descriptor owned by serverID.
func ConvertTool(serverID string, tool mcptypes.Tool) model.ToolDescriptor {
	schema := tool.RawInputSchema
	if len(schema) == 0 {
		if raw, err := json.Marshal(tool.InputSchema); err == nil {
			schema = raw
		}
	}
	if len(schema) == 0 {
		schema = json.RawMessage(`{"type":"object"}`)
	}

	return model.ToolDescriptor{
		Name:        tool.Name,
		Description: tool.Description,
		InputSchema: schema,
		ProviderID:  serverID,
	}
}
