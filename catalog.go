package agent

import (
	"fmt"
	"strings"

	"github.com/Protocol-Lattice/campus-agent/src/dispatch"
	"github.com/Protocol-Lattice/campus-agent/src/models"
)

// ToolCatalog is the declarative tool list sent to the reasoning model. It
// is built once and read-only afterwards.
type ToolCatalog struct {
	tools map[string]dispatch.Tool
	order []string
}

// NewToolCatalog registers tools in order. Duplicate or empty names are an
// error.
func NewToolCatalog(tools []dispatch.Tool) (*ToolCatalog, error) {
	c := &ToolCatalog{tools: make(map[string]dispatch.Tool, len(tools))}
	for _, tool := range tools {
		if err := c.register(tool); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *ToolCatalog) register(tool dispatch.Tool) error {
	key := strings.ToLower(strings.TrimSpace(tool.Name))
	if key == "" {
		return fmt.Errorf("tool name is empty")
	}
	if _, exists := c.tools[key]; exists {
		return fmt.Errorf("tool %s already registered", tool.Name)
	}
	c.tools[key] = tool
	c.order = append(c.order, key)
	return nil
}

// Lookup returns the tool registered under name, ignoring case.
func (c *ToolCatalog) Lookup(name string) (dispatch.Tool, bool) {
	tool, ok := c.tools[strings.ToLower(strings.TrimSpace(name))]
	return tool, ok
}

// Tools returns the registered tools in registration order.
func (c *ToolCatalog) Tools() []dispatch.Tool {
	out := make([]dispatch.Tool, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.tools[key])
	}
	return out
}

// Specs renders the catalog in the model-facing shape.
func (c *ToolCatalog) Specs() []models.ToolSpec {
	specs := make([]models.ToolSpec, 0, len(c.order))
	for _, key := range c.order {
		tool := c.tools[key]
		params := tool.Parameters
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		specs = append(specs, models.ToolSpec{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  params,
		})
	}
	return specs
}
