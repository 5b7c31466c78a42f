package fallback

import (
	"github.com/nugget/warden-agent/internal/tools"
)

// findTool resolves a tool name to its handle: first among the tools
// bound on the live agent, then in the global registry. There is no
// fuzzy matching; a near-miss name fails outright.
func (h *Handler) findTool(name string) (*tools.Tool, error) {
	for _, t := range h.bound {
		if t.Name == name {
			return t, nil
		}
	}
	if t := h.registry.Get(name); t != nil {
		return t, nil
	}
	return nil, &ToolNotFoundError{ToolName: name}
}
