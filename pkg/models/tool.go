// Package models contains the wire types shared between the orchestrator and the Revit hub.
package models

// Tool is one runnable hub command. Tools are immutable and come from get_tools_config.
type Tool struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Icon        string  `json:"icon,omitempty"`
	Description string  `json:"description,omitempty"`
	Category    string  `json:"category"`
	TimeSaved   float64 `json:"time_saved"` // fallback minutes per run
	ScriptPath  string  `json:"script_path,omitempty"`
}

// Category groups tools for display.
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Icon  string `json:"icon,omitempty"`
	Order int    `json:"order"`
}

// ToolsConfig is the response of get_tools_config.
type ToolsConfig struct {
	Tools           map[string]Tool     `json:"tools"`
	Categories      map[string]Category `json:"categories"`
	DangerousTools  []string            `json:"dangerous_tools,omitempty"`
	WarningMessages map[string]string   `json:"warning_messages,omitempty"`
}

// IsDangerous reports whether running toolID requires explicit confirmation.
func (c *ToolsConfig) IsDangerous(toolID string) bool {
	if c == nil {
		return false
	}
	for _, id := range c.DangerousTools {
		if id == toolID {
			return true
		}
	}
	return false
}

// WarningFor returns the confirmation text for toolID, falling back to the
// "default" warning and then to a generic prompt.
func (c *ToolsConfig) WarningFor(toolID string) string {
	if c != nil {
		if msg := c.WarningMessages[toolID]; msg != "" {
			return msg
		}
		if msg := c.WarningMessages["default"]; msg != "" {
			return msg
		}
	}
	return "Continue?"
}

// RevitStatus is the response of get_revit_status.
type RevitStatus struct {
	Connected    bool   `json:"connected"`
	Document     string `json:"document,omitempty"`
	DocumentPath string `json:"documentPath,omitempty"`
	RevitVersion string `json:"revitVersion,omitempty"`
	SessionID    string `json:"sessionId,omitempty"`
}

// RunResult is the response of run_tool.
type RunResult struct {
	Success bool   `json:"success"`
	JobID   string `json:"job_id,omitempty"`
	ToolID  string `json:"tool_id,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
