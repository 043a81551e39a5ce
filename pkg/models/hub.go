package models

import "context"

// Hub is the remote call surface of the Revit host. The orchestrator never
// talks to a transport channel directly; it always goes through this interface.
type Hub interface {
	GetToolsConfig(ctx context.Context) (*ToolsConfig, error)
	GetRevitStatus(ctx context.Context) (*RevitStatus, error)
	// RunTool dispatches toolID. jobID is optional and addresses an existing
	// job, which is how cancellation is delivered.
	RunTool(ctx context.Context, toolID, jobID string) (*RunResult, error)
	// GetJobResult returns nil without error when the hub has no snapshot yet.
	GetJobResult(ctx context.Context, jobID string) (*JobResult, error)
	GetTimeSavings(ctx context.Context) (*TimeSavings, error)
	AddTimeSaving(ctx context.Context, toolID string, minutes MinutesRange) (*TimeSavings, error)
	ResetTimeSavings(ctx context.Context) (*TimeSavings, error)
}
