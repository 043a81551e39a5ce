package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kiranshivaraju/eomhub/pkg/models"
)

// Caller is anything that can execute a named remote call. *Transport is the
// production implementation.
type Caller interface {
	Call(ctx context.Context, method string, args ...any) (json.RawMessage, error)
}

// Client implements models.Hub on top of a Caller.
type Client struct {
	caller Caller
}

// NewClient creates a typed hub client.
func NewClient(caller Caller) *Client {
	return &Client{caller: caller}
}

func (c *Client) GetToolsConfig(ctx context.Context) (*models.ToolsConfig, error) {
	var cfg models.ToolsConfig
	if err := c.call(ctx, &cfg, MethodGetToolsConfig); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Client) GetRevitStatus(ctx context.Context) (*models.RevitStatus, error) {
	var st models.RevitStatus
	if err := c.call(ctx, &st, MethodGetRevitStatus); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *Client) RunTool(ctx context.Context, toolID, jobID string) (*models.RunResult, error) {
	args := []any{toolID}
	if jobID != "" {
		args = append(args, jobID)
	}
	var res models.RunResult
	if err := c.call(ctx, &res, MethodRunTool, args...); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) GetJobResult(ctx context.Context, jobID string) (*models.JobResult, error) {
	raw, err := c.caller.Call(ctx, MethodGetJobResult, jobID)
	if err != nil {
		return nil, err
	}
	if isNull(raw) {
		return nil, nil
	}
	var res models.JobResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", MethodGetJobResult, err)
	}
	if res.JobID == "" {
		res.JobID = jobID
	}
	return &res, nil
}

func (c *Client) GetTimeSavings(ctx context.Context) (*models.TimeSavings, error) {
	return c.savings(ctx, MethodGetTimeSavings)
}

func (c *Client) AddTimeSaving(ctx context.Context, toolID string, minutes models.MinutesRange) (*models.TimeSavings, error) {
	return c.savings(ctx, MethodAddTimeSaving, toolID, minutes)
}

func (c *Client) ResetTimeSavings(ctx context.Context) (*models.TimeSavings, error) {
	return c.savings(ctx, MethodResetTimeSavings)
}

func (c *Client) savings(ctx context.Context, method string, args ...any) (*models.TimeSavings, error) {
	var sv models.TimeSavings
	if err := c.call(ctx, &sv, method, args...); err != nil {
		return nil, err
	}
	if sv.Executed == nil {
		sv.Executed = map[string]int{}
	}
	return &sv, nil
}

func (c *Client) call(ctx context.Context, out any, method string, args ...any) error {
	raw, err := c.caller.Call(ctx, method, args...)
	if err != nil {
		return err
	}
	if isNull(raw) {
		return &Error{Method: method, Channel: ChannelHTTP, Message: "empty response", Err: ErrNoBackend}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", method, err)
	}
	return nil
}

// Compile-time check that Client implements models.Hub.
var _ models.Hub = (*Client)(nil)
