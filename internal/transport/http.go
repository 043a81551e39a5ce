package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPChannel implements Channel over the hub's REST fallback API.
type HTTPChannel struct {
	baseURL string
	client  *http.Client
}

// NewHTTPChannel creates a fallback channel rooted at baseURL.
func NewHTTPChannel(baseURL string, timeout time.Duration) *HTTPChannel {
	return &HTTPChannel{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPChannel) Call(ctx context.Context, method string, args ...any) (json.RawMessage, error) {
	httpMethod, path, body, err := route(method, args)
	if err != nil {
		return nil, &Error{Method: method, Channel: ChannelHTTP, Message: err.Error(), Err: ErrUnknownCall}
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding %s request: %w", method, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, httpMethod, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyError(method, ChannelHTTP, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyError(method, ChannelHTTP, err)
	}

	remoteErr, hasStatus := inspectBody(payload)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := remoteErr
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		return nil, &Error{Method: method, Channel: ChannelHTTP, StatusCode: resp.StatusCode, Message: msg, Err: ErrStatus}
	}
	// Job snapshots report failure through their own status field.
	if remoteErr != "" && !hasStatus {
		return nil, &Error{Method: method, Channel: ChannelHTTP, StatusCode: resp.StatusCode, Message: remoteErr, Err: ErrRemote}
	}

	return json.RawMessage(payload), nil
}

// route maps a remote call onto the fallback REST surface.
func route(method string, args []any) (httpMethod, path string, body any, err error) {
	switch method {
	case MethodGetToolsConfig:
		return http.MethodGet, "/api/tools-config", nil, nil
	case MethodGetRevitStatus:
		return http.MethodGet, "/api/revit-status", nil, nil
	case MethodGetTimeSavings:
		return http.MethodGet, "/api/time-savings", nil, nil
	case MethodGetJobResult:
		jobID := argString(args, 0)
		if jobID == "" {
			return "", "", nil, fmt.Errorf("%s requires a job id", method)
		}
		return http.MethodGet, "/api/job-result/" + url.PathEscape(jobID), nil, nil
	case MethodRunTool:
		req := map[string]any{"toolId": argString(args, 0)}
		if jobID := argString(args, 1); jobID != "" {
			req["jobId"] = jobID
		}
		return http.MethodPost, "/api/run-tool", req, nil
	case MethodAddTimeSaving:
		var minutes any
		if len(args) > 1 {
			minutes = args[1]
		}
		return http.MethodPost, "/api/add-time-saving", map[string]any{"toolId": argString(args, 0), "minutes": minutes}, nil
	case MethodResetTimeSavings:
		return http.MethodPost, "/api/reset-time-savings", map[string]any{}, nil
	default:
		return "", "", nil, fmt.Errorf("no HTTP route for %q", method)
	}
}

func argString(args []any, i int) string {
	if i >= len(args) {
		return ""
	}
	s, _ := args[i].(string)
	return s
}

// inspectBody extracts a truthy "error" field and reports whether the body
// carries a "status" field.
func inspectBody(payload []byte) (string, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(payload, &obj); err != nil {
		return "", false
	}
	_, hasStatus := obj["status"]

	raw, ok := obj["error"]
	if !ok {
		return "", hasStatus
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", hasStatus
	}
	switch e := v.(type) {
	case string:
		return strings.TrimSpace(e), hasStatus
	case bool:
		if e {
			return "error", hasStatus
		}
	case float64:
		if e != 0 {
			return fmt.Sprintf("error %v", e), hasStatus
		}
	case map[string]any:
		if msg, ok := e["message"].(string); ok && msg != "" {
			return msg, hasStatus
		}
		return "error", hasStatus
	}
	return "", hasStatus
}

// Compile-time check that HTTPChannel implements Channel.
var _ Channel = (*HTTPChannel)(nil)
