// Package uxerror turns raw failures into user-facing error descriptors.
package uxerror

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/kiranshivaraju/eomhub/internal/transport"
)

// Context names the call site a failure came from.
type Context string

const (
	ContextNotReady    Context = "revit_not_ready"
	ContextRunDispatch Context = "run_dispatch"
	ContextJobPoll     Context = "job_poll"
	ContextCancel      Context = "cancel"
	ContextStartup     Context = "startup"
)

// Code identifies a descriptor.
type Code string

const (
	CodeNotReady      Code = "REVIT_NOT_READY"
	CodeCancelled     Code = "JOB_CANCELLED"
	CodeTimeout       Code = "HUB_TIMEOUT"
	CodeUnreachable   Code = "HUB_UNREACHABLE"
	CodeAccessDenied  Code = "ACCESS_DENIED"
	CodeNotFound      Code = "TOOL_NOT_FOUND"
	CodeCancelFailed  Code = "CANCEL_FAILED"
	CodeStartupFailed Code = "STARTUP_FAILED"
	CodeJobFailed     Code = "JOB_FAILED"
	CodeRunFailed     Code = "RUN_FAILED"
)

// Info is a classified, user-facing error.
type Info struct {
	Code             Code   `json:"code"`
	Title            string `json:"title"`
	Message          string `json:"message"`
	NextAction       string `json:"nextAction,omitempty"`
	TechnicalMessage string `json:"technicalMessage,omitempty"`
	CanRetry         bool   `json:"canRetry"`
}

type rule struct {
	code     Code
	patterns []string
	match    *regexp.Regexp
	context  Context
	info     Info
}

// rules are evaluated in order; the first match wins. A rule with a context
// matches on that context alone, otherwise on any of its patterns.
var rules = []rule{
	{
		code:    CodeNotReady,
		context: ContextNotReady,
		info: Info{
			Title:      "Revit is not ready",
			Message:    "The tool cannot run without an active connection to Revit.",
			NextAction: "Open a project in Revit, press the Hub button and wait for the Connected status.",
			CanRetry:   true,
		},
	},
	{
		code:     CodeCancelled,
		patterns: []string{"cancelled", "canceled", "отмен"},
		info: Info{
			Title:      "Run stopped",
			Message:    "The run was cancelled before it finished.",
			NextAction: "Check the model state and run the tool again if needed.",
			CanRetry:   true,
		},
	},
	{
		code:     CodeTimeout,
		patterns: []string{"timeout", "timed out", "eel bridge timeout", "время ожидания"},
		info: Info{
			Title:      "Hub is taking too long",
			Message:    "Hub or Revit did not answer in time and the run did not finish.",
			NextAction: "Check the load in Revit and try again in a few seconds.",
			CanRetry:   true,
		},
	},
	{
		code: CodeUnreachable,
		patterns: []string{
			"failed to fetch", "networkerror", "err_connection", "connection refused",
			"unreachable", "no such host",
		},
		match: regexp.MustCompile(`\bhttp 5\d\d\b`),
		info: Info{
			Title:      "No connection to Hub",
			Message:    "The local Hub server could not be reached.",
			NextAction: "Make sure Hub is running in Revit and try again.",
			CanRetry:   true,
		},
	},
	{
		code:     CodeAccessDenied,
		patterns: []string{"http 401", "http 403", "unauthorized", "forbidden", "access denied"},
		info: Info{
			Title:      "Not allowed to run",
			Message:    "Hub rejected the request because of access restrictions.",
			NextAction: "Restart Revit or Hub under the right account, or check permissions.",
			CanRetry:   false,
		},
	},
	{
		code:     CodeNotFound,
		patterns: []string{"http 404", "not found"},
		info: Info{
			Title:      "Tool unavailable",
			Message:    "The requested tool was not found or is temporarily unavailable.",
			NextAction: "Update Hub and check the tools configuration.",
			CanRetry:   true,
		},
	},
	{
		code:    CodeCancelFailed,
		context: ContextCancel,
		info: Info{
			Title:      "Could not cancel the run",
			Message:    "The cancel command did not reach Revit.",
			NextAction: "Wait for the job to finish or try cancelling again.",
			CanRetry:   true,
		},
	},
	{
		code:    CodeStartupFailed,
		context: ContextStartup,
		info: Info{
			Title:      "Could not load Hub",
			Message:    "Startup data could not be fetched from the server.",
			NextAction: "Check the connection to Revit and reload Hub.",
			CanRetry:   true,
		},
	},
	{
		code:    CodeJobFailed,
		context: ContextJobPoll,
		info: Info{
			Title:      "Tool finished with an error",
			Message:    "An error occurred while processing.",
			NextAction: "Check the result logs, fix the model data and run again.",
			CanRetry:   true,
		},
	},
}

var fallback = Info{
	Code:       CodeRunFailed,
	Title:      "Could not run the tool",
	Message:    "The command failed because of an unexpected error.",
	NextAction: "Run it again. If the error repeats, check the Hub connection and project data.",
	CanRetry:   true,
}

// Classify maps a raw failure and the context it came from to an Info. It
// never panics and always returns a descriptor with a title and message.
func Classify(raw any, ctx Context) (info Info) {
	defer func() {
		if r := recover(); r != nil {
			info = fallback
			info.TechnicalMessage = fmt.Sprint(r)
		}
	}()

	technical := strings.TrimSpace(Text(raw))
	source := strings.ToLower(technical)

	for _, r := range rules {
		if r.context != "" {
			if r.context != ctx {
				continue
			}
		} else if !r.matches(source) {
			continue
		}
		info = r.info
		info.Code = r.code
		info.TechnicalMessage = technical
		return info
	}

	info = fallback
	info.TechnicalMessage = technical
	return info
}

// Text extracts the message of an error, a string, or a value carrying a
// message or error field. Anything else yields "".
func Text(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case *transport.Error:
		return transportText(v)
	case error:
		var terr *transport.Error
		if errors.As(v, &terr) {
			return transportText(terr)
		}
		return v.Error()
	case map[string]any:
		if s, ok := v["message"].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
		if s, ok := v["error"].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	case map[string]string:
		if s := v["message"]; strings.TrimSpace(s) != "" {
			return s
		}
		if s := v["error"]; strings.TrimSpace(s) != "" {
			return s
		}
	case fmt.Stringer:
		return v.String()
	}
	return ""
}

// transportText keeps the status code visible so that the status vocabulary
// still matches when the body carried its own error text.
func transportText(e *transport.Error) string {
	if e == nil {
		return ""
	}
	text := e.Error()
	if e.StatusCode != 0 {
		code := fmt.Sprintf("HTTP %d", e.StatusCode)
		if !strings.Contains(text, code) {
			text = code + ": " + text
		}
	}
	return text
}

func (r rule) matches(text string) bool {
	return containsAny(text, r.patterns) || (r.match != nil && r.match.MatchString(text))
}

func containsAny(text string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
