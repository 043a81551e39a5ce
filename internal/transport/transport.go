// Package transport executes named remote calls against the Revit hub over a
// low-latency bridge channel with a sticky HTTP fallback.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Remote call names.
const (
	MethodGetToolsConfig   = "get_tools_config"
	MethodGetRevitStatus   = "get_revit_status"
	MethodRunTool          = "run_tool"
	MethodGetJobResult     = "get_job_result"
	MethodGetTimeSavings   = "get_time_savings"
	MethodAddTimeSaving    = "add_time_saving"
	MethodResetTimeSavings = "reset_time_savings"
)

const (
	ChannelBridge = "bridge"
	ChannelHTTP   = "http"

	DefaultBridgeTimeout = 1200 * time.Millisecond
)

// Channel executes one remote call. A bridge Channel may return a nil or JSON
// null result to signal that no backend is attached.
type Channel interface {
	Call(ctx context.Context, method string, args ...any) (json.RawMessage, error)
}

// Options configures a Transport.
type Options struct {
	BridgeTimeout time.Duration
	ForceFallback bool
}

// Transport routes calls to the bridge until it fails once, then uses the
// fallback channel for the rest of the session.
type Transport struct {
	bridge        Channel
	fallback      Channel
	bridgeTimeout time.Duration
	forceFallback bool

	mu           sync.Mutex
	bridgeFailed bool
}

// New creates a Transport. bridge may be nil, in which case every call goes to fallback.
func New(bridge, fallback Channel, opts Options) *Transport {
	if opts.BridgeTimeout <= 0 {
		opts.BridgeTimeout = DefaultBridgeTimeout
	}
	return &Transport{
		bridge:        bridge,
		fallback:      fallback,
		bridgeTimeout: opts.BridgeTimeout,
		forceFallback: opts.ForceFallback,
	}
}

// Call executes method on the bridge when it is usable, otherwise on the fallback.
func (t *Transport) Call(ctx context.Context, method string, args ...any) (json.RawMessage, error) {
	if t.useBridge() {
		raw, err := t.callBridge(ctx, method, args)
		if err != nil {
			if ctx.Err() != nil {
				return nil, classifyError(method, ChannelBridge, ctx.Err())
			}
			t.tripBridge(method, err)
		} else if !isNull(raw) {
			return raw, nil
		}
	}

	raw, err := t.fallback.Call(ctx, method, args...)
	if err != nil {
		return nil, classifyError(method, ChannelHTTP, err)
	}
	return raw, nil
}

// BridgeFailed reports whether the sticky failover flag is set.
func (t *Transport) BridgeFailed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bridgeFailed
}

// Reconnect clears the sticky flag so the next call tries the bridge again.
// It is meant for an explicit user reconnect or a new hub session.
func (t *Transport) Reconnect() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bridgeFailed = false
}

func (t *Transport) useBridge() bool {
	if t.forceFallback || t.bridge == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.bridgeFailed
}

func (t *Transport) callBridge(ctx context.Context, method string, args []any) (json.RawMessage, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.bridgeTimeout)
	defer cancel()

	type reply struct {
		raw json.RawMessage
		err error
	}
	done := make(chan reply, 1)
	go func() {
		raw, err := t.bridge.Call(callCtx, method, args...)
		done <- reply{raw: raw, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && callCtx.Err() != nil && ctx.Err() == nil {
			return nil, t.timeoutError(method)
		}
		return r.raw, r.err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, t.timeoutError(method)
	}
}

func (t *Transport) timeoutError(method string) error {
	return &Error{
		Method:  method,
		Channel: ChannelBridge,
		Message: fmt.Sprintf("bridge timeout after %dms", t.bridgeTimeout.Milliseconds()),
		Err:     ErrTimeout,
	}
}

func (t *Transport) tripBridge(method string, err error) {
	t.mu.Lock()
	already := t.bridgeFailed
	t.bridgeFailed = true
	t.mu.Unlock()
	if !already {
		slog.Warn("bridge call failed, switching to HTTP fallback", "method", method, "error", err)
	}
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// IsTransportError reports whether err came out of the transport layer.
func IsTransportError(err error) bool {
	var terr *Error
	return errors.As(err, &terr)
}
