package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bridgeServer answers each call with the reply built by respond. A nil reply
// leaves the call unanswered.
func bridgeServer(t *testing.T, respond func(call bridgeCall) *bridgeReply) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var call bridgeCall
			if err := conn.ReadJSON(&call); err != nil {
				return
			}
			reply := respond(call)
			if reply == nil {
				continue
			}
			reply.Return = call.Call
			if err := conn.WriteJSON(reply); err != nil {
				return
			}
		}
	}))
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func TestWSBridge_CallRoundTrip(t *testing.T) {
	url := bridgeServer(t, func(call bridgeCall) *bridgeReply {
		v, _ := json.Marshal(map[string]any{"name": call.Name, "args": call.Args})
		return &bridgeReply{Status: "ok", Value: v}
	})
	b := NewWSBridge(url)
	defer b.Close()

	raw, err := b.Call(context.Background(), MethodRunTool, "lights_center")
	require.NoError(t, err)

	var got struct {
		Name string `json:"name"`
		Args []any  `json:"args"`
	}
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, MethodRunTool, got.Name)
	assert.Equal(t, []any{"lights_center"}, got.Args)
}

func TestWSBridge_ReusesConnection(t *testing.T) {
	url := bridgeServer(t, func(call bridgeCall) *bridgeReply {
		return &bridgeReply{Status: "ok", Value: json.RawMessage(`{"connected":true}`)}
	})
	b := NewWSBridge(url)
	defer b.Close()

	for i := 0; i < 3; i++ {
		raw, err := b.Call(context.Background(), MethodGetRevitStatus)
		require.NoError(t, err)
		assert.JSONEq(t, `{"connected":true}`, string(raw))
	}
}

func TestWSBridge_NullValue(t *testing.T) {
	url := bridgeServer(t, func(call bridgeCall) *bridgeReply {
		return &bridgeReply{Status: "ok", Value: json.RawMessage(`null`)}
	})
	b := NewWSBridge(url)
	defer b.Close()

	raw, err := b.Call(context.Background(), MethodGetJobResult, "j1")
	require.NoError(t, err)
	assert.True(t, isNull(raw))
}

func TestWSBridge_ErrorStatus(t *testing.T) {
	url := bridgeServer(t, func(call bridgeCall) *bridgeReply {
		return &bridgeReply{Status: "error", Error: "tool not found"}
	})
	b := NewWSBridge(url)
	defer b.Close()

	_, err := b.Call(context.Background(), MethodRunTool, "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRemote))

	var terr *Error
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, ChannelBridge, terr.Channel)
	assert.Equal(t, "tool not found", terr.Message)
}

func TestWSBridge_UnansweredCallHonorsContext(t *testing.T) {
	url := bridgeServer(t, func(call bridgeCall) *bridgeReply { return nil })
	b := NewWSBridge(url)
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := b.Call(ctx, MethodGetRevitStatus)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWSBridge_DialFailure(t *testing.T) {
	b := NewWSBridge("ws://127.0.0.1:1/eel")
	_, err := b.Call(context.Background(), MethodGetRevitStatus)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dialing bridge")
}

func TestWSBridge_CloseFailsPendingCalls(t *testing.T) {
	url := bridgeServer(t, func(call bridgeCall) *bridgeReply { return nil })
	b := NewWSBridge(url)

	errc := make(chan error, 1)
	go func() {
		_, err := b.Call(context.Background(), MethodGetRevitStatus)
		errc <- err
	}()

	require.Eventually(t, func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return len(b.pending) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, b.Close())

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, errBridgeClosed)
	case <-time.After(time.Second):
		t.Fatal("pending call was not released")
	}
}

func TestWSBridge_ThroughTransportFallsBackOnFailure(t *testing.T) {
	var fallbackHits atomic.Int32
	fallback := hubServer(t, func(w http.ResponseWriter, r *http.Request) {
		fallbackHits.Add(1)
		w.Write([]byte(`{"connected":true,"document":"Tower.rvt"}`))
	})

	tr := New(NewWSBridge("ws://127.0.0.1:1/eel"), NewHTTPChannel(fallback.URL, time.Second), Options{})
	c := NewClient(tr)

	st, err := c.GetRevitStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Tower.rvt", st.Document)
	assert.True(t, tr.BridgeFailed())

	_, err = c.GetRevitStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), fallbackHits.Load())
}
