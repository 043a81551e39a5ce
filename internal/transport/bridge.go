package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var errBridgeClosed = errors.New("bridge connection closed")

// bridgeCall and bridgeReply follow the Eel websocket message shape.
type bridgeCall struct {
	Call int64  `json:"call"`
	Name string `json:"name"`
	Args []any  `json:"args"`
}

type bridgeReply struct {
	Return int64           `json:"return"`
	Status string          `json:"status"`
	Value  json.RawMessage `json:"value"`
	Error  string          `json:"error,omitempty"`
}

// WSBridge implements Channel over a persistent websocket to the hub process.
// The connection is dialed lazily and re-dialed after it drops.
type WSBridge struct {
	url    string
	dialer *websocket.Dialer
	header http.Header

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[int64]chan bridgeReply
	nextID  int64

	writeMu sync.Mutex
}

// NewWSBridge creates a bridge for a ws:// or wss:// endpoint.
func NewWSBridge(url string) *WSBridge {
	return &WSBridge{
		url:     url,
		dialer:  websocket.DefaultDialer,
		pending: make(map[int64]chan bridgeReply),
	}
}

func (b *WSBridge) Call(ctx context.Context, method string, args ...any) (json.RawMessage, error) {
	conn, err := b.connect(ctx)
	if err != nil {
		return nil, err
	}

	if args == nil {
		args = []any{}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	ch := make(chan bridgeReply, 1)
	b.pending[id] = ch
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.pending, id)
		b.mu.Unlock()
	}()

	b.writeMu.Lock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}
	err = conn.WriteJSON(bridgeCall{Call: id, Name: method, Args: args})
	b.writeMu.Unlock()
	if err != nil {
		b.drop(conn, err)
		return nil, fmt.Errorf("writing bridge call: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case reply, ok := <-ch:
		if !ok {
			return nil, errBridgeClosed
		}
		if reply.Status == "error" {
			msg := reply.Error
			if msg == "" {
				msg = string(reply.Value)
			}
			return nil, &Error{Method: method, Channel: ChannelBridge, Message: msg, Err: ErrRemote}
		}
		return reply.Value, nil
	}
}

// Close drops the connection and fails every outstanding call.
func (b *WSBridge) Close() error {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return nil
	}
	b.drop(conn, errBridgeClosed)
	return nil
}

func (b *WSBridge) connect(ctx context.Context) (*websocket.Conn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		return b.conn, nil
	}

	conn, _, err := b.dialer.DialContext(ctx, b.url, b.header)
	if err != nil {
		return nil, fmt.Errorf("dialing bridge: %w", err)
	}
	b.conn = conn
	go b.readLoop(conn)
	return conn, nil
}

func (b *WSBridge) readLoop(conn *websocket.Conn) {
	for {
		var reply bridgeReply
		if err := conn.ReadJSON(&reply); err != nil {
			b.drop(conn, err)
			return
		}
		b.mu.Lock()
		if ch, ok := b.pending[reply.Return]; ok {
			delete(b.pending, reply.Return)
			ch <- reply
		}
		b.mu.Unlock()
	}
}

// drop forgets conn and closes every pending reply channel.
func (b *WSBridge) drop(conn *websocket.Conn, _ error) {
	b.mu.Lock()
	if b.conn != conn {
		b.mu.Unlock()
		return
	}
	b.conn = nil
	pending := b.pending
	b.pending = make(map[int64]chan bridgeReply)
	b.mu.Unlock()

	_ = conn.Close()
	for _, ch := range pending {
		close(ch)
	}
}

var _ Channel = (*WSBridge)(nil)
