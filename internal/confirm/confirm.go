// Package confirm suspends an action until the user confirms or cancels it.
package confirm

import (
	"context"
	"errors"
	"sync"
)

// ErrAlreadyPending is returned when a confirmation is requested while
// another one is still outstanding.
var ErrAlreadyPending = errors.New("confirmation already pending")

// Variant selects how a dialog is presented.
type Variant string

const (
	VariantDefault Variant = "default"
	VariantDanger  Variant = "danger"
)

// Action names a dialog button.
type Action string

const (
	ActionConfirm Action = "confirm"
	ActionCancel  Action = "cancel"
)

// Dialog describes an outstanding confirmation.
type Dialog struct {
	Title         string  `json:"title"`
	Message       string  `json:"message"`
	ConfirmLabel  string  `json:"confirmLabel,omitempty"`
	CancelLabel   string  `json:"cancelLabel,omitempty"`
	Variant       Variant `json:"variant,omitempty"`
	DefaultAction Action  `json:"defaultAction,omitempty"`
}

// Gate holds at most one outstanding confirmation.
type Gate struct {
	onChange func(*Dialog)

	mu      sync.Mutex
	dialog  *Dialog
	resolve chan bool
	closed  bool
}

// NewGate creates a Gate. onChange, when set, is called with the outstanding
// dialog whenever it appears and with nil when it is resolved. It runs with
// the gate locked and must not call back into the Gate.
func NewGate(onChange func(*Dialog)) *Gate {
	return &Gate{onChange: onChange}
}

// Request blocks until the dialog is resolved. It returns false without error
// if ctx ends or the gate is closed first.
func (g *Gate) Request(ctx context.Context, d Dialog) (bool, error) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return false, nil
	}
	if g.dialog != nil {
		g.mu.Unlock()
		return false, ErrAlreadyPending
	}
	ch := make(chan bool, 1)
	g.dialog = &d
	g.resolve = ch
	g.notify(&d)
	g.mu.Unlock()

	select {
	case ok := <-ch:
		return ok, nil
	case <-ctx.Done():
		g.finish(ch, false)
		return false, nil
	}
}

// Resolve answers the outstanding dialog. It reports whether there was one.
func (g *Gate) Resolve(confirmed bool) bool {
	g.mu.Lock()
	ch := g.resolve
	g.mu.Unlock()
	if ch == nil {
		return false
	}
	return g.finish(ch, confirmed)
}

// Pending returns the outstanding dialog, if any.
func (g *Gate) Pending() (Dialog, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.dialog == nil {
		return Dialog{}, false
	}
	return *g.dialog, true
}

// Close resolves any outstanding dialog to false and makes later requests
// return false immediately.
func (g *Gate) Close() {
	g.mu.Lock()
	g.closed = true
	ch := g.resolve
	g.mu.Unlock()
	if ch != nil {
		g.finish(ch, false)
	}
}

// finish resolves ch if it is still the outstanding request.
func (g *Gate) finish(ch chan bool, v bool) bool {
	g.mu.Lock()
	if g.resolve != ch {
		g.mu.Unlock()
		return false
	}
	g.dialog = nil
	g.resolve = nil
	g.notify(nil)
	g.mu.Unlock()

	ch <- v
	return true
}

func (g *Gate) notify(d *Dialog) {
	if g.onChange != nil {
		g.onChange(d)
	}
}
