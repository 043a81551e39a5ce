// Package orchestrator dispatches tool runs to the Revit hub, polls their
// jobs to completion and credits the time they saved.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kiranshivaraju/eomhub/internal/confirm"
	"github.com/kiranshivaraju/eomhub/internal/store"
	"github.com/kiranshivaraju/eomhub/internal/uxerror"
	"github.com/kiranshivaraju/eomhub/pkg/models"
)

var (
	ErrUnknownTool    = errors.New("unknown tool")
	ErrNotConnected   = errors.New("revit is not connected")
	ErrDeclined       = errors.New("action declined")
	ErrDispatchFailed = errors.New("dispatch failed")
)

const (
	DefaultPollInterval   = 500 * time.Millisecond
	DefaultStatusInterval = 5 * time.Second
	DefaultOverlayGrace   = 1300 * time.Millisecond

	cancelToolID = "cancel"
)

// Options configures a Controller. Zero values select defaults; History and
// Mirror are optional.
type Options struct {
	PollInterval   time.Duration
	StatusInterval time.Duration
	OverlayGrace   time.Duration

	Counted   CountedSet
	History   store.Store
	Mirror    StatusMirror
	MirrorTTL time.Duration
	SessionID string
}

// Controller owns the orchestrator state and turns user intents into hub calls.
type Controller struct {
	hub   models.Hub
	opts  Options
	state *stateStore
	gate  *confirm.Gate

	// intentMu serializes RunTool and ResetSavings, which may wait on the gate.
	intentMu sync.Mutex

	// overlayTimer is only touched from the state goroutine.
	overlayTimer *time.Timer

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New creates a Controller. Call Run to start polling and Close when done.
func New(hub models.Hub, opts Options) *Controller {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.StatusInterval <= 0 {
		opts.StatusInterval = DefaultStatusInterval
	}
	if opts.OverlayGrace <= 0 {
		opts.OverlayGrace = DefaultOverlayGrace
	}
	if opts.Counted == nil {
		opts.Counted = NewMemoryCountedSet()
	}

	c := &Controller{hub: hub, opts: opts}
	c.state = newStateStore(newState(), c.commit)
	c.gate = confirm.NewGate(func(d *confirm.Dialog) {
		var shown *confirm.Dialog
		if d != nil {
			cp := *d
			shown = &cp
		}
		c.state.update(func(s *State) {
			s.ConfirmDialog = shown
		})
	})
	return c
}

// Close resolves any outstanding confirmation to false and stops the state
// goroutine. Later intents and ticks become no-ops.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.gate.Close()
		c.state.close()
		if c.overlayTimer != nil {
			c.overlayTimer.Stop()
		}
	})
}

// State returns the latest state snapshot. Its maps and slices are shared and
// must not be modified.
func (c *Controller) State() State {
	return *c.state.load()
}

// Tool looks up a tool in the loaded config.
func (c *Controller) Tool(toolID string) (models.Tool, bool) {
	st := c.state.load()
	if st.Config == nil {
		return models.Tool{}, false
	}
	tool, ok := st.Config.Tools[toolID]
	if ok && tool.ID == "" {
		tool.ID = toolID
	}
	return tool, ok
}

// Load fetches tools config, connection status and the savings ledger.
func (c *Controller) Load(ctx context.Context) error {
	var (
		cfg *models.ToolsConfig
		st  *models.RevitStatus
		sv  *models.TimeSavings
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { cfg, err = c.hub.GetToolsConfig(gctx); return err })
	g.Go(func() (err error) { st, err = c.hub.GetRevitStatus(gctx); return err })
	g.Go(func() (err error) { sv, err = c.hub.GetTimeSavings(gctx); return err })

	if err := g.Wait(); err != nil {
		slog.Error("failed to load hub data", "error", err)
		c.fail(uxerror.ContextStartup, err, nil)
		return fmt.Errorf("loading hub data: %w", err)
	}

	c.state.update(func(s *State) {
		s.Config = cfg
		s.Status = *st
		s.Savings = *sv
		s.ConfigLoaded = true
	})
	return nil
}

// Refresh reloads connection status, plus config and savings until they
// have loaded once. Failures are logged only.
func (c *Controller) Refresh(ctx context.Context) {
	if !c.state.load().ConfigLoaded {
		var (
			cfg *models.ToolsConfig
			sv  *models.TimeSavings
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) { cfg, err = c.hub.GetToolsConfig(gctx); return err })
		g.Go(func() (err error) { sv, err = c.hub.GetTimeSavings(gctx); return err })
		if err := g.Wait(); err != nil {
			slog.Debug("status refresh failed", "error", err)
			return
		}
		c.state.update(func(s *State) {
			s.Config = cfg
			s.Savings = *sv
			s.ConfigLoaded = true
		})
	}

	st, err := c.hub.GetRevitStatus(ctx)
	if err != nil {
		slog.Debug("status refresh failed", "error", err)
		return
	}
	c.state.update(func(s *State) {
		s.Status = *st
	})
}

// Run loads initial data and then runs the status and polling loops until
// ctx is done. It returns once every in-flight tick has finished.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.Load(ctx); err != nil && ctx.Err() != nil {
		return nil
	}

	var g errgroup.Group
	g.Go(func() error {
		c.every(ctx, c.opts.StatusInterval, false, c.Refresh)
		return nil
	})
	g.Go(func() error {
		c.every(ctx, c.opts.PollInterval, true, c.pollOnce)
		return nil
	})
	err := g.Wait()
	c.wg.Wait()
	return err
}

// every runs fn on each tick in its own goroutine, so a slow tick never
// delays the next one.
func (c *Controller) every(ctx context.Context, interval time.Duration, immediate bool, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if immediate {
		c.spawn(ctx, fn)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.spawn(ctx, fn)
		}
	}
}

func (c *Controller) spawn(ctx context.Context, fn func(context.Context)) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("orchestrator tick panicked", "panic", r)
			}
		}()
		fn(ctx)
	}()
}

// --- Intents ---

// RunTool dispatches toolID. Dangerous tools wait for confirmation first.
// Dispatch failures are classified into the focused state and also returned.
func (c *Controller) RunTool(ctx context.Context, toolID string) error {
	c.intentMu.Lock()
	defer c.intentMu.Unlock()

	st := c.state.load()
	if st.Config == nil {
		return fmt.Errorf("%w: %s (tools config not loaded)", ErrUnknownTool, toolID)
	}
	tool, ok := st.Config.Tools[toolID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTool, toolID)
	}
	if tool.ID == "" {
		tool.ID = toolID
	}

	if !st.Status.Connected {
		info := uxerror.Classify(nil, uxerror.ContextNotReady)
		c.state.update(func(s *State) {
			s.LastTool = &tool
			s.LastJobID = ""
			s.JobResult = nil
			s.JobStatus = models.JobStatusError
			s.ShowConnectionHelp = true
			s.ResultTab = ResultTabResult
			s.UxError = &info
			s.JobMessage = info.Message
		})
		return ErrNotConnected
	}

	if st.Config.IsDangerous(toolID) {
		ok, err := c.gate.Request(ctx, confirm.Dialog{
			Title:         "Confirmation required",
			Message:       st.Config.WarningFor(toolID),
			ConfirmLabel:  "Continue",
			CancelLabel:   "Cancel",
			Variant:       confirm.VariantDanger,
			DefaultAction: confirm.ActionCancel,
		})
		if err != nil {
			return err
		}
		if !ok {
			return ErrDeclined
		}
	}

	c.state.update(func(s *State) {
		s.LastTool = &tool
		s.LastJobID = ""
		s.JobResult = nil
		s.JobMessage = ""
		s.UxError = nil
		s.JobStatus = models.JobStatusPending
		s.ResultTab = ResultTabResult
	})

	res, err := c.hub.RunTool(ctx, toolID, "")
	if err != nil {
		slog.Error("failed to run tool", "tool_id", toolID, "error", err)
		c.fail(uxerror.ContextRunDispatch, err, clearFocusedJob)
		return fmt.Errorf("%w: %s: %w", ErrDispatchFailed, toolID, err)
	}
	if !res.Success {
		text := firstNonEmpty(res.Error, res.Message, "Could not send the command to Revit")
		slog.Warn("tool dispatch rejected", "tool_id", toolID, "error", text)
		c.fail(uxerror.ContextRunDispatch, text, clearFocusedJob)
		return fmt.Errorf("%w: %s: %s", ErrDispatchFailed, toolID, text)
	}

	message := firstNonEmpty(res.Message, "Command sent to Revit")
	jobID := res.JobID
	if jobID != "" {
		// The history row must exist before the poller can see the job.
		name := c.state.load().nextDisplayName(tool)
		c.recordDispatch(ctx, jobID, tool, name, res.Message)
		slog.Info("tool dispatched", "tool_id", toolID, "job_id", jobID, "name", name)
	}
	c.state.update(func(s *State) {
		s.UxError = nil
		s.LastJobID = jobID
		s.JobMessage = message
		if jobID != "" {
			s.registerDispatch(jobID, tool)
		}
	})
	return nil
}

// Cancel asks the hub to cancel the focused job. It does nothing unless the
// focused job is pending or running; the job itself ends when the hub
// reports it cancelled.
func (c *Controller) Cancel(ctx context.Context) error {
	st := c.state.load()
	if st.JobStatus != models.JobStatusPending && st.JobStatus != models.JobStatusRunning {
		return nil
	}

	if _, err := c.hub.RunTool(ctx, cancelToolID, st.LastJobID); err != nil {
		slog.Error("failed to cancel", "job_id", st.LastJobID, "error", err)
		c.fail(uxerror.ContextCancel, err, nil)
		return fmt.Errorf("cancelling %s: %w", st.LastJobID, err)
	}

	c.state.update(func(s *State) {
		s.UxError = nil
		s.JobMessage = "Cancellation requested..."
	})
	return nil
}

// ResetSavings clears the savings ledger after confirmation.
func (c *Controller) ResetSavings(ctx context.Context) error {
	c.intentMu.Lock()
	defer c.intentMu.Unlock()

	ok, err := c.gate.Request(ctx, confirm.Dialog{
		Title:         "Reset progress?",
		Message:       "Reset all time-saving statistics? This cannot be undone.",
		ConfirmLabel:  "Reset",
		CancelLabel:   "Cancel",
		Variant:       confirm.VariantDanger,
		DefaultAction: confirm.ActionCancel,
	})
	if err != nil {
		return err
	}
	if !ok {
		return ErrDeclined
	}

	sv, err := c.hub.ResetTimeSavings(ctx)
	if err != nil {
		slog.Error("failed to reset savings", "error", err)
		c.fail(uxerror.ContextStartup, err, nil)
		return fmt.Errorf("resetting savings: %w", err)
	}
	c.state.update(func(s *State) {
		s.Savings = *sv
	})
	return nil
}

// Confirm answers the outstanding confirmation. It reports whether there was one.
func (c *Controller) Confirm(confirmed bool) bool {
	return c.gate.Resolve(confirmed)
}

func (c *Controller) SetActiveCategory(categoryID string) {
	c.state.update(func(s *State) {
		s.ActiveCategory = categoryID
	})
}

func (c *Controller) SetResultTab(tab ResultTab) {
	c.state.update(func(s *State) {
		s.ResultTab = tab
	})
}

func (c *Controller) ToggleConnectionHelp() {
	c.state.update(func(s *State) {
		s.ShowConnectionHelp = !s.ShowConnectionHelp
	})
}

// fail classifies raw for context and shows it as the focused error.
func (c *Controller) fail(uctx uxerror.Context, raw any, extra func(*State)) uxerror.Info {
	info := uxerror.Classify(raw, uctx)
	c.state.update(func(s *State) {
		if extra != nil {
			extra(s)
		}
		s.JobStatus = models.JobStatusError
		s.UxError = &info
		s.JobMessage = info.Message
	})
	return info
}

func clearFocusedJob(s *State) {
	s.LastJobID = ""
}

// --- Derived state ---

// commit runs on the state goroutine after every mutation.
func (c *Controller) commit(prev, next *State) {
	if next.Status.Connected && next.ShowConnectionHelp {
		next.ShowConnectionHelp = false
	}
	if overlayInputsChanged(prev, next) {
		c.scheduleOverlay(next)
	}
}

func overlayInputsChanged(prev, next *State) bool {
	return prev.JobStatus != next.JobStatus ||
		prev.LastJobID != next.LastJobID ||
		prev.LastTool != next.LastTool ||
		prev.UxError != next.UxError
}

// scheduleOverlay picks the overlay owner for next. A completed job keeps the
// overlay for the grace period; the hide only applies if the same job still
// owns the overlay when the timer fires.
func (c *Controller) scheduleOverlay(next *State) {
	if c.overlayTimer != nil {
		c.overlayTimer.Stop()
		c.overlayTimer = nil
	}

	next.OverlayJobID = ""
	focused := next.LastTool != nil && next.LastJobID != ""
	switch {
	case next.JobStatus == models.JobStatusError && next.UxError != nil:
		next.OverlayJobID = overlayErrorID
	case focused && (next.JobStatus == models.JobStatusPending ||
		next.JobStatus == models.JobStatusRunning ||
		next.JobStatus == models.JobStatusCompleted):
		next.OverlayJobID = next.LastJobID
	}

	if focused && next.JobStatus == models.JobStatusCompleted {
		jobID := next.LastJobID
		c.overlayTimer = time.AfterFunc(c.opts.OverlayGrace, func() {
			c.state.update(func(s *State) {
				if s.OverlayJobID == jobID {
					s.OverlayJobID = ""
				}
			})
		})
	}
}
