package orchestrator

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/kiranshivaraju/eomhub/internal/confirm"
	"github.com/kiranshivaraju/eomhub/internal/uxerror"
	"github.com/kiranshivaraju/eomhub/pkg/models"
)

// ResultTab selects the focused job's detail pane.
type ResultTab string

const (
	ResultTabResult ResultTab = "result"
	ResultTabLogs   ResultTab = "logs"
)

// overlayErrorID is the overlay owner while a classified error is focused.
const overlayErrorID = "__ux_error__"

// State is the controller's single authoritative state. A published State is
// never modified again; every mutation works on a fresh copy. Config, Savings,
// JobResult, LastTool, UxError and ConfirmDialog are replaced wholesale and
// never edited in place.
type State struct {
	Config  *models.ToolsConfig
	Status  models.RevitStatus
	Savings models.TimeSavings

	// Job registry.
	PendingJobIDs []string
	JobMeta       map[string]JobMeta
	Finished      map[string]bool
	DisplayNames  map[string]string
	RunCounters   map[string]int

	// Focused job.
	LastTool   *models.Tool
	LastJobID  string
	JobStatus  string
	JobResult  *models.JobResult
	JobMessage string
	UxError    *uxerror.Info

	ActiveCategory     string
	ShowConnectionHelp bool
	ResultTab          ResultTab
	OverlayJobID       string
	ConfirmDialog      *confirm.Dialog
	ConfigLoaded       bool
}

func newState() *State {
	return &State{
		Savings:      models.TimeSavings{Executed: map[string]int{}},
		JobMeta:      map[string]JobMeta{},
		Finished:     map[string]bool{},
		DisplayNames: map[string]string{},
		RunCounters:  map[string]int{},
		JobStatus:    models.JobStatusIdle,
		ResultTab:    ResultTabResult,
	}
}

func (s *State) clone() *State {
	next := *s
	next.PendingJobIDs = append([]string(nil), s.PendingJobIDs...)
	next.JobMeta = make(map[string]JobMeta, len(s.JobMeta))
	for k, v := range s.JobMeta {
		next.JobMeta[k] = v
	}
	next.Finished = make(map[string]bool, len(s.Finished))
	for k, v := range s.Finished {
		next.Finished[k] = v
	}
	next.DisplayNames = make(map[string]string, len(s.DisplayNames))
	for k, v := range s.DisplayNames {
		next.DisplayNames[k] = v
	}
	next.RunCounters = make(map[string]int, len(s.RunCounters))
	for k, v := range s.RunCounters {
		next.RunCounters[k] = v
	}
	return &next
}

type mutation struct {
	fn   func(*State)
	done chan struct{}
}

// stateStore serializes every mutation through a single goroutine. Readers
// load the latest published snapshot without locking.
type stateStore struct {
	current atomic.Pointer[State]
	queue   chan mutation
	commit  func(prev, next *State)

	quit      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// newStateStore starts the owner goroutine. commit runs on that goroutine
// after each mutation, before the result is published, and must not call
// update.
func newStateStore(initial *State, commit func(prev, next *State)) *stateStore {
	s := &stateStore{
		queue:   make(chan mutation),
		commit:  commit,
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	s.current.Store(initial)
	go s.run()
	return s
}

func (s *stateStore) run() {
	defer close(s.stopped)
	for {
		select {
		case m := <-s.queue:
			s.apply(m)
		case <-s.quit:
			return
		}
	}
}

func (s *stateStore) apply(m mutation) {
	defer close(m.done)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("state mutation panicked", "panic", r)
		}
	}()

	prev := s.current.Load()
	next := prev.clone()
	m.fn(next)
	if s.commit != nil {
		s.commit(prev, next)
	}
	s.current.Store(next)
}

// update applies fn to a copy of the latest state and publishes the copy. It
// blocks until fn has run and reports false if the store is closed.
func (s *stateStore) update(fn func(*State)) bool {
	m := mutation{fn: fn, done: make(chan struct{})}
	select {
	case s.queue <- m:
	case <-s.quit:
		return false
	}
	<-m.done
	return true
}

// load returns the latest published state. The result must not be modified.
func (s *stateStore) load() *State {
	return s.current.Load()
}

func (s *stateStore) close() {
	s.closeOnce.Do(func() {
		close(s.quit)
		<-s.stopped
	})
}
