package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/uniflow/internal/ir"
)

type loadState struct {
	Loading bool
	Value   int
	Err     string
}

type fetchCmd struct{}

func (fetchCmd) CmdType() string { return "test.fetch" }
func (fetchCmd) CmdKey() string  { return "" }

type noteCmd struct{ Text string }

func (c noteCmd) CmdType() string { return "test.note" }
func (c noteCmd) CmdKey() string  { return ir.MustKey(c.Text) }

type dataMsg struct{ Value int }

type incMsg struct{}

type tagMsg struct{ Tag string }

type boomMsg struct{}

// loader is the Init -> FetchCmd -> DataMsg reducer.
func loader(msg ir.Msg, s loadState) ir.Result[loadState] {
	switch m := msg.(type) {
	case ir.InitMsg:
		return ir.StateAndCmd[loadState](loadState{Loading: true}, fetchCmd{})
	case dataMsg:
		return ir.StateOnly(loadState{Value: m.Value})
	case ir.ErrorMsg:
		return ir.StateOnly(loadState{Err: m.Err.Error()})
	default:
		return ir.Idle[loadState]()
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeExecutor records commands. Proxy messages, and results produced by
// respond, are delivered synchronously like a real executor's Proxy path.
type fakeExecutor struct {
	mu        sync.Mutex
	cmds      []ir.Cmd
	consumers []ir.MessageConsumer
	stops     int
	respond   func(cmd ir.Cmd) ir.Msg
}

func (f *fakeExecutor) Execute(cmd ir.Cmd) {
	f.mu.Lock()
	f.cmds = append(f.cmds, cmd)
	consumers := append([]ir.MessageConsumer(nil), f.consumers...)
	respond := f.respond
	f.mu.Unlock()

	var msg ir.Msg
	if p, ok := cmd.(ir.Proxy); ok {
		msg = p.Msg
	} else if respond != nil {
		msg = respond(cmd)
	}
	if msg == nil {
		return
	}
	for _, c := range consumers {
		c.Accept(msg)
	}
}

func (f *fakeExecutor) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakeExecutor) AddConsumer(c ir.MessageConsumer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.consumers = append(f.consumers, c)
}

func (f *fakeExecutor) commands() []ir.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ir.Cmd(nil), f.cmds...)
}

func (f *fakeExecutor) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

// depthProbe wraps a reducer and records the maximum concurrent call depth.
type depthProbe[S any] struct {
	inner Updater[S]
	depth atomic.Int32
	max   atomic.Int32
	calls atomic.Int64
}

func (d *depthProbe[S]) Update(msg ir.Msg, state S) ir.Result[S] {
	n := d.depth.Add(1)
	defer d.depth.Add(-1)
	for {
		m := d.max.Load()
		if n <= m || d.max.CompareAndSwap(m, n) {
			break
		}
	}
	d.calls.Add(1)
	return d.inner.Update(msg, state)
}

// recordingMiddleware records message order and optionally reacts in
// BeforeUpdate.
type recordingMiddleware[S any] struct {
	mu     sync.Mutex
	before []ir.Msg
	after  []S
	onMsg  func(msg ir.Msg)
}

func (r *recordingMiddleware[S]) BeforeUpdate(msg ir.Msg, state S) {
	r.mu.Lock()
	r.before = append(r.before, msg)
	r.mu.Unlock()
	if r.onMsg != nil {
		r.onMsg(msg)
	}
}

func (r *recordingMiddleware[S]) AfterUpdate(msg ir.Msg, state S) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.after = append(r.after, state)
}

func (r *recordingMiddleware[S]) seen() []ir.Msg {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ir.Msg(nil), r.before...)
}

// tickSource sends n tagMsgs, then waits for cancellation.
func tickSource(n int, started *atomic.Int32, cancelled chan<- struct{}) Source {
	return SourceFunc(func(ctx context.Context, sink ir.MessageConsumer) {
		if started != nil {
			started.Add(1)
		}
		for i := 0; i < n; i++ {
			sink.Accept(tagMsg{Tag: "tick"})
		}
		<-ctx.Done()
		if cancelled != nil {
			cancelled <- struct{}{}
		}
	})
}
