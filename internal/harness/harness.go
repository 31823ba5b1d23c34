package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/uniflow/internal/config"
	"github.com/roach88/uniflow/internal/effect"
	"github.com/roach88/uniflow/internal/engine"
	"github.com/roach88/uniflow/internal/ir"
	"github.com/roach88/uniflow/internal/sample"
	"github.com/roach88/uniflow/internal/store"
	"github.com/roach88/uniflow/internal/testutil"
)

// Harness is the test execution engine.
// It drives one fresh sample Program per scenario and records every
// processed message with a deterministic sequence number.
type Harness struct {
	program  *engine.Program[sample.State]
	executor *effect.Executor
	codec    *sample.Codec
	clock    *testutil.DeterministicClock
	sources  *sourceTracker
	logger   *slog.Logger

	mu       sync.Mutex
	trace    []TraceEvent
	failures []string
}

var _ engine.Middleware[sample.State] = (*Harness)(nil)

// Option configures a scenario run.
type Option func(*options)

type options struct {
	store  *store.Store
	logger *slog.Logger
}

// WithStore journals the run into st.
func WithStore(st *store.Store) Option {
	return func(o *options) {
		o.store = st
	}
}

// WithLogger sets the logger handed to the Program, executor and features.
// Default: logs are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against a fresh Program, executor and backend.
//
// Execution flow:
// 1. Load configuration and build the sample app
// 2. Start the Program with the empty state
// 3. Send each step, waiting for quiescence unless the step is async
// 4. Stop the Program and evaluate assertions
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := config.Default()
	if scenario.Config != "" {
		var err error
		cfg, err = config.Load(scenario.Config)
		if err != nil {
			return nil, fmt.Errorf("load scenario config: %w", err)
		}
	}

	backend := sample.StaticBackend{
		Value:  scenario.Backend.Value,
		Corpus: scenario.Backend.Corpus,
		Delay:  scenario.Backend.Delay,
		Down:   scenario.Backend.Down,
	}
	app := sample.NewApp(backend, o.logger)

	h := &Harness{
		codec:   sample.NewCodec(),
		clock:   testutil.NewDeterministicClock(),
		sources: &sourceTracker{},
		logger:  o.logger,
	}

	execOpts := append(cfg.ExecutorOptions(),
		effect.WithLogger(o.logger),
		effect.WithIDGenerator(effect.NewSequenceGenerator("eff")),
		effect.WithFailureHandler(h.onFailure),
	)
	h.executor = effect.New(app, execOpts...)

	middleware := []engine.Middleware[sample.State]{
		h,
		engine.LoggingMiddleware[sample.State]{Logger: o.logger},
	}
	var recorder *store.Recorder[sample.State]
	if o.store != nil {
		var err error
		recorder, err = store.NewRecorder(context.Background(), o.store,
			store.NewRunID(), scenario.Name, sample.State{}, h.codec, o.logger)
		if err != nil {
			return nil, fmt.Errorf("start journal: %w", err)
		}
		middleware = append(middleware, recorder)
	}

	h.program = engine.New[sample.State](app, h.executor,
		engine.WithLogger[sample.State](o.logger),
		engine.WithStateEqual(sample.Equal),
		engine.WithMiddleware(middleware...),
	)

	var subs []engine.Subscription[sample.State]
	if scenario.Ticks > 0 {
		subs = append(subs, engine.When("ticks",
			h.sources.gate(sample.Loaded),
			h.sources.track(sample.TickSource(scenario.Ticks, 0)),
		))
	}

	result := NewResult()
	if err := h.program.Run(sample.State{}, nil, subs...); err != nil {
		return nil, fmt.Errorf("start program: %w", err)
	}

	timeout := scenario.timeout()
	for i, step := range scenario.Steps {
		msg, err := h.decodeStep(step)
		if err != nil {
			result.AddError(fmt.Sprintf("steps[%d]: %v", i, err))
			break
		}
		h.program.Accept(msg)
		if step.Async {
			continue
		}
		if err := h.settle(timeout); err != nil {
			result.AddError(fmt.Sprintf("steps[%d] (%s): %v", i, step.Send, err))
			break
		}
	}
	if err := h.settle(timeout); err != nil {
		result.AddError(err.Error())
	}

	state, _ := h.program.GetState()
	h.program.Stop()
	h.executor.Wait()

	h.mu.Lock()
	result.Trace = append(result.Trace, h.trace...)
	for _, failure := range h.failures {
		result.AddError(failure)
	}
	h.mu.Unlock()

	generic, err := stateToGeneric(state)
	if err != nil {
		return nil, err
	}
	result.State = generic

	if recorder != nil {
		result.RunID = recorder.Run().ID
		if err := recorder.Err(); err != nil {
			result.AddError(fmt.Sprintf("journal: %v", err))
		}
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	return result, nil
}

// BeforeUpdate implements engine.Middleware.
func (h *Harness) BeforeUpdate(ir.Msg, sample.State) {}

// AfterUpdate appends msg to the trace.
func (h *Harness) AfterUpdate(msg ir.Msg, _ sample.State) {
	seq := h.clock.Next()
	name, raw, err := h.codec.EncodeMsg(msg)

	h.mu.Lock()
	defer h.mu.Unlock()
	if err != nil {
		h.failures = append(h.failures, fmt.Sprintf("trace seq %d: %v", seq, err))
		h.trace = append(h.trace, TraceEvent{Seq: seq, Msg: h.codec.NameOf(msg)})
		return
	}
	payload, err := payloadToGeneric(raw)
	if err != nil {
		h.failures = append(h.failures, fmt.Sprintf("trace seq %d: %v", seq, err))
	}
	h.trace = append(h.trace, TraceEvent{Seq: seq, Msg: name, Payload: payload})
}

// onFailure receives effect failures when catch_errors is off.
func (h *Harness) onFailure(cmd ir.Cmd, err error) {
	h.logger.Warn("effect failed", "cmd_type", ir.IdentityOf(cmd).Type, "error", err)
	h.mu.Lock()
	h.failures = append(h.failures, fmt.Sprintf("effect failed: %v", err))
	h.mu.Unlock()
}

func (h *Harness) decodeStep(step Step) (ir.Msg, error) {
	var payload []byte
	if len(step.Payload) > 0 {
		var err error
		payload, err = json.Marshal(step.Payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
	}
	return h.codec.DecodeMsg(step.Send, payload)
}

// quiescent reports whether no message, effect or source is outstanding.
func (h *Harness) quiescent() bool {
	return h.program.Pending() == 0 &&
		!h.program.Busy() &&
		h.executor.InFlight() == 0 &&
		h.sources.running() == 0
}

// settle polls until the Program is quiescent or timeout passes.
func (h *Harness) settle(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for !h.quiescent() {
		if time.Now().After(deadline) {
			return fmt.Errorf("not quiescent after %s (pending=%d, in_flight=%d, sources=%d)",
				timeout, h.program.Pending(), h.executor.InFlight(), h.sources.running())
		}
		time.Sleep(time.Millisecond)
	}
	return nil
}

// sourceTracker counts subscription sources that were promoted but have not
// returned. The gate predicate runs inside the cycle that promotes the
// subscription, so the count is raised before the source goroutine exists.
type sourceTracker struct {
	n atomic.Int64
}

func (t *sourceTracker) gate(pred func(sample.State) bool) func(sample.State) bool {
	return func(s sample.State) bool {
		if !pred(s) {
			return false
		}
		t.n.Add(1)
		return true
	}
}

func (t *sourceTracker) track(src engine.Source) engine.Source {
	return engine.SourceFunc(func(ctx context.Context, sink ir.MessageConsumer) {
		defer t.n.Add(-1)
		src.Start(ctx, sink)
	})
}

func (t *sourceTracker) running() int64 {
	return t.n.Load()
}

func knownMsgNames() map[string]bool {
	names := make(map[string]bool)
	for _, name := range sample.NewCodec().MsgNames() {
		names[name] = true
	}
	return names
}

// stateToGeneric converts the state to the map form used by assertions and
// golden snapshots.
func stateToGeneric(state sample.State) (map[string]any, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode final state: %w", err)
	}
	return payloadToGeneric(raw)
}

func payloadToGeneric(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	v, err := decodeGeneric(raw)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected JSON object, got %T", v)
	}
	return obj, nil
}

// toGeneric round-trips v through JSON into the normalized generic form.
func toGeneric(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return decodeGeneric(raw)
}

func decodeGeneric(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}
	return normalize(v), nil
}

// normalize drops null object members and turns integral numbers into
// int64, which keeps the result acceptable to ir.MarshalCanonical.
func normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			if elem == nil {
				continue
			}
			out[k] = normalize(elem)
		}
		return out
	case []any:
		out := make([]any, 0, len(val))
		for _, elem := range val {
			if elem == nil {
				continue
			}
			out = append(out, normalize(elem))
		}
		return out
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		return val.String()
	default:
		return val
	}
}
