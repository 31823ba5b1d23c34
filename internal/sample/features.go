package sample

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/uniflow/internal/feature"
	"github.com/roach88/uniflow/internal/ir"
)

// loader handles InitMsg, DataMsg and failures of FetchCmd.
type loader struct {
	backend Backend
}

func (loader) HandlesMessage(msg ir.Msg) bool {
	switch m := msg.(type) {
	case ir.InitMsg, DataMsg:
		return true
	case ir.ErrorMsg:
		_, ok := m.Cmd.(FetchCmd)
		return ok
	default:
		return false
	}
}

func (loader) HandlesCommand(cmd ir.Cmd) bool {
	_, ok := cmd.(FetchCmd)
	return ok
}

func (loader) Update(msg ir.Msg, s LoaderState) ir.Result[LoaderState] {
	switch m := msg.(type) {
	case ir.InitMsg:
		return ir.StateAndCmd[LoaderState](LoaderState{Loading: true}, FetchCmd{})
	case DataMsg:
		return ir.StateOnly(LoaderState{Loaded: true, Value: m.Value})
	case ir.ErrorMsg:
		return ir.StateOnly(LoaderState{Err: errText(m.Err)})
	default:
		panic(fmt.Sprintf("loader: unexpected message %T", msg))
	}
}

func (l loader) Call(ctx context.Context, cmd ir.Cmd) (ir.Msg, error) {
	v, err := l.backend.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return DataMsg{Value: v}, nil
}

// search handles queries with latest-wins semantics.
type search struct {
	backend Backend
}

func (search) HandlesMessage(msg ir.Msg) bool {
	switch m := msg.(type) {
	case QueryMsg, ResultsMsg, CancelSearchMsg:
		return true
	case ir.ErrorMsg:
		_, ok := m.Cmd.(SearchCmd)
		return ok
	default:
		return false
	}
}

func (search) HandlesCommand(cmd ir.Cmd) bool {
	_, ok := cmd.(SearchCmd)
	return ok
}

func (search) Update(msg ir.Msg, s SearchState) ir.Result[SearchState] {
	switch m := msg.(type) {
	case QueryMsg:
		if m.Query == "" {
			return ir.StateAndCmd[SearchState](SearchState{}, ir.CancelAll(SearchCmd{}))
		}
		return ir.StateAndCmd[SearchState](
			SearchState{Query: m.Query, Searching: true},
			ir.Switch{Inner: SearchCmd{Query: m.Query}},
		)
	case ResultsMsg:
		if m.Query != s.Query {
			return ir.Idle[SearchState]()
		}
		return ir.StateOnly(SearchState{Query: s.Query, Results: m.Items})
	case CancelSearchMsg:
		if !s.Searching {
			return ir.Idle[SearchState]()
		}
		return ir.StateAndCmd[SearchState](SearchState{Query: s.Query}, ir.CancelAll(SearchCmd{}))
	case ir.ErrorMsg:
		return ir.StateOnly(SearchState{Query: s.Query, Err: errText(m.Err)})
	default:
		panic(fmt.Sprintf("search: unexpected message %T", msg))
	}
}

func (s search) Call(ctx context.Context, cmd ir.Cmd) (ir.Msg, error) {
	q := cmd.(SearchCmd).Query
	items, err := s.backend.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	return ResultsMsg{Query: q, Items: items}, nil
}

// counter counts increments and subscription ticks. It has no effects.
type counter struct{}

func (counter) HandlesMessage(msg ir.Msg) bool {
	switch msg.(type) {
	case IncrementMsg, TickMsg:
		return true
	default:
		return false
	}
}

func (counter) HandlesCommand(ir.Cmd) bool { return false }

func (counter) Update(msg ir.Msg, s CounterState) ir.Result[CounterState] {
	switch m := msg.(type) {
	case IncrementMsg:
		by := m.By
		if by == 0 {
			by = 1
		}
		return ir.StateOnly(CounterState{Count: s.Count + by, Ticks: s.Ticks})
	case TickMsg:
		return ir.StateOnly(CounterState{Count: s.Count, Ticks: s.Ticks + 1})
	default:
		panic(fmt.Sprintf("counter: unexpected message %T", msg))
	}
}

func (counter) Call(context.Context, ir.Cmd) (ir.Msg, error) {
	return nil, feature.ErrUnhandledCommand
}

// app is the main entry: it sees the whole state tree.
type app struct{}

func (app) HandlesMessage(msg ir.Msg) bool {
	_, ok := msg.(ResetMsg)
	return ok
}

func (app) HandlesCommand(ir.Cmd) bool { return false }

func (app) Update(msg ir.Msg, s State) ir.Result[State] {
	return ir.StateAndCmd[State](State{}, ir.CancelAll(SearchCmd{}))
}

func (app) Call(context.Context, ir.Cmd) (ir.Msg, error) {
	return nil, feature.ErrUnhandledCommand
}

func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

// NewApp wires the sample features into one composite. The result is both
// the Program's reducer and the executor's handler.
func NewApp(backend Backend, logger *slog.Logger) *feature.Composite[State] {
	if logger == nil {
		logger = slog.Default()
	}
	c := feature.New(feature.WithLogger[State](logger))
	feature.Add[State, LoaderState](c, "loader", loader{backend: backend},
		func(s State) LoaderState { return s.Loader },
		func(s State, sub LoaderState) State { s.Loader = sub; return s },
	)
	feature.Add[State, SearchState](c, "search", search{backend: backend},
		func(s State) SearchState { return s.Search },
		func(s State, sub SearchState) State { s.Search = sub; return s },
	)
	feature.Add[State, CounterState](c, "counter", counter{},
		func(s State) CounterState { return s.Counter },
		func(s State, sub CounterState) State { s.Counter = sub; return s },
	)
	c.Main("app", app{})
	return c
}
