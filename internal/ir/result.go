package ir

// ResultKind tags the four shapes of an update result.
type ResultKind int

const (
	// ResultIdle means no state change and no command.
	ResultIdle ResultKind = iota
	// ResultStateOnly carries a new state and no command.
	ResultStateOnly
	// ResultEffectOnly carries a command and no new state.
	ResultEffectOnly
	// ResultStateAndCmd carries both a new state and a command.
	ResultStateAndCmd
)

func (k ResultKind) String() string {
	switch k {
	case ResultIdle:
		return "idle"
	case ResultStateOnly:
		return "state"
	case ResultEffectOnly:
		return "effect"
	case ResultStateAndCmd:
		return "state+cmd"
	default:
		return "unknown"
	}
}

// Result is the value a reducer returns for one message.
//
// A result without state and a result whose command is None are both legal
// and distinct encodings of "nothing to do".
type Result[S any] struct {
	kind  ResultKind
	state S
	cmd   Cmd
}

// Idle returns a result with no state change and no command.
func Idle[S any]() Result[S] {
	return Result[S]{kind: ResultIdle, cmd: None}
}

// StateOnly returns a result replacing the state without emitting a command.
func StateOnly[S any](state S) Result[S] {
	return Result[S]{kind: ResultStateOnly, state: state, cmd: None}
}

// EffectOnly returns a result emitting cmd without changing state.
func EffectOnly[S any](cmd Cmd) Result[S] {
	return Result[S]{kind: ResultEffectOnly, cmd: orNone(cmd)}
}

// StateAndCmd returns a result replacing the state and emitting cmd.
func StateAndCmd[S any](state S, cmd Cmd) Result[S] {
	return Result[S]{kind: ResultStateAndCmd, state: state, cmd: orNone(cmd)}
}

// Kind returns the result's tag.
func (r Result[S]) Kind() ResultKind {
	return r.kind
}

// State returns the new state and whether the result carries one.
func (r Result[S]) State() (S, bool) {
	return r.state, r.kind == ResultStateOnly || r.kind == ResultStateAndCmd
}

// Cmd returns the emitted command, None when there is none.
func (r Result[S]) Cmd() Cmd {
	return orNone(r.cmd)
}

// StateOr returns the carried state, or fallback when the result has none.
func (r Result[S]) StateOr(fallback S) S {
	if s, ok := r.State(); ok {
		return s
	}
	return fallback
}

func orNone(cmd Cmd) Cmd {
	if cmd == nil {
		return None
	}
	return cmd
}
