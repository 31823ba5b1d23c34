package sample

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/uniflow/internal/feature"
	"github.com/roach88/uniflow/internal/ir"
)

func newTestApp() *feature.Composite[State] {
	return NewApp(StaticBackend{Value: 42, Corpus: []string{"go", "gopher", "rust"}}, quietLogger())
}

func TestApp_InitStartsFetch(t *testing.T) {
	result := newTestApp().Update(ir.InitMsg{}, State{})

	s, ok := result.State()
	require.True(t, ok)
	assert.Equal(t, LoaderState{Loading: true}, s.Loader)
	assert.Equal(t, FetchCmd{}, result.Cmd())
}

func TestApp_DataCompletesLoad(t *testing.T) {
	start := State{Loader: LoaderState{Loading: true}}

	s, _ := newTestApp().Update(DataMsg{Value: 42}, start).State()

	assert.Equal(t, LoaderState{Loaded: true, Value: 42}, s.Loader)
}

func TestApp_ErrorMsgRoutedByCommand(t *testing.T) {
	app := newTestApp()
	boom := errors.New("boom")

	s, _ := app.Update(ir.ErrorMsg{Err: boom, Cmd: FetchCmd{}}, State{}).State()
	assert.Equal(t, "boom", s.Loader.Err)
	assert.Empty(t, s.Search.Err)

	s, _ = app.Update(ir.ErrorMsg{Err: boom, Cmd: SearchCmd{Query: "go"}}, State{Search: SearchState{Query: "go"}}).State()
	assert.Equal(t, "boom", s.Search.Err)
	assert.Empty(t, s.Loader.Err)
}

func TestApp_QueryIsSwitch(t *testing.T) {
	result := newTestApp().Update(QueryMsg{Query: "go"}, State{})

	s, _ := result.State()
	assert.Equal(t, SearchState{Query: "go", Searching: true}, s.Search)
	assert.Equal(t, ir.Switch{Inner: SearchCmd{Query: "go"}}, result.Cmd())
}

func TestApp_EmptyQueryCancels(t *testing.T) {
	result := newTestApp().Update(QueryMsg{}, State{Search: SearchState{Query: "go", Searching: true}})

	s, _ := result.State()
	assert.Equal(t, SearchState{}, s.Search)
	assert.Equal(t, ir.CancelByType{Type: SearchCmdType}, result.Cmd())
}

func TestApp_StaleResultsIgnored(t *testing.T) {
	start := State{Search: SearchState{Query: "gopher", Searching: true}}

	result := newTestApp().Update(ResultsMsg{Query: "go", Items: []string{"go"}}, start)

	assert.Equal(t, ir.ResultIdle, result.Kind())
}

func TestApp_CancelSearch(t *testing.T) {
	app := newTestApp()

	result := app.Update(CancelSearchMsg{}, State{Search: SearchState{Query: "go", Searching: true}})
	s, _ := result.State()
	assert.Equal(t, SearchState{Query: "go"}, s.Search)
	assert.Equal(t, ir.CancelByType{Type: SearchCmdType}, result.Cmd())

	assert.Equal(t, ir.ResultIdle, app.Update(CancelSearchMsg{}, State{}).Kind())
}

func TestApp_Counter(t *testing.T) {
	app := newTestApp()

	s, _ := app.Update(IncrementMsg{}, State{}).State()
	s, _ = app.Update(IncrementMsg{By: 5}, s).State()
	s, _ = app.Update(TickMsg{}, s).State()

	assert.Equal(t, CounterState{Count: 6, Ticks: 1}, s.Counter)
}

func TestApp_ResetClearsEverything(t *testing.T) {
	start := State{Loader: LoaderState{Loaded: true, Value: 1}, Counter: CounterState{Count: 3}}

	result := newTestApp().Update(ResetMsg{}, start)

	s, _ := result.State()
	assert.Equal(t, State{}, s)
	assert.Equal(t, ir.CancelByType{Type: SearchCmdType}, result.Cmd())
}

func TestApp_CallRoutesToFeature(t *testing.T) {
	app := newTestApp()
	ctx := context.Background()

	msg, err := app.Call(ctx, FetchCmd{})
	require.NoError(t, err)
	assert.Equal(t, DataMsg{Value: 42}, msg)

	msg, err = app.Call(ctx, SearchCmd{Query: "go"})
	require.NoError(t, err)
	assert.Equal(t, ResultsMsg{Query: "go", Items: []string{"go", "gopher"}}, msg)
}

func TestApp_BackendDown(t *testing.T) {
	app := NewApp(StaticBackend{Down: true}, quietLogger())

	_, err := app.Call(context.Background(), FetchCmd{})

	assert.ErrorIs(t, err, ErrBackendDown)
}

func TestEqual(t *testing.T) {
	a := State{Search: SearchState{Results: []string{"x"}}}
	b := State{Search: SearchState{Results: []string{"x"}}}

	assert.True(t, Equal(a, b))
	b.Counter.Ticks = 1
	assert.False(t, Equal(a, b))
}
