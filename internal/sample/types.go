package sample

import (
	"reflect"

	"github.com/roach88/uniflow/internal/ir"
)

// State is the application state tree.
type State struct {
	Loader  LoaderState  `json:"loader"`
	Search  SearchState  `json:"search"`
	Counter CounterState `json:"counter"`
}

type LoaderState struct {
	Loading bool   `json:"loading"`
	Loaded  bool   `json:"loaded"`
	Value   int    `json:"value"`
	Err     string `json:"err,omitempty"`
}

type SearchState struct {
	Query     string   `json:"query"`
	Searching bool     `json:"searching"`
	Results   []string `json:"results,omitempty"`
	Err       string   `json:"err,omitempty"`
}

type CounterState struct {
	Count int `json:"count"`
	Ticks int `json:"ticks"`
}

// Equal reports whether two states are identical. Used as the Program's
// render-suppression test.
func Equal(a, b State) bool {
	return reflect.DeepEqual(a, b)
}

// Messages.
type (
	DataMsg struct {
		Value int `json:"value"`
	}
	QueryMsg struct {
		Query string `json:"query"`
	}
	ResultsMsg struct {
		Query string   `json:"query"`
		Items []string `json:"items"`
	}
	CancelSearchMsg struct{}
	IncrementMsg    struct {
		By int `json:"by,omitempty"`
	}
	TickMsg  struct{}
	ResetMsg struct{}
)

const (
	FetchCmdType  = "sample.fetch"
	SearchCmdType = "sample.search"
)

// FetchCmd asks the backend for the loader value.
type FetchCmd struct{}

func (FetchCmd) CmdType() string { return FetchCmdType }
func (FetchCmd) CmdKey() string  { return "" }

// SearchCmd asks the backend for items matching Query.
type SearchCmd struct {
	Query string `json:"query"`
}

func (c SearchCmd) CmdType() string { return SearchCmdType }
func (c SearchCmd) CmdKey() string  { return ir.MustKey(c.Query) }
