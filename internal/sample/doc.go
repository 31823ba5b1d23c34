// Package sample is a small reference application built from three
// features sharing one state tree:
//
//   - loader: InitMsg starts a fetch, DataMsg stores the value
//   - search: QueryMsg starts a latest-wins search, CancelSearchMsg stops it
//   - counter: IncrementMsg and TickMsg, with ticks coming from a
//     subscription that starts once the loader has loaded
//
// The harness, the journal and the CLI run scenarios against it.
package sample
