// Package feature composes independent sub-reducers into one reducer.
//
// A Composite holds an ordered list of slices. Each slice pairs a Feature
// with an extractor and injector over the shared state tree. Update is a
// left-to-right fold: a slice sees the state as left by the slices before
// it in the same pass. Call routes a command to the first slice whose
// Feature accepts it.
//
// Composite implements engine.Updater and effect.Handler, so one value
// serves as both the Program's reducer and the executor's handler.
package feature
