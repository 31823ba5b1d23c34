// Package ir defines the values that flow through the uniflow runtime.
//
// This package contains the message and command model only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Messages (Msg) and commands (Cmd) are immutable values
//   - Runtime-reserved variants form a closed set matched exhaustively
//     (IdleMsg, InitMsg, ErrorMsg; None, Batch, Switch, Cancel, CancelByType, Proxy)
//   - Command identity is explicit: a type discriminant plus a value key
//     chosen by the programmer, never derived from runtime type metadata
//   - Value keys are computed from canonical JSON, so NO float fields
package ir
