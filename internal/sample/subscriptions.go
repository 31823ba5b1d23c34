package sample

import (
	"context"
	"time"

	"github.com/roach88/uniflow/internal/engine"
	"github.com/roach88/uniflow/internal/ir"
)

// TickSource sends n TickMsgs, one per interval, then returns.
func TickSource(n int, interval time.Duration) engine.Source {
	return engine.SourceFunc(func(ctx context.Context, sink ir.MessageConsumer) {
		for i := 0; i < n; i++ {
			if interval > 0 {
				timer := time.NewTimer(interval)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
			} else if ctx.Err() != nil {
				return
			}
			sink.Accept(TickMsg{})
		}
	})
}

// Loaded reports whether the loader has a value.
func Loaded(s State) bool {
	return s.Loader.Loaded
}

// Subscriptions returns the sample app's subscriptions: ticks start once
// the loader has loaded. A non-positive ticks disables them.
func Subscriptions(ticks int, interval time.Duration) []engine.Subscription[State] {
	if ticks <= 0 {
		return nil
	}
	return []engine.Subscription[State]{
		engine.When("ticks", Loaded, TickSource(ticks, interval)),
	}
}
