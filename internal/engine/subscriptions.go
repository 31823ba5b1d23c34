package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/uniflow/internal/ir"
)

// Source is a continuous external message source. Start runs until ctx is
// cancelled, sending messages to sink. It is started at most once.
type Source interface {
	Start(ctx context.Context, sink ir.MessageConsumer)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, sink ir.MessageConsumer)

// Start calls f(ctx, sink).
func (f SourceFunc) Start(ctx context.Context, sink ir.MessageConsumer) {
	f(ctx, sink)
}

// Subscription is a Source, optionally gated by a predicate over state.
// A gated subscription starts the first time its predicate holds; the
// predicate is not evaluated again after that.
type Subscription[S any] struct {
	Name   string
	Source Source
	When   func(state S) bool
}

// Always returns an unconditional subscription.
func Always[S any](name string, src Source) Subscription[S] {
	return Subscription[S]{Name: name, Source: src}
}

// When returns a subscription that starts once pred holds for the state.
func When[S any](name string, pred func(state S) bool, src Source) Subscription[S] {
	return Subscription[S]{Name: name, Source: src, When: pred}
}

type subEntry[S any] struct {
	sub     Subscription[S]
	started bool
}

// subscriptions tracks a Program's subscriptions.
//
// Thread-safety: notify and stop may be called from any goroutine.
type subscriptions[S any] struct {
	mu            sync.Mutex
	conditional   []*subEntry[S]
	unconditional []*subEntry[S]
	sink          ir.MessageConsumer
	logger        *slog.Logger
	ctx           context.Context
	cancel        context.CancelFunc
	stopped       bool
	wg            sync.WaitGroup
}

func newSubscriptions[S any](sink ir.MessageConsumer, logger *slog.Logger) *subscriptions[S] {
	ctx, cancel := context.WithCancel(context.Background())
	return &subscriptions[S]{
		sink:   sink,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *subscriptions[S]) add(subs ...Subscription[S]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range subs {
		if sub.Source == nil {
			continue
		}
		e := &subEntry[S]{sub: sub}
		if sub.When != nil {
			s.conditional = append(s.conditional, e)
		} else {
			s.unconditional = append(s.unconditional, e)
		}
	}
}

// notify promotes conditional entries whose predicate holds for state, then
// starts every unconditional entry not yet started.
func (s *subscriptions[S]) notify(state S) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}

	remaining := s.conditional[:0]
	for _, e := range s.conditional {
		if e.sub.When(state) {
			s.logger.Debug("subscription promoted", "subscription", e.sub.Name)
			s.unconditional = append(s.unconditional, e)
			continue
		}
		remaining = append(remaining, e)
	}
	for i := len(remaining); i < len(s.conditional); i++ {
		s.conditional[i] = nil
	}
	s.conditional = remaining

	var toStart []*subEntry[S]
	for _, e := range s.unconditional {
		if !e.started {
			e.started = true
			toStart = append(toStart, e)
		}
	}
	s.wg.Add(len(toStart))
	s.mu.Unlock()

	for _, e := range toStart {
		s.logger.Debug("subscription started", "subscription", e.sub.Name)
		go func(e *subEntry[S]) {
			defer s.wg.Done()
			e.sub.Source.Start(s.ctx, s.sink)
		}(e)
	}
}

// active returns the names of started subscriptions, in start order.
func (s *subscriptions[S]) active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for _, e := range s.unconditional {
		if e.started {
			names = append(names, e.sub.Name)
		}
	}
	return names
}

// stop cancels every started source. Sources are expected to return once
// their context is done; stop does not wait for them.
func (s *subscriptions[S]) stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cancel()
}

// wait blocks until every started source has returned.
func (s *subscriptions[S]) wait() {
	s.wg.Wait()
}
