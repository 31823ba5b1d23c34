package sample

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
)

// ErrBackendDown is returned by StaticBackend when Down is set.
var ErrBackendDown = errors.New("backend unavailable")

// Backend is what the effects talk to.
type Backend interface {
	Fetch(ctx context.Context) (int, error)
	Search(ctx context.Context, query string) ([]string, error)
}

// StaticBackend is a deterministic in-memory Backend.
type StaticBackend struct {
	Value  int
	Corpus []string
	// Delay is applied before every call returns; it honours cancellation.
	Delay time.Duration
	Down  bool
}

func (b StaticBackend) Fetch(ctx context.Context) (int, error) {
	if err := b.wait(ctx); err != nil {
		return 0, err
	}
	if b.Down {
		return 0, ErrBackendDown
	}
	return b.Value, nil
}

func (b StaticBackend) Search(ctx context.Context, query string) ([]string, error) {
	if err := b.wait(ctx); err != nil {
		return nil, err
	}
	if b.Down {
		return nil, ErrBackendDown
	}
	var out []string
	for _, item := range b.Corpus {
		if strings.Contains(item, query) {
			out = append(out, item)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (b StaticBackend) wait(ctx context.Context) error {
	if b.Delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(b.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
