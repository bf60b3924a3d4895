// Package host exposes the virtual switch to home-automation platforms.
//
// A platform only needs to offer a single boolean characteristic: a read
// callback, a write callback and a way to push a new value.
package host

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// Switch is an on/off characteristic exposed by a host platform.
//
// OnGet and OnSet must be called before Run.
type Switch interface {
	// OnGet registers the handler answering host reads.
	OnGet(fn func() bool)
	// OnSet registers the handler receiving host writes.
	OnSet(fn func(on bool))
	// Publish notifies the host of the current value.
	Publish(on bool) error
	// Run serves the platform until ctx is done.
	Run(ctx context.Context) error
}

// Multi fans a switch out to several platforms.
type Multi []Switch

func (m Multi) OnGet(fn func() bool) {
	for _, s := range m {
		s.OnGet(fn)
	}
}

func (m Multi) OnSet(fn func(on bool)) {
	for _, s := range m {
		s.OnSet(fn)
	}
}

// Publish notifies every platform, even when an earlier one fails.
func (m Multi) Publish(on bool) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(on); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run serves all platforms. The first failure stops the others.
func (m Multi) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, s := range m {
		s := s
		g.Go(func() error {
			return s.Run(ctx)
		})
	}
	return g.Wait()
}
