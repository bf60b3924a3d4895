// Package accessory holds the virtual switch state and keeps the host
// platforms in sync with it.
//
// The switch mirrors a measurement and cannot be actuated: host writes are
// accepted and discarded, reads always return the cached state.
package accessory

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/vueswitch/internal/host"
	"github.com/tejusbharadwaj/vueswitch/internal/monitor"
)

// StateSource produces the desired switch state. Implementations report
// failures as false rather than returning an error.
type StateSource interface {
	GetState(ctx context.Context) bool
}

// Switch is the single virtual switch exposed to the hosts.
type Switch struct {
	name   string
	source StateSource
	host   host.Switch
	logger *logrus.Logger

	mu   sync.RWMutex
	isOn bool

	initDone chan struct{}
}

// New registers the read and write handlers with the host and starts the
// initial state update in the background. The state reads off until that
// update completes.
func New(ctx context.Context, name string, source StateSource, sw host.Switch, logger *logrus.Logger) *Switch {
	s := &Switch{
		name:     name,
		source:   source,
		host:     sw,
		logger:   logger,
		initDone: make(chan struct{}),
	}
	sw.OnGet(s.On)
	sw.OnSet(s.SetOn)

	go func() {
		defer close(s.initDone)
		s.UpdateState(ctx, true)
	}()
	return s
}

// Init returns a channel closed once the initial state update has finished.
func (s *Switch) Init() <-chan struct{} {
	return s.initDone
}

// On returns the cached state.
func (s *Switch) On() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isOn
}

// SetOn handles host writes. The state reflects a measurement, so the
// write is dropped.
func (s *Switch) SetOn(on bool) {
	s.logger.WithFields(logrus.Fields{
		"switch":    s.name,
		"requested": monitor.StateName(on),
	}).Debug("Ignoring write to read-only switch")
}

// UpdateState fetches the desired state, stores it and publishes it to the
// host even when it did not change.
func (s *Switch) UpdateState(ctx context.Context, init bool) {
	current := s.On()
	desired := s.source.GetState(ctx)

	entry := s.logger.WithField("switch", s.name)
	switch {
	case init:
		entry.Infof("Emporia Vue switch initialized to %s state.", monitor.StateName(desired))
	case current == desired:
		entry.Infof("Emporia Vue switch kept in %s state.", monitor.StateName(desired))
	default:
		entry.Infof("Emporia Vue switch transitioned from %s to %s state.", monitor.StateName(current), monitor.StateName(desired))
	}

	s.mu.Lock()
	s.isOn = desired
	s.mu.Unlock()

	if err := s.host.Publish(desired); err != nil {
		entry.WithError(err).Warn("Failed to publish switch state to host")
	}
}

// Refresh is the scheduled update: it logs the state around UpdateState.
func (s *Switch) Refresh(ctx context.Context) error {
	entry := s.logger.WithField("switch", s.name)
	entry.Infof("Emporia Vue virtual switch processing BEGIN - state BEFORE processing ==> %s", monitor.StateName(s.On()))

	s.UpdateState(ctx, false)

	entry.Infof("Emporia Vue virtual switch processing END - state AFTER processing ==> %s", monitor.StateName(s.On()))
	return ctx.Err()
}
