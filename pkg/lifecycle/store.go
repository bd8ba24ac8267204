package lifecycle

import (
	"sync"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
)

// Hooks are the host application's callbacks. They are invoked
// synchronously, in the same call that triggered the transition, and are
// never batched or debounced.
type Hooks struct {
	// OnStatus fires on every Update call, including same-phase data merges.
	OnStatus func(Status)
	// OnError fires in addition to OnStatus when the new phase is "error".
	OnError func(Error)
	// OnSuccess fires in addition to OnStatus when the new phase is
	// "success", exactly once per successful submission.
	OnSuccess func(*types.Receipt)
}

// Store holds the lifecycle status of one mounted feature provider. Updates
// merge sticky fields forward and dispatch host callbacks; the store itself
// never fails. One store per provider instance, never shared.
type Store struct {
	mu      sync.Mutex
	data    StatusData
	hooks   Hooks
	reset   func()
	observe func(Status)
	log     *logrus.Entry
}

// Option configures a Store.
type Option func(*Store)

// WithReset installs the side effect that runs after a success transition.
// Providers use it to clear user-entered amounts and return to init.
func WithReset(fn func()) Option {
	return func(s *Store) { s.reset = fn }
}

// WithMaxSlippage seeds the sticky slippage setting of the initial status.
func WithMaxSlippage(v float64) Option {
	return func(s *Store) { s.data.shared().MaxSlippage = Float64(v) }
}

// WithObserver registers an internal observer invoked before host hooks,
// used for telemetry.
func WithObserver(fn func(Status)) Option {
	return func(s *Store) { s.observe = fn }
}

// WithLogger sets the logger used for transition debug output.
func WithLogger(log *logrus.Entry) Option {
	return func(s *Store) { s.log = log }
}

// NewStore creates a store in the init phase.
func NewStore(hooks Hooks, opts ...Option) *Store {
	s := &Store{
		data:  &Init{Shared: Shared{IsMissingRequiredField: Bool(true)}},
		hooks: hooks,
		log:   logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetReset installs the reset side effect after construction, for providers
// whose reset closure needs the provider itself.
func (s *Store) SetReset(fn func()) {
	s.mu.Lock()
	s.reset = fn
	s.mu.Unlock()
}

// Status returns the current status.
func (s *Store) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{StatusName: s.data.StatusName(), StatusData: s.data}
}

// StatusName returns the current phase name.
func (s *Store) StatusName() StatusName {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.StatusName()
}

// Update replaces the current status with next, carrying sticky fields
// forward wherever next leaves them unset, then dispatches callbacks.
// Error-only fields never carry forward: they exist only on the Error
// variant. Update never fails.
func (s *Store) Update(next StatusData) {
	s.mu.Lock()
	prev := s.data.shared()
	sh := next.shared()
	if sh.MaxSlippage == nil {
		sh.MaxSlippage = prev.MaxSlippage
	}
	if sh.IsMissingRequiredField == nil {
		sh.IsMissingRequiredField = prev.IsMissingRequiredField
	}
	s.data = next
	reset := s.reset
	s.mu.Unlock()

	status := Status{StatusName: next.StatusName(), StatusData: next}
	s.log.WithField("status", status.StatusName).Debug("lifecycle transition")

	if s.observe != nil {
		s.observe(status)
	}
	if s.hooks.OnStatus != nil {
		s.hooks.OnStatus(status)
	}
	switch data := next.(type) {
	case *Error:
		if s.hooks.OnError != nil {
			s.hooks.OnError(*data)
		}
	case *Success:
		if s.hooks.OnSuccess != nil {
			s.hooks.OnSuccess(data.TransactionReceipt)
		}
		if reset != nil {
			reset()
		}
	}
}
