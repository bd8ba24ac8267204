// Package transaction implements the generic transaction flow: the host
// supplies prepared calls, the provider drives them through the wallet
// with the usual lifecycle phases.
package transaction

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"walletkit/pkg/capabilities"
	"walletkit/pkg/lifecycle"
	"walletkit/pkg/submit"
	"walletkit/pkg/swap"
	"walletkit/pkg/telemetry"
	"walletkit/pkg/wallet"
)

// Error codes surfaced through the lifecycle store.
const (
	// CodeError marks submission failures raised by the wallet.
	CodeError = "WRITE_TRANSACTIONS_ERROR"
	// CodeUncaught marks failures outside the normal submission path,
	// such as a provider with no wallet wired.
	CodeUncaught = "UNCAUGHT_WRITE_TRANSACTIONS_ERROR"
)

// Deps are the provider's collaborators.
type Deps struct {
	Wallet  wallet.Client
	Caps    capabilities.Detector
	Metrics *telemetry.Metrics
}

// Provider owns one prepared-calls submission flow.
type Provider struct {
	mu    sync.Mutex
	deps  Deps
	calls []wallet.Call

	store      *lifecycle.Store
	submitting atomic.Bool
	log        *logrus.Entry
}

// New builds a provider around the given calls. Calls may be replaced
// later with SetCalls.
func New(calls []wallet.Call, deps Deps, hooks lifecycle.Hooks) *Provider {
	log := logrus.WithField("component", "transaction")
	opts := []lifecycle.Option{lifecycle.WithLogger(log)}
	if deps.Metrics != nil {
		opts = append(opts, lifecycle.WithObserver(deps.Metrics.Observer("transaction")))
	}

	p := &Provider{
		deps:  deps,
		calls: calls,
		log:   log,
	}
	p.store = lifecycle.NewStore(hooks, opts...)
	p.store.SetReset(p.reset)
	return p
}

// SetCalls replaces the prepared calls for the next submission.
func (p *Provider) SetCalls(calls []wallet.Call) {
	p.mu.Lock()
	p.calls = calls
	p.mu.Unlock()
}

// Lifecycle returns the current status.
func (p *Provider) Lifecycle() lifecycle.Status {
	return p.store.Status()
}

// UpdateLifecycleStatus lets the host push a status directly.
func (p *Provider) UpdateLifecycleStatus(next lifecycle.StatusData) {
	p.store.Update(next)
}

// HandleSubmit drives the prepared calls through the wallet. Submitting
// with no calls, or while a submission is in flight, is a silent no-op.
func (p *Provider) HandleSubmit(ctx context.Context) {
	if !p.submitting.CompareAndSwap(false, true) {
		return
	}
	defer p.submitting.Store(false)

	p.mu.Lock()
	calls := make([]wallet.Call, len(p.calls))
	copy(calls, p.calls)
	p.mu.Unlock()

	if len(calls) == 0 {
		return
	}
	if p.deps.Wallet == nil {
		p.store.Update(&lifecycle.Error{
			Code:    CodeUncaught,
			Err:     "no wallet configured",
			Message: swap.MessageGeneric,
		})
		return
	}

	pipeline := &submit.Pipeline{
		Wallet:    p.deps.Wallet,
		Caps:      p.deps.Caps,
		Store:     p.store,
		Log:       p.log,
		FinalType: lifecycle.TransactionTypeCalls,
	}
	err := pipeline.Submit(ctx, calls)
	if p.deps.Metrics != nil {
		p.deps.Metrics.Submission("transaction", err)
	}
	if err != nil {
		p.failSubmit(err)
	}
}

func (p *Provider) failSubmit(err error) {
	p.log.WithError(err).Error("transaction submission failed")
	message := swap.MessageGeneric
	if swap.IsUserRejection(err) {
		message = swap.MessageRequestDenied
	}
	p.store.Update(&lifecycle.Error{
		Code:    CodeError,
		Err:     err.Error(),
		Message: message,
	})
}

func (p *Provider) reset() {
	p.store.Update(&lifecycle.Init{})
}
