// Package mint implements the mint flow: collection details and
// eligibility fetched up front, then a build-and-submit of the mint
// calls through the shared pipeline.
package mint

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"walletkit/pkg/capabilities"
	"walletkit/pkg/client"
	"walletkit/pkg/lifecycle"
	"walletkit/pkg/submit"
	"walletkit/pkg/swap"
	"walletkit/pkg/telemetry"
	"walletkit/pkg/wallet"
)

// Error codes surfaced through the lifecycle store.
const (
	// CodeError marks detail, build and submission failures.
	CodeError = "MINT_ERROR"
	// CodeUncaught marks failures outside the normal path.
	CodeUncaught = "UNCAUGHT_MINT_ERROR"
)

// DetailsService fetches collection and eligibility data.
type DetailsService interface {
	GetMintDetails(ctx context.Context, params client.MintDetailsParams) (*client.MintDetails, error)
}

// Builder turns a mint request into on-chain calls.
type Builder interface {
	BuildMintTransaction(ctx context.Context, params client.MintTransactionParams) ([]wallet.Call, error)
}

// Deps are the provider's collaborators.
type Deps struct {
	Details DetailsService
	Builder Builder
	Wallet  wallet.Client
	Caps    capabilities.Detector
	Metrics *telemetry.Metrics
}

// Config identifies the mintable token.
type Config struct {
	ContractAddress string
	TokenID         string
}

// Provider owns one mint flow.
type Provider struct {
	mu   sync.Mutex
	cfg  Config
	deps Deps

	details  *client.MintDetails
	quantity int

	store      *lifecycle.Store
	submitting atomic.Bool
	log        *logrus.Entry
}

// New builds a mint provider with quantity 1.
func New(deps Deps, cfg Config, hooks lifecycle.Hooks) *Provider {
	log := logrus.WithField("component", "mint")
	opts := []lifecycle.Option{lifecycle.WithLogger(log)}
	if deps.Metrics != nil {
		opts = append(opts, lifecycle.WithObserver(deps.Metrics.Observer("mint")))
	}

	p := &Provider{
		cfg:      cfg,
		deps:     deps,
		quantity: 1,
		log:      log,
	}
	p.store = lifecycle.NewStore(hooks, opts...)
	p.store.SetReset(p.resetInputs)
	return p
}

// Details returns the fetched mint details, nil before LoadDetails.
func (p *Provider) Details() *client.MintDetails {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.details
}

// Quantity returns the selected mint quantity.
func (p *Provider) Quantity() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.quantity
}

// SetQuantity clamps the quantity to [1, MaxMintsPerTx] when a limit is
// known and emits an amountChange.
func (p *Provider) SetQuantity(n int) {
	p.mu.Lock()
	if n < 1 {
		n = 1
	}
	if p.details != nil && p.details.MaxMintsPerTx > 0 && n > p.details.MaxMintsPerTx {
		n = p.details.MaxMintsPerTx
	}
	p.quantity = n
	eligible := p.details != nil && p.details.IsEligible
	p.mu.Unlock()

	p.store.Update(&lifecycle.AmountChange{
		Shared: lifecycle.Shared{IsMissingRequiredField: lifecycle.Bool(!eligible)},
	})
}

// Lifecycle returns the current status.
func (p *Provider) Lifecycle() lifecycle.Status {
	return p.store.Status()
}

// UpdateLifecycleStatus lets the host push a status directly.
func (p *Provider) UpdateLifecycleStatus(next lifecycle.StatusData) {
	p.store.Update(next)
}

// LoadDetails fetches collection and eligibility data for the configured
// token. Error-shaped API payloads keep their own code and message.
func (p *Provider) LoadDetails(ctx context.Context) {
	p.mu.Lock()
	params := client.MintDetailsParams{
		ContractAddress: p.cfg.ContractAddress,
		TokenID:         p.cfg.TokenID,
	}
	p.mu.Unlock()
	if p.deps.Wallet != nil {
		params.TakerAddress = p.deps.Wallet.Address().Hex()
	}

	details, err := p.deps.Details.GetMintDetails(ctx, params)
	if p.deps.Metrics != nil {
		p.deps.Metrics.QuoteRequest("mint", err)
	}
	if err != nil {
		p.log.WithError(err).Error("mint details fetch failed")
		p.store.Update(newMintError(err))
		return
	}

	p.mu.Lock()
	p.details = details
	eligible := details.IsEligible
	p.mu.Unlock()

	p.store.Update(&lifecycle.AmountChange{
		Shared: lifecycle.Shared{IsMissingRequiredField: lifecycle.Bool(!eligible)},
	})
}

// HandleSubmit builds and submits the mint. Missing details, an
// ineligible taker, and concurrent submissions are silent no-ops.
func (p *Provider) HandleSubmit(ctx context.Context) {
	if !p.submitting.CompareAndSwap(false, true) {
		return
	}
	defer p.submitting.Store(false)

	p.mu.Lock()
	details := p.details
	quantity := p.quantity
	contract := p.cfg.ContractAddress
	tokenID := p.cfg.TokenID
	p.mu.Unlock()

	if details == nil || !details.IsEligible {
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

	calls, err := p.deps.Builder.BuildMintTransaction(ctx, client.MintTransactionParams{
		ContractAddress: contract,
		TakerAddress:    p.deps.Wallet.Address().Hex(),
		TokenID:         tokenID,
		Quantity:        quantity,
	})
	if err != nil {
		p.failSubmit(err)
		return
	}

	pipeline := &submit.Pipeline{
		Wallet:    p.deps.Wallet,
		Caps:      p.deps.Caps,
		Store:     p.store,
		Log:       p.log,
		FinalType: lifecycle.TransactionTypeCalls,
	}
	err = pipeline.Submit(ctx, calls)
	if p.deps.Metrics != nil {
		p.deps.Metrics.Submission("mint", err)
	}
	if err != nil {
		p.failSubmit(err)
	}
}

func (p *Provider) failSubmit(err error) {
	p.log.WithError(err).Error("mint submission failed")
	p.store.Update(newMintError(err))
}

// newMintError detects error-shaped API payloads by shape; everything
// else gets the mint code space and the usual messages.
func newMintError(err error) *lifecycle.Error {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" {
			message = swap.MessageGeneric
		}
		return &lifecycle.Error{Code: apiErr.Code, Err: apiErr.Err, Message: message}
	}
	if swap.IsUserRejection(err) {
		return &lifecycle.Error{Code: CodeError, Err: err.Error(), Message: swap.MessageRequestDenied}
	}
	return &lifecycle.Error{Code: CodeError, Err: err.Error(), Message: swap.MessageGeneric}
}

// resetInputs runs after a successful mint: quantity returns to 1, the
// fetched details stay.
func (p *Provider) resetInputs() {
	p.mu.Lock()
	p.quantity = 1
	p.mu.Unlock()
	p.store.Update(&lifecycle.Init{})
}
