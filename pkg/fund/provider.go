// Package fund implements the onramp flow: a fiat and a crypto amount
// kept in sync through debounced exchange-rate lookups, and a submission
// that sends the funding deposit to the onramp deposit address.
package fund

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"walletkit/pkg/capabilities"
	"walletkit/pkg/client"
	"walletkit/pkg/debounce"
	"walletkit/pkg/lifecycle"
	"walletkit/pkg/submit"
	"walletkit/pkg/swap"
	"walletkit/pkg/telemetry"
	"walletkit/pkg/token"
	"walletkit/pkg/wallet"
)

// Error codes surfaced through the lifecycle store.
const (
	// CodeError marks rate and deposit failures in the normal path.
	CodeError = "FUND_ERROR"
	// CodeUncaught marks failures outside it, such as a provider with
	// no deposit route configured.
	CodeUncaught = "UNCAUGHT_FUND_ERROR"
)

// RateService fetches the fiat/asset exchange rate. The rate is the
// amount of the asset one unit of fiat buys.
type RateService interface {
	GetExchangeRate(ctx context.Context, fiatCurrency, asset string) (*client.ExchangeRate, error)
}

// DepositSender sends a deposit on a non-EVM chain and returns the
// transaction signature.
type DepositSender interface {
	Send(ctx context.Context, recipient, amount string) (string, error)
}

// Deps are the provider's collaborators. Either Wallet (EVM route) or
// Sender (Solana route) must be wired for submission to work.
type Deps struct {
	Rates   RateService
	Wallet  wallet.Client
	Caps    capabilities.Detector
	Sender  DepositSender
	Metrics *telemetry.Metrics
}

// Config fixes the funded asset and the onramp deposit address.
type Config struct {
	FiatCurrency   string
	Asset          token.Token
	DepositAddress string
	QuoteDelay     time.Duration
}

// Side identifies which amount the user edited.
type Side string

const (
	SideFiat   Side = "fiat"
	SideCrypto Side = "crypto"
)

// Provider owns one fund flow.
type Provider struct {
	mu   sync.Mutex
	cfg  Config
	deps Deps

	fiatAmount   string
	cryptoAmount string
	rate         float64
	rateLoading  bool
	rateErr      error

	store      *lifecycle.Store
	debouncer  *debounce.Debouncer
	submitting atomic.Bool
	log        *logrus.Entry
}

// New builds a fund provider. FiatCurrency defaults to USD.
func New(deps Deps, cfg Config, hooks lifecycle.Hooks) *Provider {
	log := logrus.WithField("component", "fund")
	if cfg.FiatCurrency == "" {
		cfg.FiatCurrency = "USD"
	}

	opts := []lifecycle.Option{lifecycle.WithLogger(log)}
	if deps.Metrics != nil {
		opts = append(opts, lifecycle.WithObserver(deps.Metrics.Observer("fund")))
	}

	p := &Provider{
		cfg:       cfg,
		deps:      deps,
		debouncer: debounce.New(cfg.QuoteDelay),
		log:       log,
	}
	p.store = lifecycle.NewStore(hooks, opts...)
	p.store.SetReset(p.resetInputs)
	return p
}

// FiatAmount returns the current fiat-side amount.
func (p *Provider) FiatAmount() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fiatAmount
}

// CryptoAmount returns the current crypto-side amount.
func (p *Provider) CryptoAmount() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cryptoAmount
}

// ExchangeRate returns the last fetched rate and whether a fetch is in
// flight.
func (p *Provider) ExchangeRate() (rate float64, loading bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rate, p.rateLoading
}

// Lifecycle returns the current status.
func (p *Provider) Lifecycle() lifecycle.Status {
	return p.store.Status()
}

// UpdateLifecycleStatus lets the host push a status directly.
func (p *Provider) UpdateLifecycleStatus(next lifecycle.StatusData) {
	p.store.Update(next)
}

// HandleAmountChange records an edit on one side and schedules a rate
// lookup to fill in the other. Invalid input is ignored; empty or zero
// amounts clear both sides without fetching.
func (p *Provider) HandleAmountChange(ctx context.Context, side Side, amount string) {
	if !swap.IsValidAmount(amount) {
		return
	}

	p.mu.Lock()
	if side == SideFiat {
		p.fiatAmount = amount
	} else {
		p.cryptoAmount = amount
	}

	if swap.IsZeroAmount(amount) {
		p.fiatAmount, p.cryptoAmount = "", ""
		p.rateLoading = false
		p.mu.Unlock()
		p.debouncer.Bump()
		p.store.Update(&lifecycle.AmountChange{
			Shared: lifecycle.Shared{IsMissingRequiredField: lifecycle.Bool(true)},
		})
		return
	}

	p.rateLoading = true
	p.rateErr = nil
	p.mu.Unlock()

	p.debouncer.Do(func(gen uint64) {
		p.fetchRate(ctx, side, gen)
	})
}

// fetchRate runs on the debouncer goroutine; superseded generations are
// discarded. Rate failures stay local, like swap quote failures.
func (p *Provider) fetchRate(ctx context.Context, side Side, gen uint64) {
	p.mu.Lock()
	fiatCurrency := p.cfg.FiatCurrency
	asset := p.cfg.Asset.Symbol
	p.mu.Unlock()

	rate, err := p.deps.Rates.GetExchangeRate(ctx, fiatCurrency, asset)
	if p.deps.Metrics != nil {
		p.deps.Metrics.QuoteRequest("fund", err)
	}

	p.mu.Lock()
	if !p.debouncer.Latest(gen) {
		p.mu.Unlock()
		return
	}
	p.rateLoading = false
	if err != nil {
		p.rateErr = fmt.Errorf("%s: %w", CodeError, err)
		p.mu.Unlock()
		p.log.WithError(err).Debug("exchange rate fetch failed")
		return
	}
	p.rateErr = nil
	p.rate = rate.Rate

	// The rate is asset units per fiat unit.
	if side == SideFiat {
		if fiat, perr := strconv.ParseFloat(p.fiatAmount, 64); perr == nil {
			p.cryptoAmount = formatCrypto(fiat * rate.Rate)
		}
	} else {
		if crypto, perr := strconv.ParseFloat(p.cryptoAmount, 64); perr == nil && rate.Rate > 0 {
			p.fiatAmount = formatFiat(crypto / rate.Rate)
		}
	}
	fiatAmount, cryptoAmount := p.fiatAmount, p.cryptoAmount
	p.mu.Unlock()

	p.store.Update(&lifecycle.AmountChange{
		Shared:     lifecycle.Shared{IsMissingRequiredField: lifecycle.Bool(false)},
		AmountFrom: fiatAmount,
		AmountTo:   cryptoAmount,
	})
}

// HandleSubmit sends the crypto amount to the deposit address: through
// the configured sender when present, through the EVM wallet otherwise.
// Missing amounts and concurrent submissions are silent no-ops.
func (p *Provider) HandleSubmit(ctx context.Context) {
	if !p.submitting.CompareAndSwap(false, true) {
		return
	}
	defer p.submitting.Store(false)

	p.mu.Lock()
	amount := p.cryptoAmount
	address := p.cfg.DepositAddress
	decimals := p.cfg.Asset.Decimals
	p.mu.Unlock()

	if swap.IsZeroAmount(amount) || address == "" {
		return
	}

	var err error
	switch {
	case p.deps.Sender != nil:
		err = p.submitViaSender(ctx, address, amount)
	case p.deps.Wallet != nil:
		err = p.submitViaWallet(ctx, address, amount, decimals)
	default:
		p.store.Update(&lifecycle.Error{
			Code:    CodeUncaught,
			Err:     "no deposit route configured",
			Message: swap.MessageGeneric,
		})
		return
	}

	if p.deps.Metrics != nil {
		p.deps.Metrics.Submission("fund", err)
	}
	if err != nil {
		p.failSubmit(err)
	}
}

func (p *Provider) submitViaSender(ctx context.Context, address, amount string) error {
	p.store.Update(&lifecycle.TransactionPending{})
	signature, err := p.deps.Sender.Send(ctx, address, amount)
	if err != nil {
		return fmt.Errorf("sending deposit: %w", err)
	}
	p.store.Update(&lifecycle.TransactionApproved{
		TransactionHash: signature,
		TransactionType: lifecycle.TransactionTypeCalls,
	})
	p.store.Update(&lifecycle.Success{})
	return nil
}

func (p *Provider) submitViaWallet(ctx context.Context, address, amount string, decimals int) error {
	if !common.IsHexAddress(address) {
		return fmt.Errorf("invalid deposit address: %s", address)
	}
	value, err := baseUnits(amount, decimals)
	if err != nil {
		return fmt.Errorf("parsing deposit amount: %w", err)
	}

	pipeline := &submit.Pipeline{
		Wallet:    p.deps.Wallet,
		Caps:      p.deps.Caps,
		Store:     p.store,
		Log:       p.log,
		FinalType: lifecycle.TransactionTypeCalls,
	}
	return pipeline.Submit(ctx, []wallet.Call{{
		To:    common.HexToAddress(address),
		Value: value,
	}})
}

func (p *Provider) failSubmit(err error) {
	p.log.WithError(err).Error("fund submission failed")
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

func (p *Provider) resetInputs() {
	p.mu.Lock()
	p.fiatAmount, p.cryptoAmount = "", ""
	p.rateLoading = false
	p.rateErr = nil
	p.mu.Unlock()
	p.debouncer.Bump()
	p.store.Update(&lifecycle.Init{})
}

func formatCrypto(v float64) string {
	return strconv.FormatFloat(v, 'f', 8, 64)
}

func formatFiat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// baseUnits converts a decimal amount string into the asset's smallest
// unit.
func baseUnits(amount string, decimals int) (*big.Int, error) {
	parsed, ok := new(big.Float).SetString(amount)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %s", amount)
	}
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	parsed.Mul(parsed, scale)
	value, _ := parsed.Int(nil)
	if value.Sign() < 0 {
		return nil, fmt.Errorf("negative amount: %s", amount)
	}
	return value, nil
}
