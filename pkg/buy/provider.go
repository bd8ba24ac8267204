// Package buy implements the buy flow: a destination token fixed at
// construction, funded from one of several payment options quoted for an
// exact output amount.
package buy

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"walletkit/pkg/client"
	"walletkit/pkg/debounce"
	"walletkit/pkg/lifecycle"
	"walletkit/pkg/submit"
	"walletkit/pkg/swap"
	"walletkit/pkg/token"
)

// PaymentMethod names a funding option.
type PaymentMethod string

const (
	// PayWithToken is the caller-selected funding token, when configured.
	PayWithToken PaymentMethod = "from"
	PayWithETH   PaymentMethod = "fromETH"
	PayWithUSDC  PaymentMethod = "fromUSDC"
)

// Provider owns one buy flow. Entering an amount quotes every payment
// option for that exact output; submitting runs a swap from the chosen
// option into the destination token.
type Provider struct {
	mu   sync.Mutex
	cfg  swap.Config
	deps swap.Deps

	to      swap.SwapUnit
	options map[PaymentMethod]*swap.SwapUnit
	methods []PaymentMethod

	store      *lifecycle.Store
	debouncer  *debounce.Debouncer
	submitting atomic.Bool
	log        *logrus.Entry
}

// New builds a provider for the given destination token. payWith is the
// optional caller-selected funding token; ETH and USDC options are always
// present.
func New(target token.Token, payWith *token.Token, deps swap.Deps, cfg swap.Config, hooks lifecycle.Hooks) *Provider {
	log := logrus.WithField("component", "buy")
	cfg.MaxSlippage = swap.LoadMaxSlippage(deps.Prefs, cfg.MaxSlippage)

	opts := []lifecycle.Option{
		lifecycle.WithMaxSlippage(cfg.MaxSlippage),
		lifecycle.WithLogger(log),
	}
	if deps.Metrics != nil {
		opts = append(opts, lifecycle.WithObserver(deps.Metrics.Observer("buy")))
	}

	eth, usdc := token.Eth, token.USDC
	p := &Provider{
		cfg:  cfg,
		deps: deps,
		to:   swap.SwapUnit{Token: &target},
		options: map[PaymentMethod]*swap.SwapUnit{
			PayWithETH:  {Token: &eth},
			PayWithUSDC: {Token: &usdc},
		},
		methods:   []PaymentMethod{PayWithETH, PayWithUSDC},
		debouncer: debounce.New(cfg.QuoteDelay),
		log:       log,
	}
	if payWith != nil && !payWith.Equal(eth) && !payWith.Equal(usdc) {
		from := *payWith
		p.options[PayWithToken] = &swap.SwapUnit{Token: &from}
		p.methods = append([]PaymentMethod{PayWithToken}, p.methods...)
	}
	p.store = lifecycle.NewStore(hooks, opts...)
	p.store.SetReset(p.resetInputs)
	return p
}

// To returns a snapshot of the destination unit.
func (p *Provider) To() swap.SwapUnit {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.to
}

// Option returns a snapshot of one payment option. The second result is
// false when the method is not configured.
func (p *Provider) Option(method PaymentMethod) (swap.SwapUnit, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	unit, ok := p.options[method]
	if !ok {
		return swap.SwapUnit{}, false
	}
	return *unit, true
}

// Lifecycle returns the current status.
func (p *Provider) Lifecycle() lifecycle.Status {
	return p.store.Status()
}

// UpdateLifecycleStatus lets the host push a status directly; sticky
// fields merge forward as in the swap flow.
func (p *Provider) UpdateLifecycleStatus(next lifecycle.StatusData) {
	p.store.Update(next)
}

// HandleAmountChange records the desired output amount and quotes every
// payment option for it. Invalid input is ignored; empty or zero amounts
// clear the options without fetching.
func (p *Provider) HandleAmountChange(ctx context.Context, amount string) {
	if !swap.IsValidAmount(amount) {
		return
	}

	p.mu.Lock()
	p.to.Amount = amount
	maxSlippage := p.cfg.MaxSlippage
	target := p.to.Token

	if swap.IsZeroAmount(amount) {
		for _, unit := range p.options {
			unit.Amount, unit.AmountUSD = "", ""
			unit.Loading, unit.Err = false, nil
		}
		p.mu.Unlock()
		p.debouncer.Bump()
		p.store.Update(&lifecycle.AmountChange{
			Shared: lifecycle.Shared{
				MaxSlippage:            lifecycle.Float64(maxSlippage),
				IsMissingRequiredField: lifecycle.Bool(true),
			},
			TokenTo: target,
		})
		return
	}

	for _, unit := range p.options {
		unit.Loading = true
		unit.Err = nil
	}
	p.mu.Unlock()

	p.debouncer.Do(func(gen uint64) {
		p.fetchQuotes(ctx, gen)
	})
}

// fetchQuotes quotes each payment option for the current output amount.
// A superseded generation is discarded wholesale.
func (p *Provider) fetchQuotes(ctx context.Context, gen uint64) {
	p.mu.Lock()
	amount := p.to.Amount
	target := p.to.Token
	maxSlippage := p.cfg.MaxSlippage
	useAggregator := p.cfg.UseAggregator
	methods := make([]PaymentMethod, len(p.methods))
	copy(methods, p.methods)
	p.mu.Unlock()

	for _, method := range methods {
		p.mu.Lock()
		source := p.options[method].Token
		p.mu.Unlock()

		quote, err := p.deps.Quotes.GetSwapQuote(ctx, client.QuoteParams{
			From:            source,
			To:              target,
			Amount:          amount,
			AmountReference: string(swap.SideTo),
			MaxSlippage:     maxSlippage,
			UseAggregator:   useAggregator,
		})
		if p.deps.Metrics != nil {
			p.deps.Metrics.QuoteRequest("buy", err)
		}

		p.mu.Lock()
		if !p.debouncer.Latest(gen) {
			p.mu.Unlock()
			return
		}
		unit := p.options[method]
		unit.Loading = false
		if err != nil {
			unit.Err = fmt.Errorf("%s: %w", swap.CodeQuoteError, err)
			p.mu.Unlock()
			p.log.WithError(err).WithField("method", method).Debug("buy quote failed")
			continue
		}
		unit.Err = nil
		unit.Amount = quote.FormattedAmount
		unit.AmountUSD = quote.AmountUSD
		p.mu.Unlock()
	}

	p.store.Update(&lifecycle.AmountChange{
		Shared: lifecycle.Shared{
			MaxSlippage:            lifecycle.Float64(maxSlippage),
			IsMissingRequiredField: lifecycle.Bool(false),
		},
		AmountTo: amount,
		TokenTo:  target,
	})
}

// HandleSubmit funds the buy from the chosen payment option. Unknown
// methods, missing amounts and concurrent submissions are silent no-ops.
func (p *Provider) HandleSubmit(ctx context.Context, method PaymentMethod) {
	if !p.submitting.CompareAndSwap(false, true) {
		return
	}
	defer p.submitting.Store(false)

	p.mu.Lock()
	unit, ok := p.options[method]
	var source swap.SwapUnit
	if ok {
		source = *unit
	}
	to := p.to
	maxSlippage := p.cfg.MaxSlippage
	useAggregator := p.cfg.UseAggregator
	p.mu.Unlock()

	if !ok || source.Token == nil || swap.IsZeroAmount(to.Amount) {
		return
	}

	built, err := p.deps.Builder.BuildSwapTransaction(ctx, client.BuildParams{
		QuoteParams: client.QuoteParams{
			From:            source.Token,
			To:              to.Token,
			Amount:          to.Amount,
			AmountReference: string(swap.SideTo),
			MaxSlippage:     maxSlippage,
			UseAggregator:   useAggregator,
		},
		Address: p.deps.Wallet.Address(),
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
		FinalType: lifecycle.TransactionTypeSwap,
	}
	err = pipeline.Submit(ctx, built.Calls)
	if p.deps.Metrics != nil {
		p.deps.Metrics.Submission("buy", err)
	}
	if err != nil {
		p.failSubmit(err)
	}
}

func (p *Provider) failSubmit(err error) {
	p.log.WithError(err).Error("buy submission failed")
	p.store.Update(swap.NewSubmitError(err))
}

func (p *Provider) resetInputs() {
	p.mu.Lock()
	p.to.Amount, p.to.AmountUSD = "", ""
	for _, unit := range p.options {
		unit.Amount, unit.AmountUSD = "", ""
		unit.Loading, unit.Err = false, nil
	}
	p.mu.Unlock()
	p.debouncer.Bump()
	p.store.Update(&lifecycle.Init{})
}
