package swap

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"walletkit/pkg/client"
	"walletkit/pkg/debounce"
	"walletkit/pkg/lifecycle"
	"walletkit/pkg/storage"
	"walletkit/pkg/submit"
	"walletkit/pkg/token"
)

// Provider owns a swap pair and its lifecycle. Amount edits on either
// side trigger a debounced quote for the opposite side; submission
// builds the transaction and drives it through the wallet.
type Provider struct {
	mu   sync.Mutex
	cfg  Config
	deps Deps

	from SwapUnit
	to   SwapUnit

	store      *lifecycle.Store
	debouncers map[Side]*debounce.Debouncer
	submitting atomic.Bool
	log        *logrus.Entry
}

// New builds a provider. The effective slippage is resolved from the
// persisted preference, then cfg, then the default.
func New(deps Deps, cfg Config, hooks lifecycle.Hooks) *Provider {
	log := logrus.WithField("component", "swap")
	cfg.MaxSlippage = LoadMaxSlippage(deps.Prefs, cfg.MaxSlippage)

	opts := []lifecycle.Option{
		lifecycle.WithMaxSlippage(cfg.MaxSlippage),
		lifecycle.WithLogger(log),
	}
	if deps.Metrics != nil {
		opts = append(opts, lifecycle.WithObserver(deps.Metrics.Observer("swap")))
	}

	p := &Provider{
		cfg:  cfg,
		deps: deps,
		debouncers: map[Side]*debounce.Debouncer{
			SideFrom: debounce.New(cfg.QuoteDelay),
			SideTo:   debounce.New(cfg.QuoteDelay),
		},
		log: log,
	}
	p.store = lifecycle.NewStore(hooks, opts...)
	p.store.SetReset(p.resetInputs)
	return p
}

// From returns a snapshot of the sell side.
func (p *Provider) From() SwapUnit {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.from
}

// To returns a snapshot of the buy side.
func (p *Provider) To() SwapUnit {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.to
}

// Lifecycle returns the current status.
func (p *Provider) Lifecycle() lifecycle.Status {
	return p.store.Status()
}

// UpdateLifecycleStatus lets the host push a status directly. Sticky
// fields the update leaves unset are inherited from the previous status.
func (p *Provider) UpdateLifecycleStatus(next lifecycle.StatusData) {
	p.store.Update(next)
}

// SetFromToken selects the sell token.
func (p *Provider) SetFromToken(t token.Token) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.from.Token = &t
}

// SetToToken selects the buy token.
func (p *Provider) SetToToken(t token.Token) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.to.Token = &t
}

// MaxSlippage returns the effective slippage percentage.
func (p *Provider) MaxSlippage() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.MaxSlippage
}

// SetMaxSlippage updates and persists the slippage preference. It takes
// effect on the next quote, build and status update.
func (p *Provider) SetMaxSlippage(v float64) {
	p.mu.Lock()
	p.cfg.MaxSlippage = v
	prefs := p.deps.Prefs
	p.mu.Unlock()
	if prefs != nil {
		prefs.Set(storage.KeyMaxSlippage, strconv.FormatFloat(v, 'f', -1, 64))
	}
}

// HandleAmountChange records an edit on one side and schedules a quote
// for the other. Inputs failing validation are ignored; empty or zero
// amounts clear the pair without fetching.
func (p *Provider) HandleAmountChange(ctx context.Context, side Side, amount string, tokenOverride *token.Token) {
	if !IsValidAmount(amount) {
		return
	}

	p.mu.Lock()
	source, dest := p.unitsFor(side)
	if tokenOverride != nil {
		source.Token = tokenOverride
	}
	source.Amount = amount
	maxSlippage := p.cfg.MaxSlippage
	fromToken, toToken := p.from.Token, p.to.Token

	if IsZeroAmount(amount) {
		dest.Amount = ""
		dest.AmountUSD = ""
		dest.Loading = false
		source.AmountUSD = ""
		p.mu.Unlock()
		// A zero edit clears the pair, so it supersedes pending quotes on
		// both sides, not just the edited one.
		for _, d := range p.debouncers {
			d.Bump()
		}
		p.store.Update(&lifecycle.AmountChange{
			Shared: lifecycle.Shared{
				MaxSlippage:            lifecycle.Float64(maxSlippage),
				IsMissingRequiredField: lifecycle.Bool(true),
			},
			TokenFrom: fromToken,
			TokenTo:   toToken,
		})
		return
	}

	if fromToken == nil || toToken == nil {
		amountFrom, amountTo := p.from.Amount, p.to.Amount
		p.mu.Unlock()
		p.store.Update(&lifecycle.AmountChange{
			Shared: lifecycle.Shared{
				MaxSlippage:            lifecycle.Float64(maxSlippage),
				IsMissingRequiredField: lifecycle.Bool(true),
			},
			AmountFrom: amountFrom,
			AmountTo:   amountTo,
			TokenFrom:  fromToken,
			TokenTo:    toToken,
		})
		return
	}

	dest.Loading = true
	dest.Err = nil
	p.mu.Unlock()

	p.debouncers[side].Do(func(gen uint64) {
		p.fetchQuote(ctx, side, gen)
	})
}

// fetchQuote runs on the debouncer goroutine. A response whose generation
// has been superseded is discarded without touching units or status.
func (p *Provider) fetchQuote(ctx context.Context, side Side, gen uint64) {
	p.mu.Lock()
	source, _ := p.unitsFor(side)
	params := client.QuoteParams{
		From:            p.from.Token,
		To:              p.to.Token,
		Amount:          source.Amount,
		AmountReference: string(side),
		MaxSlippage:     p.cfg.MaxSlippage,
		UseAggregator:   p.cfg.UseAggregator,
	}
	maxSlippage := p.cfg.MaxSlippage
	p.mu.Unlock()

	quote, err := p.deps.Quotes.GetSwapQuote(ctx, params)
	if p.deps.Metrics != nil {
		p.deps.Metrics.QuoteRequest("swap", err)
	}

	p.mu.Lock()
	if !p.debouncers[side].Latest(gen) {
		p.mu.Unlock()
		return
	}
	_, dest := p.unitsFor(side)
	dest.Loading = false
	if err != nil {
		// Quote failures stay on the unit; the lifecycle is untouched.
		dest.Err = fmt.Errorf("%s: %w", CodeQuoteError, err)
		p.mu.Unlock()
		p.log.WithError(err).Debug("quote request failed")
		return
	}
	dest.Err = nil
	dest.Amount = quote.FormattedAmount
	dest.AmountUSD = quote.AmountUSD
	amountFrom, amountTo := p.from.Amount, p.to.Amount
	fromToken, toToken := p.from.Token, p.to.Token
	p.mu.Unlock()

	p.store.Update(&lifecycle.AmountChange{
		Shared: lifecycle.Shared{
			MaxSlippage:            lifecycle.Float64(maxSlippage),
			IsMissingRequiredField: lifecycle.Bool(false),
		},
		AmountFrom: amountFrom,
		AmountTo:   amountTo,
		TokenFrom:  fromToken,
		TokenTo:    toToken,
	})
}

// HandleSubmit builds and submits the swap. A second call while one is
// in flight is a no-op, as is submission with required fields missing.
func (p *Provider) HandleSubmit(ctx context.Context) {
	if !p.submitting.CompareAndSwap(false, true) {
		return
	}
	defer p.submitting.Store(false)

	p.mu.Lock()
	from, to := p.from, p.to
	maxSlippage := p.cfg.MaxSlippage
	useAggregator := p.cfg.UseAggregator
	p.mu.Unlock()

	if from.Token == nil || to.Token == nil || IsZeroAmount(from.Amount) {
		return
	}

	built, err := p.deps.Builder.BuildSwapTransaction(ctx, client.BuildParams{
		QuoteParams: client.QuoteParams{
			From:            from.Token,
			To:              to.Token,
			Amount:          from.Amount,
			AmountReference: string(SideFrom),
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
		p.deps.Metrics.Submission("swap", err)
	}
	if err != nil {
		p.failSubmit(err)
	}
}

func (p *Provider) failSubmit(err error) {
	p.log.WithError(err).Error("swap submission failed")
	p.store.Update(NewSubmitError(err))
}

// resetInputs runs after a success status has been delivered. Amounts
// clear, token selections survive, in-flight quotes are invalidated.
func (p *Provider) resetInputs() {
	p.mu.Lock()
	p.from.Amount, p.from.AmountUSD = "", ""
	p.to.Amount, p.to.AmountUSD = "", ""
	p.from.Loading, p.to.Loading = false, false
	p.from.Err, p.to.Err = nil, nil
	p.mu.Unlock()
	for _, d := range p.debouncers {
		d.Bump()
	}
	p.store.Update(&lifecycle.Init{})
}

// unitsFor returns the edited unit and its opposite. Callers must hold
// p.mu.
func (p *Provider) unitsFor(side Side) (source, dest *SwapUnit) {
	if side == SideFrom {
		return &p.from, &p.to
	}
	return &p.to, &p.from
}
