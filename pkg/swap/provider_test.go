package swap

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walletkit/pkg/capabilities"
	"walletkit/pkg/client"
	"walletkit/pkg/lifecycle"
	"walletkit/pkg/token"
	"walletkit/pkg/wallet"
)

type fakeQuoter struct {
	mu     sync.Mutex
	calls  []client.QuoteParams
	quote  *client.Quote
	err    error
	block  chan struct{}
	served int32
}

func (f *fakeQuoter) GetSwapQuote(_ context.Context, params client.QuoteParams) (*client.Quote, error) {
	f.mu.Lock()
	f.calls = append(f.calls, params)
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	atomic.AddInt32(&f.served, 1)
	if f.err != nil {
		return nil, f.err
	}
	return f.quote, nil
}

func (f *fakeQuoter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeBuilder struct {
	mu    sync.Mutex
	calls int
	tx    *client.SwapTransaction
	err   error
}

func (f *fakeBuilder) BuildSwapTransaction(_ context.Context, _ client.BuildParams) (*client.SwapTransaction, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.tx, nil
}

func (f *fakeBuilder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeWallet struct {
	mu          sync.Mutex
	batchCalls  [][]wallet.Call
	singleCalls []wallet.Call
	submitErr   error
	receipt     *types.Receipt
}

func (f *fakeWallet) Address() common.Address { return common.HexToAddress("0x1234") }
func (f *fakeWallet) ChainID() *big.Int       { return big.NewInt(8453) }

func (f *fakeWallet) SubmitCalls(_ context.Context, calls []wallet.Call) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.batchCalls = append(f.batchCalls, calls)
	return "calls-id-1", nil
}

func (f *fakeWallet) SubmitTransaction(_ context.Context, call wallet.Call) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return common.Hash{}, f.submitErr
	}
	f.singleCalls = append(f.singleCalls, call)
	return common.HexToHash("0xabcd"), nil
}

func (f *fakeWallet) AwaitReceipt(_ context.Context, _ string) (*types.Receipt, error) {
	if f.receipt != nil {
		return f.receipt, nil
	}
	return &types.Receipt{Status: types.ReceiptStatusSuccessful}, nil
}

func ethToken() token.Token  { return token.Eth }
func usdcToken() token.Token { return token.USDC }

func newTestProvider(deps Deps, hooks lifecycle.Hooks) *Provider {
	if deps.Caps == nil {
		deps.Caps = capabilities.Static{}
	}
	if deps.Wallet == nil {
		deps.Wallet = &fakeWallet{}
	}
	p := New(deps, Config{MaxSlippage: 5}, hooks)
	eth, usdc := ethToken(), usdcToken()
	p.SetFromToken(eth)
	p.SetToToken(usdc)
	return p
}

func TestHandleAmountChange(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects non numeric input", func(t *testing.T) {
		quoter := &fakeQuoter{quote: &client.Quote{FormattedAmount: "100"}}
		p := newTestProvider(Deps{Quotes: quoter, Builder: &fakeBuilder{}}, lifecycle.Hooks{})

		p.HandleAmountChange(ctx, SideFrom, "1.2.3", nil)
		p.HandleAmountChange(ctx, SideFrom, "abc", nil)

		assert.Empty(t, p.From().Amount)
		assert.Equal(t, lifecycle.StatusInit, p.Lifecycle().StatusName)
		time.Sleep(20 * time.Millisecond)
		assert.Zero(t, quoter.callCount())
	})

	t.Run("zero amount clears opposite side without quoting", func(t *testing.T) {
		quoter := &fakeQuoter{quote: &client.Quote{FormattedAmount: "100"}}
		p := newTestProvider(Deps{Quotes: quoter, Builder: &fakeBuilder{}}, lifecycle.Hooks{})

		p.HandleAmountChange(ctx, SideFrom, "1", nil)
		require.Eventually(t, func() bool { return p.To().Amount == "100" }, time.Second, 5*time.Millisecond)

		p.HandleAmountChange(ctx, SideFrom, "0", nil)

		assert.Empty(t, p.To().Amount)
		status := p.Lifecycle()
		assert.Equal(t, lifecycle.StatusAmountChange, status.StatusName)
		data := status.StatusData.(*lifecycle.AmountChange)
		assert.Empty(t, data.AmountFrom)
		assert.Empty(t, data.AmountTo)
		assert.Equal(t, 1, quoter.callCount())
	})

	t.Run("zero edit supersedes a pending quote", func(t *testing.T) {
		quoter := &fakeQuoter{quote: &client.Quote{FormattedAmount: "100"}}
		p := New(Deps{Quotes: quoter, Builder: &fakeBuilder{}, Wallet: &fakeWallet{}, Caps: capabilities.Static{}},
			Config{MaxSlippage: 5, QuoteDelay: 30 * time.Millisecond}, lifecycle.Hooks{})
		eth, usdc := ethToken(), usdcToken()
		p.SetFromToken(eth)
		p.SetToToken(usdc)

		p.HandleAmountChange(ctx, SideFrom, "1", nil)
		p.HandleAmountChange(ctx, SideFrom, "0", nil)

		time.Sleep(100 * time.Millisecond)
		assert.Zero(t, quoter.callCount())
		assert.Empty(t, p.To().Amount)
		assert.False(t, p.To().Loading)
		assert.Equal(t, lifecycle.StatusAmountChange, p.Lifecycle().StatusName)
	})

	t.Run("fetches quote for the opposite side", func(t *testing.T) {
		quoter := &fakeQuoter{quote: &client.Quote{FormattedAmount: "3100.50", AmountUSD: "3100.50"}}
		var statuses []lifecycle.StatusName
		var mu sync.Mutex
		p := newTestProvider(Deps{Quotes: quoter, Builder: &fakeBuilder{}}, lifecycle.Hooks{
			OnStatus: func(s lifecycle.Status) {
				mu.Lock()
				statuses = append(statuses, s.StatusName)
				mu.Unlock()
			},
		})

		p.HandleAmountChange(ctx, SideFrom, "1", nil)

		require.Eventually(t, func() bool { return p.To().Amount == "3100.50" }, time.Second, 5*time.Millisecond)
		assert.Equal(t, "3100.50", p.To().AmountUSD)
		assert.False(t, p.To().Loading)

		mu.Lock()
		defer mu.Unlock()
		require.NotEmpty(t, statuses)
		assert.Equal(t, lifecycle.StatusAmountChange, statuses[len(statuses)-1])

		data := p.Lifecycle().StatusData.(*lifecycle.AmountChange)
		assert.Equal(t, "1", data.AmountFrom)
		assert.Equal(t, "3100.50", data.AmountTo)
		assert.Equal(t, false, *data.Shared.IsMissingRequiredField)
		assert.Equal(t, 5.0, *data.Shared.MaxSlippage)
	})

	t.Run("quote params carry the edited side as reference", func(t *testing.T) {
		quoter := &fakeQuoter{quote: &client.Quote{FormattedAmount: "0.001"}}
		p := newTestProvider(Deps{Quotes: quoter, Builder: &fakeBuilder{}}, lifecycle.Hooks{})

		p.HandleAmountChange(ctx, SideTo, "10", nil)

		require.Eventually(t, func() bool { return quoter.callCount() == 1 }, time.Second, 5*time.Millisecond)
		quoter.mu.Lock()
		params := quoter.calls[0]
		quoter.mu.Unlock()
		assert.Equal(t, "to", params.AmountReference)
		assert.Equal(t, "10", params.Amount)
		assert.Equal(t, 5.0, params.MaxSlippage)
	})

	t.Run("missing token reports required field without quoting", func(t *testing.T) {
		quoter := &fakeQuoter{quote: &client.Quote{FormattedAmount: "1"}}
		p := New(Deps{Quotes: quoter, Builder: &fakeBuilder{}, Wallet: &fakeWallet{}, Caps: capabilities.Static{}}, Config{MaxSlippage: 5}, lifecycle.Hooks{})
		eth := ethToken()
		p.SetFromToken(eth)

		p.HandleAmountChange(ctx, SideFrom, "1", nil)

		status := p.Lifecycle()
		assert.Equal(t, lifecycle.StatusAmountChange, status.StatusName)
		assert.True(t, *status.StatusData.(*lifecycle.AmountChange).Shared.IsMissingRequiredField)
		time.Sleep(20 * time.Millisecond)
		assert.Zero(t, quoter.callCount())
	})

	t.Run("stale quote is discarded", func(t *testing.T) {
		block := make(chan struct{})
		quoter := &fakeQuoter{quote: &client.Quote{FormattedAmount: "100"}, block: block}
		p := newTestProvider(Deps{Quotes: quoter, Builder: &fakeBuilder{}}, lifecycle.Hooks{})

		p.HandleAmountChange(ctx, SideFrom, "1", nil)
		require.Eventually(t, func() bool { return quoter.callCount() == 1 }, time.Second, 5*time.Millisecond)

		// Supersede the in-flight fetch, then let both responses land.
		quoter.mu.Lock()
		quoter.block = nil
		quoter.quote = &client.Quote{FormattedAmount: "200"}
		quoter.mu.Unlock()
		p.HandleAmountChange(ctx, SideFrom, "2", nil)
		require.Eventually(t, func() bool { return atomic.LoadInt32(&quoter.served) >= 1 }, time.Second, 5*time.Millisecond)
		close(block)

		require.Eventually(t, func() bool { return p.To().Amount == "200" }, time.Second, 5*time.Millisecond)
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, "200", p.To().Amount)
		assert.Equal(t, "2", p.From().Amount)
	})

	t.Run("quote failure stays on the unit", func(t *testing.T) {
		quoter := &fakeQuoter{err: errors.New("no liquidity")}
		var errored bool
		p := newTestProvider(Deps{Quotes: quoter, Builder: &fakeBuilder{}}, lifecycle.Hooks{
			OnError: func(lifecycle.Error) { errored = true },
		})

		p.HandleAmountChange(ctx, SideFrom, "1", nil)

		require.Eventually(t, func() bool { return p.To().Err != nil }, time.Second, 5*time.Millisecond)
		assert.Contains(t, p.To().Err.Error(), CodeQuoteError)
		assert.False(t, p.To().Loading)
		assert.False(t, errored)
		assert.NotEqual(t, lifecycle.StatusError, p.Lifecycle().StatusName)
	})
}

func TestHandleSubmit(t *testing.T) {
	ctx := context.Background()
	swapCalls := []wallet.Call{
		{To: common.HexToAddress("0x01"), Value: big.NewInt(0), Data: []byte{0x01}},
		{To: common.HexToAddress("0x02"), Value: big.NewInt(0), Data: []byte{0x02}},
	}

	t.Run("missing fields make submit a silent no-op", func(t *testing.T) {
		builder := &fakeBuilder{tx: &client.SwapTransaction{Calls: swapCalls}}
		p := newTestProvider(Deps{Quotes: &fakeQuoter{}, Builder: builder}, lifecycle.Hooks{})

		p.HandleSubmit(ctx)

		assert.Zero(t, builder.callCount())
		assert.Equal(t, lifecycle.StatusInit, p.Lifecycle().StatusName)
	})

	t.Run("sequential path tags approval legs as ERC20", func(t *testing.T) {
		quoter := &fakeQuoter{quote: &client.Quote{FormattedAmount: "100"}}
		builder := &fakeBuilder{tx: &client.SwapTransaction{Calls: swapCalls}}
		w := &fakeWallet{}
		var mu sync.Mutex
		var approved []lifecycle.TransactionType
		var succeeded bool
		p := newTestProvider(Deps{Quotes: quoter, Builder: builder, Wallet: w}, lifecycle.Hooks{
			OnStatus: func(s lifecycle.Status) {
				if data, ok := s.StatusData.(*lifecycle.TransactionApproved); ok {
					mu.Lock()
					approved = append(approved, data.TransactionType)
					mu.Unlock()
				}
			},
			OnSuccess: func(*types.Receipt) { succeeded = true },
		})
		p.HandleAmountChange(ctx, SideFrom, "1", nil)
		require.Eventually(t, func() bool { return p.To().Amount == "100" }, time.Second, 5*time.Millisecond)

		p.HandleSubmit(ctx)

		assert.True(t, succeeded)
		assert.Len(t, w.singleCalls, 2)
		mu.Lock()
		require.Len(t, approved, 2)
		assert.Equal(t, lifecycle.TransactionTypeERC20, approved[0])
		assert.Equal(t, lifecycle.TransactionTypeSwap, approved[1])
		mu.Unlock()
	})

	t.Run("batching wallet gets a single sendCalls request", func(t *testing.T) {
		quoter := &fakeQuoter{quote: &client.Quote{FormattedAmount: "100"}}
		builder := &fakeBuilder{tx: &client.SwapTransaction{Calls: swapCalls}}
		w := &fakeWallet{}
		caps := capabilities.Static{8453: {AtomicBatch: true, AuxiliaryFunds: true, PaymasterService: true}}
		var approvedType lifecycle.TransactionType
		p := newTestProvider(Deps{Quotes: quoter, Builder: builder, Wallet: w, Caps: caps}, lifecycle.Hooks{
			OnStatus: func(s lifecycle.Status) {
				if data, ok := s.StatusData.(*lifecycle.TransactionApproved); ok {
					approvedType = data.TransactionType
				}
			},
		})
		p.HandleAmountChange(ctx, SideFrom, "1", nil)
		require.Eventually(t, func() bool { return p.To().Amount == "100" }, time.Second, 5*time.Millisecond)

		p.HandleSubmit(ctx)

		require.Len(t, w.batchCalls, 1)
		assert.Len(t, w.batchCalls[0], 2)
		assert.Empty(t, w.singleCalls)
		assert.Equal(t, lifecycle.TransactionTypeBatched, approvedType)
	})

	t.Run("build failure with api payload keeps normalized code", func(t *testing.T) {
		quoter := &fakeQuoter{quote: &client.Quote{FormattedAmount: "100"}}
		builder := &fakeBuilder{err: &client.APIError{Code: "SWAP_BUILD_ERROR", Err: "no route", Message: "No route found."}}
		var captured lifecycle.Error
		p := newTestProvider(Deps{Quotes: quoter, Builder: builder}, lifecycle.Hooks{
			OnError: func(e lifecycle.Error) { captured = e },
		})
		p.HandleAmountChange(ctx, SideFrom, "1", nil)
		require.Eventually(t, func() bool { return p.To().Amount == "100" }, time.Second, 5*time.Millisecond)

		p.HandleSubmit(ctx)

		assert.Equal(t, CodeSubmitError, captured.Code)
		assert.Equal(t, "No route found.", captured.Message)
		assert.Equal(t, lifecycle.StatusError, p.Lifecycle().StatusName)
	})

	t.Run("unknown payload code falls back to uncaught", func(t *testing.T) {
		quoter := &fakeQuoter{quote: &client.Quote{FormattedAmount: "100"}}
		builder := &fakeBuilder{err: &client.APIError{Code: "SOMETHING_NEW", Err: "???"}}
		var captured lifecycle.Error
		p := newTestProvider(Deps{Quotes: quoter, Builder: builder}, lifecycle.Hooks{
			OnError: func(e lifecycle.Error) { captured = e },
		})
		p.HandleAmountChange(ctx, SideFrom, "1", nil)
		require.Eventually(t, func() bool { return p.To().Amount == "100" }, time.Second, 5*time.Millisecond)

		p.HandleSubmit(ctx)

		assert.Equal(t, CodeUncaught, captured.Code)
		assert.Equal(t, MessageGeneric, captured.Message)
	})

	t.Run("user rejection maps to denial message", func(t *testing.T) {
		quoter := &fakeQuoter{quote: &client.Quote{FormattedAmount: "100"}}
		builder := &fakeBuilder{tx: &client.SwapTransaction{Calls: swapCalls}}
		w := &fakeWallet{submitErr: errors.New("User rejected the request.")}
		var captured lifecycle.Error
		p := newTestProvider(Deps{Quotes: quoter, Builder: builder, Wallet: w}, lifecycle.Hooks{
			OnError: func(e lifecycle.Error) { captured = e },
		})
		p.HandleAmountChange(ctx, SideFrom, "1", nil)
		require.Eventually(t, func() bool { return p.To().Amount == "100" }, time.Second, 5*time.Millisecond)

		p.HandleSubmit(ctx)

		assert.Equal(t, CodeSubmitError, captured.Code)
		assert.Equal(t, MessageRequestDenied, captured.Message)
	})

	t.Run("success resets amounts and returns to init", func(t *testing.T) {
		quoter := &fakeQuoter{quote: &client.Quote{FormattedAmount: "100"}}
		builder := &fakeBuilder{tx: &client.SwapTransaction{Calls: swapCalls}}
		var successCount int
		p := newTestProvider(Deps{Quotes: quoter, Builder: builder}, lifecycle.Hooks{
			OnSuccess: func(*types.Receipt) { successCount++ },
		})
		p.HandleAmountChange(ctx, SideFrom, "1", nil)
		require.Eventually(t, func() bool { return p.To().Amount == "100" }, time.Second, 5*time.Millisecond)

		p.HandleSubmit(ctx)

		assert.Equal(t, 1, successCount)
		assert.Equal(t, lifecycle.StatusInit, p.Lifecycle().StatusName)
		assert.Empty(t, p.From().Amount)
		assert.Empty(t, p.To().Amount)
		assert.NotNil(t, p.From().Token)
		assert.NotNil(t, p.To().Token)
		require.IsType(t, &lifecycle.Init{}, p.Lifecycle().StatusData)
		assert.Equal(t, 5.0, *p.Lifecycle().StatusData.(*lifecycle.Init).MaxSlippage)
	})
}

func TestNormalizeErrorCode(t *testing.T) {
	assert.Equal(t, CodeQuoteError, NormalizeErrorCode("SWAP_QUOTE_ERROR"))
	assert.Equal(t, CodeSubmitError, NormalizeErrorCode("SWAP_BUILD_ERROR"))
	assert.Equal(t, CodeQuoteError, NormalizeErrorCode(CodeQuoteError))
	assert.Equal(t, CodeUncaught, NormalizeErrorCode("WHO_KNOWS"))
	assert.Equal(t, CodeUncaught, NormalizeErrorCode(""))
}
