package swap

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"walletkit/pkg/capabilities"
	"walletkit/pkg/client"
	"walletkit/pkg/storage"
	"walletkit/pkg/telemetry"
	"walletkit/pkg/token"
	"walletkit/pkg/wallet"
)

// Side identifies one half of a swap pair.
type Side string

const (
	SideFrom Side = "from"
	SideTo   Side = "to"
)

// DefaultMaxSlippage is the slippage percentage used when the host neither
// configures nor persists one.
const DefaultMaxSlippage = 3.0

// SwapUnit is one side of the pair. Units are owned by their provider;
// accessors return copies.
type SwapUnit struct {
	Token     *token.Token
	Amount    string
	AmountUSD string
	Balance   string
	Loading   bool
	Err       error
}

// QuoteService fetches price quotes for a pair.
type QuoteService interface {
	GetSwapQuote(ctx context.Context, params client.QuoteParams) (*client.Quote, error)
}

// TransactionBuilder turns the validated input pair into on-chain calls.
type TransactionBuilder interface {
	BuildSwapTransaction(ctx context.Context, params client.BuildParams) (*client.SwapTransaction, error)
}

// Config carries the host-tunable settings.
type Config struct {
	// MaxSlippage is a percentage; persisted preferences take precedence.
	MaxSlippage float64
	// UseAggregator routes quotes and builds through the aggregator API.
	UseAggregator bool
	// QuoteDelay debounces quote requests while the user types.
	QuoteDelay time.Duration
}

// Deps are the collaborators a provider consumes. Quotes, Builder and
// Wallet are required; the rest are optional.
type Deps struct {
	Quotes  QuoteService
	Builder TransactionBuilder
	Wallet  wallet.Client
	Caps    capabilities.Detector
	Prefs   storage.Adapter
	Metrics *telemetry.Metrics
}

var amountPattern = regexp.MustCompile(`^[0-9]*\.?[0-9]*$`)

// IsValidAmount accepts digits with at most one decimal separator. The
// empty string is valid input (it clears the pair).
func IsValidAmount(amount string) bool {
	return amountPattern.MatchString(amount)
}

// IsZeroAmount reports whether the input is empty or parses to zero.
func IsZeroAmount(amount string) bool {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return true
	}
	parsed, err := strconv.ParseFloat(amount, 64)
	return err == nil && parsed == 0
}

// LoadMaxSlippage resolves the effective slippage: persisted preference,
// then config, then the default.
func LoadMaxSlippage(prefs storage.Adapter, configured float64) float64 {
	if prefs != nil {
		if raw, ok := prefs.Get(storage.KeyMaxSlippage); ok {
			if parsed, err := strconv.ParseFloat(raw, 64); err == nil && parsed > 0 {
				return parsed
			}
		}
	}
	if configured > 0 {
		return configured
	}
	return DefaultMaxSlippage
}
