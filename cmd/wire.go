package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"walletkit/config"
	"walletkit/pkg/capabilities"
	"walletkit/pkg/client"
	"walletkit/pkg/storage"
	"walletkit/pkg/swap"
	"walletkit/pkg/telemetry"
	"walletkit/pkg/token"
	"walletkit/pkg/wallet"
)

// toolkit bundles the wired collaborators the commands share.
type toolkit struct {
	cfg     *config.Config
	api     *client.Client
	wallet  *wallet.EVMClient
	caps    capabilities.Detector
	prefs   storage.Adapter
	metrics *telemetry.Metrics
}

// wire builds the toolkit from configuration. The EVM wallet is only
// dialed when withWallet is set; quote-only commands skip it.
func wire(ctx context.Context, withWallet bool) (*toolkit, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	tk := &toolkit{
		cfg:     cfg,
		api:     client.New(cfg.APIBaseURL, cfg.APIKey),
		metrics: telemetry.New(),
	}

	if prefs, perr := storage.NewFileStore(prefsPath()); perr == nil {
		tk.prefs = prefs
	}

	if withWallet {
		if cfg.EVMRPCURL == "" || cfg.EVMPrivateKey == "" {
			return nil, fmt.Errorf("EVM wallet not configured. Set WALLETKIT_EVM_RPC_URL and WALLETKIT_EVM_PRIVATE_KEY")
		}
		evm, derr := wallet.DialEVM(ctx, cfg.EVMRPCURL, cfg.EVMPrivateKey, cfg.EVMChainID)
		if derr != nil {
			return nil, fmt.Errorf("dialing EVM wallet: %w", derr)
		}
		tk.wallet = evm
		tk.caps = capabilities.NewRPCDetector(evm.RPC(), evm.Address())
	}

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, tk.metrics)
	}
	return tk, nil
}

func (tk *toolkit) swapDeps() swap.Deps {
	return swap.Deps{
		Quotes:  tk.api,
		Builder: tk.api,
		Wallet:  tk.wallet,
		Caps:    tk.caps,
		Prefs:   tk.prefs,
		Metrics: tk.metrics,
	}
}

func (tk *toolkit) close() {
	if tk.wallet != nil {
		tk.wallet.Close()
	}
}

// rememberComponent persists the last used flow, mirroring the hosted
// widget's active-component preference.
func (tk *toolkit) rememberComponent(name string) {
	if tk.prefs != nil {
		_ = tk.prefs.Set(storage.KeyActiveComponent, name)
	}
}

// resolveToken maps a symbol to a token, checking the built-in Base
// list first and falling back to an API search.
func (tk *toolkit) resolveToken(ctx context.Context, symbol string) (*token.Token, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	for _, known := range []token.Token{token.Eth, token.USDC, token.Degen} {
		if known.Symbol == symbol {
			t := known
			return &t, nil
		}
	}

	found, err := tk.api.GetTokens(ctx, client.GetTokensParams{Search: symbol, Limit: 10})
	if err != nil {
		return nil, fmt.Errorf("searching for token %s: %w", symbol, err)
	}
	for _, t := range found {
		if strings.EqualFold(t.Symbol, symbol) {
			match := t
			return &match, nil
		}
	}
	return nil, fmt.Errorf("unknown token: %s", symbol)
}

func prefsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return storage.DefaultFileName
	}
	return filepath.Join(home, storage.DefaultFileName)
}

func serveMetrics(addr string, metrics *telemetry.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logrus.WithError(err).Warn("metrics server stopped")
	}
}
