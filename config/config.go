package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	// Quote/build API
	APIBaseURL string
	APIKey     string

	// Cross-chain aggregator
	OneClickJWT string

	// EVM wallet
	EVMRPCURL     string
	EVMPrivateKey string
	EVMChainID    int64

	// Solana deposit sender
	SolanaRPCURL     string
	SolanaPrivateKey string

	// Provider defaults
	MaxSlippage   float64
	UseAggregator bool

	// Prometheus listen address, empty disables the endpoint
	MetricsAddr string
}

var globalConfig *Config

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	viper.SetConfigName(".walletkit")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(".")

	// Set default values
	viper.SetDefault("api_base_url", "https://api.wallet.coinbase.com/rpc/v2")
	viper.SetDefault("evm_chain_id", 8453)
	viper.SetDefault("max_slippage", 3.0)

	// Read from environment variables
	viper.SetEnvPrefix("WALLETKIT")
	viper.AutomaticEnv()

	// Read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		APIBaseURL:       viper.GetString("api_base_url"),
		APIKey:           viper.GetString("api_key"),
		OneClickJWT:      viper.GetString("oneclick_jwt"),
		EVMRPCURL:        viper.GetString("evm_rpc_url"),
		EVMPrivateKey:    viper.GetString("evm_private_key"),
		EVMChainID:       viper.GetInt64("evm_chain_id"),
		SolanaRPCURL:     viper.GetString("solana_rpc_url"),
		SolanaPrivateKey: viper.GetString("solana_private_key"),
		MaxSlippage:      viper.GetFloat64("max_slippage"),
		UseAggregator:    viper.GetBool("use_aggregator"),
		MetricsAddr:      viper.GetString("metrics_addr"),
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key not found. Please set WALLETKIT_API_KEY environment variable or create a .walletkit.yaml config file")
	}

	globalConfig = cfg
	return cfg, nil
}

// Get returns the global configuration
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		return cfg
	}
	return globalConfig
}

// Set updates the global configuration
func Set(cfg *Config) {
	globalConfig = cfg
}
