package token

// BaseChainID is the chain id of the Base mainnet, the default network.
const BaseChainID int64 = 8453

// Eth is the native asset on Base.
var Eth = Token{
	Address:  "",
	ChainID:  BaseChainID,
	Decimals: 18,
	Image:    "https://wallet-api-production.s3.amazonaws.com/uploads/tokens/eth_288.png",
	Name:     "ETH",
	Symbol:   "ETH",
}

// USDC on Base.
var USDC = Token{
	Address:  "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913",
	ChainID:  BaseChainID,
	Decimals: 6,
	Image:    "https://d3r81g40ycuhqg.cloudfront.net/wallet/wais/44/2b/442b80bd16af0c0d9b22e03a16753823fe826e5bfd457292b55fa0ba8c1ba213-ZWUzYjJmZGUtMDYxNy00NDcyLTg0NjQtMWI4OGEwYjBiODE2",
	Name:     "USDC",
	Symbol:   "USDC",
}

// Degen on Base.
var Degen = Token{
	Address:  "0x4ed4e862860bed51a9570b96d89af5e1b0efefed",
	ChainID:  BaseChainID,
	Decimals: 18,
	Image:    "https://d3r81g40ycuhqg.cloudfront.net/wallet/wais/3b/bf/3bbf118b5e6dc2f9e7fc607a6e7526647b4ba8f0bea87125f971446d57b296d2-MDNmNjY0MmEtNGFiZi00N2I0LWIwMTItMDUyMzg2ZDZhMWNm",
	Name:     "DEGEN",
	Symbol:   "DEGEN",
}
