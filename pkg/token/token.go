package token

import "strings"

// Token describes an asset that can be swapped, bought or sent.
// The zero Address marks the chain's native asset (ETH on EVM chains).
type Token struct {
	Address  string `json:"address"`
	ChainID  int64  `json:"chainId"`
	Decimals int    `json:"decimals"`
	Image    string `json:"image,omitempty"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
}

// IsNative reports whether the token is the chain's native asset.
func (t Token) IsNative() bool {
	return t.Address == ""
}

// Equal compares tokens by contract address and chain id. Addresses are
// hex strings and compared case-insensitively.
func (t Token) Equal(other Token) bool {
	return strings.EqualFold(t.Address, other.Address) && t.ChainID == other.ChainID
}

// Filter returns the tokens matching a dropdown search query: a symbol or
// name prefix, or an exact contract address. An empty query returns the
// list unchanged.
func Filter(tokens []Token, query string) []Token {
	query = strings.TrimSpace(query)
	if query == "" {
		return tokens
	}

	if strings.HasPrefix(query, "0x") {
		matched := make([]Token, 0, 1)
		for _, t := range tokens {
			if strings.EqualFold(t.Address, query) {
				matched = append(matched, t)
			}
		}
		return matched
	}

	query = strings.ToLower(query)
	matched := make([]Token, 0, len(tokens))
	for _, t := range tokens {
		if strings.HasPrefix(strings.ToLower(t.Symbol), query) ||
			strings.HasPrefix(strings.ToLower(t.Name), query) {
			matched = append(matched, t)
		}
	}
	return matched
}
