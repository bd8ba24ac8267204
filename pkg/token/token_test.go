package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEqual(t *testing.T) {
	t.Run("same_address_different_case", func(t *testing.T) {
		a := Token{Address: "0x4ED4E862860BED51A9570B96D89AF5E1B0EFEFED", ChainID: 8453}
		b := Token{Address: "0x4ed4e862860bed51a9570b96d89af5e1b0efefed", ChainID: 8453}
		assert.True(t, a.Equal(b))
	})

	t.Run("different_chain", func(t *testing.T) {
		a := Token{Address: "0x4ed4e862860bed51a9570b96d89af5e1b0efefed", ChainID: 8453}
		b := Token{Address: "0x4ed4e862860bed51a9570b96d89af5e1b0efefed", ChainID: 1}
		assert.False(t, a.Equal(b))
	})

	t.Run("native_tokens", func(t *testing.T) {
		assert.True(t, Eth.IsNative())
		assert.False(t, USDC.IsNative())
		assert.True(t, Eth.Equal(Token{Address: "", ChainID: BaseChainID}))
	})
}

func TestFilter(t *testing.T) {
	list := []Token{Eth, USDC, Degen}

	t.Run("empty_query_returns_all", func(t *testing.T) {
		assert.Len(t, Filter(list, ""), 3)
	})

	t.Run("symbol_prefix", func(t *testing.T) {
		got := Filter(list, "us")
		assert.Len(t, got, 1)
		assert.Equal(t, "USDC", got[0].Symbol)
	})

	t.Run("case_insensitive_name", func(t *testing.T) {
		got := Filter(list, "degen")
		assert.Len(t, got, 1)
		assert.Equal(t, "DEGEN", got[0].Symbol)
	})

	t.Run("exact_address", func(t *testing.T) {
		got := Filter(list, "0x4ED4E862860BED51A9570B96D89AF5E1B0EFEFED")
		assert.Len(t, got, 1)
		assert.Equal(t, "DEGEN", got[0].Symbol)
	})

	t.Run("no_match", func(t *testing.T) {
		assert.Empty(t, Filter(list, "xyz"))
	})
}
