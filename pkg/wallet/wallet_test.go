package wallet

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestERC20Approve(t *testing.T) {
	tokenAddr := common.HexToAddress("0x833589fcd6edb6e08f4c7c32d4f71b54bda02913")
	spender := common.HexToAddress("0x1111111111111111111111111111111111111111")
	amount := big.NewInt(1_000_000)

	call, err := ERC20Approve(tokenAddr, spender, amount)
	require.NoError(t, err)

	assert.Equal(t, tokenAddr, call.To)
	assert.Equal(t, big.NewInt(0), call.Value)

	// approve(address,uint256) selector.
	require.Len(t, call.Data, 4+32+32)
	assert.Equal(t, []byte{0x09, 0x5e, 0xa7, 0xb3}, call.Data[:4])
	assert.Equal(t, spender.Bytes(), call.Data[4+12:4+32])
	assert.Equal(t, amount, new(big.Int).SetBytes(call.Data[4+32:]))
}
