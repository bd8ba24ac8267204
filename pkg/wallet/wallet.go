// Package wallet abstracts transaction submission for the feature
// providers: one batched wallet request when the wallet supports it, a
// sequence of signed transactions otherwise, and receipt awaiting for both.
package wallet

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Call is one on-chain call of a submission: a plain transfer when Data is
// empty, a contract call otherwise.
type Call struct {
	To    common.Address `json:"to"`
	Value *big.Int       `json:"value,omitempty"`
	Data  []byte         `json:"data,omitempty"`
}

// Client submits calls on behalf of the connected account.
type Client interface {
	// Address returns the connected account.
	Address() common.Address
	// ChainID returns the active chain.
	ChainID() *big.Int
	// SubmitCalls sends all calls as one batched wallet request and
	// returns the wallet's calls id.
	SubmitCalls(ctx context.Context, calls []Call) (string, error)
	// SubmitTransaction signs and sends a single call, returning its hash.
	SubmitTransaction(ctx context.Context, call Call) (common.Hash, error)
	// AwaitReceipt blocks until the transaction hash or calls id referenced
	// by ref is included, or the context/timeout expires.
	AwaitReceipt(ctx context.Context, ref string) (*types.Receipt, error)
}

const erc20ApproveABI = `[{"constant":false,"inputs":[{"name":"_spender","type":"address"},{"name":"_value","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"type":"function"}]`

// ERC20Approve builds the approval leg that precedes a swap of a non-native
// token.
func ERC20Approve(token, spender common.Address, amount *big.Int) (Call, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20ApproveABI))
	if err != nil {
		return Call{}, fmt.Errorf("failed to parse ERC20 ABI: %w", err)
	}
	data, err := parsed.Pack("approve", spender, amount)
	if err != nil {
		return Call{}, fmt.Errorf("failed to pack approve data: %w", err)
	}
	return Call{To: token, Value: big.NewInt(0), Data: data}, nil
}
