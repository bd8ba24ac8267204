package lifecycle

import (
	"github.com/ethereum/go-ethereum/core/types"

	"walletkit/pkg/token"
)

// StatusName identifies the current phase of a provider's lifecycle. The
// literal values are part of the public contract: host applications switch
// on them when observing status callbacks.
type StatusName string

const (
	StatusInit                StatusName = "init"
	StatusAmountChange        StatusName = "amountChange"
	StatusTransactionPending  StatusName = "transactionPending"
	StatusTransactionApproved StatusName = "transactionApproved"
	StatusSuccess             StatusName = "success"
	StatusError               StatusName = "error"
)

// TransactionType labels what kind of wallet request was approved.
type TransactionType string

const (
	TransactionTypeBatched TransactionType = "Batched"
	TransactionTypeCalls   TransactionType = "Calls"
	TransactionTypeERC20   TransactionType = "ERC20"
	TransactionTypeSwap    TransactionType = "Swap"
)

// Shared holds the fields that persist across phase transitions until a
// later update explicitly overwrites them. A nil field means "inherit from
// the previous status".
type Shared struct {
	MaxSlippage            *float64 `json:"maxSlippage,omitempty"`
	IsMissingRequiredField *bool    `json:"isMissingRequiredField,omitempty"`
}

func (s *Shared) shared() *Shared { return s }

// StatusData is the payload of a lifecycle status. Exactly one variant
// exists per phase, each carrying only the fields that phase defines, so a
// transition away from an error can never drag error fields along.
type StatusData interface {
	StatusName() StatusName
	shared() *Shared
}

// Init is the phase a provider starts in and returns to after a reset.
type Init struct {
	Shared
}

func (*Init) StatusName() StatusName { return StatusInit }

// AmountChange reports a change to either side of an input pair.
type AmountChange struct {
	Shared
	AmountFrom string       `json:"amountFrom"`
	AmountTo   string       `json:"amountTo"`
	TokenFrom  *token.Token `json:"tokenFrom,omitempty"`
	TokenTo    *token.Token `json:"tokenTo,omitempty"`
}

func (*AmountChange) StatusName() StatusName { return StatusAmountChange }

// TransactionPending means a wallet request is awaiting user approval.
type TransactionPending struct {
	Shared
}

func (*TransactionPending) StatusName() StatusName { return StatusTransactionPending }

// TransactionApproved means the wallet accepted a request. TransactionHash
// holds either a transaction hash or, for batched submissions, the calls id
// returned by the wallet.
type TransactionApproved struct {
	Shared
	TransactionHash string          `json:"transactionHash"`
	TransactionType TransactionType `json:"transactionType"`
}

func (*TransactionApproved) StatusName() StatusName { return StatusTransactionApproved }

// Success carries the final receipt of a completed submission.
type Success struct {
	Shared
	TransactionReceipt *types.Receipt `json:"transactionReceipt,omitempty"`
}

func (*Success) StatusName() StatusName { return StatusSuccess }

// Error carries a normalized error code plus the raw and user-facing
// messages. None of these fields survive the next transition.
type Error struct {
	Shared
	Code    string `json:"code"`
	Err     string `json:"error"`
	Message string `json:"message"`
}

func (*Error) StatusName() StatusName { return StatusError }

// Status pairs a phase name with its payload, the shape host callbacks
// receive.
type Status struct {
	StatusName StatusName `json:"statusName"`
	StatusData StatusData `json:"statusData"`
}

// Float64 returns a pointer to v, for populating Shared overrides.
func Float64(v float64) *float64 { return &v }

// Bool returns a pointer to v, for populating Shared overrides.
func Bool(v bool) *bool { return &v }
