package lifecycle

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStickyFieldsPersist(t *testing.T) {
	var last Status
	store := NewStore(Hooks{OnStatus: func(s Status) { last = s }}, WithMaxSlippage(10))

	store.Update(&TransactionPending{})
	require.Equal(t, StatusTransactionPending, last.StatusName)
	sh := last.StatusData.(*TransactionPending).Shared
	require.NotNil(t, sh.MaxSlippage)
	assert.Equal(t, 10.0, *sh.MaxSlippage)
	require.NotNil(t, sh.IsMissingRequiredField)
	assert.True(t, *sh.IsMissingRequiredField)

	store.Update(&TransactionApproved{
		TransactionHash: "0x123",
		TransactionType: TransactionTypeERC20,
	})
	approved := last.StatusData.(*TransactionApproved)
	assert.Equal(t, "0x123", approved.TransactionHash)
	assert.Equal(t, TransactionTypeERC20, approved.TransactionType)
	assert.Equal(t, 10.0, *approved.MaxSlippage)
	assert.True(t, *approved.IsMissingRequiredField)
}

func TestStickyFieldsOverridable(t *testing.T) {
	store := NewStore(Hooks{}, WithMaxSlippage(10))

	store.Update(&AmountChange{
		Shared:     Shared{MaxSlippage: Float64(3), IsMissingRequiredField: Bool(false)},
		AmountFrom: "1",
		AmountTo:   "2",
	})
	store.Update(&TransactionPending{})

	sh := store.Status().StatusData.shared()
	assert.Equal(t, 3.0, *sh.MaxSlippage)
	assert.False(t, *sh.IsMissingRequiredField)
}

func TestErrorFieldsDoNotLeakForward(t *testing.T) {
	var statuses []Status
	store := NewStore(Hooks{OnStatus: func(s Status) { statuses = append(statuses, s) }})

	store.Update(&Error{Code: "code", Err: "error_long_messages", Message: ""})
	store.Update(&TransactionPending{})

	require.Len(t, statuses, 2)
	assert.Equal(t, StatusError, statuses[0].StatusName)
	// The pending payload is a distinct variant with no error fields at all.
	_, isPending := statuses[1].StatusData.(*TransactionPending)
	assert.True(t, isPending)
}

func TestOnStatusFiresOnEveryUpdate(t *testing.T) {
	calls := 0
	store := NewStore(Hooks{OnStatus: func(Status) { calls++ }})

	store.Update(&AmountChange{AmountFrom: "1", AmountTo: "2"})
	store.Update(&AmountChange{AmountFrom: "1", AmountTo: "3"})
	assert.Equal(t, 2, calls, "same-phase data merges still notify the host")
}

func TestOnErrorFiresWithError(t *testing.T) {
	var gotErr *Error
	statusCalls := 0
	store := NewStore(Hooks{
		OnStatus: func(Status) { statusCalls++ },
		OnError:  func(e Error) { gotErr = &e },
	})

	store.Update(&Error{Code: "TmSPc02", Err: "boom", Message: "Something went wrong. Please try again."})
	require.NotNil(t, gotErr)
	assert.Equal(t, "TmSPc02", gotErr.Code)
	assert.Equal(t, 1, statusCalls)
}

func TestSuccessTriggersCallbackAndReset(t *testing.T) {
	receipt := &types.Receipt{TxHash: common.HexToHash("0xabc"), Status: types.ReceiptStatusSuccessful}
	successCalls := 0
	var store *Store
	store = NewStore(Hooks{
		OnSuccess: func(r *types.Receipt) {
			successCalls++
			assert.Equal(t, receipt, r)
		},
	}, WithMaxSlippage(5))
	store.SetReset(func() {
		store.Update(&Init{})
	})

	store.Update(&Success{TransactionReceipt: receipt})

	assert.Equal(t, 1, successCalls)
	// The reset side effect ran and returned the store to init with sticky
	// fields intact.
	st := store.Status()
	assert.Equal(t, StatusInit, st.StatusName)
	assert.Equal(t, 5.0, *st.StatusData.shared().MaxSlippage)
}
