// Package submit drives prepared calls through a wallet and reports
// progress on a lifecycle store. Every feature provider that submits
// transactions runs this pipeline.
package submit

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"walletkit/pkg/capabilities"
	"walletkit/pkg/lifecycle"
	"walletkit/pkg/wallet"
)

// Pipeline is one submission flow. Capability detection happens at
// submission time on every run: a wallet that supports atomic batching,
// auxiliary funds and a paymaster gets a single batched request,
// everything else a sequential per-call flow.
type Pipeline struct {
	Wallet wallet.Client
	Caps   capabilities.Detector
	Store  *lifecycle.Store
	Log    *logrus.Entry
	// FinalType tags the last sequential leg in the approved status.
	FinalType lifecycle.TransactionType
}

// Submit runs the calls to completion. The returned error has not been
// reported on the store; callers map it to their own error code space.
func (p *Pipeline) Submit(ctx context.Context, calls []wallet.Call) error {
	if len(calls) == 0 {
		return fmt.Errorf("no calls to submit")
	}

	caps := capabilities.Capabilities{}
	if p.Caps != nil {
		caps = p.Caps.Detect(ctx, p.Wallet.ChainID().Int64())
	}
	p.Store.Update(&lifecycle.TransactionPending{})

	if caps.SupportsBatching() {
		return p.submitBatched(ctx, calls)
	}
	return p.submitSequential(ctx, calls)
}

func (p *Pipeline) submitBatched(ctx context.Context, calls []wallet.Call) error {
	callsID, err := p.Wallet.SubmitCalls(ctx, calls)
	if err != nil {
		return fmt.Errorf("submitting batched calls: %w", err)
	}
	p.Log.WithField("callsId", callsID).Debug("batched calls submitted")

	p.Store.Update(&lifecycle.TransactionApproved{
		TransactionHash: callsID,
		TransactionType: lifecycle.TransactionTypeBatched,
	})

	receipt, err := p.Wallet.AwaitReceipt(ctx, callsID)
	if err != nil {
		return fmt.Errorf("awaiting batched receipt: %w", err)
	}
	p.Store.Update(&lifecycle.Success{TransactionReceipt: receipt})
	return nil
}

func (p *Pipeline) submitSequential(ctx context.Context, calls []wallet.Call) error {
	var receipt *types.Receipt
	for i, call := range calls {
		hash, err := p.Wallet.SubmitTransaction(ctx, call)
		if err != nil {
			return fmt.Errorf("submitting transaction %d: %w", i, err)
		}

		// Intermediate legs are token approvals; only the final leg
		// carries the feature's own type.
		txType := p.FinalType
		if i < len(calls)-1 {
			txType = lifecycle.TransactionTypeERC20
		}
		p.Store.Update(&lifecycle.TransactionApproved{
			TransactionHash: hash.Hex(),
			TransactionType: txType,
		})

		receipt, err = p.Wallet.AwaitReceipt(ctx, hash.Hex())
		if err != nil {
			return fmt.Errorf("awaiting receipt for transaction %d: %w", i, err)
		}
		p.Log.WithFields(logrus.Fields{"hash": hash.Hex(), "index": i}).Debug("transaction confirmed")
	}
	p.Store.Update(&lifecycle.Success{TransactionReceipt: receipt})
	return nil
}
