// Package capabilities answers one question for the submission pipeline:
// which optional wallet features does the connected account support on a
// given chain. Detection is fail-safe: a disconnected wallet, a failed
// query or an unknown chain all come back as "no advanced capabilities"
// rather than an error.
package capabilities

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"
)

// Capabilities is the boolean record of optional wallet features for one
// chain. The zero value means a plain EOA flow.
type Capabilities struct {
	AtomicBatch      bool `json:"atomicBatch"`
	AuxiliaryFunds   bool `json:"auxiliaryFunds"`
	PaymasterService bool `json:"paymasterService"`
}

// SupportsBatching reports whether the submission pipeline may send all
// calls as a single batched wallet request. All three features must be
// present.
func (c Capabilities) SupportsBatching() bool {
	return c.AtomicBatch && c.AuxiliaryFunds && c.PaymasterService
}

// Detector is queried at the moment of submit; results are never cached
// across submits.
type Detector interface {
	Detect(ctx context.Context, chainID int64) Capabilities
}

// Static is a fixed per-chain capability table, used by tests and by hosts
// that already know their wallet. Chains without an entry report all-false.
type Static map[int64]Capabilities

func (s Static) Detect(_ context.Context, chainID int64) Capabilities {
	return s[chainID]
}

type capabilityEntry struct {
	Supported bool `json:"supported"`
}

// RPCDetector queries wallet_getCapabilities over a JSON-RPC connection.
type RPCDetector struct {
	client  *rpc.Client
	address common.Address
	log     *logrus.Entry
}

// NewRPCDetector creates a detector for the connected account address.
func NewRPCDetector(client *rpc.Client, address common.Address) *RPCDetector {
	return &RPCDetector{
		client:  client,
		address: address,
		log:     logrus.WithField("component", "capabilities"),
	}
}

// Detect queries the wallet for the chain's capability entry. Any failure
// degrades to the zero value.
func (d *RPCDetector) Detect(ctx context.Context, chainID int64) Capabilities {
	if d.client == nil || d.address == (common.Address{}) {
		return Capabilities{}
	}

	var raw map[string]map[string]capabilityEntry
	if err := d.client.CallContext(ctx, &raw, "wallet_getCapabilities", d.address); err != nil {
		d.log.WithError(err).Debug("capability query failed")
		return Capabilities{}
	}

	entry, ok := raw[hexutil.EncodeBig(big.NewInt(chainID))]
	if !ok {
		return Capabilities{}
	}

	return Capabilities{
		AtomicBatch:      entry["atomicBatch"].Supported,
		AuxiliaryFunds:   entry["auxiliaryFunds"].Supported,
		PaymasterService: entry["paymasterService"].Supported,
	}
}
