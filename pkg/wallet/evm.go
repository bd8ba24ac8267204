package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"
)

const (
	defaultReceiptTimeout = 2 * time.Minute
	receiptPollInterval   = 2 * time.Second

	callsStatusConfirmed = "CONFIRMED"
	callsStatusFailed    = "FAILED"
)

// EVMClient signs and submits transactions against an EVM JSON-RPC
// endpoint, and speaks wallet_sendCalls for batched submissions.
type EVMClient struct {
	client         *ethclient.Client
	rpc            *rpc.Client
	privateKey     *ecdsa.PrivateKey
	address        common.Address
	chainID        *big.Int
	receiptTimeout time.Duration
	log            *logrus.Entry
}

// DialEVM connects to rpcURL and derives the account from the hex private
// key.
func DialEVM(ctx context.Context, rpcURL, privateKeyHex string, chainID int64) (*EVMClient, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("failed to get public key")
	}

	return &EVMClient{
		client:         ethclient.NewClient(rpcClient),
		rpc:            rpcClient,
		privateKey:     privateKey,
		address:        crypto.PubkeyToAddress(*publicKey),
		chainID:        big.NewInt(chainID),
		receiptTimeout: defaultReceiptTimeout,
		log:            logrus.WithField("component", "evm-wallet"),
	}, nil
}

// RPC exposes the underlying JSON-RPC client, shared with the capability
// detector.
func (c *EVMClient) RPC() *rpc.Client { return c.rpc }

func (c *EVMClient) Address() common.Address { return c.address }

func (c *EVMClient) ChainID() *big.Int { return new(big.Int).Set(c.chainID) }

// SetReceiptTimeout overrides how long AwaitReceipt polls before giving up.
func (c *EVMClient) SetReceiptTimeout(d time.Duration) { c.receiptTimeout = d }

type sendCallsCall struct {
	To    string `json:"to"`
	Value string `json:"value,omitempty"`
	Data  string `json:"data,omitempty"`
}

type sendCallsParams struct {
	Version      string            `json:"version"`
	ChainID      string            `json:"chainId"`
	From         string            `json:"from"`
	Calls        []sendCallsCall   `json:"calls"`
	Capabilities map[string]string `json:"capabilities,omitempty"`
}

// SubmitCalls sends all calls as a single wallet_sendCalls request.
func (c *EVMClient) SubmitCalls(ctx context.Context, calls []Call) (string, error) {
	params := sendCallsParams{
		Version: "1.0",
		ChainID: hexutil.EncodeBig(c.chainID),
		From:    c.address.Hex(),
		Calls:   make([]sendCallsCall, 0, len(calls)),
	}
	for _, call := range calls {
		enc := sendCallsCall{To: call.To.Hex()}
		if call.Value != nil && call.Value.Sign() > 0 {
			enc.Value = hexutil.EncodeBig(call.Value)
		}
		if len(call.Data) > 0 {
			enc.Data = hexutil.Encode(call.Data)
		}
		params.Calls = append(params.Calls, enc)
	}

	var callsID string
	if err := c.rpc.CallContext(ctx, &callsID, "wallet_sendCalls", params); err != nil {
		return "", fmt.Errorf("failed to send batched calls: %w", err)
	}
	return callsID, nil
}

// SubmitTransaction signs the call with the account key and broadcasts it.
func (c *EVMClient) SubmitTransaction(ctx context.Context, call Call) (common.Hash, error) {
	nonce, err := c.client.PendingNonceAt(ctx, c.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get gas price: %w", err)
	}

	value := call.Value
	if value == nil {
		value = big.NewInt(0)
	}

	gasLimit := uint64(21000)
	if len(call.Data) > 0 {
		msg := ethereum.CallMsg{
			From:  c.address,
			To:    &call.To,
			Value: value,
			Data:  call.Data,
		}
		estimated, err := c.client.EstimateGas(ctx, msg)
		if err != nil {
			return common.Hash{}, fmt.Errorf("failed to estimate gas: %w", err)
		}
		gasLimit = estimated * 120 / 100
	}

	tx := types.NewTransaction(nonce, call.To, value, gasLimit, gasPrice, call.Data)
	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(c.chainID), c.privateKey)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := c.client.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	c.log.WithField("hash", signedTx.Hash().Hex()).Debug("transaction submitted")
	return signedTx.Hash(), nil
}

type callsStatusReceipt struct {
	TransactionHash string `json:"transactionHash"`
	BlockNumber     string `json:"blockNumber"`
	GasUsed         string `json:"gasUsed"`
	Status          string `json:"status"`
}

type callsStatusResponse struct {
	Status   string               `json:"status"`
	Receipts []callsStatusReceipt `json:"receipts"`
}

// AwaitReceipt polls until ref (a 0x transaction hash or a wallet calls
// id) is included. It returns a timeout error when the receipt does not
// appear within the configured window.
func (c *EVMClient) AwaitReceipt(ctx context.Context, ref string) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.receiptTimeout)
	defer cancel()

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	isTxHash := strings.HasPrefix(ref, "0x") && len(ref) == 66

	for {
		if isTxHash {
			receipt, err := c.client.TransactionReceipt(ctx, common.HexToHash(ref))
			if err == nil && receipt != nil {
				return receipt, nil
			}
		} else {
			var status callsStatusResponse
			err := c.rpc.CallContext(ctx, &status, "wallet_getCallsStatus", ref)
			if err == nil {
				switch status.Status {
				case callsStatusConfirmed:
					if len(status.Receipts) > 0 {
						return decodeCallsReceipt(status.Receipts[len(status.Receipts)-1])
					}
					return nil, fmt.Errorf("batch %s confirmed without receipts", ref)
				case callsStatusFailed:
					return nil, fmt.Errorf("batch %s failed", ref)
				}
			}
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("timed out waiting for receipt of %s: %w", ref, ctx.Err())
		case <-ticker.C:
		}
	}
}

func decodeCallsReceipt(raw callsStatusReceipt) (*types.Receipt, error) {
	blockNumber, err := hexutil.DecodeBig(raw.BlockNumber)
	if err != nil {
		return nil, fmt.Errorf("invalid block number in batch receipt: %w", err)
	}
	gasUsed, err := hexutil.DecodeUint64(raw.GasUsed)
	if err != nil {
		return nil, fmt.Errorf("invalid gas used in batch receipt: %w", err)
	}
	status := types.ReceiptStatusSuccessful
	if raw.Status == "0x0" {
		status = types.ReceiptStatusFailed
	}
	return &types.Receipt{
		TxHash:      common.HexToHash(raw.TransactionHash),
		BlockNumber: blockNumber,
		GasUsed:     gasUsed,
		Status:      status,
	}, nil
}

// Close releases the RPC connection.
func (c *EVMClient) Close() {
	if c.rpc != nil {
		c.rpc.Close()
	}
}
