// Package deposit sends onramp funding deposits on Solana. The fund
// provider uses it for Solana-sourced deposits; EVM deposits go through
// the wallet client instead.
package deposit

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"
)

const lamportsPerSOL = 1e9

// Solana fees are typically 5000 lamports per signature.
const feeReserveLamports = 5000

// SolanaSender signs and sends SOL transfers from a single keypair.
type SolanaSender struct {
	client     *rpc.Client
	privateKey solana.PrivateKey
	publicKey  solana.PublicKey
	commitment rpc.CommitmentType
	log        *logrus.Entry
}

// NewSolanaSender connects to the RPC endpoint and parses the Base58
// private key.
func NewSolanaSender(rpcURL, privateKeyBase58 string) (*SolanaSender, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("solana RPC URL not configured")
	}
	privateKey, err := solana.PrivateKeyFromBase58(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("invalid solana private key: %w", err)
	}

	return &SolanaSender{
		client:     rpc.New(rpcURL),
		privateKey: privateKey,
		publicKey:  privateKey.PublicKey(),
		commitment: rpc.CommitmentConfirmed,
		log:        logrus.WithField("component", "deposit"),
	}, nil
}

// Address returns the sender's public key in Base58.
func (s *SolanaSender) Address() string {
	return s.publicKey.String()
}

// Send transfers the given SOL amount to the recipient and returns the
// transaction signature. The amount is a decimal SOL string.
func (s *SolanaSender) Send(ctx context.Context, recipient, amount string) (string, error) {
	to, err := solana.PublicKeyFromBase58(recipient)
	if err != nil {
		return "", fmt.Errorf("invalid recipient address: %w", err)
	}
	lamports, err := parseLamports(amount)
	if err != nil {
		return "", err
	}

	if err := s.checkBalance(ctx, lamports); err != nil {
		return "", err
	}

	recent, err := s.client.GetRecentBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return "", fmt.Errorf("fetching recent blockhash: %w", err)
	}

	instruction := system.NewTransferInstruction(lamports, s.publicKey, to).Build()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{instruction},
		recent.Value.Blockhash,
		solana.TransactionPayer(s.publicKey),
	)
	if err != nil {
		return "", fmt.Errorf("building transaction: %w", err)
	}

	if _, err := tx.Sign(s.signer); err != nil {
		return "", fmt.Errorf("signing transaction: %w", err)
	}

	sig, err := s.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: s.commitment,
	})
	if err != nil {
		return "", fmt.Errorf("sending transaction: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"signature": sig.String(),
		"recipient": recipient,
		"lamports":  lamports,
	}).Info("deposit sent")
	return sig.String(), nil
}

// SendToken transfers SPL tokens from the sender's associated token
// account to the recipient's. The recipient's account must exist.
func (s *SolanaSender) SendToken(ctx context.Context, recipient, mintAddress, amount string) (string, error) {
	to, err := solana.PublicKeyFromBase58(recipient)
	if err != nil {
		return "", fmt.Errorf("invalid recipient address: %w", err)
	}
	mint, err := solana.PublicKeyFromBase58(mintAddress)
	if err != nil {
		return "", fmt.Errorf("invalid token mint address: %w", err)
	}

	decimals, err := s.mintDecimals(ctx, mint)
	if err != nil {
		return "", err
	}
	tokenAmount, err := parseTokenAmount(amount, decimals)
	if err != nil {
		return "", err
	}

	source, _, err := solana.FindAssociatedTokenAddress(s.publicKey, mint)
	if err != nil {
		return "", fmt.Errorf("deriving source token account: %w", err)
	}
	dest, _, err := solana.FindAssociatedTokenAddress(to, mint)
	if err != nil {
		return "", fmt.Errorf("deriving destination token account: %w", err)
	}

	recent, err := s.client.GetRecentBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return "", fmt.Errorf("fetching recent blockhash: %w", err)
	}

	transfer := token.NewTransferInstruction(
		tokenAmount,
		source,
		dest,
		s.publicKey,
		[]solana.PublicKey{},
	).Build()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{transfer},
		recent.Value.Blockhash,
		solana.TransactionPayer(s.publicKey),
	)
	if err != nil {
		return "", fmt.Errorf("building transaction: %w", err)
	}

	if _, err := tx.Sign(s.signer); err != nil {
		return "", fmt.Errorf("signing transaction: %w", err)
	}

	sig, err := s.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: s.commitment,
	})
	if err != nil {
		return "", fmt.Errorf("sending transaction: %w", err)
	}
	return sig.String(), nil
}

// Confirmed reports whether the transaction landed without an error.
func (s *SolanaSender) Confirmed(ctx context.Context, signature string) (bool, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return false, fmt.Errorf("invalid transaction signature: %w", err)
	}

	info, err := s.client.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding: solana.EncodingBase64,
	})
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return false, nil
		}
		return false, fmt.Errorf("fetching transaction: %w", err)
	}
	return info.Meta == nil || info.Meta.Err == nil, nil
}

func (s *SolanaSender) signer(key solana.PublicKey) *solana.PrivateKey {
	if key.Equals(s.publicKey) {
		return &s.privateKey
	}
	return nil
}

func (s *SolanaSender) checkBalance(ctx context.Context, lamports uint64) error {
	balance, err := s.client.GetBalance(ctx, s.publicKey, rpc.CommitmentFinalized)
	if err != nil {
		return fmt.Errorf("fetching balance: %w", err)
	}
	required := lamports + feeReserveLamports
	if balance.Value < required {
		return fmt.Errorf("insufficient balance: have %.9f SOL, need %.9f SOL",
			float64(balance.Value)/lamportsPerSOL, float64(required)/lamportsPerSOL)
	}
	return nil
}

// mintDecimals reads the decimals byte of the mint account. The field
// sits at offset 44 in the mint layout.
func (s *SolanaSender) mintDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error) {
	info, err := s.client.GetAccountInfo(ctx, mint)
	if err != nil {
		return 0, fmt.Errorf("fetching mint account: %w", err)
	}
	if info.Value == nil {
		return 0, fmt.Errorf("mint account not found")
	}
	data := info.Value.Data.GetBinary()
	if len(data) < 45 {
		return 0, fmt.Errorf("malformed mint account data")
	}
	return data[44], nil
}

func parseLamports(amount string) (uint64, error) {
	parsed, err := strconv.ParseFloat(amount, 64)
	if err != nil || parsed < 0 {
		return 0, fmt.Errorf("invalid amount: %s", amount)
	}
	return uint64(parsed * lamportsPerSOL), nil
}

func parseTokenAmount(amount string, decimals uint8) (uint64, error) {
	parsed, err := strconv.ParseFloat(amount, 64)
	if err != nil || parsed < 0 {
		return 0, fmt.Errorf("invalid amount: %s", amount)
	}
	multiplier := uint64(1)
	for i := uint8(0); i < decimals; i++ {
		multiplier *= 10
	}
	return uint64(parsed * float64(multiplier)), nil
}
