package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	oneclick "github.com/defuse-protocol/one-click-sdk-go"
	"github.com/sirupsen/logrus"
)

// CrossChainQuote is a quote from the intents aggregator, including the
// deposit address that funds the swap.
type CrossChainQuote struct {
	DepositAddress     string
	AmountInFormatted  string
	AmountOutFormatted string
	TimeEstimateSec    float64
}

// CrossChainParams keys a cross-chain quote by symbol and chain rather
// than contract address.
type CrossChainParams struct {
	Amount        string
	FromSymbol    string
	ToSymbol      string
	FromChain     string
	ToChain       string
	RecipientAddr string
	RefundAddr    string
	SlippageBps   int32
}

// CrossChain wraps the 1Click intents API for swaps that leave the active
// chain, which the on-chain swap builder cannot serve.
type CrossChain struct {
	client *oneclick.APIClient
	ctx    context.Context
	log    *logrus.Entry
}

// NewCrossChain creates an authenticated cross-chain client.
func NewCrossChain(jwtToken string) *CrossChain {
	config := oneclick.NewConfiguration()
	ctx := context.WithValue(context.Background(), oneclick.ContextAccessToken, jwtToken)

	return &CrossChain{
		client: oneclick.NewAPIClient(config),
		ctx:    ctx,
		log:    logrus.WithField("component", "cross-chain"),
	}
}

// SupportedTokens retrieves all tokens the aggregator can route.
func (c *CrossChain) SupportedTokens() ([]oneclick.TokenResponse, error) {
	resp, httpResp, err := c.client.OneClickAPI.GetTokens(c.ctx).Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get tokens: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != 200 {
		return nil, fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}
	return resp, nil
}

func (c *CrossChain) findToken(symbol, chain string) (*oneclick.TokenResponse, error) {
	tokens, err := c.SupportedTokens()
	if err != nil {
		return nil, err
	}

	symbol = strings.ToUpper(symbol)
	chain = strings.ToLower(chain)

	for _, t := range tokens {
		if strings.ToUpper(t.GetSymbol()) != symbol {
			continue
		}
		if chain == "" || strings.ToLower(t.GetBlockchain()) == chain {
			return &t, nil
		}
	}
	if chain != "" {
		return nil, fmt.Errorf("token '%s' not found on chain '%s'", symbol, chain)
	}
	return nil, fmt.Errorf("token '%s' not found", symbol)
}

// GetQuote generates a cross-chain quote with a real deposit address.
func (c *CrossChain) GetQuote(params CrossChainParams) (*CrossChainQuote, error) {
	fromToken, err := c.findToken(params.FromSymbol, params.FromChain)
	if err != nil {
		return nil, fmt.Errorf("source token error: %w", err)
	}
	toToken, err := c.findToken(params.ToSymbol, params.ToChain)
	if err != nil {
		return nil, fmt.Errorf("destination token error: %w", err)
	}

	amountFloat, err := strconv.ParseFloat(params.Amount, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}
	smallestUnit := amountFloat * math.Pow(10, float64(fromToken.GetDecimals()))
	amountStr := fmt.Sprintf("%.0f", smallestUnit)

	if params.RecipientAddr == "" {
		return nil, fmt.Errorf("recipient address is required")
	}
	refundTo := params.RefundAddr
	if refundTo == "" {
		refundTo = params.RecipientAddr
	}
	slippage := params.SlippageBps
	if slippage == 0 {
		slippage = 100
	}

	deadline := time.Now().Add(24 * time.Hour)
	quoteReq := oneclick.NewQuoteRequest(
		false,
		"EXACT_INPUT",
		float32(slippage),
		fromToken.GetAssetId(),
		"ORIGIN_CHAIN",
		toToken.GetAssetId(),
		amountStr,
		refundTo,
		"ORIGIN_CHAIN",
		params.RecipientAddr,
		"DESTINATION_CHAIN",
		deadline,
	)

	resp, httpResp, err := c.client.OneClickAPI.GetQuote(c.ctx).QuoteRequest(*quoteReq).Execute()
	if err != nil {
		if httpResp != nil {
			defer httpResp.Body.Close()
			return nil, decodeOneClickError(httpResp.StatusCode, httpResp.Body, err)
		}
		return nil, fmt.Errorf("failed to get quote from API: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}
	if resp == nil {
		return nil, fmt.Errorf("empty quote response")
	}

	quote := resp.GetQuote()
	return &CrossChainQuote{
		DepositAddress:     quote.GetDepositAddress(),
		AmountInFormatted:  quote.GetAmountInFormatted(),
		AmountOutFormatted: quote.GetAmountOutFormatted(),
		TimeEstimateSec:    float64(quote.GetTimeEstimate()),
	}, nil
}

// GetStatus checks the execution status of a cross-chain swap.
func (c *CrossChain) GetStatus(depositAddress string) (*oneclick.GetExecutionStatusResponse, error) {
	resp, httpResp, err := c.client.OneClickAPI.GetExecutionStatus(c.ctx).DepositAddress(depositAddress).Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != 200 {
		return nil, fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}
	return resp, nil
}

// SubmitDepositTx reports the deposit transaction hash to the aggregator.
func (c *CrossChain) SubmitDepositTx(depositAddress, txHash string) error {
	req := oneclick.NewSubmitDepositTxRequest(depositAddress, txHash)

	_, httpResp, err := c.client.OneClickAPI.SubmitDepositTx(c.ctx).SubmitDepositTxRequest(*req).Execute()
	if err != nil {
		return fmt.Errorf("failed to submit deposit: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != 200 && httpResp.StatusCode != 201 {
		return fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}
	return nil
}

func decodeOneClickError(statusCode int, body io.Reader, fallback error) error {
	bodyBytes, readErr := io.ReadAll(body)
	if readErr != nil || len(bodyBytes) == 0 {
		return fmt.Errorf("failed to get quote from API (status: %d): %w", statusCode, fallback)
	}
	var errorResp map[string]interface{}
	if jsonErr := json.Unmarshal(bodyBytes, &errorResp); jsonErr == nil {
		if message, ok := errorResp["message"].(string); ok {
			return fmt.Errorf("API error (status %d): %s", statusCode, message)
		}
	}
	return fmt.Errorf("API error (status %d): %s", statusCode, string(bodyBytes))
}
