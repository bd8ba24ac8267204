// Package client talks to the swap/onramp API: quotes, transaction builds,
// token search, mint details and fiat exchange rates. The feature providers
// consume it through narrow interfaces so tests can swap it out.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sirupsen/logrus"

	"walletkit/pkg/token"
	"walletkit/pkg/wallet"
)

// APIError is the error-shaped payload the API returns in place of a
// result. It is detected by shape (a non-empty code), not by HTTP status.
type APIError struct {
	Code    string `json:"code"`
	Err     string `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Err)
}

// Client is the HTTP API client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	log        *logrus.Entry
}

// New creates a client for the given API base URL.
func New(baseURL, apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		log:        logrus.WithField("component", "api-client"),
	}
}

// QuoteParams keys a quote request. AmountReference says which side Amount
// refers to ("from" or "to").
type QuoteParams struct {
	From            *token.Token `json:"from"`
	To              *token.Token `json:"to"`
	Amount          string       `json:"amount"`
	AmountReference string       `json:"amountReference"`
	MaxSlippage     float64      `json:"maxSlippage"`
	UseAggregator   bool         `json:"useAggregator"`
}

// Quote is a price estimate for one direction of a pair.
type Quote struct {
	FormattedAmount string          `json:"formattedAmount"`
	AmountUSD       string          `json:"amountUSD,omitempty"`
	Response        json.RawMessage `json:"response,omitempty"`
}

// BuildParams extends QuoteParams with the submitting account.
type BuildParams struct {
	QuoteParams
	Address common.Address `json:"address"`
}

// SwapTransaction is a successful build: the calls to submit (an ERC-20
// approval leg first when the source token needs one) plus the quote the
// build was priced against.
type SwapTransaction struct {
	Calls []wallet.Call
	Quote *Quote
}

type apiCall struct {
	To    string `json:"to"`
	Value string `json:"value,omitempty"`
	Data  string `json:"data,omitempty"`
}

type quoteResponse struct {
	APIError
	FormattedAmount string          `json:"formattedAmount"`
	AmountUSD       string          `json:"amountUSD"`
	Response        json.RawMessage `json:"response"`
}

type buildResponse struct {
	APIError
	Calls []apiCall `json:"calls"`
	Quote *Quote    `json:"quote"`
}

// GetSwapQuote fetches a quote. UseAggregator routes between the aggregator
// and the router endpoints.
func (c *Client) GetSwapQuote(ctx context.Context, params QuoteParams) (*Quote, error) {
	path := "/swap/quote"
	if params.UseAggregator {
		path = "/swap/aggregator/quote"
	}

	var resp quoteResponse
	if err := c.post(ctx, path, params, &resp); err != nil {
		return nil, err
	}
	if resp.Code != "" {
		return nil, &resp.APIError
	}
	return &Quote{
		FormattedAmount: resp.FormattedAmount,
		AmountUSD:       resp.AmountUSD,
		Response:        resp.Response,
	}, nil
}

// BuildSwapTransaction asks the API to build the swap calls. An
// error-shaped payload comes back as *APIError.
func (c *Client) BuildSwapTransaction(ctx context.Context, params BuildParams) (*SwapTransaction, error) {
	path := "/swap/build"
	if params.UseAggregator {
		path = "/swap/aggregator/build"
	}

	var resp buildResponse
	if err := c.post(ctx, path, params, &resp); err != nil {
		return nil, err
	}
	if resp.Code != "" {
		return nil, &resp.APIError
	}

	calls, err := decodeCalls(resp.Calls)
	if err != nil {
		return nil, err
	}
	return &SwapTransaction{Calls: calls, Quote: resp.Quote}, nil
}

// GetTokensParams narrows a token search.
type GetTokensParams struct {
	Limit  int    `json:"limit,omitempty"`
	Search string `json:"search,omitempty"`
	Page   int    `json:"page,omitempty"`
}

type tokensResponse struct {
	APIError
	Tokens []token.Token `json:"tokens"`
}

// GetTokens searches the token list by name, symbol or address.
func (c *Client) GetTokens(ctx context.Context, params GetTokensParams) ([]token.Token, error) {
	var resp tokensResponse
	if err := c.post(ctx, "/tokens", params, &resp); err != nil {
		return nil, err
	}
	if resp.Code != "" {
		return nil, &resp.APIError
	}
	return resp.Tokens, nil
}

// MintDetailsParams identifies one mintable token.
type MintDetailsParams struct {
	ContractAddress string `json:"contractAddress"`
	TakerAddress    string `json:"takerAddress,omitempty"`
	TokenID         string `json:"tokenId,omitempty"`
}

// MintDetails describes a mintable token and the taker's eligibility.
type MintDetails struct {
	Name          string `json:"name"`
	ImageURL      string `json:"imageUrl"`
	Price         string `json:"price"`
	Currency      string `json:"currency"`
	MintFee       string `json:"mintFee"`
	IsEligible    bool   `json:"isEligibleToMint"`
	TotalOwners   int    `json:"totalOwners"`
	MaxMintsPerTx int    `json:"maxMintsPerWallet"`
}

type mintDetailsResponse struct {
	APIError
	MintDetails
}

// GetMintDetails fetches collection and eligibility data for a mint.
func (c *Client) GetMintDetails(ctx context.Context, params MintDetailsParams) (*MintDetails, error) {
	var resp mintDetailsResponse
	if err := c.post(ctx, "/mint/details", params, &resp); err != nil {
		return nil, err
	}
	if resp.Code != "" {
		return nil, &resp.APIError
	}
	details := resp.MintDetails
	return &details, nil
}

// MintTransactionParams keys a mint build.
type MintTransactionParams struct {
	ContractAddress string `json:"contractAddress"`
	TakerAddress    string `json:"takerAddress"`
	TokenID         string `json:"tokenId,omitempty"`
	Quantity        int    `json:"quantity"`
}

// BuildMintTransaction asks the API for the calls minting the token.
func (c *Client) BuildMintTransaction(ctx context.Context, params MintTransactionParams) ([]wallet.Call, error) {
	var resp buildResponse
	if err := c.post(ctx, "/mint/build", params, &resp); err != nil {
		return nil, err
	}
	if resp.Code != "" {
		return nil, &resp.APIError
	}
	return decodeCalls(resp.Calls)
}

// ExchangeRate converts between a fiat currency and an asset.
type ExchangeRate struct {
	FiatCurrency string  `json:"fiatCurrency"`
	Asset        string  `json:"asset"`
	Rate         float64 `json:"rate"`
}

type exchangeRateResponse struct {
	APIError
	ExchangeRate
}

// GetExchangeRate fetches the fiat/asset rate used by the fund flow.
func (c *Client) GetExchangeRate(ctx context.Context, fiatCurrency, asset string) (*ExchangeRate, error) {
	req := map[string]string{"fiatCurrency": fiatCurrency, "asset": asset}
	var resp exchangeRateResponse
	if err := c.post(ctx, "/onramp/exchange-rate", req, &resp); err != nil {
		return nil, err
	}
	if resp.Code != "" {
		return nil, &resp.APIError
	}
	rate := resp.ExchangeRate
	return &rate, nil
}

func decodeCalls(raw []apiCall) ([]wallet.Call, error) {
	calls := make([]wallet.Call, 0, len(raw))
	for _, rc := range raw {
		if !common.IsHexAddress(rc.To) {
			return nil, fmt.Errorf("invalid call target address: %s", rc.To)
		}
		call := wallet.Call{To: common.HexToAddress(rc.To)}
		if rc.Value != "" {
			value, err := hexutil.DecodeBig(rc.Value)
			if err != nil {
				return nil, fmt.Errorf("invalid call value: %w", err)
			}
			call.Value = value
		}
		if rc.Data != "" {
			data, err := hexutil.Decode(rc.Data)
			if err != nil {
				return nil, fmt.Errorf("invalid call data: %w", err)
			}
			call.Data = data
		}
		calls = append(calls, call)
	}
	return calls, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Try to extract the actual error message from the response.
		var apiErr APIError
		if jsonErr := json.Unmarshal(bodyBytes, &apiErr); jsonErr == nil && apiErr.Code != "" {
			return &apiErr
		}
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
