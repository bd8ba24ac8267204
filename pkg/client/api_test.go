package client

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walletkit/pkg/token"
)

func newTestServer(t *testing.T, handler func(path string, body map[string]any) (int, any)) *Client {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		status, resp := handler(r.URL.Path, body)
		w.WriteHeader(status)
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(srv.Close)

	return New(srv.URL, "test-key")
}

func TestGetSwapQuote(t *testing.T) {
	t.Run("returns quote from the router endpoint", func(t *testing.T) {
		c := newTestServer(t, func(path string, body map[string]any) (int, any) {
			assert.Equal(t, "/swap/quote", path)
			assert.Equal(t, "1", body["amount"])
			assert.Equal(t, "from", body["amountReference"])
			return http.StatusOK, map[string]any{"formattedAmount": "2500.5", "amountUSD": "2499.90"}
		})

		quote, err := c.GetSwapQuote(context.Background(), QuoteParams{
			From:            &token.Eth,
			To:              &token.USDC,
			Amount:          "1",
			AmountReference: "from",
			MaxSlippage:     3,
		})
		require.NoError(t, err)
		assert.Equal(t, "2500.5", quote.FormattedAmount)
		assert.Equal(t, "2499.90", quote.AmountUSD)
	})

	t.Run("routes through the aggregator when asked", func(t *testing.T) {
		c := newTestServer(t, func(path string, body map[string]any) (int, any) {
			assert.Equal(t, "/swap/aggregator/quote", path)
			return http.StatusOK, map[string]any{"formattedAmount": "1"}
		})

		_, err := c.GetSwapQuote(context.Background(), QuoteParams{
			From: &token.Eth, To: &token.USDC, Amount: "1", UseAggregator: true,
		})
		require.NoError(t, err)
	})

	t.Run("error-shaped payload surfaces as APIError", func(t *testing.T) {
		c := newTestServer(t, func(path string, body map[string]any) (int, any) {
			return http.StatusOK, map[string]any{
				"code":    "SWAP_QUOTE_LOW_LIQUIDITY_ERROR",
				"message": "Insufficient liquidity for swap",
			}
		})

		_, err := c.GetSwapQuote(context.Background(), QuoteParams{
			From: &token.Eth, To: &token.USDC, Amount: "1",
		})
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "SWAP_QUOTE_LOW_LIQUIDITY_ERROR", apiErr.Code)
		assert.Equal(t, "Insufficient liquidity for swap", apiErr.Message)
	})

	t.Run("non-2xx with error body surfaces as APIError", func(t *testing.T) {
		c := newTestServer(t, func(path string, body map[string]any) (int, any) {
			return http.StatusBadRequest, map[string]any{"code": "SWAP_QUOTE_ERROR", "error": "bad pair"}
		})

		_, err := c.GetSwapQuote(context.Background(), QuoteParams{
			From: &token.Eth, To: &token.USDC, Amount: "1",
		})
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "SWAP_QUOTE_ERROR", apiErr.Code)
	})
}

func TestBuildSwapTransaction(t *testing.T) {
	t.Run("decodes calls with hex values", func(t *testing.T) {
		c := newTestServer(t, func(path string, body map[string]any) (int, any) {
			assert.Equal(t, "/swap/build", path)
			return http.StatusOK, map[string]any{
				"calls": []map[string]string{
					{"to": "0x1111111111111111111111111111111111111111", "data": "0x095ea7b3"},
					{"to": "0x2222222222222222222222222222222222222222", "value": "0xde0b6b3a7640000", "data": "0xabcdef01"},
				},
				"quote": map[string]any{"formattedAmount": "2500"},
			}
		})

		tx, err := c.BuildSwapTransaction(context.Background(), BuildParams{
			QuoteParams: QuoteParams{From: &token.Eth, To: &token.USDC, Amount: "1"},
		})
		require.NoError(t, err)
		require.Len(t, tx.Calls, 2)
		assert.Nil(t, tx.Calls[0].Value)
		assert.Equal(t, big.NewInt(1e18), tx.Calls[1].Value)
		assert.Equal(t, []byte{0x09, 0x5e, 0xa7, 0xb3}, tx.Calls[0].Data)
		assert.Equal(t, "2500", tx.Quote.FormattedAmount)
	})

	t.Run("rejects malformed call target", func(t *testing.T) {
		c := newTestServer(t, func(path string, body map[string]any) (int, any) {
			return http.StatusOK, map[string]any{
				"calls": []map[string]string{{"to": "not-an-address"}},
			}
		})

		_, err := c.BuildSwapTransaction(context.Background(), BuildParams{
			QuoteParams: QuoteParams{From: &token.Eth, To: &token.USDC, Amount: "1"},
		})
		require.Error(t, err)
		var apiErr *APIError
		assert.False(t, errors.As(err, &apiErr))
	})
}

func TestGetTokens(t *testing.T) {
	c := newTestServer(t, func(path string, body map[string]any) (int, any) {
		assert.Equal(t, "/tokens", path)
		assert.Equal(t, "DEGEN", body["search"])
		return http.StatusOK, map[string]any{
			"tokens": []map[string]any{
				{"symbol": "DEGEN", "decimals": 18, "chainId": 8453},
			},
		}
	})

	tokens, err := c.GetTokens(context.Background(), GetTokensParams{Search: "DEGEN", Limit: 10})
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "DEGEN", tokens[0].Symbol)
}

func TestGetMintDetails(t *testing.T) {
	c := newTestServer(t, func(path string, body map[string]any) (int, any) {
		assert.Equal(t, "/mint/details", path)
		assert.Equal(t, "0x1111111111111111111111111111111111111111", body["contractAddress"])
		return http.StatusOK, map[string]any{
			"name":              "Based Frogs",
			"price":             "0.004",
			"currency":          "ETH",
			"isEligibleToMint":  true,
			"maxMintsPerWallet": 5,
		}
	})

	details, err := c.GetMintDetails(context.Background(), MintDetailsParams{
		ContractAddress: "0x1111111111111111111111111111111111111111",
	})
	require.NoError(t, err)
	assert.Equal(t, "Based Frogs", details.Name)
	assert.True(t, details.IsEligible)
	assert.Equal(t, 5, details.MaxMintsPerTx)
}

func TestGetExchangeRate(t *testing.T) {
	c := newTestServer(t, func(path string, body map[string]any) (int, any) {
		assert.Equal(t, "/onramp/exchange-rate", path)
		assert.Equal(t, "USD", body["fiatCurrency"])
		assert.Equal(t, "ETH", body["asset"])
		return http.StatusOK, map[string]any{"fiatCurrency": "USD", "asset": "ETH", "rate": 0.0004}
	})

	rate, err := c.GetExchangeRate(context.Background(), "USD", "ETH")
	require.NoError(t, err)
	assert.Equal(t, 0.0004, rate.Rate)
}
