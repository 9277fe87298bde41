// Package oneinch is the REST client for the 1inch aggregator APIs: spot
// prices, swap transaction construction, and the router spender address.
package oneinch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/alanyoungcy/poolpilot/internal/domain"
)

// Client is the 1inch REST client, scoped to a single chain.
type Client struct {
	baseURL    string
	apiKey     string
	chainID    int64
	slippage   string
	httpClient *http.Client
}

// NewClient creates a 1inch client.
//
// baseURL is the API root, e.g. "https://api.1inch.dev". slippage is the
// swap slippage tolerance in percent as a decimal string, e.g. "1".
func NewClient(baseURL, apiKey string, chainID int64, slippage string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		chainID:    chainID,
		slippage:   slippage,
		httpClient: httpClient,
	}
}

// SpotPrices fetches USD spot prices for the given token addresses. Tokens
// the API does not price are absent from the result; callers must treat an
// absent entry as missing, never as zero.
func (c *Client) SpotPrices(ctx context.Context, addresses []string) (map[string]float64, error) {
	if len(addresses) == 0 {
		return map[string]float64{}, nil
	}

	path := fmt.Sprintf("/price/v1.1/%d/%s", c.chainID, strings.Join(addresses, ","))
	query := url.Values{"currency": {"USD"}}

	body, err := c.doRequest(ctx, path, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPriceUnavailable, err)
	}

	var raw map[string]string
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode price response: %v", domain.ErrPriceUnavailable, err)
	}

	prices := make(map[string]float64, len(raw))
	for addr, s := range raw {
		p, err := strconv.ParseFloat(s, 64)
		if err != nil || p <= 0 {
			continue
		}
		prices[strings.ToLower(addr)] = p
	}
	return prices, nil
}

// Swap builds an aggregator swap transaction for the exact source amount.
// The returned transaction is ready to sign; estimation is left on so the
// API rejects swaps that would revert.
func (c *Client) Swap(ctx context.Context, params SwapParams) (SwapTx, error) {
	path := fmt.Sprintf("/swap/v6.1/%d/swap", c.chainID)
	query := url.Values{
		"src":              {params.Src},
		"dst":              {params.Dst},
		"amount":           {params.Amount},
		"from":             {params.From},
		"slippage":         {c.slippage},
		"disableEstimate":  {"false"},
		"allowPartialFill": {"false"},
	}

	body, err := c.doRequest(ctx, path, query)
	if err != nil {
		return SwapTx{}, fmt.Errorf("%w: %v", domain.ErrSwapQuoteUnavailable, err)
	}

	var resp swapResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return SwapTx{}, fmt.Errorf("%w: decode swap response: %v", domain.ErrSwapQuoteUnavailable, err)
	}
	if resp.Tx.To == "" || resp.Tx.Data == "" {
		return SwapTx{}, fmt.Errorf("%w: swap response missing transaction", domain.ErrSwapQuoteUnavailable)
	}
	return resp.Tx, nil
}

// RouterAddress fetches the aggregation router address swaps must be
// approved for.
func (c *Client) RouterAddress(ctx context.Context) (string, error) {
	path := fmt.Sprintf("/swap/v6.1/%d/approve/spender", c.chainID)

	body, err := c.doRequest(ctx, path, nil)
	if err != nil {
		return "", fmt.Errorf("oneinch: fetch router address: %w", err)
	}

	var resp spenderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("oneinch: decode spender response: %w", err)
	}
	if resp.Address == "" {
		return "", fmt.Errorf("oneinch: spender response missing address")
	}
	return resp.Address, nil
}

// doRequest performs an authenticated GET and returns the raw body on 2xx.
func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: %s", domain.ErrRateLimited, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Description != "" {
			return nil, fmt.Errorf("status %d: %s", resp.StatusCode, apiErr.Description)
		}
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return body, nil
}
