// Package advisor is the REST client for the pool recommendation service.
package advisor

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

// Client asks the advisor service for pool recommendations.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates an advisor client.
func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// Recommendations fetches one risky and/or one conservative pool for the
// given budgets. Budgets are USD decimals; a zero budget for a band tells
// the advisor to skip that band. An entirely empty response maps to
// ErrNoRecommendations.
func (c *Client) Recommendations(ctx context.Context, userID string, totalUSD, riskyUSD, conservativeUSD float64) (domain.Recommendations, error) {
	query := url.Values{
		"userId":          {userID},
		"totalUsd":        {formatUSD(totalUSD)},
		"riskyUsd":        {formatUSD(riskyUSD)},
		"conservativeUsd": {formatUSD(conservativeUSD)},
	}

	u := c.baseURL + "/recommendations?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.Recommendations{}, fmt.Errorf("advisor: building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Recommendations{}, fmt.Errorf("advisor: fetch recommendations: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Recommendations{}, fmt.Errorf("advisor: reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.Recommendations{}, fmt.Errorf("advisor: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return domain.Recommendations{}, fmt.Errorf("advisor: decode response: %w", err)
	}

	recs := domain.Recommendations{
		Risky:        apiResp.Risky.toDomain(domain.BandRisky),
		Conservative: apiResp.Conservative.toDomain(domain.BandConservative),
	}
	if recs.Empty() {
		return domain.Recommendations{}, domain.ErrNoRecommendations
	}
	return recs, nil
}

func formatUSD(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
