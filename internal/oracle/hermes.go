// Package oracle fetches signed Pyth price updates from Hermes and issues the
// Pyth-on-Sui calls that refresh price-info objects inside a transaction.
package oracle

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HermesClient is the REST client for a Hermes price service.
type HermesClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHermesClient creates a client for baseURL, e.g. "https://hermes-beta.pyth.network".
func NewHermesClient(baseURL string, timeout time.Duration) *HermesClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HermesClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// LatestUpdates returns the latest accumulator messages covering feedIDs.
func (h *HermesClient) LatestUpdates(ctx context.Context, feedIDs []string) ([][]byte, error) {
	if len(feedIDs) == 0 {
		return nil, fmt.Errorf("hermes: no feed ids")
	}
	params := url.Values{}
	for _, id := range feedIDs {
		params.Add("ids[]", id)
	}

	body, err := h.doGet(ctx, "/api/latest_vaas?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("hermes: latest vaas: %w", err)
	}

	var encoded []string
	if err := json.Unmarshal(body, &encoded); err != nil {
		return nil, fmt.Errorf("hermes: decode latest vaas: %w", err)
	}
	out := make([][]byte, 0, len(encoded))
	for i, msg := range encoded {
		raw, err := base64.StdEncoding.DecodeString(msg)
		if err != nil {
			return nil, fmt.Errorf("hermes: decode message %d: %w", i, err)
		}
		out = append(out, raw)
	}
	return out, nil
}

func (h *HermesClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
