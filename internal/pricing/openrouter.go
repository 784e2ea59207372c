package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const defaultCatalogURL = "https://openrouter.ai/api/v1/models"

// OpenRouterFetcher reads the public OpenRouter model catalog and
// converts its per-token prices into a per-thousand Table.
type OpenRouterFetcher struct {
	URL        string
	APIKey     string
	HTTPClient *http.Client
}

func NewOpenRouterFetcher(url, apiKey string) *OpenRouterFetcher {
	if url == "" {
		url = defaultCatalogURL
	}
	return &OpenRouterFetcher{
		URL:    url,
		APIKey: apiKey,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type catalogResponse struct {
	Data []catalogModel `json:"data"`
}

type catalogModel struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Pricing catalogPricing `json:"pricing"`
}

// OpenRouter serializes per-token prices as decimal strings.
type catalogPricing struct {
	Prompt     string `json:"prompt"`
	Completion string `json:"completion"`
}

func (f *OpenRouterFetcher) Fetch(ctx context.Context) (Table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if f.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.APIKey)
	}

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch model catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("model catalog returned status %d: %s", resp.StatusCode, string(body))
	}

	var catalog catalogResponse
	if err := json.NewDecoder(resp.Body).Decode(&catalog); err != nil {
		return nil, fmt.Errorf("failed to parse model catalog: %w", err)
	}

	table := make(Table, len(catalog.Data))
	for _, model := range catalog.Data {
		if model.ID == "" {
			continue
		}
		prompt, okIn := parsePerToken(model.Pricing.Prompt)
		completion, okOut := parsePerToken(model.Pricing.Completion)
		if !okIn || !okOut {
			continue
		}
		table[model.ID] = ModelPrice{
			InputPerThousand:  prompt * 1000,
			OutputPerThousand: completion * 1000,
		}
	}
	return table, nil
}

func parsePerToken(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}
