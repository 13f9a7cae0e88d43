package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/bellwetherhq/bellwether/internal/domain"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
)

// HTTPProvider pulls signals from a feed speaking the signal feed API:
// GET {base}/v1/signals?market_id={id} returning a data array of
// normalized signal observations.
type HTTPProvider struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
}

func NewHTTPProvider(baseURL, apiKey string) *HTTPProvider {
	return &HTTPProvider{
		baseURL:    baseURL,
		httpClient: newRetryClient(),
		apiKey:     apiKey,
	}
}

func (p *HTTPProvider) Name() string {
	if u, err := url.Parse(p.baseURL); err == nil && u.Host != "" {
		return u.Host
	}
	return p.baseURL
}

func (p *HTTPProvider) Fetch(ctx context.Context, marketID uuid.UUID) ([]domain.BeliefSignal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/v1/signals?market_id=%s", p.baseURL, marketID), nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching signals from %s: %w", p.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("signal feed error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Data []struct {
			Source     string            `json:"source"`
			Kind       string            `json:"kind"`
			Value      float64           `json:"value"`
			Weight     float64           `json:"weight"`
			Confidence *float64          `json:"confidence"`
			ObservedAt time.Time         `json:"observed_at"`
			Metadata   map[string]string `json:"metadata"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("error decoding response: %w", err)
	}

	var signals []domain.BeliefSignal
	for _, d := range response.Data {
		weight := d.Weight
		if weight == 0 {
			weight = 1.0
		}
		signals = append(signals, domain.BeliefSignal{
			MarketID:   marketID,
			Source:     d.Source,
			Kind:       domain.SignalKind(d.Kind),
			Value:      d.Value,
			Weight:     weight,
			Confidence: d.Confidence,
			ObservedAt: d.ObservedAt,
			Metadata:   d.Metadata,
		})
	}

	return signals, nil
}

// newRetryClient creates an HTTP client with retry capabilities.
func newRetryClient() *http.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 3
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 3 * time.Second
	c.Logger = nil
	return c.StandardClient()
}
