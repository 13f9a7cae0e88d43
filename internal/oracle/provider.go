// Package oracle provides clients for retrieving belief signals from
// external feeds and the poller that pushes them into market buffers.
package oracle

import (
	"context"
	"fmt"

	"github.com/bellwetherhq/bellwether/internal/domain"
	"github.com/google/uuid"
)

// Provider constants
const (
	ProviderHTTP = "http"
	ProviderMock = "mock"
)

// Provider fetches belief signals for one market from an external feed.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, marketID uuid.UUID) ([]domain.BeliefSignal, error)
}

// NewProvider creates a signal provider based on the provider name.
// Returns an error if the provider is unknown or the endpoint is empty
// (except for mock).
func NewProvider(provider, endpoint, apiKey string) (Provider, error) {
	switch provider {
	case ProviderHTTP:
		if endpoint == "" {
			return nil, fmt.Errorf("ORACLE_ENDPOINTS is required for the http provider")
		}
		return NewHTTPProvider(endpoint, apiKey), nil

	case ProviderMock:
		return NewMockProvider(), nil

	default:
		return nil, fmt.Errorf("unknown oracle provider: %s (valid options: http, mock)", provider)
	}
}
