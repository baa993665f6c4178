// internal/domain/checkout/initiator.go
package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/your-org/storefront-core/internal/domain/cart"
)

// HTTPInitiator hands a cart snapshot to a catalog's checkout service and
// returns the redirect URL the shopper completes payment at.
type HTTPInitiator struct {
	baseURL string
	client  *http.Client
}

// NewHTTPInitiator creates an initiator for one catalog's checkout service
func NewHTTPInitiator(baseURL string, timeout time.Duration) *HTTPInitiator {
	return &HTTPInitiator{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type beginCheckoutRequest struct {
	CartID string          `json:"cart_id"`
	Items  []cart.LineItem `json:"items"`
	Totals cart.Totals     `json:"totals"`
}

type beginCheckoutResponse struct {
	RedirectURL string `json:"redirect_url"`
}

// BeginCheckout posts the snapshot to the downstream checkout service
func (i *HTTPInitiator) BeginCheckout(ctx context.Context, snapshot *cart.Cart) (string, error) {
	payload, err := json.Marshal(beginCheckoutRequest{
		CartID: snapshot.ID(),
		Items:  snapshot.Items,
		Totals: snapshot.Totals(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode checkout request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.baseURL+"/checkout/sessions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build checkout request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("checkout service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("checkout service returned status %d", resp.StatusCode)
	}

	var body beginCheckoutResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode checkout response: %w", err)
	}
	if body.RedirectURL == "" {
		return "", fmt.Errorf("checkout service returned no redirect URL")
	}

	return body.RedirectURL, nil
}

// LocalInitiator completes checkouts in-process. Used in development and
// tests where no downstream checkout service is configured.
type LocalInitiator struct {
	Origin cart.CatalogOrigin
}

// BeginCheckout mints a local confirmation reference
func (i *LocalInitiator) BeginCheckout(_ context.Context, snapshot *cart.Cart) (string, error) {
	return fmt.Sprintf("/orders/confirm/%s/%s", i.Origin, uuid.New().String()), nil
}
