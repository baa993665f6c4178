// internal/domain/inventory/http_authority.go
package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// HTTPAuthority talks to a remote inventory authority over its REST
// contract: GET /stock, POST /reserve, POST /release.
type HTTPAuthority struct {
	baseURL string
	client  *http.Client
}

// NewHTTPAuthority creates an HTTP-backed inventory authority client
func NewHTTPAuthority(baseURL string, timeout time.Duration) *HTTPAuthority {
	return &HTTPAuthority{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type reserveRequest struct {
	CartID     string `json:"cart_id"`
	SKU        string `json:"sku"`
	VariantKey string `json:"variant_key"`
	Quantity   int    `json:"quantity"`
	TTLSeconds int    `json:"ttl_seconds"`
}

type reserveResponse struct {
	ReservationID string    `json:"reservation_id"`
	ExpiresAt     time.Time `json:"expires_at"`
}

type releaseRequest struct {
	CartID     string `json:"cart_id"`
	SKU        string `json:"sku"`
	VariantKey string `json:"variant_key"`
	Quantity   int    `json:"quantity"`
}

type stockResponse struct {
	SKU        string `json:"sku"`
	VariantKey string `json:"variant_key"`
	Available  int    `json:"available"`
}

// GetStock fetches current availability for a variant
func (a *HTTPAuthority) GetStock(ctx context.Context, sku, variantKey string) (StockLevel, error) {
	endpoint := fmt.Sprintf("%s/stock?sku=%s&variant_key=%s",
		a.baseURL, url.QueryEscape(sku), url.QueryEscape(variantKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return StockLevel{}, fmt.Errorf("failed to build stock request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return StockLevel{}, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return StockLevel{SKU: sku, VariantKey: variantKey, ObservedAt: time.Now().UTC()}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return StockLevel{}, fmt.Errorf("%w: stock endpoint returned %d", ErrUnreachable, resp.StatusCode)
	}

	var body stockResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return StockLevel{}, fmt.Errorf("failed to decode stock response: %w", err)
	}

	return StockLevel{
		SKU:        sku,
		VariantKey: variantKey,
		Available:  body.Available,
		ObservedAt: time.Now().UTC(),
	}, nil
}

// Reserve places a hold; a 409 from the authority maps to ErrOutOfStock
func (a *HTTPAuthority) Reserve(ctx context.Context, cartID, sku, variantKey string, quantity int, ttl time.Duration) (*Reservation, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("reservation quantity must be positive, got %d", quantity)
	}

	payload, err := json.Marshal(reserveRequest{
		CartID:     cartID,
		SKU:        sku,
		VariantKey: variantKey,
		Quantity:   quantity,
		TTLSeconds: int(ttl.Seconds()),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode reserve request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/reserve", bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build reserve request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusConflict:
		return nil, fmt.Errorf("%w: %s/%s", ErrOutOfStock, sku, variantKey)
	default:
		return nil, fmt.Errorf("%w: reserve endpoint returned %d", ErrUnreachable, resp.StatusCode)
	}

	var body reserveResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode reserve response: %w", err)
	}

	return &Reservation{
		ID:         body.ReservationID,
		CartID:     cartID,
		SKU:        sku,
		VariantKey: variantKey,
		Quantity:   quantity,
		ExpiresAt:  body.ExpiresAt,
	}, nil
}

// Release gives back quantity units; absent holds are a remote no-op
func (a *HTTPAuthority) Release(ctx context.Context, cartID, sku, variantKey string, quantity int) error {
	payload, err := json.Marshal(releaseRequest{
		CartID:     cartID,
		SKU:        sku,
		VariantKey: variantKey,
		Quantity:   quantity,
	})
	if err != nil {
		return fmt.Errorf("failed to encode release request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/release", bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to build release request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("%w: release endpoint returned %d", ErrUnreachable, resp.StatusCode)
	}
	return nil
}
