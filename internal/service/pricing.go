package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"magadrive/internal/domain"
)

// PricingService quotes a price for a route and vehicle class.
type PricingService interface {
	Quote(ctx context.Context, distanceMeters float64, etaSeconds int, class domain.VehicleClass) (price float64, currency string, err error)
}

// PricingClient calls the external pricing core over HTTP.
type PricingClient struct {
	baseURL string
	client  *http.Client
}

// NewPricingClient creates a new PricingClient. A non-positive timeout
// falls back to 5 seconds.
func NewPricingClient(baseURL string, timeout time.Duration) *PricingClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PricingClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type priceRequest struct {
	DistanceM    float64 `json:"distanceM"`
	EtaSec       int     `json:"etaSec"`
	VehicleClass string  `json:"vehicleClass"`
}

type priceResponse struct {
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
}

// Quote asks the pricing core for a price.
func (c *PricingClient) Quote(ctx context.Context, distanceMeters float64, etaSeconds int, class domain.VehicleClass) (float64, string, error) {
	body, err := json.Marshal(priceRequest{
		DistanceM:    distanceMeters,
		EtaSec:       etaSeconds,
		VehicleClass: string(class),
	})
	if err != nil {
		return 0, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/price", bytes.NewReader(body))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("%w: pricing: %v", ErrCollaboratorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, "", fmt.Errorf("%w: pricing returned %d", ErrCollaboratorUnavailable, resp.StatusCode)
	}

	var quote priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return 0, "", fmt.Errorf("%w: pricing: %v", ErrCollaboratorUnavailable, err)
	}
	if quote.Currency == "" {
		quote.Currency = "RUB"
	}
	return quote.Price, quote.Currency, nil
}

// Stub pricing table. Class multipliers mirror the pricing core's defaults.
const (
	stubBaseFare  = 120.0
	stubPerKmFare = 32.0
)

var classMultipliers = map[domain.VehicleClass]float64{
	domain.VehicleClassEconomy:  0.7,
	domain.VehicleClassComfort:  1.0,
	domain.VehicleClassBusiness: 1.8,
}

// StubPricing quotes prices from a fixed table without a pricing core.
type StubPricing struct{}

// NewStubPricing creates a new StubPricing.
func NewStubPricing() *StubPricing {
	return &StubPricing{}
}

// Quote computes base fare plus per-kilometer fare, scaled by vehicle class.
func (StubPricing) Quote(ctx context.Context, distanceMeters float64, etaSeconds int, class domain.VehicleClass) (float64, string, error) {
	multiplier, ok := classMultipliers[class]
	if !ok {
		multiplier = 1.0
	}
	price := (stubBaseFare + stubPerKmFare*distanceMeters/1000) * multiplier
	return math.Round(price), "RUB", nil
}

var (
	_ PricingService = (*PricingClient)(nil)
	_ PricingService = (*StubPricing)(nil)
)
