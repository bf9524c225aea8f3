package service

import (
	"context"
	"math"
	"testing"
	"time"

	"magadrive/internal/domain"
)

func TestCollaboratorClients_ConfiguredTimeout(t *testing.T) {
	t.Parallel()

	geo := NewGeoClient("http://geo:8081", 2*time.Second)
	if geo.client.Timeout != 2*time.Second {
		t.Errorf("geo timeout = %v, want 2s", geo.client.Timeout)
	}
	pricing := NewPricingClient("http://pricing:8082", 2*time.Second)
	if pricing.client.Timeout != 2*time.Second {
		t.Errorf("pricing timeout = %v, want 2s", pricing.client.Timeout)
	}

	// Unset config falls back to the 5s default.
	geo = NewGeoClient("http://geo:8081", 0)
	if geo.client.Timeout != 5*time.Second {
		t.Errorf("geo default timeout = %v, want 5s", geo.client.Timeout)
	}
	pricing = NewPricingClient("http://pricing:8082", 0)
	if pricing.client.Timeout != 5*time.Second {
		t.Errorf("pricing default timeout = %v, want 5s", pricing.client.Timeout)
	}
}

func TestStubPricing_ClassMultipliers(t *testing.T) {
	t.Parallel()

	pricing := NewStubPricing()
	ctx := context.Background()

	base, currency, err := pricing.Quote(ctx, 5000, 400, domain.VehicleClassComfort)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if currency != "RUB" {
		t.Errorf("expected RUB, got %s", currency)
	}
	if want := math.Round(stubBaseFare + stubPerKmFare*5); base != want {
		t.Errorf("comfort fare = %f, want %f", base, want)
	}

	economy, _, _ := pricing.Quote(ctx, 5000, 400, domain.VehicleClassEconomy)
	business, _, _ := pricing.Quote(ctx, 5000, 400, domain.VehicleClassBusiness)
	if !(economy < base && base < business) {
		t.Errorf("expected economy < comfort < business, got %f, %f, %f", economy, base, business)
	}
	if want := math.Round((stubBaseFare + stubPerKmFare*5) * 1.8); business != want {
		t.Errorf("business fare = %f, want %f", business, want)
	}
}

func TestStubGeo_DeterministicRoutes(t *testing.T) {
	t.Parallel()

	geo := NewStubGeo()
	ctx := context.Background()

	d1, eta1, err := geo.Route(ctx, "Lenina 1", "Portovaya 10")
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	d2, eta2, _ := geo.Route(ctx, "Lenina 1", "Portovaya 10")
	if d1 != d2 || eta1 != eta2 {
		t.Error("expected identical quotes for the same trip")
	}

	if d1 < 1500 || d1 >= 10000 {
		t.Errorf("distance %f outside the stub range", d1)
	}
	if want := int(d1 / stubAvgSpeedMps); eta1 != want {
		t.Errorf("eta = %d, want %d", eta1, want)
	}

	// Separator byte keeps ("ab","c") and ("a","bc") apart.
	d3, _, _ := geo.Route(ctx, "ab", "c")
	d4, _, _ := geo.Route(ctx, "a", "bc")
	if d3 == d4 {
		t.Error("expected distinct routes for distinct address pairs")
	}
}
