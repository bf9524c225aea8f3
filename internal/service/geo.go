package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/http"
	"time"
)

// GeoService resolves a route between two addresses into distance and ETA.
type GeoService interface {
	Route(ctx context.Context, origin, destination string) (distanceMeters float64, etaSeconds int, err error)
}

// GeoClient calls the external geo service over HTTP.
type GeoClient struct {
	baseURL string
	client  *http.Client
}

// NewGeoClient creates a new GeoClient. A non-positive timeout falls back
// to 5 seconds.
func NewGeoClient(baseURL string, timeout time.Duration) *GeoClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &GeoClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type routeRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type routeResponse struct {
	DistanceM float64 `json:"distanceM"`
	EtaSec    int     `json:"etaSec"`
}

// Route asks the geo service for distance and ETA between two addresses.
func (c *GeoClient) Route(ctx context.Context, origin, destination string) (float64, int, error) {
	body, err := json.Marshal(routeRequest{From: origin, To: destination})
	if err != nil {
		return 0, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/route/eta", bytes.NewReader(body))
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: geo: %v", ErrCollaboratorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("%w: geo returned %d", ErrCollaboratorUnavailable, resp.StatusCode)
	}

	var route routeResponse
	if err := json.NewDecoder(resp.Body).Decode(&route); err != nil {
		return 0, 0, fmt.Errorf("%w: geo: %v", ErrCollaboratorUnavailable, err)
	}
	return route.DistanceM, route.EtaSec, nil
}

// stubAvgSpeedMps matches the geo service's fallback ETA model.
const stubAvgSpeedMps = 15.0

// StubGeo produces deterministic plausible routes without a geo service.
type StubGeo struct{}

// NewStubGeo creates a new StubGeo.
func NewStubGeo() *StubGeo {
	return &StubGeo{}
}

// Route derives a stable distance from the address pair so repeated quotes
// for the same trip agree.
func (StubGeo) Route(ctx context.Context, origin, destination string) (float64, int, error) {
	h := fnv.New32a()
	h.Write([]byte(origin))
	h.Write([]byte{0})
	h.Write([]byte(destination))

	distanceM := 1500 + float64(h.Sum32()%8500)
	etaSec := int(distanceM / stubAvgSpeedMps)
	return distanceM, etaSec, nil
}

var (
	_ GeoService = (*GeoClient)(nil)
	_ GeoService = (*StubGeo)(nil)
)
