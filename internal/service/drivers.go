package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"

	"github.com/google/uuid"

	"magadrive/internal/domain"
)

// DriverProvider supplies a driver for a requested ride. In production this
// would be a real matching system; the stub below stands in for it.
type DriverProvider interface {
	NextDriver(ctx context.Context) (domain.DriverInfo, error)
}

// stubDrivers are the plausible driver profiles handed out in rotation.
var stubDrivers = []domain.DriverInfo{
	{Name: "Alexandr Petrov", Phone: "+7 (999) 123-45-67", VehicleNumber: "A 123 BV 77", Rating: 4.8},
	{Name: "Mikhail Sokolov", Phone: "+7 (999) 234-56-78", VehicleNumber: "B 456 TK 99", Rating: 4.9},
	{Name: "Dmitry Volkov", Phone: "+7 (999) 345-67-89", VehicleNumber: "E 789 MH 50", Rating: 4.6},
	{Name: "Sergey Lebedev", Phone: "+7 (999) 456-78-90", VehicleNumber: "K 321 OP 177", Rating: 4.7},
}

// StubDriverProvider generates plausible driver data without a real
// matching system behind it.
type StubDriverProvider struct {
	next uint64
}

// NewStubDriverProvider creates a new StubDriverProvider.
func NewStubDriverProvider() *StubDriverProvider {
	return &StubDriverProvider{}
}

// NextDriver returns the next stub driver with a fresh driver ID.
func (p *StubDriverProvider) NextDriver(ctx context.Context) (domain.DriverInfo, error) {
	n := atomic.AddUint64(&p.next, 1)
	driver := stubDrivers[int(n)%len(stubDrivers)]
	driver.ID = fmt.Sprintf("driver_%s", uuid.New().String()[:8])
	// Small jitter so repeated assignments do not look identical.
	driver.Rating += float64(rand.Intn(3)-1) / 10
	return driver, nil
}

var _ DriverProvider = (*StubDriverProvider)(nil)
