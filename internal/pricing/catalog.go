package pricing

import (
	"errors"
	"math"

	"github.com/example/cario/internal/models"
)

var (
	ErrUnknownProvider = errors.New("unknown service provider")
	ErrUnknownVehicle  = errors.New("unknown vehicle type")
)

// QuotedETAMinutes is the pickup estimate shown for every quote.
const QuotedETAMinutes = 4

const (
	DefaultProvider = "uber"
	DefaultVehicle  = "sedan"
)

type Provider struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	BasePrice int64  `json:"base_price"`
}

type VehicleType struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Multiplier  float64 `json:"multiplier"`
	Description string  `json:"description"`
}

// Catalog holds the fixed provider and vehicle tables. Order is preserved for display.
type Catalog struct {
	Providers []Provider
	Vehicles  []VehicleType
}

func DefaultCatalog() *Catalog {
	return &Catalog{
		Providers: []Provider{
			{ID: "uber", Name: "Uber", BasePrice: 120},
			{ID: "ola", Name: "Ola", BasePrice: 115},
			{ID: "rapido", Name: "Rapido", BasePrice: 85},
			{ID: "blablacar", Name: "BlaBlaCar", BasePrice: 70},
		},
		Vehicles: []VehicleType{
			{ID: "bike", Name: "Moto", Multiplier: 0.6, Description: "Quick and affordable"},
			{ID: "auto", Name: "Auto", Multiplier: 1, Description: "Common city travel"},
			{ID: "sedan", Name: "Sedan", Multiplier: 1.5, Description: "Comfortable 4-seaters"},
		},
	}
}

func (c *Catalog) Provider(id string) (Provider, error) {
	for _, p := range c.Providers {
		if p.ID == id {
			return p, nil
		}
	}
	return Provider{}, ErrUnknownProvider
}

func (c *Catalog) Vehicle(id string) (VehicleType, error) {
	for _, v := range c.Vehicles {
		if v.ID == id {
			return v, nil
		}
	}
	return VehicleType{}, ErrUnknownVehicle
}

// Fare is the provider base rate scaled by the vehicle multiplier, floored to whole rupees.
func Fare(p Provider, v VehicleType) int64 {
	return int64(math.Floor(float64(p.BasePrice) * v.Multiplier))
}

// Quote prices a single provider/vehicle pair.
func (c *Catalog) Quote(providerID, vehicleID string) (models.Quote, error) {
	p, err := c.Provider(providerID)
	if err != nil {
		return models.Quote{}, err
	}
	v, err := c.Vehicle(vehicleID)
	if err != nil {
		return models.Quote{}, err
	}
	return models.Quote{Vehicle: v.ID, Name: v.Name, Fare: Fare(p, v), ETAMinutes: QuotedETAMinutes}, nil
}

// Quotes lists one quote per vehicle type for the given provider.
func (c *Catalog) Quotes(providerID string) ([]models.Quote, error) {
	p, err := c.Provider(providerID)
	if err != nil {
		return nil, err
	}
	out := make([]models.Quote, 0, len(c.Vehicles))
	for _, v := range c.Vehicles {
		out = append(out, models.Quote{Vehicle: v.ID, Name: v.Name, Fare: Fare(p, v), ETAMinutes: QuotedETAMinutes})
	}
	return out, nil
}
