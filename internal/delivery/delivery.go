// Package delivery prices delivery by road distance from the kitchen.
package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/aderut/moridam/internal/domain"
)

const (
	BaseFee  = 500.0
	FeePerKm = 150.0
)

var ErrNoRoute = errors.New("could not calculate distance")

// Coordinates are WGS84 degrees. JSON form is the [lng, lat] pair used by
// the routing API.
type Coordinates struct {
	Lng float64
	Lat float64
}

// Pickup is the kitchen in Rumuevorlu, Port Harcourt.
var Pickup = Coordinates{Lng: 6.96449, Lat: 4.84044}

func (c Coordinates) Validate() error {
	if math.IsNaN(c.Lng) || math.IsInf(c.Lng, 0) || c.Lng < -180 || c.Lng > 180 {
		return domain.NewValidationError("to", "Missing/invalid 'to' coordinates. Expected [lng, lat].")
	}
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || c.Lat < -90 || c.Lat > 90 {
		return domain.NewValidationError("to", "Missing/invalid 'to' coordinates. Expected [lng, lat].")
	}
	return nil
}

func (c Coordinates) pair() [2]float64 {
	return [2]float64{c.Lng, c.Lat}
}

func (c Coordinates) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.pair())
}

func (c *Coordinates) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("coordinates: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("coordinates: want [lng, lat], got %d values", len(pair))
	}
	c.Lng, c.Lat = pair[0], pair[1]
	return nil
}

type Quote struct {
	DistanceKm float64 `json:"distanceKm"`
	Fee        float64 `json:"fee"`
}

// Place is a geocoded address.
type Place struct {
	Label string      `json:"label"`
	At    Coordinates `json:"-"`
}

type Estimator interface {
	Quote(ctx context.Context, origin, dest Coordinates) (Quote, error)
}

// Fee is BaseFee plus FeePerKm per kilometre, rounded to the naira.
func Fee(distanceKm float64) float64 {
	return math.Round(BaseFee + distanceKm*FeePerKm)
}
