package domain

import "time"

// SpawnConfig holds the temporal demand parameters for a spawn scope.
//
// RouteID is empty for the global config; a route-scoped config overrides the
// global one field by field. BaseRate is a pointer because there is no sane
// default for it: a config with no base rate anywhere in scope cannot spawn.
// Missing hourly or day entries mean a neutral multiplier of 1.0.
type SpawnConfig struct {
	ID             string
	RouteID        string
	BaseRate       *float64
	HourlyRates    map[int]float64
	DayMultipliers map[time.Weekday]float64
	TTL            time.Duration
	UpdatedAt      time.Time
}

// Merge overlays route-scoped values onto a global config and returns the
// merged result. The receiver is the global config and is not mutated.
func (c *SpawnConfig) Merge(route *SpawnConfig) *SpawnConfig {
	merged := &SpawnConfig{
		ID:             c.ID,
		BaseRate:       c.BaseRate,
		HourlyRates:    make(map[int]float64, len(c.HourlyRates)),
		DayMultipliers: make(map[time.Weekday]float64, len(c.DayMultipliers)),
		TTL:            c.TTL,
		UpdatedAt:      c.UpdatedAt,
	}
	for h, r := range c.HourlyRates {
		merged.HourlyRates[h] = r
	}
	for d, m := range c.DayMultipliers {
		merged.DayMultipliers[d] = m
	}

	if route == nil {
		return merged
	}

	merged.ID = route.ID
	merged.RouteID = route.RouteID
	if route.BaseRate != nil {
		merged.BaseRate = route.BaseRate
	}
	for h, r := range route.HourlyRates {
		merged.HourlyRates[h] = r
	}
	for d, m := range route.DayMultipliers {
		merged.DayMultipliers[d] = m
	}
	if route.TTL > 0 {
		merged.TTL = route.TTL
	}
	if route.UpdatedAt.After(merged.UpdatedAt) {
		merged.UpdatedAt = route.UpdatedAt
	}
	return merged
}
