package spawn

import (
	"math/rand"
	"time"

	"transitdemand/internal/domain"
)

// Breakdown is the full intermediate trace of one spawn computation. Every
// step is exposed so validation tooling can audit the pipeline, not just the
// final count.
type Breakdown struct {
	BaseRate           float64    `json:"base_rate"`
	HourlyMultiplier   float64    `json:"hourly_multiplier"`
	DayMultiplier      float64    `json:"day_multiplier"`
	EffectiveRate      float64    `json:"effective_rate"`
	TerminalPopulation float64    `json:"terminal_population,omitempty"`
	Attractiveness     float64    `json:"route_attractiveness,omitempty"`
	PassengersPerHour  float64    `json:"passengers_per_hour"`
	Lambda             float64    `json:"lambda"`
	SpawnCount         int        `json:"spawn_count"`
	Policy             PolicyKind `json:"policy"`
}

// Calculator computes expected passenger rates and samples spawn counts.
// It holds no shared state beyond its RNG; a seeded calculator is fully
// deterministic.
type Calculator struct {
	rng *rand.Rand
}

// NewCalculator creates a calculator seeded for production use.
func NewCalculator() *Calculator {
	return NewSeededCalculator(time.Now().UnixNano())
}

// NewSeededCalculator creates a calculator with an explicit seed, for
// reproducible runs.
func NewSeededCalculator(seed int64) *Calculator {
	return &Calculator{rng: rand.New(rand.NewSource(seed))}
}

// ExtractTemporal looks up the base rate and hour/day multipliers for the
// given instant. Missing hour or day entries fall back to a neutral 1.0;
// a missing base rate is the one unrecoverable case.
func ExtractTemporal(cfg *domain.SpawnConfig, at time.Time) (baseRate, hourlyMult, dayMult float64, err error) {
	if cfg == nil || cfg.BaseRate == nil {
		return 0, 0, 0, ErrMissingBaseRate
	}
	baseRate = *cfg.BaseRate

	hourlyMult = 1.0
	if m, ok := cfg.HourlyRates[at.Hour()]; ok {
		hourlyMult = m
	}

	dayMult = 1.0
	if m, ok := cfg.DayMultipliers[at.Weekday()]; ok {
		dayMult = m
	}
	return baseRate, hourlyMult, dayMult, nil
}

// Calculate runs the full spawn pipeline for one depot/route and time window
// and returns the step-by-step breakdown.
func (c *Calculator) Calculate(policy Policy, cfg *domain.SpawnConfig, at time.Time, scope Scope, sp SpatialInputs, windowMinutes float64) (*Breakdown, error) {
	baseRate, hourlyMult, dayMult, err := ExtractTemporal(cfg, at)
	if err != nil {
		return nil, err
	}

	effectiveRate := baseRate * hourlyMult * dayMult
	if effectiveRate < 0 {
		// A malformed multiplier must never drive negative demand.
		effectiveRate = 0
	}

	perHour, terminal, attractiveness := policy.PassengersPerHour(effectiveRate, scope, sp)
	if perHour < 0 {
		perHour = 0
	}

	lambda := perHour * (windowMinutes / 60.0)

	return &Breakdown{
		BaseRate:           baseRate,
		HourlyMultiplier:   hourlyMult,
		DayMultiplier:      dayMult,
		EffectiveRate:      effectiveRate,
		TerminalPopulation: terminal,
		Attractiveness:     attractiveness,
		PassengersPerHour:  perHour,
		Lambda:             lambda,
		SpawnCount:         c.Poisson(lambda),
		Policy:             policy.Kind(),
	}, nil
}
