package spawn

import (
	"errors"
	"math"
	"testing"
	"time"

	"transitdemand/internal/domain"
)

func rate(v float64) *float64 { return &v }

// A Monday at 08:00, matching the hour and weekday keys used below.
var mondayPeak = time.Date(2026, time.August, 24, 8, 0, 0, 0, time.UTC)

func referenceConfig() *domain.SpawnConfig {
	return &domain.SpawnConfig{
		BaseRate:       rate(0.05),
		HourlyRates:    map[int]float64{8: 2.0},
		DayMultipliers: map[time.Weekday]float64{time.Monday: 1.3},
	}
}

func TestExtractTemporal(t *testing.T) {
	base, hourly, day, err := ExtractTemporal(referenceConfig(), mondayPeak)
	if err != nil {
		t.Fatalf("ExtractTemporal failed: %v", err)
	}
	if base != 0.05 || hourly != 2.0 || day != 1.3 {
		t.Errorf("got base=%v hourly=%v day=%v, want 0.05/2.0/1.3", base, hourly, day)
	}
}

func TestExtractTemporal_MissingEntriesAreNeutral(t *testing.T) {
	cfg := &domain.SpawnConfig{BaseRate: rate(0.05)}

	base, hourly, day, err := ExtractTemporal(cfg, mondayPeak)
	if err != nil {
		t.Fatalf("ExtractTemporal failed: %v", err)
	}
	if base != 0.05 {
		t.Errorf("expected base rate 0.05, got %v", base)
	}
	if hourly != 1.0 || day != 1.0 {
		t.Errorf("missing entries must fall back to 1.0, got hourly=%v day=%v", hourly, day)
	}
}

func TestExtractTemporal_MissingBaseRate(t *testing.T) {
	cfg := &domain.SpawnConfig{HourlyRates: map[int]float64{8: 2.0}}
	if _, _, _, err := ExtractTemporal(cfg, mondayPeak); !errors.Is(err, ErrMissingBaseRate) {
		t.Fatalf("expected ErrMissingBaseRate, got %v", err)
	}
	if _, _, _, err := ExtractTemporal(nil, mondayPeak); !errors.Is(err, ErrMissingBaseRate) {
		t.Fatalf("expected ErrMissingBaseRate for nil config, got %v", err)
	}
}

func TestCalculate_ReferenceScenario(t *testing.T) {
	c := NewSeededCalculator(1)
	sp := SpatialInputs{
		BuildingsNearDepot:    1556,
		BuildingsAlongRoute:   1556,
		TotalBuildingsAtDepot: 1556,
	}

	bd, err := c.Calculate(ZeroSumPolicy{}, referenceConfig(), mondayPeak, ScopeDepot, sp, 60)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}

	if math.Abs(bd.EffectiveRate-0.13) > 1e-9 {
		t.Errorf("expected effective rate 0.13, got %v", bd.EffectiveRate)
	}
	if math.Abs(bd.TerminalPopulation-202.28) > 0.01 {
		t.Errorf("expected terminal population 202.28, got %v", bd.TerminalPopulation)
	}
	if bd.Attractiveness != 1.0 {
		t.Errorf("expected attractiveness 1.0 for the full building share, got %v", bd.Attractiveness)
	}
	if math.Abs(bd.Lambda-bd.PassengersPerHour) > 1e-9 {
		t.Errorf("a 60-minute window must leave lambda at the hourly rate, got %v vs %v",
			bd.Lambda, bd.PassengersPerHour)
	}
	if bd.SpawnCount < 0 {
		t.Errorf("spawn count must be non-negative, got %d", bd.SpawnCount)
	}
}

func TestCalculate_SeededDeterminism(t *testing.T) {
	sp := SpatialInputs{BuildingsAlongRoute: 400}

	first, err := NewSeededCalculator(42).Calculate(IndependentPolicy{}, referenceConfig(), mondayPeak, ScopeRoute, sp, 15)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	second, err := NewSeededCalculator(42).Calculate(IndependentPolicy{}, referenceConfig(), mondayPeak, ScopeRoute, sp, 15)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	if *first != *second {
		t.Errorf("identical seeds diverged: %+v vs %+v", first, second)
	}
}

func TestCalculate_NegativeEffectiveRateClampsToZero(t *testing.T) {
	cfg := &domain.SpawnConfig{
		BaseRate:    rate(-0.05),
		HourlyRates: map[int]float64{8: 2.0},
	}
	c := NewSeededCalculator(1)

	bd, err := c.Calculate(IndependentPolicy{}, cfg, mondayPeak, ScopeRoute, SpatialInputs{BuildingsAlongRoute: 100}, 60)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	if bd.EffectiveRate != 0 || bd.Lambda != 0 || bd.SpawnCount != 0 {
		t.Errorf("negative rate must clamp to zero demand, got %+v", bd)
	}
}

func TestCalculate_ZeroBuildings(t *testing.T) {
	c := NewSeededCalculator(1)
	bd, err := c.Calculate(IndependentPolicy{}, referenceConfig(), mondayPeak, ScopeRoute, SpatialInputs{}, 60)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	if bd.SpawnCount != 0 {
		t.Errorf("zero buildings must yield zero spawns, got %d", bd.SpawnCount)
	}
}

func TestIndependentPolicy_Additive(t *testing.T) {
	p := IndependentPolicy{}

	a, _, _ := p.PassengersPerHour(0.13, ScopeRoute, SpatialInputs{BuildingsAlongRoute: 350})
	b, _, _ := p.PassengersPerHour(0.13, ScopeRoute, SpatialInputs{BuildingsAlongRoute: 150})
	combined, _, _ := p.PassengersPerHour(0.13, ScopeRoute, SpatialInputs{BuildingsAlongRoute: 500})

	if math.Abs((a+b)-combined) > 1e-9 {
		t.Errorf("independent demand must be additive: %v + %v != %v", a, b, combined)
	}
}

func TestZeroSumPolicy_SharesSumToTerminal(t *testing.T) {
	p := ZeroSumPolicy{}
	shares := []int{350, 150, 0}
	total := 500

	var sum, terminal float64
	for _, s := range shares {
		perHour, term, _ := p.PassengersPerHour(0.13, ScopeDepot, SpatialInputs{
			BuildingsNearDepot:    1556,
			BuildingsAlongRoute:   s,
			TotalBuildingsAtDepot: total,
		})
		sum += perHour
		terminal = term
	}

	if terminal == 0 {
		t.Fatal("expected a non-zero terminal population")
	}
	if math.Abs(sum-terminal)/terminal > 1e-6 {
		t.Errorf("route shares must sum to the terminal population: %v vs %v", sum, terminal)
	}
}

func TestZeroSumPolicy_ZeroTotalBuildings(t *testing.T) {
	perHour, _, attractiveness := ZeroSumPolicy{}.PassengersPerHour(0.13, ScopeDepot, SpatialInputs{
		BuildingsNearDepot:  1556,
		BuildingsAlongRoute: 350,
	})
	if perHour != 0 || attractiveness != 0 {
		t.Errorf("a zero building total must yield zero demand, got perHour=%v attractiveness=%v",
			perHour, attractiveness)
	}
}
