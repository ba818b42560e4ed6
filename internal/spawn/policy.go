package spawn

// PolicyKind identifies a route-demand policy.
type PolicyKind string

const (
	// PolicyIndependent treats each route's demand as independent and
	// additive: routes sharing a depot do not compete for passengers.
	PolicyIndependent PolicyKind = "independent"

	// PolicyZeroSum divides a fixed terminal population across the routes
	// at a depot in proportion to each route's building share.
	PolicyZeroSum PolicyKind = "zero_sum"
)

// Scope identifies whether a spawn batch is anchored to a depot or a route corridor.
type Scope string

const (
	ScopeDepot Scope = "depot"
	ScopeRoute Scope = "route"
)

// SpatialInputs carries the building-density signals for one spawn computation.
type SpatialInputs struct {
	BuildingsNearDepot    int
	BuildingsAlongRoute   int
	TotalBuildingsAtDepot int
}

// Policy converts an effective rate and spatial inputs into a demand rate.
type Policy interface {
	Kind() PolicyKind

	// PassengersPerHour returns the hourly demand rate plus the zero-sum
	// intermediates (terminal population and route attractiveness), which
	// are zero under policies that do not compute them.
	PassengersPerHour(effectiveRate float64, scope Scope, sp SpatialInputs) (perHour, terminalPopulation, attractiveness float64)
}

// IndependentPolicy implements the independent-additive model.
type IndependentPolicy struct{}

func (IndependentPolicy) Kind() PolicyKind { return PolicyIndependent }

func (IndependentPolicy) PassengersPerHour(effectiveRate float64, scope Scope, sp SpatialInputs) (float64, float64, float64) {
	buildings := sp.BuildingsAlongRoute
	if scope == ScopeDepot {
		buildings = sp.BuildingsNearDepot
	}
	return float64(buildings) * effectiveRate, 0, 0
}

// ZeroSumPolicy implements the zero-sum model: the routes sharing a depot
// split the terminal population, so the per-route demands sum to it exactly.
type ZeroSumPolicy struct{}

func (ZeroSumPolicy) Kind() PolicyKind { return PolicyZeroSum }

func (ZeroSumPolicy) PassengersPerHour(effectiveRate float64, scope Scope, sp SpatialInputs) (float64, float64, float64) {
	terminal := float64(sp.BuildingsNearDepot) * effectiveRate

	var attractiveness float64
	if sp.TotalBuildingsAtDepot > 0 {
		attractiveness = float64(sp.BuildingsAlongRoute) / float64(sp.TotalBuildingsAtDepot)
	}
	return terminal * attractiveness, terminal, attractiveness
}

// PolicyFor returns the policy for the given kind, defaulting to independent-additive.
func PolicyFor(kind PolicyKind) Policy {
	if kind == PolicyZeroSum {
		return ZeroSumPolicy{}
	}
	return IndependentPolicy{}
}
