// Package resolver implements the SRG manager: pattern compilation and
// matching, the rule-application decision logic, query responses and
// transitive deletion.
package resolver

// Direction says whether a smaller or a bigger value of a known attribute is
// better.
type Direction int

// Quality directions of known attributes.
const (
	SmallerIsBetter Direction = iota
	BiggerIsBetter
)

// EdgeRequirement restricts which source combinations the input edges of a
// match may have. This limits trivial fusions such as A⁻¹·(A·B).
type EdgeRequirement int

// Source requirements between the input edges of one match.
const (
	// RequireDisjointSources rejects a match if any two input edges share an
	// information source. The strictest setting, and the default.
	RequireDisjointSources EdgeRequirement = iota
	// RequireNewSource counts the ordered pairs of input edges where one
	// edge's sources contain all of the other's, and rejects the match once
	// that count reaches the number of input edges minus one. With two input
	// edges a match is rejected when either edge's sources contain the
	// other's.
	RequireNewSource
	// RequireNone disables the check.
	RequireNone
)

// BestMatchSelection is the selection strategy when a query asks for the
// best match but gives no best-match expression. Note that this can also be
// controlled at runtime using the sourceCount() function in a best-match
// expression.
type BestMatchSelection int

// Default best-match selection strategies.
const (
	// SelectLeastSources prefers the solution with the lowest number of
	// involved sensors, causing the least processing overhead.
	SelectLeastSources BestMatchSelection = iota
	// SelectMostSources prefers the solution with the most sensors.
	SelectMostSources
)

// Options are the resolver strategy knobs.
type Options struct {
	// AllowWorseEdges admits new edges with worse attributes when their
	// information sources differ. Turning this off may prevent some fusion
	// scenarios.
	AllowWorseEdges bool

	EdgeRequirement    EdgeRequirement
	BestMatchSelection BestMatchSelection

	// KnownAttributes lists the quantitative edge qualities for which
	// "better" is defined.
	KnownAttributes map[string]Direction
}

// DefaultKnownAttributes returns the default known-attribute table.
func DefaultKnownAttributes() map[string]Direction {
	return map[string]Direction{
		"latency":      SmallerIsBetter,
		"gaussT":       SmallerIsBetter,
		"gaussR":       SmallerIsBetter,
		"staticT":      SmallerIsBetter,
		"staticR":      SmallerIsBetter,
		"updateTime":   SmallerIsBetter,
		"availability": BiggerIsBetter,
	}
}

// DefaultOptions returns the default resolver strategy.
func DefaultOptions() Options {
	return Options{
		AllowWorseEdges:    true,
		EdgeRequirement:    RequireDisjointSources,
		BestMatchSelection: SelectLeastSources,
		KnownAttributes:    DefaultKnownAttributes(),
	}
}
