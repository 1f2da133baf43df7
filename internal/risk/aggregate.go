package risk

import (
	"fmt"

	"tidewatch/internal/types"
)

// Auxiliary factor thresholds over raw current conditions.
const (
	RainfallFactorThreshold = 50.0 // mm/h
	RainfallSevereThreshold = 80.0
	WindFactorThreshold     = 20.0 // m/s
	WindSevereThreshold     = 30.0
)

// baseScores is the ordinal value of each flood tier. Unknown tiers score 1.
var baseScores = map[types.RiskLevel]int{
	types.RiskMinimal:  1,
	types.RiskLow:      2,
	types.RiskMedium:   3,
	types.RiskHigh:     4,
	types.RiskCritical: 5,
}

// recommendations is the fixed directive list per final level. Minimal has
// no entries; that gap is deliberate (see DESIGN.md).
var recommendations = map[types.RiskLevel][]string{
	types.RiskCritical: {
		"Immediate evacuation recommended",
		"Emergency services should be notified",
		"Avoid all coastal areas",
		"Monitor official emergency broadcasts",
	},
	types.RiskHigh: {
		"Prepare for potential evacuation",
		"Secure outdoor items",
		"Avoid unnecessary travel to coastal areas",
		"Stay informed about weather conditions",
	},
	types.RiskMedium: {
		"Monitor weather conditions",
		"Prepare emergency supplies",
		"Stay away from flood-prone areas",
		"Follow local authority guidance",
	},
	types.RiskLow: {
		"Normal conditions - no immediate action required",
		"Continue monitoring weather updates",
		"Be aware of changing conditions",
	},
}

// DeriveFactors inspects raw current conditions for auxiliary risk
// contributors. Absent readings contribute nothing.
func DeriveFactors(current types.CurrentConditions) []types.RiskFactor {
	var factors []types.RiskFactor

	if current.Rainfall != nil && *current.Rainfall > RainfallFactorThreshold {
		severity := types.SeverityMedium
		if *current.Rainfall > RainfallSevereThreshold {
			severity = types.SeverityHigh
		}
		factors = append(factors, types.RiskFactor{
			Factor:      "heavy_rainfall",
			Severity:    severity,
			Description: fmt.Sprintf("Heavy rainfall: %g mm/h", *current.Rainfall),
		})
	}

	if current.Wind != nil && *current.Wind > WindFactorThreshold {
		severity := types.SeverityMedium
		if *current.Wind > WindSevereThreshold {
			severity = types.SeverityHigh
		}
		factors = append(factors, types.RiskFactor{
			Factor:      "high_winds",
			Severity:    severity,
			Description: fmt.Sprintf("High winds: %g m/s", *current.Wind),
		})
	}

	return factors
}

// Aggregate combines the flood tier with auxiliary factors into the final
// assessment. The score is the tier's base value plus 2 per high-severity
// factor and 1 per medium-severity factor; the final level comes from fixed
// score bands. Confidence carries over from the flood tier.
func Aggregate(flood types.FloodRisk, factors []types.RiskFactor) types.RiskAssessment {
	score, ok := baseScores[flood.RiskLevel]
	if !ok {
		score = 1
	}

	for _, f := range factors {
		switch f.Severity {
		case types.SeverityHigh:
			score += 2
		case types.SeverityMedium:
			score++
		}
	}

	var level types.RiskLevel
	switch {
	case score >= 7:
		level = types.RiskCritical
	case score >= 5:
		level = types.RiskHigh
	case score >= 3:
		level = types.RiskMedium
	case score >= 2:
		level = types.RiskLow
	default:
		level = types.RiskMinimal
	}

	if factors == nil {
		factors = []types.RiskFactor{}
	}
	return types.RiskAssessment{
		Level:               level,
		Score:               score,
		Confidence:          flood.Confidence,
		ContributingFactors: factors,
		Recommendations:     Recommendations(level),
	}
}

// Recommendations returns the fixed directive list for a final risk level.
// Always non-nil so responses serialize as an empty array, never null.
func Recommendations(level types.RiskLevel) []string {
	recs, ok := recommendations[level]
	if !ok {
		return []string{}
	}
	out := make([]string, len(recs))
	copy(out, recs)
	return out
}
