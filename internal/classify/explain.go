package classify

import (
	"fmt"

	"tidewatch/internal/types"
)

// Explain re-evaluates the fixed human-readable rules against the input
// conditions. The rules are intentionally independent of the fitted model's
// internal structure: the explanation must stay stable across retrains and
// must describe the input, not the tree paths that happened to fire.
func Explain(c types.Conditions) []string {
	var clauses []string

	if c.WaterLevel > 1.5 {
		clauses = append(clauses, fmt.Sprintf("High water level (%gm) indicates severe flooding risk", c.WaterLevel))
	} else if c.WaterLevel > 1.0 {
		clauses = append(clauses, fmt.Sprintf("Elevated water level (%gm) suggests moderate flood risk", c.WaterLevel))
	}

	if c.WindSpeed > 30 {
		clauses = append(clauses, fmt.Sprintf("Extreme wind speeds (%g m/s) pose significant threat", c.WindSpeed))
	} else if c.WindSpeed > 20 {
		clauses = append(clauses, fmt.Sprintf("High wind speeds (%g m/s) contribute to risk", c.WindSpeed))
	}

	if c.Rainfall > 60 {
		clauses = append(clauses, fmt.Sprintf("Heavy rainfall (%g mm/h) increases flood probability", c.Rainfall))
	} else if c.Rainfall > 30 {
		clauses = append(clauses, fmt.Sprintf("Moderate rainfall (%g mm/h) adds to flood risk", c.Rainfall))
	}

	if c.Pressure < 995 {
		clauses = append(clauses, fmt.Sprintf("Low atmospheric pressure (%g hPa) indicates storm conditions", c.Pressure))
	}

	if len(clauses) == 0 {
		clauses = append(clauses, "Normal conditions detected across all parameters")
	}
	return clauses
}
