package classify

import (
	"testing"

	"tidewatch/internal/types"
)

func TestExplainRules(t *testing.T) {
	tests := []struct {
		name       string
		conditions types.Conditions
		want       []string
	}{
		{
			name:       "normal conditions",
			conditions: types.DefaultConditions(),
			want:       []string{"Normal conditions detected across all parameters"},
		},
		{
			name:       "severe water level",
			conditions: types.Conditions{WaterLevel: 1.8, WindSpeed: 5, Temperature: 25, Pressure: 1013},
			want:       []string{"High water level (1.8m) indicates severe flooding risk"},
		},
		{
			name:       "moderate water level",
			conditions: types.Conditions{WaterLevel: 1.2, WindSpeed: 5, Temperature: 25, Pressure: 1013},
			want:       []string{"Elevated water level (1.2m) suggests moderate flood risk"},
		},
		{
			name:       "water level at severe boundary stays moderate",
			conditions: types.Conditions{WaterLevel: 1.5, WindSpeed: 5, Temperature: 25, Pressure: 1013},
			want:       []string{"Elevated water level (1.5m) suggests moderate flood risk"},
		},
		{
			name:       "extreme wind",
			conditions: types.Conditions{WaterLevel: 0.5, WindSpeed: 35, Temperature: 25, Pressure: 1013},
			want:       []string{"Extreme wind speeds (35 m/s) pose significant threat"},
		},
		{
			name:       "high wind",
			conditions: types.Conditions{WaterLevel: 0.5, WindSpeed: 25, Temperature: 25, Pressure: 1013},
			want:       []string{"High wind speeds (25 m/s) contribute to risk"},
		},
		{
			name:       "wind at threshold is quiet",
			conditions: types.Conditions{WaterLevel: 0.5, WindSpeed: 20, Temperature: 25, Pressure: 1013},
			want:       []string{"Normal conditions detected across all parameters"},
		},
		{
			name:       "heavy rainfall",
			conditions: types.Conditions{WaterLevel: 0.5, WindSpeed: 5, Rainfall: 70, Temperature: 25, Pressure: 1013},
			want:       []string{"Heavy rainfall (70 mm/h) increases flood probability"},
		},
		{
			name:       "moderate rainfall",
			conditions: types.Conditions{WaterLevel: 0.5, WindSpeed: 5, Rainfall: 40, Temperature: 25, Pressure: 1013},
			want:       []string{"Moderate rainfall (40 mm/h) adds to flood risk"},
		},
		{
			name:       "low pressure",
			conditions: types.Conditions{WaterLevel: 0.5, WindSpeed: 5, Temperature: 25, Pressure: 990},
			want:       []string{"Low atmospheric pressure (990 hPa) indicates storm conditions"},
		},
		{
			name:       "pressure at threshold is quiet",
			conditions: types.Conditions{WaterLevel: 0.5, WindSpeed: 5, Temperature: 25, Pressure: 995},
			want:       []string{"Normal conditions detected across all parameters"},
		},
		{
			name:       "all rules fire in fixed order",
			conditions: types.Conditions{WaterLevel: 1.8, WindSpeed: 35, Rainfall: 70, Temperature: 22, Pressure: 990},
			want: []string{
				"High water level (1.8m) indicates severe flooding risk",
				"Extreme wind speeds (35 m/s) pose significant threat",
				"Heavy rainfall (70 mm/h) increases flood probability",
				"Low atmospheric pressure (990 hPa) indicates storm conditions",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Explain(tt.conditions)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d clauses, want %d: %v", len(got), len(tt.want), got)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("clause[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
