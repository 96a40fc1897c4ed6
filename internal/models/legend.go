package models

// ColorBucket is one partition element of a binned value domain
type ColorBucket struct {
	LowerBound float64 `json:"lower_bound"`
	UpperBound float64 `json:"upper_bound"`
	Shade      string  `json:"shade"` // #rrggbb
}

// LegendItem pairs a color with a human readable name
type LegendItem struct {
	Color string `json:"color"`
	Name  string `json:"name"`
}

// Legend is the typed replacement for the loose legend option objects of the dashboard
type Legend struct {
	Items []LegendItem `json:"legend_items"`
}
