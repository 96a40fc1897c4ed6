package models

import "time"

// Observation is one day of a sparse message-count series as delivered by the store
type Observation struct {
	Date  time.Time `json:"date"`  // Calendar day, time of day is ignored
	Count int       `json:"count"` // Message count, non-negative
}

// DateRange is an inclusive range of calendar days
type DateRange struct {
	Begin time.Time `json:"begin"`
	End   time.Time `json:"end"`
}

// DensifiedPoint is one entry of a gap-filled series
type DensifiedPoint struct {
	Date  time.Time `json:"date"`
	Count int       `json:"count"`
}

// Series is a labelled, colored observation list owned by one chart render
type Series struct {
	Label        string        `json:"label"`
	Color        string        `json:"color"`
	Observations []Observation `json:"observations"`
}
