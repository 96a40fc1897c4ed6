package models

import (
	"strconv"
	"time"
)

// PieSlice is one aggregated slice of an overview pie
type PieSlice struct {
	Label string `json:"label"`
	Count int    `json:"cnt"`
	Color string `json:"color"`
}

// Pie is the data of one overview pie chart
type Pie struct {
	Title  string     `json:"title"`
	Slices []PieSlice `json:"slices"`
	Legend Legend     `json:"legend"`
}

// OverviewResponse represents the overview API response
type OverviewResponse struct {
	ReportType   string `json:"report_type"`
	DKIM         Pie    `json:"dkim"`
	SPF          Pie    `json:"spf"`
	Disposition  Pie    `json:"disposition"`
	DomainCount  int    `json:"domain_cnt"`
	ReportCount  int    `json:"report_cnt"`
	MessageCount int    `json:"message_cnt"`
}

// LineSeries is one densified filter set series
type LineSeries struct {
	Label string           `json:"label"`
	Color string           `json:"color"`
	Data  []DensifiedPoint `json:"data"`
}

// LineResponse represents the line chart API response
type LineResponse struct {
	Begin    time.Time    `json:"begin"`
	End      time.Time    `json:"end"`
	MaxCount int          `json:"max_count"`
	DataSets []LineSeries `json:"data_sets"`
	Legend   Legend       `json:"legend"`
}

// CountryCount is the message count of one country for a filter set
type CountryCount struct {
	CountryISOCode string `json:"country_iso_code"` // ISO 3166-1 alpha-2
	Count          int    `json:"cnt"`
}

// MapEntry is the choropleth value of one country
type MapEntry struct {
	Count   int    `json:"count"`
	FillKey string `json:"fill_key"`
}

// MapDataSet is the choropleth of one filter set
type MapDataSet struct {
	Label   string              `json:"label"`
	Color   string              `json:"color"`
	Fills   map[string]string   `json:"fills"`
	Data    map[string]MapEntry `json:"data"` // Keyed by ISO 3166-1 alpha-3
	Buckets []ColorBucket       `json:"buckets"`
	Legend  Legend              `json:"legend"`
}

// TableFilter represents filter parameters for the record table
type TableFilter struct {
	Offset int    `form:"offset"`
	Limit  int    `form:"limit"`
	From   string `form:"from"` // YYYY-MM-DD, inclusive
	To     string `form:"to"`   // YYYY-MM-DD, inclusive
}

// TableRow is one record line of the view table
type TableRow struct {
	ReporterOrg    string `json:"reporter"`
	ReportType     string `json:"report_type"`
	Domain         string `json:"domain"`
	DKIM           string `json:"dkim"`
	SPF            string `json:"spf"`
	Disposition    string `json:"disposition"`
	RawDKIM        string `json:"raw_dkim"`
	RawSPF         string `json:"raw_spf"`
	Count          int    `json:"count"`
	SourceIP       string `json:"source_ip"`
	CountryISOCode string `json:"country"`
	DateRangeBegin string `json:"date_range_begin"` // YYYY/MM/DD
	DateRangeEnd   string `json:"date_range_end"`   // YYYY/MM/DD
}

// TablePage is a page of table rows
type TablePage struct {
	Rows  []TableRow `json:"rows"`
	Total int        `json:"total"`
}

// TableHead lists the column titles of TableRow in order
var TableHead = []string{
	"Reporter", "Report type", "Domain", "DKIM result", "SPF result", "Disposition",
	"Raw DKIM", "Raw SPF", "msg#", "IP", "Country", "Report begin", "Report end",
}

// Cells returns the row as strings in TableHead order
func (r TableRow) Cells() []string {
	return []string{
		r.ReporterOrg, r.ReportType, r.Domain, r.DKIM, r.SPF, r.Disposition,
		r.RawDKIM, r.RawSPF, strconv.Itoa(r.Count), r.SourceIP, r.CountryISOCode,
		r.DateRangeBegin, r.DateRangeEnd,
	}
}
