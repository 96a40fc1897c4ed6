package models

import "time"

// Relative date range units
const (
	UnitDay   = "day"
	UnitWeek  = "week"
	UnitMonth = "month"
	UnitYear  = "year"
)

// View is a saved analysis with one or more colored filter sets
type View struct {
	ID          int64         `json:"id" db:"id"`
	Title       string        `json:"title" db:"title" binding:"required"`
	Description string        `json:"description,omitempty" db:"description"`
	ReportType  string        `json:"report_type" db:"report_type" binding:"required,oneof=in out"`
	DateRange   DateRangeSpec `json:"date_range"`
	Position    int           `json:"position" db:"position"`
	Enabled     bool          `json:"enabled" db:"enabled"`
	FilterSets  []FilterSet   `json:"filter_sets" binding:"required,min=1,dive"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
}

// DateRangeSpec is either an absolute range (Begin/End, Unix timestamps) or a relative one
// counting Quantity Units back from now
type DateRangeSpec struct {
	Begin    int64  `json:"begin,omitempty" db:"begin"`
	End      int64  `json:"end,omitempty" db:"end"`
	Quantity int    `json:"quantity,omitempty" db:"quantity"`
	Unit     string `json:"unit,omitempty" db:"unit"` // day, week, month, year
}

// FilterSet selects records of a view and carries the label and color they are drawn with
type FilterSet struct {
	ID      int64   `json:"id" db:"id"`
	ViewID  int64   `json:"view_id" db:"view_id"`
	Label   string  `json:"label" db:"label" binding:"required"`
	Color   string  `json:"color" db:"color" binding:"required,hexcolor"`
	Filters Filters `json:"filters"`
}

// Filters are ANDed across fields, values within one field are ORed.
// The raw DKIM fields must hold for the same DKIM auth result of a record, likewise the
// raw SPF fields for the same SPF auth result.
type Filters struct {
	ReportSenders   []string `json:"report_senders,omitempty"`   // Reporter org names
	ReceiverDomains []string `json:"receiver_domains,omitempty"` // Published policy domains
	SourceIPs       []string `json:"source_ips,omitempty"`
	DKIMResults     []string `json:"dkim_results,omitempty"` // Aligned DKIM: pass, fail
	SPFResults      []string `json:"spf_results,omitempty"`  // Aligned SPF: pass, fail
	Dispositions    []string `json:"dispositions,omitempty"`
	RawDKIMDomains  []string `json:"raw_dkim_domains,omitempty"`
	RawDKIMResults  []string `json:"raw_dkim_results,omitempty"` // See DKIMResultValues
	RawSPFDomains   []string `json:"raw_spf_domains,omitempty"`
	RawSPFResults   []string `json:"raw_spf_results,omitempty"` // See SPFResultValues
	MultipleDKIM    bool     `json:"multiple_dkim,omitempty"`   // More than one DKIM signature
}

// Raw auth result values as reported in aggregate reports
var (
	DKIMResultValues = []string{"none", "pass", "fail", "policy", "neutral", "temperror", "permerror"}
	SPFResultValues  = []string{"none", "neutral", "pass", "fail", "softfail", "temperror", "permerror"}
)

// Choice kinds offered for filter autocompletion
const (
	ChoiceReporter   = "reporter"
	ChoiceReportee   = "reportee"
	ChoiceDKIMDomain = "dkim_domain"
	ChoiceSPFDomain  = "spf_domain"
)

// ChoiceQuery asks for distinct filter values of one kind that contain Query
type ChoiceQuery struct {
	ReportType string `form:"type"`
	Kind       string `form:"kind"`
	Query      string `form:"q"`
	Limit      int    `form:"limit"`
}

// ViewOrder lists view IDs in their new display order
type ViewOrder struct {
	IDs []int64 `json:"ids" binding:"required,min=1"`
}
