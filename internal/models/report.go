package models

import "time"

// Report type constants
const (
	ReportTypeIncoming = "in"
	ReportTypeOutgoing = "out"
)

// Aligned result constants
const (
	ResultPass = "pass"
	ResultFail = "fail"
)

// Disposition constants
const (
	DispositionNone       = "none"
	DispositionQuarantine = "quarantine"
	DispositionReject     = "reject"
)

// Report represents one DMARC aggregate report
type Report struct {
	ID         int64  `json:"id" db:"id"`
	ReportType string `json:"report_type" db:"report_type"` // in, out
	ReportID   string `json:"report_id" db:"report_id"`
	Version    string `json:"version,omitempty" db:"version"`

	// Reporter
	OrgName          string `json:"org_name" db:"org_name"`
	Email            string `json:"email" db:"email"`
	ExtraContactInfo string `json:"extra_contact_info,omitempty" db:"extra_contact_info"`

	// Covered period, Unix timestamps
	DateRangeBegin int64 `json:"date_range_begin" db:"date_range_begin"`
	DateRangeEnd   int64 `json:"date_range_end" db:"date_range_end"`

	// Published policy
	Domain string `json:"domain" db:"domain"`
	ADKIM  string `json:"adkim,omitempty" db:"adkim"`
	ASPF   string `json:"aspf,omitempty" db:"aspf"`
	P      string `json:"p,omitempty" db:"p"`
	SP     string `json:"sp,omitempty" db:"sp"`
	Pct    int    `json:"pct,omitempty" db:"pct"`

	Errors  []string `json:"errors,omitempty"`
	Records []Record `json:"records,omitempty"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Record is one row of an aggregate report
type Record struct {
	ID             int64  `json:"id" db:"id"`
	ReportID       int64  `json:"report_id" db:"report_id"` // Foreign key to reports
	SourceIP       string `json:"source_ip" db:"source_ip"`
	CountryISOCode string `json:"country_iso_code,omitempty" db:"country_iso_code"` // ISO 3166-1 alpha-2
	Count          int    `json:"count" db:"count"`

	// Policy evaluated
	Disposition string `json:"disposition" db:"disposition"`
	DKIM        string `json:"dkim" db:"dkim"`
	SPF         string `json:"spf" db:"spf"`

	// Identifiers
	EnvelopeTo   string `json:"envelope_to,omitempty" db:"envelope_to"`
	EnvelopeFrom string `json:"envelope_from,omitempty" db:"envelope_from"`
	HeaderFrom   string `json:"header_from,omitempty" db:"header_from"`

	Reasons     []PolicyOverrideReason `json:"reasons,omitempty"`
	AuthResults []AuthResult           `json:"auth_results,omitempty"`
}

// PolicyOverrideReason explains why the evaluated disposition differs from the policy
type PolicyOverrideReason struct {
	Type    string `json:"type"`
	Comment string `json:"comment,omitempty"`
}

// Auth result kinds
const (
	AuthKindDKIM = "dkim"
	AuthKindSPF  = "spf"
)

// AuthResult is a raw DKIM or SPF result of a record
type AuthResult struct {
	Kind     string `json:"kind"` // dkim, spf
	Domain   string `json:"domain"`
	Result   string `json:"result"`
	Selector string `json:"selector,omitempty"` // DKIM only
	Scope    string `json:"scope,omitempty"`    // SPF only
}
