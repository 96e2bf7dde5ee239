package models

import "time"

// Listing is one property record as stored in PostgreSQL. The Raw payload
// keeps the original upstream feature attributes so the renewal heuristics
// can re-mine them on every run.
type Listing struct {
	ID             string
	ScheduleNumber string
	Subdivision    string
	ZoneDistrict   string
	Municipality   string
	OwnerNames     []string
	BusinessOwner  bool
	SitusAddress   string
	Unit           string
	DetailURL      string
	Raw            any

	Renewal   *RenewalEstimate
	Municipal *MunicipalAssignment

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PrimaryOwner returns the first non-blank owner name, or "".
func (l *Listing) PrimaryOwner() string {
	for _, name := range l.OwnerNames {
		if name != "" {
			return name
		}
	}
	return ""
}

// RenewalEstimate is the pipeline's best-guess next renewal date for a
// listing, with the method and the reference signal it was derived from.
type RenewalEstimate struct {
	Date      time.Time
	Method    string
	Reference time.Time
	MonthKey  string // YYYY-MM-01 timeline bucket
	Category  string // urgency bucket, one of the Category* constants
}

// Inference methods. Every non-missing estimate carries exactly one.
const (
	MethodDirectPermit    = "direct_permit"
	MethodTransferCycle   = "transfer_cycle"
	MethodAssessmentCycle = "assessment_cycle"
	MethodUpdateCycle     = "update_cycle"
	MethodGenericCycle    = "generic_cycle"
)

// Urgency buckets. Together they partition the listing population exactly.
const (
	CategoryOverdue = "overdue"
	CategoryDue30   = "due_30"
	CategoryDue60   = "due_60"
	CategoryDue90   = "due_90"
	CategoryFuture  = "future"
	CategoryMissing = "missing"
)

// Categories lists the urgency buckets in display order.
var Categories = []string{
	CategoryOverdue, CategoryDue30, CategoryDue60,
	CategoryDue90, CategoryFuture, CategoryMissing,
}

// MunicipalAssignment is the primary municipal license denormalized onto a
// listing, plus the full candidate set it was chosen from.
type MunicipalAssignment struct {
	Municipality     string
	LicenseID        string
	Status           string
	NormalizedStatus string
	ExpirationDate   *time.Time
	Candidates       []*MunicipalLicenseRecord
}
