package models

import "time"

// SubdivisionStat is one per-subdivision rollup row.
type SubdivisionStat struct {
	Subdivision     string
	TotalListings   int
	BusinessOwned   int
	IndividualOwned int
}

// ZoneStat is one per-zoning-district rollup row.
type ZoneStat struct {
	ZoneDistrict    string
	TotalListings   int
	BusinessOwned   int
	IndividualOwned int
}

// MunicipalityStat is one per-municipality rollup row. Licensed counts
// listings whose primary municipal license is active or pending.
type MunicipalityStat struct {
	Municipality    string
	TotalListings   int
	BusinessOwned   int
	IndividualOwned int
	Licensed        int
}

// OwnerStat is one "land baron" leaderboard row, keyed by the normalized
// owner name. DisplayName keeps the longest variant seen across listings.
type OwnerStat struct {
	OwnerKey      string
	DisplayName   string
	PropertyCount int
	IsBusiness    bool
}

// TimelineBucket counts renewal estimates falling in one calendar month.
type TimelineBucket struct {
	MonthKey     string // YYYY-MM-01
	Count        int
	EarliestDate time.Time
	LatestDate   time.Time
}

// SummaryBucket is one of the six fixed urgency buckets. WindowStart and
// WindowEnd are the literal inclusive ISO bounds shown on the dashboard;
// either may be empty for the open-ended and missing buckets.
type SummaryBucket struct {
	Category    string
	Count       int
	WindowStart string
	WindowEnd   string
}

// MethodCount tallies how many estimates each inference method produced.
type MethodCount struct {
	Method string
	Count  int
}

// AggregateSet holds all seven freshly computed rollups for one run.
type AggregateSet struct {
	Subdivisions   []SubdivisionStat
	Zones          []ZoneStat
	Municipalities []MunicipalityStat
	Owners         []OwnerStat
	Timeline       []TimelineBucket
	Summary        []SummaryBucket
	Methods        []MethodCount
}

// RefreshSummary is the structured result of one full pipeline run.
// Success means every planned write completed.
type RefreshSummary struct {
	ListingsProcessed    int
	RosterRecords        int
	Reclassified         int
	MunicipalAssignments int

	SubdivisionRows  int
	ZoneRows         int
	MunicipalityRows int
	OwnerRows        int
	TimelineRows     int
	SummaryRows      int
	MethodRows       int
}
