package models

import "time"

// Normalized municipal license statuses.
const (
	StatusActive   = "active"
	StatusPending  = "pending"
	StatusExpired  = "expired"
	StatusInactive = "inactive"
	StatusRevoked  = "revoked"
	StatusUnknown  = "unknown"
)

// statusRanks orders normalized statuses for primary-license selection.
// Higher wins; an active license always beats a revoked one regardless of
// expiration dates.
var statusRanks = map[string]int{
	StatusActive:   5,
	StatusPending:  3,
	StatusUnknown:  1,
	StatusExpired:  0,
	StatusInactive: -1,
	StatusRevoked:  -2,
}

// StatusRank returns the selection rank for a normalized status.
// Unrecognized values rank as unknown.
func StatusRank(normalized string) int {
	if rank, ok := statusRanks[normalized]; ok {
		return rank
	}
	return statusRanks[StatusUnknown]
}

// MunicipalLicenseRecord is one license issued by one municipality, keyed to
// a listing by its county schedule number.
type MunicipalLicenseRecord struct {
	Municipality     string         `json:"municipality"`
	ScheduleNumber   string         `json:"schedule_number"`
	LicenseID        string         `json:"municipal_license_id"`
	Status           string         `json:"status"`
	NormalizedStatus string         `json:"normalized_status"`
	ExpirationDate   *time.Time     `json:"expiration_date"`
	UpdatedAt        *time.Time     `json:"updated_at"`
	DetailURL        string         `json:"detail_url,omitempty"`
	Raw              map[string]any `json:"raw,omitempty"`
}

// Licensed reports whether the record counts as licensed for the
// municipality rollup (active or pending).
func (r *MunicipalLicenseRecord) Licensed() bool {
	return r.NormalizedStatus == StatusActive || r.NormalizedStatus == StatusPending
}
