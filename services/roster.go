package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"str-pipeline/arcgis"
	"str-pipeline/config"
	"str-pipeline/models"
	"str-pipeline/utils"
)

// statusAliases maps free-text license statuses to normalized states by
// substring, checked in order. Unmatched text normalizes to unknown.
var statusAliases = []struct {
	substring  string
	normalized string
}{
	{"APPROVED", models.StatusActive},
	{"ACTIVE", models.StatusActive},
	{"ISSUED", models.StatusActive},
	{"CURRENT", models.StatusActive},
	{"GOOD STANDING", models.StatusActive},
	{"IN GOOD STANDING", models.StatusActive},
	{"RENEWED", models.StatusActive},
	{"PAID", models.StatusActive},
	{"PENDING", models.StatusPending},
	{"UNDER REVIEW", models.StatusPending},
	{"IN PROCESS", models.StatusPending},
	{"EXPIRED", models.StatusExpired},
	{"INACTIVE", models.StatusInactive},
	{"SUSPENDED", models.StatusInactive},
	{"REVOKED", models.StatusRevoked},
	{"DENIED", models.StatusRevoked},
	{"CANCELLED", models.StatusRevoked},
	{"CANCELED", models.StatusRevoked},
}

// NormalizeStatus maps a municipality's free-text license status to one of
// the six normalized states.
func NormalizeStatus(value string) string {
	text := strings.ToUpper(strings.TrimSpace(value))
	if text == "" {
		return models.StatusUnknown
	}
	for _, alias := range statusAliases {
		if strings.Contains(text, alias.substring) {
			return alias.normalized
		}
	}
	return models.StatusUnknown
}

// Reconciler fetches and normalizes the municipal STR license rosters and
// selects one primary license per schedule number.
type Reconciler struct {
	client   *arcgis.Client
	sources  []config.RosterSource
	pageSize int
	logger   *zap.SugaredLogger
}

// NewReconciler creates a Reconciler over the given roster sources.
func NewReconciler(client *arcgis.Client, sources []config.RosterSource, pageSize int, logger *zap.SugaredLogger) *Reconciler {
	if pageSize <= 0 {
		pageSize = arcgis.DefaultPageSize
	}
	return &Reconciler{client: client, sources: sources, pageSize: pageSize, logger: logger}
}

// FetchRosters fetches every configured roster. Sources without a layer
// URL are skipped with a warning; sources that fail are logged and their
// data omitted. An error is returned only when no source could be
// attempted or every attempted source fails; the caller is expected to
// fall back to cached roster data.
func (r *Reconciler) FetchRosters(ctx context.Context) ([]*models.MunicipalLicenseRecord, error) {
	var records []*models.MunicipalLicenseRecord
	attempted, failed := 0, 0
	var lastErr error

	for _, source := range r.sources {
		if source.LayerURL == "" {
			r.logger.Warnf("[roster] %s has no layer URL; skipping", source.Municipality)
			continue
		}
		attempted++

		features, err := r.client.QueryAll(ctx, source.LayerURL, arcgis.Query{
			Where:     source.Where,
			OutFields: source.OutFields,
		}, r.pageSize)
		if err != nil {
			failed++
			lastErr = err
			r.logger.Errorf("[roster] %s fetch failed: %v", source.Municipality, err)
			continue
		}

		fetched := 0
		for _, feature := range features {
			record := extractLicense(source, feature.Attributes)
			if record == nil {
				continue
			}
			records = append(records, record)
			fetched++
		}
		r.logger.Infof("[roster] Fetched %d STR licenses for %s", fetched, source.Municipality)
	}

	// A run with nothing to fetch must not pass for a fresh roster, or a
	// misconfiguration would erase the fallback cache.
	if attempted == 0 {
		return nil, fmt.Errorf("roster: no usable sources configured")
	}
	if failed == attempted {
		return nil, fmt.Errorf("roster: all %d sources failed: %w", attempted, lastErr)
	}
	return records, nil
}

// extractLicense builds a roster record from one feature's attributes.
// Records without both a schedule number and a license id are dropped.
func extractLicense(source config.RosterSource, attrs map[string]any) *models.MunicipalLicenseRecord {
	schedule := normalizeSchedule(attrs[source.ScheduleField])
	if schedule == "" {
		return nil
	}

	licenseID := strings.TrimSpace(attrString(attrs, source.LicenseIDField))
	if licenseID == "" {
		return nil
	}

	status := strings.TrimSpace(attrString(attrs, source.StatusField))
	if status == "" {
		status = "Unknown"
	}

	record := &models.MunicipalLicenseRecord{
		Municipality:     source.Municipality,
		ScheduleNumber:   schedule,
		LicenseID:        licenseID,
		Status:           status,
		NormalizedStatus: NormalizeStatus(status),
		DetailURL:        source.DetailURL(attrs),
		Raw:              attrs,
	}
	if source.ExpirationField != "" {
		if d, ok := utils.ParseDate(attrs[source.ExpirationField]); ok {
			record.ExpirationDate = &d
		}
	}
	if source.UpdatedField != "" {
		if d, ok := utils.ParseDate(attrs[source.UpdatedField]); ok {
			record.UpdatedAt = &d
		}
	}
	return record
}

// normalizeSchedule uppercases a schedule number for use as a join key.
func normalizeSchedule(value any) string {
	if value == nil {
		return ""
	}
	text := strings.TrimSpace(fmt.Sprint(value))
	if text == "" {
		return ""
	}
	return strings.ToUpper(text)
}

func attrString(attrs map[string]any, field string) string {
	if field == "" {
		return ""
	}
	value, ok := attrs[field]
	if !ok || value == nil {
		return ""
	}
	return fmt.Sprint(value)
}

// GroupBySchedule groups roster records into candidate sets keyed by
// schedule number.
func GroupBySchedule(records []*models.MunicipalLicenseRecord) map[string][]*models.MunicipalLicenseRecord {
	groups := make(map[string][]*models.MunicipalLicenseRecord)
	for _, record := range records {
		groups[record.ScheduleNumber] = append(groups[record.ScheduleNumber], record)
	}
	return groups
}

// SelectPrimary picks the single license that represents a schedule:
// highest status rank first, then latest expiration, then the
// case-insensitively smallest license id as the deterministic tie-break.
func SelectPrimary(candidates []*models.MunicipalLicenseRecord) *models.MunicipalLicenseRecord {
	if len(candidates) == 0 {
		return nil
	}

	sorted := make([]*models.MunicipalLicenseRecord, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		ra, rb := models.StatusRank(a.NormalizedStatus), models.StatusRank(b.NormalizedStatus)
		if ra != rb {
			return ra > rb
		}
		ea, eb := expirationOrNever(a), expirationOrNever(b)
		if !ea.Equal(eb) {
			return ea.After(eb)
		}
		la, lb := strings.ToLower(a.LicenseID), strings.ToLower(b.LicenseID)
		if la != lb {
			return la < lb
		}
		return a.Municipality < b.Municipality
	})
	return sorted[0]
}

func expirationOrNever(r *models.MunicipalLicenseRecord) time.Time {
	if r.ExpirationDate == nil {
		return time.Time{} // missing expiration sorts last
	}
	return *r.ExpirationDate
}

// BuildAssignment denormalizes a candidate set onto a listing, with the
// candidates ordered the same way the primary was selected.
func BuildAssignment(candidates []*models.MunicipalLicenseRecord) *models.MunicipalAssignment {
	primary := SelectPrimary(candidates)
	if primary == nil {
		return nil
	}
	return &models.MunicipalAssignment{
		Municipality:     primary.Municipality,
		LicenseID:        primary.LicenseID,
		Status:           primary.Status,
		NormalizedStatus: primary.NormalizedStatus,
		ExpirationDate:   primary.ExpirationDate,
		Candidates:       candidates,
	}
}

// AssignmentsEqual reports whether a freshly built assignment matches the
// stored one, candidate list included. Unchanged assignments must not
// produce writes.
func AssignmentsEqual(a, b *models.MunicipalAssignment) bool {
	if a == nil || b == nil {
		return a == b
	}
	aj, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bj, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(aj) == string(bj)
}
