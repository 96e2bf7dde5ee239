package services

import (
	"time"

	"str-pipeline/models"
	"str-pipeline/utils"
)

// categoryPriority fixes the order in which signal categories are
// consulted. The first category with at least one signal wins.
var categoryPriority = []struct {
	category models.SignalCategory
	method   string
}{
	{models.SignalPermit, models.MethodDirectPermit},
	{models.SignalTransfer, models.MethodTransferCycle},
	{models.SignalAssessment, models.MethodAssessmentCycle},
	{models.SignalUpdate, models.MethodUpdateCycle},
	{models.SignalGeneric, models.MethodGenericCycle},
}

// InferRenewal derives the next renewal date from a listing's signal set.
// Returns nil only when no category holds a signal. Deterministic: the
// same signals and the same today always produce the same estimate.
func InferRenewal(signals []*models.RenewalSignal, today time.Time) *models.RenewalEstimate {
	today = utils.Midnight(today)

	byCategory := make(map[models.SignalCategory][]*models.RenewalSignal)
	for _, sig := range signals {
		byCategory[sig.Category] = append(byCategory[sig.Category], sig)
	}

	for _, entry := range categoryPriority {
		candidates := byCategory[entry.category]
		if len(candidates) == 0 {
			continue
		}

		var date, reference time.Time
		switch entry.method {
		case models.MethodDirectPermit:
			date, reference = directPermit(candidates, today)
		case models.MethodAssessmentCycle:
			date, reference = assessmentCycle(candidates, today)
		default:
			date, reference = annualCycle(candidates, today)
		}

		return finalize(&models.RenewalEstimate{
			Date:      date,
			Method:    entry.method,
			Reference: reference,
		}, today)
	}
	return nil
}

// directPermit picks the earliest permit dated on or after today; when no
// permit is upcoming it falls back to the latest known permit date (the
// renewal already happened or is overdue).
func directPermit(candidates []*models.RenewalSignal, today time.Time) (time.Time, time.Time) {
	for _, sig := range candidates { // signals arrive date-ascending
		if !sig.Date.Before(today) {
			return sig.Date, sig.Date
		}
	}
	latest := candidates[len(candidates)-1].Date
	return latest, latest
}

// annualCycle advances the most recent signal by 1-year steps until the
// result lands strictly after today.
func annualCycle(candidates []*models.RenewalSignal, today time.Time) (time.Time, time.Time) {
	reference := candidates[len(candidates)-1].Date
	date := reference
	for {
		date = date.AddDate(1, 0, 0)
		if date.After(today) {
			return date, reference
		}
	}
}

// assessmentCycle projects the county's odd-year reassessment cadence:
// round the reference year up to the next odd year, anchor on May 1, then
// step by two years until strictly after today.
func assessmentCycle(candidates []*models.RenewalSignal, today time.Time) (time.Time, time.Time) {
	reference := candidates[len(candidates)-1].Date
	year := reference.Year()
	if year%2 == 0 {
		year++
	}
	date := time.Date(year, time.May, 1, 0, 0, 0, 0, time.UTC)
	for !date.After(today) {
		date = date.AddDate(2, 0, 0)
	}
	return date, reference
}

// finalize fills the derived bucket fields on an estimate.
func finalize(e *models.RenewalEstimate, today time.Time) *models.RenewalEstimate {
	e.MonthKey = MonthKey(e.Date)
	e.Category = BucketFor(e.Date, today)
	return e
}

// MonthKey returns the YYYY-MM-01 timeline bucket for a date.
func MonthKey(date time.Time) string {
	return time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
}

// BucketFor places a renewal date in one of the five dated urgency buckets
// relative to today (midnight UTC). Listings without a usable date fall in
// the missing bucket upstream of this.
func BucketFor(date, today time.Time) string {
	date = utils.Midnight(date)
	today = utils.Midnight(today)

	if date.Before(today) {
		return models.CategoryOverdue
	}
	days := int(date.Sub(today).Hours() / 24)
	switch {
	case days <= 30:
		return models.CategoryDue30
	case days <= 60:
		return models.CategoryDue60
	case days <= 90:
		return models.CategoryDue90
	default:
		return models.CategoryFuture
	}
}

// BucketWindow returns the literal inclusive ISO bounds for an urgency
// bucket; open ends and the missing bucket yield empty strings.
func BucketWindow(category string, today time.Time) (string, string) {
	today = utils.Midnight(today)
	switch category {
	case models.CategoryOverdue:
		return "", utils.ISODate(today.AddDate(0, 0, -1))
	case models.CategoryDue30:
		return utils.ISODate(today), utils.ISODate(today.AddDate(0, 0, 30))
	case models.CategoryDue60:
		return utils.ISODate(today.AddDate(0, 0, 31)), utils.ISODate(today.AddDate(0, 0, 60))
	case models.CategoryDue90:
		return utils.ISODate(today.AddDate(0, 0, 61)), utils.ISODate(today.AddDate(0, 0, 90))
	case models.CategoryFuture:
		return utils.ISODate(today.AddDate(0, 0, 91)), ""
	default:
		return "", ""
	}
}
