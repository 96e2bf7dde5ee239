package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"str-pipeline/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestInferRenewalDirectPermitUpcoming(t *testing.T) {
	today := day(2024, time.June, 1)
	est := InferRenewal(MineSignals(map[string]any{
		"license_expiration": "2025-03-01",
	}), today)

	require.NotNil(t, est)
	assert.Equal(t, models.MethodDirectPermit, est.Method)
	assert.Equal(t, day(2025, time.March, 1), est.Date)
	assert.Equal(t, day(2025, time.March, 1), est.Reference)
	assert.Equal(t, "2025-03-01", est.MonthKey)
	assert.Equal(t, models.CategoryFuture, est.Category)
}

func TestInferRenewalDirectPermitPicksEarliestUpcoming(t *testing.T) {
	today := day(2024, time.June, 1)
	est := InferRenewal(MineSignals(map[string]any{
		"permit_issued":  "2023-07-01",
		"permit_renewal": "2024-07-01",
		"permit_expires": "2025-07-01",
	}), today)

	require.NotNil(t, est)
	assert.Equal(t, models.MethodDirectPermit, est.Method)
	assert.Equal(t, day(2024, time.July, 1), est.Date)
}

func TestInferRenewalDirectPermitAllPast(t *testing.T) {
	today := day(2024, time.June, 1)
	est := InferRenewal(MineSignals(map[string]any{
		"permit_issued":  "2022-03-01",
		"permit_expires": "2023-03-01",
	}), today)

	require.NotNil(t, est)
	assert.Equal(t, models.MethodDirectPermit, est.Method)
	assert.Equal(t, day(2023, time.March, 1), est.Date)
	assert.Equal(t, models.CategoryOverdue, est.Category)
}

func TestInferRenewalTransferCycle(t *testing.T) {
	today := day(2024, time.June, 1)
	est := InferRenewal(MineSignals(map[string]any{
		"sale_date": "2023-01-10",
	}), today)

	require.NotNil(t, est)
	assert.Equal(t, models.MethodTransferCycle, est.Method)
	assert.Equal(t, day(2025, time.January, 10), est.Date)
	assert.Equal(t, day(2023, time.January, 10), est.Reference)
}

func TestInferRenewalTransferAlwaysAdvances(t *testing.T) {
	// A transfer dated later than today still moves forward a full year.
	today := day(2024, time.June, 1)
	est := InferRenewal(MineSignals(map[string]any{
		"sale_date": "2024-08-15",
	}), today)

	require.NotNil(t, est)
	assert.Equal(t, day(2025, time.August, 15), est.Date)
}

func TestInferRenewalAssessmentCycle(t *testing.T) {
	today := day(2024, time.June, 1)
	est := InferRenewal(MineSignals(map[string]any{
		"assessment_year": float64(2022),
	}), today)

	require.NotNil(t, est)
	assert.Equal(t, models.MethodAssessmentCycle, est.Method)
	// 2022 rounds up to the odd 2023, May 1 2023 has passed, next step is 2025.
	assert.Equal(t, day(2025, time.May, 1), est.Date)
	assert.Equal(t, day(2022, time.January, 1), est.Reference)
}

func TestInferRenewalUpdateCycle(t *testing.T) {
	today := day(2024, time.June, 1)
	est := InferRenewal(MineSignals(map[string]any{
		"last_update": "2024-03-05",
	}), today)

	require.NotNil(t, est)
	assert.Equal(t, models.MethodUpdateCycle, est.Method)
	assert.Equal(t, day(2025, time.March, 5), est.Date)
}

func TestInferRenewalCategoryPriority(t *testing.T) {
	today := day(2024, time.June, 1)
	est := InferRenewal(MineSignals(map[string]any{
		"sale_date":      "2023-01-10",
		"permit_expires": "2025-03-01",
	}), today)

	require.NotNil(t, est)
	assert.Equal(t, models.MethodDirectPermit, est.Method)
}

func TestInferRenewalNoSignals(t *testing.T) {
	today := day(2024, time.June, 1)
	assert.Nil(t, InferRenewal(nil, today))
	assert.Nil(t, InferRenewal(MineSignals(nil), today))
	assert.Nil(t, InferRenewal(MineSignals(map[string]any{"notes": "nothing here"}), today))
}

func TestInferRenewalDeterministic(t *testing.T) {
	today := day(2024, time.June, 1)
	raw := map[string]any{
		"sale_date":   "2023-01-10",
		"deed_date":   "2021-04-04",
		"last_update": "2024-02-02",
	}

	first := InferRenewal(MineSignals(raw), today)
	second := InferRenewal(MineSignals(raw), today)
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, first, second)
}

func TestMonthKey(t *testing.T) {
	assert.Equal(t, "2025-03-01", MonthKey(day(2025, time.March, 28)))
	assert.Equal(t, "2024-12-01", MonthKey(day(2024, time.December, 1)))
}

func TestBucketFor(t *testing.T) {
	today := day(2024, time.June, 1)
	tests := []struct {
		name string
		date time.Time
		want string
	}{
		{"yesterday", today.AddDate(0, 0, -1), models.CategoryOverdue},
		{"today", today, models.CategoryDue30},
		{"day 30", today.AddDate(0, 0, 30), models.CategoryDue30},
		{"day 31", today.AddDate(0, 0, 31), models.CategoryDue60},
		{"day 60", today.AddDate(0, 0, 60), models.CategoryDue60},
		{"day 61", today.AddDate(0, 0, 61), models.CategoryDue90},
		{"day 90", today.AddDate(0, 0, 90), models.CategoryDue90},
		{"day 91", today.AddDate(0, 0, 91), models.CategoryFuture},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, BucketFor(tc.date, today))
		})
	}
}

func TestBucketWindow(t *testing.T) {
	today := day(2024, time.June, 1)

	start, end := BucketWindow(models.CategoryOverdue, today)
	assert.Equal(t, "", start)
	assert.Equal(t, "2024-05-31", end)

	start, end = BucketWindow(models.CategoryDue30, today)
	assert.Equal(t, "2024-06-01", start)
	assert.Equal(t, "2024-07-01", end)

	start, end = BucketWindow(models.CategoryDue60, today)
	assert.Equal(t, "2024-07-02", start)
	assert.Equal(t, "2024-07-31", end)

	start, end = BucketWindow(models.CategoryDue90, today)
	assert.Equal(t, "2024-08-01", start)
	assert.Equal(t, "2024-08-30", end)

	start, end = BucketWindow(models.CategoryFuture, today)
	assert.Equal(t, "2024-08-31", start)
	assert.Equal(t, "", end)

	start, end = BucketWindow(models.CategoryMissing, today)
	assert.Equal(t, "", start)
	assert.Equal(t, "", end)
}
