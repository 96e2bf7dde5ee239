package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"str-pipeline/models"
)

func estimate(method string, y int, m time.Month, d int) *models.RenewalEstimate {
	return &models.RenewalEstimate{
		Date:   time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		Method: method,
	}
}

func aggregateFixture() []*models.Listing {
	return []*models.Listing{
		{
			ID:           "100100",
			Subdivision:  "Peak 7 Estates",
			ZoneDistrict: "R-1",
			Municipality: "Breckenridge",
			OwnerNames:   []string{"Jane Smith"},
			Renewal:      estimate(models.MethodDirectPermit, 2024, time.June, 15),
			Municipal: &models.MunicipalAssignment{
				Municipality:     "Breckenridge",
				NormalizedStatus: models.StatusActive,
			},
		},
		{
			ID:           "100200",
			Subdivision:  "Peak 7 Estates",
			ZoneDistrict: "R-1",
			Municipality: "Breckenridge",
			OwnerNames:   []string{"Acme Rentals LLC"},
			Renewal:      estimate(models.MethodTransferCycle, 2024, time.June, 28),
			Municipal: &models.MunicipalAssignment{
				Municipality:     "Breckenridge",
				NormalizedStatus: models.StatusExpired,
			},
		},
		{
			ID:           "100300",
			Municipality: "Frisco",
			OwnerNames:   []string{"Jane Smith", "John Smith"},
			Renewal:      estimate(models.MethodTransferCycle, 2025, time.January, 10),
		},
		{
			ID:         "100400",
			OwnerNames: []string{"Jane Smith"},
		},
	}
}

func TestBuildAggregatesGeography(t *testing.T) {
	today := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	aggs := BuildAggregates(aggregateFixture(), today)

	require.Len(t, aggs.Subdivisions, 2)
	assert.Equal(t, "Peak 7 Estates", aggs.Subdivisions[0].Subdivision)
	assert.Equal(t, 2, aggs.Subdivisions[0].TotalListings)
	assert.Equal(t, 1, aggs.Subdivisions[0].BusinessOwned)
	assert.Equal(t, 1, aggs.Subdivisions[0].IndividualOwned)
	assert.Equal(t, UnknownSubdivision, aggs.Subdivisions[1].Subdivision)
	assert.Equal(t, 2, aggs.Subdivisions[1].TotalListings)

	require.Len(t, aggs.Zones, 2)
	assert.Equal(t, "R-1", aggs.Zones[0].ZoneDistrict)
	assert.Equal(t, UnknownZone, aggs.Zones[1].ZoneDistrict)

	require.Len(t, aggs.Municipalities, 3)
	assert.Equal(t, "Breckenridge", aggs.Municipalities[0].Municipality)
	assert.Equal(t, 2, aggs.Municipalities[0].TotalListings)
	// Only active or pending municipal statuses count as licensed.
	assert.Equal(t, 1, aggs.Municipalities[0].Licensed)
	assert.Equal(t, "Frisco", aggs.Municipalities[1].Municipality)
	assert.Equal(t, 0, aggs.Municipalities[1].Licensed)
	assert.Equal(t, UnknownMunicipality, aggs.Municipalities[2].Municipality)
}

func TestBuildAggregatesOwners(t *testing.T) {
	today := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	aggs := BuildAggregates(aggregateFixture(), today)

	require.NotEmpty(t, aggs.Owners)
	top := aggs.Owners[0]
	assert.Equal(t, "JANE SMITH", top.OwnerKey)
	assert.Equal(t, 3, top.PropertyCount)
	assert.False(t, top.IsBusiness)

	var acme *models.OwnerStat
	for i := range aggs.Owners {
		if aggs.Owners[i].OwnerKey == "ACME RENTALS LLC" {
			acme = &aggs.Owners[i]
		}
	}
	require.NotNil(t, acme)
	assert.Equal(t, 1, acme.PropertyCount)
	assert.True(t, acme.IsBusiness)
}

func TestBuildAggregatesTimeline(t *testing.T) {
	today := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	aggs := BuildAggregates(aggregateFixture(), today)

	require.Len(t, aggs.Timeline, 2)
	june := aggs.Timeline[0]
	assert.Equal(t, "2024-06-01", june.MonthKey)
	assert.Equal(t, 2, june.Count)
	assert.Equal(t, "2024-06-15", june.EarliestDate.Format("2006-01-02"))
	assert.Equal(t, "2024-06-28", june.LatestDate.Format("2006-01-02"))

	jan := aggs.Timeline[1]
	assert.Equal(t, "2025-01-01", jan.MonthKey)
	assert.Equal(t, 1, jan.Count)
}

func TestBuildAggregatesSummaryPartition(t *testing.T) {
	today := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	listings := aggregateFixture()
	aggs := BuildAggregates(listings, today)

	require.Len(t, aggs.Summary, len(models.Categories))
	total := 0
	for i, row := range aggs.Summary {
		assert.Equal(t, models.Categories[i], row.Category)
		total += row.Count
	}
	assert.Equal(t, len(listings), total, "buckets must partition the population")

	byCategory := make(map[string]models.SummaryBucket)
	for _, row := range aggs.Summary {
		byCategory[row.Category] = row
	}
	assert.Equal(t, 2, byCategory[models.CategoryDue30].Count)
	assert.Equal(t, 1, byCategory[models.CategoryFuture].Count)
	assert.Equal(t, 1, byCategory[models.CategoryMissing].Count)
	assert.Equal(t, 0, byCategory[models.CategoryOverdue].Count)

	assert.Equal(t, "2024-06-01", byCategory[models.CategoryDue30].WindowStart)
	assert.Equal(t, "2024-07-01", byCategory[models.CategoryDue30].WindowEnd)
	assert.Equal(t, "", byCategory[models.CategoryMissing].WindowStart)
	assert.Equal(t, "", byCategory[models.CategoryMissing].WindowEnd)
}

func TestBuildAggregatesMethods(t *testing.T) {
	today := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	aggs := BuildAggregates(aggregateFixture(), today)

	// Only methods actually present appear, in the fixed display order.
	require.Len(t, aggs.Methods, 2)
	assert.Equal(t, models.MethodDirectPermit, aggs.Methods[0].Method)
	assert.Equal(t, 1, aggs.Methods[0].Count)
	assert.Equal(t, models.MethodTransferCycle, aggs.Methods[1].Method)
	assert.Equal(t, 2, aggs.Methods[1].Count)
}

func TestBuildAggregatesEmpty(t *testing.T) {
	today := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	aggs := BuildAggregates(nil, today)

	assert.Empty(t, aggs.Subdivisions)
	assert.Empty(t, aggs.Zones)
	assert.Empty(t, aggs.Municipalities)
	assert.Empty(t, aggs.Owners)
	assert.Empty(t, aggs.Timeline)
	assert.Empty(t, aggs.Methods)
	// The summary always carries all six buckets, even over zero listings.
	require.Len(t, aggs.Summary, len(models.Categories))
	for _, row := range aggs.Summary {
		assert.Zero(t, row.Count)
	}
}
