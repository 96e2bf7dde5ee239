package services

import (
	"sort"
	"time"

	"str-pipeline/models"
	"str-pipeline/utils"
)

// Fallback labels for blank geography strings.
const (
	UnknownSubdivision  = "Unknown Subdivision"
	UnknownZone         = "Unknown Zone"
	UnknownMunicipality = "Unknown Municipality"
)

// BuildAggregates folds every listing into the seven rollups in a single
// pass. The output is fully ordered, so identical input always produces
// byte-identical table contents.
func BuildAggregates(listings []*models.Listing, today time.Time) *models.AggregateSet {
	today = utils.Midnight(today)

	subdivisions := make(map[string]*models.SubdivisionStat)
	zones := make(map[string]*models.ZoneStat)
	municipalities := make(map[string]*models.MunicipalityStat)
	owners := make(map[string]*models.OwnerStat)
	timeline := make(map[string]*models.TimelineBucket)
	summary := make(map[string]int)
	methods := make(map[string]int)

	for _, listing := range listings {
		business := ListingIsBusiness(listing.OwnerNames)

		sub := orUnknown(listing.Subdivision, UnknownSubdivision)
		s, ok := subdivisions[sub]
		if !ok {
			s = &models.SubdivisionStat{Subdivision: sub}
			subdivisions[sub] = s
		}
		s.TotalListings++
		if business {
			s.BusinessOwned++
		} else {
			s.IndividualOwned++
		}

		zone := orUnknown(listing.ZoneDistrict, UnknownZone)
		z, ok := zones[zone]
		if !ok {
			z = &models.ZoneStat{ZoneDistrict: zone}
			zones[zone] = z
		}
		z.TotalListings++
		if business {
			z.BusinessOwned++
		} else {
			z.IndividualOwned++
		}

		muni := orUnknown(listing.Municipality, UnknownMunicipality)
		m, ok := municipalities[muni]
		if !ok {
			m = &models.MunicipalityStat{Municipality: muni}
			municipalities[muni] = m
		}
		m.TotalListings++
		if business {
			m.BusinessOwned++
		} else {
			m.IndividualOwned++
		}
		if listing.Municipal != nil &&
			(listing.Municipal.NormalizedStatus == models.StatusActive ||
				listing.Municipal.NormalizedStatus == models.StatusPending) {
			m.Licensed++
		}

		for _, name := range listing.OwnerNames {
			key := NormalizeOwnerKey(name)
			if key == "" {
				continue
			}
			o, ok := owners[key]
			if !ok {
				o = &models.OwnerStat{OwnerKey: key, DisplayName: name}
				owners[key] = o
			}
			if len(name) > len(o.DisplayName) {
				o.DisplayName = name
			}
			o.PropertyCount++
			o.IsBusiness = IsOrganization(o.DisplayName)
		}

		category := models.CategoryMissing
		if listing.Renewal != nil && !listing.Renewal.Date.IsZero() {
			category = listing.Renewal.Category
			if category == "" {
				category = BucketFor(listing.Renewal.Date, today)
			}
			methods[listing.Renewal.Method]++

			key := listing.Renewal.MonthKey
			if key == "" {
				key = MonthKey(listing.Renewal.Date)
			}
			t, ok := timeline[key]
			if !ok {
				t = &models.TimelineBucket{
					MonthKey:     key,
					EarliestDate: listing.Renewal.Date,
					LatestDate:   listing.Renewal.Date,
				}
				timeline[key] = t
			}
			t.Count++
			if listing.Renewal.Date.Before(t.EarliestDate) {
				t.EarliestDate = listing.Renewal.Date
			}
			if listing.Renewal.Date.After(t.LatestDate) {
				t.LatestDate = listing.Renewal.Date
			}
		}
		summary[category]++
	}

	return &models.AggregateSet{
		Subdivisions:   sortedSubdivisions(subdivisions),
		Zones:          sortedZones(zones),
		Municipalities: sortedMunicipalities(municipalities),
		Owners:         sortedOwners(owners),
		Timeline:       sortedTimeline(timeline),
		Summary:        summaryRows(summary, today),
		Methods:        methodRows(methods),
	}
}

func orUnknown(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func sortedSubdivisions(m map[string]*models.SubdivisionStat) []models.SubdivisionStat {
	rows := make([]models.SubdivisionStat, 0, len(m))
	for _, s := range m {
		rows = append(rows, *s)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Subdivision < rows[j].Subdivision })
	return rows
}

func sortedZones(m map[string]*models.ZoneStat) []models.ZoneStat {
	rows := make([]models.ZoneStat, 0, len(m))
	for _, z := range m {
		rows = append(rows, *z)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ZoneDistrict < rows[j].ZoneDistrict })
	return rows
}

func sortedMunicipalities(m map[string]*models.MunicipalityStat) []models.MunicipalityStat {
	rows := make([]models.MunicipalityStat, 0, len(m))
	for _, s := range m {
		rows = append(rows, *s)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Municipality < rows[j].Municipality })
	return rows
}

func sortedOwners(m map[string]*models.OwnerStat) []models.OwnerStat {
	rows := make([]models.OwnerStat, 0, len(m))
	for _, o := range m {
		rows = append(rows, *o)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].PropertyCount != rows[j].PropertyCount {
			return rows[i].PropertyCount > rows[j].PropertyCount
		}
		return rows[i].OwnerKey < rows[j].OwnerKey
	})
	return rows
}

func sortedTimeline(m map[string]*models.TimelineBucket) []models.TimelineBucket {
	rows := make([]models.TimelineBucket, 0, len(m))
	for _, t := range m {
		rows = append(rows, *t)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].MonthKey < rows[j].MonthKey })
	return rows
}

// summaryRows always emits all six buckets, in display order, with their
// literal window bounds. A zero count is still a row.
func summaryRows(counts map[string]int, today time.Time) []models.SummaryBucket {
	rows := make([]models.SummaryBucket, 0, len(models.Categories))
	for _, category := range models.Categories {
		start, end := BucketWindow(category, today)
		rows = append(rows, models.SummaryBucket{
			Category:    category,
			Count:       counts[category],
			WindowStart: start,
			WindowEnd:   end,
		})
	}
	return rows
}

func methodRows(counts map[string]int) []models.MethodCount {
	ordered := []string{
		models.MethodDirectPermit,
		models.MethodTransferCycle,
		models.MethodAssessmentCycle,
		models.MethodUpdateCycle,
		models.MethodGenericCycle,
	}
	rows := make([]models.MethodCount, 0, len(ordered))
	for _, method := range ordered {
		if n, ok := counts[method]; ok {
			rows = append(rows, models.MethodCount{Method: method, Count: n})
		}
	}
	return rows
}
