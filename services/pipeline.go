package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"str-pipeline/models"
	"str-pipeline/utils"
)

// Store is the narrow datastore contract the pipeline needs.
type Store interface {
	FetchListings(ctx context.Context, pageSize int) ([]*models.Listing, error)
	FetchLicenseCache(ctx context.Context, pageSize int) ([]*models.MunicipalLicenseRecord, error)
	ReplaceLicenseCache(ctx context.Context, records []*models.MunicipalLicenseRecord) error
	UpsertRenewals(ctx context.Context, listings []*models.Listing) error
	UpsertBusinessFlags(ctx context.Context, listings []*models.Listing) error
	UpsertMunicipalAssignments(ctx context.Context, listings []*models.Listing) error
	ReplaceAggregates(ctx context.Context, aggs *models.AggregateSet) error
}

// Options configures one pipeline run.
type Options struct {
	Logger   *zap.SugaredLogger
	PageSize int
}

// Run executes one full refresh: fetch all listings, fetch or fall back to
// the municipal roster, compute every listing's derived state in a single
// in-memory pass, then write corrections and rollups sequentially in a
// fixed order. Concurrent runs are not supported.
func Run(ctx context.Context, store Store, reconciler *Reconciler, opts Options) (*models.RefreshSummary, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	today := utils.Midnight(time.Now())

	listings, err := store.FetchListings(ctx, opts.PageSize)
	if err != nil {
		return nil, fmt.Errorf("pipeline: fetch listings: %w", err)
	}
	logger.Infof("[pipeline] Loaded %d listings", len(listings))

	roster, rosterErr := reconciler.FetchRosters(ctx)
	freshRoster := rosterErr == nil
	if rosterErr != nil {
		logger.Errorf("[pipeline] Roster fetch failed, falling back to cached roster: %v", rosterErr)
		roster, err = store.FetchLicenseCache(ctx, opts.PageSize)
		if err != nil {
			return nil, fmt.Errorf("pipeline: roster fallback: %w", err)
		}
		logger.Infof("[pipeline] Using %d cached roster records", len(roster))
	}
	groups := GroupBySchedule(roster)

	var (
		freshEstimates []*models.Listing
		reclassified   []*models.Listing
		assignments    []*models.Listing
	)

	for _, listing := range listings {
		// A stored estimate is trusted verbatim; only absent estimates
		// trigger inference, and only absent buckets are refilled.
		if listing.Renewal == nil || listing.Renewal.Date.IsZero() {
			if est := InferRenewal(MineSignals(listing.Raw), today); est != nil {
				listing.Renewal = est
				freshEstimates = append(freshEstimates, listing)
			} else {
				listing.Renewal = nil
			}
		} else {
			if listing.Renewal.MonthKey == "" {
				listing.Renewal.MonthKey = MonthKey(listing.Renewal.Date)
			}
			if listing.Renewal.Category == "" {
				listing.Renewal.Category = BucketFor(listing.Renewal.Date, today)
			}
		}

		if business := ListingIsBusiness(listing.OwnerNames); business != listing.BusinessOwner {
			listing.BusinessOwner = business
			reclassified = append(reclassified, listing)
		}

		if listing.ScheduleNumber != "" {
			key := strings.ToUpper(strings.TrimSpace(listing.ScheduleNumber))
			if candidates := groups[key]; len(candidates) > 0 {
				assignment := BuildAssignment(candidates)
				if !AssignmentsEqual(listing.Municipal, assignment) {
					listing.Municipal = assignment
					assignments = append(assignments, listing)
				}
			}
		}
	}

	aggregates := BuildAggregates(listings, today)

	if err := store.UpsertRenewals(ctx, freshEstimates); err != nil {
		return nil, fmt.Errorf("pipeline: write renewal estimates: %w", err)
	}
	if err := store.UpsertBusinessFlags(ctx, reclassified); err != nil {
		return nil, fmt.Errorf("pipeline: write reclassifications: %w", err)
	}
	if err := store.UpsertMunicipalAssignments(ctx, assignments); err != nil {
		return nil, fmt.Errorf("pipeline: write municipal assignments: %w", err)
	}
	if freshRoster {
		if err := store.ReplaceLicenseCache(ctx, roster); err != nil {
			return nil, fmt.Errorf("pipeline: write license cache: %w", err)
		}
	}
	if err := store.ReplaceAggregates(ctx, aggregates); err != nil {
		return nil, fmt.Errorf("pipeline: write aggregates: %w", err)
	}

	summary := &models.RefreshSummary{
		ListingsProcessed:    len(listings),
		RosterRecords:        len(roster),
		Reclassified:         len(reclassified),
		MunicipalAssignments: len(assignments),
		SubdivisionRows:      len(aggregates.Subdivisions),
		ZoneRows:             len(aggregates.Zones),
		MunicipalityRows:     len(aggregates.Municipalities),
		OwnerRows:            len(aggregates.Owners),
		TimelineRows:         len(aggregates.Timeline),
		SummaryRows:          len(aggregates.Summary),
		MethodRows:           len(aggregates.Methods),
	}
	logger.Infof("[pipeline] Refresh complete: %d listings, %d roster records, %d reclassified, %d municipal updates",
		summary.ListingsProcessed, summary.RosterRecords, summary.Reclassified, summary.MunicipalAssignments)
	return summary, nil
}
