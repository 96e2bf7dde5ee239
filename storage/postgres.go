package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"str-pipeline/models"
	"str-pipeline/utils"
)

// DefaultPageSize is the datastore read page size.
const DefaultPageSize = 1000

// upsertChunkSize bounds how many listing rows go into one upsert request.
const upsertChunkSize = 500

// transientPgCodes are the Postgres error classes worth retrying: schema
// or server not yet accepting work, connection drops, lock races.
var transientPgCodes = map[string]struct{}{
	"57P01": {}, // admin_shutdown
	"57P03": {}, // cannot_connect_now
	"53300": {}, // too_many_connections
	"08000": {}, // connection_exception
	"08003": {}, // connection_does_not_exist
	"08006": {}, // connection_failure
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
}

// IsTransient reports whether a store error is worth retrying. Anything
// else propagates immediately and aborts the run.
func IsTransient(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		_, ok := transientPgCodes[string(pqErr.Code)]
		return ok
	}
	return utils.IsNetworkError(err)
}

// Postgres persists listings, the municipal license cache, and all seven
// aggregate rollups.
type Postgres struct {
	db     *sql.DB
	retry  *utils.RetryConfig
	logger *zap.SugaredLogger
}

// NewPostgres opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use store.
func NewPostgres(dsn string, logger *zap.SugaredLogger) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	p := &Postgres{
		db: db,
		retry: &utils.RetryConfig{
			MaxAttempts: utils.DefaultMaxAttempts,
			BaseDelay:   utils.DefaultBaseDelay,
			Classify:    IsTransient,
			Logger:      logger,
		},
		logger: logger,
	}
	if err := p.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return p, nil
}

func (p *Postgres) migrate() error {
	_, err := p.db.Exec(`
		CREATE TABLE IF NOT EXISTS listings (
			id                          TEXT PRIMARY KEY,
			schedule_number             TEXT    NOT NULL DEFAULT '',
			subdivision                 TEXT    NOT NULL DEFAULT '',
			zone_district               TEXT    NOT NULL DEFAULT '',
			municipality                TEXT    NOT NULL DEFAULT '',
			owner_names                 TEXT[]  NOT NULL DEFAULT '{}',
			business_owner              BOOLEAN NOT NULL DEFAULT FALSE,
			situs_address               TEXT    NOT NULL DEFAULT '',
			unit                        TEXT    NOT NULL DEFAULT '',
			detail_url                  TEXT    NOT NULL DEFAULT '',
			raw                         JSONB,
			renewal_date                DATE,
			renewal_method              TEXT,
			renewal_reference           DATE,
			renewal_month_key           TEXT,
			renewal_category            TEXT,
			municipal_name              TEXT,
			municipal_license_id        TEXT,
			municipal_status            TEXT,
			municipal_normalized_status TEXT,
			municipal_expiration        DATE,
			municipal_candidates        JSONB,
			created_at                  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at                  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_listings_schedule     ON listings(schedule_number);
		CREATE INDEX IF NOT EXISTS idx_listings_municipality ON listings(municipality);
		CREATE INDEX IF NOT EXISTS idx_listings_renewal      ON listings(renewal_date);

		CREATE TABLE IF NOT EXISTS municipal_licenses (
			id                BIGSERIAL PRIMARY KEY,
			municipality      TEXT NOT NULL,
			schedule_number   TEXT NOT NULL,
			license_id        TEXT NOT NULL,
			status            TEXT NOT NULL DEFAULT '',
			normalized_status TEXT NOT NULL DEFAULT 'unknown',
			expiration_date   DATE,
			updated_at        DATE,
			detail_url        TEXT NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_municipal_schedule ON municipal_licenses(schedule_number);

		CREATE TABLE IF NOT EXISTS subdivision_stats (
			subdivision      TEXT PRIMARY KEY,
			total_listings   INTEGER NOT NULL DEFAULT 0,
			business_owned   INTEGER NOT NULL DEFAULT 0,
			individual_owned INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS zone_stats (
			zone_district    TEXT PRIMARY KEY,
			total_listings   INTEGER NOT NULL DEFAULT 0,
			business_owned   INTEGER NOT NULL DEFAULT 0,
			individual_owned INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS municipality_stats (
			municipality     TEXT PRIMARY KEY,
			total_listings   INTEGER NOT NULL DEFAULT 0,
			business_owned   INTEGER NOT NULL DEFAULT 0,
			individual_owned INTEGER NOT NULL DEFAULT 0,
			licensed         INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS land_barons (
			owner_key      TEXT PRIMARY KEY,
			display_name   TEXT NOT NULL DEFAULT '',
			property_count INTEGER NOT NULL DEFAULT 0,
			is_business    BOOLEAN NOT NULL DEFAULT FALSE
		);

		CREATE TABLE IF NOT EXISTS renewal_timeline (
			month_key     TEXT PRIMARY KEY,
			count         INTEGER NOT NULL DEFAULT 0,
			earliest_date DATE,
			latest_date   DATE
		);

		CREATE TABLE IF NOT EXISTS renewal_summary (
			category     TEXT PRIMARY KEY,
			count        INTEGER NOT NULL DEFAULT 0,
			window_start TEXT NOT NULL DEFAULT '',
			window_end   TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS renewal_methods (
			method TEXT PRIMARY KEY,
			count  INTEGER NOT NULL DEFAULT 0
		);
	`)
	return err
}

// Close releases the underlying connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

const listingColumns = `
	id, schedule_number, subdivision, zone_district, municipality,
	owner_names, business_owner, situs_address, unit, detail_url, raw,
	renewal_date, renewal_method, renewal_reference, renewal_month_key,
	renewal_category, municipal_name, municipal_license_id,
	municipal_status, municipal_normalized_status, municipal_expiration,
	municipal_candidates, created_at, updated_at`

// FetchListings pages through the listings table in stable id order until
// a page comes back short.
func (p *Postgres) FetchListings(ctx context.Context, pageSize int) ([]*models.Listing, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var all []*models.Listing
	offset := 0
	for {
		var page []*models.Listing
		err := p.retry.Do("fetch listings", func() error {
			page = page[:0]
			rows, err := p.db.QueryContext(ctx, `
				SELECT `+listingColumns+`
				FROM listings
				ORDER BY id
				LIMIT $1 OFFSET $2
			`, pageSize, offset)
			if err != nil {
				return fmt.Errorf("postgres: fetch listings: %w", err)
			}
			defer rows.Close()

			for rows.Next() {
				listing, err := scanListing(rows)
				if err != nil {
					return err
				}
				page = append(page, listing)
			}
			return rows.Err()
		})
		if err != nil {
			return nil, err
		}

		all = append(all, page...)
		if len(page) < pageSize {
			break
		}
		offset += pageSize
	}
	return all, nil
}

func scanListing(rows *sql.Rows) (*models.Listing, error) {
	var (
		l              models.Listing
		rawJSON        []byte
		renewalDate    sql.NullTime
		renewalMethod  sql.NullString
		renewalRef     sql.NullTime
		renewalMonth   sql.NullString
		renewalCat     sql.NullString
		muniName       sql.NullString
		muniLicense    sql.NullString
		muniStatus     sql.NullString
		muniNormalized sql.NullString
		muniExpiration sql.NullTime
		candidatesJSON []byte
	)

	if err := rows.Scan(
		&l.ID, &l.ScheduleNumber, &l.Subdivision, &l.ZoneDistrict, &l.Municipality,
		pq.Array(&l.OwnerNames), &l.BusinessOwner, &l.SitusAddress, &l.Unit, &l.DetailURL, &rawJSON,
		&renewalDate, &renewalMethod, &renewalRef, &renewalMonth,
		&renewalCat, &muniName, &muniLicense,
		&muniStatus, &muniNormalized, &muniExpiration,
		&candidatesJSON, &l.CreatedAt, &l.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("postgres: scan listing: %w", err)
	}

	if len(rawJSON) > 0 {
		// Parse failures mean no raw payload, not a failed run.
		var raw any
		if err := json.Unmarshal(rawJSON, &raw); err == nil {
			l.Raw = raw
		}
	}

	if renewalDate.Valid {
		l.Renewal = &models.RenewalEstimate{
			Date:     utils.Midnight(renewalDate.Time),
			Method:   renewalMethod.String,
			MonthKey: renewalMonth.String,
			Category: renewalCat.String,
		}
		if renewalRef.Valid {
			l.Renewal.Reference = utils.Midnight(renewalRef.Time)
		}
	}

	if muniLicense.Valid && muniLicense.String != "" {
		assignment := &models.MunicipalAssignment{
			Municipality:     muniName.String,
			LicenseID:        muniLicense.String,
			Status:           muniStatus.String,
			NormalizedStatus: muniNormalized.String,
		}
		if muniExpiration.Valid {
			d := utils.Midnight(muniExpiration.Time)
			assignment.ExpirationDate = &d
		}
		if len(candidatesJSON) > 0 {
			var candidates []*models.MunicipalLicenseRecord
			if err := json.Unmarshal(candidatesJSON, &candidates); err == nil {
				assignment.Candidates = candidates
			}
		}
		l.Municipal = assignment
	}

	return &l, nil
}

// UpsertListings writes full listing rows keyed by id. This is the ingest path.
// Stored renewal estimates survive re-ingest untouched.
func (p *Postgres) UpsertListings(ctx context.Context, listings []*models.Listing) error {
	return p.chunkedUpsert(ctx, "upsert listings", listings, func(l *models.Listing) ([]string, []any, string) {
		rawJSON, _ := json.Marshal(l.Raw)
		columns := []string{
			"id", "schedule_number", "subdivision", "zone_district", "municipality",
			"owner_names", "business_owner", "situs_address", "unit", "detail_url", "raw",
		}
		values := []any{
			l.ID, l.ScheduleNumber, l.Subdivision, l.ZoneDistrict, l.Municipality,
			pq.Array(l.OwnerNames), l.BusinessOwner, l.SitusAddress, l.Unit, l.DetailURL, rawJSON,
		}
		return columns, values, `
			ON CONFLICT (id) DO UPDATE SET
				schedule_number = EXCLUDED.schedule_number,
				subdivision     = EXCLUDED.subdivision,
				zone_district   = EXCLUDED.zone_district,
				municipality    = EXCLUDED.municipality,
				owner_names     = EXCLUDED.owner_names,
				business_owner  = EXCLUDED.business_owner,
				situs_address   = EXCLUDED.situs_address,
				unit            = EXCLUDED.unit,
				detail_url      = EXCLUDED.detail_url,
				raw             = EXCLUDED.raw,
				updated_at      = NOW()`
	})
}

// UpsertRenewals persists freshly computed renewal estimates.
func (p *Postgres) UpsertRenewals(ctx context.Context, listings []*models.Listing) error {
	return p.chunkedUpsert(ctx, "upsert renewals", listings, func(l *models.Listing) ([]string, []any, string) {
		columns := []string{
			"id", "renewal_date", "renewal_method", "renewal_reference",
			"renewal_month_key", "renewal_category",
		}
		values := []any{
			l.ID, l.Renewal.Date, l.Renewal.Method, l.Renewal.Reference,
			l.Renewal.MonthKey, l.Renewal.Category,
		}
		return columns, values, `
			ON CONFLICT (id) DO UPDATE SET
				renewal_date      = EXCLUDED.renewal_date,
				renewal_method    = EXCLUDED.renewal_method,
				renewal_reference = EXCLUDED.renewal_reference,
				renewal_month_key = EXCLUDED.renewal_month_key,
				renewal_category  = EXCLUDED.renewal_category,
				updated_at        = NOW()`
	})
}

// UpsertBusinessFlags persists owner reclassifications.
func (p *Postgres) UpsertBusinessFlags(ctx context.Context, listings []*models.Listing) error {
	return p.chunkedUpsert(ctx, "upsert business flags", listings, func(l *models.Listing) ([]string, []any, string) {
		return []string{"id", "business_owner"},
			[]any{l.ID, l.BusinessOwner}, `
			ON CONFLICT (id) DO UPDATE SET
				business_owner = EXCLUDED.business_owner,
				updated_at     = NOW()`
	})
}

// UpsertMunicipalAssignments persists changed municipal license
// assignments, candidate lists included.
func (p *Postgres) UpsertMunicipalAssignments(ctx context.Context, listings []*models.Listing) error {
	return p.chunkedUpsert(ctx, "upsert municipal assignments", listings, func(l *models.Listing) ([]string, []any, string) {
		var (
			expiration     *time.Time
			candidatesJSON []byte
		)
		if l.Municipal != nil {
			expiration = l.Municipal.ExpirationDate
			candidatesJSON, _ = json.Marshal(l.Municipal.Candidates)
		}
		m := l.Municipal
		if m == nil {
			m = &models.MunicipalAssignment{}
		}
		columns := []string{
			"id", "municipal_name", "municipal_license_id", "municipal_status",
			"municipal_normalized_status", "municipal_expiration", "municipal_candidates",
		}
		values := []any{
			l.ID, m.Municipality, m.LicenseID, m.Status,
			m.NormalizedStatus, expiration, candidatesJSON,
		}
		return columns, values, `
			ON CONFLICT (id) DO UPDATE SET
				municipal_name              = EXCLUDED.municipal_name,
				municipal_license_id        = EXCLUDED.municipal_license_id,
				municipal_status            = EXCLUDED.municipal_status,
				municipal_normalized_status = EXCLUDED.municipal_normalized_status,
				municipal_expiration        = EXCLUDED.municipal_expiration,
				municipal_candidates        = EXCLUDED.municipal_candidates,
				updated_at                  = NOW()`
	})
}

// chunkedUpsert batches listing-level writes 500 rows per request, each
// request wrapped in the retry helper.
func (p *Postgres) chunkedUpsert(ctx context.Context, op string, listings []*models.Listing,
	rowFn func(*models.Listing) ([]string, []any, string)) error {

	if len(listings) == 0 {
		return nil
	}

	for start := 0; start < len(listings); start += upsertChunkSize {
		end := start + upsertChunkSize
		if end > len(listings) {
			end = len(listings)
		}
		chunk := listings[start:end]

		var (
			columns  []string
			conflict string
			args     []any
			rows     []string
		)
		for _, l := range chunk {
			cols, values, onConflict := rowFn(l)
			columns, conflict = cols, onConflict
			placeholders := make([]string, len(values))
			for i := range values {
				placeholders[i] = fmt.Sprintf("$%d", len(args)+i+1)
			}
			args = append(args, values...)
			rows = append(rows, "("+strings.Join(placeholders, ",")+")")
		}

		query := fmt.Sprintf("INSERT INTO listings (%s) VALUES %s %s",
			strings.Join(columns, ", "), strings.Join(rows, ","), conflict)

		err := p.retry.Do(op, func() error {
			_, err := p.db.ExecContext(ctx, query, args...)
			return err
		})
		if err != nil {
			return fmt.Errorf("postgres: %s: %w", op, err)
		}
	}
	return nil
}

// FetchLicenseCache reads the previously persisted municipal roster, the
// fallback when every live roster source fails.
func (p *Postgres) FetchLicenseCache(ctx context.Context, pageSize int) ([]*models.MunicipalLicenseRecord, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var all []*models.MunicipalLicenseRecord
	offset := 0
	for {
		var page []*models.MunicipalLicenseRecord
		err := p.retry.Do("fetch license cache", func() error {
			page = page[:0]
			rows, err := p.db.QueryContext(ctx, `
				SELECT municipality, schedule_number, license_id, status,
				       normalized_status, expiration_date, updated_at, detail_url
				FROM municipal_licenses
				ORDER BY id
				LIMIT $1 OFFSET $2
			`, pageSize, offset)
			if err != nil {
				return fmt.Errorf("postgres: fetch license cache: %w", err)
			}
			defer rows.Close()

			for rows.Next() {
				var (
					r          models.MunicipalLicenseRecord
					expiration sql.NullTime
					updated    sql.NullTime
				)
				if err := rows.Scan(
					&r.Municipality, &r.ScheduleNumber, &r.LicenseID, &r.Status,
					&r.NormalizedStatus, &expiration, &updated, &r.DetailURL,
				); err != nil {
					return fmt.Errorf("postgres: scan license: %w", err)
				}
				if expiration.Valid {
					d := utils.Midnight(expiration.Time)
					r.ExpirationDate = &d
				}
				if updated.Valid {
					d := utils.Midnight(updated.Time)
					r.UpdatedAt = &d
				}
				page = append(page, &r)
			}
			return rows.Err()
		})
		if err != nil {
			return nil, err
		}

		all = append(all, page...)
		if len(page) < pageSize {
			break
		}
		offset += pageSize
	}
	return all, nil
}

// ReplaceLicenseCache rewrites the municipal license cache with a freshly
// fetched roster.
func (p *Postgres) ReplaceLicenseCache(ctx context.Context, records []*models.MunicipalLicenseRecord) error {
	return p.replaceTable(ctx, "municipal_licenses", func(tx *sql.Tx) error {
		rows := make([][]any, 0, len(records))
		for _, r := range records {
			rows = append(rows, []any{
				r.Municipality, r.ScheduleNumber, r.LicenseID, r.Status,
				r.NormalizedStatus, r.ExpirationDate, r.UpdatedAt, r.DetailURL,
			})
		}
		return insertRows(ctx, tx, "municipal_licenses", []string{
			"municipality", "schedule_number", "license_id", "status",
			"normalized_status", "expiration_date", "updated_at", "detail_url",
		}, rows)
	})
}

// ReplaceAggregates rewrites all seven rollup tables in a fixed order.
// Each table is replaced inside its own transaction: an empty result set
// still empties the table.
func (p *Postgres) ReplaceAggregates(ctx context.Context, aggs *models.AggregateSet) error {
	if err := p.replaceTable(ctx, "subdivision_stats", func(tx *sql.Tx) error {
		rows := make([][]any, 0, len(aggs.Subdivisions))
		for _, s := range aggs.Subdivisions {
			rows = append(rows, []any{s.Subdivision, s.TotalListings, s.BusinessOwned, s.IndividualOwned})
		}
		return insertRows(ctx, tx, "subdivision_stats",
			[]string{"subdivision", "total_listings", "business_owned", "individual_owned"}, rows)
	}); err != nil {
		return err
	}

	if err := p.replaceTable(ctx, "zone_stats", func(tx *sql.Tx) error {
		rows := make([][]any, 0, len(aggs.Zones))
		for _, z := range aggs.Zones {
			rows = append(rows, []any{z.ZoneDistrict, z.TotalListings, z.BusinessOwned, z.IndividualOwned})
		}
		return insertRows(ctx, tx, "zone_stats",
			[]string{"zone_district", "total_listings", "business_owned", "individual_owned"}, rows)
	}); err != nil {
		return err
	}

	if err := p.replaceTable(ctx, "municipality_stats", func(tx *sql.Tx) error {
		rows := make([][]any, 0, len(aggs.Municipalities))
		for _, m := range aggs.Municipalities {
			rows = append(rows, []any{m.Municipality, m.TotalListings, m.BusinessOwned, m.IndividualOwned, m.Licensed})
		}
		return insertRows(ctx, tx, "municipality_stats",
			[]string{"municipality", "total_listings", "business_owned", "individual_owned", "licensed"}, rows)
	}); err != nil {
		return err
	}

	if err := p.replaceTable(ctx, "land_barons", func(tx *sql.Tx) error {
		rows := make([][]any, 0, len(aggs.Owners))
		for _, o := range aggs.Owners {
			rows = append(rows, []any{o.OwnerKey, o.DisplayName, o.PropertyCount, o.IsBusiness})
		}
		return insertRows(ctx, tx, "land_barons",
			[]string{"owner_key", "display_name", "property_count", "is_business"}, rows)
	}); err != nil {
		return err
	}

	if err := p.replaceTable(ctx, "renewal_timeline", func(tx *sql.Tx) error {
		rows := make([][]any, 0, len(aggs.Timeline))
		for _, t := range aggs.Timeline {
			rows = append(rows, []any{t.MonthKey, t.Count, t.EarliestDate, t.LatestDate})
		}
		return insertRows(ctx, tx, "renewal_timeline",
			[]string{"month_key", "count", "earliest_date", "latest_date"}, rows)
	}); err != nil {
		return err
	}

	if err := p.replaceTable(ctx, "renewal_summary", func(tx *sql.Tx) error {
		rows := make([][]any, 0, len(aggs.Summary))
		for _, b := range aggs.Summary {
			rows = append(rows, []any{b.Category, b.Count, b.WindowStart, b.WindowEnd})
		}
		return insertRows(ctx, tx, "renewal_summary",
			[]string{"category", "count", "window_start", "window_end"}, rows)
	}); err != nil {
		return err
	}

	return p.replaceTable(ctx, "renewal_methods", func(tx *sql.Tx) error {
		rows := make([][]any, 0, len(aggs.Methods))
		for _, m := range aggs.Methods {
			rows = append(rows, []any{m.Method, m.Count})
		}
		return insertRows(ctx, tx, "renewal_methods", []string{"method", "count"}, rows)
	})
}

// replaceTable deletes every row and inserts the fresh set inside one
// transaction, retried as a unit.
func (p *Postgres) replaceTable(ctx context.Context, table string, insert func(*sql.Tx) error) error {
	err := p.retry.Do("replace "+table, func() error {
		tx, err := p.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			tx.Rollback()
			return fmt.Errorf("delete: %w", err)
		}
		if err := insert(tx); err != nil {
			tx.Rollback()
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("postgres: replace %s: %w", table, err)
	}
	return nil
}

// insertRows batch-inserts rows with multi-VALUES statements.
func insertRows(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	const batchSize = 500
	for start := 0; start < len(rows); start += batchSize {
		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]

		var (
			args   []any
			values []string
		)
		for _, row := range batch {
			placeholders := make([]string, len(row))
			for i := range row {
				placeholders[i] = fmt.Sprintf("$%d", len(args)+i+1)
			}
			args = append(args, row...)
			values = append(values, "("+strings.Join(placeholders, ",")+")")
		}

		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
			table, strings.Join(columns, ", "), strings.Join(values, ","))
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert %s: %w", table, err)
		}
	}
	return nil
}
