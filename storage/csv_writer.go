package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"str-pipeline/models"
	"str-pipeline/utils"
)

// CSVWriter exports listings to a CSV file.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)

	if err := w.Write([]string{
		"id", "schedule_number", "subdivision", "zone_district", "municipality",
		"owners", "business_owner", "situs_address", "unit",
		"renewal_date", "renewal_method", "detail_url",
	}); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// WriteListings appends one row per listing.
func (c *CSVWriter) WriteListings(listings []*models.Listing) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, l := range listings {
		renewalDate, renewalMethod := "", ""
		if l.Renewal != nil && !l.Renewal.Date.IsZero() {
			renewalDate = utils.ISODate(l.Renewal.Date)
			renewalMethod = l.Renewal.Method
		}
		row := []string{
			l.ID,
			l.ScheduleNumber,
			l.Subdivision,
			l.ZoneDistrict,
			l.Municipality,
			strings.Join(l.OwnerNames, "; "),
			strconv.FormatBool(l.BusinessOwner),
			l.SitusAddress,
			l.Unit,
			renewalDate,
			renewalMethod,
			l.DetailURL,
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}
