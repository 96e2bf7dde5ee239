package storage

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"str-pipeline/models"
)

func TestCSVWriterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "listings.csv")

	w, err := NewCSVWriter(path)
	require.NoError(t, err)

	listings := []*models.Listing{
		{
			ID:             "100100",
			ScheduleNumber: "100100",
			Subdivision:    "Peak 7 Estates",
			ZoneDistrict:   "R-1",
			Municipality:   "Breckenridge",
			OwnerNames:     []string{"SMITH JANE", "SMITH JOHN"},
			BusinessOwner:  false,
			SitusAddress:   "123 MAIN ST",
			Unit:           "4B",
			DetailURL:      "https://example.com/100100",
			Renewal: &models.RenewalEstimate{
				Date:   time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
				Method: models.MethodDirectPermit,
			},
		},
		{ID: "200200", OwnerNames: []string{"ACME RENTALS LLC"}, BusinessOwner: true},
	}
	require.NoError(t, w.WriteListings(listings))
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "id", rows[0][0])
	assert.Equal(t, "100100", rows[1][0])
	assert.Equal(t, "SMITH JANE; SMITH JOHN", rows[1][5])
	assert.Equal(t, "false", rows[1][6])
	assert.Equal(t, "2025-03-01", rows[1][9])
	assert.Equal(t, "direct_permit", rows[1][10])

	// A listing without an estimate leaves the renewal columns blank.
	assert.Equal(t, "", rows[2][9])
	assert.Equal(t, "", rows[2][10])
}
