package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetailURL(t *testing.T) {
	source := RosterSource{
		DetailURLTemplate: "https://example.com/str/{LICENSE_NO}?muni={MUNI}",
	}

	url := source.DetailURL(map[string]any{
		"LICENSE_NO": " STR-001 ",
		"MUNI":       "frisco",
	})
	assert.Equal(t, "https://example.com/str/STR-001?muni=frisco", url)
}

func TestDetailURLMissingPlaceholder(t *testing.T) {
	source := RosterSource{
		DetailURLTemplate: "https://example.com/str/{LICENSE_NO}",
	}

	assert.Equal(t, "", source.DetailURL(map[string]any{}))
	assert.Equal(t, "", source.DetailURL(map[string]any{"LICENSE_NO": nil}))
}

func TestDetailURLNoTemplate(t *testing.T) {
	assert.Equal(t, "", RosterSource{}.DetailURL(map[string]any{"X": "y"}))
}

func TestLoadRosterSourcesDefaults(t *testing.T) {
	sources, err := LoadRosterSources("")
	require.NoError(t, err)
	require.Len(t, sources, 4)
	assert.Equal(t, "Breckenridge", sources[0].Municipality)
}

func TestLoadRosterSourcesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rosters.yaml")
	yaml := `
- municipality: Breckenridge
  layer_url: https://example.com/breck/FeatureServer/0
  schedule_field: SCHED
  license_id_field: LIC
  status_field: STAT
- municipality: Blue River
  layer_url: https://example.com/blueriver/FeatureServer/0
  schedule_field: SCHEDULE
  license_id_field: LICENSE_NO
  status_field: STATUS
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	sources, err := LoadRosterSources(path)
	require.NoError(t, err)
	require.Len(t, sources, 5)

	assert.Equal(t, "Breckenridge", sources[0].Municipality)
	assert.Equal(t, "https://example.com/breck/FeatureServer/0", sources[0].LayerURL)
	assert.Equal(t, "SCHED", sources[0].ScheduleField)

	assert.Equal(t, "Blue River", sources[4].Municipality)
}

func TestLoadRosterSourcesMixedFileKeepsValidEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rosters.yaml")
	yaml := `
- municipality: Blue River
  layer_url: https://example.com/blueriver/FeatureServer/0
  schedule_field: SCHEDULE
  license_id_field: LICENSE_NO
  status_field: STATUS
- municipality: Montezuma
  layer_url: https://example.com/montezuma/FeatureServer/0
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	// An incomplete entry is reported, but the valid entries in the same
	// file still apply; the error must never cost the merged source list.
	sources, err := LoadRosterSources(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Montezuma")

	require.Len(t, sources, 5)
	assert.Equal(t, "Blue River", sources[4].Municipality)
	for _, s := range sources {
		assert.NotEqual(t, "Montezuma", s.Municipality)
	}
}

func TestLoadRosterSourcesSkipsIncomplete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rosters.yaml")
	yaml := `
- municipality: Montezuma
  layer_url: https://example.com/montezuma/FeatureServer/0
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	sources, err := LoadRosterSources(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Montezuma")
	// The defaults survive a bad override file.
	assert.Len(t, sources, 4)
}

func TestLoadRosterSourcesMissingFile(t *testing.T) {
	sources, err := LoadRosterSources(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Len(t, sources, 4)
}
