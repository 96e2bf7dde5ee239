package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// RosterSource describes how to query one municipality's STR license
// roster. Sources are data, not code: the built-in defaults can be replaced
// or extended through a YAML file (STR_MUNICIPAL_ROSTERS).
type RosterSource struct {
	Municipality      string   `yaml:"municipality"`
	LayerURL          string   `yaml:"layer_url"`
	ScheduleField     string   `yaml:"schedule_field"`
	LicenseIDField    string   `yaml:"license_id_field"`
	StatusField       string   `yaml:"status_field"`
	ExpirationField   string   `yaml:"expiration_field"`
	UpdatedField      string   `yaml:"updated_field"`
	Where             string   `yaml:"where"`
	OutFields         []string `yaml:"out_fields"`
	DetailURLTemplate string   `yaml:"detail_url_template"`
}

var placeholderRe = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// DetailURL renders the source's detail-URL template against a feature's
// attributes. An unresolvable placeholder yields "" rather than a broken
// link.
func (s RosterSource) DetailURL(attributes map[string]any) string {
	if s.DetailURLTemplate == "" {
		return ""
	}

	missing := false
	rendered := placeholderRe.ReplaceAllStringFunc(s.DetailURLTemplate, func(m string) string {
		field := m[1 : len(m)-1]
		value, ok := attributes[field]
		if !ok || value == nil {
			missing = true
			return ""
		}
		return strings.TrimSpace(fmt.Sprint(value))
	})
	if missing {
		return ""
	}
	return rendered
}

// DefaultRosterSources returns the built-in municipal roster definitions.
func DefaultRosterSources() []RosterSource {
	return []RosterSource{
		{
			Municipality:      "Breckenridge",
			LayerURL:          "https://services1.arcgis.com/DbqCQ5IIGIgjLU4g/arcgis/rest/services/STR_Licenses_Public/FeatureServer/0",
			ScheduleField:     "SCHEDULE_NUM",
			LicenseIDField:    "LICENSE_NO",
			StatusField:       "STATUS",
			ExpirationField:   "EXPIRATION",
			UpdatedField:      "LAST_UPDATE",
			DetailURLTemplate: "https://www.townofbreckenridge.com/str/{LICENSE_NO}",
		},
		{
			Municipality:    "Frisco",
			LayerURL:        "https://services7.arcgis.com/r0nAYG7DmzNoKGbT/arcgis/rest/services/Frisco_STR_Licenses/FeatureServer/0",
			ScheduleField:   "SCHEDULE",
			LicenseIDField:  "LICENSE_NO",
			StatusField:     "STATUS",
			ExpirationField: "EXPIRATION",
			UpdatedField:    "LASTUPDATED",
		},
		{
			Municipality:    "Dillon",
			LayerURL:        "https://services7.arcgis.com/4W0wSZ3KFcuX39pB/arcgis/rest/services/Dillon_STR_Licenses/FeatureServer/0",
			ScheduleField:   "SCHEDULE",
			LicenseIDField:  "LICENSE_NO",
			StatusField:     "STATUS",
			ExpirationField: "EXPIRATION",
			UpdatedField:    "LAST_UPDATED",
		},
		{
			Municipality:    "Silverthorne",
			LayerURL:        "https://services7.arcgis.com/p0mEetxHUAZJr0qG/arcgis/rest/services/Silverthorne_STR_Licenses/FeatureServer/0",
			ScheduleField:   "SCHEDULE",
			LicenseIDField:  "LICENSE_NO",
			StatusField:     "STATUS",
			ExpirationField: "EXPIRATION",
			UpdatedField:    "LAST_MODIFIED",
		},
	}
}

// LoadRosterSources merges the defaults with the overrides at path (if
// any). Overrides replace defaults for the same municipality and may add
// new municipalities. Entries missing the required fields are dropped with
// an error describing what was skipped.
func LoadRosterSources(path string) ([]RosterSource, error) {
	sources := DefaultRosterSources()
	if path == "" {
		return sources, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return sources, fmt.Errorf("config: read roster sources: %w", err)
	}

	var overrides []RosterSource
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return sources, fmt.Errorf("config: parse roster sources: %w", err)
	}

	byKey := make(map[string]int, len(sources))
	for i, s := range sources {
		byKey[strings.ToLower(s.Municipality)] = i
	}

	var skipped []string
	for _, o := range overrides {
		if o.Municipality == "" || o.LayerURL == "" || o.ScheduleField == "" ||
			o.LicenseIDField == "" || o.StatusField == "" {
			skipped = append(skipped, o.Municipality)
			continue
		}
		if i, ok := byKey[strings.ToLower(o.Municipality)]; ok {
			sources[i] = o
		} else {
			byKey[strings.ToLower(o.Municipality)] = len(sources)
			sources = append(sources, o)
		}
	}

	if len(skipped) > 0 {
		return sources, fmt.Errorf("config: skipped %d roster override(s) missing required fields: %s",
			len(skipped), strings.Join(skipped, ", "))
	}
	return sources, nil
}
