package summit

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"str-pipeline/arcgis"
	"str-pipeline/models"
	"str-pipeline/services"
	"str-pipeline/utils"
)

const detailURLFormat = "https://gis.summitcountyco.gov/map/DetailData.aspx?Schno=%s"

var (
	brTagRe   = regexp.MustCompile(`(?i)<br\s*/?>`)
	htmlTagRe = regexp.MustCompile(`<[^>]+>`)
	unitRe    = regexp.MustCompile(`(?i)\bUNIT\s+([A-Za-z0-9-]+)`)
	bldgRe    = regexp.MustCompile(`(?i)\bBLDG\s+([A-Za-z0-9-]+)`)
)

// Scraper pulls the county's public registration layer and converts its
// features into listings.
type Scraper struct {
	client   *arcgis.Client
	layerURL string
	pageSize int
	logger   *zap.SugaredLogger
}

func New(client *arcgis.Client, layerURL string, pageSize int, logger *zap.SugaredLogger) *Scraper {
	if pageSize <= 0 {
		pageSize = arcgis.DefaultPageSize
	}
	return &Scraper{client: client, layerURL: layerURL, pageSize: pageSize, logger: logger}
}

// Scrape fetches every feature from the county layer and returns one listing
// per distinct property key. Later duplicates of a key are dropped.
func (s *Scraper) Scrape(ctx context.Context) ([]*models.Listing, error) {
	features, err := s.client.QueryAll(ctx, s.layerURL, arcgis.Query{Where: "1=1"}, s.pageSize)
	if err != nil {
		return nil, fmt.Errorf("summit: query county layer: %w", err)
	}
	s.logger.Infof("[summit] Fetched %d features", len(features))

	seen := utils.NewKeySet()
	listings := make([]*models.Listing, 0, len(features))
	skipped := 0
	for _, feature := range features {
		listing := buildListing(feature.Attributes)
		if listing.ID == "" {
			skipped++
			continue
		}
		if !seen.Add(listing.ID) {
			skipped++
			continue
		}
		listings = append(listings, listing)
	}
	if skipped > 0 {
		s.logger.Warnf("[summit] Skipped %d features (missing key or duplicate)", skipped)
	}
	s.logger.Infof("[summit] Built %d listings", len(listings))
	return listings, nil
}

func buildListing(attrs map[string]any) *models.Listing {
	id := featureKey(attrs)
	owners := ownerNames(attrs)

	listing := &models.Listing{
		ID:             id,
		ScheduleNumber: strings.ToUpper(attrString(attrs, "PropertyScheduleText")),
		Subdivision:    fallback(attrString(attrs, "SubdivisionName"), "Unknown Subdivision"),
		ZoneDistrict:   fallback(attrString(attrs, "ZoneDistrict"), "Unknown Zone"),
		Municipality:   fallback(attrString(attrs, "Jurisdiction"), "Unknown Municipality"),
		OwnerNames:     owners,
		BusinessOwner:  services.ListingIsBusiness(owners),
		SitusAddress:   attrString(attrs, "SitusAddress"),
		Raw:            attrs,
	}
	listing.Unit = extractUnit(attrString(attrs, "BriefPropertyDescription"), listing.SitusAddress)
	if id != "" {
		listing.DetailURL = fmt.Sprintf(detailURLFormat, id)
	}
	return listing
}

// featureKey picks the most stable identifier the layer exposes.
func featureKey(attrs map[string]any) string {
	for _, field := range []string{"PropertyScheduleText", "HC_RegistrationsOriginalCleaned", "OBJECTID"} {
		if v, ok := attrs[field]; ok {
			if s := strings.TrimSpace(fmt.Sprintf("%v", v)); s != "" && s != "<nil>" {
				return strings.ToUpper(s)
			}
		}
	}
	return ""
}

// ownerNames parses the HTML-formatted public owner field, one owner per
// <br>-separated line, falling back to the single plain-text name field.
func ownerNames(attrs map[string]any) []string {
	raw := attrString(attrs, "OwnerNamesPublicHTML")
	if raw == "" {
		if name := attrString(attrs, "OwnerFullName"); name != "" {
			return []string{name}
		}
		return nil
	}
	var names []string
	for _, part := range brTagRe.Split(raw, -1) {
		name := strings.TrimSpace(html.UnescapeString(htmlTagRe.ReplaceAllString(part, "")))
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

func extractUnit(description, address string) string {
	for _, text := range []string{description, address} {
		if m := unitRe.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	for _, text := range []string{description, address} {
		if m := bldgRe.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

func attrString(attrs map[string]any, key string) string {
	v, ok := attrs[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprintf("%v", v))
}

func fallback(value, def string) string {
	if value == "" {
		return def
	}
	return value
}
