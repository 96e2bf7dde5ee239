package services

import (
	"regexp"
	"strings"
)

// curatedNonPersonNames lists owner names that dodge every regex family
// but are known not to be individuals.
var curatedNonPersonNames = map[string]struct{}{
	"BRECKENRIDGE GRAND VACATIONS":   {},
	"COPPER MOUNTAIN CONSOLIDATED":   {},
	"KEYSTONE NEIGHBOURHOOD":         {},
	"SUMMIT COMBINED HOUSING":        {},
	"VAIL SUMMIT RESORTS":            {},
	"WYNDHAM VACATION OWNERSHIP":     {},
	"INTERVAL INTERNATIONAL":         {},
	"GRAND TIMBER LODGE OWNERS":      {},
	"TIGER RUN RESORT CHALET OWNERS": {},
	"MOUNTAIN THUNDER LODGE":         {},
}

// organizationPatterns are the regex families that mark an owner name as a
// business or organization. Names are uppercased, period-stripped, and
// whitespace-collapsed before matching.
var organizationPatterns = []*regexp.Regexp{
	// legal-entity suffixes
	regexp.MustCompile(`\b(LLC|L L C|LLP|LLLP|LP|PLLC|PC|INC|INCORPORATED|CORP|CORPORATION|CO|COMPANY|LTD|LIMITED)\b`),
	// associations, HOAs, resort vocabulary
	regexp.MustCompile(`\b(ASSOCIATION|ASSOC|ASSOCIATES|HOA|CONDOMINIUMS?|CONDOS?|HOMEOWNERS|OWNERS|RESORTS?|LODGE|LODGING|CLUB|TOWNHOMES?|TIMESHARE)\b`),
	// business and finance vocabulary
	regexp.MustCompile(`\b(PROPERTIES|PROPERTY|REALTY|REAL ESTATE|HOLDINGS?|ENTERPRISES?|INVESTMENTS?|INVEST|CAPITAL|VENTURES?|GROUP|PARTNERS|PARTNERSHIP|MANAGEMENT|MGMT|DEVELOPMENT|RENTALS?|FUND|FINANCIAL|BANK)\b`),
	// trusts and institutions
	regexp.MustCompile(`\b(TRUST|TR|TRUSTEES?|REVOCABLE|IRREVOCABLE|ESTATE|FOUNDATION|CHURCH|MINISTRY|MINISTRIES|UNIVERSITY|SCHOOL)\b`),
	// government
	regexp.MustCompile(`\b(COUNTY|CITY|TOWN|STATE OF|UNITED STATES|USA|GOVERNMENT|FEDERAL|AUTHORITY|DISTRICT|DEPARTMENT|DEPT|COMMISSION|BUREAU)\b`),
	// care-of and et-al markers
	regexp.MustCompile(`\b(C/O|ET AL|ETAL|ATTN|IN CARE OF)\b`),
}

var digitRe = regexp.MustCompile(`[0-9]`)

// romanSuffixRe matches a trailing generational roman-numeral suffix,
// which is the one place a "numeral" is allowed in a person's name.
var romanSuffixRe = regexp.MustCompile(`\s(I|II|III|IV|V)$`)

// IsOrganization heuristically decides whether an owner display name
// belongs to a business or organization rather than an individual. Blank
// names classify as organizations so they are never miscounted as
// individual owners.
func IsOrganization(name string) bool {
	normalized := NormalizeOwnerKey(name)
	if normalized == "" {
		return true
	}

	if _, ok := curatedNonPersonNames[normalized]; ok {
		return true
	}
	if strings.Contains(normalized, "#") {
		return true
	}
	for _, re := range organizationPatterns {
		if re.MatchString(normalized) {
			return true
		}
	}

	return digitRe.MatchString(romanSuffixRe.ReplaceAllString(normalized, ""))
}

// ListingIsBusiness applies the classifier across a listing's owner names:
// one organizational owner marks the whole listing business-owned. A
// listing with no owner names at all inherits the conservative default.
func ListingIsBusiness(ownerNames []string) bool {
	if len(ownerNames) == 0 {
		return true
	}
	for _, name := range ownerNames {
		if IsOrganization(name) {
			return true
		}
	}
	return false
}

// NormalizeOwnerKey uppercases a name, strips periods, and collapses
// whitespace. The result is the grouping key for the owner leaderboard.
func NormalizeOwnerKey(name string) string {
	name = strings.ReplaceAll(name, ".", "")
	return strings.Join(strings.Fields(strings.ToUpper(name)), " ")
}
