package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsOrganization(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"SUMMIT LODGING LLC", true},
		{"ALPINE PROPERTIES INC", true},
		{"SMITH FAMILY TRUST", true},
		{"PEAK 8 HOLDINGS", true},
		{"RIVERFRONT CONDOMINIUM ASSOCIATION", true},
		{"TOWN OF BRECKENRIDGE", true},
		{"SUMMIT COUNTY HOUSING AUTHORITY", true},
		{"BRECKENRIDGE GRAND VACATIONS", true},
		{"JANE SMITH C/O ACME", true},
		{"DOE JOHN ET AL", true},
		{"UNIT #4 OWNERSHIP", true},
		{"JANE SMITH 2", true},

		{"Jane Q. Smith", false},
		{"SMITH JANE", false},
		{"JOHN DOE III", false},
		{"MARY OBRIEN", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsOrganization(tc.name))
		})
	}
}

func TestIsOrganizationBlankName(t *testing.T) {
	assert.True(t, IsOrganization(""))
	assert.True(t, IsOrganization("   "))
}

func TestListingIsBusiness(t *testing.T) {
	assert.True(t, ListingIsBusiness(nil), "no owners defaults to business")
	assert.False(t, ListingIsBusiness([]string{"Jane Smith"}))
	assert.False(t, ListingIsBusiness([]string{"Jane Smith", "John Smith"}))
	assert.True(t, ListingIsBusiness([]string{"Jane Smith", "Acme Rentals LLC"}))
}

func TestNormalizeOwnerKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{" jane  q.  smith ", "JANE Q SMITH"},
		{"SMITH FAMILY TRUST", "SMITH FAMILY TRUST"},
		{"J.R. Ewing", "JR EWING"},
		{"", ""},
		{"   ", ""},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, NormalizeOwnerKey(tc.in))
	}
}
