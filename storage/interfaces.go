package storage

import "str-pipeline/models"

// ListingWriter is the interface any listing export backend must satisfy.
type ListingWriter interface {
	WriteListings(listings []*models.Listing) error
	Close() error
}
