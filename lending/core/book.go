package core

import (
	"strings"
)

// Book is a title with a number of physical copies. ID is the document key and not part of the body.
type Book struct {
	ID              BookIDString `json:"-"`
	Title           string       `json:"title"`
	Author          string       `json:"author"`
	Subject         string       `json:"subject"`
	Tags            []string     `json:"tags"`
	AvailableCopies int          `json:"available_copies"`
	TotalCopies     int          `json:"total_copies"`
}

// HasCopyAvailable reports whether at least one copy can be lent.
func (b Book) HasCopyAvailable() bool {
	return b.AvailableCopies > 0
}

// HasTag reports whether the book carries tag, compared case-insensitively and exactly.
func (b Book) HasTag(tag string) bool {
	for _, t := range b.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}

	return false
}

// TitleContains reports whether the lowercased title contains the lowercased fragment.
func (b Book) TitleContains(fragment string) bool {
	return strings.Contains(strings.ToLower(b.Title), strings.ToLower(fragment))
}

// WithinCopyBounds reports whether 0 <= available_copies <= total_copies holds.
func (b Book) WithinCopyBounds() bool {
	return b.AvailableCopies >= 0 && b.AvailableCopies <= b.TotalCopies
}

// WithID returns a copy carrying the document key.
func (b Book) WithID(id BookIDString) Book {
	b.ID = id

	return b
}
