package core

import (
	"cmp"
	"slices"
)

// RankForRecommendation orders books by descending available copies, ties by ascending id,
// and keeps the first RecommendationLimit.
func RankForRecommendation(books []Book) []Book {
	ranked := slices.Clone(books)
	slices.SortStableFunc(ranked, func(a, b Book) int {
		if c := cmp.Compare(b.AvailableCopies, a.AvailableCopies); c != 0 {
			return c
		}

		return cmp.Compare(a.ID, b.ID)
	})

	if len(ranked) > RecommendationLimit {
		ranked = ranked[:RecommendationLimit]
	}

	return ranked
}

// FilterByTag keeps the books carrying tag. An empty tag keeps everything.
func FilterByTag(books []Book, tag string) []Book {
	if tag == "" {
		return books
	}

	filtered := make([]Book, 0, len(books))
	for _, b := range books {
		if b.HasTag(tag) {
			filtered = append(filtered, b)
		}
	}

	return filtered
}

// AnyAvailable reports whether at least one of the books has a copy available.
func AnyAvailable(books []Book) bool {
	return slices.ContainsFunc(books, Book.HasCopyAvailable)
}

// FirstTitleMatch returns the first book, in the given order, whose title contains fragment.
func FirstTitleMatch(books []Book, fragment string) (Book, bool) {
	for _, b := range books {
		if b.TitleContains(fragment) {
			return b, true
		}
	}

	return Book{}, false
}
