package collection

import (
	"slices"

	"github.com/elonfeng/topmovies/internal/store"
)

// AnnotateRanks returns a copy of movies sorted by rating ascending, with
// unrated movies first, and Ranking set to len(movies)-index. The best rated
// movie ends up last with rank 1. Equal ratings keep their input order.
func AnnotateRanks(movies []store.Movie) []store.Movie {
	ranked := make([]store.Movie, len(movies))
	copy(ranked, movies)
	slices.SortStableFunc(ranked, func(a, b store.Movie) int {
		switch {
		case a.Rating == nil && b.Rating == nil:
			return 0
		case a.Rating == nil:
			return -1
		case b.Rating == nil:
			return 1
		case *a.Rating < *b.Rating:
			return -1
		case *a.Rating > *b.Rating:
			return 1
		}
		return 0
	})

	for i := range ranked {
		rank := len(ranked) - i
		ranked[i].Ranking = &rank
	}
	return ranked
}
