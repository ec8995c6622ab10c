package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := New(filepath.Join(t.TempDir(), "movies.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func ptr[T any](v T) *T { return &v }

func seedMovie(t *testing.T, s *SQLiteStore, title string, rating *float64) *Movie {
	t.Helper()

	m := &Movie{
		Title:       title,
		Year:        2010,
		Description: title + " description",
		Rating:      rating,
		ImgURL:      fmt.Sprintf("https://image.tmdb.org/t/p/w500/%s.jpg", title),
	}
	require.NoError(t, s.InsertMovie(context.Background(), m))
	require.NotZero(t, m.ID)
	return m
}

func TestInsertAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m := seedMovie(t, s, "Inception", nil)

	got, err := s.GetMovie(ctx, m.ID)
	require.NoError(t, err)
	require.Equal(t, "Inception", got.Title)
	require.Equal(t, 2010, got.Year)
	require.Nil(t, got.Rating)
	require.Nil(t, got.Review)
	require.Nil(t, got.Ranking)

	_, err = s.GetMovie(ctx, m.ID+100)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestInsertDuplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := seedMovie(t, s, "Inception", ptr(8.8))

	t.Run("duplicate title is rejected", func(t *testing.T) {
		err := s.InsertMovie(ctx, &Movie{
			Title:       first.Title,
			Year:        2011,
			Description: "other",
			ImgURL:      "https://image.tmdb.org/t/p/w500/other.jpg",
		})
		var uv *UniqueViolation
		require.True(t, errors.As(err, &uv))
		require.Equal(t, "title", uv.Field)

		n, err := s.CountMovies(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, n)
	})

	t.Run("duplicate img_url is rejected", func(t *testing.T) {
		err := s.InsertMovie(ctx, &Movie{
			Title:       "Other",
			Year:        2011,
			Description: "other",
			ImgURL:      first.ImgURL,
		})
		require.True(t, IsUniqueViolation(err))
	})

	t.Run("duplicate rating is rejected", func(t *testing.T) {
		err := s.InsertMovie(ctx, &Movie{
			Title:       "Other",
			Year:        2011,
			Description: "other",
			Rating:      ptr(8.8),
			ImgURL:      "https://image.tmdb.org/t/p/w500/other.jpg",
		})
		var uv *UniqueViolation
		require.True(t, errors.As(err, &uv))
		require.Equal(t, "rating", uv.Field)
	})

	t.Run("several unrated movies are allowed", func(t *testing.T) {
		seedMovie(t, s, "Unrated A", nil)
		seedMovie(t, s, "Unrated B", nil)
	})
}

// race runs fn from n goroutines at once and returns their errors.
func race(n int, fn func(i int) error) []error {
	errs := make([]error, n)
	start := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs[i] = fn(i)
		}()
	}
	close(start)
	wg.Wait()
	return errs
}

// requireOneWinner checks that exactly one call succeeded and every other
// call lost on a uniqueness constraint.
func requireOneWinner(t *testing.T, errs []error) {
	t.Helper()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.True(t, IsUniqueViolation(err), "unexpected error: %v", err)
	}
	require.Equal(t, 1, ok)
}

func TestInsertDuplicatesConcurrently(t *testing.T) {
	ctx := context.Background()

	t.Run("same title", func(t *testing.T) {
		s := newTestStore(t)

		errs := race(20, func(i int) error {
			return s.InsertMovie(ctx, &Movie{
				Title:       "Same",
				Year:        2010,
				Description: "racing",
				ImgURL:      fmt.Sprintf("https://image.tmdb.org/t/p/w500/same-%d.jpg", i),
			})
		})
		requireOneWinner(t, errs)

		n, err := s.CountMovies(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, n)
	})

	t.Run("same rating", func(t *testing.T) {
		s := newTestStore(t)
		ids := []int64{
			seedMovie(t, s, "Inception", nil).ID,
			seedMovie(t, s, "Memento", nil).ID,
		}

		errs := race(len(ids), func(i int) error {
			return s.UpdateMovie(ctx, ids[i], MovieUpdate{Rating: ptr(7.0)})
		})
		requireOneWinner(t, errs)

		rated := 0
		for _, id := range ids {
			m, err := s.GetMovie(ctx, id)
			require.NoError(t, err)
			if m.Rating != nil {
				require.Equal(t, 7.0, *m.Rating)
				rated++
			}
		}
		require.Equal(t, 1, rated)
	})
}

func TestListMoviesOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedMovie(t, s, "Mid", ptr(7.5))
	seedMovie(t, s, "NoRatingFirst", nil)
	seedMovie(t, s, "Top", ptr(9.1))
	seedMovie(t, s, "NoRatingSecond", nil)
	seedMovie(t, s, "Low", ptr(3.0))

	movies, err := s.ListMovies(ctx)
	require.NoError(t, err)

	var titles []string
	for _, m := range movies {
		titles = append(titles, m.Title)
	}
	require.Equal(t, []string{"NoRatingFirst", "NoRatingSecond", "Low", "Mid", "Top"}, titles)
}

func TestUpdateMovie(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m := seedMovie(t, s, "Inception", nil)
	require.NoError(t, s.UpdateMovie(ctx, m.ID, MovieUpdate{Review: ptr("Dreams within dreams.")}))

	t.Run("rating only leaves review untouched", func(t *testing.T) {
		require.NoError(t, s.UpdateMovie(ctx, m.ID, MovieUpdate{Rating: ptr(8.5)}))

		got, err := s.GetMovie(ctx, m.ID)
		require.NoError(t, err)
		require.Equal(t, 8.5, *got.Rating)
		require.Equal(t, "Dreams within dreams.", *got.Review)
	})

	t.Run("empty update is a no-op", func(t *testing.T) {
		before, err := s.GetMovie(ctx, m.ID)
		require.NoError(t, err)

		require.NoError(t, s.UpdateMovie(ctx, m.ID, MovieUpdate{}))

		after, err := s.GetMovie(ctx, m.ID)
		require.NoError(t, err)
		require.Equal(t, before, after)
	})

	t.Run("missing id", func(t *testing.T) {
		require.ErrorIs(t, s.UpdateMovie(ctx, m.ID+100, MovieUpdate{Rating: ptr(1.0)}), ErrNotFound)
		require.ErrorIs(t, s.UpdateMovie(ctx, m.ID+100, MovieUpdate{}), ErrNotFound)
	})

	t.Run("rating collision", func(t *testing.T) {
		other := seedMovie(t, s, "Memento", ptr(8.4))
		err := s.UpdateMovie(ctx, other.ID, MovieUpdate{Rating: ptr(8.5)})
		require.True(t, IsUniqueViolation(err))

		got, err := s.GetMovie(ctx, other.ID)
		require.NoError(t, err)
		require.Equal(t, 8.4, *got.Rating)
	})
}

func TestDeleteMovie(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m := seedMovie(t, s, "Inception", nil)
	seedMovie(t, s, "Memento", nil)

	require.ErrorIs(t, s.DeleteMovie(ctx, m.ID+100), ErrNotFound)
	n, err := s.CountMovies(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	require.NoError(t, s.DeleteMovie(ctx, m.ID))
	n, err = s.CountMovies(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = s.GetMovie(ctx, m.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUniqueField(t *testing.T) {
	require.Equal(t, "title", uniqueField("constraint failed: UNIQUE constraint failed: movies_model.title (2067)"))
	require.Equal(t, "img_url", uniqueField("UNIQUE constraint failed: movies_model.img_url"))
	require.Equal(t, "", uniqueField("NOT NULL constraint failed: movies_model.year"))
}
