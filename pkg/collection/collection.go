package collection

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/elonfeng/topmovies/internal/logx"
	"github.com/elonfeng/topmovies/internal/store"
	"github.com/elonfeng/topmovies/pkg/catalog"
)

var (
	// ErrEmptyQuery is returned when a search is attempted without a title.
	ErrEmptyQuery = errors.New("search title is required")
	// ErrRatingRange is returned for ratings outside 0..10.
	ErrRatingRange = errors.New("rating must be between 0 and 10")
)

// Catalog is the subset of the movie catalog client the collection needs.
type Catalog interface {
	Search(ctx context.Context, title string) ([]catalog.SearchResult, error)
	Details(ctx context.Context, id int64) (*catalog.Details, error)
	PosterURL(posterPath string) string
}

// Service runs the user-facing collection flows on top of the store and
// the catalog. It holds no per-request state.
type Service struct {
	store   store.Store
	catalog Catalog
}

// New creates a collection service.
func New(s store.Store, c Catalog) *Service {
	return &Service{store: s, catalog: c}
}

// Ranked lists the whole collection with freshly computed ranks.
func (s *Service) Ranked(ctx context.Context) ([]store.Movie, error) {
	movies, err := s.store.ListMovies(ctx)
	if err != nil {
		return nil, err
	}
	return AnnotateRanks(movies), nil
}

// Search returns catalog candidates for a title, in the catalog's order.
func (s *Service) Search(ctx context.Context, title string) ([]catalog.SearchResult, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyQuery
	}
	return s.catalog.Search(ctx, title)
}

// AddFromCatalog fetches the catalog record for catalogID and stores it as
// a new, unrated entry. Nothing is written unless the record is complete.
func (s *Service) AddFromCatalog(ctx context.Context, catalogID int64) (*store.Movie, error) {
	d, err := s.catalog.Details(ctx, catalogID)
	if err != nil {
		return nil, err
	}
	year, err := d.Year()
	if err != nil {
		return nil, fmt.Errorf("%w: movie %d: %v", catalog.ErrLookup, catalogID, err)
	}

	m := &store.Movie{
		Title:       d.Title,
		Year:        year,
		Description: d.Overview,
		ImgURL:      s.catalog.PosterURL(d.PosterPath),
	}
	if err := s.store.InsertMovie(ctx, m); err != nil {
		return nil, err
	}

	logx.FromContext(ctx).Printf("added %q (%d) as movie %d from catalog id %d", m.Title, m.Year, m.ID, catalogID)
	return m, nil
}

// Get returns a single entry or store.ErrNotFound.
func (s *Service) Get(ctx context.Context, id int64) (*store.Movie, error) {
	return s.store.GetMovie(ctx, id)
}

// Edit applies the supplied rating and review; absent fields stay unchanged.
// A missing id is store.ErrNotFound even when the rating is also out of range.
func (s *Service) Edit(ctx context.Context, id int64, upd store.MovieUpdate) error {
	if _, err := s.store.GetMovie(ctx, id); err != nil {
		return err
	}
	if r := upd.Rating; r != nil && (math.IsNaN(*r) || *r < 0 || *r > 10) {
		return ErrRatingRange
	}
	if err := s.store.UpdateMovie(ctx, id, upd); err != nil {
		return err
	}
	if !upd.Empty() {
		logx.FromContext(ctx).Printf("updated movie %d", id)
	}
	return nil
}

// Delete removes an entry, returning store.ErrNotFound if it does not exist.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteMovie(ctx, id); err != nil {
		return err
	}
	logx.FromContext(ctx).Printf("deleted movie %d", id)
	return nil
}
