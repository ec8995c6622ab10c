package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Movie is one tracked entry in the collection.
type Movie struct {
	ID          int64    `db:"id" json:"id"`
	Title       string   `db:"title" json:"title"`
	Year        int      `db:"year" json:"year"`
	Description string   `db:"description" json:"description"`
	Rating      *float64 `db:"rating" json:"rating"`
	Ranking     *int     `db:"ranking" json:"ranking"`
	Review      *string  `db:"review" json:"review"`
	ImgURL      string   `db:"img_url" json:"img_url"`
}

// MovieUpdate carries the user-editable fields. A nil field is left as is.
type MovieUpdate struct {
	Rating *float64
	Review *string
}

// Empty reports whether the update changes nothing.
func (u MovieUpdate) Empty() bool {
	return u.Rating == nil && u.Review == nil
}

// Store is the persistence interface.
type Store interface {
	ListMovies(ctx context.Context) ([]Movie, error)
	GetMovie(ctx context.Context, id int64) (*Movie, error)
	InsertMovie(ctx context.Context, m *Movie) error
	UpdateMovie(ctx context.Context, id int64, upd MovieUpdate) error
	DeleteMovie(ctx context.Context, id int64) error
	CountMovies(ctx context.Context) (int, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ListMovies returns every movie ordered by rating ascending. Unrated movies
// come first; ties keep insertion order.
func (s *SQLiteStore) ListMovies(ctx context.Context) ([]Movie, error) {
	var movies []Movie
	err := s.db.SelectContext(ctx, &movies,
		"SELECT * FROM movies_model ORDER BY rating IS NOT NULL, rating ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("list movies: %w", err)
	}
	return movies, nil
}

func (s *SQLiteStore) GetMovie(ctx context.Context, id int64) (*Movie, error) {
	var m Movie
	err := s.db.GetContext(ctx, &m, "SELECT * FROM movies_model WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get movie %d: %w", id, err)
	}
	return &m, nil
}

// InsertMovie stores m and sets m.ID to the generated id. Ranking is never
// written; it is derived when the collection is listed.
func (s *SQLiteStore) InsertMovie(ctx context.Context, m *Movie) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO movies_model (title, year, description, rating, review, img_url)
		VALUES (?, ?, ?, ?, ?, ?)
	`, m.Title, m.Year, m.Description, m.Rating, m.Review, m.ImgURL)
	if err != nil {
		return fmt.Errorf("insert movie %q: %w", m.Title, classify(err))
	}
	m.ID, _ = res.LastInsertId()
	return nil
}

func (s *SQLiteStore) UpdateMovie(ctx context.Context, id int64, upd MovieUpdate) error {
	if upd.Empty() {
		if _, err := s.GetMovie(ctx, id); err != nil {
			return err
		}
		return nil
	}

	var (
		sets []string
		args []any
	)
	if upd.Rating != nil {
		sets = append(sets, "rating = ?")
		args = append(args, *upd.Rating)
	}
	if upd.Review != nil {
		sets = append(sets, "review = ?")
		args = append(args, *upd.Review)
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		"UPDATE movies_model SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("update movie %d: %w", id, classify(err))
	}
	return expectOne(res, id)
}

func (s *SQLiteStore) DeleteMovie(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM movies_model WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete movie %d: %w", id, err)
	}
	return expectOne(res, id)
}

func (s *SQLiteStore) CountMovies(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM movies_model"); err != nil {
		return 0, fmt.Errorf("count movies: %w", err)
	}
	return n, nil
}

func expectOne(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for movie %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
