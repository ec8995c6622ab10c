package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/elonfeng/topmovies/internal/config"
	"github.com/elonfeng/topmovies/internal/store"
	"github.com/elonfeng/topmovies/pkg/catalog"
	"github.com/elonfeng/topmovies/pkg/collection"
	"github.com/elonfeng/topmovies/pkg/server"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

// openCollection opens the store and wires the collection service. The
// caller closes the returned store.
func openCollection(cfg *config.Config) (*collection.Service, store.Store, error) {
	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	client := catalog.New(
		cfg.Catalog.APIKey,
		cfg.Catalog.BaseURL,
		cfg.Catalog.ImageURL,
		cfg.Catalog.ParseTimeout(),
	)
	return collection.New(db, client), db, nil
}

func runServe(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if port == 0 {
		port = cfg.Server.Port
	}

	svc, db, err := openCollection(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := server.New(svc, cfg.Server.Secret, port)
	return srv.ListenAndServe(ctx)
}

func runList(jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	svc, db, err := openCollection(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	movies, err := svc.Ranked(context.Background())
	if err != nil {
		return fmt.Errorf("list movies: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(movies)
	}

	if len(movies) == 0 {
		fmt.Println("no movies yet (try: topmovies search <title>)")
		return nil
	}

	// Best first on the terminal.
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tID\tRATING\tTITLE\tYEAR\tREVIEW")
	for i := len(movies) - 1; i >= 0; i-- {
		m := movies[i]
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%d\t%s\n",
			*m.Ranking, m.ID, formatRating(m.Rating), m.Title, m.Year, deref(m.Review))
	}
	return w.Flush()
}

func runSearch(title string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	svc, db, err := openCollection(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	results, err := svc.Search(context.Background(), title)
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Printf("no matches for %q\n", title)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CATALOG ID\tRELEASED\tTITLE")
	for _, r := range results {
		fmt.Fprintf(w, "%d\t%s\t%s\n", r.ID, r.ReleaseDate, r.Title)
	}
	return w.Flush()
}

func runAdd(catalogID int64) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	svc, db, err := openCollection(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	m, err := svc.AddFromCatalog(context.Background(), catalogID)
	var uv *store.UniqueViolation
	switch {
	case errors.As(err, &uv):
		return fmt.Errorf("movie %d is already in the collection (%s)", catalogID, uv.Field)
	case errors.Is(err, catalog.ErrLookup):
		return fmt.Errorf("%w; try again later", err)
	case err != nil:
		return err
	}

	fmt.Fprintf(os.Stderr, "added %s (%d) as id %d\n", m.Title, m.Year, m.ID)
	fmt.Fprintf(os.Stderr, "rate it with: topmovies edit %d --rating 8.5 --review \"...\"\n", m.ID)
	return nil
}

func runEdit(id int64, upd store.MovieUpdate) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	svc, db, err := openCollection(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	err = svc.Edit(context.Background(), id, upd)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("movie %d not found", id)
	case store.IsUniqueViolation(err):
		return fmt.Errorf("another movie already has rating %s", formatRating(upd.Rating))
	case err != nil:
		return err
	}

	if upd.Empty() {
		fmt.Fprintln(os.Stderr, "nothing to change (pass --rating and/or --review)")
		return nil
	}
	fmt.Fprintf(os.Stderr, "updated movie %d\n", id)
	return nil
}

func runDelete(id int64) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	svc, db, err := openCollection(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := svc.Delete(context.Background(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("movie %d not found", id)
		}
		return err
	}

	fmt.Fprintf(os.Stderr, "deleted movie %d\n", id)
	return nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func formatRating(r *float64) string {
	if r == nil {
		return "-"
	}
	return strconv.FormatFloat(*r, 'f', -1, 64)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
