package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/elonfeng/topmovies/internal/logx"
	"github.com/elonfeng/topmovies/internal/store"
	"github.com/elonfeng/topmovies/pkg/catalog"
	"github.com/elonfeng/topmovies/pkg/collection"
	"github.com/go-playground/validator/v10"
)

// Server serves the collection pages and the JSON API.
type Server struct {
	svc      *collection.Service
	tokens   *csrfTokens
	validate *validator.Validate
	port     int
}

// New creates a new HTTP server. secret signs form tokens.
func New(svc *collection.Service, secret string, port int) *Server {
	if port == 0 {
		port = 8080
	}
	return &Server{
		svc:      svc,
		tokens:   newCSRFTokens(secret, time.Hour),
		validate: validator.New(),
		port:     port,
	}
}

// Handler returns the routed handler wrapped in the request middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/v1/movies", s.handleAPIMovies)

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /add", s.handleAdd)
	mux.HandleFunc("POST /add", s.handleAdd)
	mux.HandleFunc("GET /find", s.handleFind)
	mux.HandleFunc("GET /edit", s.handleEdit)
	mux.HandleFunc("POST /edit", s.handleEdit)
	mux.HandleFunc("GET /delete", s.handleDelete)
	mux.HandleFunc("POST /delete", s.handleDelete)
	mux.HandleFunc("/", s.handleNotFound)

	return RequestLogger(Recoverer(mux))
}

// ListenAndServe starts the HTTP server and shuts it down when ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	go shutdownOnDone(ctx, srv, 5*time.Second, log.Default())

	log.Printf("topmovies server listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// shutdownOnDone stops srv once ctx is cancelled, giving in-flight requests
// up to timeout to finish.
func shutdownOnDone(ctx context.Context, srv *http.Server, timeout time.Duration, logger *log.Logger) {
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("shutdown: %v", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAPIMovies(w http.ResponseWriter, r *http.Request) {
	movies, err := s.svc.Ranked(r.Context())
	if err != nil {
		logx.FromContext(r.Context()).Printf("list movies: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not load the collection"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  movies,
		"count": len(movies),
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	movies, err := s.svc.Ranked(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	s.render(w, r, http.StatusOK, "index.html", indexPage{
		Movies:    movies,
		CSRFToken: s.csrfToken(w, r),
	})
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	page := addPage{}

	if r.Method == http.MethodPost {
		if !s.checkCSRF(w, r) {
			return
		}

		form := addForm{Title: trimmed(r.PostFormValue("title"))}
		page.Title = form.Title
		if errs := s.validateForm(form); errs != nil {
			page.Errors = errs
			page.CSRFToken = s.csrfToken(w, r)
			s.render(w, r, http.StatusUnprocessableEntity, "add.html", page)
			return
		}

		options, err := s.svc.Search(r.Context(), form.Title)
		if err != nil {
			s.catalogError(w, r, err, page)
			return
		}

		s.render(w, r, http.StatusOK, "select.html", selectPage{Query: form.Title, Options: options})
		return
	}

	page.CSRFToken = s.csrfToken(w, r)
	s.render(w, r, http.StatusOK, "add.html", page)
}

func (s *Server) handleFind(w http.ResponseWriter, r *http.Request) {
	catalogID, err := parseID(r)
	if err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Pick a movie from the search results.")
		return
	}

	movie, err := s.svc.AddFromCatalog(r.Context(), catalogID)
	if err != nil {
		var uv *store.UniqueViolation
		if errors.As(err, &uv) {
			s.render(w, r, http.StatusConflict, "add.html", addPage{
				Errors:    map[string]string{"title": "That movie is already in your collection."},
				CSRFToken: s.csrfToken(w, r),
			})
			return
		}
		s.catalogError(w, r, err, addPage{})
		return
	}

	http.Redirect(w, r, "/edit?id="+strconv.FormatInt(movie.ID, 10), http.StatusFound)
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.renderError(w, r, http.StatusBadRequest, "A valid movie id is required.")
		return
	}

	movie, err := s.svc.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.renderNotFound(w, r)
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	page := editPage{Movie: movie}

	if r.Method == http.MethodPost {
		if !s.checkCSRF(w, r) {
			return
		}

		page.Rating = trimmed(r.PostFormValue("rating"))
		page.Review = trimmed(r.PostFormValue("review"))

		upd, errs := s.decodeEdit(page.Rating, page.Review)
		if errs != nil {
			page.Errors = errs
			page.CSRFToken = s.csrfToken(w, r)
			s.render(w, r, http.StatusUnprocessableEntity, "edit.html", page)
			return
		}

		err := s.svc.Edit(r.Context(), id, upd)
		switch {
		case err == nil:
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		case errors.Is(err, store.ErrNotFound):
			s.renderNotFound(w, r)
			return
		case errors.Is(err, collection.ErrRatingRange):
			page.Errors = map[string]string{"rating": "Rating must be between 0 and 10."}
			page.CSRFToken = s.csrfToken(w, r)
			s.render(w, r, http.StatusUnprocessableEntity, "edit.html", page)
			return
		case store.IsUniqueViolation(err):
			page.Errors = map[string]string{"rating": "Another movie already has this rating."}
			page.CSRFToken = s.csrfToken(w, r)
			s.render(w, r, http.StatusConflict, "edit.html", page)
			return
		default:
			s.internalError(w, r, err)
			return
		}
	}

	page.CSRFToken = s.csrfToken(w, r)
	s.render(w, r, http.StatusOK, "edit.html", page)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost && !s.checkCSRF(w, r) {
		return
	}

	id, err := parseID(r)
	if err != nil {
		s.renderError(w, r, http.StatusBadRequest, "A valid movie id is required.")
		return
	}

	err = s.svc.Delete(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.renderNotFound(w, r)
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.renderError(w, r, http.StatusNotFound, "Page not found.")
}

// catalogError renders the add page with a retry message for catalog
// failures, and a generic error page for anything else.
func (s *Server) catalogError(w http.ResponseWriter, r *http.Request, err error, page addPage) {
	logx.FromContext(r.Context()).Printf("catalog: %v", err)

	switch {
	case errors.Is(err, catalog.ErrLookup):
		page.Errors = map[string]string{"catalog": "The movie database could not be reached or returned an incomplete record. Please try again."}
		page.CSRFToken = s.csrfToken(w, r)
		s.render(w, r, http.StatusBadGateway, "add.html", page)
	case errors.Is(err, collection.ErrEmptyQuery):
		page.Errors = map[string]string{"title": "This field is required."}
		page.CSRFToken = s.csrfToken(w, r)
		s.render(w, r, http.StatusUnprocessableEntity, "add.html", page)
	default:
		s.internalError(w, r, err)
	}
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	logx.FromContext(r.Context()).Printf("internal error: %v", err)
	s.renderError(w, r, http.StatusInternalServerError, "Something went wrong.")
}

func (s *Server) renderNotFound(w http.ResponseWriter, r *http.Request) {
	s.renderError(w, r, http.StatusNotFound, "That movie is not in your collection.")
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	s.render(w, r, status, "error.html", errorPage{Status: status, Message: msg})
}

// parseID reads the positive integer id query parameter.
func parseID(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse id %q: %w", raw, err)
	}
	if id <= 0 {
		return 0, fmt.Errorf("id %d out of range", id)
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
