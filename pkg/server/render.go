package server

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"strconv"

	"github.com/elonfeng/topmovies/internal/logx"
	"github.com/elonfeng/topmovies/internal/store"
	"github.com/elonfeng/topmovies/pkg/catalog"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = mustParsePages("index.html", "add.html", "select.html", "edit.html", "error.html")

var templateFuncs = template.FuncMap{
	"rating": func(r *float64) string {
		if r == nil {
			return "Not rated"
		}
		return strconv.FormatFloat(*r, 'f', -1, 64)
	},
	"rank": func(r *int) string {
		if r == nil {
			return "-"
		}
		return strconv.Itoa(*r)
	},
	"text": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
	"year": func(date string) string {
		if y, err := catalog.ReleaseYear(date); err == nil {
			return strconv.Itoa(y)
		}
		return "unknown year"
	},
}

func mustParsePages(names ...string) map[string]*template.Template {
	parsed := make(map[string]*template.Template, len(names))
	for _, name := range names {
		parsed[name] = template.Must(template.New(name).Funcs(templateFuncs).
			ParseFS(templateFS, "templates/base.html", "templates/"+name))
	}
	return parsed
}

type indexPage struct {
	Movies    []store.Movie
	CSRFToken string
}

type addPage struct {
	Title     string
	Errors    map[string]string
	CSRFToken string
}

type selectPage struct {
	Query   string
	Options []catalog.SearchResult
}

type editPage struct {
	Movie     *store.Movie
	Rating    string
	Review    string
	Errors    map[string]string
	CSRFToken string
}

type errorPage struct {
	Status  int
	Message string
}

// render executes a page into a buffer first so a template failure never
// leaves a half-written response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	tmpl, ok := pages[name]
	if !ok {
		logx.FromContext(r.Context()).Printf("unknown template %s", name)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		logx.FromContext(r.Context()).Printf("render %s: %v", name, err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
