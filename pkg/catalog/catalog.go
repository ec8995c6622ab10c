package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL  = "https://api.themoviedb.org/3"
	DefaultImageURL = "https://image.tmdb.org/t/p/w500"
)

// ErrLookup wraps every failure to get a usable answer from the catalog:
// transport errors, non-2xx statuses, undecodable payloads and payloads
// missing a required field.
var ErrLookup = errors.New("catalog lookup failed")

// SearchResult is one candidate returned by a title search.
type SearchResult struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	ReleaseDate string  `json:"release_date"`
	PosterPath  string  `json:"poster_path"`
	Overview    string  `json:"overview"`
	Popularity  float64 `json:"popularity"`
}

// Details is the full record for one catalog id.
type Details struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	ReleaseDate string `json:"release_date"`
	PosterPath  string `json:"poster_path"`
	Overview    string `json:"overview"`
}

// Year returns the year part of the release date ("2010-07-15" -> 2010).
func (d *Details) Year() (int, error) {
	return ReleaseYear(d.ReleaseDate)
}

// Validate checks that the fields needed to build a collection entry are present.
func (d *Details) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("%w: movie %d has no title", ErrLookup, d.ID)
	}
	if d.PosterPath == "" {
		return fmt.Errorf("%w: movie %d has no poster", ErrLookup, d.ID)
	}
	if _, err := d.Year(); err != nil {
		return fmt.Errorf("%w: movie %d: %v", ErrLookup, d.ID, err)
	}
	return nil
}

// ReleaseYear parses the 4-digit prefix of a YYYY-MM-DD date.
func ReleaseYear(date string) (int, error) {
	year, _, _ := strings.Cut(date, "-")
	if len(year) != 4 {
		return 0, fmt.Errorf("no release year in %q", date)
	}
	n, err := strconv.Atoi(year)
	if err != nil {
		return 0, fmt.Errorf("no release year in %q", date)
	}
	return n, nil
}

// Client talks to the TMDB v3 API.
type Client struct {
	client   *http.Client
	apiKey   string
	baseURL  string
	imageURL string
}

// New creates a catalog client. Empty URLs fall back to the public TMDB hosts.
func New(apiKey, baseURL, imageURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if imageURL == "" {
		imageURL = DefaultImageURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		client:   &http.Client{Timeout: timeout},
		apiKey:   apiKey,
		baseURL:  strings.TrimRight(baseURL, "/"),
		imageURL: strings.TrimRight(imageURL, "/"),
	}
}

// Search looks up movies by free-text title. No matches is an empty slice,
// not an error.
func (c *Client) Search(ctx context.Context, title string) ([]SearchResult, error) {
	params := url.Values{}
	params.Set("query", title)

	var result searchResponse
	if err := c.get(ctx, "/search/movie", params, &result); err != nil {
		return nil, fmt.Errorf("search %q: %w", title, err)
	}
	if result.Results == nil {
		result.Results = []SearchResult{}
	}
	return result.Results, nil
}

// Details fetches and validates the full record for a catalog id.
func (c *Client) Details(ctx context.Context, id int64) (*Details, error) {
	var d Details
	if err := c.get(ctx, "/movie/"+strconv.FormatInt(id, 10), nil, &d); err != nil {
		return nil, fmt.Errorf("details %d: %w", id, err)
	}
	if d.ID == 0 {
		d.ID = id
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// PosterURL joins the image host and a poster path.
func (c *Client) PosterURL(posterPath string) string {
	return c.imageURL + "/" + strings.TrimLeft(posterPath, "/")
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)

	reqURL := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("%w: create request: %v", ErrLookup, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "topmovies/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLookup, redact(err, c.apiKey))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e errorResponse
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(body, &e) == nil && e.StatusMessage != "" {
			return fmt.Errorf("%w: status %d: %s", ErrLookup, resp.StatusCode, e.StatusMessage)
		}
		return fmt.Errorf("%w: status %d", ErrLookup, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrLookup, err)
	}
	return nil
}

// redact keeps the API key out of transport errors, which embed the request URL.
func redact(err error, apiKey string) string {
	msg := err.Error()
	if apiKey == "" {
		return msg
	}
	return strings.ReplaceAll(msg, url.QueryEscape(apiKey), "REDACTED")
}

type searchResponse struct {
	Page         int            `json:"page"`
	Results      []SearchResult `json:"results"`
	TotalResults int            `json:"total_results"`
}

type errorResponse struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
}
