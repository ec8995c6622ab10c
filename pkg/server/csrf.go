package server

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/elonfeng/topmovies/internal/logx"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const (
	csrfCookie = "topmovies_csrf"
	csrfField  = "csrf_token"
)

var (
	errCSRF     = errors.New("invalid form token")
	errNoSecret = errors.New("form token secret is empty")
)

// csrfTokens issues and checks form tokens. A token is an HS256 JWT bound to
// a random nonce that the browser also holds in a cookie.
type csrfTokens struct {
	secret []byte
	ttl    time.Duration
}

type csrfClaims struct {
	Nonce string `json:"nonce"`
	jwt.RegisteredClaims
}

func newCSRFTokens(secret string, ttl time.Duration) *csrfTokens {
	return &csrfTokens{secret: []byte(secret), ttl: ttl}
}

func (c *csrfTokens) Issue(nonce string) (string, error) {
	if len(c.secret) == 0 {
		return "", errNoSecret
	}

	now := time.Now()
	claims := csrfClaims{
		Nonce: nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "csrf",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

func (c *csrfTokens) Verify(token, nonce string) error {
	if token == "" || nonce == "" {
		return errCSRF
	}

	var claims csrfClaims
	tok, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil || !tok.Valid {
		return errCSRF
	}
	if subtle.ConstantTimeCompare([]byte(claims.Nonce), []byte(nonce)) != 1 {
		return errCSRF
	}
	return nil
}

// csrfToken returns a token for the forms on the page being rendered,
// setting the nonce cookie on first visit.
func (s *Server) csrfToken(w http.ResponseWriter, r *http.Request) string {
	nonce := ""
	if c, err := r.Cookie(csrfCookie); err == nil {
		nonce = c.Value
	}
	if nonce == "" {
		nonce = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     csrfCookie,
			Value:    nonce,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}

	token, err := s.tokens.Issue(nonce)
	if err != nil {
		logx.FromContext(r.Context()).Printf("issue form token: %v", err)
		return ""
	}
	return token
}

// checkCSRF verifies a POST against the nonce cookie and writes a 403 page
// when it fails.
func (s *Server) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	nonce := ""
	if c, err := r.Cookie(csrfCookie); err == nil {
		nonce = c.Value
	}

	if err := s.tokens.Verify(r.PostFormValue(csrfField), nonce); err != nil {
		s.renderError(w, r, http.StatusForbidden, "The form expired. Go back, reload the page and try again.")
		return false
	}
	return true
}
