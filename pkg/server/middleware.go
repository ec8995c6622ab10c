package server

import (
	"log"
	"net/http"
	"os"
	"runtime/debug"
	"time"

	"github.com/elonfeng/topmovies/internal/logx"
	"github.com/google/uuid"
)

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rr *statusRecorder) WriteHeader(status int) {
	rr.status = status
	rr.ResponseWriter.WriteHeader(status)
}

// RequestLogger gives every request a short id and a logger prefixed with
// [id][METHOD:path], stored in the context for handlers (see logx.FromContext).
// It logs when the request arrives and when the response is done.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()[:8]
		start := time.Now()

		logger := log.New(os.Stdout, "["+requestID+"]["+r.Method+":"+r.URL.Path+"] - ", log.LstdFlags)
		logger.Printf("Request received...")

		r = r.WithContext(logx.WithLogger(r.Context(), logger))
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		logger.Printf("Request completed in %dms (status %d)", time.Since(start).Milliseconds(), rec.status)
	})
}

// Recoverer turns a handler panic into a 500 response.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rv := recover(); rv != nil {
				if rv == http.ErrAbortHandler {
					panic(rv)
				}
				logx.FromContext(r.Context()).Printf("panic: %v\n%s", rv, debug.Stack())
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
