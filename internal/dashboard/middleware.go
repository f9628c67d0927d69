package dashboard

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/klauspost/compress/zstd"

	"hedgedash/internal/logger"
)

type ctxKey int

const requestIDKey ctxKey = iota

// RequestID returns the id assigned by requestIDMiddleware, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// observeMiddleware records request latency by route template and logs each request.
func (s *Server) observeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		routeName := "unmatched"
		if cr := mux.CurrentRoute(r); cr != nil {
			if tmpl, err := cr.GetPathTemplate(); err == nil {
				routeName = tmpl
			}
		}
		d := time.Since(start)
		s.metrics.ObserveHTTP(routeName, rec.status, d)

		logger.Debug(r.Context(), "HTTP request",
			"request_id", RequestID(r.Context()),
			"method", r.Method,
			"route", routeName,
			"status", rec.status,
			"duration_ms", d.Milliseconds())
	})
}

// zstdResponseWriter picks its encoding on the first header write. Handlers
// that set Content-Encoding themselves are passed through untouched.
type zstdResponseWriter struct {
	http.ResponseWriter
	encoder *zstd.Encoder
	decided bool
}

func (w *zstdResponseWriter) WriteHeader(code int) {
	if !w.decided {
		w.decided = true
		h := w.Header()
		if h.Get("Content-Encoding") == "" && code != http.StatusNoContent && code != http.StatusNotModified {
			enc, err := zstd.NewWriter(w.ResponseWriter)
			if err == nil {
				w.encoder = enc
				h.Set("Content-Encoding", "zstd")
				h.Add("Vary", "Accept-Encoding")
				h.Del("Content-Length")
			}
		}
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *zstdResponseWriter) Write(b []byte) (int, error) {
	if !w.decided {
		w.WriteHeader(http.StatusOK)
	}
	if w.encoder == nil {
		return w.ResponseWriter.Write(b)
	}
	return w.encoder.Write(b)
}

func (w *zstdResponseWriter) Close() error {
	if w.encoder == nil {
		return nil
	}
	return w.encoder.Close()
}

// zstdMiddleware compresses responses for clients that accept zstd.
func zstdMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "zstd") {
			next.ServeHTTP(w, r)
			return
		}

		zw := &zstdResponseWriter{ResponseWriter: w}
		defer zw.Close()
		next.ServeHTTP(zw, r)
	})
}
