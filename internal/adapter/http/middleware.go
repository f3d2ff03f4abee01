package http

import (
	"context"
	"net/http"
	"net/url"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/snow-removal-info-service/internal/clientaddr"
)

type resolutionKey struct{}

// resolution returns the client address resolved for r by logRequests, or
// resolves it now when the request did not pass through the chain.
func (s *Server) resolution(r *http.Request) clientaddr.Resolution {
	if res, ok := r.Context().Value(resolutionKey{}).(clientaddr.Resolution); ok {
		return res
	}
	return s.opts.Resolver.Resolve(r)
}

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// logRequests resolves the client address once per request, makes it
// available to handlers and logs the outcome.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		res := s.opts.Resolver.Resolve(r)
		r = r.WithContext(context.WithValue(r.Context(), resolutionKey{}, res))

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		s.opts.Metrics.RecordRequest(r.Method, status)

		level := s.logger.Info
		if r.URL.Path == "/healthz" || r.URL.Path == "/readyz" || r.URL.Path == "/metrics" {
			level = s.logger.Debug
		}
		level("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration", time.Since(start),
			"client_ip", res.IP,
			"client_ip_source", res.Source,
		)
	})
}

// recoverPanics turns a handler panic into a 500 response.
func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				s.logger.ErrorContext(r.Context(), "handler panic", "panic", v, "path", r.URL.Path)
				sharedobs.WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// rootRedirect sends GET and HEAD requests for "/" to target, merging the
// request query into any query the target already has. An empty or
// unparseable target disables the rule.
func rootRedirect(target string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if target == "" {
			return next
		}
		base, err := url.Parse(target)
		if err != nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/" || (r.Method != http.MethodGet && r.Method != http.MethodHead) {
				next.ServeHTTP(w, r)
				return
			}
			http.Redirect(w, r, redirectLocation(base, r.URL.Query()), http.StatusFound)
		})
	}
}

func redirectLocation(base *url.URL, extra url.Values) string {
	if len(extra) == 0 {
		return base.String()
	}
	loc := *base
	q := loc.Query()
	for k, vs := range extra {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	loc.RawQuery = q.Encode()
	return loc.String()
}
