package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// RequestInfo describes a finished request as seen by the listener.
type RequestInfo struct {
	Listener string
	// Route is the matched route template set through SetRoute, empty when
	// no route matched.
	Route        string
	Status       int
	Duration     time.Duration
	RequestSize  int64
	ResponseSize int64
	// Err is set when the handler panicked.
	Err error
}

// RequestObserver is called around every request served by a listener.
// Before may return a derived request (e.g. carrying a span in its
// context); After always runs, even when the handler panicked.
type RequestObserver interface {
	Before(r *http.Request) *http.Request
	After(r *http.Request, info RequestInfo)
}

// Instrument wraps h with the observers. Before hooks run in order, After
// hooks in reverse order. A panic in h is turned into a 500 response.
func Instrument(listener string, h http.Handler, logger *slog.Logger, observers ...RequestObserver) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		route := &routeHolder{}
		r = r.WithContext(context.WithValue(r.Context(), routeKey{}, route))
		for _, o := range observers {
			r = o.Before(r)
		}
		rec := &statusRecorder{ResponseWriter: w}

		var abort bool
		defer func() {
			info := RequestInfo{
				Listener:     listener,
				Route:        route.get(),
				Duration:     time.Since(start),
				RequestSize:  r.ContentLength,
				ResponseSize: rec.written,
			}
			if v := recover(); v != nil {
				if err, ok := v.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					abort = true
					info.Err = err
				} else {
					info.Err = &PanicError{Value: v}
					logger.Error("handler panic", "listener", listener, "path", r.URL.Path, "error", v)
					if !rec.wroteHeader {
						writePanicProblem(rec)
					}
				}
			}
			info.Status = rec.status()
			for i := len(observers) - 1; i >= 0; i-- {
				observers[i].After(r, info)
			}
			if abort {
				panic(http.ErrAbortHandler)
			}
		}()

		h.ServeHTTP(rec, r)
	})
}

func writePanicProblem(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(http.StatusInternalServerError)
	fmt.Fprintf(w, `{"type":"about:blank","title":"Internal Server Error","status":%d,"detail":"unexpected server error"}`,
		http.StatusInternalServerError)
}

type statusRecorder struct {
	http.ResponseWriter
	code        int
	wroteHeader bool
	written     int64
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.wroteHeader {
		s.code = code
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if !s.wroteHeader {
		s.WriteHeader(http.StatusOK)
	}
	n, err := s.ResponseWriter.Write(b)
	s.written += int64(n)
	return n, err
}

func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

func (s *statusRecorder) status() int {
	if !s.wroteHeader {
		return http.StatusOK
	}
	return s.code
}

type routeKey struct{}

type routeHolder struct {
	mu    sync.Mutex
	route string
}

func (h *routeHolder) get() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.route
}

// SetRoute records the route template that matched the request (for
// example "/api/v1/messages"), so observers can label by route instead of
// raw path. It is a no-op outside an instrumented request.
func SetRoute(ctx context.Context, route string) {
	if h, ok := ctx.Value(routeKey{}).(*routeHolder); ok {
		h.mu.Lock()
		h.route = route
		h.mu.Unlock()
	}
}
