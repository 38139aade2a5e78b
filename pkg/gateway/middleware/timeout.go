package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Timeout bounds each request's handling with context.WithTimeout. When
// the deadline passes before the handler finishes, the client gets a 504
// with the gateway's {"detail": ...} error body; the handler's context is
// cancelled so in-flight dispatches stop retrying.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			// The handler keeps running in its goroutine after a timeout
			// response is written; the guard stops it from writing over it.
			guarded := &guardedWriter{ResponseWriter: w}

			done := make(chan struct{})
			go func() {
				defer close(done)
				next.ServeHTTP(guarded, r.WithContext(ctx))
			}()

			select {
			case <-done:
			case <-ctx.Done():
				if ctx.Err() == context.DeadlineExceeded && guarded.claim() {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusGatewayTimeout)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"detail": "Request timed out",
					})
				}
				<-done
			}
		})
	}
}

// guardedWriter serializes writer ownership between the handler goroutine
// and the timeout path.
type guardedWriter struct {
	http.ResponseWriter
	mu           sync.Mutex
	handlerWrote bool
	timedOut     bool
}

// claim gives the timeout path exclusive write ownership, returning false
// if the handler already wrote.
func (g *guardedWriter) claim() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.handlerWrote {
		return false
	}
	g.timedOut = true
	return true
}

func (g *guardedWriter) WriteHeader(code int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.timedOut {
		return
	}
	g.handlerWrote = true
	g.ResponseWriter.WriteHeader(code)
}

func (g *guardedWriter) Write(b []byte) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.timedOut {
		return len(b), nil
	}
	g.handlerWrote = true
	return g.ResponseWriter.Write(b)
}
