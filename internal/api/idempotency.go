package api

import (
	"bytes"
	"net/http"
	"sync"
	"time"
)

// cachedResponse is a replayed response for a previously-seen Idempotency-Key,
// following the same shape as helm's pkg/api.cachedResponse.
type cachedResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	CachedAt   time.Time
}

const idempotencyTTL = 10 * time.Minute

// idempotencyStore is the in-memory Idempotency-Key cache. It is a defense
// in depth measure: the store layer's ON CONFLICT (decision_id) DO NOTHING
// already guarantees exactly one audit/decision pair per action id; this
// cache additionally lets a client that retries POST /execute after a
// dropped connection get back the exact response it would have received the
// first time, without re-running the evaluator or re-dispatching a connector.
type idempotencyStore struct {
	mu      sync.Mutex
	entries map[string]cachedResponse
}

func newIdempotencyStore() *idempotencyStore {
	s := &idempotencyStore{entries: map[string]cachedResponse{}}
	go s.cleanup()
	return s
}

func (s *idempotencyStore) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		s.mu.Lock()
		for key, entry := range s.entries {
			if time.Since(entry.CachedAt) > idempotencyTTL {
				delete(s.entries, key)
			}
		}
		s.mu.Unlock()
	}
}

func (s *idempotencyStore) check(key string) (cachedResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	return entry, ok
}

func (s *idempotencyStore) set(key string, statusCode int, headers http.Header, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = cachedResponse{StatusCode: statusCode, Headers: headers.Clone(), Body: body, CachedAt: time.Now()}
}

// idempotencyCapture records a handler's response so it can be both written to
// the real client and cached for a future replay.
type idempotencyCapture struct {
	http.ResponseWriter
	statusCode int
	wrote      bool
	body       bytes.Buffer
}

func (c *idempotencyCapture) WriteHeader(code int) {
	c.statusCode = code
	c.wrote = true
	c.ResponseWriter.WriteHeader(code)
}

func (c *idempotencyCapture) Write(b []byte) (int, error) {
	if !c.wrote {
		c.statusCode = http.StatusOK
		c.wrote = true
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

// IdempotencyMiddleware replays a cached response verbatim for a repeated
// Idempotency-Key on POST, caching only successful (2xx) responses —
// following the same pattern as helm's pkg/api.IdempotencyMiddleware.
func IdempotencyMiddleware(store *idempotencyStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("Idempotency-Key")
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			if cached, ok := store.check(key); ok {
				for name, values := range cached.Headers {
					for _, v := range values {
						w.Header().Add(name, v)
					}
				}
				w.Header().Set("X-Idempotent-Replay", "true")
				w.WriteHeader(cached.StatusCode)
				_, _ = w.Write(cached.Body)
				return
			}

			capture := &idempotencyCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			if capture.statusCode >= 200 && capture.statusCode < 300 {
				store.set(key, capture.statusCode, w.Header(), capture.body.Bytes())
			}
		})
	}
}
