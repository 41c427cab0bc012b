package cache

import (
	"bytes"
	"net/http"

	"github.com/solaius/shiftgate/pkg/tenancy"
)

// cacheResponseWriter wraps http.ResponseWriter to capture the response body
// and status code so they can be stored in the cache.
type cacheResponseWriter struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
	written    bool
}

func (w *cacheResponseWriter) WriteHeader(code int) {
	if !w.written {
		w.statusCode = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *cacheResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.statusCode = http.StatusOK
		w.written = true
	}
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// TenantKey keys a request by its organization and full URL, so one
// organization never reads another's cached response.
func TenantKey(r *http.Request) string {
	return tenancy.OrgFromContext(r.Context()) + "\x00" + r.URL.RequestURI()
}

// Middleware caches 200 responses to GET requests in c. It must run after
// the tenancy middleware. A nil cache disables caching.
//
// Hits are answered with the stored JSON body and X-Cache: HIT; misses
// carry X-Cache: MISS.
func Middleware(c *LRUCache) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if c == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			key := TenantKey(r)
			if cached, ok := c.Get(key); ok {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Cache", "HIT")
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write(cached)
				return
			}

			crw := &cacheResponseWriter{ResponseWriter: w}
			crw.Header().Set("X-Cache", "MISS")
			next.ServeHTTP(crw, r)

			if crw.statusCode == http.StatusOK {
				c.Set(key, bytes.Clone(crw.body.Bytes()))
			}
		})
	}
}
