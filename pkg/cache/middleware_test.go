package cache

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/solaius/shiftgate/pkg/tenancy"
)

func TestMiddleware(t *testing.T) {
	tests := []struct {
		name string
		fn   func(t *testing.T)
	}{
		{"GETCachedOnSecondCall", testGETCachedOnSecondCall},
		{"POSTNotCached", testPOSTNotCached},
		{"Non200NotCached", testNon200NotCached},
		{"OrganizationsCachedSeparately", testOrganizationsCachedSeparately},
		{"NilCachePassesThrough", testNilCachePassesThrough},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.fn)
	}
}

func countingHandler(status int, calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"id":"snap-1"}`))
	})
}

func request(method, path, org string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	if org != "" {
		req = req.WithContext(tenancy.WithTenant(req.Context(), tenancy.TenantContext{OrgID: org}))
	}
	return req
}

func testGETCachedOnSecondCall(t *testing.T) {
	calls := 0
	wrapped := Middleware(NewLRUCache(10, time.Minute))(countingHandler(http.StatusOK, &calls))

	rec1 := httptest.NewRecorder()
	wrapped.ServeHTTP(rec1, request(http.MethodGet, "/snapshots/snap-1", "O1"))
	if rec1.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("expected X-Cache: MISS, got %q", rec1.Header().Get("X-Cache"))
	}

	rec2 := httptest.NewRecorder()
	wrapped.ServeHTTP(rec2, request(http.MethodGet, "/snapshots/snap-1", "O1"))
	if calls != 1 {
		t.Fatalf("expected handler called once, got %d", calls)
	}
	if rec2.Header().Get("X-Cache") != "HIT" {
		t.Fatalf("expected X-Cache: HIT, got %q", rec2.Header().Get("X-Cache"))
	}
	if rec2.Body.String() != `{"id":"snap-1"}` {
		t.Fatalf("unexpected cached body %q", rec2.Body.String())
	}
}

func testPOSTNotCached(t *testing.T) {
	calls := 0
	wrapped := Middleware(NewLRUCache(10, time.Minute))(countingHandler(http.StatusOK, &calls))

	for i := 0; i < 2; i++ {
		wrapped.ServeHTTP(httptest.NewRecorder(), request(http.MethodPost, "/snapshots/snap-1", "O1"))
	}
	if calls != 2 {
		t.Fatalf("expected handler called twice, got %d", calls)
	}
}

func testNon200NotCached(t *testing.T) {
	calls := 0
	wrapped := Middleware(NewLRUCache(10, time.Minute))(countingHandler(http.StatusNotFound, &calls))

	for i := 0; i < 2; i++ {
		wrapped.ServeHTTP(httptest.NewRecorder(), request(http.MethodGet, "/snapshots/missing", "O1"))
	}
	if calls != 2 {
		t.Fatalf("expected 404 to be served fresh each time, got %d calls", calls)
	}
}

func testOrganizationsCachedSeparately(t *testing.T) {
	calls := 0
	wrapped := Middleware(NewLRUCache(10, time.Minute))(countingHandler(http.StatusOK, &calls))

	wrapped.ServeHTTP(httptest.NewRecorder(), request(http.MethodGet, "/snapshots/snap-1", "O1"))
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, request(http.MethodGet, "/snapshots/snap-1", "O2"))

	if calls != 2 {
		t.Fatalf("expected a miss for the second organization, got %d calls", calls)
	}
	if rec.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("expected X-Cache: MISS, got %q", rec.Header().Get("X-Cache"))
	}
}

func testNilCachePassesThrough(t *testing.T) {
	calls := 0
	wrapped := Middleware(nil)(countingHandler(http.StatusOK, &calls))

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, request(http.MethodGet, "/snapshots/snap-1", "O1"))
	wrapped.ServeHTTP(httptest.NewRecorder(), request(http.MethodGet, "/snapshots/snap-1", "O1"))
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	if rec.Header().Get("X-Cache") != "" {
		t.Fatal("nil cache should not set X-Cache")
	}
}
