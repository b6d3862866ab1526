package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/ledgerkeep/ledgerkeep/internal/auth"
	"github.com/ledgerkeep/ledgerkeep/internal/db"
	"github.com/ledgerkeep/ledgerkeep/internal/record"
	"github.com/ledgerkeep/ledgerkeep/internal/store"
)

func getTestRouter(t *testing.T) http.Handler {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration tests")
	}

	pool, err := db.Open(context.Background(), dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := db.Migrate(context.Background(), pool); err != nil {
		t.Fatalf("Failed to apply schema: %v", err)
	}
	if _, err := pool.Exec(context.Background(), `
		DELETE FROM invoice;
		DELETE FROM customer;
		DELETE FROM changelog;
	`); err != nil {
		t.Fatalf("Failed to clean test database: %v", err)
	}

	srv := &Server{Store: store.New(pool)}
	return srv.Routes(auth.JWTCfg{HS256Secret: "test-secret", DevMode: true})
}

// makeRequest performs a request as the given owner via the dev identity
// header.
func makeRequest(t *testing.T, router http.Handler, owner, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Debug-Owner", owner)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("Failed to decode response: %v (body: %s)", err, w.Body.String())
	}
	return v
}

func TestHealthz(t *testing.T) {
	router := getTestRouter(t)
	w := makeRequest(t, router, "", "GET", "/healthz", nil)
	if w.Code != 200 {
		t.Errorf("healthz status = %d", w.Code)
	}
}

func TestUnauthenticatedRejected(t *testing.T) {
	router := getTestRouter(t)

	req := httptest.NewRequest("GET", "/v1/customers", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

// End-to-end walk through the spec scenarios over HTTP.
func TestRecordLifecycle(t *testing.T) {
	router := getTestRouter(t)
	const owner = "u1"

	// Changelog starts absent.
	if w := makeRequest(t, router, owner, "GET", "/v1/changelog", nil); w.Code != http.StatusNotFound {
		t.Fatalf("empty changelog status = %d, want 404", w.Code)
	}

	// Scenario A: bundled create.
	w := makeRequest(t, router, owner, "POST", "/v1/customers/with-invoice", map[string]any{
		"businessId":        "c1",
		"fullName":          "Jane",
		"phone":             "555-1111",
		"invoiceBusinessId": "v1",
		"invoiceNumber":     100,
		"invoiceYear":       2024,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("with-invoice status = %d (body: %s)", w.Code, w.Body.String())
	}

	w = makeRequest(t, router, owner, "GET", "/v1/changelog", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("changelog status = %d", w.Code)
	}
	cl := decode[record.Changelog](t, w)
	if cl.Customers.Adds != 1 || cl.Invoices.Adds != 1 || cl.Customers.Edits != 0 {
		t.Fatalf("changelog after scenario A = %+v", cl)
	}

	// Scenario B: phone edit.
	w = makeRequest(t, router, owner, "PUT", "/v1/customers/c1", map[string]any{
		"fullName": "Jane",
		"phone":    "555-2222",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("edit status = %d (body: %s)", w.Code, w.Body.String())
	}
	c := decode[record.Customer](t, w)
	if c.Phone != "555-2222" {
		t.Errorf("phone = %q", c.Phone)
	}

	cl = decode[record.Changelog](t, makeRequest(t, router, owner, "GET", "/v1/changelog", nil))
	if cl.Customers.Adds != 1 || cl.Customers.Edits != 1 {
		t.Fatalf("changelog after scenario B = %+v", cl)
	}

	// Scenario C: remove cascades.
	w = makeRequest(t, router, owner, "DELETE", "/v1/customers/c1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("remove status = %d", w.Code)
	}
	rm := decode[removeCustomerResp](t, w)
	if !rm.OK || rm.Cascaded != 1 {
		t.Fatalf("remove response = %+v", rm)
	}

	cl = decode[record.Changelog](t, makeRequest(t, router, owner, "GET", "/v1/changelog", nil))
	if cl.Customers.Edits != 2 || cl.Invoices.Edits != 2 {
		t.Fatalf("changelog after scenario C = %+v", cl)
	}

	// Scenario D: tombstone is still the most recently updated row.
	w = makeRequest(t, router, owner, "GET", "/v1/customers/recent?orderBy=updated&limit=1", nil)
	recent := decode[[]record.Customer](t, w)
	if len(recent) != 1 || recent[0].BusinessID != "c1" || !recent[0].IsDeleted {
		t.Errorf("recent = %+v", recent)
	}
}

func TestCrossTenantMapping(t *testing.T) {
	router := getTestRouter(t)

	w := makeRequest(t, router, "alice", "POST", "/v1/customers", map[string]any{
		"businessId": "c1", "fullName": "Ann", "phone": "1",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d", w.Code)
	}

	// Another owner touching the row gets 403; a missing row gets 404.
	w = makeRequest(t, router, "bob", "PUT", "/v1/customers/c1", map[string]any{"fullName": "Bob"})
	if w.Code != http.StatusForbidden {
		t.Errorf("cross-tenant edit status = %d, want 403", w.Code)
	}
	w = makeRequest(t, router, "bob", "DELETE", "/v1/customers/c1", nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("cross-tenant remove status = %d, want 403", w.Code)
	}
	w = makeRequest(t, router, "bob", "PUT", "/v1/customers/nope", map[string]any{"fullName": "X"})
	if w.Code != http.StatusNotFound {
		t.Errorf("missing edit status = %d, want 404", w.Code)
	}

	// Duplicate business key maps to 409.
	w = makeRequest(t, router, "bob", "POST", "/v1/customers", map[string]any{
		"businessId": "c1", "fullName": "Bob", "phone": "2",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate create status = %d, want 409", w.Code)
	}

	// The victim's data and counters are untouched.
	customers := decode[[]record.Customer](t, makeRequest(t, router, "alice", "GET", "/v1/customers", nil))
	if len(customers) != 1 || customers[0].FullName != "Ann" || customers[0].IsDeleted {
		t.Errorf("victim rows mutated: %+v", customers)
	}
	cl := decode[record.Changelog](t, makeRequest(t, router, "alice", "GET", "/v1/changelog", nil))
	if cl.Customers.Adds != 1 || cl.Customers.Edits != 0 {
		t.Errorf("victim changelog mutated: %+v", cl)
	}
}

func TestValidation(t *testing.T) {
	router := getTestRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"customer without name", "POST", "/v1/customers", map[string]any{"phone": "1"}, 400},
		{"invoice without customer", "POST", "/v1/invoices", map[string]any{"number": 1, "year": 2024}, 400},
		{"bad orderBy", "GET", "/v1/customers/recent?orderBy=newest", nil, 400},
		{"bad json", "POST", "/v1/customers", "not-json", 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := makeRequest(t, router, "u1", tt.method, tt.path, tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body: %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestSeedChangelogEndpoint(t *testing.T) {
	router := getTestRouter(t)
	const owner = "seed-owner"

	body := map[string]any{
		"customers": map[string]any{"adds": 4, "edits": 2},
		"invoices":  map[string]any{"adds": 1, "edits": 0},
	}
	if w := makeRequest(t, router, owner, "POST", "/v1/changelog", body); w.Code != http.StatusCreated {
		t.Fatalf("seed status = %d", w.Code)
	}
	if w := makeRequest(t, router, owner, "POST", "/v1/changelog", body); w.Code != http.StatusConflict {
		t.Errorf("duplicate seed status = %d, want 409", w.Code)
	}

	cl := decode[record.Changelog](t, makeRequest(t, router, owner, "GET", "/v1/changelog", nil))
	if cl.Customers.Adds != 4 || cl.Customers.Edits != 2 || cl.Invoices.Adds != 1 {
		t.Errorf("seeded changelog = %+v", cl)
	}
}
