package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tessera/tessera/internal/auth"
	"github.com/tessera/tessera/internal/model"
)

func TestRequestID_Generated(t *testing.T) {
	t.Parallel()

	var captured string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetRequestID(r.Context())
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if captured == "" {
		t.Fatal("no request ID in context")
	}
	if got := w.Header().Get("X-Request-ID"); got != captured {
		t.Errorf("response header = %q, context = %q", got, captured)
	}
}

func TestRequestID_Passthrough(t *testing.T) {
	t.Parallel()

	var captured string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "client-supplied-id")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if captured != "client-supplied-id" {
		t.Errorf("request ID = %q, want the client's", captured)
	}
}

func TestRequireScope_AnonymousPasses(t *testing.T) {
	t.Parallel()

	var called bool
	h := RequireScope(model.ScopeFetch)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fetch", nil))

	if !called || w.Code != http.StatusOK {
		t.Errorf("anonymous request blocked: called=%v status=%d", called, w.Code)
	}
}

func TestRequireScope_KeyWithScope(t *testing.T) {
	t.Parallel()

	var called bool
	h := RequireScope(model.ScopeFetch)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/fetch", nil)
	ctx := auth.ContextWithAuth(req.Context(), &model.AuthContext{
		KeyID:  "key-1",
		Scopes: []string{model.ScopePreview, model.ScopeFetch},
	})
	h.ServeHTTP(httptest.NewRecorder(), req.WithContext(ctx))

	if !called {
		t.Error("scoped key blocked")
	}
}

func TestRequireScope_KeyWithoutScope(t *testing.T) {
	t.Parallel()

	h := RequireScope(model.ScopeFetch)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler reached despite missing scope")
	}))

	req := httptest.NewRequest(http.MethodGet, "/fetch", nil)
	ctx := auth.ContextWithAuth(req.Context(), &model.AuthContext{
		KeyID:  "key-1",
		Scopes: []string{model.ScopePreview},
	})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req.WithContext(ctx))

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestExtractAPIKey(t *testing.T) {
	t.Parallel()

	bearer := httptest.NewRequest(http.MethodGet, "/", nil)
	bearer.Header.Set("Authorization", "Bearer tsr_live_abc123_x")
	if got := extractAPIKey(bearer); got != "tsr_live_abc123_x" {
		t.Errorf("bearer key = %q", got)
	}

	header := httptest.NewRequest(http.MethodGet, "/", nil)
	header.Header.Set("X-API-Key", "tsr_test_def456_y")
	if got := extractAPIKey(header); got != "tsr_test_def456_y" {
		t.Errorf("X-API-Key = %q", got)
	}

	if got := extractAPIKey(httptest.NewRequest(http.MethodGet, "/", nil)); got != "" {
		t.Errorf("missing headers produced key %q", got)
	}
}

func corsHandler() http.Handler {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"https://app.example"}
	return CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestCORS_Preflight(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodOptions, "/fetch", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	corsHandler().ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if headers := w.Header().Get("Access-Control-Allow-Headers"); !contains(headers, "X-PAYMENT") {
		t.Errorf("Allow-Headers %q missing X-PAYMENT", headers)
	}
	if w.Header().Get("Access-Control-Max-Age") != "86400" {
		t.Errorf("Max-Age = %q", w.Header().Get("Access-Control-Max-Age"))
	}
}

func TestCORS_ExposesReceiptHeader(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/fetch", nil)
	req.Header.Set("Origin", "https://app.example")
	w := httptest.NewRecorder()
	corsHandler().ServeHTTP(w, req)

	if exposed := w.Header().Get("Access-Control-Expose-Headers"); !contains(exposed, "X-PAYMENT-RESPONSE") {
		t.Errorf("Expose-Headers %q missing X-PAYMENT-RESPONSE", exposed)
	}
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/fetch", nil)
	req.Header.Set("Origin", "https://evil.example")
	w := httptest.NewRecorder()
	corsHandler().ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("disallowed origin received Allow-Origin header")
	}
	// Non-preflight requests still reach the handler; the browser
	// enforces the missing header.
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}

	preflight := httptest.NewRequest(http.MethodOptions, "/fetch", nil)
	preflight.Header.Set("Origin", "https://evil.example")
	pw := httptest.NewRecorder()
	corsHandler().ServeHTTP(pw, preflight)
	if pw.Code != http.StatusForbidden {
		t.Errorf("preflight status = %d, want 403", pw.Code)
	}
}

func TestCORS_SameOriginSkipped(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	corsHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fetch", nil))

	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("same-origin request received CORS headers")
	}
}

func contains(header, value string) bool {
	for _, part := range strings.Split(header, ",") {
		if strings.TrimSpace(part) == value {
			return true
		}
	}
	return false
}
