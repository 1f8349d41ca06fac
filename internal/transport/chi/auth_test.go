package chi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	for _, keys := range [][]string{nil, {"", ""}} {
		handler := BearerAuthMiddleware(keys)(okHandler())

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/pages", http.NoBody))

		if rr.Code != http.StatusOK {
			t.Errorf("keys %q: got %d, want %d", keys, rr.Code, http.StatusOK)
		}
	}
}

func TestAuthMiddleware(t *testing.T) {
	handler := BearerAuthMiddleware([]string{"key1", "key2"})(okHandler())

	tests := []struct {
		name   string
		method string
		path   string
		header string
		want   int
	}{
		{"missing header", http.MethodPost, "/api/v1/pages", "", http.StatusUnauthorized},
		{"basic scheme", http.MethodPost, "/api/v1/pages", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"empty token", http.MethodPost, "/api/v1/pages", "Bearer ", http.StatusUnauthorized},
		{"wrong key", http.MethodPost, "/api/v1/pages", "Bearer wrong-key", http.StatusUnauthorized},
		{"prefix of a key", http.MethodPost, "/api/v1/pages", "Bearer key", http.StatusUnauthorized},
		{"first key", http.MethodPost, "/api/v1/pages", "Bearer key1", http.StatusOK},
		{"second key", http.MethodGet, "/api/v1/pages/p1/query", "Bearer key2", http.StatusOK},
		{"lowercase scheme", http.MethodPost, "/api/v1/pages/p1/click", "bearer key1", http.StatusOK},
		{"health", http.MethodGet, "/health", "", http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", "", http.StatusOK},
		{"view", http.MethodGet, "/api/v1/view", "", http.StatusOK},
		{"features", http.MethodGet, "/api/v1/features", "", http.StatusOK},
		{"one feature", http.MethodGet, "/api/v1/features/3", "", http.StatusOK},
		{"features lookalike", http.MethodGet, "/api/v1/featuresX", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Fatalf("got %d, want %d", rr.Code, tt.want)
			}
			if tt.want != http.StatusUnauthorized {
				return
			}
			if got := rr.Header().Get("WWW-Authenticate"); got != `Bearer realm="zonemap"` {
				t.Errorf("WWW-Authenticate = %q", got)
			}
			var errResp ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
				t.Fatalf("decode error response: %v", err)
			}
			if errResp.Code != ErrorCodeUnauthorized {
				t.Errorf("error code: got %s, want %s", errResp.Code, ErrorCodeUnauthorized)
			}
		})
	}
}
