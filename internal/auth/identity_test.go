package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret, sub string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return s
}

// echoOwner is a handler that reports the resolved owner from context.
func echoOwner(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(OwnerID(r.Context())))
}

func TestMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		cfg        JWTCfg
		setup      func(r *http.Request)
		wantStatus int
		wantOwner  string
	}{
		{
			name: "valid bearer token",
			cfg:  JWTCfg{HS256Secret: testSecret},
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "owner-1"))
			},
			wantStatus: http.StatusOK,
			wantOwner:  "owner-1",
		},
		{
			name: "token signed with wrong secret",
			cfg:  JWTCfg{HS256Secret: testSecret},
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+signToken(t, "other-secret", "owner-1"))
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing identity",
			cfg:        JWTCfg{HS256Secret: testSecret},
			setup:      func(r *http.Request) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "debug header honored in dev mode",
			cfg:  JWTCfg{HS256Secret: testSecret, DevMode: true},
			setup: func(r *http.Request) {
				r.Header.Set("X-Debug-Owner", "owner-dev")
			},
			wantStatus: http.StatusOK,
			wantOwner:  "owner-dev",
		},
		{
			name: "debug header ignored outside dev mode",
			cfg:  JWTCfg{HS256Secret: testSecret},
			setup: func(r *http.Request) {
				r.Header.Set("X-Debug-Owner", "owner-dev")
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "bearer token wins over debug header",
			cfg:  JWTCfg{HS256Secret: testSecret, DevMode: true},
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "owner-1"))
				r.Header.Set("X-Debug-Owner", "owner-dev")
			},
			wantStatus: http.StatusOK,
			wantOwner:  "owner-1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Middleware(tt.cfg)(http.HandlerFunc(echoOwner))

			req := httptest.NewRequest("GET", "/", nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body: %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus == http.StatusOK && w.Body.String() != tt.wantOwner {
				t.Errorf("owner = %q, want %q", w.Body.String(), tt.wantOwner)
			}
		})
	}
}

func TestOwnerIDMissing(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if got := OwnerID(req.Context()); got != "" {
		t.Errorf("OwnerID on bare context = %q, want empty", got)
	}
}
