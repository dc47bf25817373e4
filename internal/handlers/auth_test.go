package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aimstoreapp/aimstore/internal/config"
)

const testAdminSecret = "0123456789abcdef0123456789abcdef"

func authHandlers() *Handlers {
	return &Handlers{
		config: &config.Config{AdminTokenSecret: testAdminSecret},
		logger: testLogger(),
	}
}

func TestRequireManager(t *testing.T) {
	t.Parallel()

	valid, err := IssueManagerToken(testAdminSecret, "ops@example.com", time.Hour)
	if err != nil {
		t.Fatalf("IssueManagerToken() error = %v", err)
	}
	expired, err := IssueManagerToken(testAdminSecret, "ops@example.com", -time.Hour)
	if err != nil {
		t.Fatalf("IssueManagerToken() error = %v", err)
	}
	wrongKey, err := IssueManagerToken("another-secret-another-secret-32", "ops@example.com", time.Hour)
	if err != nil {
		t.Fatalf("IssueManagerToken() error = %v", err)
	}
	customerToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, adminClaims{
		Role: "customer",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testAdminSecret))
	if err != nil {
		t.Fatalf("signing customer token: %v", err)
	}

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"valid manager token", "Bearer " + valid, http.StatusNoContent},
		{"missing header", "", http.StatusUnauthorized},
		{"not a bearer scheme", "Basic " + valid, http.StatusUnauthorized},
		{"expired token", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong signing key", "Bearer " + wrongKey, http.StatusUnauthorized},
		{"wrong role", "Bearer " + customerToken, http.StatusForbidden},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := authHandlers()
			next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})

			req := httptest.NewRequest(http.MethodPost, "/admin/orders/x/ship", nil)
			if tc.authHeader != "" {
				req.Header.Set("Authorization", tc.authHeader)
			}
			rec := httptest.NewRecorder()

			h.RequireManager(next).ServeHTTP(rec, req)
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
		})
	}
}
