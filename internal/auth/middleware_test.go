package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/medprep-backend/internal/domain"
)

func protectedEcho(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, ok := UserIDFromContext(r.Context())
		if !ok {
			t.Fatal("expected user id in context")
		}
		w.Write([]byte(uid))
	})
}

func TestRequireUser_ValidToken(t *testing.T) {
	svc := newTokenService()
	tok, _, err := svc.NewAccessToken("user-1", domain.RoleLearner, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()

	RequireUser(svc)(protectedEcho(t)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "user-1" {
		t.Fatalf("expected body 'user-1', got %q", rec.Body.String())
	}
}

func TestRequireUser_Rejections(t *testing.T) {
	svc := newTokenService()

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not.a.jwt"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()

			RequireUser(svc)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				t.Fatal("handler must not be reached")
			})).ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	handler := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Learner role is rejected.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithRole(req.Context(), domain.RoleLearner))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for learner, got %d", rec.Code)
	}

	// Missing role is rejected.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without role, got %d", rec.Code)
	}

	// Admin passes.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithRole(req.Context(), domain.RoleAdmin))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", rec.Code)
	}
}

func TestRequireAdmin_EndToEndWithTokenRole(t *testing.T) {
	svc := newTokenService()
	tok, _, err := svc.NewAccessToken("admin-1", domain.RoleAdmin, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	chain := RequireUser(svc)(RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, _ := RoleFromContext(r.Context())
		w.Write([]byte(role))
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != domain.RoleAdmin {
		t.Fatalf("expected admin role in context, got %q", rec.Body.String())
	}
}
