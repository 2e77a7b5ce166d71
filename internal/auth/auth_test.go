package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIsAdmin(t *testing.T) {
	tests := []struct {
		name string
		user *User
		want bool
	}{
		{"nil user", nil, false},
		{"admin", &User{ID: "u1", Role: RoleAdmin}, true},
		{"editor", &User{ID: "u2", Role: RoleEditor}, false},
		{"viewer", &User{ID: "u3", Role: RoleViewer}, false},
		{"empty role", &User{ID: "u4"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAdmin(tt.user); got != tt.want {
				t.Errorf("IsAdmin(%+v) = %v, want %v", tt.user, got, tt.want)
			}
		})
	}
}

func TestStaticProvider(t *testing.T) {
	p := &StaticProvider{User: &User{ID: "u1", Role: RoleAdmin}}
	u, err := p.CurrentUser(context.Background())
	if err != nil {
		t.Fatalf("CurrentUser failed: %v", err)
	}
	if u.ID != "u1" {
		t.Errorf("ID = %q", u.ID)
	}

	anon := &StaticProvider{}
	u, err = anon.CurrentUser(context.Background())
	if err != nil || u != nil {
		t.Errorf("anonymous provider returned %+v, %v", u, err)
	}
}

func TestHTTPProvider_CurrentUser(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/me" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"u1","role":"admin"}`))
	}))
	defer server.Close()

	p := NewHTTPProvider(server.URL, "tok-1")
	u, err := p.CurrentUser(context.Background())
	if err != nil {
		t.Fatalf("CurrentUser failed: %v", err)
	}
	if u.ID != "u1" || u.Role != RoleAdmin {
		t.Errorf("user = %+v", u)
	}
}

func TestHTTPProvider_UnauthorizedIsAnonymous(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	p := NewHTTPProvider(server.URL, "")
	u, err := p.CurrentUser(context.Background())
	if err != nil {
		t.Fatalf("CurrentUser failed: %v", err)
	}
	if u != nil {
		t.Errorf("user = %+v, want nil for 401", u)
	}
}

func TestHTTPProvider_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	p := NewHTTPProvider(server.URL, "")
	if _, err := p.CurrentUser(context.Background()); err == nil {
		t.Error("expected error for 500 response")
	}
}

func TestHTTPProvider_BadBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	p := NewHTTPProvider(server.URL, "")
	if _, err := p.CurrentUser(context.Background()); err == nil {
		t.Error("expected error for undecodable body")
	}
}
