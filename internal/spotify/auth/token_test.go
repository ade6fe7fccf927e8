package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"

	rwerrors "github.com/tessro/rewind/internal/errors"
)

func TestTokenSourceNotAuthenticated(t *testing.T) {
	storage, _ := NewTokenStorage(filepath.Join(t.TempDir(), "token.json"))

	_, err := TokenSource(context.Background(), NewConfig("id", ""), storage, nil)
	if !errors.Is(err, rwerrors.ErrNotAuthenticated) {
		t.Errorf("TokenSource() error = %v, want ErrNotAuthenticated", err)
	}
}

func TestTokenSourceValidToken(t *testing.T) {
	storage, _ := NewTokenStorage(filepath.Join(t.TempDir(), "token.json"))
	_ = storage.Save(&oauth2.Token{
		AccessToken:  "still_good",
		RefreshToken: "ref",
		Expiry:       time.Now().Add(time.Hour),
	})

	src, err := TokenSource(context.Background(), NewConfig("id", ""), storage, nil)
	if err != nil {
		t.Fatalf("TokenSource() error = %v", err)
	}
	tok, err := src.Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if tok.AccessToken != "still_good" {
		t.Errorf("AccessToken = %q, want still_good", tok.AccessToken)
	}
}

func TestTokenSourceRefreshesAndPersists(t *testing.T) {
	var grant string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		grant = r.PostForm.Get("grant_type")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"fresh","token_type":"Bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	cfg := NewConfig("id", "")
	cfg.Endpoint.TokenURL = srv.URL

	storage, _ := NewTokenStorage(filepath.Join(t.TempDir(), "token.json"))
	_ = storage.Save(&oauth2.Token{
		AccessToken:  "stale",
		RefreshToken: "ref",
		Expiry:       time.Now().Add(-time.Hour),
	})

	src, err := TokenSource(context.Background(), cfg, storage, nil)
	if err != nil {
		t.Fatalf("TokenSource() error = %v", err)
	}

	tok, err := src.Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if tok.AccessToken != "fresh" {
		t.Errorf("AccessToken = %q, want fresh", tok.AccessToken)
	}
	if grant != "refresh_token" {
		t.Errorf("grant_type = %q, want refresh_token", grant)
	}

	saved, err := storage.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if saved.AccessToken != "fresh" {
		t.Errorf("stored AccessToken = %q, want fresh", saved.AccessToken)
	}
	if saved.RefreshToken != "ref" {
		t.Errorf("stored RefreshToken = %q, want ref to be kept", saved.RefreshToken)
	}
}

func TestTokenSourceRefreshFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Refresh token revoked"}`))
	}))
	defer srv.Close()

	cfg := NewConfig("id", "")
	cfg.Endpoint.TokenURL = srv.URL

	storage, _ := NewTokenStorage(filepath.Join(t.TempDir(), "token.json"))
	_ = storage.Save(&oauth2.Token{AccessToken: "stale", RefreshToken: "ref", Expiry: time.Now().Add(-time.Hour)})

	src, _ := TokenSource(context.Background(), cfg, storage, nil)
	if _, err := src.Token(); err == nil {
		t.Fatal("Token() error = nil, want refresh failure")
	}
}
