package idp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTokenInfoServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id_token") == "" {
			t.Error("missing id_token query parameter")
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestGoogleVerifierAccepts(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()
	srv := newTokenInfoServer(t, http.StatusOK, fmt.Sprintf(`{
		"sub": "google-uid-1",
		"aud": "client-123",
		"exp": "%d",
		"email": "ph00001@fpt.edu.vn",
		"email_verified": "true",
		"name": "Binh Phan",
		"picture": "https://lh3.example/photo"
	}`, exp))
	defer srv.Close()

	v := NewGoogleVerifier("client-123", WithEndpoint(srv.URL))
	id, err := v.VerifyIDToken(context.Background(), "raw-token")
	if err != nil {
		t.Fatalf("VerifyIDToken: %v", err)
	}
	if id.UID != "google-uid-1" || id.Email != "ph00001@fpt.edu.vn" || id.ProviderID != "google.com" {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestGoogleVerifierRejects(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()

	cases := []struct {
		name   string
		status int
		body   string
	}{
		{"provider rejects", http.StatusBadRequest, `{"error":"invalid_token"}`},
		{"wrong audience", http.StatusOK, fmt.Sprintf(`{"sub":"u","aud":"other-client","exp":"%d"}`, exp)},
		{"expired", http.StatusOK, `{"sub":"u","aud":"client-123","exp":"100"}`},
		{"no subject", http.StatusOK, fmt.Sprintf(`{"aud":"client-123","exp":"%d"}`, exp)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTokenInfoServer(t, tc.status, tc.body)
			defer srv.Close()

			v := NewGoogleVerifier("client-123", WithEndpoint(srv.URL))
			_, err := v.VerifyIDToken(context.Background(), "raw-token")
			if !errors.Is(err, ErrInvalidIDToken) {
				t.Fatalf("expected ErrInvalidIDToken, got %v", err)
			}
		})
	}
}

func TestGoogleVerifierEmptyToken(t *testing.T) {
	v := NewGoogleVerifier("client-123")
	if _, err := v.VerifyIDToken(context.Background(), ""); !errors.Is(err, ErrInvalidIDToken) {
		t.Fatalf("expected ErrInvalidIDToken, got %v", err)
	}
}
