package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOIDCProvider_Discovery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/openid-configuration" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"issuer":                                "https://idp.example.com",
			"authorization_endpoint":                "https://idp.example.com/authorize",
			"token_endpoint":                        "https://idp.example.com/token",
			"jwks_uri":                              "https://idp.example.com/.well-known/jwks.json",
			"id_token_signing_alg_values_supported": []string{"RS256"},
		})
	}))
	defer server.Close()

	provider, err := NewOIDCProvider(server.URL + "/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.JWKSURI != "https://idp.example.com/.well-known/jwks.json" {
		t.Errorf("unexpected jwks_uri %s", provider.JWKSURI)
	}
	if provider.TokenEndpoint != "https://idp.example.com/token" {
		t.Errorf("unexpected token_endpoint %s", provider.TokenEndpoint)
	}
	if provider.JWKSKeyFunc() == nil {
		t.Error("expected non-nil key func")
	}
}

func TestOIDCProvider_Errors(t *testing.T) {
	notFound := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer notFound.Close()
	if _, err := NewOIDCProvider(notFound.URL); err == nil {
		t.Error("expected error for 404 discovery endpoint")
	}

	noJWKS := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"issuer": "https://idp.example.com"})
	}))
	defer noJWKS.Close()
	if _, err := NewOIDCProvider(noJWKS.URL); err == nil {
		t.Error("expected error for missing jwks_uri")
	}

	if _, err := NewOIDCProvider("http://127.0.0.1:1"); err == nil {
		t.Error("expected error for unreachable issuer")
	}
}
