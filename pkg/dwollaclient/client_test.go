package dwollaclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *int) {
	t.Helper()
	tokenCalls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/token" {
			tokenCalls++
			if user, pass, ok := r.BasicAuth(); !ok || user != "key" || pass != "secret" {
				t.Errorf("token request missing basic auth credentials")
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(tokenResponse{AccessToken: "tok-1", TokenType: "bearer", ExpiresIn: 3600})
			return
		}
		handler(w, r)
	}))
	return server, &tokenCalls
}

func TestClientCachesAccessToken(t *testing.T) {
	server, tokenCalls := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("Authorization = %q, want Bearer tok-1", got)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Customer{ID: "cus-1", Status: "verified"})
	})
	defer server.Close()

	client := NewClient(server.URL, "key", "secret")
	for i := 0; i < 3; i++ {
		if _, err := client.GetCustomer(context.Background(), server.URL+"/customers/cus-1"); err != nil {
			t.Fatalf("GetCustomer returned error: %v", err)
		}
	}
	if *tokenCalls != 1 {
		t.Errorf("token endpoint called %d times, want 1", *tokenCalls)
	}
}

func TestCreateTransferSendsIdempotencyKey(t *testing.T) {
	var gotKey, gotAccept string
	var server *httptest.Server
	server, _ = newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Location", server.URL+"/transfers/tr-1")
		w.WriteHeader(http.StatusCreated)
	})
	defer server.Close()

	client := NewClient(server.URL, "key", "secret")
	location, err := client.CreateTransfer(context.Background(), TransferRequest{
		Amount: Amount{Value: "50.00", Currency: "USD"},
	}, "idem-1")
	if err != nil {
		t.Fatalf("CreateTransfer returned error: %v", err)
	}
	if gotKey != "idem-1" {
		t.Errorf("Idempotency-Key = %q, want idem-1", gotKey)
	}
	if gotAccept != "application/vnd.dwolla.v1.hal+json" {
		t.Errorf("Accept = %q", gotAccept)
	}
	if location != server.URL+"/transfers/tr-1" {
		t.Errorf("location = %q", location)
	}
}

func TestClientClassifiesProviderErrors(t *testing.T) {
	server, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code":    "ValidationError",
			"message": "Validation error(s) present.",
		})
	})
	defer server.Close()

	client := NewClient(server.URL, "key", "secret")
	_, err := client.CreateCustomer(context.Background(), CustomerRequest{Email: "bad"})
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if !apiErr.IsValidation() || apiErr.IsTransient() {
		t.Errorf("400 must classify as validation, not transient")
	}
	if apiErr.Code != "ValidationError" {
		t.Errorf("Code = %q, want ValidationError", apiErr.Code)
	}
}

func TestClientClassifiesOutages(t *testing.T) {
	server, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]interface{}{"code": "ServerError", "message": "try again"})
	})
	defer server.Close()

	client := NewClient(server.URL, "key", "secret")
	_, err := client.GetTransfer(context.Background(), server.URL+"/transfers/tr-1")
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if !apiErr.IsTransient() {
		t.Error("503 must classify as transient")
	}
}

func TestResolveHandlesAbsoluteAndRelativeResources(t *testing.T) {
	client := NewClient("https://api-sandbox.dwolla.com", "key", "secret")
	if got := client.resolve("customers"); got != "https://api-sandbox.dwolla.com/customers" {
		t.Errorf("resolve(customers) = %q", got)
	}
	if got := client.resolve("/customers"); got != "https://api-sandbox.dwolla.com/customers" {
		t.Errorf("resolve(/customers) = %q", got)
	}
	absolute := "https://api-sandbox.dwolla.com/customers/cus-1"
	if got := client.resolve(absolute); got != absolute {
		t.Errorf("resolve(absolute) = %q", got)
	}
}
