package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/splitpay/payment-service/internal/domain"
	"github.com/splitpay/payment-service/pkg/dwollaclient"
)

func balanceTestUser(customerURL string) *domain.User {
	return &domain.User{
		ID:                uuid.New(),
		FirstName:         "Ada",
		LastName:          "Lovelace",
		DwollaCustomerID:  strPtr("cus-1"),
		DwollaCustomerURL: &customerURL,
	}
}

func TestGetBalancesReadsEveryBalanceSource(t *testing.T) {
	var server *httptest.Server
	server = newDwollaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/customers/cus-1/funding-sources":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"_embedded": map[string]interface{}{
					"funding-sources": []map[string]interface{}{
						{
							"id": "bal-1", "type": "balance",
							"_links": map[string]interface{}{"self": map[string]string{"href": server.URL + "/funding-sources/bal-1"}},
						},
						{
							"id": "fs-bank", "type": "bank",
							"_links": map[string]interface{}{"self": map[string]string{"href": server.URL + "/funding-sources/fs-bank"}},
						},
						{
							"id": "bal-removed", "type": "balance", "removed": true,
							"_links": map[string]interface{}{"self": map[string]string{"href": server.URL + "/funding-sources/bal-removed"}},
						},
						{
							"id": "bal-2", "type": "balance",
							"_links": map[string]interface{}{"self": map[string]string{"href": server.URL + "/funding-sources/bal-2"}},
						},
					},
				},
			})
		case "/funding-sources/bal-1/balance":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"balance": map[string]string{"value": "50.00", "currency": "USD"},
			})
		case "/funding-sources/bal-2/balance":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"balance": map[string]string{"value": "12.34", "currency": "USD"},
			})
		default:
			t.Errorf("unexpected request path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	})
	defer server.Close()

	repo := &customerRepoStub{user: balanceTestUser(server.URL + "/customers/cus-1")}
	svc := newTestService(repo, dwollaclient.NewClient(server.URL, "key", "secret"), nil)

	balances, err := svc.GetBalances(context.Background(), repo.user.ID)
	if err != nil {
		t.Fatalf("GetBalances returned error: %v", err)
	}
	if len(balances) != 2 {
		t.Fatalf("got %d balances, want 2 (bank and removed sources skipped)", len(balances))
	}
	if balances[0].FundingSourceID != "bal-1" || balances[0].Amount != "50.00" || balances[0].AmountCents != 5000 {
		t.Errorf("first balance = %+v, want bal-1 50.00 / 5000 cents", balances[0])
	}
	if balances[1].FundingSourceID != "bal-2" || balances[1].Amount != "12.34" || balances[1].AmountCents != 1234 {
		t.Errorf("second balance = %+v, want bal-2 12.34 / 1234 cents", balances[1])
	}
	if balances[0].Currency != "USD" {
		t.Errorf("currency = %q, want USD", balances[0].Currency)
	}
}

func TestGetBalancesWithoutBalanceSourceReturnsEmptyList(t *testing.T) {
	var server *httptest.Server
	server = newDwollaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/customers/cus-1/funding-sources" {
			t.Errorf("unexpected request path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"_embedded": map[string]interface{}{
				"funding-sources": []map[string]interface{}{
					{"id": "fs-bank", "type": "bank"},
				},
			},
		})
	})
	defer server.Close()

	repo := &customerRepoStub{user: balanceTestUser(server.URL + "/customers/cus-1")}
	svc := newTestService(repo, dwollaclient.NewClient(server.URL, "key", "secret"), nil)

	balances, err := svc.GetBalances(context.Background(), repo.user.ID)
	if err != nil {
		t.Fatalf("GetBalances returned error: %v", err)
	}
	if balances == nil || len(balances) != 0 {
		t.Fatalf("balances = %v, want empty non-nil list", balances)
	}
}

func TestGetBalancesRequiresCustomer(t *testing.T) {
	repo := &customerRepoStub{user: &domain.User{ID: uuid.New()}}
	svc := newTestService(repo, nil, nil)

	if _, err := svc.GetBalances(context.Background(), repo.user.ID); err != ErrNotRegistered {
		t.Fatalf("GetBalances error = %v, want ErrNotRegistered", err)
	}
}
