package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/splitpay/payment-service/internal/domain"
	"github.com/splitpay/payment-service/internal/store"
	"github.com/splitpay/payment-service/pkg/dwollaclient"
)

type fundingSourceRepoStub struct {
	store.Repository

	user    *domain.User
	account *domain.UserAccount

	persistedSourceID  string
	persistedSourceURL string
	markRemovedCalled  bool
}

func (s *fundingSourceRepoStub) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return s.user, nil
}

func (s *fundingSourceRepoStub) FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.UserAccount, error) {
	if s.account == nil {
		return nil, store.ErrAccountNotFound
	}
	return s.account, nil
}

func (s *fundingSourceRepoStub) UpdateAccountFundingSource(ctx context.Context, accountID uuid.UUID, fundingSourceID, fundingSourceURL string) error {
	s.persistedSourceID = fundingSourceID
	s.persistedSourceURL = fundingSourceURL
	return nil
}

func (s *fundingSourceRepoStub) MarkFundingSourceRemoved(ctx context.Context, accountID uuid.UUID) error {
	s.markRemovedCalled = true
	return nil
}

func TestCreateFundingSourceRegistersProcessorToken(t *testing.T) {
	var body map[string]interface{}
	var server *httptest.Server
	server = newDwollaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/customers/cus-1/funding-sources" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Location", server.URL+"/funding-sources/fs-9")
		w.WriteHeader(http.StatusCreated)
	})
	defer server.Close()

	customerURL := server.URL + "/customers/cus-1"
	userID := uuid.New()
	repo := &fundingSourceRepoStub{
		user: &domain.User{
			ID:                userID,
			FirstName:         "Ada",
			LastName:          "Lovelace",
			DwollaCustomerID:  strPtr("cus-1"),
			DwollaCustomerURL: &customerURL,
		},
		account: &domain.UserAccount{ID: uuid.New(), UserID: userID, AccountName: "Checking"},
	}
	svc := newTestService(repo, dwollaclient.NewClient(server.URL, "key", "secret"), nil)

	account, err := svc.CreateFundingSource(context.Background(), repo.account.ID, FundingSourceInput{ProcessorToken: "processor-token-1"})
	if err != nil {
		t.Fatalf("CreateFundingSource returned error: %v", err)
	}
	if body["plaidToken"] != "processor-token-1" {
		t.Errorf("plaidToken = %v, want processor-token-1", body["plaidToken"])
	}
	if _, present := body["routingNumber"]; present {
		t.Error("routingNumber should be absent from a processor-token registration")
	}
	if body["name"] != "Checking" {
		t.Errorf("name = %v, want Checking", body["name"])
	}
	if repo.persistedSourceID != "fs-9" {
		t.Errorf("persisted funding source id = %q, want fs-9", repo.persistedSourceID)
	}
	if account.DwollaFundingSourceURL == nil || *account.DwollaFundingSourceURL != server.URL+"/funding-sources/fs-9" {
		t.Errorf("funding source URL not set on returned account")
	}
}

func TestCreateFundingSourceRegistersRoutingAndAccountNumbers(t *testing.T) {
	var body map[string]interface{}
	var server *httptest.Server
	server = newDwollaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Location", server.URL+"/funding-sources/fs-10")
		w.WriteHeader(http.StatusCreated)
	})
	defer server.Close()

	customerURL := server.URL + "/customers/cus-1"
	userID := uuid.New()
	repo := &fundingSourceRepoStub{
		user: &domain.User{
			ID:                userID,
			FirstName:         "Ada",
			LastName:          "Lovelace",
			DwollaCustomerID:  strPtr("cus-1"),
			DwollaCustomerURL: &customerURL,
		},
		account: &domain.UserAccount{ID: uuid.New(), UserID: userID},
	}
	svc := newTestService(repo, dwollaclient.NewClient(server.URL, "key", "secret"), nil)

	_, err := svc.CreateFundingSource(context.Background(), repo.account.ID, FundingSourceInput{
		RoutingNumber:   "222222226",
		AccountNumber:   "123456789",
		BankAccountType: "checking",
		Name:            "Primary Checking",
	})
	if err != nil {
		t.Fatalf("CreateFundingSource returned error: %v", err)
	}
	if body["routingNumber"] != "222222226" || body["accountNumber"] != "123456789" {
		t.Errorf("routing/account numbers not forwarded, body = %v", body)
	}
	if body["bankAccountType"] != "checking" {
		t.Errorf("bankAccountType = %v, want checking", body["bankAccountType"])
	}
	if _, present := body["plaidToken"]; present {
		t.Error("plaidToken should be absent from a routing-number registration")
	}
	if body["name"] != "Primary Checking" {
		t.Errorf("name = %v, want Primary Checking", body["name"])
	}
	if repo.persistedSourceID != "fs-10" {
		t.Errorf("persisted funding source id = %q, want fs-10", repo.persistedSourceID)
	}
}

func TestCreateFundingSourceRejectsEmptyInput(t *testing.T) {
	server := newDwollaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected provider call %s %s", r.Method, r.URL.Path)
	})
	defer server.Close()

	repo := &fundingSourceRepoStub{
		account: &domain.UserAccount{ID: uuid.New(), UserID: uuid.New()},
	}
	svc := newTestService(repo, dwollaclient.NewClient(server.URL, "key", "secret"), nil)

	if _, err := svc.CreateFundingSource(context.Background(), repo.account.ID, FundingSourceInput{RoutingNumber: "222222226"}); err != ErrInvalidFundingSource {
		t.Fatalf("CreateFundingSource error = %v, want ErrInvalidFundingSource", err)
	}
}

func TestRemoveFundingSourceWithoutSourceIsNoop(t *testing.T) {
	server := newDwollaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected provider call %s %s", r.Method, r.URL.Path)
	})
	defer server.Close()

	repo := &fundingSourceRepoStub{
		account: &domain.UserAccount{ID: uuid.New(), UserID: uuid.New()},
	}
	svc := newTestService(repo, dwollaclient.NewClient(server.URL, "key", "secret"), nil)

	if err := svc.RemoveFundingSource(context.Background(), repo.account.ID); err != nil {
		t.Fatalf("RemoveFundingSource returned error: %v", err)
	}
	if repo.markRemovedCalled {
		t.Error("expected no local mutation for account without funding source")
	}
}

func TestRemoveFundingSourceDetachesAndSoftDeletes(t *testing.T) {
	var removedBody map[string]interface{}
	server := newDwollaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&removedBody)
		w.WriteHeader(http.StatusOK)
	})
	defer server.Close()

	sourceURL := server.URL + "/funding-sources/fs-9"
	repo := &fundingSourceRepoStub{
		account: &domain.UserAccount{
			ID:                     uuid.New(),
			UserID:                 uuid.New(),
			DwollaFundingSourceID:  strPtr("fs-9"),
			DwollaFundingSourceURL: &sourceURL,
		},
	}
	svc := newTestService(repo, dwollaclient.NewClient(server.URL, "key", "secret"), nil)

	if err := svc.RemoveFundingSource(context.Background(), repo.account.ID); err != nil {
		t.Fatalf("RemoveFundingSource returned error: %v", err)
	}
	if removedBody["removed"] != true {
		t.Errorf("removed = %v, want true", removedBody["removed"])
	}
	if !repo.markRemovedCalled {
		t.Error("expected account to be soft-deleted locally")
	}
}
