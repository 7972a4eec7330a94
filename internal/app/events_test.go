package app

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/splitpay/payment-service/internal/domain"
	"github.com/splitpay/payment-service/internal/store"
	"github.com/splitpay/payment-service/pkg/dwollaclient"
)

type eventRepoStub struct {
	store.Repository

	tx   *domain.Transaction
	user *domain.User

	processedEvents map[string]bool
	loggedEvents    []domain.WebhookEventLogEntry
	statusUpdates   []domain.TransferStatus

	customerStatusUpdates []domain.CustomerStatus
	reverificationFlags   []bool
}

func (s *eventRepoStub) HasProcessedWebhookEvent(ctx context.Context, eventID string) (bool, error) {
	return s.processedEvents[eventID], nil
}

func (s *eventRepoStub) LogWebhookEvent(ctx context.Context, entry domain.WebhookEventLogEntry) error {
	s.loggedEvents = append(s.loggedEvents, entry)
	return nil
}

func (s *eventRepoStub) FindTransactionByTransferID(ctx context.Context, dwollaTransferID string) (*domain.Transaction, error) {
	if s.tx == nil {
		return nil, store.ErrTransactionNotFound
	}
	return s.tx, nil
}

func (s *eventRepoStub) UpdateTransactionStatus(ctx context.Context, transactionID uuid.UUID, status domain.TransferStatus) error {
	s.statusUpdates = append(s.statusUpdates, status)
	return nil
}

func (s *eventRepoStub) FindUserByCustomerID(ctx context.Context, dwollaCustomerID string) (*domain.User, error) {
	if s.user == nil {
		return nil, store.ErrUserNotFound
	}
	return s.user, nil
}

func (s *eventRepoStub) UpdateUserCustomerStatus(ctx context.Context, userID uuid.UUID, status domain.CustomerStatus) error {
	s.customerStatusUpdates = append(s.customerStatusUpdates, status)
	return nil
}

func (s *eventRepoStub) SetReverificationNeeded(ctx context.Context, userID uuid.UUID, needed bool) error {
	s.reverificationFlags = append(s.reverificationFlags, needed)
	return nil
}

func TestProcessWebhookEventDropsDuplicates(t *testing.T) {
	repo := &eventRepoStub{processedEvents: map[string]bool{"evt-dup": true}}
	svc := newTestService(repo, nil, nil)

	payload := domain.WebhookPayload{ID: "evt-dup", Topic: domain.TopicCustomerCreated, ResourceID: "cus-1"}
	if err := svc.ProcessWebhookEvent(context.Background(), payload, []byte(`{}`)); err != nil {
		t.Fatalf("ProcessWebhookEvent returned error: %v", err)
	}
	if len(repo.loggedEvents) != 0 {
		t.Error("duplicate delivery must not be logged again")
	}
}

func TestProcessWebhookEventRefreshesTransferFromProvider(t *testing.T) {
	server := newDwollaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "tr-1",
			"status": "processed",
			"amount": map[string]string{"value": "50.00", "currency": "USD"},
		})
	})
	defer server.Close()

	transferURL := server.URL + "/transfers/tr-1"
	repo := &eventRepoStub{
		processedEvents: map[string]bool{},
		tx: &domain.Transaction{
			ID:                uuid.New(),
			AmountCents:       5000,
			DwollaTransferID:  strPtr("tr-1"),
			DwollaTransferURL: &transferURL,
			Status:            domain.TransferStatusPending,
		},
	}
	producer := &publisherStub{}
	svc := newTestService(repo, dwollaclient.NewClient(server.URL, "key", "secret"), producer)

	rawBody := []byte(`{"id":"evt-1","topic":"customer_transfer_completed","resourceId":"tr-1"}`)
	payload := domain.WebhookPayload{ID: "evt-1", Topic: domain.TopicTransferCompleted, ResourceID: "tr-1"}
	if err := svc.ProcessWebhookEvent(context.Background(), payload, rawBody); err != nil {
		t.Fatalf("ProcessWebhookEvent returned error: %v", err)
	}

	if len(repo.statusUpdates) != 1 || repo.statusUpdates[0] != domain.TransferStatusProcessed {
		t.Fatalf("status updates = %v, want one processed transition", repo.statusUpdates)
	}
	if len(producer.transferEvents) != 1 || producer.transferEvents[0].Status != "processed" {
		t.Fatalf("published events = %v, want one processed event", producer.transferEvents)
	}
	if len(repo.loggedEvents) != 1 || repo.loggedEvents[0].EventID != "evt-1" {
		t.Fatalf("logged events = %v, want evt-1", repo.loggedEvents)
	}
	if repo.loggedEvents[0].TransactionID != repo.tx.ID {
		t.Error("event log entry must reference the resolved transaction")
	}
}

func TestProcessWebhookEventLeavesTerminalTransfersAlone(t *testing.T) {
	server := newDwollaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected provider call %s %s", r.Method, r.URL.Path)
	})
	defer server.Close()

	transferURL := server.URL + "/transfers/tr-done"
	repo := &eventRepoStub{
		processedEvents: map[string]bool{},
		tx: &domain.Transaction{
			ID:                uuid.New(),
			DwollaTransferID:  strPtr("tr-done"),
			DwollaTransferURL: &transferURL,
			Status:            domain.TransferStatusProcessed,
		},
	}
	svc := newTestService(repo, dwollaclient.NewClient(server.URL, "key", "secret"), nil)

	payload := domain.WebhookPayload{ID: "evt-late", Topic: domain.TopicTransferCancelled, ResourceID: "tr-done"}
	if err := svc.ProcessWebhookEvent(context.Background(), payload, []byte(`{}`)); err != nil {
		t.Fatalf("ProcessWebhookEvent returned error: %v", err)
	}
	if len(repo.statusUpdates) != 0 {
		t.Errorf("terminal transaction must not transition, got %v", repo.statusUpdates)
	}
}

func TestProcessWebhookEventSkipsUnknownTransfer(t *testing.T) {
	repo := &eventRepoStub{processedEvents: map[string]bool{}}
	svc := newTestService(repo, nil, nil)

	payload := domain.WebhookPayload{ID: "evt-x", Topic: domain.TopicTransferCompleted, ResourceID: "tr-unknown"}
	if err := svc.ProcessWebhookEvent(context.Background(), payload, []byte(`{}`)); err != nil {
		t.Fatalf("unknown transfer resource must not error, got %v", err)
	}
	if len(repo.loggedEvents) != 1 {
		t.Error("delivery should still be logged so redelivery is deduplicated")
	}
}

func TestProcessWebhookEventMarksCustomerVerified(t *testing.T) {
	repo := &eventRepoStub{
		processedEvents: map[string]bool{},
		user: &domain.User{
			ID:                   uuid.New(),
			DwollaCustomerID:     strPtr("cus-1"),
			DwollaCustomerStatus: domain.CustomerStatusUnverified,
			ReverificationNeeded: true,
		},
	}
	producer := &publisherStub{}
	svc := newTestService(repo, nil, producer)

	payload := domain.WebhookPayload{ID: "evt-verify", Topic: domain.TopicCustomerVerified, ResourceID: "cus-1"}
	if err := svc.ProcessWebhookEvent(context.Background(), payload, []byte(`{}`)); err != nil {
		t.Fatalf("ProcessWebhookEvent returned error: %v", err)
	}
	if len(repo.customerStatusUpdates) != 1 || repo.customerStatusUpdates[0] != domain.CustomerStatusVerified {
		t.Fatalf("customer status updates = %v, want verified", repo.customerStatusUpdates)
	}
	if len(repo.reverificationFlags) != 1 || repo.reverificationFlags[0] {
		t.Fatalf("reverification flags = %v, want a single clear", repo.reverificationFlags)
	}
	if len(producer.customerEvents) != 1 || producer.customerEvents[0].Status != "verified" {
		t.Fatalf("published events = %v, want one verified event", producer.customerEvents)
	}
}

func TestProcessWebhookEventFlagsReverification(t *testing.T) {
	repo := &eventRepoStub{
		processedEvents: map[string]bool{},
		user: &domain.User{
			ID:                   uuid.New(),
			DwollaCustomerID:     strPtr("cus-1"),
			DwollaCustomerStatus: domain.CustomerStatusVerified,
		},
	}
	svc := newTestService(repo, nil, nil)

	payload := domain.WebhookPayload{ID: "evt-reverify", Topic: domain.TopicCustomerReverificationNeeded, ResourceID: "cus-1"}
	if err := svc.ProcessWebhookEvent(context.Background(), payload, []byte(`{}`)); err != nil {
		t.Fatalf("ProcessWebhookEvent returned error: %v", err)
	}
	if len(repo.customerStatusUpdates) != 0 {
		t.Errorf("reverification must not change the stored status, got %v", repo.customerStatusUpdates)
	}
	if len(repo.reverificationFlags) != 1 || !repo.reverificationFlags[0] {
		t.Fatalf("reverification flags = %v, want a single set", repo.reverificationFlags)
	}
}
