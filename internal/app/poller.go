/**
 * @description
 * Cron-driven reconciliation of pending transfers. Webhooks are the primary
 * status channel but deliveries can be lost; the poller sweeps submitted
 * transactions that never reached a terminal status and re-fetches each one
 * from the provider. Every sweep of a transaction bumps its retrieval-attempt
 * counter so stuck transfers are visible.
 */

package app

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// TransferPoller periodically reconciles pending transfers with the provider.
type TransferPoller struct {
	cron      *cron.Cron
	service   *Service
	schedule  string
	batchSize int
}

// NewTransferPoller creates a poller. schedule is a standard cron expression;
// batchSize caps the number of transactions reconciled per sweep.
func NewTransferPoller(service *Service, schedule string, batchSize int) *TransferPoller {
	if batchSize <= 0 {
		batchSize = 100
	}
	cronLogger := cron.PrintfLogger(log.Default())
	return &TransferPoller{
		cron:      cron.New(cron.WithChain(cron.Recover(cronLogger))),
		service:   service,
		schedule:  schedule,
		batchSize: batchSize,
	}
}

// Start registers the sweep job and starts the scheduler.
func (p *TransferPoller) Start() {
	if _, err := p.cron.AddFunc(p.schedule, p.sweep); err != nil {
		log.Printf("level=error component=transfer_poller msg=\"failed to schedule sweep\" schedule=%q err=%v", p.schedule, err)
		return
	}
	log.Printf("level=info component=transfer_poller msg=\"scheduled pending transfer sweep\" schedule=%q batch_size=%d", p.schedule, p.batchSize)
	p.cron.Start()
}

// Stop gracefully stops the scheduler, waiting for a running sweep to finish.
func (p *TransferPoller) Stop() context.Context {
	return p.cron.Stop()
}

func (p *TransferPoller) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pending, err := p.service.repo.ListPendingTransferTransactions(ctx, p.batchSize)
	if err != nil {
		log.Printf("level=error component=transfer_poller msg=\"failed to list pending transactions\" err=%v", err)
		return
	}
	if len(pending) == 0 {
		return
	}
	log.Printf("level=info component=transfer_poller msg=\"sweeping pending transfers\" count=%d", len(pending))

	for i := range pending {
		tx := &pending[i]
		if err := p.service.repo.IncrementRetrievalAttempts(ctx, tx.ID); err != nil {
			log.Printf("level=warn component=transfer_poller msg=\"failed to bump retrieval attempts\" transaction_id=%s err=%v", tx.ID, err)
		}
		if err := p.service.RefreshTransferStatus(ctx, tx); err != nil {
			// One stuck transfer must not starve the rest of the batch.
			log.Printf("level=warn component=transfer_poller msg=\"failed to refresh transfer\" transaction_id=%s err=%v", tx.ID, err)
		}
	}
}
