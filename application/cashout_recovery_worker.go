package application

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// CashoutRecoveryWorker periodically resolves cash-outs stuck in reserved
type CashoutRecoveryWorker struct {
	orchestrator *CashoutOrchestrator
	interval     time.Duration
	staleAfter   time.Duration
}

// NewCashoutRecoveryWorker creates a new cash-out recovery worker
func NewCashoutRecoveryWorker(orchestrator *CashoutOrchestrator, interval, staleAfter time.Duration) *CashoutRecoveryWorker {
	return &CashoutRecoveryWorker{
		orchestrator: orchestrator,
		interval:     interval,
		staleAfter:   staleAfter,
	}
}

// Start runs a recovery pass right away and then every interval. The returned
// function stops the worker.
func (w *CashoutRecoveryWorker) Start(ctx context.Context) func() {
	stopChan := make(chan struct{})

	runPass := func() {
		if _, err := w.orchestrator.Recover(ctx, w.staleAfter); err != nil {
			log.Errorf("Error recovering stale cash-outs: %v", err)
		}
	}

	go func() {
		runPass()

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Info("Cash-out recovery worker stopped (context cancelled)")
				return
			case <-stopChan:
				log.Info("Cash-out recovery worker stopped")
				return
			case <-ticker.C:
				runPass()
			}
		}
	}()

	log.WithFields(log.Fields{
		"interval":   w.interval,
		"staleAfter": w.staleAfter,
	}).Info("Cash-out recovery worker started")

	return func() {
		close(stopChan)
	}
}
