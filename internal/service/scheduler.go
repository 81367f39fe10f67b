package service

import (
	"log"
	"time"
)

// RetryScheduler periodically re-submits PENDING fiscal documents. One
// instance runs per process; sweeps are sequential and rate limited so
// the gateway never sees a burst after an outage.
type RetryScheduler struct {
	invoices  InvoiceService
	interval  time.Duration
	itemDelay time.Duration
	batchSize int
	stop      chan struct{}
	done      chan struct{}
}

func NewRetryScheduler(invoices InvoiceService, interval, itemDelay time.Duration, batchSize int) *RetryScheduler {
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	if itemDelay < 0 {
		itemDelay = 0
	}
	if batchSize <= 0 {
		batchSize = 20
	}
	return &RetryScheduler{
		invoices:  invoices,
		interval:  interval,
		itemDelay: itemDelay,
		batchSize: batchSize,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the sweep loop. An immediate sweep runs first so
// documents left pending by a crash are picked up without waiting a
// full interval.
func (s *RetryScheduler) Start() {
	go func() {
		defer close(s.done)
		s.Sweep()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (s *RetryScheduler) Stop() {
	close(s.stop)
	<-s.done
}

// Sweep re-submits one batch of pending invoices, then pending credit
// notes. Individual failures are already recorded on the document by
// the state machine, so here they are only logged.
func (s *RetryScheduler) Sweep() {
	invoices, err := s.invoices.PendingInvoices(s.batchSize)
	if err != nil {
		log.Printf("retry scheduler: listing pending invoices: %v", err)
	}
	for i := range invoices {
		if err := s.invoices.SubmitInvoice(&invoices[i]); err != nil {
			log.Printf("retry scheduler: invoice %s attempt %d: %v",
				invoices[i].ID, invoices[i].RetryCount, err)
		}
		s.pause()
	}

	notes, err := s.invoices.PendingCreditNotes(s.batchSize)
	if err != nil {
		log.Printf("retry scheduler: listing pending credit notes: %v", err)
	}
	for i := range notes {
		if err := s.invoices.SubmitCreditNote(&notes[i]); err != nil {
			log.Printf("retry scheduler: credit note %s attempt %d: %v",
				notes[i].ID, notes[i].RetryCount, err)
		}
		s.pause()
	}
}

func (s *RetryScheduler) pause() {
	if s.itemDelay <= 0 {
		return
	}
	select {
	case <-time.After(s.itemDelay):
	case <-s.stop:
	}
}
