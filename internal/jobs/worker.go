package jobs

import (
	"context"
	"log"
	"time"
)

// JobProcessor defines the interface for one reconciliation pass
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker drives a JobProcessor on a fixed poll interval
type Worker struct {
	processor    JobProcessor
	pollInterval time.Duration
	stopChan     chan struct{}
	doneChan     chan struct{}
}

// NewWorker creates a new Worker instance
func NewWorker(processor JobProcessor, pollInterval time.Duration) *Worker {
	return &Worker{
		processor:    processor,
		pollInterval: pollInterval,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Start runs the polling loop until the context is cancelled or Stop is
// called. The first pass runs immediately so orphans left by a crash are
// repaired without waiting a full interval.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	defer close(w.doneChan)

	log.Printf("reconcile worker started (interval %v)", w.pollInterval)

	w.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Println("reconcile worker stopped: context cancelled")
			return
		case <-w.stopChan:
			log.Println("reconcile worker stopped: stop signal received")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	if err := w.processor.ProcessJobs(ctx); err != nil {
		log.Printf("reconcile pass failed: %v", err)
	}
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	close(w.stopChan)
	<-w.doneChan
	log.Println("reconcile worker shutdown complete")
}
