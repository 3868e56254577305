// Copyright 2025 Certen Protocol
//
// Package confirm tracks submitted destination transactions to a
// terminal verdict. It runs independently of the writers: a restart of
// either side loses no progress, because the only shared state is the
// database row and the chain itself.
package confirm

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cl8y/bridge-relay/pkg/metrics"
	"github.com/cl8y/bridge-relay/pkg/store"
	"github.com/cl8y/bridge-relay/pkg/supervisor"
)

// State is a submitted transaction's current standing.
type State int

const (
	// StatePending means no receipt is visible yet.
	StatePending State = iota
	// StateWaiting means the receipt is in, but not yet buried under
	// enough confirmations.
	StateWaiting
	// StateConfirmed means success with sufficient confirmations.
	StateConfirmed
	// StateFailed means the transaction reverted.
	StateFailed
	// StateReorged means a previously seen receipt has vanished: the
	// containing block was reorganized away.
	StateReorged
)

// Outcome is one poll's verdict on a transaction.
type Outcome struct {
	State     State
	Remaining int    // confirmations still needed, when StateWaiting
	Reason    string // revert reason, when StateFailed
}

// TxChecker is how the tracker asks a chain about one transaction. The
// EVM and Cosmos adapters each provide one.
type TxChecker interface {
	CheckTx(ctx context.Context, txHash string) (Outcome, error)
}

// Queue is the slice of the repository surface the tracker touches:
// the writer owns pending->submitted, the tracker owns
// submitted->confirmed|failed|reorged, so the two never contend on a
// row. *store.ApprovalRepository satisfies it.
type Queue interface {
	ListSubmitted(ctx context.Context, destChain string, limit int) ([]*store.Approval, error)
	MarkConfirmed(ctx context.Context, transferID []byte) error
	MarkFailed(ctx context.Context, transferID []byte, reason string) error
	MarkReorged(ctx context.Context, transferID []byte) error
}

// Tracker polls one destination chain's submitted rows.
type Tracker struct {
	storeChain   string
	direction    string // latency metric label
	queue        Queue
	checker      TxChecker
	pollInterval time.Duration
	batchSize    int
	logger       *log.Logger
	metrics      *metrics.Registry
}

// TrackerConfig configures a Tracker.
type TrackerConfig struct {
	StoreChain   string
	Direction    string
	Queue        Queue
	Checker      TxChecker
	PollInterval time.Duration
	BatchSize    int
	Logger       *log.Logger
	Metrics      *metrics.Registry
}

// NewTracker builds a Tracker with defaults filled in.
func NewTracker(cfg TrackerConfig) (*Tracker, error) {
	if cfg.Queue == nil || cfg.Checker == nil {
		return nil, fmt.Errorf("confirm: tracker needs a queue and a checker")
	}
	pollInterval := cfg.PollInterval
	if pollInterval == 0 {
		pollInterval = 10 * time.Second
	}
	batchSize := cfg.BatchSize
	if batchSize == 0 {
		batchSize = 50
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.Writer(), fmt.Sprintf("[ConfirmationTracker:%s] ", cfg.StoreChain), log.LstdFlags)
	}
	return &Tracker{
		storeChain:   cfg.StoreChain,
		direction:    cfg.Direction,
		queue:        cfg.Queue,
		checker:      cfg.Checker,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		logger:       logger,
		metrics:      cfg.Metrics,
	}, nil
}

// Run drives the tracker loop as a supervisor.Task.
func (t *Tracker) Run(ctx context.Context) error {
	return supervisor.RunOnSchedule(ctx, t.pollInterval, t.pollOnce)
}

func (t *Tracker) pollOnce(ctx context.Context) {
	rows, err := t.queue.ListSubmitted(ctx, t.storeChain, t.batchSize)
	if err != nil {
		t.logger.Printf("list submitted: %v", err)
		return
	}
	for _, row := range rows {
		if !row.TxHash.Valid || row.TxHash.String == "" {
			continue
		}
		t.trackOne(ctx, row)
	}
}

func (t *Tracker) trackOne(ctx context.Context, row *store.Approval) {
	outcome, err := t.checker.CheckTx(ctx, row.TxHash.String)
	if err != nil {
		t.logger.Printf("check tx %s: %v", row.TxHash.String, err)
		if t.metrics != nil {
			t.metrics.ErrorsTotal.WithLabelValues(t.storeChain, "rpc-transient").Inc()
		}
		return
	}

	switch outcome.State {
	case StatePending, StateWaiting:
		// leave submitted; next cycle re-checks
	case StateConfirmed:
		if err := t.queue.MarkConfirmed(ctx, row.TransferID); err != nil {
			t.logger.Printf("mark confirmed: %v", err)
			return
		}
		if t.metrics != nil {
			t.metrics.ProcessingLatencySeconds.WithLabelValues(t.direction).
				Observe(time.Since(row.CreatedAt).Seconds())
		}
		t.logger.Printf("transfer %x confirmed (%s)", row.TransferID, row.TxHash.String)
	case StateFailed:
		if err := t.queue.MarkFailed(ctx, row.TransferID, outcome.Reason); err != nil {
			t.logger.Printf("mark failed: %v", err)
			return
		}
		t.logger.Printf("transfer %x failed on-chain: %s", row.TransferID, outcome.Reason)
	case StateReorged:
		if err := t.queue.MarkReorged(ctx, row.TransferID); err != nil {
			t.logger.Printf("mark reorged: %v", err)
			return
		}
		t.logger.Printf("transfer %x reorged out, returned to pending", row.TransferID)
	}
}
