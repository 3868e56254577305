// Copyright 2025 Certen Protocol
package writer

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/cl8y/bridge-relay/pkg/evmchain"
	"github.com/cl8y/bridge-relay/pkg/hashcodec"
	"github.com/cl8y/bridge-relay/pkg/metrics"
	"github.com/cl8y/bridge-relay/pkg/retry"
	"github.com/cl8y/bridge-relay/pkg/store"
	"github.com/cl8y/bridge-relay/pkg/supervisor"
)

// ExecuteMode selects which on-chain release path the executor calls
// for a confirmed approval.
type ExecuteMode string

const (
	ExecuteUnlock ExecuteMode = "withdrawExecuteUnlock"
	ExecuteMint   ExecuteMode = "withdrawExecuteMint"
)

// EVMExecutor completes the Operator's side of the watchtower bargain:
// once an approval is confirmed and its cancel window has elapsed
// uncancelled, the executor calls withdrawExecuteUnlock/Mint to release
// the funds. It shares the writer's advisory lock so only one process
// submits for this chain's signer.
type EVMExecutor struct {
	queueName    string
	storeChain   string
	client       *evmchain.Client
	db           *store.Client
	queue        *store.ApprovalRepository
	mode         ExecuteMode
	cancelWindow time.Duration
	pollInterval time.Duration
	batchSize    int
	logger       *log.Logger
	metrics      *metrics.Registry
}

// EVMExecutorConfig configures an EVMExecutor.
type EVMExecutorConfig struct {
	QueueName    string // advisory lock name shared with this chain's writer
	StoreChain   string
	Client       *evmchain.Client
	DB           *store.Client
	Queue        *store.ApprovalRepository
	Mode         ExecuteMode
	CancelWindow time.Duration
	PollInterval time.Duration
	BatchSize    int
	Logger       *log.Logger
	Metrics      *metrics.Registry
}

// NewEVMExecutor builds an EVMExecutor with defaults filled in.
func NewEVMExecutor(cfg EVMExecutorConfig) (*EVMExecutor, error) {
	if cfg.Client == nil || cfg.DB == nil || cfg.Queue == nil {
		return nil, fmt.Errorf("writer: executor needs a client, a db, and a queue")
	}
	if cfg.CancelWindow <= 0 {
		return nil, fmt.Errorf("writer: executor needs a positive cancel window")
	}
	mode := cfg.Mode
	if mode == "" {
		mode = ExecuteUnlock
	}
	pollInterval := cfg.PollInterval
	if pollInterval == 0 {
		pollInterval = 10 * time.Second
	}
	batchSize := cfg.BatchSize
	if batchSize == 0 {
		batchSize = 20
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.Writer(), fmt.Sprintf("[Executor:%s] ", cfg.StoreChain), log.LstdFlags)
	}

	return &EVMExecutor{
		queueName:    cfg.QueueName,
		storeChain:   cfg.StoreChain,
		client:       cfg.Client,
		db:           cfg.DB,
		queue:        cfg.Queue,
		mode:         mode,
		cancelWindow: cfg.CancelWindow,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		logger:       logger,
		metrics:      cfg.Metrics,
	}, nil
}

// Run drives the executor loop as a supervisor.Task.
func (e *EVMExecutor) Run(ctx context.Context) error {
	return supervisor.RunOnSchedule(ctx, e.pollInterval, e.pollOnce)
}

func (e *EVMExecutor) pollOnce(ctx context.Context) {
	locked, err := e.db.TryAdvisoryLock(ctx, e.queueName)
	if err != nil {
		e.logger.Printf("advisory lock: %v", err)
		return
	}
	if !locked {
		return
	}
	defer func() {
		if err := e.db.AdvisoryUnlock(ctx, e.queueName); err != nil {
			e.logger.Printf("advisory unlock: %v", err)
		}
	}()

	rows, err := e.queue.ListExecutable(ctx, e.storeChain, e.cancelWindow, e.batchSize)
	if err != nil {
		e.logger.Printf("list executable: %v", err)
		return
	}
	for _, row := range rows {
		e.executeOne(ctx, row)
	}
}

func (e *EVMExecutor) executeOne(ctx context.Context, row *store.Approval) {
	var transferID hashcodec.Hash
	copy(transferID[:], row.TransferID)

	// The cancel window is checked on-chain too, but re-reading the
	// approval first avoids burning gas on one a canceler just killed.
	pending, err := e.client.GetPendingWithdraw(ctx, transferID)
	if err != nil {
		e.logger.Printf("read pending withdraw %s: %v", transferID.Hex(), err)
		return
	}
	if pending.Cancelled {
		e.logger.Printf("transfer %s was cancelled on-chain, recording", transferID.Hex())
		if err := e.queue.MarkCancelled(ctx, row.TransferID); err != nil {
			e.logger.Printf("mark cancelled: %v", err)
		}
		return
	}
	if pending.Executed {
		if err := e.queue.MarkExecuted(ctx, row.TransferID); err != nil {
			e.logger.Printf("mark executed: %v", err)
		}
		return
	}

	signed, err := e.client.BuildAndSignTx(ctx, string(e.mode), nil, nil, [32]byte(transferID))
	if err != nil {
		e.handleFailure(ctx, row, err)
		return
	}
	if err := e.client.SendTransaction(ctx, signed); err != nil {
		e.handleFailure(ctx, row, err)
		return
	}
	if err := e.waitExecuted(ctx, row, signed); err != nil {
		e.logger.Printf("execute %s: %v", transferID.Hex(), err)
		return
	}
	e.logger.Printf("executed transfer %s: %s", transferID.Hex(), signed.Hash().Hex())
}

// waitExecuted polls briefly for the execute transaction's receipt. An
// execute left unconfirmed here is re-attempted on a later cycle; the
// contract rejects a double execute, which the classifier maps to
// Permanent and the row settles via the on-chain executed flag instead.
func (e *EVMExecutor) waitExecuted(ctx context.Context, row *store.Approval, tx *types.Transaction) error {
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		receipt, err := e.client.TransactionReceipt(ctx, tx.Hash())
		if err == nil && receipt != nil {
			if receipt.Status == types.ReceiptStatusSuccessful {
				return e.queue.MarkExecuted(ctx, row.TransferID)
			}
			return fmt.Errorf("execute transaction reverted in block %d", receipt.BlockNumber.Uint64())
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	return fmt.Errorf("no receipt for %s within the wait window", tx.Hash().Hex())
}

func (e *EVMExecutor) handleFailure(ctx context.Context, row *store.Approval, err error) {
	class := retry.ClassifyError(err.Error())
	if e.metrics != nil {
		e.metrics.ErrorsTotal.WithLabelValues(e.storeChain, class.String()).Inc()
	}
	if class == retry.Permanent {
		// most commonly "already executed" raced by a prior attempt;
		// the next cycle's on-chain read settles the row's true state
		e.logger.Printf("execute for %x failed permanently: %v", row.TransferID, err)
		return
	}
	e.logger.Printf("execute for %x failed (%s), will retry next cycle: %v", row.TransferID, class, err)
}
