// Copyright 2025 Certen Protocol
package verifier

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cl8y/bridge-relay/pkg/cosmoschain"
	"github.com/cl8y/bridge-relay/pkg/evmchain"
	"github.com/cl8y/bridge-relay/pkg/metrics"
	"github.com/cl8y/bridge-relay/pkg/supervisor"
)

// The Canceler's approval watchers keep their cursors in memory, not in
// the database: on a restart they resume from the current finality-
// adjusted head, and anything already inside the cancel window that was
// missed is bounded by the window itself. Durability here would buy
// re-verification of approvals whose windows have mostly closed — the
// caches and the chains are the real state.

// EVMApprovalWatcher polls one EVM chain for WithdrawApprove events and
// feeds them to its verifier.
type EVMApprovalWatcher struct {
	client         *evmchain.Client
	verifier       *Verifier
	batchSize      uint64
	finalityBlocks uint64
	pollInterval   time.Duration
	cursor         uint64
	logger         *log.Logger
	metrics        *metrics.Registry
}

// EVMApprovalWatcherConfig configures an EVMApprovalWatcher.
type EVMApprovalWatcherConfig struct {
	Client         *evmchain.Client
	Verifier       *Verifier
	BatchSize      uint64
	FinalityBlocks uint64
	PollInterval   time.Duration
	Logger         *log.Logger
	Metrics        *metrics.Registry
}

// NewEVMApprovalWatcher builds a watcher with defaults filled in.
func NewEVMApprovalWatcher(cfg EVMApprovalWatcherConfig) (*EVMApprovalWatcher, error) {
	if cfg.Client == nil || cfg.Verifier == nil {
		return nil, fmt.Errorf("verifier: approval watcher needs a client and a verifier")
	}
	batchSize := cfg.BatchSize
	if batchSize == 0 {
		batchSize = 1000
	}
	pollInterval := cfg.PollInterval
	if pollInterval == 0 {
		pollInterval = time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.Writer(), fmt.Sprintf("[ApprovalWatcher:%s] ", cfg.Client.ChainName()), log.LstdFlags)
	}
	return &EVMApprovalWatcher{
		client:         cfg.Client,
		verifier:       cfg.Verifier,
		batchSize:      batchSize,
		finalityBlocks: cfg.FinalityBlocks,
		pollInterval:   pollInterval,
		logger:         logger,
		metrics:        cfg.Metrics,
	}, nil
}

// Run drives the watch loop as a supervisor.Task.
func (w *EVMApprovalWatcher) Run(ctx context.Context) error {
	return supervisor.RunOnSchedule(ctx, w.pollInterval, w.pollOnce)
}

func (w *EVMApprovalWatcher) pollOnce(ctx context.Context) {
	// the retry backlog is drained before any new approvals are taken
	w.verifier.DrainPending(ctx)

	head, err := w.client.BlockNumber(ctx)
	if err != nil {
		w.logger.Printf("get block number: %v", err)
		return
	}
	if head < w.finalityBlocks {
		return
	}
	safeHead := head - w.finalityBlocks

	if w.cursor == 0 {
		w.cursor = safeHead
		w.logger.Printf("starting from block %d", safeHead)
		return
	}
	if w.cursor >= safeHead {
		return
	}
	from := w.cursor + 1
	to := from + w.batchSize - 1
	if to > safeHead {
		to = safeHead
	}

	logs, err := w.client.FilterLogs(ctx, w.client.WithdrawApproveFilterQuery(from, to))
	if err != nil {
		w.logger.Printf("filter approve logs [%d,%d]: %v", from, to, err)
		return
	}
	for _, l := range logs {
		ev, err := evmchain.DecodeWithdrawApprove(l)
		if err != nil {
			w.logger.Printf("decode approve log %s:%d: %v", l.TxHash, l.Index, err)
			continue
		}
		w.verifier.HandleApproval(ctx, ev.TransferID)
	}

	w.cursor = to
	if w.metrics != nil {
		w.metrics.CancelerLastEVMBlockProcessed.Set(float64(to))
	}
}

// TerraApprovalWatcher polls Terra Classic for wasm withdraw_approve
// events and feeds them to its verifier.
type TerraApprovalWatcher struct {
	client         *cosmoschain.Client
	verifier       *Verifier
	batchSize      uint64
	finalityBlocks uint64
	pollInterval   time.Duration
	cursor         uint64
	logger         *log.Logger
	metrics        *metrics.Registry
}

// TerraApprovalWatcherConfig configures a TerraApprovalWatcher.
type TerraApprovalWatcherConfig struct {
	Client         *cosmoschain.Client
	Verifier       *Verifier
	BatchSize      uint64
	FinalityBlocks uint64
	PollInterval   time.Duration
	Logger         *log.Logger
	Metrics        *metrics.Registry
}

// NewTerraApprovalWatcher builds a watcher with defaults filled in.
func NewTerraApprovalWatcher(cfg TerraApprovalWatcherConfig) (*TerraApprovalWatcher, error) {
	if cfg.Client == nil || cfg.Verifier == nil {
		return nil, fmt.Errorf("verifier: approval watcher needs a client and a verifier")
	}
	batchSize := cfg.BatchSize
	if batchSize == 0 {
		batchSize = 1000
	}
	finality := cfg.FinalityBlocks
	if finality == 0 {
		finality = 1
	}
	pollInterval := cfg.PollInterval
	if pollInterval == 0 {
		pollInterval = time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.Writer(), fmt.Sprintf("[ApprovalWatcher:%s] ", cfg.Client.ChainName()), log.LstdFlags)
	}
	return &TerraApprovalWatcher{
		client:         cfg.Client,
		verifier:       cfg.Verifier,
		batchSize:      batchSize,
		finalityBlocks: finality,
		pollInterval:   pollInterval,
		logger:         logger,
		metrics:        cfg.Metrics,
	}, nil
}

// Run drives the watch loop as a supervisor.Task.
func (w *TerraApprovalWatcher) Run(ctx context.Context) error {
	return supervisor.RunOnSchedule(ctx, w.pollInterval, w.pollOnce)
}

func (w *TerraApprovalWatcher) pollOnce(ctx context.Context) {
	w.verifier.DrainPending(ctx)

	head, err := w.client.LatestHeight(ctx)
	if err != nil {
		w.logger.Printf("get latest height: %v", err)
		return
	}
	if head < w.finalityBlocks {
		return
	}
	safeHead := head - w.finalityBlocks

	if w.cursor == 0 {
		w.cursor = safeHead
		w.logger.Printf("starting from height %d", safeHead)
		return
	}
	if w.cursor >= safeHead {
		return
	}
	from := w.cursor + 1
	to := from + w.batchSize - 1
	if to > safeHead {
		to = safeHead
	}

	events, err := w.client.SearchApprovalEvents(ctx, from, to)
	if err != nil {
		w.logger.Printf("search approve events [%d,%d]: %v", from, to, err)
		return
	}
	for _, ev := range events {
		w.verifier.HandleApproval(ctx, ev.TransferID)
	}

	w.cursor = to
	if w.metrics != nil {
		w.metrics.CancelerLastTerraHeightProcessed.Set(float64(to))
	}
}
