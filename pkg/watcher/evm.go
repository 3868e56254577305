// Copyright 2025 Certen Protocol
//
// Package watcher polls source chains for bridge Deposit events, decodes
// them through the hash codec, and persists them durably before ever
// advancing a chain's cursor — so a crash mid-cycle replays the same
// window rather than silently skipping it. EVMWatcher and CosmosWatcher
// are the two concrete adapters.
package watcher

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"sync"
	"time"

	"github.com/cl8y/bridge-relay/pkg/evmchain"
	"github.com/cl8y/bridge-relay/pkg/hashcodec"
	"github.com/cl8y/bridge-relay/pkg/metrics"
	"github.com/cl8y/bridge-relay/pkg/store"
)

// EVMWatcher watches one EVM chain's bridge contract for Deposit events
// and persists them, advancing a per-chain cursor only after a whole
// window is durably stored.
type EVMWatcher struct {
	mu sync.RWMutex

	chainKey       string
	client         *evmchain.Client
	repos          *store.Repositories
	batchSize      uint64
	finalityBlocks uint64
	pollInterval   time.Duration
	startHeight    uint64

	logger  *log.Logger
	metrics *metrics.Registry

	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// EVMWatcherConfig configures an EVMWatcher.
type EVMWatcherConfig struct {
	ChainKey       string // hex-encoded ChainKey, the store's "chain" column value
	Client         *evmchain.Client
	Repos          *store.Repositories
	BatchSize      uint64 // max blocks per eth_getLogs window, default 1000
	FinalityBlocks uint64
	PollInterval   time.Duration
	StartHeight    uint64 // used only when no cursor row exists yet
	Logger         *log.Logger
	Metrics        *metrics.Registry
}

// NewEVMWatcher builds an EVMWatcher with defaults filled in.
func NewEVMWatcher(cfg EVMWatcherConfig) (*EVMWatcher, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("watcher: EVM client is required")
	}
	if cfg.Repos == nil {
		return nil, fmt.Errorf("watcher: repositories are required")
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
		logger = log.New(log.Writer(), fmt.Sprintf("[Watcher:%s] ", cfg.ChainKey), log.LstdFlags)
	}

	return &EVMWatcher{
		chainKey:       cfg.ChainKey,
		client:         cfg.Client,
		repos:          cfg.Repos,
		batchSize:      batchSize,
		finalityBlocks: cfg.FinalityBlocks,
		pollInterval:   pollInterval,
		startHeight:    cfg.StartHeight,
		logger:         logger,
		metrics:        cfg.Metrics,
	}, nil
}

// Start begins the polling loop.
func (w *EVMWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.running = true
	w.mu.Unlock()

	go w.run(ctx)
	w.logger.Printf("started (poll=%s, batch=%d, finality=%d)", w.pollInterval, w.batchSize, w.finalityBlocks)
	return nil
}

// Stop halts the polling loop and waits for the in-flight cycle to finish.
func (w *EVMWatcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	close(w.stopCh)
	w.running = false
	w.mu.Unlock()

	<-w.doneCh
	w.logger.Println("stopped")
	return nil
}

// Run adapts the watcher's lifecycle to supervisor.Task: it starts the
// loop, blocks until ctx is cancelled, then stops cleanly. Panics inside
// a poll cycle are recovered by the supervisor, not here.
func (w *EVMWatcher) Run(ctx context.Context) error {
	if err := w.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return w.Stop()
}

func (w *EVMWatcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.pollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.pollOnce(ctx)
		}
	}
}

// pollOnce runs a single bounded watch cycle: compute the window, pull
// logs, persist deposits, and only then advance the cursor. Any failure
// along the way aborts the cycle without moving the cursor, so the same
// window is retried on the next tick.
func (w *EVMWatcher) pollOnce(ctx context.Context) {
	head, err := w.client.BlockNumber(ctx)
	if err != nil {
		w.logger.Printf("get block number: %v", err)
		w.recordError("rpc-transient")
		return
	}
	if w.metrics != nil {
		w.metrics.LatestBlock.WithLabelValues(w.chainKey).Set(float64(head))
	}
	if head < w.finalityBlocks {
		return // chain too young to have a finalized block yet
	}
	safeHead := head - w.finalityBlocks

	cursor, ok, err := w.repos.Cursors.Get(ctx, w.chainKey)
	if err != nil {
		w.logger.Printf("get cursor: %v", err)
		w.recordError("store")
		return
	}
	from := w.startHeight
	if ok {
		from = cursor + 1
	}
	if from > safeHead {
		return // already caught up to the finality-adjusted head
	}
	to := from + w.batchSize - 1
	if to > safeHead {
		to = safeHead
	}

	query := w.client.DepositFilterQuery(from, to)
	logs, err := w.client.FilterLogs(ctx, query)
	if err != nil {
		w.logger.Printf("filter logs [%d,%d]: %v", from, to, err)
		w.recordError("rpc-transient")
		return
	}

	for _, l := range logs {
		dep, err := evmchain.DecodeDeposit(l)
		if err != nil {
			w.logger.Printf("decode deposit log %s:%d: %v", l.TxHash, l.Index, err)
			w.recordError("decode")
			continue
		}
		if err := w.persistDeposit(ctx, dep); err != nil {
			w.logger.Printf("persist deposit %s:%d: %v", l.TxHash, l.Index, err)
			w.recordError("store")
			return // abort the cycle; cursor must not advance past an unpersisted event
		}
		if w.metrics != nil {
			w.metrics.DepositsDetectedTotal.WithLabelValues(w.chainKey).Inc()
		}
	}

	if err := w.repos.Cursors.Advance(ctx, w.chainKey, to); err != nil {
		w.logger.Printf("advance cursor to %d: %v", to, err)
		w.recordError("store")
		return
	}
	if w.metrics != nil {
		w.metrics.BlocksProcessedTotal.WithLabelValues(w.chainKey).Add(float64(to - from + 1))
		w.metrics.LastSuccessfulPoll.WithLabelValues(w.chainKey).Set(float64(time.Now().Unix()))
	}
}

func (w *EVMWatcher) persistDeposit(ctx context.Context, dep evmchain.DepositEvent) error {
	amount, overflowed := clampAmount(dep.Amount)
	if overflowed {
		w.logger.Printf("WARNING: amount overflow on deposit %s:%d, clamped to max u128", dep.TxHash, dep.LogIndex)
		w.recordError("amount-overflow")
	}

	row := &store.Deposit{
		Chain:       w.chainKey,
		SrcChain:    w.chainKey,
		DestChain:   fmt.Sprintf("%x", dep.DestChain),
		SrcAccount:  dep.SrcAccount[:],
		DestAccount: dep.DestAccount[:],
		Token:       hashcodec.MustEncodeEVMAddress(dep.Token).Bytes(),
		Amount:      amount[:],
		Nonce:       dep.Nonce,
		Fee:         bigToBytes(dep.Fee),
		BlockNumber: dep.BlockNumber,
		TxHash:      dep.TxHash.Hex(),
		LogIndex:    dep.LogIndex,
	}
	return w.repos.Deposits.Upsert(ctx, row)
}

func (w *EVMWatcher) recordError(errType string) {
	if w.metrics != nil {
		w.metrics.ErrorsTotal.WithLabelValues(w.chainKey, errType).Inc()
	}
}

// clampAmount saturates a deposit amount to u128 max rather than
// silently truncating or failing the whole cycle; the on-chain contract
// bounds amounts to u128, so an overflow is anomalous input.
func clampAmount(amount *big.Int) (out hashcodec.AmountU128, overflowed bool) {
	return hashcodec.AmountU128FromBigInt(amount)
}

func bigToBytes(v *big.Int) []byte {
	if v == nil {
		return []byte{}
	}
	return v.Bytes()
}
