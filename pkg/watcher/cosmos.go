// Copyright 2025 Certen Protocol
package watcher

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"sync"
	"time"

	"github.com/cl8y/bridge-relay/pkg/cosmoschain"
	"github.com/cl8y/bridge-relay/pkg/metrics"
	"github.com/cl8y/bridge-relay/pkg/store"
)

// CosmosWatcher watches the Terra Classic bridge contract for wasm
// Deposit events via the LCD's tx-search surface, following the same
// cursor discipline as the EVM watcher: a window's events are durably
// persisted before the cursor moves.
type CosmosWatcher struct {
	mu sync.RWMutex

	chainKey       string
	client         *cosmoschain.Client
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

// CosmosWatcherConfig configures a CosmosWatcher.
type CosmosWatcherConfig struct {
	ChainKey       string // hex-encoded ChainKey, the store's "chain" column value
	Client         *cosmoschain.Client
	Repos          *store.Repositories
	BatchSize      uint64
	FinalityBlocks uint64 // Tendermint finality is instant; default 1
	PollInterval   time.Duration
	StartHeight    uint64
	Logger         *log.Logger
	Metrics        *metrics.Registry
}

// NewCosmosWatcher builds a CosmosWatcher with defaults filled in.
func NewCosmosWatcher(cfg CosmosWatcherConfig) (*CosmosWatcher, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("watcher: Cosmos client is required")
	}
	if cfg.Repos == nil {
		return nil, fmt.Errorf("watcher: repositories are required")
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
		logger = log.New(log.Writer(), fmt.Sprintf("[Watcher:%s] ", cfg.ChainKey), log.LstdFlags)
	}

	return &CosmosWatcher{
		chainKey:       cfg.ChainKey,
		client:         cfg.Client,
		repos:          cfg.Repos,
		batchSize:      batchSize,
		finalityBlocks: finality,
		pollInterval:   pollInterval,
		startHeight:    cfg.StartHeight,
		logger:         logger,
		metrics:        cfg.Metrics,
	}, nil
}

// Start begins the polling loop.
func (w *CosmosWatcher) Start(ctx context.Context) error {
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
func (w *CosmosWatcher) Stop() error {
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

// Run adapts the watcher's lifecycle to supervisor.Task.
func (w *CosmosWatcher) Run(ctx context.Context) error {
	if err := w.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return w.Stop()
}

func (w *CosmosWatcher) run(ctx context.Context) {
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

func (w *CosmosWatcher) pollOnce(ctx context.Context) {
	head, err := w.client.LatestHeight(ctx)
	if err != nil {
		w.logger.Printf("get latest height: %v", err)
		w.recordError("rpc-transient")
		return
	}
	if w.metrics != nil {
		w.metrics.LatestBlock.WithLabelValues(w.chainKey).Set(float64(head))
	}
	if head < w.finalityBlocks {
		return
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
		return
	}
	to := from + w.batchSize - 1
	if to > safeHead {
		to = safeHead
	}

	events, err := w.client.SearchDepositEvents(ctx, from, to)
	if err != nil {
		w.logger.Printf("search deposit events [%d,%d]: %v", from, to, err)
		w.recordError("rpc-transient")
		return
	}

	for i, ev := range events {
		if err := w.persistDeposit(ctx, ev, uint32(i)); err != nil {
			w.logger.Printf("persist deposit %s: %v", ev.TxHash, err)
			w.recordError("store")
			return // cursor must not advance past an unpersisted event
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

// persistDeposit maps a wasm event into a terra_deposits row. Terra
// events have no per-block log index; the event's position within the
// polled window's search results serves as the dedup ordinal, which is
// stable because a failed window is re-polled from the same start height
// and tx-search returns events in deterministic order.
func (w *CosmosWatcher) persistDeposit(ctx context.Context, ev cosmoschain.DepositEvent, ordinal uint32) error {
	amount, overflowed := clampAmount(new(big.Int).SetBytes(ev.Amount))
	if overflowed {
		w.logger.Printf("WARNING: amount overflow on deposit %s, clamped to max u128", ev.TxHash)
		w.recordError("amount-overflow")
	}

	fee := ev.Fee
	if fee == nil {
		fee = []byte{}
	}
	row := &store.Deposit{
		Chain:       w.chainKey,
		SrcChain:    w.chainKey,
		DestChain:   fmt.Sprintf("%x", ev.DestChain),
		SrcAccount:  ev.SrcAccount[:],
		DestAccount: ev.DestAccount[:],
		Token:       ev.Token.Bytes(),
		Amount:      amount[:],
		Nonce:       ev.Nonce,
		Fee:         fee,
		BlockNumber: ev.Height,
		TxHash:      ev.TxHash,
		LogIndex:    ordinal,
	}
	return w.repos.TerraDeposits.Upsert(ctx, row)
}

func (w *CosmosWatcher) recordError(errType string) {
	if w.metrics != nil {
		w.metrics.ErrorsTotal.WithLabelValues(w.chainKey, errType).Inc()
	}
}
