// Copyright 2025 Certen Protocol
package writer

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cl8y/bridge-relay/pkg/hashcodec"
	"github.com/cl8y/bridge-relay/pkg/metrics"
	"github.com/cl8y/bridge-relay/pkg/store"
	"github.com/cl8y/bridge-relay/pkg/supervisor"
)

// Destination describes one chain an Enqueuer may route deposits to.
type Destination struct {
	ChainID    uint32 // 4-byte registry chain id
	ChainKey   hashcodec.Hash
	StoreChain string // dest_chain column value the destination's writer selects on
}

// Enqueuer bridges the deposit tables to the approval/release queues:
// it derives each observed deposit's canonical transfer id and inserts
// the matching destination row, marking the deposit processed in the
// hand-off. One Enqueuer runs per direction (Terra deposits feed the
// approvals queue, EVM deposits feed the releases queue).
type Enqueuer struct {
	name         string
	direction    string // metric label: "evm_to_terra" | "terra_to_evm"
	srcChain     string // source chain's store key
	srcChainKey  hashcodec.Hash
	srcChainID   uint32
	deposits     *store.DepositRepository
	dest         *store.ApprovalRepository
	destinations map[uint32]Destination
	tokens       TokenResolver
	pollInterval time.Duration
	batchSize    int
	logger       *log.Logger
	metrics      *metrics.Registry
}

// EnqueuerConfig configures an Enqueuer.
type EnqueuerConfig struct {
	Name         string
	Direction    string
	SrcChain     string
	SrcChainKey  hashcodec.Hash
	SrcChainID   uint32
	Deposits     *store.DepositRepository
	Dest         *store.ApprovalRepository
	Destinations []Destination
	Tokens       TokenResolver
	PollInterval time.Duration
	BatchSize    int
	Logger       *log.Logger
	Metrics      *metrics.Registry
}

// NewEnqueuer builds an Enqueuer with defaults filled in.
func NewEnqueuer(cfg EnqueuerConfig) (*Enqueuer, error) {
	if cfg.Deposits == nil || cfg.Dest == nil {
		return nil, fmt.Errorf("writer: enqueuer needs both a deposit source and a destination repository")
	}
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("writer: enqueuer needs a token resolver")
	}
	pollInterval := cfg.PollInterval
	if pollInterval == 0 {
		pollInterval = time.Second
	}
	batchSize := cfg.BatchSize
	if batchSize == 0 {
		batchSize = 100
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.Writer(), fmt.Sprintf("[Enqueuer:%s] ", cfg.Name), log.LstdFlags)
	}
	destinations := make(map[uint32]Destination, len(cfg.Destinations))
	for _, d := range cfg.Destinations {
		destinations[d.ChainID] = d
	}

	return &Enqueuer{
		name:         cfg.Name,
		direction:    cfg.Direction,
		srcChain:     cfg.SrcChain,
		srcChainKey:  cfg.SrcChainKey,
		srcChainID:   cfg.SrcChainID,
		deposits:     cfg.Deposits,
		dest:         cfg.Dest,
		destinations: destinations,
		tokens:       cfg.Tokens,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		logger:       logger,
		metrics:      cfg.Metrics,
	}, nil
}

// Run drives the enqueue loop as a supervisor.Task.
func (e *Enqueuer) Run(ctx context.Context) error {
	return supervisor.RunOnSchedule(ctx, e.pollInterval, e.pollOnce)
}

func (e *Enqueuer) pollOnce(ctx context.Context) {
	rows, err := e.deposits.ListUnprocessed(ctx, e.srcChain, e.batchSize)
	if err != nil {
		e.logger.Printf("list unprocessed deposits: %v", err)
		e.recordError("store")
		return
	}
	for _, dep := range rows {
		if err := e.enqueueOne(ctx, dep); err != nil {
			e.logger.Printf("enqueue deposit %s:%d: %v", dep.TxHash, dep.LogIndex, err)
			e.recordError("store")
			return
		}
	}
	if e.metrics != nil {
		if n, err := e.deposits.CountUnprocessed(ctx, e.srcChain); err == nil {
			e.metrics.PendingDeposits.WithLabelValues(e.srcChain).Set(float64(n))
		}
	}
}

// enqueueOne routes a single deposit. A deposit naming an unknown
// destination chain or an unmapped token stays observed and is retried
// on later cycles — the discovery task or an operator config fix can
// make it routable without data loss. Such a deposit is logged again on
// every cycle it stays queued.
func (e *Enqueuer) enqueueOne(ctx context.Context, dep *store.Deposit) error {
	destID, err := hashcodec.ChainIDFromHex(dep.DestChain)
	if err != nil {
		// poison row: unparseable destination, can never route
		e.logger.Printf("deposit %s:%d has malformed dest chain %q, dropping from queue", dep.TxHash, dep.LogIndex, dep.DestChain)
		e.recordError("poison")
		return e.deposits.MarkProcessed(ctx, dep.ID)
	}
	dest, ok := e.destinations[destID.Uint32()]
	if !ok {
		e.logger.Printf("deposit %s:%d targets unconfigured chain %s, leaving queued", dep.TxHash, dep.LogIndex, destID.Hex())
		e.recordError("unknown-dest-chain")
		return nil
	}

	var srcToken hashcodec.Hash
	copy(srcToken[:], dep.Token)
	mapping, ok := e.tokens.Resolve(e.srcChain, srcToken, dest.ChainID)
	if !ok {
		e.logger.Printf("deposit %s:%d carries unmapped token %s, leaving queued", dep.TxHash, dep.LogIndex, srcToken.Hex())
		e.recordError("unmapped-token")
		return nil
	}

	var amount hashcodec.AmountU128
	copy(amount[16-len(dep.Amount):], dep.Amount)
	var destAccount hashcodec.Hash
	copy(destAccount[:], dep.DestAccount)

	transferID := hashcodec.TransferID(
		e.srcChainKey, dest.ChainKey, mapping.DestToken, destAccount, amount, dep.Nonce)

	row := &store.Approval{
		TransferID:   transferID.Bytes(),
		SrcChain:     fmt.Sprintf("%08x", e.srcChainID),
		DestChain:    dest.StoreChain,
		SrcAccount:   dep.SrcAccount,
		DestAccount:  dep.DestAccount,
		Token:        mapping.DestToken.Bytes(),
		Amount:       dep.Amount,
		Nonce:        dep.Nonce,
		SrcDecimals:  int(mapping.SrcDecimals),
		DestDecimals: int(mapping.DestDecimals),
	}
	if err := e.dest.Insert(ctx, row); err != nil {
		return err
	}
	if err := e.deposits.MarkProcessed(ctx, dep.ID); err != nil {
		return err
	}

	if e.metrics != nil {
		token := srcToken.Hex()
		e.metrics.VolumeBridgedTotal.WithLabelValues(e.srcChain, token).Add(amountAsFloat(dep.Amount))
		e.metrics.FeesCollectedTotal.WithLabelValues(e.srcChain, token).Add(amountAsFloat(dep.Fee))
	}
	e.logger.Printf("enqueued transfer %s (nonce %d) for chain %s", transferID.Hex(), dep.Nonce, destID.Hex())
	return nil
}

func (e *Enqueuer) recordError(errType string) {
	if e.metrics != nil {
		e.metrics.ErrorsTotal.WithLabelValues(e.srcChain, errType).Inc()
	}
}

// amountAsFloat renders a big-endian byte amount as a float64 for
// counter purposes only; precision loss above 2^53 is acceptable for a
// monitoring series.
func amountAsFloat(be []byte) float64 {
	var v float64
	for _, b := range be {
		v = v*256 + float64(b)
	}
	return v
}
