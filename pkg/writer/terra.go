// Copyright 2025 Certen Protocol
package writer

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cl8y/bridge-relay/pkg/cosmoschain"
	"github.com/cl8y/bridge-relay/pkg/hashcodec"
	"github.com/cl8y/bridge-relay/pkg/metrics"
	"github.com/cl8y/bridge-relay/pkg/relayerrors"
	"github.com/cl8y/bridge-relay/pkg/retry"
	"github.com/cl8y/bridge-relay/pkg/store"
	"github.com/cl8y/bridge-relay/pkg/supervisor"
)

// TerraWriter drains the releases queue: EVM-side deposits whose
// withdrawal approval must be submitted on Terra Classic. Cosmos fees
// follow a fixed schedule with no gas bumping, so an Underpriced
// classification here degrades to plain backoff.
type TerraWriter struct {
	queueName    string
	storeChain   string
	client       *cosmoschain.Client
	db           *store.Client
	queue        *store.ApprovalRepository
	srcChainKeys map[uint32]hashcodec.Hash
	retryCfg     retry.Config
	breaker      *retry.CircuitBreaker
	pollInterval time.Duration
	batchSize    int
	logger       *log.Logger
	metrics      *metrics.Registry
}

// TerraWriterConfig configures a TerraWriter.
type TerraWriterConfig struct {
	QueueName    string // advisory lock name, "terra-writer"
	StoreChain   string
	Client       *cosmoschain.Client
	DB           *store.Client
	Queue        *store.ApprovalRepository
	SrcChainKeys map[uint32]hashcodec.Hash
	Retry        retry.Config
	Breaker      retry.CircuitBreakerConfig
	PollInterval time.Duration
	BatchSize    int
	Logger       *log.Logger
	Metrics      *metrics.Registry
}

// NewTerraWriter builds a TerraWriter with defaults filled in.
func NewTerraWriter(cfg TerraWriterConfig) (*TerraWriter, error) {
	if cfg.Client == nil || cfg.DB == nil || cfg.Queue == nil {
		return nil, fmt.Errorf("writer: Terra writer needs a client, a db, and a queue")
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig()
	}
	if cfg.Breaker.Threshold == 0 {
		cfg.Breaker = retry.DefaultCircuitBreakerConfig()
	}
	pollInterval := cfg.PollInterval
	if pollInterval == 0 {
		pollInterval = time.Second
	}
	batchSize := cfg.BatchSize
	if batchSize == 0 {
		batchSize = 20
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.Writer(), fmt.Sprintf("[Writer:%s] ", cfg.QueueName), log.LstdFlags)
	}

	return &TerraWriter{
		queueName:    cfg.QueueName,
		storeChain:   cfg.StoreChain,
		client:       cfg.Client,
		db:           cfg.DB,
		queue:        cfg.Queue,
		srcChainKeys: cfg.SrcChainKeys,
		retryCfg:     cfg.Retry,
		breaker:      retry.NewCircuitBreaker(cfg.Breaker),
		pollInterval: pollInterval,
		batchSize:    batchSize,
		logger:       logger,
		metrics:      cfg.Metrics,
	}, nil
}

// Run drives the writer loop as a supervisor.Task.
func (w *TerraWriter) Run(ctx context.Context) error {
	return supervisor.RunOnSchedule(ctx, w.pollInterval, w.pollOnce)
}

func (w *TerraWriter) pollOnce(ctx context.Context) {
	if w.breaker.Paused() {
		return
	}

	locked, err := w.db.TryAdvisoryLock(ctx, w.queueName)
	if err != nil {
		w.logger.Printf("advisory lock: %v", err)
		w.recordError("store")
		return
	}
	if !locked {
		return
	}
	defer func() {
		if err := w.db.AdvisoryUnlock(ctx, w.queueName); err != nil {
			w.logger.Printf("advisory unlock: %v", err)
		}
	}()

	rows, err := w.queue.ListPendingForWriter(ctx, w.storeChain, w.batchSize)
	if err != nil {
		w.logger.Printf("list pending: %v", err)
		w.recordError("store")
		return
	}
	for _, row := range rows {
		w.processOne(ctx, row)
		if w.metrics != nil {
			w.metrics.ConsecutiveFailures.WithLabelValues(w.storeChain).Set(float64(w.breaker.ConsecutiveFailures()))
		}
		if w.breaker.Paused() {
			w.logger.Printf("circuit breaker tripped, pausing queue")
			return
		}
	}
}

func (w *TerraWriter) processOne(ctx context.Context, row *store.Approval) {
	derived, err := w.rederive(row)
	if err != nil || !bytes.Equal(derived.Bytes(), row.TransferID) {
		reason := relayerrors.ErrHashMismatch.Error()
		if err != nil {
			reason = fmt.Sprintf("%v: %v", relayerrors.ErrHashMismatch, err)
		}
		w.logger.Printf("ALERT: transfer %x failed re-derivation (%s), dead-lettering", row.TransferID, reason)
		w.recordError("hash-mismatch")
		if err := w.queue.MarkDead(ctx, row.TransferID, reason); err != nil {
			w.logger.Printf("mark dead: %v", err)
		}
		w.recordSubmission("dead")
		return
	}

	result, err := w.client.ExecuteAndBroadcast(ctx, cosmoschain.WithdrawApproveMsg(derived))
	if err != nil {
		w.handleFailure(ctx, row, err)
		return
	}

	if err := w.queue.MarkSubmitted(ctx, row.TransferID, result.TxHash); err != nil {
		w.logger.Printf("mark submitted: %v", err)
		w.recordError("store")
		return
	}
	w.breaker.RecordSuccess()
	w.recordSubmission("submitted")
	w.logger.Printf("submitted withdraw_approve for transfer %s: %s", derived.Hex(), result.TxHash)
}

func (w *TerraWriter) rederive(row *store.Approval) (hashcodec.Hash, error) {
	srcID, err := hashcodec.ChainIDFromHex(row.SrcChain)
	if err != nil {
		return hashcodec.Hash{}, fmt.Errorf("src chain: %w", err)
	}
	srcChainKey, ok := w.srcChainKeys[srcID.Uint32()]
	if !ok {
		return hashcodec.Hash{}, fmt.Errorf("no chain key registered for source chain %s", srcID.Hex())
	}
	if len(row.Token) != 32 || len(row.DestAccount) != 32 || len(row.Amount) > 16 {
		return hashcodec.Hash{}, fmt.Errorf("malformed row field lengths")
	}
	var token, destAccount hashcodec.Hash
	copy(token[:], row.Token)
	copy(destAccount[:], row.DestAccount)
	var amount hashcodec.AmountU128
	copy(amount[16-len(row.Amount):], row.Amount)

	return hashcodec.TransferID(srcChainKey, w.client.ChainKey(), token, destAccount, amount, uint64(row.Nonce)), nil
}

func (w *TerraWriter) handleFailure(ctx context.Context, row *store.Approval, submitErr error) {
	w.breaker.RecordFailure()
	class := retry.ClassifyError(submitErr.Error())
	w.recordError(class.String())
	decision := retry.Decide(w.retryCfg, class, row.RetryAttempt)

	switch decision.Action {
	case retry.ActionDeadLetter:
		w.logger.Printf("transfer %x dead-lettered after attempt %d (%s): %v", row.TransferID, row.RetryAttempt, class, submitErr)
		if err := w.queue.MarkDead(ctx, row.TransferID, submitErr.Error()); err != nil {
			w.logger.Printf("mark dead: %v", err)
		}
		w.recordSubmission("dead")
	case retry.ActionSkip:
		if row.TxHash.Valid {
			if err := w.queue.MarkSubmitted(ctx, row.TransferID, row.TxHash.String); err != nil {
				w.logger.Printf("mark submitted: %v", err)
			}
		} else if err := w.queue.RecordRetry(ctx, row.TransferID, submitErr.Error(),
			time.Now().Add(w.retryCfg.InitialBackoff), ""); err != nil {
			w.logger.Printf("record retry: %v", err)
		}
		w.recordSubmission("skipped")
	default:
		// no gas bumping on Cosmos: ActionRetryWithGas degrades to a
		// plain delayed retry at the fixed fee schedule
		if err := w.queue.RecordRetry(ctx, row.TransferID, submitErr.Error(),
			time.Now().Add(decision.After), ""); err != nil {
			w.logger.Printf("record retry: %v", err)
		}
		w.recordSubmission("retry")
		w.logger.Printf("transfer %x attempt %d failed (%s), next in %s: %v",
			row.TransferID, row.RetryAttempt, class, decision.After, submitErr)
	}
}

func (w *TerraWriter) recordSubmission(status string) {
	if w.metrics != nil {
		w.metrics.ReleasesSubmittedTotal.WithLabelValues(w.storeChain, status).Inc()
	}
}

func (w *TerraWriter) recordError(errType string) {
	if w.metrics != nil {
		w.metrics.ErrorsTotal.WithLabelValues(w.storeChain, errType).Inc()
	}
}
