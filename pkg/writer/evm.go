// Copyright 2025 Certen Protocol
package writer

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/cl8y/bridge-relay/pkg/evmchain"
	"github.com/cl8y/bridge-relay/pkg/hashcodec"
	"github.com/cl8y/bridge-relay/pkg/metrics"
	"github.com/cl8y/bridge-relay/pkg/relayerrors"
	"github.com/cl8y/bridge-relay/pkg/retry"
	"github.com/cl8y/bridge-relay/pkg/store"
	"github.com/cl8y/bridge-relay/pkg/supervisor"
)

// EVMWriter drains one EVM chain's slice of the approvals queue:
// Terra-side deposits whose withdrawal must be submitted on this chain.
// Exactly one process drains a given queue at a time, enforced by a
// Postgres advisory lock rather than convention, and submissions are
// issued strictly one at a time so the signer's nonce never races.
type EVMWriter struct {
	queueName    string
	storeChain   string // dest_chain column value this writer selects on
	client       *evmchain.Client
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

// EVMWriterConfig configures an EVMWriter.
type EVMWriterConfig struct {
	QueueName    string // advisory lock name, e.g. "evm-writer:bsc"
	StoreChain   string
	Client       *evmchain.Client
	DB           *store.Client
	Queue        *store.ApprovalRepository
	SrcChainKeys map[uint32]hashcodec.Hash // registry chain id -> ChainKey, for re-derivation
	Retry        retry.Config
	Breaker      retry.CircuitBreakerConfig
	PollInterval time.Duration
	BatchSize    int
	Logger       *log.Logger
	Metrics      *metrics.Registry
}

// NewEVMWriter builds an EVMWriter with defaults filled in.
func NewEVMWriter(cfg EVMWriterConfig) (*EVMWriter, error) {
	if cfg.Client == nil || cfg.DB == nil || cfg.Queue == nil {
		return nil, fmt.Errorf("writer: EVM writer needs a client, a db, and a queue")
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

	return &EVMWriter{
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
func (w *EVMWriter) Run(ctx context.Context) error {
	return supervisor.RunOnSchedule(ctx, w.pollInterval, w.pollOnce)
}

func (w *EVMWriter) pollOnce(ctx context.Context) {
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
		return // another process is draining this queue
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

func (w *EVMWriter) processOne(ctx context.Context, row *store.Approval) {
	transferID, derived, err := w.rederive(row)
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

	signed, err := w.buildSignedTx(ctx, row)
	if err != nil {
		w.handleFailure(ctx, row, err)
		return
	}
	if err := w.client.SendTransaction(ctx, signed); err != nil {
		w.handleFailure(ctx, row, err)
		return
	}

	if err := w.queue.MarkSubmitted(ctx, row.TransferID, signed.Hash().Hex()); err != nil {
		w.logger.Printf("mark submitted: %v", err)
		w.recordError("store")
		return
	}
	w.breaker.RecordSuccess()
	w.recordSubmission("submitted")
	w.logger.Printf("submitted withdrawSubmit for transfer %s: %s", transferID.Hex(), signed.Hash().Hex())
}

// rederive recomputes the transfer id from the row's own fields; the
// writer never trusts the stored id without proof.
func (w *EVMWriter) rederive(row *store.Approval) (hashcodec.Hash, hashcodec.Hash, error) {
	srcID, err := hashcodec.ChainIDFromHex(row.SrcChain)
	if err != nil {
		return hashcodec.Hash{}, hashcodec.Hash{}, fmt.Errorf("src chain: %w", err)
	}
	srcChainKey, ok := w.srcChainKeys[srcID.Uint32()]
	if !ok {
		return hashcodec.Hash{}, hashcodec.Hash{}, fmt.Errorf("no chain key registered for source chain %s", srcID.Hex())
	}
	if len(row.Token) != 32 || len(row.DestAccount) != 32 || len(row.Amount) > 16 {
		return hashcodec.Hash{}, hashcodec.Hash{}, fmt.Errorf("malformed row field lengths")
	}
	var token, destAccount hashcodec.Hash
	copy(token[:], row.Token)
	copy(destAccount[:], row.DestAccount)
	var amount hashcodec.AmountU128
	copy(amount[16-len(row.Amount):], row.Amount)

	derived := hashcodec.TransferID(srcChainKey, w.client.ChainKey(), token, destAccount, amount, uint64(row.Nonce))
	var stored hashcodec.Hash
	copy(stored[:], row.TransferID)
	return stored, derived, nil
}

func (w *EVMWriter) buildSignedTx(ctx context.Context, row *store.Approval) (*types.Transaction, error) {
	srcID, err := hashcodec.ChainIDFromHex(row.SrcChain)
	if err != nil {
		return nil, err
	}
	var srcAccount, destAccount hashcodec.Hash
	copy(srcAccount[:], row.SrcAccount)
	copy(destAccount[:], row.DestAccount)
	var token32 hashcodec.Hash
	copy(token32[:], row.Token)
	tokenAddr, err := hashcodec.DecodeEVMAddress(token32)
	if err != nil {
		return nil, fmt.Errorf("dest token is not an EVM address: %w", err)
	}
	amount := new(big.Int).SetBytes(row.Amount)

	var gasBump *big.Int
	if row.RetryAttempt > 0 && row.LastGasPrice.Valid {
		if base, ok := new(big.Int).SetString(row.LastGasPrice.String, 10); ok {
			bumped := w.retryCfg.GasPriceForAttempt(base.Int64(), row.RetryAttempt)
			gasBump = new(big.Int).Sub(big.NewInt(bumped), base)
		}
	}
	operatorGas := big.NewInt(0)
	if row.OperatorGas.Valid {
		operatorGas = big.NewInt(row.OperatorGas.Int64)
	}

	return w.client.BuildAndSignTx(ctx, "withdrawSubmit", gasBump, operatorGas,
		[4]byte(srcID), [32]byte(srcAccount), [32]byte(destAccount),
		common.Address(tokenAddr), amount, uint64(row.Nonce), uint8(row.SrcDecimals))
}

func (w *EVMWriter) handleFailure(ctx context.Context, row *store.Approval, submitErr error) {
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
		// NonceTooLow: an equivalent transaction already landed. If we
		// know its hash, hand the row to the confirmation tracker;
		// otherwise retry shortly — the on-chain guard makes a true
		// double-submit revert permanently.
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
		lastGas := ""
		if decision.GasBump {
			if price, err := w.client.SuggestGasTipCap(ctx); err == nil {
				lastGas = price.String()
			}
		}
		if err := w.queue.RecordRetry(ctx, row.TransferID, submitErr.Error(),
			time.Now().Add(decision.After), lastGas); err != nil {
			w.logger.Printf("record retry: %v", err)
		}
		w.recordSubmission("retry")
		w.logger.Printf("transfer %x attempt %d failed (%s), next in %s: %v",
			row.TransferID, row.RetryAttempt, class, decision.After, submitErr)
	}
}

func (w *EVMWriter) recordSubmission(status string) {
	if w.metrics != nil {
		w.metrics.ApprovalsSubmittedTotal.WithLabelValues(w.storeChain, status).Inc()
	}
}

func (w *EVMWriter) recordError(errType string) {
	if w.metrics != nil {
		w.metrics.ErrorsTotal.WithLabelValues(w.storeChain, errType).Inc()
	}
}
