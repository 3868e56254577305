// Copyright 2025 Certen Protocol
//
// Package verifier implements the Canceler's fraud-detection loop: every
// withdrawal approval observed on a destination chain is re-derived and
// checked against a matching source-chain deposit, and any approval that
// fails verification is cancelled on-chain strictly before its cancel
// window closes. The verifier holds no database state — its memory is a
// pair of bounded caches plus the chains themselves, so a crash simply
// re-verifies whatever is still inside the cancel window.
package verifier

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/cl8y/bridge-relay/pkg/cache"
	"github.com/cl8y/bridge-relay/pkg/hashcodec"
	"github.com/cl8y/bridge-relay/pkg/metrics"
	"github.com/cl8y/bridge-relay/pkg/relayerrors"
	"github.com/cl8y/bridge-relay/pkg/retry"
)

// ApprovalState is a destination chain's view of one pending withdrawal:
// the parameters the transfer id must re-derive from, plus lifecycle
// flags.
type ApprovalState struct {
	Exists      bool
	SrcChain    hashcodec.ChainID
	Token       hashcodec.Hash
	DestAccount hashcodec.Hash
	Amount      *big.Int
	Nonce       uint64
	Approved    bool
	Cancelled   bool
	Executed    bool
	ApprovedAt  time.Time
}

// DestinationChain is the chain whose approvals this verifier shadows.
type DestinationChain interface {
	Name() string
	ChainKey() hashcodec.Hash
	PendingWithdraw(ctx context.Context, transferID hashcodec.Hash) (ApprovalState, error)
	Cancel(ctx context.Context, transferID hashcodec.Hash) (txHash string, err error)
	CancelWindow(ctx context.Context) (time.Duration, error)
}

// SourceChain answers whether a claimed deposit really happened.
type SourceChain interface {
	Name() string
	ChainKey() hashcodec.Hash
	DepositMatches(ctx context.Context, transferID hashcodec.Hash, amount *big.Int, nonce uint64) (exists, matches bool, err error)
}

// pendingItem is one approval awaiting re-verification, held in the
// bounded retry map. The uuid correlates log lines for a single
// verification across its retries.
type pendingItem struct {
	ID         uuid.UUID
	TransferID hashcodec.Hash
	FirstSeen  time.Time
	Attempts   int
}

// Verifier verifies approvals for one destination chain against every
// registered source chain. It is owned by a single watcher task; the
// caches are not shared.
type Verifier struct {
	dest         DestinationChain
	sources      map[uint32]SourceChain // keyed by 4-byte registry chain id
	decided      *cache.BoundedHashCache
	pending      *cache.BoundedMapCache[pendingItem]
	cancelWindow time.Duration
	maxAttempts  int
	logger       *log.Logger
	metrics      *metrics.Registry
	now          func() time.Time
}

// Config configures a Verifier.
type Config struct {
	Dest            DestinationChain
	Sources         map[uint32]SourceChain
	DecidedSize     int
	DecidedTTL      time.Duration
	PendingSize     int
	PendingTTL      time.Duration
	CancelWindow    time.Duration // discovered from the chain when zero
	RetryMaxAttempts int
	Logger          *log.Logger
	Metrics         *metrics.Registry
}

// New builds a Verifier, reading the cancel window from the destination
// chain when the config leaves it unset.
func New(ctx context.Context, cfg Config) (*Verifier, error) {
	if cfg.Dest == nil {
		return nil, fmt.Errorf("verifier: destination chain is required")
	}
	if len(cfg.Sources) == 0 {
		return nil, fmt.Errorf("verifier: at least one source chain is required")
	}
	decidedSize := cfg.DecidedSize
	if decidedSize == 0 {
		decidedSize = 100_000
	}
	decidedTTL := cfg.DecidedTTL
	if decidedTTL == 0 {
		decidedTTL = 24 * time.Hour
	}
	pendingSize := cfg.PendingSize
	if pendingSize == 0 {
		pendingSize = 10_000
	}
	pendingTTL := cfg.PendingTTL
	if pendingTTL == 0 {
		pendingTTL = time.Hour
	}
	maxAttempts := cfg.RetryMaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 5
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.Writer(), fmt.Sprintf("[Verifier:%s] ", cfg.Dest.Name()), log.LstdFlags)
	}

	cancelWindow := cfg.CancelWindow
	if cancelWindow == 0 {
		window, err := cfg.Dest.CancelWindow(ctx)
		if err != nil {
			return nil, fmt.Errorf("verifier: read cancel window from %s: %w", cfg.Dest.Name(), err)
		}
		cancelWindow = window
		logger.Printf("cancel window discovered from chain: %s", cancelWindow)
	}

	return &Verifier{
		dest:         cfg.Dest,
		sources:      cfg.Sources,
		decided:      cache.NewBoundedHashCache(decidedSize, decidedTTL),
		pending:      cache.NewBoundedMapCache[pendingItem](pendingSize, pendingTTL),
		cancelWindow: cancelWindow,
		maxAttempts:  maxAttempts,
		logger:       logger,
		metrics:      cfg.Metrics,
		now:          time.Now,
	}, nil
}

// DrainPending re-verifies every approval in the bounded retry map. The
// owning watcher calls this at the start of each poll cycle, before
// accepting new approvals, so a recovered RPC clears the backlog first.
func (v *Verifier) DrainPending(ctx context.Context) {
	for _, item := range v.pending.TakeAll() {
		v.verify(ctx, item)
	}
}

// HandleApproval is the entry point for a freshly observed approval
// event.
func (v *Verifier) HandleApproval(ctx context.Context, transferID hashcodec.Hash) {
	v.verify(ctx, pendingItem{
		ID:         uuid.New(),
		TransferID: transferID,
		FirstSeen:  v.now(),
	})
}

// PendingCount reports the retry map's depth, for /status.
func (v *Verifier) PendingCount() int { return v.pending.Len() }

// DecidedCount reports the decided cache's depth, for /status.
func (v *Verifier) DecidedCount() int { return v.decided.Len() }

func (v *Verifier) verify(ctx context.Context, item pendingItem) {
	if v.decided.Contains(item.TransferID) {
		return
	}

	state, err := v.dest.PendingWithdraw(ctx, item.TransferID)
	if err != nil {
		v.requeue(item, fmt.Sprintf("destination read failed: %v", err))
		return
	}
	if !state.Exists {
		// the event is ahead of the queried node's state; retry
		v.requeue(item, "approval not yet queryable")
		return
	}
	if state.Cancelled || state.Executed {
		v.decided.Insert(item.TransferID)
		return
	}

	src, ok := v.sources[state.SrcChain.Uint32()]
	if !ok {
		v.requeue(item, fmt.Sprintf("%v: %s", relayerrors.ErrUnknownSourceChain, state.SrcChain.Hex()))
		return
	}

	amount, overflow := hashcodec.AmountU128FromBigInt(state.Amount)
	if overflow {
		v.invalid(ctx, item, state, relayerrors.ErrAmountOverflow.Error())
		return
	}
	derived := hashcodec.TransferID(src.ChainKey(), v.dest.ChainKey(), state.Token, state.DestAccount, amount, state.Nonce)
	if derived != item.TransferID {
		v.invalid(ctx, item, state, "hash-mismatch")
		return
	}

	exists, matches, err := src.DepositMatches(ctx, item.TransferID, state.Amount, state.Nonce)
	if err != nil {
		v.requeue(item, fmt.Sprintf("source read failed: %v", err))
		return
	}
	if !exists {
		v.invalid(ctx, item, state, "no matching deposit on source chain")
		return
	}
	if !matches {
		v.invalid(ctx, item, state, "deposit parameters do not match")
		return
	}

	v.decided.Insert(item.TransferID)
	if v.metrics != nil {
		v.metrics.CancelerApprovalsVerifiedValidTotal.Inc()
	}
	v.logger.Printf("[%s] approval %s verified valid", item.ID, item.TransferID.Hex())
}

// invalid submits the cancellation immediately — never batched — and
// marks the approval decided once the cancel transaction has been
// submitted, once the chain rejects it permanently, or once the deadline
// has irrevocably passed. The cancel transaction's receipt is not read.
func (v *Verifier) invalid(ctx context.Context, item pendingItem, state ApprovalState, reason string) {
	if v.metrics != nil {
		v.metrics.CancelerApprovalsVerifiedInvalidTotal.Inc()
	}
	v.logger.Printf("[%s] approval %s INVALID (%s), cancelling", item.ID, item.TransferID.Hex(), reason)

	deadline := state.ApprovedAt.Add(v.cancelWindow)
	if !v.now().Before(deadline) {
		v.logger.Printf("[%s] ALERT: cancel window for %s closed at %s, cannot cancel", item.ID, item.TransferID.Hex(), deadline)
		v.recordError("cancel-deadline-missed")
		v.decided.Insert(item.TransferID)
		return
	}

	txHash, err := v.dest.Cancel(ctx, item.TransferID)
	if err != nil {
		class := retry.ClassifyError(err.Error())
		if class == retry.Permanent {
			// "already cancelled" and kin: the chain has settled it
			v.logger.Printf("[%s] cancel for %s rejected permanently: %v", item.ID, item.TransferID.Hex(), err)
			v.decided.Insert(item.TransferID)
			return
		}
		v.requeue(item, fmt.Sprintf("cancel submission failed: %v", err))
		return
	}

	v.decided.Insert(item.TransferID)
	if v.metrics != nil {
		v.metrics.CancelerApprovalsCancelledTotal.Inc()
	}
	v.logger.Printf("[%s] cancelled approval %s: %s", item.ID, item.TransferID.Hex(), txHash)
}

// requeue places an approval into the bounded retry map for the next
// cycle, dropping it with an alert once attempts are exhausted.
func (v *Verifier) requeue(item pendingItem, reason string) {
	item.Attempts++
	if item.Attempts > v.maxAttempts {
		v.logger.Printf("[%s] ALERT: giving up on %s after %d attempts: %s", item.ID, item.TransferID.Hex(), item.Attempts-1, reason)
		v.recordError("verify-attempts-exhausted")
		v.decided.Insert(item.TransferID)
		return
	}
	v.logger.Printf("[%s] approval %s pending (attempt %d): %s", item.ID, item.TransferID.Hex(), item.Attempts, reason)
	v.pending.Insert(item.TransferID, item)
}

func (v *Verifier) recordError(errType string) {
	if v.metrics != nil {
		v.metrics.ErrorsTotal.WithLabelValues(v.dest.Name(), errType).Inc()
	}
}
