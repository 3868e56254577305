// Copyright 2025 Certen Protocol
package confirm

import (
	"context"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/cl8y/bridge-relay/pkg/evmchain"
)

// EVMChecker asks an EVM chain for receipts and applies the
// confirmation-depth rule. It remembers which transactions have already
// shown a receipt, so a receipt that later vanishes is reported as a
// reorg rather than as still-pending.
type EVMChecker struct {
	client        *evmchain.Client
	confirmations uint64

	mu   sync.Mutex
	seen map[string]uint64 // txHash -> block the receipt was first seen in
}

// NewEVMChecker builds a checker requiring the given confirmation depth.
func NewEVMChecker(client *evmchain.Client, confirmations uint64) *EVMChecker {
	return &EVMChecker{
		client:        client,
		confirmations: confirmations,
		seen:          make(map[string]uint64),
	}
}

// CheckTx implements TxChecker.
func (c *EVMChecker) CheckTx(ctx context.Context, txHash string) (Outcome, error) {
	receipt, err := c.client.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		if isNotFound(err) {
			return c.noReceipt(txHash), nil
		}
		return Outcome{}, err
	}
	if receipt == nil {
		return c.noReceipt(txHash), nil
	}

	block := receipt.BlockNumber.Uint64()
	c.mu.Lock()
	c.seen[txHash] = block
	c.mu.Unlock()

	if receipt.Status != types.ReceiptStatusSuccessful {
		c.forget(txHash)
		return Outcome{State: StateFailed, Reason: "execution reverted"}, nil
	}

	head, err := c.client.BlockNumber(ctx)
	if err != nil {
		return Outcome{}, err
	}
	if head < block+c.confirmations {
		return Outcome{State: StateWaiting, Remaining: int(block + c.confirmations - head)}, nil
	}
	c.forget(txHash)
	return Outcome{State: StateConfirmed}, nil
}

// noReceipt distinguishes "never seen" (still in the mempool) from
// "seen, then gone" (the containing block was reorganized away).
func (c *EVMChecker) noReceipt(txHash string) Outcome {
	c.mu.Lock()
	_, wasSeen := c.seen[txHash]
	delete(c.seen, txHash)
	c.mu.Unlock()
	if wasSeen {
		return Outcome{State: StateReorged}
	}
	return Outcome{State: StatePending}
}

func (c *EVMChecker) forget(txHash string) {
	c.mu.Lock()
	delete(c.seen, txHash)
	c.mu.Unlock()
}

func isNotFound(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "not found")
}
