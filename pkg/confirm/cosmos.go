// Copyright 2025 Certen Protocol
package confirm

import (
	"context"

	"github.com/cl8y/bridge-relay/pkg/cosmoschain"
)

// CosmosChecker asks the Terra Classic LCD whether a sync-broadcast
// transaction actually committed. Tendermint finality is instant, so a
// committed transaction with code 0 is confirmed outright — there is no
// waiting-for-depth state on this side.
type CosmosChecker struct {
	client *cosmoschain.Client
}

// NewCosmosChecker builds a checker over the given client.
func NewCosmosChecker(client *cosmoschain.Client) *CosmosChecker {
	return &CosmosChecker{client: client}
}

// CheckTx implements TxChecker.
func (c *CosmosChecker) CheckTx(ctx context.Context, txHash string) (Outcome, error) {
	status, err := c.client.GetTx(ctx, txHash)
	if err != nil {
		return Outcome{}, err
	}
	if !status.Found {
		return Outcome{State: StatePending}, nil
	}
	if status.Code != 0 {
		return Outcome{State: StateFailed, Reason: status.RawLog}, nil
	}
	return Outcome{State: StateConfirmed}, nil
}
