// Copyright 2025 Certen Protocol
package verifier

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/cl8y/bridge-relay/pkg/cosmoschain"
	"github.com/cl8y/bridge-relay/pkg/evmchain"
	"github.com/cl8y/bridge-relay/pkg/hashcodec"
)

// EVMDestination adapts an EVM bridge deployment to the
// DestinationChain interface.
type EVMDestination struct {
	Client *evmchain.Client
}

// Name implements DestinationChain.
func (d *EVMDestination) Name() string { return d.Client.ChainName() }

// ChainKey implements DestinationChain.
func (d *EVMDestination) ChainKey() hashcodec.Hash { return d.Client.ChainKey() }

// PendingWithdraw implements DestinationChain.
func (d *EVMDestination) PendingWithdraw(ctx context.Context, transferID hashcodec.Hash) (ApprovalState, error) {
	pw, err := d.Client.GetPendingWithdraw(ctx, transferID)
	if err != nil {
		return ApprovalState{}, err
	}
	return ApprovalState{
		Exists:      pw.Exists,
		SrcChain:    hashcodec.ChainID(pw.SrcChain),
		Token:       pw.Token,
		DestAccount: pw.DestAccount,
		Amount:      pw.Amount,
		Nonce:       pw.Nonce,
		Approved:    pw.Approved,
		Cancelled:   pw.Cancelled,
		Executed:    pw.Executed,
		ApprovedAt:  time.Unix(int64(pw.ApprovedAt), 0),
	}, nil
}

// Cancel implements DestinationChain by submitting withdrawCancel.
func (d *EVMDestination) Cancel(ctx context.Context, transferID hashcodec.Hash) (string, error) {
	signed, err := d.Client.BuildAndSignTx(ctx, "withdrawCancel", nil, nil, [32]byte(transferID))
	if err != nil {
		return "", err
	}
	if err := d.Client.SendTransaction(ctx, signed); err != nil {
		return "", err
	}
	return signed.Hash().Hex(), nil
}

// CancelWindow implements DestinationChain.
func (d *EVMDestination) CancelWindow(ctx context.Context) (time.Duration, error) {
	seconds, err := d.Client.GetCancelWindow(ctx)
	if err != nil {
		return 0, err
	}
	return time.Duration(seconds) * time.Second, nil
}

// TerraDestination adapts the Terra Classic bridge contract to the
// DestinationChain interface.
type TerraDestination struct {
	Client *cosmoschain.Client
}

// Name implements DestinationChain.
func (d *TerraDestination) Name() string { return d.Client.ChainName() }

// ChainKey implements DestinationChain.
func (d *TerraDestination) ChainKey() hashcodec.Hash { return d.Client.ChainKey() }

// PendingWithdraw implements DestinationChain.
func (d *TerraDestination) PendingWithdraw(ctx context.Context, transferID hashcodec.Hash) (ApprovalState, error) {
	pw, err := d.Client.PendingWithdraw(ctx, transferID)
	if err != nil {
		return ApprovalState{}, err
	}
	state := ApprovalState{
		Exists:     pw.Exists,
		Nonce:      uint64(pw.Nonce),
		Approved:   pw.Approved,
		Cancelled:  pw.Cancelled,
		Executed:   pw.Executed,
		ApprovedAt: time.Unix(int64(pw.ApprovedAt), 0),
	}
	if !pw.Exists {
		return state, nil
	}
	if len(pw.SrcChain) != 4 || len(pw.Token) != 32 || len(pw.DestAccount) != 32 {
		return ApprovalState{}, fmt.Errorf("verifier: malformed pending_withdraw field lengths from %s", d.Name())
	}
	copy(state.SrcChain[:], pw.SrcChain)
	copy(state.Token[:], pw.Token)
	copy(state.DestAccount[:], pw.DestAccount)
	amount, ok := new(big.Int).SetString(pw.Amount, 10)
	if !ok {
		return ApprovalState{}, fmt.Errorf("verifier: invalid amount %q from %s", pw.Amount, d.Name())
	}
	state.Amount = amount
	return state, nil
}

// Cancel implements DestinationChain by executing withdraw_cancel.
func (d *TerraDestination) Cancel(ctx context.Context, transferID hashcodec.Hash) (string, error) {
	result, err := d.Client.ExecuteAndBroadcast(ctx, cosmoschain.WithdrawCancelMsg(transferID))
	if err != nil {
		return "", err
	}
	return result.TxHash, nil
}

// CancelWindow implements DestinationChain.
func (d *TerraDestination) CancelWindow(ctx context.Context) (time.Duration, error) {
	seconds, err := d.Client.GetCancelWindow(ctx)
	if err != nil {
		return 0, err
	}
	return time.Duration(seconds) * time.Second, nil
}

// EVMSource adapts an EVM bridge deployment to the SourceChain
// interface, checking the deposits() view.
type EVMSource struct {
	Client *evmchain.Client
}

// Name implements SourceChain.
func (s *EVMSource) Name() string { return s.Client.ChainName() }

// ChainKey implements SourceChain.
func (s *EVMSource) ChainKey() hashcodec.Hash { return s.Client.ChainKey() }

// DepositMatches implements SourceChain.
func (s *EVMSource) DepositMatches(ctx context.Context, transferID hashcodec.Hash, amount *big.Int, nonce uint64) (bool, bool, error) {
	exists, _, depAmount, depNonce, err := s.Client.DepositExists(ctx, transferID)
	if err != nil {
		return false, false, err
	}
	if !exists {
		return false, false, nil
	}
	matches := depAmount != nil && depAmount.Cmp(amount) == 0 && depNonce == nonce
	return true, matches, nil
}

// TerraSource adapts the Terra Classic bridge contract to the
// SourceChain interface via its verify_deposit smart query.
type TerraSource struct {
	Client *cosmoschain.Client
}

// Name implements SourceChain.
func (s *TerraSource) Name() string { return s.Client.ChainName() }

// ChainKey implements SourceChain.
func (s *TerraSource) ChainKey() hashcodec.Hash { return s.Client.ChainKey() }

// DepositMatches implements SourceChain.
func (s *TerraSource) DepositMatches(ctx context.Context, transferID hashcodec.Hash, amount *big.Int, nonce uint64) (bool, bool, error) {
	result, err := s.Client.VerifyDeposit(ctx, transferID, amount.String(), nonce)
	if err != nil {
		return false, false, err
	}
	return result.Exists, result.Exists && result.Matches, nil
}
