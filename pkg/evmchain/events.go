// Copyright 2025 Certen Protocol
package evmchain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/cl8y/bridge-relay/pkg/hashcodec"
)

// Event signature topics, computed from the ABI's canonical signatures
// rather than sha256 placeholders: a watcher that hashes the wrong way
// silently never matches a single log.
var (
	depositTopic         = crypto.Keccak256Hash([]byte("Deposit(bytes4,bytes32,bytes32,address,uint256,uint64,uint256)"))
	withdrawSubmitTopic  = crypto.Keccak256Hash([]byte("WithdrawSubmit(bytes32,bytes4,address,uint256,uint64,uint256)"))
	withdrawApproveTopic = crypto.Keccak256Hash([]byte("WithdrawApprove(bytes32)"))
	withdrawCancelTopic  = crypto.Keccak256Hash([]byte("WithdrawCancel(bytes32,address)"))
	withdrawExecuteTopic = crypto.Keccak256Hash([]byte("WithdrawExecute(bytes32,address,uint256)"))
)

// DepositEvent is a decoded on-chain Deposit log: a user locked or
// burned funds on this chain, destined for destChain.
type DepositEvent struct {
	TxHash      common.Hash
	LogIndex    uint32
	BlockNumber uint64
	DestChain   [4]byte
	DestAccount hashcodec.Hash
	SrcAccount  hashcodec.Hash
	Token       common.Address
	Amount      *big.Int
	Nonce       uint64
	Fee         *big.Int
}

// WithdrawApproveEvent is a decoded WithdrawApprove log: the Canceler's
// watch window has begun for this transfer.
type WithdrawApproveEvent struct {
	TxHash      common.Hash
	LogIndex    uint32
	BlockNumber uint64
	TransferID  hashcodec.Hash
}

// WithdrawCancelEvent is a decoded WithdrawCancel log.
type WithdrawCancelEvent struct {
	TxHash      common.Hash
	LogIndex    uint32
	BlockNumber uint64
	TransferID  hashcodec.Hash
	Canceler    common.Address
}

// WithdrawExecuteEvent is a decoded WithdrawExecute log: funds were
// finally released or minted to the recipient.
type WithdrawExecuteEvent struct {
	TxHash      common.Hash
	LogIndex    uint32
	BlockNumber uint64
	TransferID  hashcodec.Hash
	Recipient   common.Address
	Amount      *big.Int
}

// DepositFilterQuery builds the FilterQuery for Deposit logs emitted by
// the bridge contract in [fromBlock, toBlock].
func (c *Client) DepositFilterQuery(fromBlock, toBlock uint64) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{c.bridgeAddr},
		Topics:    [][]common.Hash{{depositTopic}},
	}
}

// WithdrawApproveFilterQuery builds the FilterQuery for WithdrawApprove
// logs, which the Canceler's verifier watches to know when a transfer's
// cancel window starts.
func (c *Client) WithdrawApproveFilterQuery(fromBlock, toBlock uint64) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{c.bridgeAddr},
		Topics:    [][]common.Hash{{withdrawApproveTopic}},
	}
}

// DecodeDeposit unpacks a raw log known to carry the Deposit topic.
func DecodeDeposit(l types.Log) (DepositEvent, error) {
	if len(l.Topics) != 3 {
		return DepositEvent{}, fmt.Errorf("evmchain: Deposit log has %d topics, want 3", len(l.Topics))
	}
	var unpacked struct {
		SrcAccount [32]byte
		Token      common.Address
		Amount     *big.Int
		Nonce      uint64
		Fee        *big.Int
	}
	if err := bridgeABI.UnpackIntoInterface(&unpacked, "Deposit", l.Data); err != nil {
		return DepositEvent{}, fmt.Errorf("evmchain: unpack Deposit data: %w", err)
	}

	var destChain [4]byte
	copy(destChain[:], l.Topics[1].Bytes()[:4])

	return DepositEvent{
		TxHash:      l.TxHash,
		LogIndex:    uint32(l.Index),
		BlockNumber: l.BlockNumber,
		DestChain:   destChain,
		DestAccount: hashcodec.Hash(l.Topics[2]),
		SrcAccount:  unpacked.SrcAccount,
		Token:       unpacked.Token,
		Amount:      unpacked.Amount,
		Nonce:       unpacked.Nonce,
		Fee:         unpacked.Fee,
	}, nil
}

// DecodeWithdrawApprove unpacks a raw log known to carry the
// WithdrawApprove topic.
func DecodeWithdrawApprove(l types.Log) (WithdrawApproveEvent, error) {
	if len(l.Topics) != 2 {
		return WithdrawApproveEvent{}, fmt.Errorf("evmchain: WithdrawApprove log has %d topics, want 2", len(l.Topics))
	}
	return WithdrawApproveEvent{
		TxHash:      l.TxHash,
		LogIndex:    uint32(l.Index),
		BlockNumber: l.BlockNumber,
		TransferID:  hashcodec.Hash(l.Topics[1]),
	}, nil
}

// DecodeWithdrawCancel unpacks a raw log known to carry the
// WithdrawCancel topic.
func DecodeWithdrawCancel(l types.Log) (WithdrawCancelEvent, error) {
	if len(l.Topics) != 2 {
		return WithdrawCancelEvent{}, fmt.Errorf("evmchain: WithdrawCancel log has %d topics, want 2", len(l.Topics))
	}
	var unpacked struct {
		Canceler common.Address
	}
	if err := bridgeABI.UnpackIntoInterface(&unpacked, "WithdrawCancel", l.Data); err != nil {
		return WithdrawCancelEvent{}, fmt.Errorf("evmchain: unpack WithdrawCancel data: %w", err)
	}
	return WithdrawCancelEvent{
		TxHash:      l.TxHash,
		LogIndex:    uint32(l.Index),
		BlockNumber: l.BlockNumber,
		TransferID:  hashcodec.Hash(l.Topics[1]),
		Canceler:    unpacked.Canceler,
	}, nil
}

// DecodeWithdrawExecute unpacks a raw log known to carry the
// WithdrawExecute topic.
func DecodeWithdrawExecute(l types.Log) (WithdrawExecuteEvent, error) {
	if len(l.Topics) != 2 {
		return WithdrawExecuteEvent{}, fmt.Errorf("evmchain: WithdrawExecute log has %d topics, want 2", len(l.Topics))
	}
	var unpacked struct {
		Recipient common.Address
		Amount    *big.Int
	}
	if err := bridgeABI.UnpackIntoInterface(&unpacked, "WithdrawExecute", l.Data); err != nil {
		return WithdrawExecuteEvent{}, fmt.Errorf("evmchain: unpack WithdrawExecute data: %w", err)
	}
	return WithdrawExecuteEvent{
		TxHash:      l.TxHash,
		LogIndex:    uint32(l.Index),
		BlockNumber: l.BlockNumber,
		TransferID:  hashcodec.Hash(l.Topics[1]),
		Recipient:   unpacked.Recipient,
		Amount:      unpacked.Amount,
	}, nil
}

// DepositExists checks the source-chain deposits() view for a given
// transferId, used by the Canceler's verifier to confirm a withdrawal's
// claimed deposit actually exists on the source chain.
func (c *Client) DepositExists(ctx context.Context, transferID hashcodec.Hash) (exists bool, srcAccount hashcodec.Hash, amount *big.Int, nonce uint64, err error) {
	var out struct {
		SrcChain   [4]byte
		DestChain  [4]byte
		Token      [32]byte
		SrcAccount [32]byte
		Amount     *big.Int
		Nonce      uint64
		Exists     bool
	}
	data, err := bridgeABI.Pack("deposits", [32]byte(transferID))
	if err != nil {
		return false, hashcodec.Hash{}, nil, 0, fmt.Errorf("evmchain: pack deposits call: %w", err)
	}
	raw, err := c.callContract(ctx, data)
	if err != nil {
		return false, hashcodec.Hash{}, nil, 0, err
	}
	if err := bridgeABI.UnpackIntoInterface(&out, "deposits", raw); err != nil {
		return false, hashcodec.Hash{}, nil, 0, fmt.Errorf("evmchain: unpack deposits result: %w", err)
	}
	return out.Exists, hashcodec.Hash(out.SrcAccount), out.Amount, out.Nonce, nil
}

// GetCancelWindow reads the contract's configured cancel-window duration
// in seconds.
func (c *Client) GetCancelWindow(ctx context.Context) (uint64, error) {
	data, err := bridgeABI.Pack("getCancelWindow")
	if err != nil {
		return 0, fmt.Errorf("evmchain: pack getCancelWindow call: %w", err)
	}
	raw, err := c.callContract(ctx, data)
	if err != nil {
		return 0, err
	}
	var window *big.Int
	if err := bridgeABI.UnpackIntoInterface(&window, "getCancelWindow", raw); err != nil {
		return 0, fmt.Errorf("evmchain: unpack getCancelWindow result: %w", err)
	}
	return window.Uint64(), nil
}

func (c *Client) callContract(ctx context.Context, data []byte) ([]byte, error) {
	msg := ethereum.CallMsg{To: &c.bridgeAddr, Data: data}
	return withReadFallback(c, ctx, func(cl *ethclient.Client) ([]byte, error) {
		return cl.CallContract(ctx, msg, nil)
	})
}
