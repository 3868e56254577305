package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// DepositStatus tracks a source-chain deposit from observation through
// hand-off to the writer pipeline.
type DepositStatus string

const (
	DepositObserved DepositStatus = "observed"
	DepositProcessed DepositStatus = "processed"
)

// Deposit is a durable row for a source-chain Deposit event, unique by
// (chain, tx_hash, log_index).
type Deposit struct {
	ID          uuid.UUID
	Chain       string // source chain key, hex-encoded
	SrcChain    string
	DestChain   string
	SrcAccount  []byte // 32-byte universal address
	DestAccount []byte
	Token       []byte
	Amount      []byte // 16-byte big-endian u128
	Nonce       uint64
	Fee         []byte
	BlockNumber uint64
	TxHash      string
	LogIndex    uint32
	Status      DepositStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ApprovalStatus is an Approval/Release row's lifecycle state. Once a row
// reaches a terminal state it MUST NOT move to a non-terminal one.
type ApprovalStatus string

const (
	ApprovalPending   ApprovalStatus = "pending"
	ApprovalSubmitted ApprovalStatus = "submitted"
	ApprovalConfirmed ApprovalStatus = "confirmed"
	ApprovalFailed    ApprovalStatus = "failed"
	ApprovalCancelled ApprovalStatus = "cancelled"
	ApprovalReorged   ApprovalStatus = "reorged"
	ApprovalDead      ApprovalStatus = "dead"
)

// Terminal reports whether status is one this row can never leave.
func (s ApprovalStatus) Terminal() bool {
	switch s {
	case ApprovalConfirmed, ApprovalCancelled, ApprovalFailed, ApprovalDead:
		return true
	default:
		return false
	}
}

// Approval is a destination-chain PendingWithdraw row, unique by
// transfer_id. Releases (the EVM->Cosmos mirror) share this exact shape
// and live in a parallel table for directional symmetry.
type Approval struct {
	TransferID    []byte // 32 bytes
	SrcChain      string
	DestChain     string
	SrcAccount    []byte
	DestAccount   []byte
	Token         []byte
	Amount        []byte
	Nonce         uint64
	SrcDecimals   int
	DestDecimals  int
	OperatorGas   sql.NullInt64
	SubmittedAt   sql.NullTime
	ApprovedAt    sql.NullTime
	Approved      bool
	Cancelled     bool
	Executed      bool
	TxHash        sql.NullString
	RetryAttempt  int
	RetryLastErr  sql.NullString
	NextAttemptAt sql.NullTime
	LastGasPrice  sql.NullString
	Status        ApprovalStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Executable reports whether the row is in the unique "ready to execute"
// state: approved, neither cancelled nor executed, and past its cancel
// window.
func (a *Approval) Executable(now time.Time, cancelWindow time.Duration) bool {
	if !a.Approved || a.Cancelled || a.Executed {
		return false
	}
	if !a.ApprovedAt.Valid {
		return false
	}
	return !now.Before(a.ApprovedAt.Time.Add(cancelWindow))
}

// ChainCursor tracks the last durably-processed block height per chain.
// lastProcessedHeight is monotonic non-decreasing: it only advances after
// that block's events have been successfully persisted.
type ChainCursor struct {
	Chain               string
	LastProcessedHeight uint64
	UpdatedAt           time.Time
}
