// Copyright 2025 Certen Protocol
//
// Package relayerrors defines the sentinel errors shared across the
// Operator and Canceler, so callers can use errors.Is instead of string
// matching for the handful of conditions the system treats specially.
package relayerrors

import "errors"

var (
	// ErrInvalidEncoding is returned by hashcodec functions on malformed
	// input (non-zero address padding, wrong-length address bytes, hex or
	// chain id, empty denom).
	ErrInvalidEncoding = errors.New("invalid encoding")

	// ErrHashMismatch means a row's stored transferId does not match the
	// id re-derived from its own fields — a poison input, per the error
	// taxonomy. The row is moved to dead immediately.
	ErrHashMismatch = errors.New("transfer id hash mismatch")

	// ErrAmountOverflow means an observed amount exceeded the u128 range
	// the on-chain contract guarantees. The deposit watchers clamp the
	// value, log and count the condition, and still persist the row; the
	// verifier treats an approval with an overflowing amount as invalid.
	ErrAmountOverflow = errors.New("amount exceeds u128 range")

	// ErrUnknownSourceChain means a verifier could not match an approval's
	// srcChain against any registered chain; treated as Pending, not
	// Invalid.
	ErrUnknownSourceChain = errors.New("unknown source chain")
)
