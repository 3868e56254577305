package store

import "errors"

var (
	// ErrNotFound names a requested row that does not exist.
	// GetByTransferID reports that case as sql.ErrNoRows, not as this
	// sentinel.
	ErrNotFound = errors.New("entity not found")

	// ErrConflict names a unique-constraint conflict (e.g. transfer_id, or
	// (chain, tx_hash, log_index)). Insert and Upsert resolve such a
	// conflict with ON CONFLICT DO NOTHING and do not return it.
	ErrConflict = errors.New("conflicting row already exists")
)
