package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repositories bundles every repository the Operator needs,
// constructed once from a shared Client.
type Repositories struct {
	Deposits      *DepositRepository // evm_deposits
	TerraDeposits *DepositRepository // terra_deposits
	Approvals     *ApprovalRepository
	Releases      *ApprovalRepository
	Cursors       *CursorRepository
}

// NewRepositories builds all repositories sharing the given client. The
// Releases repository is a second ApprovalRepository instance pointed at
// the parallel "releases" table, since the row shape and query patterns
// are identical to "approvals" — only the table name differs. The same
// trick serves the two deposit tables.
func NewRepositories(client *Client) *Repositories {
	return &Repositories{
		Deposits:      &DepositRepository{db: client.db, table: "evm_deposits"},
		TerraDeposits: &DepositRepository{db: client.db, table: "terra_deposits"},
		Approvals:     &ApprovalRepository{db: client.db, table: "approvals"},
		Releases:      &ApprovalRepository{db: client.db, table: "releases"},
		Cursors:       &CursorRepository{db: client.db},
	}
}

// DepositRepository persists observed source-chain deposits, in either
// the evm_deposits or terra_deposits table.
type DepositRepository struct {
	db    *sql.DB
	table string
}

// Upsert inserts a deposit or, if one already exists for
// (chain, tx_hash, log_index), does nothing — watchers may safely
// re-observe the same block range after a restart.
func (r *DepositRepository) Upsert(ctx context.Context, d *Deposit) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (
			id, chain, src_chain, dest_chain, src_account, dest_account,
			token, amount, nonce, fee, block_number, tx_hash, log_index, status
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (chain, tx_hash, log_index) DO NOTHING
	`, r.table)
	_, err := r.db.ExecContext(ctx, query, d.ID, d.Chain, d.SrcChain, d.DestChain, d.SrcAccount, d.DestAccount,
		d.Token, d.Amount, d.Nonce, d.Fee, d.BlockNumber, d.TxHash, d.LogIndex, DepositObserved)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", r.table, err)
	}
	return nil
}

// MarkProcessed flags a deposit as having had its Approval/Release row
// enqueued, so the watcher never double-submits it.
func (r *DepositRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	query := fmt.Sprintf(`UPDATE %s SET status = $2, updated_at = now() WHERE id = $1`, r.table)
	_, err := r.db.ExecContext(ctx, query, id, DepositProcessed)
	return err
}

// ListUnprocessed returns observed-but-not-yet-enqueued deposits in a
// stable order (by id) so retry selection is deterministic.
func (r *DepositRepository) ListUnprocessed(ctx context.Context, chain string, limit int) ([]*Deposit, error) {
	query := fmt.Sprintf(`
		SELECT id, chain, src_chain, dest_chain, src_account, dest_account,
		       token, amount, nonce, fee, block_number, tx_hash, log_index,
		       status, created_at, updated_at
		FROM %s
		WHERE chain = $1 AND status = $2
		ORDER BY id
		LIMIT $3
	`, r.table)
	rows, err := r.db.QueryContext(ctx, query, chain, DepositObserved, limit)
	if err != nil {
		return nil, fmt.Errorf("list unprocessed %s: %w", r.table, err)
	}
	defer rows.Close()

	var out []*Deposit
	for rows.Next() {
		d := &Deposit{}
		if err := rows.Scan(&d.ID, &d.Chain, &d.SrcChain, &d.DestChain, &d.SrcAccount, &d.DestAccount,
			&d.Token, &d.Amount, &d.Nonce, &d.Fee, &d.BlockNumber, &d.TxHash, &d.LogIndex,
			&d.Status, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// CountUnprocessed reports the pending-deposit queue depth for a chain.
func (r *DepositRepository) CountUnprocessed(ctx context.Context, chain string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE chain = $1 AND status = $2`, r.table)
	var n int
	err := r.db.QueryRowContext(ctx, query, chain, DepositObserved).Scan(&n)
	return n, err
}

// CountUnprocessedAll reports the table-wide pending-deposit depth, for
// /status.
func (r *DepositRepository) CountUnprocessedAll(ctx context.Context) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE status = $1`, r.table)
	var n int
	err := r.db.QueryRowContext(ctx, query, DepositObserved).Scan(&n)
	return n, err
}

// approvalColumns is the canonical column list every Approval query
// selects, so Scan call sites can never drift out of order.
const approvalColumns = `transfer_id, src_chain, dest_chain, src_account, dest_account, token, amount,
	nonce, src_decimals, dest_decimals, operator_gas, submitted_at,
	approved_at, approved, cancelled, executed, tx_hash, retry_attempt,
	retry_last_error, next_attempt_at, last_gas_price, status,
	created_at, updated_at`

func scanApproval(rows interface{ Scan(...interface{}) error }) (*Approval, error) {
	a := &Approval{}
	err := rows.Scan(&a.TransferID, &a.SrcChain, &a.DestChain, &a.SrcAccount, &a.DestAccount, &a.Token, &a.Amount,
		&a.Nonce, &a.SrcDecimals, &a.DestDecimals, &a.OperatorGas, &a.SubmittedAt,
		&a.ApprovedAt, &a.Approved, &a.Cancelled, &a.Executed, &a.TxHash, &a.RetryAttempt,
		&a.RetryLastErr, &a.NextAttemptAt, &a.LastGasPrice, &a.Status,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ApprovalRepository persists destination-chain Approval/Release rows.
// The struct is parameterized by table name so the same implementation
// serves both the "approvals" and "releases" tables, which share a
// schema by design (§ Release is the EVM->Cosmos mirror of Approval).
type ApprovalRepository struct {
	db    *sql.DB
	table string
}

// Insert creates a new pending row. A conflicting transfer_id is
// silently ignored: the enqueuer may replay a deposit after a crash, and
// one Approval row per transferId per destination is the invariant.
func (r *ApprovalRepository) Insert(ctx context.Context, a *Approval) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (
			transfer_id, src_chain, dest_chain, src_account, dest_account, token, amount,
			nonce, src_decimals, dest_decimals, status
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (transfer_id) DO NOTHING
	`, r.table)
	_, err := r.db.ExecContext(ctx, query,
		a.TransferID, a.SrcChain, a.DestChain, a.SrcAccount, a.DestAccount, a.Token, a.Amount,
		a.Nonce, a.SrcDecimals, a.DestDecimals, ApprovalPending)
	if err != nil {
		return fmt.Errorf("insert %s: %w", r.table, err)
	}
	return nil
}

// GetByTransferID fetches a row, returning sql.ErrNoRows if absent.
func (r *ApprovalRepository) GetByTransferID(ctx context.Context, transferID []byte) (*Approval, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE transfer_id = $1`, approvalColumns, r.table)
	return scanApproval(r.db.QueryRowContext(ctx, query, transferID))
}

func (r *ApprovalRepository) queryList(ctx context.Context, query string, args ...interface{}) ([]*Approval, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", r.table, err)
	}
	defer rows.Close()

	var out []*Approval
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListPendingForWriter returns destChain's rows ready for the writer to
// attempt, retry-ready first, in a stable order so retry selection is
// deterministic.
func (r *ApprovalRepository) ListPendingForWriter(ctx context.Context, destChain string, limit int) ([]*Approval, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE dest_chain = $1 AND status = $2
		  AND (next_attempt_at IS NULL OR next_attempt_at <= now())
		ORDER BY next_attempt_at NULLS FIRST, transfer_id
		LIMIT $3
	`, approvalColumns, r.table)
	return r.queryList(ctx, query, destChain, ApprovalPending, limit)
}

// ListSubmitted returns destChain's rows awaiting a receipt, for the
// confirmation tracker.
func (r *ApprovalRepository) ListSubmitted(ctx context.Context, destChain string, limit int) ([]*Approval, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE dest_chain = $1 AND status = $2
		ORDER BY submitted_at NULLS FIRST, transfer_id
		LIMIT $3
	`, approvalColumns, r.table)
	return r.queryList(ctx, query, destChain, ApprovalSubmitted, limit)
}

// ListExecutable returns destChain's approved-but-not-yet-executed rows
// whose cancel window has elapsed.
func (r *ApprovalRepository) ListExecutable(ctx context.Context, destChain string, cancelWindow time.Duration, limit int) ([]*Approval, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE dest_chain = $1 AND approved AND NOT cancelled AND NOT executed
		  AND approved_at IS NOT NULL AND approved_at + make_interval(secs => $2) <= now()
		ORDER BY approved_at
		LIMIT $3
	`, approvalColumns, r.table)
	return r.queryList(ctx, query, destChain, cancelWindow.Seconds(), limit)
}

// ListNonTerminal returns every row still in flight, newest last, for
// the /pending endpoint.
func (r *ApprovalRepository) ListNonTerminal(ctx context.Context, limit int) ([]*Approval, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE status IN ($1, $2, $3)
		ORDER BY created_at
		LIMIT $4
	`, approvalColumns, r.table)
	return r.queryList(ctx, query, ApprovalPending, ApprovalSubmitted, ApprovalReorged, limit)
}

// MarkSubmitted records a just-sent transaction hash and advances status.
// The guard against terminal states enforces the no-terminal-regression
// invariant at the database layer too.
func (r *ApprovalRepository) MarkSubmitted(ctx context.Context, transferID []byte, txHash string) error {
	query := fmt.Sprintf(`
		UPDATE %s SET status = $2, tx_hash = $3, submitted_at = now(), updated_at = now()
		WHERE transfer_id = $1 AND status NOT IN ($4,$5,$6,$7)
	`, r.table)
	_, err := r.db.ExecContext(ctx, query, transferID, ApprovalSubmitted, txHash,
		ApprovalConfirmed, ApprovalCancelled, ApprovalFailed, ApprovalDead)
	return err
}

// MarkConfirmed transitions a submitted row to confirmed, setting
// approved so it becomes eligible for execution once its cancel window
// elapses.
func (r *ApprovalRepository) MarkConfirmed(ctx context.Context, transferID []byte) error {
	query := fmt.Sprintf(`
		UPDATE %s SET status = $2, approved = true, approved_at = now(), updated_at = now()
		WHERE transfer_id = $1
	`, r.table)
	_, err := r.db.ExecContext(ctx, query, transferID, ApprovalConfirmed)
	return err
}

// MarkFailed records a reverted receipt, a terminal state.
func (r *ApprovalRepository) MarkFailed(ctx context.Context, transferID []byte, reason string) error {
	query := fmt.Sprintf(`
		UPDATE %s SET status = $2, retry_last_error = $3, updated_at = now() WHERE transfer_id = $1
	`, r.table)
	_, err := r.db.ExecContext(ctx, query, transferID, ApprovalFailed, reason)
	return err
}

// MarkExecuted flags a row as having had its withdrawExecute transaction
// confirmed.
func (r *ApprovalRepository) MarkExecuted(ctx context.Context, transferID []byte) error {
	query := fmt.Sprintf(`UPDATE %s SET executed = true, updated_at = now() WHERE transfer_id = $1`, r.table)
	_, err := r.db.ExecContext(ctx, query, transferID)
	return err
}

// MarkCancelled flags a row as cancelled, a terminal state reachable from
// any non-terminal status.
func (r *ApprovalRepository) MarkCancelled(ctx context.Context, transferID []byte) error {
	query := fmt.Sprintf(`
		UPDATE %s SET status = $2, cancelled = true, updated_at = now() WHERE transfer_id = $1
	`, r.table)
	_, err := r.db.ExecContext(ctx, query, transferID, ApprovalCancelled)
	return err
}

// MarkReorged moves a submitted-but-not-yet-final row back to pending
// after its transaction's block was reorged out, clearing the stale
// tx hash so the writer submits afresh.
func (r *ApprovalRepository) MarkReorged(ctx context.Context, transferID []byte) error {
	query := fmt.Sprintf(`
		UPDATE %s SET status = $2, tx_hash = NULL, submitted_at = NULL, updated_at = now()
		WHERE transfer_id = $1
	`, r.table)
	_, err := r.db.ExecContext(ctx, query, transferID, ApprovalPending)
	return err
}

// RecordRetry bumps the retry counter, records the failure, schedules
// the next attempt, and returns the row to pending so the writer's
// selection query picks it up once next_attempt_at passes.
func (r *ApprovalRepository) RecordRetry(ctx context.Context, transferID []byte, lastErr string, nextAttempt time.Time, lastGasPrice string) error {
	query := fmt.Sprintf(`
		UPDATE %s SET status = $5, retry_attempt = retry_attempt + 1, retry_last_error = $2,
		              next_attempt_at = $3, last_gas_price = NULLIF($4, ''), updated_at = now()
		WHERE transfer_id = $1 AND status NOT IN ($6,$7,$8,$9)
	`, r.table)
	_, err := r.db.ExecContext(ctx, query, transferID, lastErr, nextAttempt, lastGasPrice, ApprovalPending,
		ApprovalConfirmed, ApprovalCancelled, ApprovalFailed, ApprovalDead)
	return err
}

// MarkDead stops retries on a row and records the terminal reason.
func (r *ApprovalRepository) MarkDead(ctx context.Context, transferID []byte, reason string) error {
	query := fmt.Sprintf(`
		UPDATE %s SET status = $2, retry_last_error = $3, updated_at = now() WHERE transfer_id = $1
	`, r.table)
	_, err := r.db.ExecContext(ctx, query, transferID, ApprovalDead, reason)
	return err
}

// ListDeadLetters implements the dead-letter view named in the schema
// contract: every row in a terminal failure state, for audit queries.
func (r *ApprovalRepository) ListDeadLetters(ctx context.Context, limit int) ([]*Approval, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s WHERE status IN ($1, $2)
		ORDER BY updated_at DESC
		LIMIT $3
	`, approvalColumns, r.table)
	return r.queryList(ctx, query, ApprovalDead, ApprovalFailed, limit)
}

// CountByStatus returns the number of rows in a given status, used for
// the /status endpoint's queue-depth counters.
func (r *ApprovalRepository) CountByStatus(ctx context.Context, status ApprovalStatus) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE status = $1`, r.table)
	var n int
	err := r.db.QueryRowContext(ctx, query, status).Scan(&n)
	return n, err
}

// CursorRepository tracks per-chain poll progress.
type CursorRepository struct {
	db *sql.DB
}

// Get returns the cursor for chain, or (0, false) if none exists yet.
func (r *CursorRepository) Get(ctx context.Context, chain string) (uint64, bool, error) {
	var height int64
	err := r.db.QueryRowContext(ctx,
		`SELECT last_processed_height FROM chain_cursors WHERE chain = $1`, chain).Scan(&height)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return uint64(height), true, nil
}

// Count returns how many chains have an advanced cursor, for /readyz.
func (r *CursorRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chain_cursors`).Scan(&n)
	return n, err
}

// Advance sets the cursor to height, but only if height is greater than
// the stored value — enforcing the monotonicity invariant at the
// database layer as well as in the caller.
func (r *CursorRepository) Advance(ctx context.Context, chain string, height uint64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO chain_cursors (chain, last_processed_height)
		VALUES ($1, $2)
		ON CONFLICT (chain) DO UPDATE
		SET last_processed_height = $2, updated_at = now()
		WHERE chain_cursors.last_processed_height < $2
	`, chain, height)
	if err != nil {
		return fmt.Errorf("advance cursor for %s: %w", chain, err)
	}
	return nil
}
