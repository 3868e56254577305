package confirm

import (
	"context"
	"database/sql"
	"testing"

	"github.com/cl8y/bridge-relay/pkg/store"
)

type fakeChecker struct {
	outcomes map[string]Outcome
}

func (f *fakeChecker) CheckTx(ctx context.Context, txHash string) (Outcome, error) {
	return f.outcomes[txHash], nil
}

type fakeQueue struct {
	rows      []*store.Approval
	confirmed [][]byte
	failed    map[string]string
	reorged   [][]byte
}

func (f *fakeQueue) ListSubmitted(ctx context.Context, destChain string, limit int) ([]*store.Approval, error) {
	return f.rows, nil
}

func (f *fakeQueue) MarkConfirmed(ctx context.Context, transferID []byte) error {
	f.confirmed = append(f.confirmed, transferID)
	return nil
}

func (f *fakeQueue) MarkFailed(ctx context.Context, transferID []byte, reason string) error {
	if f.failed == nil {
		f.failed = make(map[string]string)
	}
	f.failed[string(transferID)] = reason
	return nil
}

func (f *fakeQueue) MarkReorged(ctx context.Context, transferID []byte) error {
	f.reorged = append(f.reorged, transferID)
	return nil
}

func submittedRow(id byte, txHash string) *store.Approval {
	return &store.Approval{
		TransferID: []byte{id},
		Status:     store.ApprovalSubmitted,
		TxHash:     sql.NullString{String: txHash, Valid: true},
	}
}

func TestTrackerOutcomes(t *testing.T) {
	queue := &fakeQueue{rows: []*store.Approval{
		submittedRow(1, "0xconfirmed"),
		submittedRow(2, "0xfailed"),
		submittedRow(3, "0xreorged"),
		submittedRow(4, "0xpending"),
		submittedRow(5, "0xwaiting"),
	}}
	checker := &fakeChecker{outcomes: map[string]Outcome{
		"0xconfirmed": {State: StateConfirmed},
		"0xfailed":    {State: StateFailed, Reason: "execution reverted"},
		"0xreorged":   {State: StateReorged},
		"0xpending":   {State: StatePending},
		"0xwaiting":   {State: StateWaiting, Remaining: 3},
	}}

	tracker, err := NewTracker(TrackerConfig{StoreChain: "test", Queue: queue, Checker: checker})
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	tracker.pollOnce(context.Background())

	if len(queue.confirmed) != 1 || queue.confirmed[0][0] != 1 {
		t.Fatalf("expected exactly row 1 confirmed, got %v", queue.confirmed)
	}
	if reason := queue.failed[string([]byte{2})]; reason != "execution reverted" {
		t.Fatalf("expected row 2 failed with revert reason, got %q", reason)
	}
	if len(queue.reorged) != 1 || queue.reorged[0][0] != 3 {
		t.Fatalf("expected exactly row 3 reorged, got %v", queue.reorged)
	}
}

func TestTrackerSkipsRowsWithoutTxHash(t *testing.T) {
	queue := &fakeQueue{rows: []*store.Approval{
		{TransferID: []byte{9}, Status: store.ApprovalSubmitted},
	}}
	checker := &fakeChecker{outcomes: map[string]Outcome{}}
	tracker, err := NewTracker(TrackerConfig{StoreChain: "test", Queue: queue, Checker: checker})
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	tracker.pollOnce(context.Background())
	if len(queue.confirmed) != 0 || len(queue.reorged) != 0 || len(queue.failed) != 0 {
		t.Fatal("row without a tx hash must not transition")
	}
}
