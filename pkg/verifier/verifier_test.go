package verifier

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/cl8y/bridge-relay/pkg/hashcodec"
)

var (
	srcKey  = hashcodec.EVMChainKey(56)
	destKey = hashcodec.TerraChainKey()
)

type fakeDest struct {
	states    map[hashcodec.Hash]ApprovalState
	cancelled []hashcodec.Hash
	cancelErr error
	readErr   error
}

func (d *fakeDest) Name() string                 { return "fake-dest" }
func (d *fakeDest) ChainKey() hashcodec.Hash     { return destKey }
func (d *fakeDest) CancelWindow(ctx context.Context) (time.Duration, error) {
	return time.Hour, nil
}

func (d *fakeDest) PendingWithdraw(ctx context.Context, transferID hashcodec.Hash) (ApprovalState, error) {
	if d.readErr != nil {
		return ApprovalState{}, d.readErr
	}
	return d.states[transferID], nil
}

func (d *fakeDest) Cancel(ctx context.Context, transferID hashcodec.Hash) (string, error) {
	if d.cancelErr != nil {
		return "", d.cancelErr
	}
	d.cancelled = append(d.cancelled, transferID)
	return "0xcancel", nil
}

type fakeSource struct {
	exists  bool
	matches bool
	err     error
}

func (s *fakeSource) Name() string             { return "fake-src" }
func (s *fakeSource) ChainKey() hashcodec.Hash { return srcKey }
func (s *fakeSource) DepositMatches(ctx context.Context, transferID hashcodec.Hash, amount *big.Int, nonce uint64) (bool, bool, error) {
	return s.exists, s.matches, s.err
}

// genuineState builds an ApprovalState whose transfer id re-derives
// correctly, returning both.
func genuineState(nonce uint64) (hashcodec.Hash, ApprovalState) {
	var token, destAccount hashcodec.Hash
	token[31] = 0x03
	destAccount[31] = 0x04
	amount := big.NewInt(1_000_000)
	amountU128, _ := hashcodec.AmountU128FromBigInt(amount)
	id := hashcodec.TransferID(srcKey, destKey, token, destAccount, amountU128, nonce)
	return id, ApprovalState{
		Exists:      true,
		SrcChain:    hashcodec.ChainIDFromUint32(1),
		Token:       token,
		DestAccount: destAccount,
		Amount:      amount,
		Nonce:       nonce,
		Approved:    true,
		ApprovedAt:  time.Now(),
	}
}

func newTestVerifier(t *testing.T, dest *fakeDest, src SourceChain) *Verifier {
	t.Helper()
	v, err := New(context.Background(), Config{
		Dest:    dest,
		Sources: map[uint32]SourceChain{1: src},
		Logger:  log.New(os.Stderr, "[test] ", 0),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return v
}

func TestVerifierAcceptsGenuineApproval(t *testing.T) {
	id, state := genuineState(7)
	dest := &fakeDest{states: map[hashcodec.Hash]ApprovalState{id: state}}
	v := newTestVerifier(t, dest, &fakeSource{exists: true, matches: true})

	v.HandleApproval(context.Background(), id)

	if len(dest.cancelled) != 0 {
		t.Fatal("genuine approval must not be cancelled")
	}
	if !v.decided.Contains(id) {
		t.Fatal("genuine approval must be cached as decided")
	}
}

func TestVerifierCancelsWhenDepositMissing(t *testing.T) {
	id, state := genuineState(8)
	dest := &fakeDest{states: map[hashcodec.Hash]ApprovalState{id: state}}
	v := newTestVerifier(t, dest, &fakeSource{exists: false})

	v.HandleApproval(context.Background(), id)

	if len(dest.cancelled) != 1 || dest.cancelled[0] != id {
		t.Fatalf("expected exactly one cancel for %s, got %v", id.Hex(), dest.cancelled)
	}
	if !v.decided.Contains(id) {
		t.Fatal("cancelled approval must be cached as decided")
	}
}

func TestVerifierCancelsOnHashMismatch(t *testing.T) {
	_, state := genuineState(9)
	var bogus hashcodec.Hash
	bogus[0] = 0xff
	dest := &fakeDest{states: map[hashcodec.Hash]ApprovalState{bogus: state}}
	// the source says the deposit is fine — the hash mismatch alone
	// must trigger the cancel, before any source query matters
	v := newTestVerifier(t, dest, &fakeSource{exists: true, matches: true})

	v.HandleApproval(context.Background(), bogus)

	if len(dest.cancelled) != 1 {
		t.Fatalf("expected a cancel on hash mismatch, got %v", dest.cancelled)
	}
}

func TestVerifierCancelsOnParameterMismatch(t *testing.T) {
	id, state := genuineState(10)
	dest := &fakeDest{states: map[hashcodec.Hash]ApprovalState{id: state}}
	v := newTestVerifier(t, dest, &fakeSource{exists: true, matches: false})

	v.HandleApproval(context.Background(), id)

	if len(dest.cancelled) != 1 {
		t.Fatalf("expected a cancel on parameter mismatch, got %v", dest.cancelled)
	}
}

func TestVerifierDefersOnSourceError(t *testing.T) {
	id, state := genuineState(11)
	dest := &fakeDest{states: map[hashcodec.Hash]ApprovalState{id: state}}
	src := &fakeSource{err: fmt.Errorf("connection refused")}
	v := newTestVerifier(t, dest, src)

	v.HandleApproval(context.Background(), id)

	if len(dest.cancelled) != 0 {
		t.Fatal("unreachable source must not trigger a cancel")
	}
	if v.PendingCount() != 1 {
		t.Fatalf("expected 1 pending retry, got %d", v.PendingCount())
	}

	// the source recovers; draining the retry map resolves the approval
	src.err = nil
	src.exists, src.matches = true, true
	v.DrainPending(context.Background())
	if v.PendingCount() != 0 {
		t.Fatalf("expected drained retry map, got %d", v.PendingCount())
	}
	if !v.decided.Contains(id) {
		t.Fatal("recovered approval must be decided")
	}
}

func TestVerifierSkipsAlreadyCancelled(t *testing.T) {
	id, state := genuineState(12)
	state.Cancelled = true
	dest := &fakeDest{states: map[hashcodec.Hash]ApprovalState{id: state}}
	v := newTestVerifier(t, dest, &fakeSource{})

	v.HandleApproval(context.Background(), id)

	if len(dest.cancelled) != 0 {
		t.Fatal("an already-cancelled approval needs no second cancel")
	}
	if !v.decided.Contains(id) {
		t.Fatal("settled approval must be cached as decided")
	}
}

func TestVerifierMissedDeadlineDoesNotCancel(t *testing.T) {
	id, state := genuineState(13)
	state.ApprovedAt = time.Now().Add(-2 * time.Hour) // window was 1h
	dest := &fakeDest{states: map[hashcodec.Hash]ApprovalState{id: state}}
	v := newTestVerifier(t, dest, &fakeSource{exists: false})

	v.HandleApproval(context.Background(), id)

	if len(dest.cancelled) != 0 {
		t.Fatal("a cancel after the window closes must not be submitted")
	}
	if !v.decided.Contains(id) {
		t.Fatal("missed-deadline approval must still settle as decided")
	}
}

func TestVerifierPermanentCancelErrorSettles(t *testing.T) {
	id, state := genuineState(14)
	dest := &fakeDest{
		states:    map[hashcodec.Hash]ApprovalState{id: state},
		cancelErr: fmt.Errorf("execute wasm contract failed: already cancelled"),
	}
	v := newTestVerifier(t, dest, &fakeSource{exists: false})

	v.HandleApproval(context.Background(), id)

	if v.PendingCount() != 0 {
		t.Fatal("a permanently rejected cancel must not be retried")
	}
	if !v.decided.Contains(id) {
		t.Fatal("permanently rejected cancel must settle as decided")
	}
}

func TestVerifierGivesUpAfterMaxAttempts(t *testing.T) {
	id, state := genuineState(15)
	dest := &fakeDest{states: map[hashcodec.Hash]ApprovalState{id: state}}
	src := &fakeSource{err: fmt.Errorf("timeout")}
	v := newTestVerifier(t, dest, src)

	v.HandleApproval(context.Background(), id)
	for i := 0; i < 10; i++ {
		v.DrainPending(context.Background())
	}

	if v.PendingCount() != 0 {
		t.Fatalf("retry map should be empty after exhaustion, got %d", v.PendingCount())
	}
	if !v.decided.Contains(id) {
		t.Fatal("exhausted approval must settle as decided to stop the loop")
	}
}
