package evmchain

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

func TestEventTopicsMatchSignatures(t *testing.T) {
	cases := map[string]common.Hash{
		"Deposit(bytes4,bytes32,bytes32,address,uint256,uint64,uint256)": depositTopic,
		"WithdrawApprove(bytes32)":                                       withdrawApproveTopic,
		"WithdrawCancel(bytes32,address)":                                withdrawCancelTopic,
	}
	for sig, topic := range cases {
		if crypto.Keccak256Hash([]byte(sig)) != topic {
			t.Fatalf("topic for %s does not match its signature hash", sig)
		}
	}
	// the parsed ABI must agree with the hand-hashed signatures, or a
	// watcher built from one and a filter from the other never match
	if bridgeABI.Events["Deposit"].ID != depositTopic {
		t.Fatal("ABI Deposit event id disagrees with depositTopic")
	}
	if bridgeABI.Events["WithdrawApprove"].ID != withdrawApproveTopic {
		t.Fatal("ABI WithdrawApprove event id disagrees with withdrawApproveTopic")
	}
}

func TestDecodeWithdrawApprove(t *testing.T) {
	transferID := common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111")
	l := types.Log{
		Topics:      []common.Hash{withdrawApproveTopic, transferID},
		TxHash:      common.HexToHash("0x22"),
		Index:       3,
		BlockNumber: 100,
	}
	ev, err := DecodeWithdrawApprove(l)
	if err != nil {
		t.Fatalf("DecodeWithdrawApprove: %v", err)
	}
	if ev.TransferID != [32]byte(transferID) {
		t.Fatalf("transfer id = %x", ev.TransferID)
	}
	if ev.BlockNumber != 100 || ev.LogIndex != 3 {
		t.Fatalf("unexpected position fields: %+v", ev)
	}
}

func TestDecodeWithdrawApproveRejectsWrongTopicCount(t *testing.T) {
	if _, err := DecodeWithdrawApprove(types.Log{Topics: []common.Hash{withdrawApproveTopic}}); err == nil {
		t.Fatal("expected an error for a log without the indexed transfer id")
	}
}
