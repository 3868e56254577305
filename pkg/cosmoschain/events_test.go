package cosmoschain

import (
	"encoding/base64"
	"testing"
)

type attr = struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func b64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

func TestDecodeDepositAttributes(t *testing.T) {
	destChain := []byte{0, 0, 0, 2}
	destAccount := make([]byte, 32)
	destAccount[31] = 4
	srcAccount := make([]byte, 32)
	srcAccount[31] = 5
	token := make([]byte, 32)
	token[31] = 3
	amount := []byte{0x0f, 0x42, 0x40} // 1_000_000

	ev, err := decodeDepositAttributes([]attr{
		{Key: "dest_chain", Value: b64(destChain)},
		{Key: "dest_account", Value: b64(destAccount)},
		{Key: "src_account", Value: b64(srcAccount)},
		{Key: "token", Value: b64(token)},
		{Key: "amount", Value: b64(amount)},
		{Key: "nonce", Value: "42"},
		{Key: "fee", Value: b64([]byte{1})},
	})
	if err != nil {
		t.Fatalf("decodeDepositAttributes: %v", err)
	}
	if ev.DestChain != [4]byte{0, 0, 0, 2} {
		t.Fatalf("dest chain = %x", ev.DestChain)
	}
	if ev.DestAccount[31] != 4 || ev.SrcAccount[31] != 5 || ev.Token[31] != 3 {
		t.Fatalf("account/token fields decoded wrong: %+v", ev)
	}
	if ev.Nonce != 42 {
		t.Fatalf("nonce = %d", ev.Nonce)
	}
	if len(ev.Amount) != 3 || ev.Amount[0] != 0x0f {
		t.Fatalf("amount = %x", ev.Amount)
	}
}

func TestDecodeDepositAttributesRejectsShortHash(t *testing.T) {
	if _, err := decodeDepositAttributes([]attr{
		{Key: "dest_account", Value: b64([]byte{1, 2, 3})},
	}); err == nil {
		t.Fatal("expected an error for a truncated dest_account")
	}
}
