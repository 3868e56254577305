package cosmoschain

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/cl8y/bridge-relay/pkg/hashcodec"
)

func TestWithdrawApproveMsgShape(t *testing.T) {
	var h hashcodec.Hash
	h[31] = 0x42
	var decoded map[string]map[string]string
	if err := json.Unmarshal(WithdrawApproveMsg(h), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	inner, ok := decoded["withdraw_approve"]
	if !ok {
		t.Fatal("missing withdraw_approve key")
	}
	if inner["withdraw_hash"] != base64.StdEncoding.EncodeToString(h[:]) {
		t.Fatalf("withdraw_hash = %q, want base64 of the hash", inner["withdraw_hash"])
	}
}

func TestWithdrawCancelMsgShape(t *testing.T) {
	var h hashcodec.Hash
	h[0] = 0xff
	var decoded map[string]map[string]string
	if err := json.Unmarshal(WithdrawCancelMsg(h), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := decoded["withdraw_cancel"]; !ok {
		t.Fatal("missing withdraw_cancel key")
	}
}

func TestRegisterChainMsgShape(t *testing.T) {
	id := hashcodec.ChainIDFromUint32(56)
	var decoded map[string]map[string]string
	if err := json.Unmarshal(RegisterChainMsg("bsc", id), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	inner := decoded["register_chain"]
	if inner["identifier"] != "bsc" {
		t.Fatalf("identifier = %q", inner["identifier"])
	}
	raw, err := base64.StdEncoding.DecodeString(inner["chain_id"])
	if err != nil || len(raw) != 4 {
		t.Fatalf("chain_id should be base64 of 4 bytes, got %q", inner["chain_id"])
	}
}

func TestSetIncomingTokenMappingMsgShape(t *testing.T) {
	var token hashcodec.Hash
	token[31] = 9
	msg := SetIncomingTokenMappingMsg(hashcodec.ChainIDFromUint32(1), token, "uluna", 18)
	var decoded map[string]map[string]interface{}
	if err := json.Unmarshal(msg, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	inner := decoded["set_incoming_token_mapping"]
	if inner["local_token"] != "uluna" {
		t.Fatalf("local_token = %v", inner["local_token"])
	}
	if inner["src_decimals"].(float64) != 18 {
		t.Fatalf("src_decimals = %v", inner["src_decimals"])
	}
}

func TestFlexIntAcceptsBothForms(t *testing.T) {
	cases := []struct {
		raw  string
		want uint64
	}{
		{`"12345"`, 12345},
		{`12345`, 12345},
		{`"0"`, 0},
	}
	for _, tc := range cases {
		var f flexInt
		if err := json.Unmarshal([]byte(tc.raw), &f); err != nil {
			t.Fatalf("unmarshal %s: %v", tc.raw, err)
		}
		if uint64(f) != tc.want {
			t.Fatalf("flexInt(%s) = %d, want %d", tc.raw, f, tc.want)
		}
	}
	var f flexInt
	if err := json.Unmarshal([]byte(`"not-a-number"`), &f); err == nil {
		t.Fatal("expected an error for a non-numeric string")
	}
}

func TestB64BytesRoundTrip(t *testing.T) {
	payload := []byte{1, 2, 3, 4}
	raw, _ := json.Marshal(base64.StdEncoding.EncodeToString(payload))
	var b b64Bytes
	if err := json.Unmarshal(raw, &b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(b) != string(payload) {
		t.Fatalf("b64Bytes = %v, want %v", []byte(b), payload)
	}
}
