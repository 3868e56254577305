package writer

import (
	"testing"

	"github.com/cl8y/bridge-relay/pkg/hashcodec"
)

func TestParseTokenRefEVMAddress(t *testing.T) {
	got, err := ParseTokenRef("0x00000000000000000000000000000000000000ab")
	if err != nil {
		t.Fatalf("ParseTokenRef: %v", err)
	}
	var want hashcodec.Hash
	want[31] = 0xab
	if got != want {
		t.Fatalf("ParseTokenRef(addr) = %s, want %s", got.Hex(), want.Hex())
	}
}

func TestParseTokenRef32ByteHex(t *testing.T) {
	raw := "0x1111111111111111111111111111111111111111111111111111111111111111"
	got, err := ParseTokenRef(raw)
	if err != nil {
		t.Fatalf("ParseTokenRef: %v", err)
	}
	if got.Hex() != raw {
		t.Fatalf("ParseTokenRef(hex32) = %s, want %s", got.Hex(), raw)
	}
}

func TestParseTokenRefNativeDenom(t *testing.T) {
	got, err := ParseTokenRef("uluna")
	if err != nil {
		t.Fatalf("ParseTokenRef: %v", err)
	}
	want, _ := hashcodec.EncodeNativeDenom("uluna")
	if got != want {
		t.Fatalf("ParseTokenRef(uluna) = %s, want keccak of the denom %s", got.Hex(), want.Hex())
	}
}

func TestParseTokenRefRejectsEmpty(t *testing.T) {
	if _, err := ParseTokenRef(""); err == nil {
		t.Fatal("expected an error for an empty token ref")
	}
}

func TestStaticTokenMapResolve(t *testing.T) {
	var src, dst hashcodec.Hash
	src[31] = 1
	dst[31] = 2
	m := NewStaticTokenMap([]TokenMapping{{
		SrcChain: "chain-a", SrcToken: src, DestChainID: 7, DestToken: dst,
		SrcDecimals: 6, DestDecimals: 18,
	}})

	got, ok := m.Resolve("chain-a", src, 7)
	if !ok {
		t.Fatal("expected mapping to resolve")
	}
	if got.DestToken != dst || got.SrcDecimals != 6 || got.DestDecimals != 18 {
		t.Fatalf("unexpected mapping: %+v", got)
	}

	if _, ok := m.Resolve("chain-a", src, 8); ok {
		t.Fatal("mapping must be destination-specific")
	}
	if _, ok := m.Resolve("chain-b", src, 7); ok {
		t.Fatal("mapping must be source-chain-specific")
	}
}
