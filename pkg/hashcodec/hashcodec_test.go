package hashcodec

import (
	"math/big"
	"testing"
)

func TestKeccak256SanityVector(t *testing.T) {
	got := keccak256([]byte("hello"))
	want := "0x1c8aff950685c2ed4bc3174f3472287b56d9517b9c948127319a09a7a36deac8"
	if got.Hex() != want {
		t.Fatalf("keccak256(hello) = %s, want %s", got.Hex(), want)
	}
}

func TestEVMChainKeyBSC(t *testing.T) {
	got := EVMChainKey(56)
	want := "0xe2debc38147727fd4c36e012d1d8335aebec2bcb98c3b1aae5dde65ddcd74367"
	if got.Hex() != want {
		t.Fatalf("EVMChainKey(56) = %s, want %s", got.Hex(), want)
	}
}

func TestCosmosChainKeyColumbus5(t *testing.T) {
	got := CosmosChainKey("columbus-5")
	want := "0x0ece70814ff48c843659d2c2cfd2138d070b75d11f9fd81e424873e90a47d8b3"
	if got.Hex() != want {
		t.Fatalf("CosmosChainKey(columbus-5) = %s, want %s", got.Hex(), want)
	}
	if TerraChainKey() != got {
		t.Fatalf("TerraChainKey() should equal CosmosChainKey(columbus-5)")
	}
}

func TestTransferIDAllZeros(t *testing.T) {
	got := TransferID(Hash{}, Hash{}, Hash{}, Hash{}, AmountU128{}, 0)
	want := "0x1e990e27f0d7976bf2adbd60e20384da0125b76e2885a96aa707bcb054108b0d"
	if got.Hex() != want {
		t.Fatalf("TransferID(all zero) = %s, want %s", got.Hex(), want)
	}
}

func TestTransferIDSimpleValues(t *testing.T) {
	var srcChainKey, destChainKey, destToken, destAccount Hash
	srcChainKey[31] = 1
	destChainKey[31] = 2
	destToken[31] = 3
	destAccount[31] = 4

	oneE18 := new(big.Int)
	oneE18.SetString("1000000000000000000", 10)
	amount, overflowed := AmountU128FromBigInt(oneE18)
	if overflowed {
		t.Fatalf("1e18 should not overflow u128")
	}

	got := TransferID(srcChainKey, destChainKey, destToken, destAccount, amount, 42)
	want := "0x7226dd6b664f0c50fb3e50adfa82057dab4819f592ef9d35c08b9c4531b05150"
	if got.Hex() != want {
		t.Fatalf("TransferID(simple) = %s, want %s", got.Hex(), want)
	}
}

func TestTransferIDParameterSensitivity(t *testing.T) {
	base := TransferID(Hash{}, Hash{}, Hash{}, Hash{}, AmountU128{}, 0)

	var altSrc Hash
	altSrc[0] = 1
	if got := TransferID(altSrc, Hash{}, Hash{}, Hash{}, AmountU128{}, 0); got == base {
		t.Fatalf("changing srcChainKey did not change the transfer id")
	}

	if got := TransferID(Hash{}, Hash{}, Hash{}, Hash{}, AmountU128{}, 1); got == base {
		t.Fatalf("changing nonce did not change the transfer id")
	}

	amt := AmountU128FromUint64(1)
	if got := TransferID(Hash{}, Hash{}, Hash{}, Hash{}, amt, 0); got == base {
		t.Fatalf("changing amount did not change the transfer id")
	}
}

func TestEVMAddressRoundTrip(t *testing.T) {
	var addr [20]byte
	for i := range addr {
		addr[i] = byte(i + 1)
	}
	encoded := EncodeEVMAddress(addr)
	decoded, err := DecodeEVMAddress(encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded != addr {
		t.Fatalf("round trip mismatch: got %x, want %x", decoded, addr)
	}
}

func TestDecodeEVMAddressRejectsNonZeroPadding(t *testing.T) {
	var h Hash
	h[0] = 1
	if _, err := DecodeEVMAddress(h); err == nil {
		t.Fatalf("expected error for non-zero padding")
	}
}

func TestCosmosAddressRoundTrip(t *testing.T) {
	canonical := make([]byte, 20)
	for i := range canonical {
		canonical[i] = byte(20 - i)
	}
	encoded, err := EncodeCosmosAddress(canonical)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	decoded, err := DecodeCosmosAddress(encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(decoded) != string(canonical) {
		t.Fatalf("round trip mismatch")
	}
}

func TestEncodeNativeDenomRejectsEmpty(t *testing.T) {
	if _, err := EncodeNativeDenom(""); err == nil {
		t.Fatalf("expected error for empty denom")
	}
}

func TestAmountU128FromBigIntClampsOverflow(t *testing.T) {
	huge := new(big.Int)
	huge.SetBit(huge, 159, 1)
	amount, overflowed := AmountU128FromBigInt(huge)
	if !overflowed {
		t.Fatalf("expected overflow for a value exceeding 2^128-1")
	}
	if amount != MaxAmountU128 {
		t.Fatalf("expected clamp to MaxAmountU128, got %x", amount)
	}
}
