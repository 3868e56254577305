package hashcodec

import (
	"encoding/binary"
	"math/big"
)

// AmountU128 holds a 128-bit unsigned amount in big-endian byte order,
// matching the on-chain contract's u128 transfer amount field. It is the
// hashed representation used by TransferID; arbitrary-precision values are
// converted into it (and, if they overflow, clamped) before hashing.
type AmountU128 [16]byte

// MaxAmountU128 is the saturation ceiling: 2^128 - 1.
var MaxAmountU128 = AmountU128{
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

func (a AmountU128) putBigEndian(dst []byte) {
	// dst is 32 bytes; the u128 occupies its last 16.
	copy(dst[16:], a[:])
	for i := 0; i < 16; i++ {
		dst[i] = 0
	}
}

// AmountU128FromUint64 builds an AmountU128 from a native uint64.
func AmountU128FromUint64(v uint64) AmountU128 {
	var a AmountU128
	binary.BigEndian.PutUint64(a[8:], v)
	return a
}

// AmountU128FromBigInt converts an arbitrary-precision non-negative integer
// into an AmountU128. Per the resolved overflow policy (see DESIGN.md), a
// value exceeding 2^128-1 is clamped to MaxAmountU128 rather than rejected;
// the caller is responsible for surfacing the `overflowed` flag as a metric
// and a warning log line — this function only reports the fact.
func AmountU128FromBigInt(v *big.Int) (amount AmountU128, overflowed bool) {
	if v.Sign() < 0 {
		return AmountU128{}, true
	}
	maxU128 := new(big.Int).Lsh(big.NewInt(1), 128)
	maxU128.Sub(maxU128, big.NewInt(1))
	if v.Cmp(maxU128) > 0 {
		return MaxAmountU128, true
	}
	b := v.Bytes()
	var a AmountU128
	copy(a[16-len(b):], b)
	return a, false
}

// BigInt returns the value as a *big.Int.
func (a AmountU128) BigInt() *big.Int {
	return new(big.Int).SetBytes(a[:])
}
