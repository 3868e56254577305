// Copyright 2025 Certen Protocol
//
// Package hashcodec implements the canonical cross-chain hashing and address
// encoding used to match deposits and withdrawal approvals without a trusted
// intermediary. Every function here is pure: no I/O, no allocation beyond the
// return value, and the same bytes in always produce the same bytes out.
package hashcodec

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/cl8y/bridge-relay/pkg/relayerrors"
)

// Hash is a 32-byte keccak256 digest, chain key, or universal address.
type Hash [32]byte

// ChainID is the 4-byte opaque identifier a registry contract assigns to a
// chain. It is never equal to a chain's native chain id; that only feeds
// ChainKey derivation.
type ChainID [4]byte

// InvalidEncodingError reports a malformed address, denom, or hex string
// passed to one of the codec functions.
type InvalidEncodingError struct {
	What   string
	Detail string
}

func (e *InvalidEncodingError) Error() string {
	return fmt.Sprintf("invalid encoding for %s: %s", e.What, e.Detail)
}

// Unwrap ties every codec failure to the shared sentinel, so callers
// match with errors.Is(err, relayerrors.ErrInvalidEncoding) rather than
// naming this concrete type.
func (e *InvalidEncodingError) Unwrap() error {
	return relayerrors.ErrInvalidEncoding
}

func keccak256(chunks ...[]byte) Hash {
	var h Hash
	copy(h[:], crypto.Keccak256(chunks...))
	return h
}

// leftPadWord writes v into a fresh 32-byte big-endian word, right-justified.
func leftPadWord(v []byte) []byte {
	word := make([]byte, 32)
	if len(v) > 32 {
		v = v[len(v)-32:]
	}
	copy(word[32-len(v):], v)
	return word
}

// abiEncodeString reproduces Solidity's abi.encode(string) layout: a 32-byte
// offset (always 0x20 for a lone dynamic argument), a 32-byte length, then
// the string bytes padded up to a 32-byte boundary.
func abiEncodeString(s string) []byte {
	data := []byte(s)
	padded := ((len(data) + 31) / 32) * 32
	out := make([]byte, 32+32+padded)
	out[31] = 0x20
	binary.BigEndian.PutUint64(out[56:64], uint64(len(data)))
	copy(out[64:], data)
	return out
}

// abiEncodeChainKey reproduces abi.encode(string chainType, bytes32 rawKey).
func abiEncodeChainKey(chainType string, rawKey Hash) []byte {
	typeBytes := []byte(chainType)
	padded := ((len(typeBytes) + 31) / 32) * 32
	out := make([]byte, 64+32+padded)
	out[31] = 0x40
	copy(out[32:64], rawKey[:])
	binary.BigEndian.PutUint64(out[88:96], uint64(len(typeBytes)))
	copy(out[96:], typeBytes)
	return out
}

// EVMChainKey computes keccak256(abi.encode("EVM", bytes32(nativeChainID))).
func EVMChainKey(nativeChainID uint64) Hash {
	var chainIDWord Hash
	binary.BigEndian.PutUint64(chainIDWord[24:], nativeChainID)

	data := make([]byte, 128)
	data[31] = 0x40 // offset to string data
	copy(data[32:64], chainIDWord[:])
	data[95] = 3 // len("EVM")
	copy(data[96:99], []byte("EVM"))

	return keccak256(data)
}

// CosmosChainKey computes
// keccak256(abi.encode("COSMW", keccak256(abi.encode(chainIDString)))).
func CosmosChainKey(chainID string) Hash {
	inner := keccak256(abiEncodeString(chainID))
	return keccak256(abiEncodeChainKey("COSMW", inner))
}

// TerraClassicChainID is the Cosmos chain-id string for Terra Classic
// mainnet (columbus-5).
const TerraClassicChainID = "columbus-5"

// TerraChainKey returns the ChainKey for Terra Classic mainnet.
func TerraChainKey() Hash {
	return CosmosChainKey(TerraClassicChainID)
}

// TransferID computes the canonical 32-byte transfer identifier. It hashes
// six 32-byte words — srcChainKey, destChainKey, destTokenAddress,
// destAccount, amount, nonce — matching the on-chain bridge contract's
// _computeTransferId exactly. srcAccount is intentionally NOT part of the
// hash; callers that need to display or audit it must carry it alongside
// the computed id, not fold it in.
func TransferID(srcChainKey, destChainKey, destTokenAddress, destAccount Hash, amount AmountU128, nonce uint64) Hash {
	var data [192]byte
	copy(data[0:32], srcChainKey[:])
	copy(data[32:64], destChainKey[:])
	copy(data[64:96], destTokenAddress[:])
	copy(data[96:128], destAccount[:])
	amount.putBigEndian(data[128:160])
	binary.BigEndian.PutUint64(data[184:192], nonce)
	return keccak256(data[:])
}

// EncodeEVMAddress left-pads a 20-byte EVM address into a 32-byte universal
// address.
func EncodeEVMAddress(addr [20]byte) Hash {
	var h Hash
	copy(h[12:], addr[:])
	return h
}

// DecodeEVMAddress extracts a 20-byte EVM address from a universal address,
// failing if the leading 12 bytes are not all zero (i.e. the value was never
// a left-padded 20-byte address).
func DecodeEVMAddress(h Hash) ([20]byte, error) {
	var addr [20]byte
	for _, b := range h[:12] {
		if b != 0 {
			return addr, &InvalidEncodingError{What: "evm address", Detail: "non-zero padding bytes"}
		}
	}
	copy(addr[:], h[12:])
	return addr, nil
}

// EncodeCosmosAddress left-pads a 20-byte bech32-decoded canonical address
// into a 32-byte universal address. Bech32 decoding itself lives in the
// cosmoschain package (it needs the HRP and a decoding library); this
// function takes the already-decoded bytes so the codec stays I/O-free and
// dependency-free.
func EncodeCosmosAddress(canonical []byte) (Hash, error) {
	if len(canonical) != 20 {
		return Hash{}, &InvalidEncodingError{What: "cosmos address", Detail: fmt.Sprintf("expected 20 bytes, got %d", len(canonical))}
	}
	var h Hash
	copy(h[12:], canonical)
	return h, nil
}

// DecodeCosmosAddress is the inverse of EncodeCosmosAddress: it returns the
// 20-byte canonical address embedded in a universal address.
func DecodeCosmosAddress(h Hash) ([]byte, error) {
	for _, b := range h[:12] {
		if b != 0 {
			return nil, &InvalidEncodingError{What: "cosmos address", Detail: "non-zero padding bytes"}
		}
	}
	out := make([]byte, 20)
	copy(out, h[12:])
	return out, nil
}

// EncodeNativeDenom encodes a Cosmos native denom string (e.g. "uluna") as
// keccak256(denomString), the convention used for tokens with no contract
// address.
func EncodeNativeDenom(denom string) (Hash, error) {
	if denom == "" {
		return Hash{}, &InvalidEncodingError{What: "native denom", Detail: "empty string"}
	}
	return keccak256([]byte(denom)), nil
}

// BytesToHash32 parses a 0x-prefixed or bare 64-character hex string into a
// Hash.
func BytesToHash32(hexStr string) (Hash, error) {
	hexStr = trimHexPrefix(hexStr)
	if len(hexStr) != 64 {
		return Hash{}, &InvalidEncodingError{What: "hex32", Detail: "expected 64 hex characters"}
	}
	decoded, err := hex.DecodeString(hexStr)
	if err != nil {
		return Hash{}, &InvalidEncodingError{What: "hex32", Detail: err.Error()}
	}
	var h Hash
	copy(h[:], decoded)
	return h, nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// Hex returns the 0x-prefixed lowercase hex encoding of a Hash.
func (h Hash) Hex() string {
	return fmt.Sprintf("0x%x", h[:])
}

// Bytes returns the hash as a fresh byte slice, for database columns and
// wire encodings that want []byte rather than [32]byte.
func (h Hash) Bytes() []byte {
	out := make([]byte, 32)
	copy(out, h[:])
	return out
}

// MustEncodeEVMAddress is EncodeEVMAddress for call sites that already
// hold a structurally valid 20-byte address (e.g. go-ethereum's
// common.Address) and so cannot fail.
func MustEncodeEVMAddress(addr [20]byte) Hash {
	return EncodeEVMAddress(addr)
}

// ChainIDFromHex parses an 8-hex-character (4-byte) registry chain id.
func ChainIDFromHex(hexStr string) (ChainID, error) {
	hexStr = trimHexPrefix(hexStr)
	if len(hexStr) != 8 {
		return ChainID{}, &InvalidEncodingError{What: "chain id", Detail: "expected 8 hex characters"}
	}
	decoded, err := hex.DecodeString(hexStr)
	if err != nil {
		return ChainID{}, &InvalidEncodingError{What: "chain id", Detail: err.Error()}
	}
	var id ChainID
	copy(id[:], decoded)
	return id, nil
}

// Hex returns the 0x-prefixed hex encoding of a ChainID.
func (id ChainID) Hex() string {
	return fmt.Sprintf("0x%x", id[:])
}

// ChainIDFromUint32 packs a uint32 into a big-endian 4-byte ChainID.
func ChainIDFromUint32(v uint32) ChainID {
	var id ChainID
	binary.BigEndian.PutUint32(id[:], v)
	return id
}

// Uint32 unpacks a ChainID's big-endian value.
func (id ChainID) Uint32() uint32 {
	return binary.BigEndian.Uint32(id[:])
}
