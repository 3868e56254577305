// Copyright 2025 Certen Protocol
//
// Package writer drains the durable queues the watchers fill: the
// Enqueuer turns observed deposits into approval/release rows with a
// canonically derived transfer id, the EVMWriter and TerraWriter submit
// those rows to their destination chains under retry and circuit-breaker
// policy, and the EVMExecutor releases funds once a confirmed approval's
// cancel window has elapsed.
package writer

import (
	"encoding/hex"
	"strings"

	"github.com/cl8y/bridge-relay/pkg/hashcodec"
)

// TokenMapping relates a source chain's token identifier to the token
// that represents it on a destination chain, along with both sides'
// decimals. The on-chain contracts hold the authoritative mapping
// (add_token / set_incoming_token_mapping); the operator carries a
// mirror in configuration so it can derive transfer ids without a
// contract round-trip per deposit.
type TokenMapping struct {
	SrcChain     string // source chain's store key (hex-encoded ChainKey)
	SrcToken     hashcodec.Hash
	DestChainID  uint32 // destination's 4-byte registry chain id
	DestToken    hashcodec.Hash
	SrcDecimals  uint8
	DestDecimals uint8
}

// TokenResolver answers "what does this source token become on that
// destination chain".
type TokenResolver interface {
	Resolve(srcChain string, srcToken hashcodec.Hash, destChainID uint32) (TokenMapping, bool)
}

type tokenKey struct {
	srcChain    string
	srcToken    hashcodec.Hash
	destChainID uint32
}

// StaticTokenMap is a TokenResolver backed by a fixed mapping list from
// configuration.
type StaticTokenMap struct {
	mappings map[tokenKey]TokenMapping
}

// NewStaticTokenMap indexes the given mappings for lookup.
func NewStaticTokenMap(mappings []TokenMapping) *StaticTokenMap {
	m := &StaticTokenMap{mappings: make(map[tokenKey]TokenMapping, len(mappings))}
	for _, tm := range mappings {
		m.mappings[tokenKey{tm.SrcChain, tm.SrcToken, tm.DestChainID}] = tm
	}
	return m
}

// Resolve implements TokenResolver.
func (m *StaticTokenMap) Resolve(srcChain string, srcToken hashcodec.Hash, destChainID uint32) (TokenMapping, bool) {
	tm, ok := m.mappings[tokenKey{srcChain, srcToken, destChainID}]
	return tm, ok
}

// Len reports how many mappings are loaded, for the startup banner.
func (m *StaticTokenMap) Len() int { return len(m.mappings) }

// ParseTokenRef resolves a configuration token reference into its
// universal 32-byte identifier: a 0x-prefixed 20-byte address is
// left-padded, a 32-byte hex string is taken verbatim, and anything
// else is treated as a Cosmos native denom and keccak-hashed.
func ParseTokenRef(ref string) (hashcodec.Hash, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(ref, "0x"), "0X")
	if len(trimmed) == 40 {
		if raw, err := hex.DecodeString(trimmed); err == nil {
			var addr [20]byte
			copy(addr[:], raw)
			return hashcodec.EncodeEVMAddress(addr), nil
		}
	}
	if len(trimmed) == 64 {
		if h, err := hashcodec.BytesToHash32(trimmed); err == nil {
			return h, nil
		}
	}
	return hashcodec.EncodeNativeDenom(ref)
}
