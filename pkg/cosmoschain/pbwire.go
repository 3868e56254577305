// Copyright 2025 Certen Protocol
//
// This file hand-encodes the handful of protobuf messages a SIGN_DIRECT
// Cosmos transaction needs (TxBody, AuthInfo, SignDoc, TxRaw, the
// MsgExecuteContract wasm message, Coin, and a secp256k1 PubKey Any).
// The message set is fixed and tiny, so each one is built field-by-field
// the same way pkg/hashcodec hand-encodes Solidity ABI words: a small
// set of varint and length-delimited writers, not a general-purpose
// protobuf encoder behind a codec registry.
package cosmoschain

import (
	"encoding/binary"
)

type pbWriter struct {
	buf []byte
}

func (w *pbWriter) writeVarint(v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	w.buf = append(w.buf, tmp[:n]...)
}

// tag encodes a field number and wire type (0=varint, 2=length-delimited).
func (w *pbWriter) tag(fieldNum int, wireType int) {
	w.writeVarint(uint64(fieldNum)<<3 | uint64(wireType))
}

func (w *pbWriter) varintField(fieldNum int, v uint64) {
	if v == 0 {
		return // proto3 omits default values
	}
	w.tag(fieldNum, 0)
	w.writeVarint(v)
}

func (w *pbWriter) bytesField(fieldNum int, data []byte) {
	if len(data) == 0 {
		return
	}
	w.tag(fieldNum, 2)
	w.writeVarint(uint64(len(data)))
	w.buf = append(w.buf, data...)
}

func (w *pbWriter) stringField(fieldNum int, s string) {
	if s == "" {
		return
	}
	w.bytesField(fieldNum, []byte(s))
}

// embeddedField writes a nested message's already-encoded bytes as a
// length-delimited field, the same physical encoding as bytesField —
// named separately for readability at call sites.
func (w *pbWriter) embeddedField(fieldNum int, encoded []byte) {
	w.bytesField(fieldNum, encoded)
}

// anyMessage encodes a google.protobuf.Any: type_url(1,string),
// value(2,bytes).
func anyMessage(typeURL string, value []byte) []byte {
	w := &pbWriter{}
	w.stringField(1, typeURL)
	w.bytesField(2, value)
	return w.buf
}

// coinMessage encodes a cosmos.base.v1beta1.Coin: denom(1,string),
// amount(2,string) — Coin amounts are always the string form on the
// wire, never a numeric type, to avoid precision loss for u128-scale
// balances.
func coinMessage(denom, amount string) []byte {
	w := &pbWriter{}
	w.stringField(1, denom)
	w.stringField(2, amount)
	return w.buf
}

// execContractMessage encodes a cosmwasm.wasm.v1.MsgExecuteContract:
// sender(1,string), contract(2,string), msg(3,bytes), funds(5,repeated
// Coin) — field 4 is reserved/unused on the wire, matching wasmd's own
// generated layout.
func execContractMessage(sender, contract string, msg []byte, funds [][]byte) []byte {
	w := &pbWriter{}
	w.stringField(1, sender)
	w.stringField(2, contract)
	w.bytesField(3, msg)
	for _, coin := range funds {
		w.embeddedField(5, coin)
	}
	return w.buf
}

// txBodyMessage encodes a cosmos.tx.v1beta1.TxBody carrying a single
// message Any, with no memo and no timeout height — every withdraw_cancel
// / withdraw_approve the relayer submits is a single-message tx.
func txBodyMessage(msgAny []byte) []byte {
	w := &pbWriter{}
	w.embeddedField(1, msgAny)
	return w.buf
}

// pubKeyAny encodes a secp256k1 public key as a
// cosmos.crypto.secp256k1.PubKey Any.
func pubKeyAny(compressedPubKey []byte) []byte {
	w := &pbWriter{}
	w.bytesField(1, compressedPubKey)
	return anyMessage("/cosmos.crypto.secp256k1.PubKey", w.buf)
}

// modeInfoSignDirect encodes a ModeInfo carrying a Single{mode:
// SIGN_MODE_DIRECT}. SIGN_MODE_DIRECT is enum value 1.
func modeInfoSignDirect() []byte {
	single := &pbWriter{}
	single.varintField(1, 1) // SignMode.SIGN_MODE_DIRECT
	w := &pbWriter{}
	w.embeddedField(1, single.buf)
	return w.buf
}

// signerInfoMessage encodes a single SignerInfo: public_key(1,Any),
// mode_info(2,ModeInfo), sequence(3,uint64).
func signerInfoMessage(pubKeyAnyBytes []byte, sequence uint64) []byte {
	w := &pbWriter{}
	w.embeddedField(1, pubKeyAnyBytes)
	w.embeddedField(2, modeInfoSignDirect())
	w.varintField(3, sequence)
	return w.buf
}

// feeMessage encodes a Fee: amount(1,repeated Coin), gas_limit(2,uint64).
func feeMessage(coin []byte, gasLimit uint64) []byte {
	w := &pbWriter{}
	w.embeddedField(1, coin)
	w.varintField(2, gasLimit)
	return w.buf
}

// authInfoMessage encodes an AuthInfo: signer_infos(1,repeated
// SignerInfo), fee(2,Fee).
func authInfoMessage(signerInfo, fee []byte) []byte {
	w := &pbWriter{}
	w.embeddedField(1, signerInfo)
	w.embeddedField(2, fee)
	return w.buf
}

// signDocMessage encodes a SignDoc: body_bytes(1,bytes),
// auth_info_bytes(2,bytes), chain_id(3,string), account_number(4,uint64).
func signDocMessage(bodyBytes, authInfoBytes []byte, chainID string, accountNumber uint64) []byte {
	w := &pbWriter{}
	w.bytesField(1, bodyBytes)
	w.bytesField(2, authInfoBytes)
	w.stringField(3, chainID)
	w.varintField(4, accountNumber)
	return w.buf
}

// txRawMessage encodes a TxRaw: body_bytes(1,bytes),
// auth_info_bytes(2,bytes), signatures(3,repeated bytes).
func txRawMessage(bodyBytes, authInfoBytes []byte, signature []byte) []byte {
	w := &pbWriter{}
	w.bytesField(1, bodyBytes)
	w.bytesField(2, authInfoBytes)
	w.bytesField(3, signature)
	return w.buf
}
