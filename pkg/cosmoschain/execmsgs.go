// Copyright 2025 Certen Protocol
package cosmoschain

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/cl8y/bridge-relay/pkg/hashcodec"
)

// This file builds the JSON ExecuteMsg payloads the bridge contract
// accepts. Binary fields travel base64-encoded, amounts as strings,
// matching the contract's serde conventions.

// WithdrawApproveMsg builds the operator's withdraw_approve message.
func WithdrawApproveMsg(withdrawHash hashcodec.Hash) []byte {
	return mustMarshal(map[string]interface{}{
		"withdraw_approve": map[string]string{
			"withdraw_hash": base64.StdEncoding.EncodeToString(withdrawHash[:]),
		},
	})
}

// WithdrawCancelMsg builds the canceler's withdraw_cancel message.
func WithdrawCancelMsg(withdrawHash hashcodec.Hash) []byte {
	return mustMarshal(map[string]interface{}{
		"withdraw_cancel": map[string]string{
			"withdraw_hash": base64.StdEncoding.EncodeToString(withdrawHash[:]),
		},
	})
}

// SetWithdrawDelayMsg builds the admin message adjusting the cancel
// window.
func SetWithdrawDelayMsg(delaySeconds uint64) []byte {
	return mustMarshal(map[string]interface{}{
		"set_withdraw_delay": map[string]uint64{
			"delay_seconds": delaySeconds,
		},
	})
}

// RegisterChainMsg builds the admin message registering a counterparty
// chain under a 4-byte id.
func RegisterChainMsg(identifier string, chainID hashcodec.ChainID) []byte {
	return mustMarshal(map[string]interface{}{
		"register_chain": map[string]string{
			"identifier": identifier,
			"chain_id":   base64.StdEncoding.EncodeToString(chainID[:]),
		},
	})
}

// TokenType is the bridge's custody model for a token.
type TokenType string

const (
	TokenLockUnlock TokenType = "lock_unlock"
	TokenMintBurn   TokenType = "mint_burn"
)

// AddTokenMsg builds the admin message enrolling a token for bridging.
func AddTokenMsg(token string, isNative bool, tokenType TokenType, evmTokenAddress [20]byte, terraDecimals, evmDecimals uint8) []byte {
	return mustMarshal(map[string]interface{}{
		"add_token": map[string]interface{}{
			"token":             token,
			"is_native":         isNative,
			"token_type":        string(tokenType),
			"evm_token_address": hex.EncodeToString(evmTokenAddress[:]),
			"terra_decimals":    terraDecimals,
			"evm_decimals":      evmDecimals,
		},
	})
}

// SetIncomingTokenMappingMsg builds the admin message mapping a source
// chain's token identifier onto a local denom or CW20 address.
func SetIncomingTokenMappingMsg(srcChain hashcodec.ChainID, srcToken hashcodec.Hash, localToken string, srcDecimals uint8) []byte {
	return mustMarshal(map[string]interface{}{
		"set_incoming_token_mapping": map[string]interface{}{
			"src_chain":    base64.StdEncoding.EncodeToString(srcChain[:]),
			"src_token":    base64.StdEncoding.EncodeToString(srcToken[:]),
			"local_token":  localToken,
			"src_decimals": srcDecimals,
		},
	})
}

func mustMarshal(v interface{}) []byte {
	out, err := json.Marshal(v)
	if err != nil {
		// only reachable on a programming error in the maps above
		panic(fmt.Sprintf("cosmoschain: marshal execute msg: %v", err))
	}
	return out
}
