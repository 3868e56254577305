// Copyright 2025 Certen Protocol
package cosmoschain

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/cl8y/bridge-relay/pkg/hashcodec"
)

// smartQuery executes a CosmWasm smart-contract query: the query message
// is JSON-marshaled, base64-encoded, and placed in the LCD path per the
// wasmd REST contract (`/cosmwasm/wasm/v1/contract/{addr}/smart/{b64}`).
func (c *Client) smartQuery(ctx context.Context, query interface{}, out interface{}) error {
	raw, err := json.Marshal(query)
	if err != nil {
		return fmt.Errorf("cosmoschain: marshal query: %w", err)
	}
	b64 := base64.StdEncoding.EncodeToString(raw)

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	path := fmt.Sprintf("/cosmwasm/wasm/v1/contract/%s/smart/%s", c.bridgeAddr, b64)
	if err := c.get(ctx, path, &envelope); err != nil {
		return fmt.Errorf("cosmoschain: smart query failed: %w", err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("cosmoschain: decode query result: %w", err)
	}
	return nil
}

// VerifyDepositResult mirrors the bridge contract's verify_deposit
// query response: whether a claimed source-chain deposit genuinely
// exists, and whether the amount and nonce the verifier supplied match
// what the contract recorded.
type VerifyDepositResult struct {
	Exists  bool `json:"exists"`
	Matches bool `json:"matches"`
}

// VerifyDeposit asks the Cosmos bridge contract whether depositHash
// corresponds to a deposit it recorded with the given amount and nonce,
// for the Canceler's Cosmos-sourced fraud check. The amount travels as
// a decimal string per the contract's serde convention.
func (c *Client) VerifyDeposit(ctx context.Context, depositHash hashcodec.Hash, amount string, nonce uint64) (VerifyDepositResult, error) {
	query := map[string]interface{}{
		"verify_deposit": map[string]interface{}{
			"deposit_hash": base64.StdEncoding.EncodeToString(depositHash[:]),
			"amount":       amount,
			"nonce":        nonce,
		},
	}
	var result VerifyDepositResult
	if err := c.smartQuery(ctx, query, &result); err != nil {
		return VerifyDepositResult{}, err
	}
	return result, nil
}

// PendingWithdrawResult mirrors the bridge contract's pending_withdraw
// query: the parameters the verifier re-derives the transfer id from,
// plus the approval's lifecycle flags. Binary fields arrive base64
// encoded, amounts as strings-or-numbers.
type PendingWithdrawResult struct {
	Exists      bool     `json:"exists"`
	SrcChain    b64Bytes `json:"src_chain"`
	Token       b64Bytes `json:"token"`
	SrcAccount  b64Bytes `json:"src_account"`
	DestAccount b64Bytes `json:"dest_account"`
	Amount      string   `json:"amount"`
	Nonce       flexInt  `json:"nonce"`
	Approved    bool     `json:"approved"`
	Cancelled   bool     `json:"cancelled"`
	Executed    bool     `json:"executed"`
	ApprovedAt  flexInt  `json:"approved_at"`
}

// PendingWithdraw queries a transfer's current on-chain approval state.
func (c *Client) PendingWithdraw(ctx context.Context, withdrawHash hashcodec.Hash) (PendingWithdrawResult, error) {
	query := map[string]interface{}{
		"pending_withdraw": map[string]string{
			"withdraw_hash": base64.StdEncoding.EncodeToString(withdrawHash[:]),
		},
	}
	var result PendingWithdrawResult
	if err := c.smartQuery(ctx, query, &result); err != nil {
		return PendingWithdrawResult{}, err
	}
	return result, nil
}

// ComputeTransferHash asks the contract itself to derive a transfer id,
// used in integration checks to prove the off-chain codec matches the
// on-chain one byte for byte.
func (c *Client) ComputeTransferHash(ctx context.Context, srcChainKey, destChainKey, token, destAccount hashcodec.Hash, amount string, nonce uint64) (hashcodec.Hash, error) {
	query := map[string]interface{}{
		"compute_transfer_hash": map[string]interface{}{
			"src_chain_key":  base64.StdEncoding.EncodeToString(srcChainKey[:]),
			"dest_chain_key": base64.StdEncoding.EncodeToString(destChainKey[:]),
			"token":          base64.StdEncoding.EncodeToString(token[:]),
			"dest_account":   base64.StdEncoding.EncodeToString(destAccount[:]),
			"amount":         amount,
			"nonce":          nonce,
		},
	}
	var result struct {
		Hash b64Bytes `json:"hash"`
	}
	if err := c.smartQuery(ctx, query, &result); err != nil {
		return hashcodec.Hash{}, err
	}
	if len(result.Hash) != 32 {
		return hashcodec.Hash{}, fmt.Errorf("cosmoschain: compute_transfer_hash returned %d bytes", len(result.Hash))
	}
	var h hashcodec.Hash
	copy(h[:], result.Hash)
	return h, nil
}

// b64Bytes decodes a base64-encoded JSON string into raw bytes.
type b64Bytes []byte

func (b *b64Bytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*b = nil
		return nil
	}
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid base64 field: %w", err)
	}
	*b = decoded
	return nil
}

// GetCancelWindow reads the contract's configured cancel-window
// duration, in seconds.
func (c *Client) GetCancelWindow(ctx context.Context) (uint64, error) {
	var result struct {
		Seconds flexInt `json:"seconds"`
	}
	if err := c.smartQuery(ctx, map[string]interface{}{"cancel_window": struct{}{}}, &result); err != nil {
		return 0, err
	}
	return uint64(result.Seconds), nil
}

// IsOperator checks whether address is an authorized operator on the
// Cosmos bridge contract.
func (c *Client) IsOperator(ctx context.Context, address string) (bool, error) {
	query := map[string]interface{}{
		"is_operator": map[string]string{"address": address},
	}
	var result struct {
		IsOperator bool `json:"is_operator"`
	}
	if err := c.smartQuery(ctx, query, &result); err != nil {
		return false, err
	}
	return result.IsOperator, nil
}

// IsCanceler checks whether address is an authorized canceler on the
// Cosmos bridge contract.
func (c *Client) IsCanceler(ctx context.Context, address string) (bool, error) {
	query := map[string]interface{}{
		"is_canceler": map[string]string{"address": address},
	}
	var result struct {
		IsCanceler bool `json:"is_canceler"`
	}
	if err := c.smartQuery(ctx, query, &result); err != nil {
		return false, err
	}
	return result.IsCanceler, nil
}

// LatestHeight returns the current Tendermint block height from the
// LCD's latest-block endpoint, for the Cosmos watcher's cursor poll.
func (c *Client) LatestHeight(ctx context.Context) (uint64, error) {
	var out struct {
		Block struct {
			Header struct {
				Height flexInt `json:"height"`
			} `json:"header"`
		} `json:"block"`
	}
	if err := c.get(ctx, "/cosmos/base/tendermint/v1beta1/blocks/latest", &out); err != nil {
		return 0, fmt.Errorf("cosmoschain: latest height: %w", err)
	}
	return uint64(out.Block.Header.Height), nil
}
