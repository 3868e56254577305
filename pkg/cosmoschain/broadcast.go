// Copyright 2025 Certen Protocol
package cosmoschain

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// BroadcastMode mirrors cosmos.tx.v1beta1.BroadcastMode. The relayer
// always uses SYNC: wait for CheckTx, don't wait for the block to commit.
const broadcastModeSync = "BROADCAST_MODE_SYNC"

type broadcastRequest struct {
	TxBytes string `json:"tx_bytes"`
	Mode    string `json:"mode"`
}

type broadcastResponse struct {
	TxResponse struct {
		Height  flexInt `json:"height"`
		TxHash  string  `json:"txhash"`
		Code    uint32  `json:"code"`
		RawLog  string  `json:"raw_log"`
	} `json:"tx_response"`
}

// BroadcastResult is the outcome of a BROADCAST_MODE_SYNC submission.
// Code 0 means the transaction passed CheckTx; it may still fail at
// DeliverTx, which the confirmation tracker discovers on a later poll.
type BroadcastResult struct {
	TxHash string
	Code   uint32
	RawLog string
}

// Accepted reports whether the broadcast passed CheckTx.
func (r BroadcastResult) Accepted() bool { return r.Code == 0 }

// Broadcast submits raw signed transaction bytes to the LCD's broadcast
// endpoint in sync mode.
func (c *Client) Broadcast(ctx context.Context, txBytes []byte) (BroadcastResult, error) {
	reqBody := broadcastRequest{
		TxBytes: base64.StdEncoding.EncodeToString(txBytes),
		Mode:    broadcastModeSync,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return BroadcastResult{}, fmt.Errorf("cosmoschain: marshal broadcast request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.lcdURL+"/cosmos/tx/v1beta1/txs", bytes.NewReader(payload))
	if err != nil {
		return BroadcastResult{}, fmt.Errorf("cosmoschain: build broadcast request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return BroadcastResult{}, fmt.Errorf("cosmoschain: broadcast request failed: %w", err)
	}

	var out broadcastResponse
	if err := decodeJSON(resp, &out); err != nil {
		return BroadcastResult{}, fmt.Errorf("cosmoschain: decode broadcast response: %w", err)
	}

	result := BroadcastResult{
		TxHash: out.TxResponse.TxHash,
		Code:   out.TxResponse.Code,
		RawLog: out.TxResponse.RawLog,
	}
	if !result.Accepted() {
		return result, fmt.Errorf("cosmoschain: broadcast rejected (code %d): %s", result.Code, result.RawLog)
	}
	return result, nil
}

// ExecuteAndBroadcast is the writer/canceler's single entry point: build,
// sign, and broadcast an ExecuteMsg in one call.
func (c *Client) ExecuteAndBroadcast(ctx context.Context, execMsgJSON []byte) (BroadcastResult, error) {
	txBytes, err := c.BuildAndSignExecute(ctx, execMsgJSON)
	if err != nil {
		return BroadcastResult{}, err
	}
	return c.Broadcast(ctx, txBytes)
}

// txStatusResponse mirrors the subset of GetTx's response the
// confirmation tracker needs to learn whether a previously-sync-accepted
// tx actually landed in a block.
type txStatusResponse struct {
	TxResponse struct {
		Height flexInt `json:"height"`
		Code   uint32  `json:"code"`
		RawLog string  `json:"raw_log"`
	} `json:"tx_response"`
}

// TxStatus is the confirmation tracker's view of a previously broadcast
// transaction.
type TxStatus struct {
	Found  bool
	Height uint64
	Code   uint32
	RawLog string
}

// GetTx polls the LCD for a transaction's committed status. A 404/NotFound
// response means the tx is not yet indexed and is reported as not found,
// not an error — the confirmation tracker treats that as still pending.
func (c *Client) GetTx(ctx context.Context, txHash string) (TxStatus, error) {
	var out txStatusResponse
	err := c.get(ctx, "/cosmos/tx/v1beta1/txs/"+txHash, &out)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "not found") {
			return TxStatus{Found: false}, nil
		}
		return TxStatus{}, err
	}
	return TxStatus{
		Found:  true,
		Height: uint64(out.TxResponse.Height),
		Code:   out.TxResponse.Code,
		RawLog: out.TxResponse.RawLog,
	}, nil
}
