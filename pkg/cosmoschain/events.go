// Copyright 2025 Certen Protocol
package cosmoschain

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"

	"github.com/cl8y/bridge-relay/pkg/hashcodec"
)

// DepositEvent is a decoded wasm Deposit event, the Cosmos-side mirror
// of the EVM bridge contract's Deposit log: a user locked or burned
// funds on Terra Classic, destined for destChain.
type DepositEvent struct {
	TxHash      string
	Height      uint64
	DestChain   [4]byte
	DestAccount hashcodec.Hash
	SrcAccount  hashcodec.Hash
	Token       hashcodec.Hash
	Amount      []byte // big-endian, variable length as emitted
	Nonce       uint64
	Fee         []byte
}

type txSearchResponse struct {
	TxResponses []struct {
		TxHash string  `json:"txhash"`
		Height flexInt `json:"height"`
		Code   uint32  `json:"code"`
		Events []struct {
			Type       string `json:"type"`
			Attributes []struct {
				Key   string `json:"key"`
				Value string `json:"value"`
			} `json:"attributes"`
		} `json:"events"`
	} `json:"tx_responses"`
}

// SearchDepositEvents queries the LCD's tx-search surface for
// wasm-deposit events emitted by the bridge contract in
// [fromHeight, toHeight], mirroring eth_getLogs' role for the EVM
// watcher. Terra Classic's wasmd module attaches a "wasm-deposit" event
// to every Deposit execution, with string-valued attributes keyed by
// field name — the same approach cosmwasm-based bridges use throughout
// the ecosystem for indexable contract events.
func (c *Client) SearchDepositEvents(ctx context.Context, fromHeight, toHeight uint64) ([]DepositEvent, error) {
	query := fmt.Sprintf(
		"wasm-deposit.contract_address='%s' AND tx.height>=%d AND tx.height<=%d",
		c.bridgeAddr, fromHeight, toHeight)

	var out txSearchResponse
	path := "/cosmos/tx/v1beta1/txs?query=" + url.QueryEscape(query) + "&order_by=ORDER_BY_ASC&pagination.limit=1000"
	if err := c.get(ctx, path, &out); err != nil {
		return nil, fmt.Errorf("cosmoschain: search deposit events: %w", err)
	}

	var events []DepositEvent
	for _, tx := range out.TxResponses {
		if tx.Code != 0 {
			continue // failed tx, no state change, nothing to index
		}
		for _, ev := range tx.Events {
			if ev.Type != "wasm-deposit" {
				continue
			}
			decoded, err := decodeDepositAttributes(ev.Attributes)
			if err != nil {
				return nil, fmt.Errorf("cosmoschain: decode wasm-deposit event in tx %s: %w", tx.TxHash, err)
			}
			decoded.TxHash = tx.TxHash
			decoded.Height = uint64(tx.Height)
			events = append(events, decoded)
		}
	}
	return events, nil
}

func decodeDepositAttributes(attrs []struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}) (DepositEvent, error) {
	var e DepositEvent
	for _, a := range attrs {
		switch a.Key {
		case "dest_chain":
			b, err := base64.StdEncoding.DecodeString(a.Value)
			if err != nil || len(b) != 4 {
				return e, fmt.Errorf("dest_chain: want base64 of 4 bytes, got %q", a.Value)
			}
			copy(e.DestChain[:], b)
		case "dest_account":
			h, err := decodeHash32(a.Value)
			if err != nil {
				return e, fmt.Errorf("dest_account: %w", err)
			}
			e.DestAccount = h
		case "src_account":
			h, err := decodeHash32(a.Value)
			if err != nil {
				return e, fmt.Errorf("src_account: %w", err)
			}
			e.SrcAccount = h
		case "token":
			h, err := decodeHash32(a.Value)
			if err != nil {
				return e, fmt.Errorf("token: %w", err)
			}
			e.Token = h
		case "amount":
			b, err := base64.StdEncoding.DecodeString(a.Value)
			if err != nil {
				return e, fmt.Errorf("amount: invalid base64: %w", err)
			}
			e.Amount = b
		case "nonce":
			var n uint64
			if _, err := fmt.Sscanf(a.Value, "%d", &n); err != nil {
				return e, fmt.Errorf("nonce: %w", err)
			}
			e.Nonce = n
		case "fee":
			b, err := base64.StdEncoding.DecodeString(a.Value)
			if err != nil {
				return e, fmt.Errorf("fee: invalid base64: %w", err)
			}
			e.Fee = b
		}
	}
	return e, nil
}

// decodeHash32 decodes a base64-encoded 32-byte event attribute; binary
// attribute values on wasm events always travel base64.
func decodeHash32(value string) (hashcodec.Hash, error) {
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return hashcodec.Hash{}, fmt.Errorf("want base64 of 32 bytes, got %q: %w", value, err)
	}
	if len(raw) != 32 {
		return hashcodec.Hash{}, fmt.Errorf("want 32 bytes, got %d", len(raw))
	}
	var h hashcodec.Hash
	copy(h[:], raw)
	return h, nil
}

// ApprovalEvent is a decoded wasm withdraw_approve event, watched by the
// Canceler to know when a transfer's cancel window has started.
type ApprovalEvent struct {
	TxHash     string
	Height     uint64
	TransferID hashcodec.Hash
}

// SearchApprovalEvents queries for wasm-withdraw_approve events in
// [fromHeight, toHeight], the Cosmos-side mirror of the EVM
// WithdrawApprove filter query.
func (c *Client) SearchApprovalEvents(ctx context.Context, fromHeight, toHeight uint64) ([]ApprovalEvent, error) {
	query := fmt.Sprintf(
		"wasm-withdraw_approve.contract_address='%s' AND tx.height>=%d AND tx.height<=%d",
		c.bridgeAddr, fromHeight, toHeight)

	var out txSearchResponse
	path := "/cosmos/tx/v1beta1/txs?query=" + url.QueryEscape(query) + "&order_by=ORDER_BY_ASC&pagination.limit=1000"
	if err := c.get(ctx, path, &out); err != nil {
		return nil, fmt.Errorf("cosmoschain: search approval events: %w", err)
	}

	var events []ApprovalEvent
	for _, tx := range out.TxResponses {
		if tx.Code != 0 {
			continue
		}
		for _, ev := range tx.Events {
			if ev.Type != "wasm-withdraw_approve" {
				continue
			}
			for _, a := range ev.Attributes {
				if a.Key != "transfer_id" {
					continue
				}
				h, err := decodeHash32(a.Value)
				if err != nil {
					return nil, fmt.Errorf("cosmoschain: decode transfer_id in tx %s: %w", tx.TxHash, err)
				}
				events = append(events, ApprovalEvent{TxHash: tx.TxHash, Height: uint64(tx.Height), TransferID: h})
			}
		}
	}
	return events, nil
}
