// Copyright 2025 Certen Protocol
package cosmoschain

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// flexInt decodes a JSON value that may be either a numeric literal or a
// quoted string, since Cosmos LCD responses mix both conventions for
// 64-bit integers to dodge JavaScript's float precision loss.
type flexInt uint64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		v, err := strconv.ParseUint(asString, 10, 64)
		if err != nil {
			return fmt.Errorf("flexInt: invalid numeric string %q: %w", asString, err)
		}
		*f = flexInt(v)
		return nil
	}
	var asNumber uint64
	if err := json.Unmarshal(data, &asNumber); err != nil {
		return fmt.Errorf("flexInt: value is neither a numeric string nor a number: %w", err)
	}
	*f = flexInt(asNumber)
	return nil
}

// accountResponse mirrors the cosmos.auth.v1beta1.QueryAccountResponse
// envelope. Some chains nest sequence/account_number directly, others
// (vesting or module accounts) nest them under base_account; this
// struct accepts either by also exposing that inner path.
type accountResponse struct {
	Account struct {
		Sequence      flexInt `json:"sequence"`
		AccountNumber flexInt `json:"account_number"`
		BaseAccount   struct {
			Sequence      flexInt `json:"sequence"`
			AccountNumber flexInt `json:"account_number"`
		} `json:"base_account"`
	} `json:"account"`
}

// AccountInfo is the sequence/account-number pair needed to build a
// SIGN_DIRECT transaction.
type AccountInfo struct {
	AccountNumber uint64
	Sequence      uint64
}

// GetAccountInfo queries the signer's own account number and sequence.
func (c *Client) GetAccountInfo(ctx context.Context) (AccountInfo, error) {
	if c.address == "" {
		return AccountInfo{}, fmt.Errorf("cosmoschain: client has no signer configured")
	}
	return c.getAccountInfo(ctx, c.address)
}

func (c *Client) getAccountInfo(ctx context.Context, address string) (AccountInfo, error) {
	var resp accountResponse
	if err := c.get(ctx, "/cosmos/auth/v1beta1/accounts/"+address, &resp); err != nil {
		return AccountInfo{}, fmt.Errorf("cosmoschain: query account %s: %w", address, err)
	}
	seq, num := resp.Account.Sequence, resp.Account.AccountNumber
	if seq == 0 && num == 0 {
		seq, num = resp.Account.BaseAccount.Sequence, resp.Account.BaseAccount.AccountNumber
	}
	return AccountInfo{AccountNumber: uint64(num), Sequence: uint64(seq)}, nil
}

func decodeJSON(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var errBody struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		if errBody.Message != "" {
			return fmt.Errorf("LCD returned %s: %s", resp.Status, errBody.Message)
		}
		return fmt.Errorf("LCD returned %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
