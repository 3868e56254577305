// Copyright 2025 Certen Protocol
package cosmoschain

import (
	"context"
	"fmt"
	"math/big"
	"net/url"
)

// Coin is one denom/amount pair from the bank module. Amounts arrive as
// decimal strings and are surfaced as big.Int since uluna balances
// routinely exceed float precision.
type Coin struct {
	Denom  string
	Amount *big.Int
}

type bankBalanceResponse struct {
	Balance struct {
		Denom  string `json:"denom"`
		Amount string `json:"amount"`
	} `json:"balance"`
}

type bankBalancesResponse struct {
	Balances []struct {
		Denom  string `json:"denom"`
		Amount string `json:"amount"`
	} `json:"balances"`
}

// DenomBalance reads one address's balance in a single native denom.
func (c *Client) DenomBalance(ctx context.Context, address, denom string) (*big.Int, error) {
	var out bankBalanceResponse
	path := fmt.Sprintf("/cosmos/bank/v1beta1/balances/%s/by_denom?denom=%s", address, url.QueryEscape(denom))
	if err := c.get(ctx, path, &out); err != nil {
		return nil, fmt.Errorf("cosmoschain: denom balance: %w", err)
	}
	return parseCoinAmount(out.Balance.Amount)
}

// BankBalances reads every denom an address holds.
func (c *Client) BankBalances(ctx context.Context, address string) ([]Coin, error) {
	var out bankBalancesResponse
	if err := c.get(ctx, "/cosmos/bank/v1beta1/balances/"+address, &out); err != nil {
		return nil, fmt.Errorf("cosmoschain: bank balances: %w", err)
	}
	coins := make([]Coin, 0, len(out.Balances))
	for _, b := range out.Balances {
		amount, err := parseCoinAmount(b.Amount)
		if err != nil {
			return nil, fmt.Errorf("cosmoschain: denom %s: %w", b.Denom, err)
		}
		coins = append(coins, Coin{Denom: b.Denom, Amount: amount})
	}
	return coins, nil
}

func parseCoinAmount(s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid coin amount %q", s)
	}
	return v, nil
}
