// Copyright 2025 Certen Protocol
package cosmoschain

import (
	"context"
	"fmt"
	"strconv"
)

// BuildAndSignExecute builds, signs, and returns the raw bytes of a
// SIGN_DIRECT transaction calling ExecuteMsg with execMsgJSON as its
// payload against the configured bridge contract, using the fixed gas
// schedule — Cosmos writes never bump gas on retry.
func (c *Client) BuildAndSignExecute(ctx context.Context, execMsgJSON []byte) ([]byte, error) {
	if c.privKey == nil {
		return nil, fmt.Errorf("cosmoschain: client has no signer configured")
	}

	acct, err := c.GetAccountInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("cosmoschain: fetch account info: %w", err)
	}

	gasFee := float64(GasLimit)*GasPrice + 0.999999
	feeAmount := strconv.FormatUint(uint64(gasFee), 10)

	execAny := anyMessage(
		"/cosmwasm.wasm.v1.MsgExecuteContract",
		execContractMessage(c.address, c.bridgeAddr, execMsgJSON, nil),
	)
	bodyBytes := txBodyMessage(execAny)

	pubKey := c.privKey.PubKey()
	signerInfo := signerInfoMessage(pubKeyAny(pubKey.Bytes()), acct.Sequence)
	fee := feeMessage(coinMessage(FeeDenom, feeAmount), GasLimit)
	authInfoBytes := authInfoMessage(signerInfo, fee)

	// PrivKey.Sign hashes its input with SHA-256 internally, per the
	// cosmos-sdk secp256k1 signing convention, so signDoc is passed raw.
	signDoc := signDocMessage(bodyBytes, authInfoBytes, c.chainID, acct.AccountNumber)
	signature, err := c.privKey.Sign(signDoc)
	if err != nil {
		return nil, fmt.Errorf("cosmoschain: sign transaction: %w", err)
	}

	return txRawMessage(bodyBytes, authInfoBytes, signature), nil
}
