// Copyright 2025 Certen Protocol
//
// Package cosmoschain adapts a CosmWasm bridge contract deployment on
// Terra Classic to the relayer: cosmos-sdk for key derivation and
// SIGN_DIRECT transaction signing, go-bip39 for mnemonic handling, and
// raw net/http against the LCD's REST and base64-JSON smart-query
// surface rather than a typed gRPC client — Terra Classic's public
// endpoints are LCD-only in the common case.
package cosmoschain

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/cosmos/cosmos-sdk/crypto/hd"
	cryptotypes "github.com/cosmos/cosmos-sdk/crypto/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	bip39 "github.com/cosmos/go-bip39"

	"github.com/cl8y/bridge-relay/pkg/hashcodec"
)

// TerraDerivationPath is the BIP-44 HD path Terra Classic wallets use:
// coin type 330 registered for LUNA.
const TerraDerivationPath = "m/44'/330'/0'/0/0"

// AddressPrefix is the Bech32 human-readable prefix for Terra accounts.
const AddressPrefix = "terra"

// GasLimit and GasPrice are the fixed broadcast schedule: Terra Classic
// writes never bump gas on retry, per the system's documented design
// decision — a failed broadcast falls back to backoff-only.
const (
	GasLimit  uint64  = 300_000
	GasPrice  float64 = 0.015
	FeeDenom          = "uluna"
)

// Client is a bridge-contract adapter for the Terra Classic side of the
// bridge, covering both read access (LCD queries) and, when configured
// with signer material, write access (SIGN_DIRECT transactions).
type Client struct {
	lcdURL        string
	chainID       string
	bridgeAddr    string
	thisChainID   uint32
	httpClient    *http.Client
	logger        *log.Logger

	privKey cryptotypes.PrivKey
	address string // bech32, "terra1..."
}

// Config configures a Client.
type Config struct {
	LCDURL        string
	ChainID       string
	BridgeAddress string
	ThisChainID   uint32
	Mnemonic      string // empty for read-only clients
	Logger        *log.Logger
	Timeout       time.Duration
}

// New derives the signer key (if a mnemonic is given) and returns a
// ready Client. It performs no network calls; the LCD is reached lazily
// on the first query or broadcast.
func New(cfg Config) (*Client, error) {
	if cfg.LCDURL == "" {
		return nil, fmt.Errorf("cosmoschain: LCD URL is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[Cosmos] ", log.LstdFlags)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		lcdURL:      strings.TrimSuffix(cfg.LCDURL, "/"),
		chainID:     cfg.ChainID,
		bridgeAddr:  cfg.BridgeAddress,
		thisChainID: cfg.ThisChainID,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger,
	}

	if cfg.Mnemonic != "" {
		privKey, address, err := deriveKey(cfg.Mnemonic)
		if err != nil {
			return nil, fmt.Errorf("cosmoschain: derive signer key: %w", err)
		}
		c.privKey = privKey
		c.address = address
	}

	return c, nil
}

func deriveKey(mnemonic string) (cryptotypes.PrivKey, string, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, "", fmt.Errorf("invalid mnemonic")
	}
	seed, err := hd.Secp256k1.Derive()(mnemonic, "", TerraDerivationPath)
	if err != nil {
		return nil, "", fmt.Errorf("HD derivation failed: %w", err)
	}
	privKey := hd.Secp256k1.Generate()(seed)

	address, err := sdk.Bech32ifyAddressBytes(AddressPrefix, privKey.PubKey().Address())
	if err != nil {
		return nil, "", fmt.Errorf("bech32 encode address: %w", err)
	}
	return privKey, address, nil
}

// ChainName returns a human-readable identifier for logging.
func (c *Client) ChainName() string { return "terra:" + c.chainID }

// ThisChainID returns the bridge-protocol chain id this deployment uses.
func (c *Client) ThisChainID() uint32 { return c.thisChainID }

// ChainKey returns this chain's canonical 32-byte chain key.
func (c *Client) ChainKey() hashcodec.Hash {
	return hashcodec.CosmosChainKey(c.chainID)
}

// BridgeAddress returns the bech32 bridge contract address.
func (c *Client) BridgeAddress() string { return c.bridgeAddr }

// SignerAddress returns the writer/canceler's own bech32 address, or
// empty if this client has no signer configured.
func (c *Client) SignerAddress() string { return c.address }

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.lcdURL+path, nil)
	if err != nil {
		return fmt.Errorf("cosmoschain: build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cosmoschain: LCD request failed: %w", err)
	}
	return decodeJSON(resp, out)
}
