// Copyright 2025 Certen Protocol
//
// Package evmchain adapts an EVM-compatible bridge contract deployment to
// the relayer: event decoding for the watcher, view calls for the
// verifier, and EIP-1559 transaction submission for the writer. Reads
// fall back through an ordered list of RPC URLs on transport failure;
// writes never do, since a write silently retried against a second node
// risks a double-submit.
package evmchain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/cl8y/bridge-relay/pkg/hashcodec"
)

// Client is a bridge-contract adapter for one EVM chain. It holds a
// primary RPC connection plus ordered fallbacks used only for reads.
type Client struct {
	chainName     string
	nativeChainID uint64
	thisChainID   uint32
	bridgeAddr    common.Address

	primary   *ethclient.Client
	fallbacks []*ethclient.Client
	urls      []string // parallel to primary+fallbacks, for logging

	signer     *ecdsa.PrivateKey
	signerAddr common.Address

	logger *log.Logger
}

// Config configures a single-chain Client.
type Config struct {
	ChainName     string
	NativeChainID uint64
	ThisChainID   uint32
	BridgeAddress string
	PrimaryURL    string
	FallbackURLs  []string
	SignerKey     *ecdsa.PrivateKey // nil for read-only clients
	Logger        *log.Logger
}

// Dial connects to the primary URL and every fallback URL eagerly, so a
// dead fallback is discovered at startup rather than mid-incident.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.PrimaryURL == "" {
		return nil, fmt.Errorf("evmchain: primary RPC URL is required for chain %q", cfg.ChainName)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.Writer(), fmt.Sprintf("[EVM:%s] ", cfg.ChainName), log.LstdFlags)
	}

	primary, err := ethclient.DialContext(ctx, cfg.PrimaryURL)
	if err != nil {
		return nil, fmt.Errorf("evmchain: dial primary %s: %w", cfg.PrimaryURL, err)
	}

	urls := []string{cfg.PrimaryURL}
	fallbacks := make([]*ethclient.Client, 0, len(cfg.FallbackURLs))
	for _, url := range cfg.FallbackURLs {
		fb, err := ethclient.DialContext(ctx, url)
		if err != nil {
			logger.Printf("warning: fallback RPC %s unreachable at startup: %v", url, err)
			continue
		}
		fallbacks = append(fallbacks, fb)
		urls = append(urls, url)
	}

	var signerAddr common.Address
	if cfg.SignerKey != nil {
		signerAddr = crypto.PubkeyToAddress(cfg.SignerKey.PublicKey)
	}

	return &Client{
		chainName:     cfg.ChainName,
		nativeChainID: cfg.NativeChainID,
		thisChainID:   cfg.ThisChainID,
		bridgeAddr:    common.HexToAddress(cfg.BridgeAddress),
		primary:       primary,
		fallbacks:     fallbacks,
		urls:          urls,
		signer:        cfg.SignerKey,
		signerAddr:    signerAddr,
		logger:        logger,
	}, nil
}

// ChainName returns the configured human-readable chain name.
func (c *Client) ChainName() string { return c.chainName }

// ThisChainID returns the bridge-protocol chain id this deployment uses,
// distinct from the EVM native chain id used for tx signing.
func (c *Client) ThisChainID() uint32 { return c.thisChainID }

// ChainKey returns this chain's canonical 32-byte chain key.
func (c *Client) ChainKey() hashcodec.Hash {
	return hashcodec.EVMChainKey(c.nativeChainID)
}

// BridgeAddress returns the bridge contract address on this chain.
func (c *Client) BridgeAddress() common.Address { return c.bridgeAddr }

// readClients returns the primary followed by every live fallback, in
// the fixed order reads are attempted.
func (c *Client) readClients() []*ethclient.Client {
	all := make([]*ethclient.Client, 0, 1+len(c.fallbacks))
	all = append(all, c.primary)
	all = append(all, c.fallbacks...)
	return all
}

// withReadFallback calls fn against the primary client, then against each
// fallback in order, stopping at the first success. Only a transport
// failure moves on to the next URL; a JSON-RPC error response or
// ethereum.NotFound is returned at once. Each URL is tried at most once
// per call.
func withReadFallback[T any](c *Client, ctx context.Context, fn func(*ethclient.Client) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for i, client := range c.readClients() {
		result, err := fn(client)
		if err == nil {
			return result, nil
		}
		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) || errors.Is(err, ethereum.NotFound) {
			return zero, err
		}
		lastErr = err
		c.logger.Printf("read failed against %s: %v", c.urls[i], err)
	}
	return zero, fmt.Errorf("evmchain: all %d RPC endpoints failed, last error: %w", len(c.urls), lastErr)
}

// BlockNumber returns the current head height, trying fallbacks in order.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	return withReadFallback(c, ctx, func(cl *ethclient.Client) (uint64, error) {
		return cl.BlockNumber(ctx)
	})
}

// FilterLogs runs eth_getLogs against the primary, falling back on
// transport failure. The caller is responsible for keeping the block
// range within the batch size the RPC provider tolerates.
func (c *Client) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return withReadFallback(c, ctx, func(cl *ethclient.Client) ([]types.Log, error) {
		return cl.FilterLogs(ctx, q)
	})
}

// TransactionReceipt fetches a mined receipt, or ethereum.NotFound if the
// transaction is still pending or unknown.
func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return withReadFallback(c, ctx, func(cl *ethclient.Client) (*types.Receipt, error) {
		return cl.TransactionReceipt(ctx, txHash)
	})
}

// SuggestGasTipCap asks the network for a priority-fee suggestion.
func (c *Client) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return withReadFallback(c, ctx, func(cl *ethclient.Client) (*big.Int, error) {
		return cl.SuggestGasTipCap(ctx)
	})
}

// HeaderByNumber fetches a block header, nil for latest.
func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return withReadFallback(c, ctx, func(cl *ethclient.Client) (*types.Header, error) {
		return cl.HeaderByNumber(ctx, number)
	})
}

// PendingNonceAt reads the signer's next usable nonce, counting pending
// transactions, so back-to-back submissions within one poll cycle don't
// collide on the same nonce.
func (c *Client) PendingNonceAt(ctx context.Context) (uint64, error) {
	if c.signer == nil {
		return 0, fmt.Errorf("evmchain: client for %q has no signer configured", c.chainName)
	}
	return withReadFallback(c, ctx, func(cl *ethclient.Client) (uint64, error) {
		return cl.PendingNonceAt(ctx, c.signerAddr)
	})
}

// SignerAddress returns the writer's own address, for isOperator /
// isCanceler self-checks at startup.
func (c *Client) SignerAddress() common.Address { return c.signerAddr }

// CallOpts builds bind.CallOpts bound to the primary client's context
// convention; contract bindings in this package call view methods
// directly through bridgeABI rather than generated bindings, since the
// bridge ABI is a small, stable subset known up front.
func (c *Client) CallOpts(ctx context.Context) *bind.CallOpts {
	return &bind.CallOpts{Context: ctx}
}

// BuildAndSignTx constructs an EIP-1559 transaction calling the named
// bridge method with the given packed args, signs it with the writer's
// key, but does not broadcast it — callers combine this with retry and
// circuit-breaker policy in pkg/writer before sending.
func (c *Client) BuildAndSignTx(ctx context.Context, method string, gasPriceBump *big.Int, value *big.Int, args ...interface{}) (*types.Transaction, error) {
	if c.signer == nil {
		return nil, fmt.Errorf("evmchain: client for %q has no signer configured", c.chainName)
	}
	data, err := bridgeABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("evmchain: pack %s: %w", method, err)
	}

	nonce, err := c.PendingNonceAt(ctx)
	if err != nil {
		return nil, fmt.Errorf("evmchain: nonce lookup: %w", err)
	}

	tipCap, err := c.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("evmchain: suggest tip cap: %w", err)
	}
	head, err := c.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("evmchain: header by number: %w", err)
	}
	baseFee := head.BaseFee
	if baseFee == nil {
		baseFee = big.NewInt(0)
	}
	feeCap := new(big.Int).Add(baseFee, baseFee)
	feeCap.Add(feeCap, tipCap)

	if gasPriceBump != nil && gasPriceBump.Sign() > 0 {
		feeCap = new(big.Int).Add(feeCap, gasPriceBump)
		tipCap = new(big.Int).Add(tipCap, gasPriceBump)
	}

	if value == nil {
		value = big.NewInt(0)
	}

	gasLimit, err := c.estimateGas(ctx, data, value)
	if err != nil {
		return nil, fmt.Errorf("evmchain: estimate gas: %w", err)
	}

	chainID := new(big.Int).SetUint64(c.nativeChainID)
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &c.bridgeAddr,
		Value:     value,
		Data:      data,
	})

	signed, err := types.SignTx(tx, types.NewLondonSigner(chainID), c.signer)
	if err != nil {
		return nil, fmt.Errorf("evmchain: sign tx: %w", err)
	}
	return signed, nil
}

func (c *Client) estimateGas(ctx context.Context, data []byte, value *big.Int) (uint64, error) {
	msg := ethereum.CallMsg{
		From:  c.signerAddr,
		To:    &c.bridgeAddr,
		Value: value,
		Data:  data,
	}
	gas, err := withReadFallback(c, ctx, func(cl *ethclient.Client) (uint64, error) {
		return cl.EstimateGas(ctx, msg)
	})
	if err != nil {
		return 0, err
	}
	// a fixed headroom margin over the estimate; on-chain reverts from
	// underestimation are costlier than a slightly padded gas limit.
	return gas + gas/5, nil
}

// SendTransaction broadcasts a signed transaction to the primary node
// only — writes never fan out to fallbacks, so a transient fallback
// outage can never cause the same nonce to be broadcast twice from two
// different views of the mempool.
func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := c.primary.SendTransaction(ctx, tx); err != nil {
		return fmt.Errorf("evmchain: send transaction: %w", err)
	}
	return nil
}

// IsUnderpriced reports whether err looks like a replacement-underpriced
// rejection, for callers that want a fast path straight to a gas bump
// without going through the full classify table.
func IsUnderpriced(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "underpriced")
}

// Close disconnects every underlying RPC connection.
func (c *Client) Close() {
	c.primary.Close()
	for _, fb := range c.fallbacks {
		fb.Close()
	}
}
