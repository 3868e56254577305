// Copyright 2025 Certen Protocol
package evmchain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/cl8y/bridge-relay/pkg/hashcodec"
)

// PendingWithdraw is the decoded getPendingWithdraw() view result: the
// parameters the verifier re-derives the transfer id from, plus the
// approval's lifecycle flags.
type PendingWithdraw struct {
	SrcChain    [4]byte
	Token       hashcodec.Hash
	SrcAccount  hashcodec.Hash
	DestAccount hashcodec.Hash
	Amount      *big.Int
	Nonce       uint64
	OperatorGas *big.Int
	ApprovedAt  uint64
	Approved    bool
	Cancelled   bool
	Executed    bool
	Exists      bool
}

// GetPendingWithdraw fetches the full on-chain approval record for a
// transfer id.
func (c *Client) GetPendingWithdraw(ctx context.Context, transferID hashcodec.Hash) (PendingWithdraw, error) {
	var out struct {
		SrcChain    [4]byte
		Token       [32]byte
		SrcAccount  [32]byte
		DestAccount [32]byte
		Amount      *big.Int
		Nonce       uint64
		OperatorGas *big.Int
		ApprovedAt  *big.Int
		Approved    bool
		Cancelled   bool
		Executed    bool
		Exists      bool
	}
	data, err := bridgeABI.Pack("getPendingWithdraw", [32]byte(transferID))
	if err != nil {
		return PendingWithdraw{}, fmt.Errorf("evmchain: pack getPendingWithdraw call: %w", err)
	}
	raw, err := c.callContract(ctx, data)
	if err != nil {
		return PendingWithdraw{}, err
	}
	if err := bridgeABI.UnpackIntoInterface(&out, "getPendingWithdraw", raw); err != nil {
		return PendingWithdraw{}, fmt.Errorf("evmchain: unpack getPendingWithdraw result: %w", err)
	}
	return PendingWithdraw{
		SrcChain:    out.SrcChain,
		Token:       hashcodec.Hash(out.Token),
		SrcAccount:  hashcodec.Hash(out.SrcAccount),
		DestAccount: hashcodec.Hash(out.DestAccount),
		Amount:      out.Amount,
		Nonce:       out.Nonce,
		OperatorGas: out.OperatorGas,
		ApprovedAt:  out.ApprovedAt.Uint64(),
		Approved:    out.Approved,
		Cancelled:   out.Cancelled,
		Executed:    out.Executed,
		Exists:      out.Exists,
	}, nil
}

// GetThisChainID reads the bridge's own 4-byte registry chain id, used
// at startup to cross-check configuration against the deployment.
func (c *Client) GetThisChainID(ctx context.Context) ([4]byte, error) {
	data, err := bridgeABI.Pack("getThisChainId")
	if err != nil {
		return [4]byte{}, fmt.Errorf("evmchain: pack getThisChainId call: %w", err)
	}
	raw, err := c.callContract(ctx, data)
	if err != nil {
		return [4]byte{}, err
	}
	var id [4]byte
	if err := bridgeABI.UnpackIntoInterface(&id, "getThisChainId", raw); err != nil {
		return [4]byte{}, fmt.Errorf("evmchain: unpack getThisChainId result: %w", err)
	}
	return id, nil
}

// IsOperator checks whether account holds the on-chain operator role.
func (c *Client) IsOperator(ctx context.Context, account common.Address) (bool, error) {
	return c.roleCheck(ctx, "isOperator", account)
}

// IsCanceler checks whether account holds the on-chain canceler role.
func (c *Client) IsCanceler(ctx context.Context, account common.Address) (bool, error) {
	return c.roleCheck(ctx, "isCanceler", account)
}

func (c *Client) roleCheck(ctx context.Context, method string, account common.Address) (bool, error) {
	data, err := bridgeABI.Pack(method, account)
	if err != nil {
		return false, fmt.Errorf("evmchain: pack %s call: %w", method, err)
	}
	raw, err := c.callContract(ctx, data)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := bridgeABI.UnpackIntoInterface(&ok, method, raw); err != nil {
		return false, fmt.Errorf("evmchain: unpack %s result: %w", method, err)
	}
	return ok, nil
}

// ChainRegistry reads the registry contract address the bridge is bound
// to.
func (c *Client) ChainRegistry(ctx context.Context) (common.Address, error) {
	data, err := bridgeABI.Pack("chainRegistry")
	if err != nil {
		return common.Address{}, fmt.Errorf("evmchain: pack chainRegistry call: %w", err)
	}
	raw, err := c.callContract(ctx, data)
	if err != nil {
		return common.Address{}, err
	}
	var addr common.Address
	if err := bridgeABI.UnpackIntoInterface(&addr, "chainRegistry", raw); err != nil {
		return common.Address{}, fmt.Errorf("evmchain: unpack chainRegistry result: %w", err)
	}
	return addr, nil
}

// GetRegisteredChains lists every 4-byte chain id the registry knows,
// for the discovery task.
func (c *Client) GetRegisteredChains(ctx context.Context, registry common.Address) ([][4]byte, error) {
	data, err := registryABI.Pack("getRegisteredChains")
	if err != nil {
		return nil, fmt.Errorf("evmchain: pack getRegisteredChains call: %w", err)
	}
	raw, err := c.callContractAt(ctx, registry, data)
	if err != nil {
		return nil, err
	}
	var chains [][4]byte
	if err := registryABI.UnpackIntoInterface(&chains, "getRegisteredChains", raw); err != nil {
		return nil, fmt.Errorf("evmchain: unpack getRegisteredChains result: %w", err)
	}
	return chains, nil
}

// IsChainRegistered checks a single chain id against the registry.
func (c *Client) IsChainRegistered(ctx context.Context, registry common.Address, chainID [4]byte) (bool, error) {
	data, err := registryABI.Pack("isChainRegistered", chainID)
	if err != nil {
		return false, fmt.Errorf("evmchain: pack isChainRegistered call: %w", err)
	}
	raw, err := c.callContractAt(ctx, registry, data)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := registryABI.UnpackIntoInterface(&ok, "isChainRegistered", raw); err != nil {
		return false, fmt.Errorf("evmchain: unpack isChainRegistered result: %w", err)
	}
	return ok, nil
}

// GetChainHash reads the registry's recorded 32-byte chain key for a
// registered chain id.
func (c *Client) GetChainHash(ctx context.Context, registry common.Address, chainID [4]byte) (hashcodec.Hash, error) {
	data, err := registryABI.Pack("getChainHash", chainID)
	if err != nil {
		return hashcodec.Hash{}, fmt.Errorf("evmchain: pack getChainHash call: %w", err)
	}
	raw, err := c.callContractAt(ctx, registry, data)
	if err != nil {
		return hashcodec.Hash{}, err
	}
	var h [32]byte
	if err := registryABI.UnpackIntoInterface(&h, "getChainHash", raw); err != nil {
		return hashcodec.Hash{}, fmt.Errorf("evmchain: unpack getChainHash result: %w", err)
	}
	return hashcodec.Hash(h), nil
}

// NativeBalance reads an address's native-coin balance, for the
// operator's startup gas check.
func (c *Client) NativeBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	return withReadFallback(c, ctx, func(cl *ethclient.Client) (*big.Int, error) {
		return cl.BalanceAt(ctx, account, nil)
	})
}

// TokenBalanceOf reads an ERC-20 balance. The balanceOf/allowance/
// decimals fragments ride along in BridgeABI since they share the packer.
func (c *Client) TokenBalanceOf(ctx context.Context, token, account common.Address) (*big.Int, error) {
	data, err := bridgeABI.Pack("balanceOf", account)
	if err != nil {
		return nil, fmt.Errorf("evmchain: pack balanceOf call: %w", err)
	}
	raw, err := c.callContractAt(ctx, token, data)
	if err != nil {
		return nil, err
	}
	var bal *big.Int
	if err := bridgeABI.UnpackIntoInterface(&bal, "balanceOf", raw); err != nil {
		return nil, fmt.Errorf("evmchain: unpack balanceOf result: %w", err)
	}
	return bal, nil
}

// TokenAllowance reads an ERC-20 allowance.
func (c *Client) TokenAllowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	data, err := bridgeABI.Pack("allowance", owner, spender)
	if err != nil {
		return nil, fmt.Errorf("evmchain: pack allowance call: %w", err)
	}
	raw, err := c.callContractAt(ctx, token, data)
	if err != nil {
		return nil, err
	}
	var allowance *big.Int
	if err := bridgeABI.UnpackIntoInterface(&allowance, "allowance", raw); err != nil {
		return nil, fmt.Errorf("evmchain: unpack allowance result: %w", err)
	}
	return allowance, nil
}

// TokenDecimals reads an ERC-20 token's decimals.
func (c *Client) TokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	data, err := bridgeABI.Pack("decimals")
	if err != nil {
		return 0, fmt.Errorf("evmchain: pack decimals call: %w", err)
	}
	raw, err := c.callContractAt(ctx, token, data)
	if err != nil {
		return 0, err
	}
	var dec uint8
	if err := bridgeABI.UnpackIntoInterface(&dec, "decimals", raw); err != nil {
		return 0, fmt.Errorf("evmchain: unpack decimals result: %w", err)
	}
	return dec, nil
}

// callContractAt runs a view call against an arbitrary contract address
// with the read-fallback discipline.
func (c *Client) callContractAt(ctx context.Context, addr common.Address, data []byte) ([]byte, error) {
	msg := ethereum.CallMsg{To: &addr, Data: data}
	return withReadFallback(c, ctx, func(cl *ethclient.Client) ([]byte, error) {
		return cl.CallContract(ctx, msg, nil)
	})
}
