// Copyright 2025 Certen Protocol
package evmchain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// BridgeABI is the subset of the bridge contract's ABI this adapter packs
// and unpacks against: the five operator-facing events plus the view and
// write methods named in the external-interfaces contract.
const BridgeABI = `[
	{"anonymous":false,"inputs":[
		{"indexed":true,"name":"destChain","type":"bytes4"},
		{"indexed":true,"name":"destAccount","type":"bytes32"},
		{"indexed":false,"name":"srcAccount","type":"bytes32"},
		{"indexed":false,"name":"token","type":"address"},
		{"indexed":false,"name":"amount","type":"uint256"},
		{"indexed":false,"name":"nonce","type":"uint64"},
		{"indexed":false,"name":"fee","type":"uint256"}
	],"name":"Deposit","type":"event"},
	{"anonymous":false,"inputs":[
		{"indexed":true,"name":"transferId","type":"bytes32"},
		{"indexed":false,"name":"srcChain","type":"bytes4"},
		{"indexed":false,"name":"token","type":"address"},
		{"indexed":false,"name":"amount","type":"uint256"},
		{"indexed":false,"name":"nonce","type":"uint64"},
		{"indexed":false,"name":"operatorGas","type":"uint256"}
	],"name":"WithdrawSubmit","type":"event"},
	{"anonymous":false,"inputs":[
		{"indexed":true,"name":"transferId","type":"bytes32"}
	],"name":"WithdrawApprove","type":"event"},
	{"anonymous":false,"inputs":[
		{"indexed":true,"name":"transferId","type":"bytes32"},
		{"indexed":false,"name":"canceler","type":"address"}
	],"name":"WithdrawCancel","type":"event"},
	{"anonymous":false,"inputs":[
		{"indexed":true,"name":"transferId","type":"bytes32"},
		{"indexed":false,"name":"recipient","type":"address"},
		{"indexed":false,"name":"amount","type":"uint256"}
	],"name":"WithdrawExecute","type":"event"},
	{"constant":true,"inputs":[{"name":"transferId","type":"bytes32"}],
	 "name":"deposits","outputs":[
		{"name":"srcChain","type":"bytes4"},
		{"name":"destChain","type":"bytes4"},
		{"name":"token","type":"bytes32"},
		{"name":"srcAccount","type":"bytes32"},
		{"name":"amount","type":"uint128"},
		{"name":"nonce","type":"uint64"},
		{"name":"exists","type":"bool"}
	],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[{"name":"transferId","type":"bytes32"}],
	 "name":"getPendingWithdraw","outputs":[
		{"name":"srcChain","type":"bytes4"},
		{"name":"token","type":"bytes32"},
		{"name":"srcAccount","type":"bytes32"},
		{"name":"destAccount","type":"bytes32"},
		{"name":"amount","type":"uint128"},
		{"name":"nonce","type":"uint64"},
		{"name":"operatorGas","type":"uint256"},
		{"name":"approvedAt","type":"uint256"},
		{"name":"approved","type":"bool"},
		{"name":"cancelled","type":"bool"},
		{"name":"executed","type":"bool"},
		{"name":"exists","type":"bool"}
	],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"getCancelWindow",
	 "outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"getThisChainId",
	 "outputs":[{"name":"","type":"bytes4"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[{"name":"account","type":"address"}],"name":"isOperator",
	 "outputs":[{"name":"","type":"bool"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[{"name":"account","type":"address"}],"name":"isCanceler",
	 "outputs":[{"name":"","type":"bool"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"chainRegistry",
	 "outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"inputs":[
		{"name":"srcChain","type":"bytes4"},
		{"name":"srcAccount","type":"bytes32"},
		{"name":"destAccount","type":"bytes32"},
		{"name":"token","type":"address"},
		{"name":"amount","type":"uint256"},
		{"name":"nonce","type":"uint64"},
		{"name":"srcDecimals","type":"uint8"}
	],"name":"withdrawSubmit","outputs":[],"stateMutability":"payable","type":"function"},
	{"inputs":[{"name":"transferId","type":"bytes32"}],
	 "name":"withdrawApprove","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"transferId","type":"bytes32"}],
	 "name":"withdrawCancel","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"transferId","type":"bytes32"}],
	 "name":"withdrawExecuteUnlock","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"transferId","type":"bytes32"}],
	 "name":"withdrawExecuteMint","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"constant":true,"inputs":[{"name":"account","type":"address"}],"name":"balanceOf",
	 "outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],
	 "name":"allowance","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"decimals",
	 "outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"}
]`

// RegistryABI is the chain-registry contract's view surface: the bridge
// points at it via chainRegistry(), and the discovery task polls it for
// newly registered chains.
const RegistryABI = `[
	{"constant":true,"inputs":[{"name":"chainId","type":"bytes4"}],"name":"isChainRegistered",
	 "outputs":[{"name":"","type":"bool"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"getRegisteredChains",
	 "outputs":[{"name":"","type":"bytes4[]"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[{"name":"chainId","type":"bytes4"}],"name":"getChainHash",
	 "outputs":[{"name":"","type":"bytes32"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[{"name":"identifier","type":"string"}],"name":"computeIdentifierHash",
	 "outputs":[{"name":"","type":"bytes32"}],"stateMutability":"view","type":"function"}
]`

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("evmchain: invalid embedded bridge ABI: " + err.Error())
	}
	return parsed
}

// bridgeABI and registryABI are parsed once at package init; they never
// change at runtime.
var (
	bridgeABI   = mustParseABI(BridgeABI)
	registryABI = mustParseABI(RegistryABI)
)
