// Copyright 2025 Certen Protocol
//
// Package discovery periodically queries the on-chain chain registry for
// newly registered counterparty chains, so an operator deployment learns
// about registry growth without a restart. Discovery can only surface a
// chain's id and key — RPC endpoints still come from configuration — so
// the task's job is to announce, record, and hand the new chain to a
// callback that folds it into whatever routing the process can support.
package discovery

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cl8y/bridge-relay/pkg/evmchain"
	"github.com/cl8y/bridge-relay/pkg/hashcodec"
	"github.com/cl8y/bridge-relay/pkg/supervisor"
)

// Registration is one chain the registry knows about.
type Registration struct {
	ChainID  hashcodec.ChainID
	ChainKey hashcodec.Hash
}

// Discovery polls one EVM chain's registry contract.
type Discovery struct {
	client   *evmchain.Client
	interval time.Duration
	onNew    func(Registration)
	logger   *log.Logger

	mu    sync.Mutex
	known map[hashcodec.ChainID]hashcodec.Hash
}

// Config configures a Discovery task.
type Config struct {
	Client   *evmchain.Client
	Interval time.Duration // default 4h; the first scan runs at startup
	OnNew    func(Registration)
	Logger   *log.Logger
}

// New builds a Discovery task, seeding its known set with the chains
// already in the caller's configuration so startup doesn't announce
// them as news.
func New(cfg Config, seed []Registration) (*Discovery, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("discovery: client is required")
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = 4 * time.Hour
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[Discovery] ", log.LstdFlags)
	}
	known := make(map[hashcodec.ChainID]hashcodec.Hash, len(seed))
	for _, r := range seed {
		known[r.ChainID] = r.ChainKey
	}
	return &Discovery{
		client:   cfg.Client,
		interval: interval,
		onNew:    cfg.OnNew,
		logger:   logger,
		known:    known,
	}, nil
}

// Run drives the discovery loop as a supervisor.Task.
func (d *Discovery) Run(ctx context.Context) error {
	return supervisor.RunOnSchedule(ctx, d.interval, d.scanOnce)
}

// Known returns a snapshot of every registration seen so far.
func (d *Discovery) Known() []Registration {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Registration, 0, len(d.known))
	for id, key := range d.known {
		out = append(out, Registration{ChainID: id, ChainKey: key})
	}
	return out
}

func (d *Discovery) scanOnce(ctx context.Context) {
	registry, err := d.client.ChainRegistry(ctx)
	if err != nil {
		d.logger.Printf("read registry address: %v", err)
		return
	}
	chains, err := d.client.GetRegisteredChains(ctx, registry)
	if err != nil {
		d.logger.Printf("list registered chains: %v", err)
		return
	}

	for _, raw := range chains {
		id := hashcodec.ChainID(raw)
		d.mu.Lock()
		_, seen := d.known[id]
		d.mu.Unlock()
		if seen {
			continue
		}
		key, err := d.client.GetChainHash(ctx, registry, raw)
		if err != nil {
			d.logger.Printf("read chain hash for %s: %v", id.Hex(), err)
			continue
		}
		d.mu.Lock()
		d.known[id] = key
		d.mu.Unlock()

		d.logger.Printf("registry announced new chain %s (key %s)", id.Hex(), key.Hex())
		if d.onNew != nil {
			d.onNew(Registration{ChainID: id, ChainKey: key})
		}
	}
}
