// Copyright 2025 Certen Protocol
package main

import (
	"context"
	"log"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/cl8y/bridge-relay/pkg/config"
	"github.com/cl8y/bridge-relay/pkg/cosmoschain"
	"github.com/cl8y/bridge-relay/pkg/evmchain"
	"github.com/cl8y/bridge-relay/pkg/httpapi"
	"github.com/cl8y/bridge-relay/pkg/metrics"
	"github.com/cl8y/bridge-relay/pkg/supervisor"
	"github.com/cl8y/bridge-relay/pkg/verifier"
)

func main() {
	log.Printf("🚀 Starting cl8y bridge Canceler...")

	cfg, err := config.LoadCancelerConfig()
	if err != nil {
		log.Fatalf("❌ Configuration error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New("canceler")

	signerKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.EVMPrivateKey, "0x"))
	if err != nil {
		log.Fatalf("❌ Invalid EVM private key: %v", err)
	}

	var evmClients []*evmchain.Client
	for _, chainCfg := range cfg.EVM {
		if !chainCfg.Enabled {
			continue
		}
		log.Printf("🔗 Connecting to EVM chain %q (%d)...", chainCfg.Name, chainCfg.NativeChainID)
		client, err := evmchain.Dial(ctx, evmchain.Config{
			ChainName:     chainCfg.Name,
			NativeChainID: chainCfg.NativeChainID,
			ThisChainID:   chainCfg.ThisChainID,
			BridgeAddress: chainCfg.BridgeAddress,
			PrimaryURL:    chainCfg.RPCURL,
			FallbackURLs:  chainCfg.RPCFallbackURLs,
			SignerKey:     signerKey,
		})
		if err != nil {
			log.Fatalf("❌ EVM chain %q: %v", chainCfg.Name, err)
		}
		defer client.Close()
		if ok, err := client.IsCanceler(ctx, client.SignerAddress()); err != nil {
			log.Printf("⚠️ EVM chain %q: canceler role check failed: %v", chainCfg.Name, err)
		} else if !ok {
			log.Printf("⚠️ EVM chain %q: signer %s does NOT hold the canceler role", chainCfg.Name, client.SignerAddress())
		}
		evmClients = append(evmClients, client)
		log.Printf("✅ Connected to %q", chainCfg.Name)
	}
	if len(evmClients) == 0 {
		log.Fatalf("❌ No enabled EVM chains configured")
	}

	log.Printf("🔗 Connecting to Terra Classic (%s)...", cfg.Terra.ChainID)
	terra, err := cosmoschain.New(cosmoschain.Config{
		LCDURL:        cfg.Terra.LCDURL,
		ChainID:       cfg.Terra.ChainID,
		BridgeAddress: cfg.Terra.BridgeAddress,
		ThisChainID:   cfg.Terra.ThisChainID,
		Mnemonic:      cfg.Terra.Mnemonic,
	})
	if err != nil {
		log.Fatalf("❌ Terra client: %v", err)
	}
	if ok, err := terra.IsCanceler(ctx, terra.SignerAddress()); err != nil {
		log.Printf("⚠️ Terra: canceler role check failed: %v", err)
	} else if !ok {
		log.Printf("⚠️ Terra: signer %s does NOT hold the canceler role", terra.SignerAddress())
	}
	log.Printf("✅ Connected to Terra Classic (signer %s)", terra.SignerAddress())

	sup := supervisor.New()

	// Terra sources the transfers that land on each EVM chain; the EVM
	// chains source the transfers that land on Terra
	terraSource := &verifier.TerraSource{Client: terra}
	evmSourcesByID := make(map[uint32]verifier.SourceChain, len(evmClients))
	for _, client := range evmClients {
		evmSourcesByID[client.ThisChainID()] = &verifier.EVMSource{Client: client}
	}

	var verifiers []*verifier.Verifier

	// EVM destinations: approvals there claim Terra-side deposits
	for _, client := range evmClients {
		v, err := verifier.New(ctx, verifier.Config{
			Dest:        &verifier.EVMDestination{Client: client},
			Sources:     map[uint32]verifier.SourceChain{cfg.Terra.ThisChainID: terraSource},
			DecidedSize: cfg.Cache.DecidedHashCacheSize,
			DecidedTTL:  cfg.Cache.DecidedHashCacheTTL,
			PendingSize: cfg.Cache.PendingMapCacheSize,
			PendingTTL:  cfg.Cache.PendingMapCacheTTL,
			Metrics:     m,
		})
		if err != nil {
			log.Fatalf("❌ Verifier for %q: %v", client.ChainName(), err)
		}
		verifiers = append(verifiers, v)

		watch, err := verifier.NewEVMApprovalWatcher(verifier.EVMApprovalWatcherConfig{
			Client:         client,
			Verifier:       v,
			BatchSize:      uint64(cfg.Relayer.BatchSize),
			FinalityBlocks: 0, // cancels race the window; waiting for depth cedes time to the fraudster
			PollInterval:   cfg.Relayer.PollInterval,
			Metrics:        m,
		})
		if err != nil {
			log.Fatalf("❌ Approval watcher for %q: %v", client.ChainName(), err)
		}
		sup.Go(ctx, "approval-watcher:"+client.ChainName(), watch.Run)
	}

	// Terra destination: approvals there claim EVM-side deposits
	terraVerifier, err := verifier.New(ctx, verifier.Config{
		Dest:        &verifier.TerraDestination{Client: terra},
		Sources:     evmSourcesByID,
		DecidedSize: cfg.Cache.DecidedHashCacheSize,
		DecidedTTL:  cfg.Cache.DecidedHashCacheTTL,
		PendingSize: cfg.Cache.PendingMapCacheSize,
		PendingTTL:  cfg.Cache.PendingMapCacheTTL,
		Metrics:     m,
	})
	if err != nil {
		log.Fatalf("❌ Verifier for Terra: %v", err)
	}
	verifiers = append(verifiers, terraVerifier)

	terraWatch, err := verifier.NewTerraApprovalWatcher(verifier.TerraApprovalWatcherConfig{
		Client:         terra,
		Verifier:       terraVerifier,
		BatchSize:      uint64(cfg.Relayer.BatchSize),
		FinalityBlocks: uint64(cfg.Terra.FinalityBlocks),
		PollInterval:   cfg.Relayer.PollInterval,
		Metrics:        m,
	})
	if err != nil {
		log.Fatalf("❌ Terra approval watcher: %v", err)
	}
	sup.Go(ctx, "approval-watcher:terra", terraWatch.Run)

	api := httpapi.New(httpapi.Config{
		BindAddr:        cfg.HTTP.BindAddr,
		APIToken:        cfg.HTTP.APIToken,
		RateLimitPerSec: cfg.HTTP.RateLimitPerSec,
		RateLimitBurst:  cfg.HTTP.RateLimitBurst,
	}, m.Handler(),
		func(ctx context.Context) bool { return true },
		func(ctx context.Context) (httpapi.StatusResponse, error) {
			pending, decided := 0, 0
			for _, v := range verifiers {
				pending += v.PendingCount()
				decided += v.DecidedCount()
			}
			return httpapi.StatusResponse{
				Status: "running",
				Queues: map[string]int{
					"pending_verifications": pending,
					"decided_approvals":     decided,
				},
			}, nil
		},
		nil) // the Canceler keeps no rows; its pending state is the retry map above
	sup.Go(ctx, "httpserver", api.Run)

	log.Printf("✅ Canceler running (%d EVM chains + Terra Classic, API on %s)", len(evmClients), cfg.HTTP.BindAddr)
	<-ctx.Done()
	log.Println("🛑 Shutdown signal received, draining tasks...")
	sup.Wait()
	log.Println("👋 Canceler stopped")
}
