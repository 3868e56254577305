// Copyright 2025 Certen Protocol
package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/cl8y/bridge-relay/pkg/config"
	"github.com/cl8y/bridge-relay/pkg/confirm"
	"github.com/cl8y/bridge-relay/pkg/cosmoschain"
	"github.com/cl8y/bridge-relay/pkg/discovery"
	"github.com/cl8y/bridge-relay/pkg/evmchain"
	"github.com/cl8y/bridge-relay/pkg/hashcodec"
	"github.com/cl8y/bridge-relay/pkg/httpapi"
	"github.com/cl8y/bridge-relay/pkg/metrics"
	"github.com/cl8y/bridge-relay/pkg/store"
	"github.com/cl8y/bridge-relay/pkg/supervisor"
	"github.com/cl8y/bridge-relay/pkg/watcher"
	"github.com/cl8y/bridge-relay/pkg/writer"
)

// evmChainRuntime bundles one connected EVM chain with its derived key.
type evmChainRuntime struct {
	cfg      config.EVMChainConfig
	client   *evmchain.Client
	chainKey hashcodec.Hash
}

func main() {
	log.Printf("🚀 Starting cl8y bridge Operator...")

	cfg, err := config.LoadOperatorConfig()
	if err != nil {
		log.Fatalf("❌ Configuration error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Println("🗄️ Connecting to PostgreSQL database...")
	db, err := store.NewClient(store.Config{
		URL:             cfg.Database.DatabaseURL,
		MaxOpenConns:    cfg.Database.DatabaseMaxConns,
		MaxIdleConns:    cfg.Database.DatabaseMinConns,
		ConnMaxIdleTime: time.Duration(cfg.Database.DatabaseMaxIdleTime) * time.Second,
		ConnMaxLifetime: time.Duration(cfg.Database.DatabaseMaxLifetime) * time.Second,
	})
	if err != nil {
		log.Fatalf("❌ Database connection failed: %v", err)
	}
	defer db.Close()
	if err := db.MigrateUp(ctx); err != nil {
		log.Fatalf("❌ Database migration failed: %v", err)
	}
	log.Println("✅ Connected to PostgreSQL database")
	repos := store.NewRepositories(db)

	m := metrics.New("operator")

	signerKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.EVMPrivateKey, "0x"))
	if err != nil {
		log.Fatalf("❌ Invalid EVM private key: %v", err)
	}

	// one adapter per enabled EVM chain
	var evmChains []evmChainRuntime
	for _, chainCfg := range cfg.EVM {
		if !chainCfg.Enabled {
			log.Printf("⏭️ EVM chain %q disabled, skipping", chainCfg.Name)
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
		if ok, err := client.IsOperator(ctx, client.SignerAddress()); err != nil {
			log.Printf("⚠️ EVM chain %q: operator role check failed: %v", chainCfg.Name, err)
		} else if !ok {
			log.Printf("⚠️ EVM chain %q: signer %s does NOT hold the operator role", chainCfg.Name, client.SignerAddress())
		}
		evmChains = append(evmChains, evmChainRuntime{cfg: chainCfg, client: client, chainKey: client.ChainKey()})
		log.Printf("✅ Connected to %q (bridge %s)", chainCfg.Name, chainCfg.BridgeAddress)
	}
	if len(evmChains) == 0 {
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
	if ok, err := terra.IsOperator(ctx, terra.SignerAddress()); err != nil {
		log.Printf("⚠️ Terra: operator role check failed: %v", err)
	} else if !ok {
		log.Printf("⚠️ Terra: signer %s does NOT hold the operator role", terra.SignerAddress())
	}
	terraKey := terra.ChainKey()
	log.Printf("✅ Connected to Terra Classic (signer %s)", terra.SignerAddress())

	tokens, err := buildTokenMap(cfg, evmChains, terraKey)
	if err != nil {
		log.Fatalf("❌ Token mapping: %v", err)
	}
	log.Printf("🔐 Loaded %d token mappings", tokens.Len())

	sup := supervisor.New()

	// --- watchers: one deposit watcher per chain ---
	for _, ec := range evmChains {
		w, err := watcher.NewEVMWatcher(watcher.EVMWatcherConfig{
			ChainKey:       ec.chainKey.Hex(),
			Client:         ec.client,
			Repos:          repos,
			BatchSize:      uint64(cfg.Relayer.BatchSize),
			FinalityBlocks: uint64(ec.cfg.FinalityBlocks),
			PollInterval:   cfg.Relayer.PollInterval,
			Metrics:        m,
		})
		if err != nil {
			log.Fatalf("❌ EVM watcher %q: %v", ec.cfg.Name, err)
		}
		sup.Go(ctx, "watcher:"+ec.cfg.Name, w.Run)
	}
	terraWatcher, err := watcher.NewCosmosWatcher(watcher.CosmosWatcherConfig{
		ChainKey:       terraKey.Hex(),
		Client:         terra,
		Repos:          repos,
		BatchSize:      uint64(cfg.Relayer.BatchSize),
		FinalityBlocks: uint64(cfg.Terra.FinalityBlocks),
		PollInterval:   cfg.Relayer.PollInterval,
		Metrics:        m,
	})
	if err != nil {
		log.Fatalf("❌ Terra watcher: %v", err)
	}
	sup.Go(ctx, "watcher:terra", terraWatcher.Run)

	// --- enqueuers: deposits -> approval/release queues ---
	evmDestinations := make([]writer.Destination, 0, len(evmChains))
	evmSrcKeys := map[uint32]hashcodec.Hash{cfg.Terra.ThisChainID: terraKey}
	terraSrcKeys := make(map[uint32]hashcodec.Hash, len(evmChains))
	for _, ec := range evmChains {
		evmDestinations = append(evmDestinations, writer.Destination{
			ChainID:    ec.cfg.ThisChainID,
			ChainKey:   ec.chainKey,
			StoreChain: ec.chainKey.Hex(),
		})
		terraSrcKeys[ec.cfg.ThisChainID] = ec.chainKey
	}

	terraToEVM, err := writer.NewEnqueuer(writer.EnqueuerConfig{
		Name:         "terra-to-evm",
		Direction:    "terra_to_evm",
		SrcChain:     terraKey.Hex(),
		SrcChainKey:  terraKey,
		SrcChainID:   cfg.Terra.ThisChainID,
		Deposits:     repos.TerraDeposits,
		Dest:         repos.Approvals,
		Destinations: evmDestinations,
		Tokens:       tokens,
		PollInterval: cfg.Relayer.PollInterval,
		Metrics:      m,
	})
	if err != nil {
		log.Fatalf("❌ Enqueuer terra-to-evm: %v", err)
	}
	sup.Go(ctx, "enqueuer:terra-to-evm", terraToEVM.Run)

	terraDestination := []writer.Destination{{
		ChainID:    cfg.Terra.ThisChainID,
		ChainKey:   terraKey,
		StoreChain: terraKey.Hex(),
	}}
	for _, ec := range evmChains {
		enq, err := writer.NewEnqueuer(writer.EnqueuerConfig{
			Name:         ec.cfg.Name + "-to-terra",
			Direction:    "evm_to_terra",
			SrcChain:     ec.chainKey.Hex(),
			SrcChainKey:  ec.chainKey,
			SrcChainID:   ec.cfg.ThisChainID,
			Deposits:     repos.Deposits,
			Dest:         repos.Releases,
			Destinations: terraDestination,
			Tokens:       tokens,
			PollInterval: cfg.Relayer.PollInterval,
			Metrics:      m,
		})
		if err != nil {
			log.Fatalf("❌ Enqueuer %s-to-terra: %v", ec.cfg.Name, err)
		}
		sup.Go(ctx, "enqueuer:"+ec.cfg.Name+"-to-terra", enq.Run)
	}

	// --- writers, executors, confirmation trackers ---
	for _, ec := range evmChains {
		queueName := "evm-writer:" + ec.cfg.Name
		wr, err := writer.NewEVMWriter(writer.EVMWriterConfig{
			QueueName:    queueName,
			StoreChain:   ec.chainKey.Hex(),
			Client:       ec.client,
			DB:           db,
			Queue:        repos.Approvals,
			SrcChainKeys: evmSrcKeys,
			PollInterval: cfg.Relayer.PollInterval,
			Metrics:      m,
		})
		if err != nil {
			log.Fatalf("❌ EVM writer %q: %v", ec.cfg.Name, err)
		}
		sup.Go(ctx, "writer:"+ec.cfg.Name, wr.Run)

		cancelWindow := cfg.CancelWindow
		if seconds, err := ec.client.GetCancelWindow(ctx); err == nil && seconds > 0 {
			cancelWindow = time.Duration(seconds) * time.Second
		}
		exec, err := writer.NewEVMExecutor(writer.EVMExecutorConfig{
			QueueName:    queueName,
			StoreChain:   ec.chainKey.Hex(),
			Client:       ec.client,
			DB:           db,
			Queue:        repos.Approvals,
			CancelWindow: cancelWindow,
			PollInterval: cfg.ConfirmationPollInterval,
			Metrics:      m,
		})
		if err != nil {
			log.Fatalf("❌ EVM executor %q: %v", ec.cfg.Name, err)
		}
		sup.Go(ctx, "executor:"+ec.cfg.Name, exec.Run)

		tracker, err := confirm.NewTracker(confirm.TrackerConfig{
			StoreChain:   ec.chainKey.Hex(),
			Direction:    "terra_to_evm",
			Queue:        repos.Approvals,
			Checker:      confirm.NewEVMChecker(ec.client, uint64(cfg.ConfirmationRequired)),
			PollInterval: cfg.ConfirmationPollInterval,
			Metrics:      m,
		})
		if err != nil {
			log.Fatalf("❌ Tracker %q: %v", ec.cfg.Name, err)
		}
		sup.Go(ctx, "tracker:"+ec.cfg.Name, tracker.Run)
	}

	terraWriter, err := writer.NewTerraWriter(writer.TerraWriterConfig{
		QueueName:    "terra-writer",
		StoreChain:   terraKey.Hex(),
		Client:       terra,
		DB:           db,
		Queue:        repos.Releases,
		SrcChainKeys: terraSrcKeys,
		PollInterval: cfg.Relayer.PollInterval,
		Metrics:      m,
	})
	if err != nil {
		log.Fatalf("❌ Terra writer: %v", err)
	}
	sup.Go(ctx, "writer:terra", terraWriter.Run)

	terraTracker, err := confirm.NewTracker(confirm.TrackerConfig{
		StoreChain:   terraKey.Hex(),
		Direction:    "evm_to_terra",
		Queue:        repos.Releases,
		Checker:      confirm.NewCosmosChecker(terra),
		PollInterval: cfg.ConfirmationPollInterval,
		Metrics:      m,
	})
	if err != nil {
		log.Fatalf("❌ Terra tracker: %v", err)
	}
	sup.Go(ctx, "tracker:terra", terraTracker.Run)

	// --- discovery: fold newly registered chains into routing state ---
	seed := make([]discovery.Registration, 0, len(evmChains)+1)
	seed = append(seed, discovery.Registration{
		ChainID: hashcodec.ChainIDFromUint32(cfg.Terra.ThisChainID), ChainKey: terraKey})
	for _, ec := range evmChains {
		seed = append(seed, discovery.Registration{
			ChainID: hashcodec.ChainIDFromUint32(ec.cfg.ThisChainID), ChainKey: ec.chainKey})
	}
	disc, err := discovery.New(discovery.Config{
		Client:   evmChains[0].client,
		Interval: cfg.DiscoveryInterval,
		OnNew: func(r discovery.Registration) {
			// routing deposits to the new chain still needs an RPC
			// endpoint and a restart; discovery surfaces it early
			log.Printf("🔭 Discovered newly registered chain %s (key %s) — add an EVM_CHAIN_*_RPC_URL entry to relay to it", r.ChainID.Hex(), r.ChainKey.Hex())
		},
	}, seed)
	if err != nil {
		log.Fatalf("❌ Discovery: %v", err)
	}
	sup.Go(ctx, "discovery", disc.Run)

	// --- HTTP surface ---
	api := httpapi.New(httpapi.Config{
		BindAddr:        cfg.HTTP.BindAddr,
		APIToken:        cfg.HTTP.APIToken,
		RateLimitPerSec: cfg.HTTP.RateLimitPerSec,
		RateLimitBurst:  cfg.HTTP.RateLimitBurst,
	}, m.Handler(),
		func(ctx context.Context) bool {
			n, err := repos.Cursors.Count(ctx)
			return err == nil && n > 0
		},
		func(ctx context.Context) (httpapi.StatusResponse, error) {
			return operatorStatus(ctx, repos)
		},
		func(ctx context.Context) ([]httpapi.PendingRow, error) {
			return pendingRows(ctx, repos)
		})
	sup.Go(ctx, "httpserver", api.Run)

	log.Printf("✅ Operator running (%d EVM chains + Terra Classic, API on %s)", len(evmChains), cfg.HTTP.BindAddr)
	<-ctx.Done()
	log.Println("🛑 Shutdown signal received, draining tasks...")
	sup.Wait()
	log.Println("👋 Operator stopped")
}

// buildTokenMap resolves the env-level token mappings into universal
// identifiers keyed by chain store keys.
func buildTokenMap(cfg *config.OperatorConfig, evmChains []evmChainRuntime, terraKey hashcodec.Hash) (*writer.StaticTokenMap, error) {
	chainKeyByName := map[string]hashcodec.Hash{"terra": terraKey}
	for _, ec := range evmChains {
		chainKeyByName[ec.cfg.Name] = ec.chainKey
	}

	mappings := make([]writer.TokenMapping, 0, len(cfg.Tokens))
	for _, tm := range cfg.Tokens {
		srcKey, ok := chainKeyByName[tm.SrcChain]
		if !ok {
			return nil, fmt.Errorf("token mapping references unknown chain %q", tm.SrcChain)
		}
		srcToken, err := writer.ParseTokenRef(tm.SrcToken)
		if err != nil {
			return nil, fmt.Errorf("token mapping src token %q: %w", tm.SrcToken, err)
		}
		destToken, err := writer.ParseTokenRef(tm.DestToken)
		if err != nil {
			return nil, fmt.Errorf("token mapping dest token %q: %w", tm.DestToken, err)
		}
		mappings = append(mappings, writer.TokenMapping{
			SrcChain:     srcKey.Hex(),
			SrcToken:     srcToken,
			DestChainID:  tm.DestChainID,
			DestToken:    destToken,
			SrcDecimals:  uint8(tm.SrcDecimals),
			DestDecimals: uint8(tm.DestDecimals),
		})
	}
	return writer.NewStaticTokenMap(mappings), nil
}

func operatorStatus(ctx context.Context, repos *store.Repositories) (httpapi.StatusResponse, error) {
	queues := map[string]int{}
	pendingDeposits := 0
	for _, repo := range []*store.DepositRepository{repos.Deposits, repos.TerraDeposits} {
		if n, err := repo.CountUnprocessedAll(ctx); err == nil {
			pendingDeposits += n
		}
	}
	queues["pending_deposits"] = pendingDeposits
	for name, repo := range map[string]*store.ApprovalRepository{
		"approvals": repos.Approvals, "releases": repos.Releases,
	} {
		if n, err := repo.CountByStatus(ctx, store.ApprovalPending); err == nil {
			queues["pending_"+name] = n
		}
		if n, err := repo.CountByStatus(ctx, store.ApprovalSubmitted); err == nil {
			queues["submitted_"+name] = n
		}
	}
	return httpapi.StatusResponse{Status: "running", Queues: queues}, nil
}

func pendingRows(ctx context.Context, repos *store.Repositories) ([]httpapi.PendingRow, error) {
	var out []httpapi.PendingRow
	for queue, repo := range map[string]*store.ApprovalRepository{
		"approvals": repos.Approvals, "releases": repos.Releases,
	} {
		rows, err := repo.ListNonTerminal(ctx, 500)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			pr := httpapi.PendingRow{
				Queue:      queue,
				TransferID: fmt.Sprintf("0x%x", row.TransferID),
				SrcChain:   row.SrcChain,
				DestChain:  row.DestChain,
				Status:     string(row.Status),
				Attempt:    row.RetryAttempt,
				CreatedAt:  row.CreatedAt,
			}
			if row.RetryLastErr.Valid {
				pr.LastError = row.RetryLastErr.String
			}
			if row.TxHash.Valid {
				pr.TxHash = row.TxHash.String
			}
			out = append(out, pr)
		}
	}
	return out, nil
}
