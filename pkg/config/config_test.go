package config

import (
	"os"
	"testing"
)

func clearRelayerEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DATABASE_URL", "EVM_CHAINS_COUNT", "EVM_RPC_URL", "EVM_CHAIN_ID",
		"EVM_BRIDGE_ADDRESS", "EVM_PRIVATE_KEY", "TERRA_RPC_URL", "TERRA_LCD_URL",
		"TERRA_BRIDGE_ADDRESS", "TERRA_MNEMONIC", "DEFAULT_FEE_BPS",
	} {
		os.Unsetenv(k)
	}
}

func TestLoadOperatorConfigRequiresDatabaseURL(t *testing.T) {
	clearRelayerEnv(t)
	_, err := LoadOperatorConfig()
	if err == nil {
		t.Fatal("expected error when DATABASE_URL is unset")
	}
}

func TestLoadOperatorConfigSingleChainFallback(t *testing.T) {
	clearRelayerEnv(t)
	os.Setenv("DATABASE_URL", "postgres://localhost/bridge")
	os.Setenv("EVM_RPC_URL", "https://rpc.example.com")
	os.Setenv("EVM_CHAIN_ID", "1")
	os.Setenv("EVM_BRIDGE_ADDRESS", "0x0000000000000000000000000000000000000001")
	os.Setenv("EVM_PRIVATE_KEY", "0x1111111111111111111111111111111111111111111111111111111111111111"[:66])
	os.Setenv("TERRA_RPC_URL", "https://terra-rpc.example.com")
	os.Setenv("TERRA_LCD_URL", "https://terra-lcd.example.com")
	os.Setenv("TERRA_BRIDGE_ADDRESS", "terra1bridgeaddressxxxxxxxxxxxxxxxxxxxxxxxxxxx")
	os.Setenv("TERRA_MNEMONIC", "one two three four five six seven eight nine ten eleven twelve")
	defer clearRelayerEnv(t)

	cfg, err := LoadOperatorConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.EVM) != 1 {
		t.Fatalf("expected a single fallback EVM chain, got %d", len(cfg.EVM))
	}
	if cfg.EVM[0].NativeChainID != 1 {
		t.Fatalf("expected native chain id 1, got %d", cfg.EVM[0].NativeChainID)
	}
}

func TestLoadEVMChainsIndexed(t *testing.T) {
	clearRelayerEnv(t)
	os.Setenv("EVM_CHAINS_COUNT", "2")
	os.Setenv("EVM_CHAIN_1_RPC_URL", "https://one.example.com")
	os.Setenv("EVM_CHAIN_1_CHAIN_ID", "1")
	os.Setenv("EVM_CHAIN_1_BRIDGE_ADDRESS", "0x0000000000000000000000000000000000000001")
	os.Setenv("EVM_CHAIN_2_RPC_URL", "https://two.example.com")
	os.Setenv("EVM_CHAIN_2_CHAIN_ID", "137")
	os.Setenv("EVM_CHAIN_2_BRIDGE_ADDRESS", "0x0000000000000000000000000000000000000002")
	os.Setenv("EVM_CHAIN_2_ENABLED", "false")
	defer clearRelayerEnv(t)

	chains := loadEVMChains()
	if len(chains) != 2 {
		t.Fatalf("expected 2 chains, got %d", len(chains))
	}
	if chains[1].Enabled {
		t.Fatalf("expected chain 2 to be disabled")
	}
}

func TestFeeConfigRejectsExcessiveBPS(t *testing.T) {
	f := FeeConfig{DefaultFeeBPS: 101}
	errs := f.appendErrors(nil)
	if len(errs) == 0 {
		t.Fatal("expected an error for fee bps > 100")
	}
}

func TestIsHexAddress(t *testing.T) {
	if !isHexAddress("0x0000000000000000000000000000000000000001") {
		t.Fatal("expected valid address to pass")
	}
	if isHexAddress("0x1") {
		t.Fatal("expected short address to fail")
	}
}
