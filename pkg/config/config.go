package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DatabaseConfig configures the Operator's Postgres database. The
// Canceler keeps no database and does not load this block.
type DatabaseConfig struct {
	DatabaseURL         string
	DatabaseMaxConns    int
	DatabaseMinConns    int
	DatabaseMaxIdleTime int // seconds
	DatabaseMaxLifetime int // seconds

	DBHost            string
	DBPort            int
	DBUser            string
	DBPassword        string
	DBName            string
	DBSSLMode         string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		DatabaseMaxConns:    getEnvInt("DATABASE_MAX_CONNS", 25),
		DatabaseMinConns:    getEnvInt("DATABASE_MIN_CONNS", 5),
		DatabaseMaxIdleTime: getEnvInt("DATABASE_MAX_IDLE_TIME", 300),
		DatabaseMaxLifetime: getEnvInt("DATABASE_MAX_LIFETIME", 3600),

		DBHost:            getEnv("DB_HOST", "localhost"),
		DBPort:            getEnvInt("DB_PORT", 5432),
		DBUser:            getEnv("DB_USER", "relayer"),
		DBPassword:        getEnv("DB_PASSWORD", ""),
		DBName:            getEnv("DB_NAME", "bridge_relay"),
		DBSSLMode:         getEnv("DB_SSL_MODE", "require"),
		DBMaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", time.Hour),
	}
}

func (d DatabaseConfig) appendErrors(errs []string) []string {
	if d.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required but not set")
	}
	return errs
}

// EVMChainConfig describes one EVM chain the relayer bridges to/from.
// The system is never hardwired to a single EVM chain: it relays between
// Terra Classic and a configurable list of EVM chains; the discovery
// task surfaces registry additions that still need an entry here.
type EVMChainConfig struct {
	Name            string
	NativeChainID   uint64
	ThisChainID     uint32
	RPCURL          string
	RPCFallbackURLs []string
	BridgeAddress   string
	FinalityBlocks  int
	Enabled         bool
}

func (c EVMChainConfig) appendErrors(errs []string) []string {
	if c.RPCURL == "" {
		errs = append(errs, fmt.Sprintf("EVM chain %q: RPC URL is required", c.Name))
	}
	if !isHexAddress(c.BridgeAddress) {
		errs = append(errs, fmt.Sprintf("EVM chain %q: bridge address must be a 42-character 0x-prefixed hex string", c.Name))
	}
	return errs
}

// loadEVMChains reads EVM_CHAINS_COUNT and then EVM_CHAIN_{i}_* for i in
// [1, count]. With no EVM_CHAINS_COUNT set it falls back to a single
// chain read from the un-indexed EVM_* variables, for simple deployments.
func loadEVMChains() []EVMChainConfig {
	count := getEnvInt("EVM_CHAINS_COUNT", 0)
	if count == 0 {
		if url := getEnv("EVM_RPC_URL", ""); url != "" {
			nativeID := getEnvInt("EVM_CHAIN_ID", 0)
			return []EVMChainConfig{{
				Name:            getEnv("EVM_CHAIN_NAME", "evm"),
				NativeChainID:   uint64(nativeID),
				ThisChainID:     uint32(getEnvInt("EVM_THIS_CHAIN_ID", nativeID)),
				RPCURL:          url,
				RPCFallbackURLs: parseCommaList(getEnv("EVM_RPC_FALLBACK_URLS", "")),
				BridgeAddress:   getEnv("EVM_BRIDGE_ADDRESS", ""),
				FinalityBlocks:  getEnvInt("EVM_FINALITY_BLOCKS", 12),
				Enabled:         true,
			}}
		}
		return nil
	}

	chains := make([]EVMChainConfig, 0, count)
	for i := 1; i <= count; i++ {
		prefix := fmt.Sprintf("EVM_CHAIN_%d_", i)
		nativeID := getEnvInt(prefix+"CHAIN_ID", 0)
		chains = append(chains, EVMChainConfig{
			Name:            getEnv(prefix+"NAME", fmt.Sprintf("evm-%d", i)),
			NativeChainID:   uint64(nativeID),
			ThisChainID:     uint32(getEnvInt(prefix+"THIS_CHAIN_ID", nativeID)),
			RPCURL:          getEnv(prefix+"RPC_URL", ""),
			RPCFallbackURLs: parseCommaList(getEnv(prefix+"RPC_FALLBACK_URLS", "")),
			BridgeAddress:   getEnv(prefix+"BRIDGE_ADDRESS", ""),
			FinalityBlocks:  getEnvInt(prefix+"FINALITY_BLOCKS", 12),
			Enabled:         getEnvBool(prefix+"ENABLED", true),
		})
	}
	return chains
}

// TerraConfig configures the Cosmos/Terra Classic side of the bridge.
type TerraConfig struct {
	RPCURL         string
	LCDURL         string
	ChainID        string
	BridgeAddress  string
	Mnemonic       string
	FeeRecipient   string
	ThisChainID    uint32
	FinalityBlocks int
}

func loadTerraConfig() TerraConfig {
	return TerraConfig{
		RPCURL:         getEnv("TERRA_RPC_URL", ""),
		LCDURL:         getEnv("TERRA_LCD_URL", ""),
		ChainID:        getEnv("TERRA_CHAIN_ID", "columbus-5"),
		BridgeAddress:  getEnv("TERRA_BRIDGE_ADDRESS", ""),
		Mnemonic:       getEnv("TERRA_MNEMONIC", ""),
		FeeRecipient:   getEnv("TERRA_FEE_RECIPIENT", ""),
		ThisChainID:    uint32(getEnvInt("TERRA_THIS_CHAIN_ID", 4)),
		FinalityBlocks: getEnvInt("TERRA_FINALITY_BLOCKS", 1),
	}
}

func (t TerraConfig) appendErrors(errs []string, requireSigner bool) []string {
	if t.RPCURL == "" {
		errs = append(errs, "TERRA_RPC_URL is required but not set")
	}
	if t.LCDURL == "" {
		errs = append(errs, "TERRA_LCD_URL is required but not set")
	}
	if t.BridgeAddress == "" {
		errs = append(errs, "TERRA_BRIDGE_ADDRESS is required but not set")
	}
	if requireSigner && len(strings.Fields(t.Mnemonic)) < 12 {
		errs = append(errs, "TERRA_MNEMONIC must contain at least 12 words")
	}
	return errs
}

// RelayerConfig tunes the shared poll/batch cadence used by watchers,
// writers, and the confirmation tracker.
type RelayerConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

func loadRelayerConfig() RelayerConfig {
	return RelayerConfig{
		PollInterval: time.Duration(getEnvInt("RELAYER_POLL_INTERVAL_MS", 1000)) * time.Millisecond,
		BatchSize:    getEnvInt("RELAYER_BATCH_SIZE", 1000),
	}
}

// FeeConfig governs the Operator's protocol fee on bridged deposits.
type FeeConfig struct {
	DefaultFeeBPS int
	FeeRecipient  string
}

func loadFeeConfig() FeeConfig {
	return FeeConfig{
		DefaultFeeBPS: getEnvInt("DEFAULT_FEE_BPS", 30),
		FeeRecipient:  getEnv("FEE_RECIPIENT", ""),
	}
}

func (f FeeConfig) appendErrors(errs []string) []string {
	if f.DefaultFeeBPS > 100 {
		errs = append(errs, fmt.Sprintf("DEFAULT_FEE_BPS must be <= 100, got %d", f.DefaultFeeBPS))
	}
	if f.FeeRecipient != "" && !isHexAddress(f.FeeRecipient) {
		errs = append(errs, "FEE_RECIPIENT must be a 42-character 0x-prefixed hex string")
	}
	return errs
}

// HTTPConfig configures a service's HTTP surface: health/readiness/
// metrics are always open; /status and /pending are gated by APIToken
// when it is set.
type HTTPConfig struct {
	BindAddr        string
	APIToken        string
	RateLimitPerSec int
	RateLimitBurst  int
}

func loadHTTPConfig(prefix, defaultPort string) HTTPConfig {
	return HTTPConfig{
		BindAddr:        getEnv(prefix+"_API_BIND_ADDRESS", "0.0.0.0:"+defaultPort),
		APIToken:        getEnv(prefix+"_API_TOKEN", ""),
		RateLimitPerSec: getEnvInt("RATE_LIMIT_PER_SECOND", 10),
		RateLimitBurst:  getEnvInt("RATE_LIMIT_BURST_SIZE", 30),
	}
}

// CacheConfig sizes the Canceler's bounded decided-hash and pending-retry
// caches.
type CacheConfig struct {
	DecidedHashCacheSize int
	DecidedHashCacheTTL  time.Duration
	PendingMapCacheSize  int
	PendingMapCacheTTL   time.Duration
}

func loadCacheConfig() CacheConfig {
	return CacheConfig{
		DecidedHashCacheSize: getEnvInt("DECIDED_HASH_CACHE_SIZE", 100_000),
		DecidedHashCacheTTL:  getEnvDuration("DECIDED_HASH_CACHE_TTL", 24*time.Hour),
		PendingMapCacheSize:  getEnvInt("PENDING_CACHE_SIZE", 10_000),
		PendingMapCacheTTL:   getEnvDuration("PENDING_CACHE_TTL", time.Hour),
	}
}

// TokenMappingEnv is one configured token route, string-typed as read
// from the environment; cmd-level wiring resolves the token references
// into universal 32-byte identifiers. The on-chain contracts hold the
// authoritative mapping; this mirror lets the operator derive transfer
// ids without a contract round-trip per deposit.
type TokenMappingEnv struct {
	SrcChain     string // chain name: "terra" or an EVM chain's Name
	SrcToken     string // denom, 0x-address, or 32-byte hex
	DestChainID  uint32 // destination's 4-byte registry chain id
	DestToken    string
	SrcDecimals  int
	DestDecimals int
}

// loadTokenMappings reads TOKEN_MAPPINGS_COUNT and then
// TOKEN_MAPPING_{i}_* for i in [1, count].
func loadTokenMappings() []TokenMappingEnv {
	count := getEnvInt("TOKEN_MAPPINGS_COUNT", 0)
	mappings := make([]TokenMappingEnv, 0, count)
	for i := 1; i <= count; i++ {
		prefix := fmt.Sprintf("TOKEN_MAPPING_%d_", i)
		mappings = append(mappings, TokenMappingEnv{
			SrcChain:     getEnv(prefix+"SRC_CHAIN", ""),
			SrcToken:     getEnv(prefix+"SRC_TOKEN", ""),
			DestChainID:  uint32(getEnvInt(prefix+"DEST_CHAIN_ID", 0)),
			DestToken:    getEnv(prefix+"DEST_TOKEN", ""),
			SrcDecimals:  getEnvInt(prefix+"SRC_DECIMALS", 18),
			DestDecimals: getEnvInt(prefix+"DEST_DECIMALS", 18),
		})
	}
	return mappings
}

// OperatorConfig is the Operator process's complete configuration.
type OperatorConfig struct {
	Database      DatabaseConfig
	EVM           []EVMChainConfig
	Terra         TerraConfig
	Relayer       RelayerConfig
	Fees          FeeConfig
	HTTP          HTTPConfig
	Tokens        []TokenMappingEnv
	EVMPrivateKey string
	LogLevel      string

	ConfirmationPollInterval time.Duration
	ConfirmationRequired     int
	CancelWindow             time.Duration
	DiscoveryInterval        time.Duration
}

// LoadOperatorConfig reads the Operator's configuration from the
// environment and validates it. Call this once at process startup;
// there are no safe defaults for signer material or chain endpoints.
func LoadOperatorConfig() (*OperatorConfig, error) {
	cfg := &OperatorConfig{
		Database:                 loadDatabaseConfig(),
		EVM:                      loadEVMChains(),
		Terra:                    loadTerraConfig(),
		Relayer:                  loadRelayerConfig(),
		Fees:                     loadFeeConfig(),
		HTTP:                     loadHTTPConfig("OPERATOR", "9092"),
		Tokens:                   loadTokenMappings(),
		EVMPrivateKey:            getEnv("EVM_PRIVATE_KEY", ""),
		LogLevel:                 getEnv("LOG_LEVEL", "info"),
		ConfirmationPollInterval: getEnvDuration("CONFIRMATION_POLL_INTERVAL", 10*time.Second),
		ConfirmationRequired:     getEnvInt("CONFIRMATION_REQUIRED", 12),
		CancelWindow:             getEnvDuration("CANCEL_WINDOW", time.Hour),
		DiscoveryInterval:        getEnvDuration("DISCOVERY_INTERVAL", 4*time.Hour),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that all configuration required to run the Operator is
// present and well-formed, collecting every problem before returning so
// an operator fixing a misconfigured deployment sees the whole list at
// once rather than one error per restart.
func (c *OperatorConfig) Validate() error {
	var errs []string
	errs = c.Database.appendErrors(errs)

	if len(c.EVM) == 0 {
		errs = append(errs, "at least one EVM chain must be configured (set EVM_RPC_URL or EVM_CHAINS_COUNT)")
	}
	seen := make(map[uint64]bool)
	for _, chain := range c.EVM {
		errs = chain.appendErrors(errs)
		if seen[chain.NativeChainID] {
			errs = append(errs, fmt.Sprintf("duplicate EVM native chain id %d", chain.NativeChainID))
		}
		seen[chain.NativeChainID] = true
	}

	if !isHexPrivateKey(c.EVMPrivateKey) {
		errs = append(errs, "EVM_PRIVATE_KEY must be a 66-character 0x-prefixed hex string")
	}
	errs = c.Terra.appendErrors(errs, true)
	errs = c.Fees.appendErrors(errs)

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// CancelerConfig is the Canceler process's complete configuration. The
// Canceler independently re-derives and verifies every approval, so it
// needs its own read access to both chains plus signer material to
// submit cancellations — but never the Operator's fee settings, and no
// database: its working state is the chains themselves plus a pair of
// bounded in-memory caches, which keeps its trust base disjoint from
// the Operator's.
type CancelerConfig struct {
	EVM           []EVMChainConfig
	Terra         TerraConfig
	Relayer       RelayerConfig
	HTTP          HTTPConfig
	Cache         CacheConfig
	EVMPrivateKey string
	LogLevel      string
}

// LoadCancelerConfig reads the Canceler's configuration from the
// environment and validates it.
func LoadCancelerConfig() (*CancelerConfig, error) {
	cfg := &CancelerConfig{
		EVM:           loadEVMChains(),
		Terra:         loadTerraConfig(),
		Relayer:       loadRelayerConfig(),
		HTTP:          loadHTTPConfig("CANCELER", "9093"),
		Cache:         loadCacheConfig(),
		EVMPrivateKey: getEnv("EVM_PRIVATE_KEY", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the Canceler's configuration invariants.
func (c *CancelerConfig) Validate() error {
	var errs []string

	if len(c.EVM) == 0 {
		errs = append(errs, "at least one EVM chain must be configured (set EVM_RPC_URL or EVM_CHAINS_COUNT)")
	}
	for _, chain := range c.EVM {
		errs = chain.appendErrors(errs)
	}

	if !isHexPrivateKey(c.EVMPrivateKey) {
		errs = append(errs, "EVM_PRIVATE_KEY must be a 66-character 0x-prefixed hex string")
	}
	errs = c.Terra.appendErrors(errs, true)

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func isHexAddress(s string) bool {
	return len(s) == 42 && strings.HasPrefix(s, "0x")
}

func isHexPrivateKey(s string) bool {
	return len(s) == 66 && strings.HasPrefix(s, "0x")
}

func parseCommaList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// Helper functions for environment variable parsing.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
