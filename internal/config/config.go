package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Solana-ZH/orcacpi/pkg/sol"
	"github.com/Solana-ZH/orcacpi/utils"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. ORCACPI_SOLANA_RPC.
const EnvPrefix = "ORCACPI"

// Config holds all configuration for the application
type Config struct {
	Solana   SolanaConfig   `mapstructure:"solana"`
	Wallet   WalletConfig   `mapstructure:"wallet"`
	Programs ProgramsConfig `mapstructure:"programs"`
	Market   MarketConfig   `mapstructure:"market"`
	Swap     SwapConfig     `mapstructure:"swap"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// SolanaConfig holds the cluster endpoints and commitment levels
type SolanaConfig struct {
	RPC                 string        `mapstructure:"rpc"`
	WS                  string        `mapstructure:"ws"`
	BlockhashCommitment string        `mapstructure:"blockhash_commitment"`
	PreflightCommitment string        `mapstructure:"preflight_commitment"`
	ConfirmCommitment   string        `mapstructure:"confirm_commitment"`
	ConfirmTimeout      time.Duration `mapstructure:"confirm_timeout"`
	SkipPreflight       bool          `mapstructure:"skip_preflight"`
	ComputeUnitLimit    uint32        `mapstructure:"compute_unit_limit"`
	ComputeUnitPrice    uint64        `mapstructure:"compute_unit_price"`
}

// WalletConfig names the signer: a base58 key or a solana-keygen file.
type WalletConfig struct {
	PrivateKey string `mapstructure:"private_key"`
	Keypair    string `mapstructure:"keypair"`
}

type ProgramsConfig struct {
	Proxy            string `mapstructure:"proxy"`
	Whirlpool        string `mapstructure:"whirlpool"`
	WhirlpoolsConfig string `mapstructure:"whirlpools_config"`
}

// MarketConfig is the default pool, SOL/USDC at tick spacing 64.
type MarketConfig struct {
	MintA       string `mapstructure:"mint_a"`
	MintB       string `mapstructure:"mint_b"`
	DecimalsA   uint8  `mapstructure:"decimals_a"`
	DecimalsB   uint8  `mapstructure:"decimals_b"`
	TickSpacing uint16 `mapstructure:"tick_spacing"`
}

type SwapConfig struct {
	Amount           string `mapstructure:"amount"` // UI units of the input mint
	InputMint        string `mapstructure:"input_mint"`
	SlippageBps      uint64 `mapstructure:"slippage_bps"`
	EnforceThreshold bool   `mapstructure:"enforce_threshold"`
	QuoteSource      string `mapstructure:"quote_source"`
	WrapMethod       string `mapstructure:"wrap_method"`
	CloseWrapped     bool   `mapstructure:"close_wrapped"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console or json
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"` // empty disables the listener
}

// SetDefaults registers every key so that environment overrides are seen by
// Unmarshal even when no config file mentions them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("solana.rpc", "https://api.mainnet-beta.solana.com")
	v.SetDefault("solana.ws", "wss://api.mainnet-beta.solana.com")
	v.SetDefault("solana.blockhash_commitment", string(rpc.CommitmentConfirmed))
	v.SetDefault("solana.preflight_commitment", string(rpc.CommitmentProcessed))
	v.SetDefault("solana.confirm_commitment", string(rpc.CommitmentConfirmed))
	v.SetDefault("solana.confirm_timeout", 60*time.Second)
	v.SetDefault("solana.skip_preflight", true)
	v.SetDefault("solana.compute_unit_limit", 0)
	v.SetDefault("solana.compute_unit_price", 0)

	v.SetDefault("wallet.private_key", "")
	v.SetDefault("wallet.keypair", "")

	v.SetDefault("programs.proxy", "3pQ97qmmc4ifb75ZCUvXwk9Q7DtSuymzKknd7CnroLD1")
	v.SetDefault("programs.whirlpool", "whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc")
	v.SetDefault("programs.whirlpools_config", "2LecshUwdy9xi7meFgHtFJQNSKk4KdTrcpvaB56dP2NQ")

	v.SetDefault("market.mint_a", sol.WSOL.String())
	v.SetDefault("market.mint_b", "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	v.SetDefault("market.decimals_a", 9)
	v.SetDefault("market.decimals_b", 6)
	v.SetDefault("market.tick_spacing", 64)

	v.SetDefault("swap.amount", "1000")
	v.SetDefault("swap.input_mint", sol.WSOL.String())
	v.SetDefault("swap.slippage_bps", 0)
	v.SetDefault("swap.enforce_threshold", false)
	v.SetDefault("swap.quote_source", "sdk")
	v.SetDefault("swap.wrap_method", string(sol.WrapMethodKeypair))
	v.SetDefault("swap.close_wrapped", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("metrics.addr", "")
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// variable names used by the .env files of earlier swap tools
	_ = v.BindEnv("wallet.private_key", EnvPrefix+"_WALLET_PRIVATE_KEY", "SOLANA_PRIVATE_KEY")
	_ = v.BindEnv("solana.rpc", EnvPrefix+"_SOLANA_RPC", "SOLANA_RPC_URL")
	_ = v.BindEnv("solana.ws", EnvPrefix+"_SOLANA_WS", "SOLANA_WS_RPC_URL")
	return v
}

// Load reads .env, the optional config file and the environment into a Config.
// With an empty configPath, .orcacpi.yaml is looked up in the working
// directory and $HOME; not finding it is not an error.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	utils.LoadEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(".orcacpi")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
	}

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// Validate checks the values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if c.Solana.RPC == "" {
		return fmt.Errorf("solana.rpc is required")
	}
	for name, value := range map[string]string{
		"solana.blockhash_commitment": c.Solana.BlockhashCommitment,
		"solana.preflight_commitment": c.Solana.PreflightCommitment,
		"solana.confirm_commitment":   c.Solana.ConfirmCommitment,
	} {
		if _, err := ParseCommitment(value); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if c.Solana.ConfirmTimeout <= 0 {
		return fmt.Errorf("solana.confirm_timeout must be positive")
	}
	for name, value := range map[string]string{
		"programs.proxy":             c.Programs.Proxy,
		"programs.whirlpool":         c.Programs.Whirlpool,
		"programs.whirlpools_config": c.Programs.WhirlpoolsConfig,
		"market.mint_a":              c.Market.MintA,
		"market.mint_b":              c.Market.MintB,
		"swap.input_mint":            c.Swap.InputMint,
	} {
		if _, err := solana.PublicKeyFromBase58(value); err != nil {
			return fmt.Errorf("%s: invalid public key %q: %w", name, value, err)
		}
	}
	if c.Market.TickSpacing == 0 {
		return fmt.Errorf("market.tick_spacing must be non-zero")
	}
	if c.Swap.SlippageBps > 10_000 {
		return fmt.Errorf("swap.slippage_bps must be at most 10000, got %d", c.Swap.SlippageBps)
	}
	if _, ok := sol.ParseWrapMethod(c.Swap.WrapMethod); !ok {
		return fmt.Errorf("swap.wrap_method: unknown method %q", c.Swap.WrapMethod)
	}
	return nil
}

// Signer loads the configured wallet, preferring the keypair file.
func (c *Config) Signer() (solana.PrivateKey, error) {
	if c.Wallet.Keypair != "" {
		return sol.LoadSigner(c.Wallet.Keypair)
	}
	return sol.LoadSigner(c.Wallet.PrivateKey)
}

// InputDecimals returns the decimals of the configured input mint.
func (c *Config) InputDecimals() (uint8, error) {
	switch c.Swap.InputMint {
	case c.Market.MintA:
		return c.Market.DecimalsA, nil
	case c.Market.MintB:
		return c.Market.DecimalsB, nil
	}
	return 0, fmt.Errorf("input mint %s is not one of the market mints", c.Swap.InputMint)
}

// ParseCommitment accepts processed, confirmed or finalized.
func ParseCommitment(s string) (rpc.CommitmentType, error) {
	switch c := rpc.CommitmentType(strings.ToLower(s)); c {
	case rpc.CommitmentProcessed, rpc.CommitmentConfirmed, rpc.CommitmentFinalized:
		return c, nil
	}
	return "", fmt.Errorf("unknown commitment %q", s)
}
