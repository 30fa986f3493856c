package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/Solana-ZH/orcacpi/internal/config"
	"github.com/Solana-ZH/orcacpi/pkg/metrics"
	"github.com/Solana-ZH/orcacpi/utils"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	v       = config.New()
	cfg     *config.Config

	// localFlagKeys binds a command's own flags when it is the one running,
	// since several commands share config keys.
	localFlagKeys = map[*cobra.Command]map[string]string{}
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "orcacpi",
	Short: "Verify Orca Whirlpool swaps routed through the proxy program",
	Long: `orcacpi builds an exact-input swap on an Orca Whirlpool, sends it through
the proxy program by CPI and checks that the output balance moved by exactly
the quoted amount.

Settings come from flags, ORCACPI_* environment variables, a .env file and
an optional .orcacpi.yaml, in that order of precedence.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./.orcacpi.yaml or $HOME/.orcacpi.yaml)")
	flags.String("rpc", "", "Solana RPC endpoint")
	flags.String("ws", "", "Solana WebSocket endpoint, empty to poll signature statuses")
	flags.String("keypair", "", "path of a solana-keygen keypair file")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (console, json)")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address")

	bindFlags(rootCmd, map[string]string{
		"rpc":          "solana.rpc",
		"ws":           "solana.ws",
		"keypair":      "wallet.keypair",
		"log-level":    "log.level",
		"log-format":   "log.format",
		"metrics-addr": "metrics.addr",
	}, true)
}

// bindFlags binds flag names to config keys.
func bindFlags(c *cobra.Command, keys map[string]string, persistent bool) {
	set := c.Flags()
	if persistent {
		set = c.PersistentFlags()
	}
	for flag, key := range keys {
		if err := v.BindPFlag(key, set.Lookup(flag)); err != nil {
			fmt.Fprintf(os.Stderr, "Error binding flag %s: %v\n", flag, err)
		}
	}
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	if keys, ok := localFlagKeys[cmd]; ok {
		bindFlags(cmd, keys, false)
	}
	loaded, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	if err := utils.InitLogger(loaded.Log.Level, loaded.Log.Format, os.Stderr); err != nil {
		return err
	}
	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if used := v.ConfigFileUsed(); used != "" {
		log := utils.Logger("cmd")
		log.Debug().Str("path", used).Msg("using config file")
	}
	cfg = loaded
	return nil
}

// startMetrics serves /metrics until ctx ends when an address is configured.
func startMetrics(ctx context.Context) {
	if cfg.Metrics.Addr == "" {
		return
	}
	go func() {
		if err := metrics.Serve(ctx, cfg.Metrics.Addr); err != nil {
			log := utils.Logger("cmd")
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()
}
