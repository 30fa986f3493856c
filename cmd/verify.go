package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Solana-ZH/orcacpi/internal/config"
	"github.com/Solana-ZH/orcacpi/pkg/protocol"
	"github.com/Solana-ZH/orcacpi/pkg/sol"
	"github.com/Solana-ZH/orcacpi/pkg/verify"
	"github.com/Solana-ZH/orcacpi/utils"
	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
)

var (
	direct bool
	output string
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Swap through the proxy program and check the balance change against the quote",
	Long: `Resolve the market and token accounts, build the proxy swap, quote it,
submit, wait for confirmation and compare the output balance change with the
quoted amount. The report is printed to stdout; the exit status is non-zero
unless the run passes.

Example:
  orcacpi verify --amount 1000
  orcacpi verify --amount 25 --input-mint EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v -o json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runVerify(cmd, false)
	},
}

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Resolve, build and quote the swap without submitting it",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runVerify(cmd, true)
	},
}

func init() {
	for _, c := range []*cobra.Command{verifyCmd, quoteCmd} {
		rootCmd.AddCommand(c)

		flags := c.Flags()
		flags.String("amount", "", "input amount in UI units of the input mint")
		flags.String("input-mint", "", "mint sold by the swap, one of the market mints")
		flags.Uint64("slippage-bps", 0, "slippage applied to the quote threshold")
		flags.Bool("enforce-threshold", false, "send the slippage threshold instead of zero")
		flags.String("quote-source", "", "sdk or simulate")
		flags.String("wrap-method", "", "keypair or ata")
		flags.BoolVar(&direct, "direct", false, "call the whirlpool program directly instead of the proxy")
		flags.StringVarP(&output, "output", "o", "yaml", "report format (yaml, json)")

		localFlagKeys[c] = map[string]string{
			"amount":            "swap.amount",
			"input-mint":        "swap.input_mint",
			"slippage-bps":      "swap.slippage_bps",
			"enforce-threshold": "swap.enforce_threshold",
			"quote-source":      "swap.quote_source",
			"wrap-method":       "swap.wrap_method",
		}
	}
}

func runVerify(cmd *cobra.Command, dryRun bool) error {
	ctx, stop := runContext(cmd)
	defer stop()
	startMetrics(ctx)

	req, err := newRequest(cfg, dryRun)
	if err != nil {
		return err
	}
	signer, err := cfg.Signer()
	if err != nil {
		return err
	}
	wsEndpoint := cfg.Solana.WS
	if dryRun {
		wsEndpoint = ""
	}
	client, err := sol.NewClient(ctx, cfg.Solana.RPC, wsEndpoint)
	if err != nil {
		return err
	}
	defer client.Close()

	toolkit, err := newToolkit(client, signer, cfg)
	if err != nil {
		return err
	}
	log := utils.Logger("cmd")
	log.Info().
		Str("owner", signer.PublicKey().String()).
		Str("input_mint", req.InputMint.String()).
		Uint64("amount", req.Amount).
		Bool("dry_run", dryRun).
		Msg("starting verification")

	report, runErr := verify.NewVerifier(toolkit).Run(ctx, req)
	if err := report.Render(cmd.OutOrStdout(), output); err != nil {
		return err
	}
	return runErr
}

func newRequest(cfg *config.Config, dryRun bool) (*verify.Request, error) {
	decimals, err := cfg.InputDecimals()
	if err != nil {
		return nil, err
	}
	amount, err := verify.ParseUIAmount(cfg.Swap.Amount, decimals)
	if err != nil {
		return nil, err
	}
	source, err := verify.ParseQuoteSource(cfg.Swap.QuoteSource)
	if err != nil {
		return nil, err
	}
	return &verify.Request{
		Market:           marketKey(cfg),
		InputMint:        solana.MustPublicKeyFromBase58(cfg.Swap.InputMint),
		Amount:           amount,
		Slippage:         verify.SlippageFromBps(cfg.Swap.SlippageBps),
		EnforceThreshold: cfg.Swap.EnforceThreshold,
		Direct:           direct,
		QuoteSource:      source,
		DryRun:           dryRun,
	}, nil
}

func marketKey(cfg *config.Config) protocol.MarketKey {
	return protocol.MarketKey{
		ProgramID:   solana.MustPublicKeyFromBase58(cfg.Programs.Whirlpool),
		ConfigID:    solana.MustPublicKeyFromBase58(cfg.Programs.WhirlpoolsConfig),
		MintA:       solana.MustPublicKeyFromBase58(cfg.Market.MintA),
		MintB:       solana.MustPublicKeyFromBase58(cfg.Market.MintB),
		TickSpacing: cfg.Market.TickSpacing,
	}
}

func newToolkit(client *sol.Client, signer solana.PrivateKey, cfg *config.Config) (*verify.WhirlpoolToolkit, error) {
	opts := verify.DefaultWhirlpoolOptions()
	opts.ProxyProgramID = solana.MustPublicKeyFromBase58(cfg.Programs.Proxy)
	opts.WrapMethod = sol.WrapMethod(cfg.Swap.WrapMethod)
	opts.CloseWrapped = cfg.Swap.CloseWrapped
	opts.ComputeBudget = sol.ComputeBudget{
		UnitLimit: cfg.Solana.ComputeUnitLimit,
		UnitPrice: cfg.Solana.ComputeUnitPrice,
	}
	opts.ConfirmTimeout = cfg.Solana.ConfirmTimeout
	opts.Send.SkipPreflight = cfg.Solana.SkipPreflight

	var err error
	if opts.BlockhashCommitment, err = config.ParseCommitment(cfg.Solana.BlockhashCommitment); err != nil {
		return nil, err
	}
	if opts.ConfirmCommitment, err = config.ParseCommitment(cfg.Solana.ConfirmCommitment); err != nil {
		return nil, err
	}
	if opts.Send.PreflightCommitment, err = config.ParseCommitment(cfg.Solana.PreflightCommitment); err != nil {
		return nil, err
	}

	toolkit := verify.NewWhirlpoolToolkit(client, signer, opts)
	toolkit.Protocol().ProgramID = solana.MustPublicKeyFromBase58(cfg.Programs.Whirlpool)
	return toolkit, nil
}

// runContext is the command context cancelled on SIGINT/SIGTERM.
func runContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}
