package cmd

import (
	"fmt"
	"text/tabwriter"

	"cosmossdk.io/math"
	"github.com/Solana-ZH/orcacpi/pkg/pool/orca"
	"github.com/Solana-ZH/orcacpi/pkg/protocol"
	"github.com/Solana-ZH/orcacpi/pkg/router"
	"github.com/Solana-ZH/orcacpi/pkg/sol"
	"github.com/Solana-ZH/orcacpi/pkg/verify"
	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
)

var poolsCmd = &cobra.Command{
	Use:   "pools",
	Short: "List the whirlpools of the configured pair and quote the swap amount on each",
	RunE:  runPools,
}

func init() {
	rootCmd.AddCommand(poolsCmd)

	poolsCmd.Flags().String("amount", "", "input amount in UI units of the input mint")
	poolsCmd.Flags().String("input-mint", "", "mint sold by the swap, one of the market mints")
	localFlagKeys[poolsCmd] = map[string]string{
		"amount":     "swap.amount",
		"input-mint": "swap.input_mint",
	}
}

func runPools(cmd *cobra.Command, _ []string) error {
	ctx, stop := runContext(cmd)
	defer stop()

	client, err := sol.NewClient(ctx, cfg.Solana.RPC, "")
	if err != nil {
		return err
	}
	defer client.Close()

	whirlpools := protocol.NewOrcaWhirlpool(client)
	whirlpools.ProgramID = solana.MustPublicKeyFromBase58(cfg.Programs.Whirlpool)
	r := router.NewSimpleRouter(whirlpools)

	pools, err := r.QueryAllPools(ctx, cfg.Market.MintA, cfg.Market.MintB)
	if err != nil {
		return err
	}
	if len(pools) == 0 {
		return fmt.Errorf("no whirlpool found for %s/%s", cfg.Market.MintA, cfg.Market.MintB)
	}

	decimals, err := cfg.InputDecimals()
	if err != nil {
		return err
	}
	amount, err := verify.ParseUIAmount(cfg.Swap.Amount, decimals)
	if err != nil {
		return err
	}
	amountIn := math.NewIntFromUint64(amount)

	ranked := r.Rank(ctx, client.RpcClient, cfg.Swap.InputMint, amountIn)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "POOL\tTICK SPACING\tFEE RATE\tTICK\tQUOTE OUT")
	for _, q := range ranked {
		var spacing, fee uint16
		var tick int32
		if wp, ok := q.Pool.(*orca.WhirlpoolPool); ok {
			spacing, fee, tick = wp.TickSpacing, wp.FeeRate, wp.TickCurrentIndex
		}
		out := q.AmountOut.String()
		if q.Err != nil {
			out = "-"
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\n", q.Pool.GetID(), spacing, fee, tick, out)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	best, out, err := router.Best(ranked, cfg.Swap.InputMint, outputMint())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nbest: %s (%s out for %s in)\n", best.GetID(), out, amountIn)
	return nil
}

func outputMint() string {
	if cfg.Swap.InputMint == cfg.Market.MintA {
		return cfg.Market.MintB
	}
	return cfg.Market.MintA
}
