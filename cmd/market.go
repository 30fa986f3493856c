package cmd

import (
	"fmt"

	"github.com/Solana-ZH/orcacpi/pkg/protocol"
	"github.com/Solana-ZH/orcacpi/pkg/sol"
	"github.com/Solana-ZH/orcacpi/pkg/verify"
	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var marketCmd = &cobra.Command{
	Use:   "market",
	Short: "Resolve the configured whirlpool and print its state and tick array window",
	RunE:  runMarket,
}

func init() {
	rootCmd.AddCommand(marketCmd)
}

type marketView struct {
	Market        *verify.MarketReport `yaml:"market"`
	AToB          []string             `yaml:"tick_arrays_a_to_b"`
	BToA          []string             `yaml:"tick_arrays_b_to_a"`
	Uninitialized []string             `yaml:"uninitialized,omitempty"`
}

func runMarket(cmd *cobra.Command, _ []string) error {
	ctx, stop := runContext(cmd)
	defer stop()

	client, err := sol.NewClient(ctx, cfg.Solana.RPC, "")
	if err != nil {
		return err
	}
	defer client.Close()

	whirlpools := protocol.NewOrcaWhirlpool(client)
	whirlpools.ProgramID = solana.MustPublicKeyFromBase58(cfg.Programs.Whirlpool)
	snapshot, err := whirlpools.ResolveMarket(ctx, marketKey(cfg), protocol.FetchIgnoreCache)
	if err != nil {
		return err
	}

	view := marketView{Market: verify.NewMarketReport(&verify.Market{Snapshot: snapshot})}
	for _, aToB := range []bool{true, false} {
		window, err := whirlpools.FetchTickArrays(ctx, snapshot, aToB, protocol.FetchIgnoreCache)
		if err != nil {
			return fmt.Errorf("failed to fetch tick arrays: %w", err)
		}
		addrs := make([]string, len(window.Addresses))
		for i, a := range window.Addresses {
			addrs[i] = a.String()
		}
		if aToB {
			view.AToB = addrs
		} else {
			view.BToA = addrs
		}
		for _, missing := range window.Missing() {
			view.Uninitialized = appendUnique(view.Uninitialized, missing)
		}
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(view); err != nil {
		return err
	}
	return enc.Close()
}

func appendUnique(list []string, key solana.PublicKey) []string {
	s := key.String()
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}
