package verify

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/Solana-ZH/orcacpi/pkg/orcacpi"
	"github.com/Solana-ZH/orcacpi/pkg/sol"
	"gopkg.in/yaml.v3"
)

// Report is everything a run observed.
type Report struct {
	RunID      string    `json:"run_id" yaml:"run_id"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
	DryRun     bool      `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
	Outcome    Stage     `json:"outcome" yaml:"outcome"`
	ErrorKind  Kind      `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	Error      string    `json:"error,omitempty" yaml:"error,omitempty"`

	Request  RequestReport   `json:"request" yaml:"request"`
	Market   *MarketReport   `json:"market,omitempty" yaml:"market,omitempty"`
	Accounts *AccountsReport `json:"accounts,omitempty" yaml:"accounts,omitempty"`
	Quote    *Quote          `json:"quote,omitempty" yaml:"quote,omitempty"`

	PreBalance    *sol.BalanceSnapshot `json:"pre_balance,omitempty" yaml:"pre_balance,omitempty"`
	PostBalance   *sol.BalanceSnapshot `json:"post_balance,omitempty" yaml:"post_balance,omitempty"`
	Delta         string               `json:"delta,omitempty" yaml:"delta,omitempty"`
	DeltaUI       string               `json:"delta_ui,omitempty" yaml:"delta_ui,omitempty"`
	Signature     string               `json:"signature,omitempty" yaml:"signature,omitempty"`
	ConfirmedSlot uint64               `json:"confirmed_slot,omitempty" yaml:"confirmed_slot,omitempty"`
	ProxyLogs     *orcacpi.ProxyLogs   `json:"proxy_logs,omitempty" yaml:"proxy_logs,omitempty"`

	Stages []StageRecord `json:"stages" yaml:"stages"`
}

type RequestReport struct {
	InputMint        string `json:"input_mint" yaml:"input_mint"`
	OutputMint       string `json:"output_mint,omitempty" yaml:"output_mint,omitempty"`
	Amount           uint64 `json:"amount" yaml:"amount"`
	AToB             bool   `json:"a_to_b" yaml:"a_to_b"`
	Slippage         string `json:"slippage" yaml:"slippage"`
	SqrtPriceLimit   string `json:"sqrt_price_limit,omitempty" yaml:"sqrt_price_limit,omitempty"`
	EnforceThreshold bool   `json:"enforce_threshold" yaml:"enforce_threshold"`
	Direct           bool   `json:"direct" yaml:"direct"`
	QuoteSource      string `json:"quote_source" yaml:"quote_source"`
	Program          string `json:"program,omitempty" yaml:"program,omitempty"`
}

type MarketReport struct {
	Address          string `json:"address" yaml:"address"`
	Oracle           string `json:"oracle" yaml:"oracle"`
	MintA            string `json:"mint_a" yaml:"mint_a"`
	MintB            string `json:"mint_b" yaml:"mint_b"`
	TickSpacing      uint16 `json:"tick_spacing" yaml:"tick_spacing"`
	FeeRate          uint16 `json:"fee_rate" yaml:"fee_rate"`
	TickCurrentIndex int32  `json:"tick_current_index" yaml:"tick_current_index"`
	SqrtPrice        string `json:"sqrt_price" yaml:"sqrt_price"`
	Liquidity        string `json:"liquidity" yaml:"liquidity"`
	Slot             uint64 `json:"slot" yaml:"slot"`
}

type AccountsReport struct {
	Owner        string `json:"owner" yaml:"owner"`
	Input        string `json:"input" yaml:"input"`
	InputExists  bool   `json:"input_exists" yaml:"input_exists"`
	Output       string `json:"output" yaml:"output"`
	OutputExists bool   `json:"output_exists" yaml:"output_exists"`
	Setup        int    `json:"setup_instructions" yaml:"setup_instructions"`
	Cleanup      int    `json:"cleanup_instructions" yaml:"cleanup_instructions"`
}

func newRequestReport(req *Request) RequestReport {
	out := RequestReport{}
	if req == nil {
		return out
	}
	out.InputMint = req.InputMint.String()
	out.Amount = req.Amount
	out.Slippage = fmt.Sprintf("%d/%d", req.Slippage.Numerator, req.Slippage.Denominator)
	out.EnforceThreshold = req.EnforceThreshold
	out.Direct = req.Direct
	out.QuoteSource = string(req.QuoteSource)
	if out.QuoteSource == "" {
		out.QuoteSource = string(QuoteSourceSDK)
	}
	if !req.SqrtPriceLimit.IsZero() {
		out.SqrtPriceLimit = req.SqrtPriceLimit.String()
	}
	return out
}

// NewMarketReport summarizes the resolved pool.
func NewMarketReport(m *Market) *MarketReport {
	pool := m.Snapshot.Pool
	return &MarketReport{
		Address:          m.Snapshot.Address.String(),
		Oracle:           m.Snapshot.Oracle.String(),
		MintA:            pool.TokenMintA.String(),
		MintB:            pool.TokenMintB.String(),
		TickSpacing:      pool.TickSpacing,
		FeeRate:          pool.FeeRate,
		TickCurrentIndex: pool.TickCurrentIndex,
		SqrtPrice:        pool.SqrtPrice.String(),
		Liquidity:        pool.Liquidity.String(),
		Slot:             m.Snapshot.Slot,
	}
}

func newAccountsReport(a *Accounts) *AccountsReport {
	out := &AccountsReport{
		Owner:        a.Owner.String(),
		Input:        a.Input.Address.String(),
		InputExists:  a.Input.Exists,
		Output:       a.Output.Address.String(),
		OutputExists: a.Output.Exists,
	}
	for _, r := range []*sol.ResolvedTokenAccount{a.Input, a.Output} {
		out.Setup += len(r.Instructions)
		out.Cleanup += len(r.CleanupInstructions)
	}
	return out
}

func (r *Report) setDelta(delta *big.Int, decimals uint8) {
	r.Delta = delta.String()
	r.DeltaUI = FormatUIAmount(delta, decimals)
}

// Passed reports whether the run ended in PASS.
func (r *Report) Passed() bool {
	return r.Outcome == StagePass
}

// Render writes the report as "yaml" or "json".
func (r *Report) Render(w io.Writer, format string) error {
	switch strings.ToLower(format) {
	case "", "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		return nil
	}
	return fmt.Errorf("unknown report format %q", format)
}
