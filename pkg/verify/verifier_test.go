package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/Solana-ZH/orcacpi/internal/orcatest"
	"github.com/Solana-ZH/orcacpi/pkg/orcacpi"
	"github.com/Solana-ZH/orcacpi/pkg/pool/orca"
	"github.com/Solana-ZH/orcacpi/pkg/protocol"
	"github.com/Solana-ZH/orcacpi/pkg/sol"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

var usdcMint = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")

// fakeToolkit records calls and serves canned results.
type fakeToolkit struct {
	calls []string

	marketErr   error
	accountsErr error
	buildErr    error
	quoteErr    error
	balanceErr  error
	submitErr   error
	confirmErr  error
	logsErr     error

	quoteOut uint64
	drift    *Drift
	balances []uint64
}

func newFakeToolkit() *fakeToolkit {
	return &fakeToolkit{
		quoteOut: orcatest.SwapAmountOut,
		balances: []uint64{5_000, 5_000 + orcatest.SwapAmountOut},
	}
}

func (f *fakeToolkit) ResolveMarket(_ context.Context, req *Request) (*Market, error) {
	f.calls = append(f.calls, "market")
	if f.marketErr != nil {
		return nil, f.marketErr
	}
	pool := orcatest.NewPool(sol.WSOL, usdcMint)
	return &Market{
		Snapshot:   &protocol.MarketSnapshot{Address: pool.PoolId, Pool: pool, Slot: 10},
		AToB:       true,
		InputMint:  sol.WSOL,
		OutputMint: usdcMint,
	}, nil
}

func (f *fakeToolkit) ResolveAccounts(context.Context, *Request, *Market) (*Accounts, error) {
	f.calls = append(f.calls, "accounts")
	if f.accountsErr != nil {
		return nil, f.accountsErr
	}
	return &Accounts{
		Owner:  solana.NewWallet().PublicKey(),
		Input:  &sol.ResolvedTokenAccount{Address: solana.NewWallet().PublicKey(), Mint: sol.WSOL},
		Output: &sol.ResolvedTokenAccount{Address: solana.NewWallet().PublicKey(), Mint: usdcMint, Exists: true},
	}, nil
}

func (f *fakeToolkit) BuildSwap(_ context.Context, req *Request, m *Market, a *Accounts) (*SwapPlan, error) {
	f.calls = append(f.calls, "build")
	if f.buildErr != nil {
		return nil, f.buildErr
	}
	return &SwapPlan{
		Program:       orcacpi.PROGRAM_ID,
		Args:          orca.SwapArgs{Amount: req.Amount, AmountSpecifiedIsInput: true, AToB: m.AToB},
		OutputAccount: a.Output.Address,
		OutputMint:    m.OutputMint,
	}, nil
}

func (f *fakeToolkit) Quote(context.Context, *Request, *Market, *SwapPlan) (*Quote, error) {
	f.calls = append(f.calls, "quote")
	if f.quoteErr != nil {
		return nil, f.quoteErr
	}
	return &Quote{Source: QuoteSourceSDK, EstimatedAmountIn: orcatest.SwapAmount, EstimatedAmountOut: f.quoteOut, Slot: 11, Drift: f.drift}, nil
}

func (f *fakeToolkit) Balance(_ context.Context, account, mint solana.PublicKey) (*sol.BalanceSnapshot, error) {
	f.calls = append(f.calls, "balance")
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	amount := f.balances[0]
	f.balances = f.balances[1:]
	return &sol.BalanceSnapshot{Account: account, Mint: mint, Amount: amount, Decimals: 6, Exists: true}, nil
}

func (f *fakeToolkit) Submit(context.Context, *SwapPlan) (solana.Signature, error) {
	f.calls = append(f.calls, "submit")
	if f.submitErr != nil {
		return solana.Signature{}, f.submitErr
	}
	return solana.Signature{7}, nil
}

func (f *fakeToolkit) Confirm(_ context.Context, sig solana.Signature) (*sol.Confirmation, error) {
	f.calls = append(f.calls, "confirm")
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	return &sol.Confirmation{Signature: sig, Slot: 12}, nil
}

func (f *fakeToolkit) Logs(context.Context, solana.Signature, *SwapPlan) (*orcacpi.ProxyLogs, error) {
	f.calls = append(f.calls, "logs")
	if f.logsErr != nil {
		return nil, f.logsErr
	}
	return &orcacpi.ProxyLogs{ProxyInvoked: true, CPIInvoked: true, WhirlpoolInvoked: true}, nil
}

func testRequest() *Request {
	return &Request{
		Market: protocol.MarketKey{
			ConfigID:    orca.ORCA_WHIRLPOOLS_CONFIG,
			MintA:       sol.WSOL,
			MintB:       usdcMint,
			TickSpacing: orcatest.TickSpacing,
		},
		InputMint: sol.WSOL,
		Amount:    orcatest.SwapAmount,
		Slippage:  orca.ZeroSlippage(),
	}
}

func stagesOf(r *Report) []Stage {
	out := make([]Stage, 0, len(r.Stages))
	for _, s := range r.Stages {
		out = append(out, s.Stage)
	}
	return out
}

func TestVerifierPass(t *testing.T) {
	tk := newFakeToolkit()
	report, err := NewVerifier(tk).Run(context.Background(), testRequest())
	require.NoError(t, err)

	assert.True(t, report.Passed())
	assert.Equal(t, []Stage{
		StageResolveMarket, StageResolveAccounts, StageBuildSwap, StageQuote,
		StageSubmit, StageConfirm, StageVerify, StagePass,
	}, stagesOf(report))
	assert.Equal(t, []string{"market", "accounts", "build", "quote", "balance", "submit", "confirm", "balance", "logs"}, tk.calls)
	assert.Equal(t, fmt.Sprint(orcatest.SwapAmountOut), report.Delta)
	assert.Equal(t, "986.341632", report.DeltaUI)
	assert.Equal(t, solana.Signature{7}.String(), report.Signature)
	assert.Equal(t, uint64(12), report.ConfirmedSlot)
	assert.Equal(t, usdcMint.String(), report.Request.OutputMint)
	assert.True(t, report.Request.AToB)
	assert.NotEmpty(t, report.RunID)
	require.NotNil(t, report.ProxyLogs)
	assert.True(t, report.ProxyLogs.CPIInvoked)
	assert.Empty(t, report.ErrorKind)
}

func TestVerifierMismatch(t *testing.T) {
	tk := newFakeToolkit()
	tk.balances = []uint64{0, orcatest.SwapAmountOut - 1}

	report, err := NewVerifier(tk).Run(context.Background(), testRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMismatch)
	assert.Equal(t, KindMismatch, KindOf(err))
	assert.Equal(t, StageFail, report.Outcome)
	assert.Equal(t, KindMismatch, report.ErrorKind)
	assert.Equal(t, fmt.Sprint(orcatest.SwapAmountOut-1), report.Delta)
	assert.NotContains(t, report.Error, "market moved")
}

func TestVerifierMismatchNotesDrift(t *testing.T) {
	tk := newFakeToolkit()
	tk.balances = []uint64{0, 1}
	tk.drift = &Drift{BuildTickIndex: 0, QuoteTickIndex: -64}

	_, err := NewVerifier(tk).Run(context.Background(), testRequest())
	assert.ErrorIs(t, err, ErrMismatch)
	assert.Contains(t, err.Error(), "market moved")
}

func TestVerifierNegativeDeltaIsMismatch(t *testing.T) {
	tk := newFakeToolkit()
	tk.balances = []uint64{100, 40}

	report, err := NewVerifier(tk).Run(context.Background(), testRequest())
	assert.ErrorIs(t, err, ErrMismatch)
	assert.Equal(t, "-60", report.Delta)
}

func TestVerifierClassifiesFailures(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name   string
		setup  func(*fakeToolkit)
		kind   Kind
		stage  Stage
		target error
		calls  int
	}{
		{"market missing", func(f *fakeToolkit) { f.marketErr = fmt.Errorf("x: %w", protocol.ErrMarketNotFound) }, KindResolution, StageResolveMarket, protocol.ErrMarketNotFound, 1},
		{"accounts", func(f *fakeToolkit) { f.accountsErr = boom }, KindResolution, StageResolveAccounts, boom, 2},
		{"build", func(f *fakeToolkit) { f.buildErr = orca.ErrTickArraySequence }, KindBuild, StageBuildSwap, orca.ErrTickArraySequence, 3},
		{"quote", func(f *fakeToolkit) { f.quoteErr = boom }, KindBuild, StageQuote, boom, 4},
		{"submit", func(f *fakeToolkit) { f.submitErr = boom }, KindSubmission, StageSubmit, boom, 6},
		{"pre balance", func(f *fakeToolkit) { f.balanceErr = boom }, KindResolution, StageSubmit, boom, 5},
		{"landed with error", func(f *fakeToolkit) { f.confirmErr = fmt.Errorf("%w: custom 6017", sol.ErrTransactionFailed) }, KindSubmission, StageConfirm, sol.ErrTransactionFailed, 7},
		{"confirm timeout", func(f *fakeToolkit) { f.confirmErr = fmt.Errorf("%w: sig", sol.ErrConfirmationTimeout) }, KindConfirmation, StageConfirm, sol.ErrConfirmationTimeout, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := newFakeToolkit()
			tt.setup(tk)

			report, err := NewVerifier(tk).Run(context.Background(), testRequest())
			require.Error(t, err)
			var verr *Error
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.kind, verr.Kind)
			assert.Equal(t, tt.stage, verr.Stage)
			assert.ErrorIs(t, err, tt.target)
			assert.Len(t, tk.calls, tt.calls)

			assert.Equal(t, StageFail, report.Outcome)
			assert.Equal(t, tt.kind, report.ErrorKind)
			stages := stagesOf(report)
			assert.Equal(t, StageFail, stages[len(stages)-1])
			assert.Equal(t, tt.stage, stages[len(stages)-2])
			assert.NotEmpty(t, report.Stages[len(stages)-2].Error)
		})
	}
}

func TestVerifierLogsAreOptional(t *testing.T) {
	tk := newFakeToolkit()
	tk.logsErr = errors.New("transaction not found")

	report, err := NewVerifier(tk).Run(context.Background(), testRequest())
	require.NoError(t, err)
	assert.True(t, report.Passed())
	assert.Nil(t, report.ProxyLogs)
}

func TestVerifierDryRunStopsAfterQuote(t *testing.T) {
	tk := newFakeToolkit()
	req := testRequest()
	req.DryRun = true

	report, err := NewVerifier(tk).Run(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, []string{"market", "accounts", "build", "quote"}, tk.calls)
	assert.Equal(t, StagePass, report.Outcome)
	require.NotNil(t, report.Quote)
	assert.Equal(t, orcatest.SwapAmountOut, report.Quote.EstimatedAmountOut)
}

func TestVerifierRejectsInvalidRequest(t *testing.T) {
	tk := newFakeToolkit()
	req := testRequest()
	req.Amount = 0
	_, err := NewVerifier(tk).Run(context.Background(), req)
	assert.ErrorIs(t, err, ErrBuild)
	assert.ErrorIs(t, err, orca.ErrZeroTradableAmount)

	req = testRequest()
	req.InputMint = solana.NewWallet().PublicKey()
	report, err := NewVerifier(tk).Run(context.Background(), req)
	assert.ErrorIs(t, err, orca.ErrInputMintNotInPool)
	assert.Equal(t, []Stage{StageFail}, stagesOf(report))
	assert.Empty(t, tk.calls)
}

func TestReportRender(t *testing.T) {
	report, err := NewVerifier(newFakeToolkit()).Run(context.Background(), testRequest())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, report.Render(&buf, "yaml"))
	var asYAML map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &asYAML))
	assert.Equal(t, "PASS", asYAML["outcome"])
	assert.Equal(t, report.RunID, asYAML["run_id"])

	buf.Reset()
	require.NoError(t, report.Render(&buf, "json"))
	var asJSON map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &asJSON))
	assert.Equal(t, "PASS", asJSON["outcome"])
	stages, ok := asJSON["stages"].([]any)
	require.True(t, ok)
	assert.Len(t, stages, 8)

	assert.Error(t, report.Render(&buf, "toml"))
}

func TestErrorIsComparesKind(t *testing.T) {
	err := NewError(KindBuild, StageBuildSwap, "bad", orca.ErrTickArraySequence)
	assert.ErrorIs(t, err, ErrBuild)
	assert.NotErrorIs(t, err, ErrResolution)
	assert.ErrorIs(t, err, orca.ErrTickArraySequence)
	assert.Equal(t, KindBuild, KindOf(fmt.Errorf("wrapped: %w", err)))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Equal(t, "BUILD_ERROR at BUILD_SWAP: bad: "+orca.ErrTickArraySequence.Error(), err.Error())
}

func TestStageNames(t *testing.T) {
	assert.Equal(t, "RESOLVE_ACCOUNTS", StageResolveAccounts.String())
	assert.Equal(t, "STAGE(42)", Stage(42).String())
	assert.True(t, StagePass.Terminal())
	assert.True(t, StageFail.Terminal())
	assert.False(t, StageVerify.Terminal())
}
