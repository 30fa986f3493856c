// Package verify runs a swap end to end and checks that the output balance
// moved by exactly the quoted amount.
//
// A run walks INIT, RESOLVE_MARKET, RESOLVE_ACCOUNTS, BUILD_SWAP, QUOTE,
// SUBMIT, CONFIRM and VERIFY in order and stops at PASS or FAIL. Nothing is
// retried; the first error ends the run.
package verify

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/Solana-ZH/orcacpi/pkg/metrics"
	"github.com/Solana-ZH/orcacpi/pkg/sol"
	"github.com/Solana-ZH/orcacpi/utils"
	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Verifier drives runs against a Toolkit.
type Verifier struct {
	toolkit Toolkit
	now     func() time.Time
}

func NewVerifier(toolkit Toolkit) *Verifier {
	return &Verifier{toolkit: toolkit, now: time.Now}
}

type run struct {
	v      *Verifier
	log    zerolog.Logger
	report *Report
	stage  Stage
	since  time.Time
}

// Run executes req. The report is always returned; the error is an *Error
// whenever the outcome is FAIL.
func (v *Verifier) Run(ctx context.Context, req *Request) (*Report, error) {
	runID := uuid.NewString()
	r := &run{
		v:   v,
		log: utils.Logger("verify").With().Str("run_id", runID).Logger(),
		report: &Report{
			RunID:     runID,
			StartedAt: v.now(),
			Request:   newRequestReport(req),
		},
		stage: StageInit,
		since: v.now(),
	}
	if err := req.validate(); err != nil {
		return r.fail(NewError(KindBuild, StageInit, "invalid request", err))
	}
	r.report.DryRun = req.DryRun

	var market *Market
	if err := r.step(StageResolveMarket, func() (err error) {
		market, err = v.toolkit.ResolveMarket(ctx, req)
		return err
	}); err != nil {
		return r.fail(err)
	}
	r.report.Market = NewMarketReport(market)
	r.report.Request.AToB = market.AToB
	r.report.Request.OutputMint = market.OutputMint.String()

	var accounts *Accounts
	if err := r.step(StageResolveAccounts, func() (err error) {
		accounts, err = v.toolkit.ResolveAccounts(ctx, req, market)
		return err
	}); err != nil {
		return r.fail(err)
	}
	r.report.Accounts = newAccountsReport(accounts)

	var plan *SwapPlan
	if err := r.step(StageBuildSwap, func() (err error) {
		plan, err = v.toolkit.BuildSwap(ctx, req, market, accounts)
		return err
	}); err != nil {
		return r.fail(err)
	}
	r.report.Request.Program = plan.Program.String()

	var quote *Quote
	if err := r.step(StageQuote, func() (err error) {
		quote, err = v.toolkit.Quote(ctx, req, market, plan)
		return err
	}); err != nil {
		return r.fail(err)
	}
	r.report.Quote = quote
	metrics.QuotedAmountOut.Set(float64(quote.EstimatedAmountOut))
	if quote.Drift.Moved() {
		metrics.MarketDrift.Inc()
	}
	r.log.Info().
		Str("source", string(quote.Source)).
		Uint64("estimated_amount_out", quote.EstimatedAmountOut).
		Uint64("other_amount_threshold", quote.OtherAmountThreshold).
		Uint64("slot", quote.Slot).
		Msg("quote computed")
	if req.DryRun {
		return r.pass()
	}

	var sig solana.Signature
	if err := r.step(StageSubmit, func() (err error) {
		pre, err := v.toolkit.Balance(ctx, plan.OutputAccount, plan.OutputMint)
		if err != nil {
			return NewError(KindResolution, StageSubmit, "failed to read output balance before submission", err)
		}
		r.report.PreBalance = pre
		sig, err = v.toolkit.Submit(ctx, plan)
		if err != nil {
			return err
		}
		r.report.Signature = sig.String()
		return nil
	}); err != nil {
		return r.fail(err)
	}

	if err := r.step(StageConfirm, func() error {
		conf, err := v.toolkit.Confirm(ctx, sig)
		if err != nil {
			return err
		}
		r.report.ConfirmedSlot = conf.Slot
		return nil
	}); err != nil {
		return r.fail(err)
	}

	if err := r.step(StageVerify, func() error {
		post, err := v.toolkit.Balance(ctx, plan.OutputAccount, plan.OutputMint)
		if err != nil {
			return NewError(KindResolution, StageVerify, "failed to read output balance after confirmation", err)
		}
		r.report.PostBalance = post

		if logs, err := v.toolkit.Logs(ctx, sig, plan); err != nil {
			r.log.Warn().Err(err).Str("signature", sig.String()).Msg("failed to fetch transaction logs")
		} else {
			r.report.ProxyLogs = logs
		}

		delta := new(big.Int).Sub(
			new(big.Int).SetUint64(post.Amount),
			new(big.Int).SetUint64(r.report.PreBalance.Amount),
		)
		r.report.setDelta(delta, post.Decimals)
		if delta.IsUint64() {
			metrics.ObservedAmountOut.Set(float64(delta.Uint64()))
		}
		return checkDelta(delta, quote)
	}); err != nil {
		return r.fail(err)
	}
	return r.pass()
}

func checkDelta(delta *big.Int, quote *Quote) error {
	want := new(big.Int).SetUint64(quote.EstimatedAmountOut)
	if delta.Cmp(want) == 0 {
		return nil
	}
	msg := fmt.Sprintf("output balance changed by %s, quoted %s", delta, want)
	if quote.Drift.Moved() {
		msg += " (market moved between build and quote)"
	}
	return NewError(KindMismatch, StageVerify, msg, nil)
}

func (r *run) step(stage Stage, fn func() error) error {
	r.enter(stage)
	err := fn()
	r.leave(err)
	if err != nil {
		return classify(stage, err)
	}
	return nil
}

func (r *run) enter(stage Stage) {
	r.stage = stage
	r.since = r.v.now()
	r.log.Debug().Stringer("stage", stage).Msg("stage started")
}

func (r *run) leave(err error) {
	d := r.v.now().Sub(r.since)
	rec := StageRecord{Stage: r.stage, StartedAt: r.since, Duration: d}
	if err != nil {
		rec.Error = err.Error()
	}
	r.report.Stages = append(r.report.Stages, rec)
	metrics.RecordStage(r.stage.String(), d)
}

func (r *run) finish(outcome Stage) {
	now := r.v.now()
	r.report.Outcome = outcome
	r.report.FinishedAt = now
	r.report.Stages = append(r.report.Stages, StageRecord{Stage: outcome, StartedAt: now})
	metrics.RecordRun(outcome.String(), string(r.report.ErrorKind))
}

func (r *run) pass() (*Report, error) {
	r.finish(StagePass)
	r.log.Info().
		Str("signature", r.report.Signature).
		Str("delta", r.report.Delta).
		Bool("dry_run", r.report.DryRun).
		Msg("verification passed")
	return r.report, nil
}

func (r *run) fail(err error) (*Report, error) {
	verr := classify(r.stage, err)
	r.report.ErrorKind = verr.Kind
	r.report.Error = verr.Error()
	r.finish(StageFail)
	r.log.Error().Err(verr).Str("kind", string(verr.Kind)).Stringer("stage", verr.Stage).Msg("verification failed")
	return r.report, verr
}

// classify keeps errors the toolkit already classified and assigns the
// stage's kind to everything else.
func classify(stage Stage, err error) *Error {
	var verr *Error
	if errors.As(err, &verr) {
		return verr
	}
	kind := stage.defaultKind()
	if errors.Is(err, sol.ErrConfirmationTimeout) {
		kind = KindConfirmation
	}
	return NewError(kind, stage, stageFailure[stage], err)
}

var stageFailure = map[Stage]string{
	StageInit:            "invalid request",
	StageResolveMarket:   "failed to resolve market",
	StageResolveAccounts: "failed to resolve token accounts",
	StageBuildSwap:       "failed to build swap instruction",
	StageQuote:           "failed to quote swap",
	StageSubmit:          "failed to submit transaction",
	StageConfirm:         "failed to confirm transaction",
	StageVerify:          "failed to verify balance change",
}
