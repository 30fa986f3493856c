package verify

import (
	"fmt"
	"time"
)

// Stage is a state of the verification run.
type Stage int

const (
	StageInit Stage = iota
	StageResolveMarket
	StageResolveAccounts
	StageBuildSwap
	StageQuote
	StageSubmit
	StageConfirm
	StageVerify
	StagePass
	StageFail
)

var stageNames = [...]string{
	StageInit:            "INIT",
	StageResolveMarket:   "RESOLVE_MARKET",
	StageResolveAccounts: "RESOLVE_ACCOUNTS",
	StageBuildSwap:       "BUILD_SWAP",
	StageQuote:           "QUOTE",
	StageSubmit:          "SUBMIT",
	StageConfirm:         "CONFIRM",
	StageVerify:          "VERIFY",
	StagePass:            "PASS",
	StageFail:            "FAIL",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("STAGE(%d)", int(s))
	}
	return stageNames[s]
}

func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether the run ends in s.
func (s Stage) Terminal() bool {
	return s == StagePass || s == StageFail
}

// defaultKind classifies an unclassified failure by the stage it happened in.
func (s Stage) defaultKind() Kind {
	switch s {
	case StageInit, StageResolveMarket, StageResolveAccounts:
		return KindResolution
	case StageBuildSwap, StageQuote:
		return KindBuild
	case StageSubmit, StageConfirm:
		return KindSubmission
	}
	return KindMismatch
}

// StageRecord is one entry of the run history.
type StageRecord struct {
	Stage     Stage         `json:"stage" yaml:"stage"`
	StartedAt time.Time     `json:"started_at" yaml:"started_at"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
	Error     string        `json:"error,omitempty" yaml:"error,omitempty"`
}
