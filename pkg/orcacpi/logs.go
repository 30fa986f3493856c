package orcacpi

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
)

const cpiMarker = "CPI: whirlpool swap instruction"

var (
	invokePattern      = regexp.MustCompile(`^Program (\S+) invoke \[(\d+)\]`)
	failedPattern      = regexp.MustCompile(`^Program (\S+) failed: (.+)$`)
	consumedPattern    = regexp.MustCompile(`^Program (\S+) consumed (\d+) of \d+ compute units`)
	tickCurrentPattern = regexp.MustCompile(`^Program log: tick_current_index: (-?\d+)$`)
	startTickPattern   = regexp.MustCompile(`^Program log: start_tick_index: (-?\d+)$`)
)

// ProxyLogs is what the proxy program reports about a swap.
type ProxyLogs struct {
	ProxyInvoked     bool    `json:"proxy_invoked" yaml:"proxy_invoked"`
	WhirlpoolInvoked bool    `json:"whirlpool_invoked" yaml:"whirlpool_invoked"`
	CPIInvoked       bool    `json:"cpi_invoked" yaml:"cpi_invoked"`
	TickCurrentIndex *int32  `json:"tick_current_index,omitempty" yaml:"tick_current_index,omitempty"`
	StartTickIndex   *int32  `json:"start_tick_index,omitempty" yaml:"start_tick_index,omitempty"`
	ComputeUnits     *uint64 `json:"compute_units,omitempty" yaml:"compute_units,omitempty"`
	Failure          string  `json:"failure,omitempty" yaml:"failure,omitempty"`
}

// ParseProxyLogs extracts the proxy program's messages from transaction logs.
// Messages are only attributed to the proxy while it is the innermost
// invoked program, so logs of the whirlpool program are never mistaken for
// proxy output.
func ParseProxyLogs(proxyProgram, whirlpoolProgram solana.PublicKey, logs []string) ProxyLogs {
	var out ProxyLogs
	proxyID := proxyProgram.String()
	whirlpoolID := whirlpoolProgram.String()

	var stack []string
	for _, line := range logs {
		line = strings.TrimSpace(line)

		if m := invokePattern.FindStringSubmatch(line); m != nil {
			stack = append(stack, m[1])
			switch m[1] {
			case proxyID:
				out.ProxyInvoked = true
			case whirlpoolID:
				if len(stack) > 1 && stack[len(stack)-2] == proxyID {
					out.WhirlpoolInvoked = true
				}
			}
			continue
		}
		if strings.HasSuffix(line, " success") && strings.HasPrefix(line, "Program ") {
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			continue
		}
		if m := failedPattern.FindStringSubmatch(line); m != nil {
			if m[1] == proxyID {
				out.Failure = m[2]
			}
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			continue
		}
		if m := consumedPattern.FindStringSubmatch(line); m != nil {
			if m[1] == proxyID {
				if cu, err := strconv.ParseUint(m[2], 10, 64); err == nil {
					out.ComputeUnits = &cu
				}
			}
			continue
		}

		if len(stack) == 0 || stack[len(stack)-1] != proxyID {
			continue
		}
		if m := tickCurrentPattern.FindStringSubmatch(line); m != nil {
			out.TickCurrentIndex = parseInt32(m[1])
			continue
		}
		if m := startTickPattern.FindStringSubmatch(line); m != nil {
			out.StartTickIndex = parseInt32(m[1])
			continue
		}
		if line == "Program log: "+cpiMarker {
			out.CPIInvoked = true
		}
	}
	return out
}

func parseInt32(s string) *int32 {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return nil
	}
	n := int32(v)
	return &n
}
