package sol

import "github.com/gagliardetto/solana-go"

var (
	WSOL = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")

	TokenAccountSize = uint64(165)
)

// WrapMethod selects how native SOL is wrapped for a swap.
type WrapMethod string

const (
	// WrapMethodKeypair funds an ephemeral token account that is closed after the swap
	WrapMethodKeypair WrapMethod = "keypair"
	// WrapMethodATA funds the owner's associated token account
	WrapMethodATA WrapMethod = "ata"
)

// ParseWrapMethod accepts "keypair", "ata" or "" (keypair).
func ParseWrapMethod(s string) (WrapMethod, bool) {
	switch WrapMethod(s) {
	case "", WrapMethodKeypair:
		return WrapMethodKeypair, true
	case WrapMethodATA:
		return WrapMethodATA, true
	}
	return "", false
}
