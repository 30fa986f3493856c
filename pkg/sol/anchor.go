package sol

import "crypto/sha256"

const (
	AnchorAccountNamespace     = "account"
	AnchorInstructionNamespace = "global"
)

// AnchorDiscriminator returns the first 8 bytes of sha256("<namespace>:<name>").
func AnchorDiscriminator(namespace, name string) [8]byte {
	var out [8]byte
	sum := sha256.Sum256([]byte(namespace + ":" + name))
	copy(out[:], sum[:8])
	return out
}
