package sol

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/Solana-ZH/orcacpi/internal/rpctest"
	"github.com/gagliardetto/solana-go"
)

func newTestClient(t *testing.T) (*Client, *rpctest.Server) {
	t.Helper()
	srv := rpctest.New(t)
	c := NewClientFromRPC(srv.Client(), nil)
	c.PollInterval = 5 * time.Millisecond
	return c, srv
}

// encodeTokenAccount lays out an initialized SPL token account.
func encodeTokenAccount(mint, owner solana.PublicKey, amount uint64) []byte {
	data := make([]byte, TokenAccountSize)
	copy(data[0:32], mint.Bytes())
	copy(data[32:64], owner.Bytes())
	binary.LittleEndian.PutUint64(data[64:72], amount)
	data[108] = 1 // state: initialized
	return data
}
