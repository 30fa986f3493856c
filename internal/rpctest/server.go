// Package rpctest runs an in-process Solana JSON-RPC endpoint for tests.
package rpctest

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Default values served until a test overrides them.
var (
	DefaultBlockhash = solana.MustHashFromBase58("EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N")
	DefaultRent      = uint64(2039280)
)

// Error is a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return e.Message }

// HandlerFunc answers one method. Returning an *Error produces a JSON-RPC error.
type HandlerFunc func(params []json.RawMessage) (any, error)

type request struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

// Server is a fake RPC node. Accounts registered with SetAccount are served
// by getAccountInfo and getMultipleAccounts.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	slot     uint64
	accounts map[solana.PublicKey]any
	handlers map[string]HandlerFunc
	calls    map[string]int
}

// New starts a server that is closed when the test ends.
func New(t testing.TB) *Server {
	s := &Server{
		slot:     1000,
		accounts: make(map[solana.PublicKey]any),
		handlers: make(map[string]HandlerFunc),
		calls:    make(map[string]int),
	}
	s.handlers["getAccountInfo"] = s.getAccountInfo
	s.handlers["getMultipleAccounts"] = s.getMultipleAccounts
	s.handlers["getLatestBlockhash"] = func([]json.RawMessage) (any, error) {
		return s.withContext(map[string]any{
			"blockhash":            DefaultBlockhash.String(),
			"lastValidBlockHeight": 2000,
		}), nil
	}
	s.handlers["getMinimumBalanceForRentExemption"] = func([]json.RawMessage) (any, error) {
		return DefaultRent, nil
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serveHTTP))
	t.Cleanup(s.Close)
	return s
}

// Client returns an RPC client bound to the server.
func (s *Server) Client() *rpc.Client {
	return rpc.New(s.URL)
}

// On replaces the handler of a method.
func (s *Server) On(method string, fn HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = fn
}

// Calls reports how many times a method was requested.
func (s *Server) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// SetSlot sets the context slot of subsequent responses.
func (s *Server) SetSlot(slot uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slot = slot
}

// SetAccount registers the JSON value served for addr, see Account and ParsedTokenAccount.
func (s *Server) SetAccount(addr solana.PublicKey, account any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[addr] = account
}

// DeleteAccount makes addr report as missing.
func (s *Server) DeleteAccount(addr solana.PublicKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accounts, addr)
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.calls[req.Method]++
	handler, ok := s.handlers[req.Method]
	s.mu.Unlock()

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if !ok {
		resp["error"] = &Error{Code: -32601, Message: "Method not found: " + req.Method}
	} else if result, err := handler(req.Params); err != nil {
		rpcErr, isRPC := err.(*Error)
		if !isRPC {
			rpcErr = &Error{Code: -32000, Message: err.Error()}
		}
		resp["error"] = rpcErr
	} else {
		resp["result"] = result
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) withContext(value any) map[string]any {
	s.mu.Lock()
	slot := s.slot
	s.mu.Unlock()
	return WithContext(slot, value)
}

func (s *Server) lookup(addr string) any {
	key, err := solana.PublicKeyFromBase58(addr)
	if err != nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[key]
}

func (s *Server) getAccountInfo(params []json.RawMessage) (any, error) {
	var addr string
	if len(params) == 0 || json.Unmarshal(params[0], &addr) != nil {
		return nil, &Error{Code: -32602, Message: "invalid params"}
	}
	return s.withContext(s.lookup(addr)), nil
}

func (s *Server) getMultipleAccounts(params []json.RawMessage) (any, error) {
	var addrs []string
	if len(params) == 0 || json.Unmarshal(params[0], &addrs) != nil {
		return nil, &Error{Code: -32602, Message: "invalid params"}
	}
	values := make([]any, len(addrs))
	for i, addr := range addrs {
		values[i] = s.lookup(addr)
	}
	return s.withContext(values), nil
}

// WithContext wraps value the way context-carrying RPC results are shaped.
func WithContext(slot uint64, value any) map[string]any {
	return map[string]any{
		"context": map[string]any{"slot": slot},
		"value":   value,
	}
}

// Account is a base64 encoded account.
func Account(data []byte, owner solana.PublicKey, lamports uint64) map[string]any {
	return map[string]any{
		"data":       []string{base64.StdEncoding.EncodeToString(data), "base64"},
		"executable": false,
		"lamports":   lamports,
		"owner":      owner.String(),
		"rentEpoch":  0,
		"space":      len(data),
	}
}

// ParsedTokenAccount is an SPL token account in jsonParsed encoding.
func ParsedTokenAccount(mint, owner solana.PublicKey, amount string, decimals uint8) map[string]any {
	return map[string]any{
		"data": map[string]any{
			"parsed": map[string]any{
				"info": map[string]any{
					"isNative": mint.Equals(solana.SolMint),
					"mint":     mint.String(),
					"owner":    owner.String(),
					"state":    "initialized",
					"tokenAmount": map[string]any{
						"amount":         amount,
						"decimals":       decimals,
						"uiAmountString": amount,
					},
				},
				"type": "account",
			},
			"program": "spl-token",
			"space":   165,
		},
		"executable": false,
		"lamports":   DefaultRent,
		"owner":      solana.TokenProgramID.String(),
		"rentEpoch":  0,
		"space":      165,
	}
}

// String decodes a string parameter.
func String(params []json.RawMessage, i int) string {
	if i >= len(params) {
		return ""
	}
	var s string
	_ = json.Unmarshal(params[i], &s)
	return s
}
