package sol

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
)

const defaultPollInterval = 500 * time.Millisecond

// Client represents a Solana client that handles both RPC and WebSocket connections
type Client struct {
	RpcClient *rpc.Client
	WsClient  *ws.Client

	// PollInterval paces signature status polling when no WebSocket is connected
	PollInterval time.Duration
}

// NewClient creates a new Solana client with both RPC and WebSocket connections
func NewClient(ctx context.Context, endpoint, wsEndpoint string) (*Client, error) {
	c := NewClientFromRPC(rpc.New(endpoint), nil)
	if wsEndpoint != "" {
		// Initialize WebSocket client
		wsClient, err := ws.Connect(ctx, wsEndpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to establish WebSocket connection: %w", err)
		}
		c.WsClient = wsClient
	}
	return c, nil
}

// NewClientFromRPC wraps already connected clients. wsClient may be nil.
func NewClientFromRPC(rpcClient *rpc.Client, wsClient *ws.Client) *Client {
	return &Client{
		RpcClient:    rpcClient,
		WsClient:     wsClient,
		PollInterval: defaultPollInterval,
	}
}

// RentExemption returns the minimum balance for an account of dataSize bytes.
func (c *Client) RentExemption(ctx context.Context, dataSize uint64) (uint64, error) {
	lamports, err := c.RpcClient.GetMinimumBalanceForRentExemption(ctx, dataSize, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("failed to get rent exemption for %d bytes: %w", dataSize, err)
	}
	return lamports, nil
}

// Close terminates all client connections
func (c *Client) Close() error {
	if c.WsClient != nil {
		c.WsClient.Close()
	}
	return nil
}
