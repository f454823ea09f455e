package main

import (
	"context"
	"strings"
)

// NodeReport is the proxy service's view of one peer, merged into the node
// manager on every network poll. Address is empty for discovered peers that
// cannot be dialed directly.
type NodeReport struct {
	ID        string  `json:"id"`
	Address   string  `json:"address,omitempty"`
	Status    string  `json:"status"`
	LatencyMs float64 `json:"latency_ms,omitempty"`
	Region    string  `json:"region,omitempty"`
}

// ProxyClient wraps the peer-transport service's JSON-RPC surface.
type ProxyClient struct {
	rpc *rpcClient
}

func newProxyClient(cfg Config) *ProxyClient {
	if strings.TrimSpace(cfg.ProxyRPCURL) == "" {
		return nil
	}
	return &ProxyClient{
		rpc: newRPCClient("proxy", cfg.ProxyRPCURL, cfg.ProxyRPCUser, cfg.ProxyRPCPass),
	}
}

func (c *ProxyClient) Connected() bool {
	if c == nil {
		return false
	}
	return c.rpc.Connected()
}

// ConnectNode asks the transport to dial address. The authoritative outcome
// arrives later as a status event (ZMQ feed or list poll), not in this reply.
func (c *ProxyClient) ConnectNode(ctx context.Context, address, credential string) error {
	if c == nil {
		return errEngineUnavailable
	}
	return c.rpc.call(ctx, "connectnode", []interface{}{address, credential}, nil)
}

func (c *ProxyClient) DisconnectNode(ctx context.Context, address string) error {
	if c == nil {
		return errEngineUnavailable
	}
	return c.rpc.call(ctx, "disconnectnode", []interface{}{address}, nil)
}

func (c *ProxyClient) ListNodes(ctx context.Context) ([]NodeReport, error) {
	if c == nil {
		return nil, errEngineUnavailable
	}
	var reports []NodeReport
	if err := c.rpc.call(ctx, "listnodes", []interface{}{}, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}
