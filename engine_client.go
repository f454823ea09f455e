package main

import (
	"context"
	"strings"
)

// BlockReport is one discovered-block candidate as reported by the mining
// engine. Hash may be empty for engines that only report number+nonce; the
// ledger derives a synthetic dedup key in that case.
type BlockReport struct {
	Hash       string  `json:"hash"`
	Number     uint64  `json:"number"`
	Nonce      uint64  `json:"nonce"`
	Difficulty uint64  `json:"difficulty"`
	Reward     float64 `json:"reward"`
	Timestamp  int64   `json:"timestamp"`
}

type perfCounters struct {
	BlocksFound  uint64  `json:"blocks_found"`
	RateFromLogs float64 `json:"rate_from_logs"`
}

// EngineClient wraps the mining engine's JSON-RPC surface. Every method is a
// thin call; reconciliation policy lives in the monitor, not here.
type EngineClient struct {
	rpc     *rpcClient
	dataDir string
}

func newEngineClient(cfg Config) *EngineClient {
	if strings.TrimSpace(cfg.EngineRPCURL) == "" {
		return nil
	}
	return &EngineClient{
		rpc:     newRPCClient("engine", cfg.EngineRPCURL, cfg.EngineRPCUser, cfg.EngineRPCPass),
		dataDir: cfg.EngineDataDir,
	}
}

func (c *EngineClient) Connected() bool {
	if c == nil {
		return false
	}
	return c.rpc.Connected()
}

// Running probes the engine with a cheap call. Used as the start-mining
// precondition check.
func (c *EngineClient) Running(ctx context.Context) bool {
	if c == nil {
		return false
	}
	var height uint64
	return c.rpc.call(ctx, "getblockcount", []interface{}{}, &height) == nil
}

// HashRateText returns the engine-reported hashrate in its textual unit form
// (e.g. "1.25 MH/s"). Empty string means the engine has no figure yet.
func (c *EngineClient) HashRateText(ctx context.Context) (string, error) {
	if c == nil {
		return "", errEngineUnavailable
	}
	var text string
	if err := c.rpc.call(ctx, "gethashrate", []interface{}{}, &text); err != nil {
		return "", err
	}
	return text, nil
}

func (c *EngineClient) BlockHeight(ctx context.Context) (uint64, error) {
	if c == nil {
		return 0, errEngineUnavailable
	}
	var height uint64
	if err := c.rpc.call(ctx, "getblockcount", []interface{}{}, &height); err != nil {
		return 0, err
	}
	return height, nil
}

// PerformanceCounters reads the engine's derivable counters (blocks found so
// far, rate parsed from its logs). Engines without the call return an RPC
// error; callers treat that as "no counters".
func (c *EngineClient) PerformanceCounters(ctx context.Context) (perfCounters, error) {
	if c == nil {
		return perfCounters{}, errEngineUnavailable
	}
	var pc perfCounters
	if err := c.rpc.call(ctx, "getperfcounters", []interface{}{c.dataDir}, &pc); err != nil {
		return perfCounters{}, err
	}
	return pc, nil
}

func (c *EngineClient) StartMining(ctx context.Context, account string, workers int) error {
	if c == nil {
		return errEngineUnavailable
	}
	return c.rpc.call(ctx, "startmining", []interface{}{account, workers}, nil)
}

func (c *EngineClient) StopMining(ctx context.Context) error {
	if c == nil {
		return errEngineUnavailable
	}
	return c.rpc.call(ctx, "stopmining", []interface{}{}, nil)
}

// RecentMinedBlocks lists blocks credited to account within the lookback
// window. The ledger is responsible for deduplication; this may (and under
// overlapping polls will) return blocks that were already reported.
func (c *EngineClient) RecentMinedBlocks(ctx context.Context, account string, lookbackBlocks, limit int) ([]BlockReport, error) {
	if c == nil {
		return nil, errEngineUnavailable
	}
	var reports []BlockReport
	if err := c.rpc.call(ctx, "listrecentblocks", []interface{}{account, lookbackBlocks, limit}, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}
