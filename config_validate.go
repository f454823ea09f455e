package main

import (
	"fmt"
	"net/url"
	"strings"
)

func validateConfig(cfg Config) error {
	if cfg.IntensityPercent < 1 || cfg.IntensityPercent > 100 {
		return fmt.Errorf("intensity_percent must be between 1 and 100, got %d", cfg.IntensityPercent)
	}
	if cfg.MaxWorkers < 1 {
		return fmt.Errorf("max_workers must be >= 1, got %d", cfg.MaxWorkers)
	}
	if cfg.StatsPollIntervalSeconds <= 0 {
		return fmt.Errorf("stats_poll_interval_seconds must be > 0, got %d", cfg.StatsPollIntervalSeconds)
	}
	if cfg.NetworkPollIntervalSeconds <= 0 {
		return fmt.Errorf("network_poll_interval_seconds must be > 0, got %d", cfg.NetworkPollIntervalSeconds)
	}
	if cfg.NodeConnectTimeoutSeconds <= 0 {
		return fmt.Errorf("node_connect_timeout_seconds must be > 0, got %d", cfg.NodeConnectTimeoutSeconds)
	}
	if cfg.ReconnectConcurrency < 1 {
		return fmt.Errorf("reconnect_concurrency must be >= 1, got %d", cfg.ReconnectConcurrency)
	}
	if cfg.LookbackBlocks <= 0 {
		return fmt.Errorf("lookback_blocks must be > 0, got %d", cfg.LookbackBlocks)
	}
	if cfg.RecentBlocksLimit <= 0 {
		return fmt.Errorf("recent_blocks_limit must be > 0, got %d", cfg.RecentBlocksLimit)
	}
	if cfg.SimulatedPerWorkerRate < 0 {
		return fmt.Errorf("simulated_per_worker_rate cannot be negative")
	}

	if err := validatePageSize("ledger_page_size", cfg.LedgerPageSize, cfg.PageSizeOptions); err != nil {
		return err
	}
	if err := validatePageSize("node_page_size", cfg.NodePageSize, cfg.PageSizeOptions); err != nil {
		return err
	}
	for _, opt := range cfg.PageSizeOptions {
		if opt <= 0 {
			return fmt.Errorf("page_size_options entries must be > 0, got %d", opt)
		}
	}

	if err := validateRPCURL("engine_rpc_url", cfg.EngineRPCURL); err != nil {
		return err
	}
	if cfg.ProxyRPCURL != "" {
		if err := validateRPCURL("proxy_rpc_url", cfg.ProxyRPCURL); err != nil {
			return err
		}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.ChainNetwork)) {
	case "mainnet", "testnet3", "signet", "regtest":
	default:
		return fmt.Errorf("chain_network %q is not one of mainnet, testnet3, signet, regtest", cfg.ChainNetwork)
	}

	if cfg.AdminTokenTTLHours <= 0 {
		return fmt.Errorf("admin_token_ttl_hours must be > 0, got %d", cfg.AdminTokenTTLHours)
	}
	if _, err := parseLogLevel(cfg.LogLevel); err != nil {
		return err
	}
	return nil
}

func validatePageSize(name string, size int, options []int) error {
	if size <= 0 {
		return fmt.Errorf("%s must be > 0, got %d", name, size)
	}
	if len(options) == 0 {
		return nil
	}
	for _, opt := range options {
		if size == opt {
			return nil
		}
	}
	return fmt.Errorf("%s %d is not in page_size_options %v", name, size, options)
}

func validateRPCURL(name, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%s is required", name)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s parse error: %w", name, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		if parsed.Scheme == "" {
			return fmt.Errorf("%s %q missing protocol scheme (http/https)", name, raw)
		}
		return fmt.Errorf("%s %q must use http or https scheme", name, raw)
	}
	return nil
}
