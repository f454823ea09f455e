package main

import (
	"os"
	"path/filepath"
)

var baseConfigExample = []byte(`# minerdeck configuration.
# Copy this file to config.toml in the same directory and edit as needed.

# Address the JSON status/API server listens on.
# status_addr = "127.0.0.1:9230"

# Mining engine JSON-RPC endpoint (credentials go in secrets.toml).
# engine_rpc_url = "http://127.0.0.1:9332"
# engine_data_dir = ""

# Proxy/peer service JSON-RPC endpoint. Leave empty to disable the
# node manager entirely.
# proxy_rpc_url = "http://127.0.0.1:9340"

# Optional ZMQ event feed (hashblock / nodestatus topics). Polling still
# runs; the feed only reduces latency.
# zmq_event_addr = "tcp://127.0.0.1:28332"

# Payout account credited for discovered blocks.
# default_account = ""

# Network used to validate the payout account address.
# chain_network = "mainnet"

# Worker sizing: active workers = ceil(intensity_percent/100 * max_workers).
# max_workers defaults to the host CPU concurrency.
# intensity_percent = 100
# max_workers = 0

# Poll cadence.
# stats_poll_interval_seconds = 5
# network_poll_interval_seconds = 10

# Ledger / node list views.
# ledger_page_size = 10
# node_page_size = 10
# page_size_options = [5, 10, 25, 50]

# Proxy node connection handling.
# node_connect_timeout_seconds = 15
# node_region = ""
# reconnect_concurrency = 4

# Discord notifications (token goes in secrets.toml).
# discord_notify_channel_id = ""
# discord_node_notify_threshold_seconds = 60

# Housekeeping.
# data_dir = "data"
# log_level = "info"
# state_db_enable = true
`)

// ensureExampleFiles writes config.toml.example and secrets.toml.example so
// a fresh checkout documents every knob without shipping live defaults.
func ensureExampleFiles(dataDir string) {
	if dataDir == "" {
		dataDir = defaultDataDir
	}
	dir := filepath.Join(dataDir, "config", "examples")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Warn("create example config dir", "path", dir, "error", err)
		return
	}
	writeExampleFile(filepath.Join(dir, "config.toml.example"), baseConfigExample)
	writeExampleFile(filepath.Join(dir, "secrets.toml.example"), secretsConfigExample)
}

func writeExampleFile(path string, content []byte) {
	if _, err := os.Stat(path); err == nil {
		return
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		logger.Warn("write example config", "path", path, "error", err)
	}
}
