package main

import "time"

const appSoftwareName = "minerdeck"

const (
	// ledgerMaxVisibleBlocks bounds the paginated ledger view. The seen-hash
	// set is not bounded by this; hashes stay deduplicated after eviction.
	ledgerMaxVisibleBlocks = 50

	// ledgerMaxVisibleTransactions bounds the in-memory transaction list.
	// The state DB keeps the full history.
	ledgerMaxVisibleTransactions = 200

	defaultNodeConnectTimeout = 15 * time.Second

	// Ports below this are rejected for proxy nodes unless they are one of
	// the explicit HTTP(S) exceptions (80, 443).
	reservedPortCeiling = 1024

	minNodePort = 1
	maxNodePort = 65535

	// hashrateHistoryWindow bounds the per-session hashrate sparkline.
	hashrateHistoryWindow = 15 * time.Minute

	// simOscillationAmplitude bounds the synthetic rate wobble so a
	// simulated display value never strays far from workers * per-worker rate.
	simOscillationAmplitude = 0.08
	simOscillationPeriod    = 90.0 // seconds

	maxAdminRequestBody = 16 * 1024

	statusJSONRefreshInterval = 2 * time.Second

	zmqReceiveTimeout     = time.Second
	zmqRecreateBackoffMin = time.Second
	zmqRecreateBackoffMax = 30 * time.Second
	zmqReconnectInterval  = 250 * time.Millisecond
	zmqReconnectMax       = 5 * time.Second
)

const (
	defaultStatsPollIntervalSeconds   = 5
	defaultNetworkPollIntervalSeconds = 10
	defaultIntensityPercent           = 100
	defaultSimulatedPerWorkerRate     = 32_500.0 // H/s, display-only warm-up estimate
	defaultEstHashesPerBlock          = 4.2e9    // used when only a blocks-found delta is available
	defaultLookbackBlocks             = 120
	defaultRecentBlocksLimit          = 25
	defaultLedgerPageSize             = 10
	defaultNodePageSize               = 10
	defaultReconnectConcurrency       = 4
	defaultAdminTokenTTLHours         = 12
	defaultDiscordNodeNotifySeconds   = 60
)
