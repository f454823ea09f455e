package main

import (
	"path/filepath"
	"runtime"
)

const (
	defaultDataDir    = "data"
	defaultStatusAddr = "127.0.0.1:9230"
	defaultEngineURL  = "http://127.0.0.1:9332"
	defaultProxyURL   = "http://127.0.0.1:9340"
)

func defaultConfig() Config {
	return Config{
		StatusAddr:                        defaultStatusAddr,
		EngineRPCURL:                      defaultEngineURL,
		ProxyRPCURL:                       defaultProxyURL,
		ChainNetwork:                      "mainnet",
		IntensityPercent:                  defaultIntensityPercent,
		MaxWorkers:                        runtime.NumCPU(),
		SimulatedPerWorkerRate:            defaultSimulatedPerWorkerRate,
		EstHashesPerBlock:                 defaultEstHashesPerBlock,
		LookbackBlocks:                    defaultLookbackBlocks,
		RecentBlocksLimit:                 defaultRecentBlocksLimit,
		StatsPollIntervalSeconds:          defaultStatsPollIntervalSeconds,
		NetworkPollIntervalSeconds:        defaultNetworkPollIntervalSeconds,
		LedgerPageSize:                    defaultLedgerPageSize,
		NodePageSize:                      defaultNodePageSize,
		PageSizeOptions:                   []int{5, 10, 25, 50},
		NodeConnectTimeoutSeconds:         int(defaultNodeConnectTimeout.Seconds()),
		ReconnectConcurrency:              defaultReconnectConcurrency,
		DiscordNodeNotifyThresholdSeconds: defaultDiscordNodeNotifySeconds,
		AdminTokenTTLHours:                defaultAdminTokenTTLHours,
		DataDir:                           defaultDataDir,
		LogLevel:                          "info",
		StateDBEnable:                     true,
	}
}

func defaultConfigPath() string {
	return filepath.Join(defaultDataDir, "config", "config.toml")
}
