package main

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml"
)

// baseConfigFile mirrors config.toml. Pointers distinguish "absent" from
// zero so the file only overrides what it actually sets.
type baseConfigFile struct {
	StatusAddr *string `toml:"status_addr"`

	EngineRPCURL  *string `toml:"engine_rpc_url"`
	EngineDataDir *string `toml:"engine_data_dir"`
	ProxyRPCURL   *string `toml:"proxy_rpc_url"`
	ZMQEventAddr  *string `toml:"zmq_event_addr"`

	DefaultAccount         *string  `toml:"default_account"`
	ChainNetwork           *string  `toml:"chain_network"`
	IntensityPercent       *int     `toml:"intensity_percent"`
	MaxWorkers             *int     `toml:"max_workers"`
	SimulatedPerWorkerRate *float64 `toml:"simulated_per_worker_rate"`
	EstHashesPerBlock      *float64 `toml:"est_hashes_per_block"`
	LookbackBlocks         *int     `toml:"lookback_blocks"`
	RecentBlocksLimit      *int     `toml:"recent_blocks_limit"`

	StatsPollIntervalSeconds   *int `toml:"stats_poll_interval_seconds"`
	NetworkPollIntervalSeconds *int `toml:"network_poll_interval_seconds"`

	LedgerPageSize  *int  `toml:"ledger_page_size"`
	NodePageSize    *int  `toml:"node_page_size"`
	PageSizeOptions []int `toml:"page_size_options"`

	NodeConnectTimeoutSeconds *int    `toml:"node_connect_timeout_seconds"`
	NodeRegion                *string `toml:"node_region"`
	ReconnectConcurrency      *int    `toml:"reconnect_concurrency"`

	DiscordNotifyChannelID            *string `toml:"discord_notify_channel_id"`
	DiscordNodeNotifyThresholdSeconds *int    `toml:"discord_node_notify_threshold_seconds"`

	AdminTokenTTLHours *int `toml:"admin_token_ttl_hours"`

	DataDir       *string `toml:"data_dir"`
	LogLevel      *string `toml:"log_level"`
	StateDBEnable *bool   `toml:"state_db_enable"`
}

type secretsConfigFile struct {
	EngineRPCUser  *string `toml:"engine_rpc_user"`
	EngineRPCPass  *string `toml:"engine_rpc_pass"`
	ProxyRPCUser   *string `toml:"proxy_rpc_user"`
	ProxyRPCPass   *string `toml:"proxy_rpc_pass"`
	DiscordToken   *string `toml:"discord_token"`
	AdminJWTSecret *string `toml:"admin_jwt_secret"`
}

// loadConfig reads config.toml and secrets.toml under <data_dir>/config,
// layered over defaults. A missing config file is not fatal: minerdeck works
// against localhost defaults; the example files are written so the operator
// can discover the knobs.
func loadConfig(configPath, secretsPath string) Config {
	cfg := defaultConfig()

	if configPath == "" {
		configPath = defaultConfigPath()
	}

	if bc, ok, err := loadBaseConfigFile(configPath); err != nil {
		fatal("config file", err, "path", configPath)
	} else if ok {
		applyBaseConfig(&cfg, *bc)
	} else {
		logger.Info("config file missing; using defaults", "path", configPath)
	}
	ensureExampleFiles(cfg.DataDir)

	if secretsPath == "" {
		secretsPath = filepath.Join(cfg.DataDir, "config", "secrets.toml")
	}
	ensureSecretFilePermissions(secretsPath)
	if sc, ok, err := loadSecretsFile(secretsPath); err != nil {
		fatal("secrets file", err, "path", secretsPath)
	} else if ok {
		applySecretsConfig(&cfg, *sc)
	}

	return cfg
}

func loadBaseConfigFile(path string) (*baseConfigFile, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var bc baseConfigFile
	if err := toml.Unmarshal(data, &bc); err != nil {
		return nil, false, err
	}
	return &bc, true, nil
}

func loadSecretsFile(path string) (*secretsConfigFile, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var sc secretsConfigFile
	if err := toml.Unmarshal(data, &sc); err != nil {
		return nil, false, err
	}
	return &sc, true, nil
}

func applyBaseConfig(cfg *Config, bc baseConfigFile) {
	setString(&cfg.StatusAddr, bc.StatusAddr)
	setString(&cfg.EngineRPCURL, bc.EngineRPCURL)
	setString(&cfg.EngineDataDir, bc.EngineDataDir)
	setString(&cfg.ProxyRPCURL, bc.ProxyRPCURL)
	setString(&cfg.ZMQEventAddr, bc.ZMQEventAddr)
	setString(&cfg.DefaultAccount, bc.DefaultAccount)
	setString(&cfg.ChainNetwork, bc.ChainNetwork)
	setInt(&cfg.IntensityPercent, bc.IntensityPercent)
	setInt(&cfg.MaxWorkers, bc.MaxWorkers)
	setFloat(&cfg.SimulatedPerWorkerRate, bc.SimulatedPerWorkerRate)
	setFloat(&cfg.EstHashesPerBlock, bc.EstHashesPerBlock)
	setInt(&cfg.LookbackBlocks, bc.LookbackBlocks)
	setInt(&cfg.RecentBlocksLimit, bc.RecentBlocksLimit)
	setInt(&cfg.StatsPollIntervalSeconds, bc.StatsPollIntervalSeconds)
	setInt(&cfg.NetworkPollIntervalSeconds, bc.NetworkPollIntervalSeconds)
	setInt(&cfg.LedgerPageSize, bc.LedgerPageSize)
	setInt(&cfg.NodePageSize, bc.NodePageSize)
	if len(bc.PageSizeOptions) > 0 {
		cfg.PageSizeOptions = bc.PageSizeOptions
	}
	setInt(&cfg.NodeConnectTimeoutSeconds, bc.NodeConnectTimeoutSeconds)
	setString(&cfg.NodeRegion, bc.NodeRegion)
	setInt(&cfg.ReconnectConcurrency, bc.ReconnectConcurrency)
	setString(&cfg.DiscordNotifyChannelID, bc.DiscordNotifyChannelID)
	setInt(&cfg.DiscordNodeNotifyThresholdSeconds, bc.DiscordNodeNotifyThresholdSeconds)
	setInt(&cfg.AdminTokenTTLHours, bc.AdminTokenTTLHours)
	setString(&cfg.DataDir, bc.DataDir)
	setString(&cfg.LogLevel, bc.LogLevel)
	if bc.StateDBEnable != nil {
		cfg.StateDBEnable = *bc.StateDBEnable
	}
}

func applySecretsConfig(cfg *Config, sc secretsConfigFile) {
	setString(&cfg.EngineRPCUser, sc.EngineRPCUser)
	setString(&cfg.EngineRPCPass, sc.EngineRPCPass)
	setString(&cfg.ProxyRPCUser, sc.ProxyRPCUser)
	setString(&cfg.ProxyRPCPass, sc.ProxyRPCPass)
	setString(&cfg.DiscordBotToken, sc.DiscordToken)
	setString(&cfg.AdminJWTSecret, sc.AdminJWTSecret)
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

// ensureSecretFilePermissions tightens secrets.toml to owner-only when it
// exists with looser permissions.
func ensureSecretFilePermissions(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if info.Mode().Perm()&0o077 == 0 {
		return
	}
	if err := os.Chmod(path, 0o600); err != nil {
		logger.Warn("tighten secrets permissions", "path", path, "error", err)
	}
}
