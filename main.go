package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"
)

func main() {
	var (
		dataDirFlag  = flag.String("data-dir", "", "data directory (default \"data\")")
		configFlag   = flag.String("config", "", "path to config.toml")
		secretsFlag  = flag.String("secrets", "", "path to secrets.toml")
		stdoutFlag   = flag.Bool("stdout", false, "mirror logs to stdout")
		logLevelFlag = flag.String("log-level", "", "debug, info, warn or error")
		networkFlag  = flag.String("network", "", "chain network override (mainnet, testnet3, signet, regtest)")
		engineFlag   = flag.String("engine-url", "", "mining engine RPC URL override")
		proxyFlag    = flag.String("proxy-url", "", "proxy service RPC URL override")
		noZMQFlag    = flag.Bool("no-zmq", false, "disable the backend event feed")
	)
	flag.Parse()

	configPath := *configFlag
	if configPath == "" {
		configPath = defaultConfigPath()
	}
	secretsPath := *secretsFlag
	if secretsPath == "" {
		secretsPath = filepath.Join(filepath.Dir(configPath), "secrets.toml")
	}
	cfg := loadConfig(configPath, secretsPath)

	// Flags override file values.
	if *dataDirFlag != "" {
		cfg.DataDir = *dataDirFlag
	}
	if *logLevelFlag != "" {
		cfg.LogLevel = *logLevelFlag
	}
	if *networkFlag != "" {
		cfg.ChainNetwork = *networkFlag
	}
	if *engineFlag != "" {
		cfg.EngineRPCURL = *engineFlag
	}
	if *proxyFlag != "" {
		cfg.ProxyRPCURL = *proxyFlag
	}
	if *noZMQFlag {
		cfg.ZMQEventAddr = ""
	}

	if err := validateConfig(cfg); err != nil {
		fatal("invalid configuration", err)
	}

	logDir := filepath.Join(cfg.DataDir, "logs")
	configureFileLogging(
		filepath.Join(logDir, appSoftwareName+".log"),
		filepath.Join(logDir, appSoftwareName+".error.log"),
		*stdoutFlag,
	)
	defer logger.Stop()
	if level, err := parseLogLevel(cfg.LogLevel); err == nil {
		setLogLevel(level)
	}
	logger.Info("starting", "software", appSoftwareName, "data_dir", cfg.DataDir, "network", cfg.ChainNetwork)

	SetChainParams(cfg.ChainNetwork)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := NewMetrics()

	var store *stateStore
	if cfg.StateDBEnable {
		st, err := newStateStore(cfg.DataDir)
		if err != nil {
			// Degraded mode: dedup holds for the process lifetime only.
			logger.Warn("state db unavailable; crediting state will not survive restarts", "error", err)
		} else {
			store = st
		}
	}
	archive := newCreditArchive(cfg.DataDir)

	ledger := NewBlockLedger(cfg.LedgerPageSize, store, archive, metrics)
	engine := newEngineClient(cfg)
	proxy := newProxyClient(cfg)

	monitor := NewMiningMonitor(cfg, engine, ledger, metrics)
	nodes := NewNodeManager(cfg, proxy, metrics)

	discord, err := newDiscordNotifier(cfg)
	if err != nil {
		logger.Warn("discord notifier disabled", "error", err)
	}
	if discord != nil {
		discord.Start(ctx)
		ledger.SetOnCredit(discord.NotifyBlockCredited)
		nodes.SetOnFlap(discord.NotifyNodeFlap)
	}

	feed := newEventFeed(cfg.ZMQEventAddr, monitor, nodes, metrics)
	feed.Start(ctx)

	auth := newAdminAuth(cfg, metrics)
	server := NewStatusServer(cfg, monitor, ledger, nodes, feed, metrics, auth)
	server.Start()

	monitor.StartPolling()
	nodes.StartPolling(cfg.NetworkPollIntervalSeconds)

	<-ctx.Done()
	logger.Info("shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	server.Shutdown(shutdownCtx)
	feed.Stop()
	// Engine sessions outlive the dashboard; only local polling stops here.
	monitor.Close()
	nodes.Close()
	if discord != nil {
		discord.Close()
	}
	archive.Close()
	if store != nil {
		if err := store.Close(); err != nil {
			logger.Warn("close state db", "error", err)
		}
	}
	logger.Info("shutdown complete")
}
