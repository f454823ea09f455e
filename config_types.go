package main

var secretsConfigExample = []byte(`# RPC credentials for the mining engine.
# engine_rpc_user = "enginerpc"
# engine_rpc_pass = "password"

# RPC credentials for the proxy/peer service.
# proxy_rpc_user = "proxyrpc"
# proxy_rpc_pass = "password"

# Optional Discord notifications integration.
# discord_token = "YOUR_DISCORD_BOT_TOKEN"

# Admin API token signing secret (hex or any string >= 16 chars).
# Generated at random on every start when unset.
# admin_jwt_secret = ""
`)

type Config struct {
	// Status/API server.
	StatusAddr string

	// Backend collaborators.
	EngineRPCURL  string
	EngineRPCUser string // store in secrets.toml
	EngineRPCPass string // store in secrets.toml
	EngineDataDir string // passed to getperfcounters
	ProxyRPCURL   string
	ProxyRPCUser  string // store in secrets.toml
	ProxyRPCPass  string // store in secrets.toml

	// Optional push feed. Polling continues regardless; the feed only
	// shortens credit/status latency.
	ZMQEventAddr string

	// Mining session.
	DefaultAccount         string
	ChainNetwork           string // mainnet, testnet3, signet, regtest
	IntensityPercent       int    // 1..100
	MaxWorkers             int    // 0 = host CPU concurrency
	SimulatedPerWorkerRate float64
	EstHashesPerBlock      float64
	LookbackBlocks         int
	RecentBlocksLimit      int

	// Polling.
	StatsPollIntervalSeconds   int
	NetworkPollIntervalSeconds int

	// Views.
	LedgerPageSize  int
	NodePageSize    int
	PageSizeOptions []int

	// Proxy nodes.
	NodeConnectTimeoutSeconds int
	NodeRegion                string
	ReconnectConcurrency      int

	// Discord integration.
	DiscordBotToken                   string // store in secrets.toml
	DiscordNotifyChannelID            string
	DiscordNodeNotifyThresholdSeconds int // min seconds in a state before flap notify

	// Admin API.
	AdminJWTSecret     string // store in secrets.toml; random when empty
	AdminTokenTTLHours int

	// Housekeeping.
	DataDir       string
	LogLevel      string
	StateDBEnable bool
}
