package main

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

type sessionState int

const (
	sessionStopped sessionState = iota
	sessionStarting
	sessionRunning
)

func (s sessionState) String() string {
	switch s {
	case sessionStarting:
		return "starting"
	case sessionRunning:
		return "running"
	default:
		return "stopped"
	}
}

// rateSource tags where the displayed hashrate came from. Only engine and
// counter rates are authoritative; simulated values exist so the dashboard
// is not blank during engine warm-up and never influence crediting.
type rateSource int

const (
	rateSourceNone rateSource = iota
	rateSourceEngine
	rateSourceCounters
	rateSourceSimulated
)

func (r rateSource) String() string {
	switch r {
	case rateSourceEngine, rateSourceCounters:
		return "authoritative"
	case rateSourceSimulated:
		return "simulated"
	default:
		return "none"
	}
}

type hashrateSample struct {
	At     time.Time
	Rate   float64
	Source rateSource
	Height uint64
}

// MiningMonitor owns session timing, hashrate reconciliation and total-hash
// accumulation. One instance lives for the process lifetime; dashboards read
// snapshots and issue start/stop commands, nothing else.
type MiningMonitor struct {
	cfg     Config
	engine  *EngineClient
	ledger  *BlockLedger
	metrics *Metrics

	statsPoller *poller

	mu               sync.Mutex
	state            sessionState
	account          string
	sessionStartedAt time.Time
	activeWorkers    int
	hashRate         float64
	source           rateSource
	totalHashes      float64
	lastTickAt       time.Time
	blockHeight      uint64
	counters         perfCounters
	haveCounters     bool
	history          []hashrateSample
}

func NewMiningMonitor(cfg Config, engine *EngineClient, ledger *BlockLedger, metrics *Metrics) *MiningMonitor {
	return &MiningMonitor{
		cfg:         cfg,
		engine:      engine,
		ledger:      ledger,
		metrics:     metrics,
		statsPoller: newPoller("mining-stats"),
	}
}

// workersForIntensity applies the intensity formula: ceil(pct/100 * max),
// clamped into [1, max]. Fixed once a session is running.
func workersForIntensity(intensityPercent, maxWorkers int) int {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if intensityPercent < 1 {
		intensityPercent = 1
	}
	if intensityPercent > 100 {
		intensityPercent = 100
	}
	workers := int(math.Ceil(float64(intensityPercent) / 100 * float64(maxWorkers)))
	if workers < 1 {
		workers = 1
	}
	if workers > maxWorkers {
		workers = maxWorkers
	}
	return workers
}

// Start begins a mining session. Preconditions are checked locally (account
// configured and syntactically valid) and against the engine (reachable)
// before the start command is issued.
func (m *MiningMonitor) Start(ctx context.Context, account string) error {
	if account == "" {
		account = m.cfg.DefaultAccount
	}
	if account == "" {
		return errNoAccount
	}
	if err := validateAccountAddress(account); err != nil {
		return err
	}

	m.mu.Lock()
	if m.state != sessionStopped {
		m.mu.Unlock()
		return errSessionActive
	}
	m.state = sessionStarting
	m.mu.Unlock()

	fail := func(err error) error {
		m.mu.Lock()
		m.state = sessionStopped
		m.mu.Unlock()
		return err
	}

	if !m.engine.Running(ctx) {
		return fail(errEngineUnavailable)
	}
	workers := workersForIntensity(m.cfg.IntensityPercent, m.cfg.MaxWorkers)
	if err := m.engine.StartMining(ctx, account, workers); err != nil {
		return fail(fmt.Errorf("start mining: %w", err))
	}

	now := time.Now()
	m.mu.Lock()
	m.state = sessionRunning
	m.account = account
	m.sessionStartedAt = now
	m.activeWorkers = workers
	m.totalHashes = 0
	m.lastTickAt = now
	m.hashRate = 0
	m.source = rateSourceNone
	m.history = nil
	m.mu.Unlock()

	logger.Info("mining session started", "account", account, "workers", workers)
	return nil
}

// Stop requests an engine stop and clears local session state regardless of
// the outcome; the dashboard must never be stuck in a running view because
// the backend missed one call.
func (m *MiningMonitor) Stop(ctx context.Context) {
	if err := m.engine.StopMining(ctx); err != nil {
		logger.Warn("stop mining request", "error", err)
	}

	m.mu.Lock()
	m.state = sessionStopped
	m.account = ""
	m.sessionStartedAt = time.Time{}
	m.activeWorkers = 0
	m.hashRate = 0
	m.source = rateSourceNone
	m.history = nil
	m.haveCounters = false
	m.mu.Unlock()

	logger.Info("mining session stopped")
}

// StartPolling begins the stats poll loop. Idempotent via the poller.
func (m *MiningMonitor) StartPolling() {
	interval := time.Duration(m.cfg.StatsPollIntervalSeconds) * time.Second
	m.statsPoller.Start(interval, m.tick)
}

// Close cancels the poll loop deterministically. A tick already in flight
// sees its context cancelled and applies nothing.
func (m *MiningMonitor) Close() {
	m.statsPoller.Stop()
}

// tick is one poll: query the engine, reconcile, accumulate, then feed any
// newly reported blocks to the ledger. Every backend failure is absorbed
// here; previous values are retained so one missed poll never flashes the
// display to zero.
func (m *MiningMonitor) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	m.metrics.RecordPollTick()
	now := time.Now()

	var (
		engineRate   float64
		haveRate     bool
		height       uint64
		haveHeight   bool
		counters     perfCounters
		haveCounters bool
	)

	if text, err := m.engine.HashRateText(ctx); err != nil {
		m.metrics.RecordPollFailure("hashrate", err)
		logger.Debug("hashrate poll failed", "error", err)
	} else {
		engineRate = parseRate(text)
		haveRate = true
	}
	if h, err := m.engine.BlockHeight(ctx); err != nil {
		m.metrics.RecordPollFailure("blockheight", err)
		logger.Debug("block height poll failed", "error", err)
	} else {
		height = h
		haveHeight = true
	}
	if pc, err := m.engine.PerformanceCounters(ctx); err != nil {
		logger.Debug("perf counters unavailable", "error", err)
	} else {
		counters = pc
		haveCounters = true
	}

	if ctx.Err() != nil {
		// Cancelled while the backend calls were in flight; a tick that
		// raced teardown applies nothing.
		return
	}
	m.reconcile(now, engineRate, haveRate, height, haveHeight, counters, haveCounters)
	m.pollBlocks(ctx)
}

// reconcile merges one poll result into session state. It runs synchronously
// under the lock so readers never observe a partially applied poll.
func (m *MiningMonitor) reconcile(now time.Time, engineRate float64, haveRate bool, height uint64, haveHeight bool, counters perfCounters, haveCounters bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if haveHeight {
		m.blockHeight = height
	}

	elapsed := now.Sub(m.lastTickAt).Seconds()
	if m.lastTickAt.IsZero() || elapsed < 0 {
		elapsed = 0
	}

	counterRate := 0.0
	if haveCounters {
		counterRate = counters.RateFromLogs
		if counterRate <= 0 && m.haveCounters && counters.BlocksFound > m.counters.BlocksFound && elapsed > 0 {
			delta := counters.BlocksFound - m.counters.BlocksFound
			counterRate = float64(delta) * m.cfg.EstHashesPerBlock / elapsed
		}
		m.counters = counters
		m.haveCounters = true
	}

	// Priority order: engine rate, counter-derived rate, simulated warm-up
	// rate, hold previous.
	switch {
	case haveRate && engineRate > 0:
		m.hashRate = engineRate
		m.source = rateSourceEngine
	case counterRate > 0:
		m.hashRate = counterRate
		m.source = rateSourceCounters
	case m.state == sessionRunning && m.activeWorkers >= 1:
		secs := now.Sub(m.sessionStartedAt).Seconds()
		m.hashRate = float64(m.activeWorkers) * m.cfg.SimulatedPerWorkerRate * (1 + simOscillation(secs))
		m.source = rateSourceSimulated
	default:
		// Hold the previous value.
	}

	// Only authoritative rates accumulate; a simulated warm-up value is a
	// display placeholder and must never inflate the session total.
	authoritative := m.source == rateSourceEngine || m.source == rateSourceCounters
	if m.state == sessionRunning && authoritative && m.hashRate > 0 && elapsed > 0 {
		// Wall-clock elapsed, not the nominal tick period: ticks overlap
		// and drift under slow backends.
		m.totalHashes += m.hashRate * elapsed
	}
	m.lastTickAt = now

	if m.state == sessionRunning {
		m.history = append(m.history, hashrateSample{
			At:     now,
			Rate:   m.hashRate,
			Source: m.source,
			Height: m.blockHeight,
		})
		m.trimHistoryLocked(now)
	}
}

func (m *MiningMonitor) trimHistoryLocked(now time.Time) {
	cutoff := now.Add(-hashrateHistoryWindow)
	keepFrom := 0
	for keepFrom < len(m.history) && m.history[keepFrom].At.Before(cutoff) {
		keepFrom++
	}
	if keepFrom > 0 {
		m.history = append([]hashrateSample(nil), m.history[keepFrom:]...)
	}
}

// pollBlocks fetches recently mined blocks and feeds them to the ledger.
// Runs on every stats tick and immediately on a hashblock feed event.
func (m *MiningMonitor) pollBlocks(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	m.mu.Lock()
	account := m.account
	active := m.state == sessionRunning
	m.mu.Unlock()
	if account == "" {
		account = m.cfg.DefaultAccount
	}
	if account == "" && !active {
		return
	}

	reports, err := m.engine.RecentMinedBlocks(ctx, account, m.cfg.LookbackBlocks, m.cfg.RecentBlocksLimit)
	if err != nil {
		m.metrics.RecordPollFailure("recentblocks", err)
		logger.Debug("recent blocks poll failed", "error", err)
		return
	}
	m.ledger.Ingest(reports)
}

// PollBlocksNow triggers an immediate mined-block poll, used by the ZMQ feed
// to cut credit latency on hashblock notifications.
func (m *MiningMonitor) PollBlocksNow(ctx context.Context) {
	m.pollBlocks(ctx)
}

// simOscillation is a small bounded wobble applied to the synthetic rate so
// the warm-up display looks alive without drifting.
func simOscillation(elapsedSeconds float64) float64 {
	return simOscillationAmplitude * math.Sin(2*math.Pi*elapsedSeconds/simOscillationPeriod)
}

type HashratePoint struct {
	At     string  `json:"at"`
	Rate   float64 `json:"rate"`
	Source string  `json:"source"`
	Height uint64  `json:"height,omitempty"`
}

// MiningSnapshot is the read-only projection the status server serves.
type MiningSnapshot struct {
	State            string          `json:"state"`
	IsActive         bool            `json:"is_active"`
	Account          string          `json:"account,omitempty"`
	SessionStartedAt time.Time       `json:"session_started_at"`
	ActiveWorkers    int             `json:"active_workers"`
	IntensityPercent int             `json:"intensity_percent"`
	HashRate         float64         `json:"hash_rate"`
	HashRateText     string          `json:"hash_rate_text"`
	RateSource       string          `json:"rate_source"`
	TotalHashes      uint64          `json:"total_hashes_estimate"`
	BlockHeight      uint64          `json:"block_height"`
	History          []HashratePoint `json:"history,omitempty"`
}

func (m *MiningMonitor) Snapshot() MiningSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	history := make([]HashratePoint, 0, len(m.history))
	for _, s := range m.history {
		history = append(history, HashratePoint{
			At:     s.At.UTC().Format(time.RFC3339),
			Rate:   s.Rate,
			Source: s.Source.String(),
			Height: s.Height,
		})
	}
	return MiningSnapshot{
		State:            m.state.String(),
		IsActive:         m.state == sessionRunning,
		Account:          m.account,
		SessionStartedAt: m.sessionStartedAt,
		ActiveWorkers:    m.activeWorkers,
		IntensityPercent: m.cfg.IntensityPercent,
		HashRate:         m.hashRate,
		HashRateText:     formatRate(m.hashRate),
		RateSource:       m.source.String(),
		TotalHashes:      uint64(m.totalHashes),
		BlockHeight:      m.blockHeight,
		History:          history,
	}
}
