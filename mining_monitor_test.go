package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

const testPayoutAccount = "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"

// fakeEngine is an httptest-backed JSON-RPC mining engine. Method results
// can be swapped per test; unknown methods return an RPC error like a real
// engine missing the call.
type fakeEngine struct {
	srv *httptest.Server

	mu      sync.Mutex
	results map[string]interface{}
	calls   map[string]int
}

func newFakeEngine(t *testing.T) *fakeEngine {
	t.Helper()
	fe := &fakeEngine{
		results: map[string]interface{}{
			"getblockcount":    uint64(850000),
			"gethashrate":      "",
			"listrecentblocks": []BlockReport{},
		},
		calls: make(map[string]int),
	}
	fe.srv = httptest.NewServer(http.HandlerFunc(fe.handle))
	t.Cleanup(fe.srv.Close)
	return fe
}

func (fe *fakeEngine) handle(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	fe.mu.Lock()
	fe.calls[req.Method]++
	result, ok := fe.results[req.Method]
	fe.mu.Unlock()

	resp := rpcResponse{ID: req.ID}
	if !ok {
		resp.Error = &rpcError{Code: -32601, Message: "method not found"}
	} else {
		raw, err := json.Marshal(result)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		resp.Result = raw
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (fe *fakeEngine) set(method string, result interface{}) {
	fe.mu.Lock()
	fe.results[method] = result
	fe.mu.Unlock()
}

func (fe *fakeEngine) remove(method string) {
	fe.mu.Lock()
	delete(fe.results, method)
	fe.mu.Unlock()
}

func (fe *fakeEngine) callCount(method string) int {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.calls[method]
}

func testMonitorConfig(url string) Config {
	cfg := defaultConfig()
	cfg.EngineRPCURL = url
	cfg.DefaultAccount = testPayoutAccount
	cfg.MaxWorkers = 4
	cfg.IntensityPercent = 100
	return cfg
}

func newTestMonitor(t *testing.T, fe *fakeEngine) (*MiningMonitor, *BlockLedger) {
	t.Helper()
	SetChainParams("mainnet")
	cfg := testMonitorConfig(fe.srv.URL)
	ledger := NewBlockLedger(cfg.LedgerPageSize, nil, nil, NewMetrics())
	m := NewMiningMonitor(cfg, newEngineClient(cfg), ledger, NewMetrics())
	return m, ledger
}

func TestMonitorStartRequiresAccount(t *testing.T) {
	fe := newFakeEngine(t)
	m, _ := newTestMonitor(t, fe)
	m.cfg.DefaultAccount = ""

	if err := m.Start(context.Background(), ""); !errors.Is(err, errNoAccount) {
		t.Fatalf("Start with no account = %v, want errNoAccount", err)
	}
	if snap := m.Snapshot(); snap.State != "stopped" {
		t.Errorf("state after failed start = %q, want stopped", snap.State)
	}
}

func TestMonitorStartRejectsBadAccount(t *testing.T) {
	fe := newFakeEngine(t)
	m, _ := newTestMonitor(t, fe)

	if err := m.Start(context.Background(), "not-an-address"); err == nil {
		t.Fatal("Start accepted a malformed account")
	}
	if fe.callCount("startmining") != 0 {
		t.Error("startmining reached the engine despite local validation failure")
	}
}

func TestMonitorStartEngineUnavailable(t *testing.T) {
	fe := newFakeEngine(t)
	m, _ := newTestMonitor(t, fe)
	fe.remove("getblockcount") // probe fails

	if err := m.Start(context.Background(), ""); !errors.Is(err, errEngineUnavailable) {
		t.Fatalf("Start = %v, want errEngineUnavailable", err)
	}
	if snap := m.Snapshot(); snap.State != "stopped" {
		t.Errorf("state = %q, want stopped after engine probe failure", snap.State)
	}
}

func TestMonitorStartStopLifecycle(t *testing.T) {
	fe := newFakeEngine(t)
	fe.set("startmining", true)
	fe.set("stopmining", true)
	m, _ := newTestMonitor(t, fe)

	if err := m.Start(context.Background(), ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	snap := m.Snapshot()
	if snap.State != "running" || !snap.IsActive {
		t.Fatalf("state = %q active=%v, want running", snap.State, snap.IsActive)
	}
	if snap.ActiveWorkers != 4 {
		t.Errorf("workers = %d, want 4 at 100%% intensity", snap.ActiveWorkers)
	}
	if snap.SessionStartedAt.IsZero() {
		t.Error("SessionStartedAt not set")
	}

	if err := m.Start(context.Background(), ""); !errors.Is(err, errSessionActive) {
		t.Fatalf("second Start = %v, want errSessionActive", err)
	}

	m.Stop(context.Background())
	snap = m.Snapshot()
	if snap.State != "stopped" || snap.IsActive {
		t.Errorf("state after Stop = %q", snap.State)
	}
	if snap.ActiveWorkers != 0 || snap.HashRate != 0 {
		t.Errorf("Stop left workers=%d rate=%v, want zeros", snap.ActiveWorkers, snap.HashRate)
	}
	if !snap.SessionStartedAt.IsZero() {
		t.Error("Stop left SessionStartedAt set")
	}
}

func TestWorkersForIntensity(t *testing.T) {
	cases := []struct {
		pct, max, want int
	}{
		{100, 8, 8},
		{50, 8, 4},
		{1, 8, 1},
		{13, 8, 2}, // ceil(1.04)
		{100, 1, 1},
		{0, 8, 1},   // clamped up
		{200, 8, 8}, // clamped down
	}
	for _, tc := range cases {
		if got := workersForIntensity(tc.pct, tc.max); got != tc.want {
			t.Errorf("workersForIntensity(%d, %d) = %d, want %d", tc.pct, tc.max, got, tc.want)
		}
	}
}

func TestMonitorReconcilePriority(t *testing.T) {
	fe := newFakeEngine(t)
	fe.set("startmining", true)
	m, _ := newTestMonitor(t, fe)
	if err := m.Start(context.Background(), ""); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Engine rate present: authoritative.
	fe.set("gethashrate", "1.25 MH/s")
	m.tick(context.Background())
	snap := m.Snapshot()
	if snap.HashRate != 1.25e6 {
		t.Fatalf("hashRate = %v, want engine-reported 1.25e6", snap.HashRate)
	}
	if snap.RateSource != "authoritative" {
		t.Fatalf("rate source = %q, want authoritative", snap.RateSource)
	}

	// Engine goes silent but counters report a log-derived rate.
	fe.set("gethashrate", "")
	fe.set("getperfcounters", perfCounters{BlocksFound: 1, RateFromLogs: 90_000})
	m.tick(context.Background())
	snap = m.Snapshot()
	if snap.HashRate != 90_000 {
		t.Fatalf("hashRate = %v, want counter-derived 90000", snap.HashRate)
	}
	if snap.RateSource != "authoritative" {
		t.Fatalf("rate source = %q, want authoritative for counters", snap.RateSource)
	}

	// Nothing at all: simulated warm-up value, clearly tagged.
	fe.set("getperfcounters", perfCounters{})
	m.tick(context.Background())
	snap = m.Snapshot()
	if snap.RateSource != "simulated" {
		t.Fatalf("rate source = %q, want simulated", snap.RateSource)
	}
	expected := float64(snap.ActiveWorkers) * m.cfg.SimulatedPerWorkerRate
	lo := expected * (1 - simOscillationAmplitude)
	hi := expected * (1 + simOscillationAmplitude)
	if snap.HashRate < lo || snap.HashRate > hi {
		t.Errorf("simulated rate %v outside [%v, %v]", snap.HashRate, lo, hi)
	}
}

func TestMonitorSimulatedOnlyWhileRunning(t *testing.T) {
	fe := newFakeEngine(t)
	m, _ := newTestMonitor(t, fe)

	// Stopped session: no simulated rate appears.
	m.tick(context.Background())
	snap := m.Snapshot()
	if snap.HashRate != 0 {
		t.Errorf("stopped session hashRate = %v, want 0", snap.HashRate)
	}
	if snap.RateSource != "none" {
		t.Errorf("stopped session source = %q, want none", snap.RateSource)
	}
}

func TestMonitorTotalHashesMonotonicAndReset(t *testing.T) {
	fe := newFakeEngine(t)
	fe.set("startmining", true)
	fe.set("stopmining", true)
	fe.set("gethashrate", "100 KH/s")
	m, _ := newTestMonitor(t, fe)

	if err := m.Start(context.Background(), ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	var prev uint64
	for i := 0; i < 3; i++ {
		time.Sleep(10 * time.Millisecond)
		m.tick(context.Background())
		snap := m.Snapshot()
		if snap.TotalHashes < prev {
			t.Fatalf("totalHashes went backwards: %d -> %d", prev, snap.TotalHashes)
		}
		prev = snap.TotalHashes
	}
	if prev == 0 {
		t.Fatal("totalHashes never accumulated")
	}

	m.Stop(context.Background())
	if err := m.Start(context.Background(), ""); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if snap := m.Snapshot(); snap.TotalHashes != 0 {
		t.Errorf("totalHashes after restart = %d, want 0", snap.TotalHashes)
	}
}

func TestMonitorSimulatedRateDoesNotAccumulate(t *testing.T) {
	fe := newFakeEngine(t)
	fe.set("startmining", true)
	m, _ := newTestMonitor(t, fe)

	if err := m.Start(context.Background(), ""); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// No engine rate and no counters: each reconcile falls through to the
	// simulated warm-up value.
	base := time.Now()
	for i := 1; i <= 3; i++ {
		m.reconcile(base.Add(time.Duration(i)*5*time.Second), 0, true, 0, false, perfCounters{}, false)
	}
	snap := m.Snapshot()
	if snap.RateSource != "simulated" {
		t.Fatalf("rate source = %q, want simulated", snap.RateSource)
	}
	if snap.HashRate == 0 {
		t.Fatal("simulated display rate missing")
	}
	if snap.TotalHashes != 0 {
		t.Fatalf("totalHashes = %d from a simulated rate, want 0", snap.TotalHashes)
	}

	// An authoritative rate resumes accumulation.
	m.reconcile(base.Add(20*time.Second), 1e6, true, 0, false, perfCounters{}, false)
	if snap := m.Snapshot(); snap.TotalHashes == 0 {
		t.Error("authoritative rate did not accumulate")
	}
}

func TestMonitorTickAppliesNothingAfterCancel(t *testing.T) {
	fe := newFakeEngine(t)
	fe.set("startmining", true)
	m, _ := newTestMonitor(t, fe)

	if err := m.Start(context.Background(), ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	before := m.Snapshot()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	time.Sleep(10 * time.Millisecond)
	m.tick(ctx)

	after := m.Snapshot()
	if after.TotalHashes != before.TotalHashes {
		t.Errorf("totalHashes mutated by cancelled tick: %d -> %d", before.TotalHashes, after.TotalHashes)
	}
	if len(after.History) != len(before.History) {
		t.Errorf("history grew on cancelled tick: %d -> %d", len(before.History), len(after.History))
	}
	if after.HashRate != before.HashRate {
		t.Errorf("hashRate mutated by cancelled tick: %v -> %v", before.HashRate, after.HashRate)
	}
}

func TestMonitorHistoryWindowTrim(t *testing.T) {
	fe := newFakeEngine(t)
	fe.set("startmining", true)
	fe.set("stopmining", true)
	m, _ := newTestMonitor(t, fe)

	if err := m.Start(context.Background(), ""); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Samples at 0, 4, 8, 12 and 16 minutes; the last reconcile trims
	// everything older than the 15-minute window.
	base := time.Now()
	for i := 0; i < 5; i++ {
		m.reconcile(base.Add(time.Duration(i)*4*time.Minute), 1e6, true, 0, false, perfCounters{}, false)
	}
	if snap := m.Snapshot(); len(snap.History) != 4 {
		t.Fatalf("history length = %d, want 4 after window trim", len(snap.History))
	}

	m.Stop(context.Background())
	if snap := m.Snapshot(); len(snap.History) != 0 {
		t.Errorf("history after Stop = %d samples, want 0", len(snap.History))
	}
}

func TestMonitorFailedPollRetainsValues(t *testing.T) {
	fe := newFakeEngine(t)
	fe.set("startmining", true)
	fe.set("gethashrate", "2.00 MH/s")
	m, _ := newTestMonitor(t, fe)

	if err := m.Start(context.Background(), ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	m.tick(context.Background())
	before := m.Snapshot()
	if before.HashRate != 2e6 {
		t.Fatalf("hashRate = %v, want 2e6", before.HashRate)
	}

	// Engine stops answering hashrate with a zero-ish empty string; previous
	// display values must hold (aside from the simulated fallback which only
	// applies when it outranks nothing).
	fe.set("gethashrate", "")
	fe.set("getperfcounters", perfCounters{})
	fe.remove("getblockcount")
	m.tick(context.Background())
	after := m.Snapshot()
	if after.BlockHeight != before.BlockHeight {
		t.Errorf("block height changed on failed poll: %d -> %d", before.BlockHeight, after.BlockHeight)
	}
	if after.State != "running" {
		t.Errorf("state = %q, want running across failed polls", after.State)
	}
}

func TestMonitorPollBlocksFeedsLedger(t *testing.T) {
	fe := newFakeEngine(t)
	fe.set("startmining", true)
	fe.set("listrecentblocks", []BlockReport{
		{Hash: "aa", Number: 1, Reward: 3.125},
		{Hash: "bb", Number: 2, Reward: 3.125},
	})
	m, ledger := newTestMonitor(t, fe)

	if err := m.Start(context.Background(), ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	m.tick(context.Background())
	if got := ledger.VisibleCount(); got != 2 {
		t.Fatalf("ledger visible = %d, want 2", got)
	}

	// Same backend answer on the next tick: no double credit.
	m.tick(context.Background())
	if got := ledger.VisibleCount(); got != 2 {
		t.Errorf("ledger visible after repeat poll = %d, want 2", got)
	}
}
