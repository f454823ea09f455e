package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestStatusServer(t *testing.T, fe *fakeEngine) (*StatusServer, *BlockLedger, *NodeManager) {
	t.Helper()
	SetChainParams("mainnet")
	cfg := testMonitorConfig(fe.srv.URL)
	cfg.AdminJWTSecret = "status-server-test-secret"

	metrics := NewMetrics()
	ledger := NewBlockLedger(cfg.LedgerPageSize, nil, nil, metrics)
	monitor := NewMiningMonitor(cfg, newEngineClient(cfg), ledger, metrics)
	nodes := NewNodeManager(cfg, nil, metrics)
	t.Cleanup(nodes.Close)
	feed := newEventFeed("", monitor, nodes, metrics)
	auth := newAdminAuth(cfg, metrics)
	return NewStatusServer(cfg, monitor, ledger, nodes, feed, metrics, auth), ledger, nodes
}

func adminToken(t *testing.T, s *StatusServer) string {
	t.Helper()
	code, _ := s.auth.IssueLoginCode()
	token, _, ok := s.auth.RedeemLoginCode(code)
	if !ok {
		t.Fatal("could not mint admin token")
	}
	return token
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStatusEndpointsServeJSON(t *testing.T) {
	fe := newFakeEngine(t)
	s, ledger, _ := newTestStatusServer(t, fe)
	mux := s.routes()

	ledger.Ingest([]BlockReport{{Hash: "aa", Number: 1, Reward: 3.125}})

	for _, path := range []string{"/api/mining", "/api/blocks", "/api/transactions", "/api/nodes", "/api/health", "/api/metrics"} {
		rec := doJSON(t, mux, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s = %d", path, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("GET %s content type = %q", path, ct)
		}
		if !json.Valid(rec.Body.Bytes()) {
			t.Errorf("GET %s returned invalid JSON", path)
		}
	}

	var blocks blocksView
	rec := doJSON(t, mux, http.MethodGet, "/api/blocks", "", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &blocks); err != nil {
		t.Fatalf("decode blocks: %v", err)
	}
	if len(blocks.Blocks) != 1 || blocks.RewardTotal != 3.125 {
		t.Errorf("blocks view = %+v", blocks)
	}
}

func TestStatusNodesFilterValidation(t *testing.T) {
	fe := newFakeEngine(t)
	s, _, _ := newTestStatusServer(t, fe)
	mux := s.routes()

	if rec := doJSON(t, mux, http.MethodGet, "/api/nodes?status=online", "", nil); rec.Code != http.StatusOK {
		t.Errorf("valid filter = %d", rec.Code)
	}
	if rec := doJSON(t, mux, http.MethodGet, "/api/nodes?status=sideways", "", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid filter = %d, want 400", rec.Code)
	}
}

func TestAdminEndpointsRequireToken(t *testing.T) {
	fe := newFakeEngine(t)
	s, _, _ := newTestStatusServer(t, fe)
	mux := s.routes()

	paths := []string{
		"/api/admin/mining/start",
		"/api/admin/mining/stop",
		"/api/admin/nodes/connect",
		"/api/admin/nodes/disconnect",
		"/api/admin/nodes/remove",
		"/api/admin/nodes/reconnect-all",
		"/api/admin/blocks/page",
		"/api/admin/nodes/page",
	}
	for _, path := range paths {
		if rec := doJSON(t, mux, http.MethodPost, path, "", nil); rec.Code != http.StatusUnauthorized {
			t.Errorf("POST %s without token = %d, want 401", path, rec.Code)
		}
	}
}

func TestAdminMiningStartStop(t *testing.T) {
	fe := newFakeEngine(t)
	fe.set("startmining", true)
	fe.set("stopmining", true)
	s, _, _ := newTestStatusServer(t, fe)
	mux := s.routes()
	token := adminToken(t, s)

	rec := doJSON(t, mux, http.MethodPost, "/api/admin/mining/start", token, map[string]string{})
	if rec.Code != http.StatusOK {
		t.Fatalf("start = %d: %s", rec.Code, rec.Body.String())
	}
	var snap MiningSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.State != "running" {
		t.Errorf("state = %q, want running", snap.State)
	}

	// Second start conflicts.
	rec = doJSON(t, mux, http.MethodPost, "/api/admin/mining/start", token, map[string]string{})
	if rec.Code != http.StatusConflict {
		t.Errorf("double start = %d, want 409", rec.Code)
	}

	rec = doJSON(t, mux, http.MethodPost, "/api/admin/mining/stop", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stop = %d", rec.Code)
	}
}

func TestAdminNodeLifecycle(t *testing.T) {
	fe := newFakeEngine(t)
	s, _, nodes := newTestStatusServer(t, fe)
	mux := s.routes()
	token := adminToken(t, s)

	rec := doJSON(t, mux, http.MethodPost, "/api/admin/nodes/connect", token,
		map[string]string{"address": "relay.example.com:9000"})
	if rec.Code != http.StatusOK {
		t.Fatalf("connect = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, mux, http.MethodPost, "/api/admin/nodes/connect", token,
		map[string]string{"address": "relay.example.com:9000"})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate connect = %d, want 409", rec.Code)
	}

	rec = doJSON(t, mux, http.MethodPost, "/api/admin/nodes/connect", token,
		map[string]string{"address": "relay.example.com:22"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("reserved port connect = %d, want 400", rec.Code)
	}

	nodes.ApplyEvent("relay.example.com:9000", NodeOnline, 4, true)
	rec = doJSON(t, mux, http.MethodPost, "/api/admin/nodes/remove", token,
		map[string]string{"address": "relay.example.com:9000"})
	if rec.Code != http.StatusConflict {
		t.Errorf("remove online = %d, want 409", rec.Code)
	}

	nodes.ApplyEvent("relay.example.com:9000", NodeOffline, 0, false)
	rec = doJSON(t, mux, http.MethodPost, "/api/admin/nodes/remove", token,
		map[string]string{"address": "relay.example.com:9000"})
	if rec.Code != http.StatusOK {
		t.Errorf("remove offline = %d, want 200", rec.Code)
	}
}

func TestAdminPageSizeValidation(t *testing.T) {
	fe := newFakeEngine(t)
	s, ledger, _ := newTestStatusServer(t, fe)
	mux := s.routes()
	token := adminToken(t, s)

	var all []BlockReport
	for i := 0; i < 30; i++ {
		all = append(all, reportN(i))
	}
	ledger.Ingest(all)

	rec := doJSON(t, mux, http.MethodPost, "/api/admin/blocks/page", token,
		map[string]int{"page_size": 7})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unoffered page size = %d, want 400", rec.Code)
	}

	rec = doJSON(t, mux, http.MethodPost, "/api/admin/blocks/page", token,
		map[string]int{"page_size": 25, "page": 2})
	if rec.Code != http.StatusOK {
		t.Fatalf("page change = %d: %s", rec.Code, rec.Body.String())
	}
	var view blocksView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.PageInfo.PageSize != 25 || view.PageInfo.Page != 2 {
		t.Errorf("page info = %+v", view.PageInfo)
	}
	if len(view.Blocks) != 5 {
		t.Errorf("page 2 of 30 at size 25 has %d blocks, want 5", len(view.Blocks))
	}
}

func TestAdminLoginFlow(t *testing.T) {
	fe := newFakeEngine(t)
	s, _, _ := newTestStatusServer(t, fe)
	mux := s.routes()

	rec := doJSON(t, mux, http.MethodPost, "/api/admin/login-code", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login-code = %d", rec.Code)
	}

	rec = doJSON(t, mux, http.MethodPost, "/api/admin/login", "", map[string]string{"code": "wrong-code-here"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad code login = %d, want 401", rec.Code)
	}
}
