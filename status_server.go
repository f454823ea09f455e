package main

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"
)

// StatusServer serves the dashboard JSON views and the admin API. Read
// endpoints are cached per-key so a busy dashboard cannot hammer the
// monitors; mutating endpoints sit behind bearer-token auth.
type StatusServer struct {
	cfg     Config
	monitor *MiningMonitor
	ledger  *BlockLedger
	nodes   *NodeManager
	feed    *eventFeed
	metrics *Metrics
	auth    *adminAuth
	start   time.Time

	jsonCacheMu sync.RWMutex
	jsonCache   map[string]cachedJSONResponse

	httpSrv *http.Server
}

type cachedJSONResponse struct {
	payload   []byte
	updatedAt time.Time
	expiresAt time.Time
}

func NewStatusServer(cfg Config, monitor *MiningMonitor, ledger *BlockLedger, nodes *NodeManager, feed *eventFeed, metrics *Metrics, auth *adminAuth) *StatusServer {
	return &StatusServer{
		cfg:       cfg,
		monitor:   monitor,
		ledger:    ledger,
		nodes:     nodes,
		feed:      feed,
		metrics:   metrics,
		auth:      auth,
		start:     time.Now(),
		jsonCache: make(map[string]cachedJSONResponse),
	}
}

func (s *StatusServer) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/mining", s.handleMiningJSON)
	mux.HandleFunc("GET /api/blocks", s.handleBlocksJSON)
	mux.HandleFunc("GET /api/transactions", s.handleTransactionsJSON)
	mux.HandleFunc("GET /api/nodes", s.handleNodesJSON)
	mux.HandleFunc("GET /api/health", s.handleHealthJSON)
	mux.HandleFunc("GET /api/metrics", s.handleMetricsJSON)

	mux.HandleFunc("POST /api/admin/login-code", s.handleAdminLoginCode)
	mux.HandleFunc("POST /api/admin/login", s.handleAdminLogin)
	mux.HandleFunc("POST /api/admin/mining/start", s.auth.requireAdmin(s.handleMiningStart))
	mux.HandleFunc("POST /api/admin/mining/stop", s.auth.requireAdmin(s.handleMiningStop))
	mux.HandleFunc("POST /api/admin/nodes/connect", s.auth.requireAdmin(s.handleNodeConnect))
	mux.HandleFunc("POST /api/admin/nodes/disconnect", s.auth.requireAdmin(s.handleNodeDisconnect))
	mux.HandleFunc("POST /api/admin/nodes/remove", s.auth.requireAdmin(s.handleNodeRemove))
	mux.HandleFunc("POST /api/admin/nodes/reconnect-all", s.auth.requireAdmin(s.handleReconnectAll))
	mux.HandleFunc("POST /api/admin/blocks/page", s.auth.requireAdmin(s.handleBlocksPage))
	mux.HandleFunc("POST /api/admin/nodes/page", s.auth.requireAdmin(s.handleNodesPage))
	return mux
}

// Start begins serving in the background; errors other than a clean close
// are fatal since the daemon is useless without its API.
func (s *StatusServer) Start() {
	s.httpSrv = &http.Server{
		Addr:              s.cfg.StatusAddr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("status server listening", "addr", s.cfg.StatusAddr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("status server", err)
		}
	}()
}

func (s *StatusServer) Shutdown(ctx context.Context) {
	if s.httpSrv == nil {
		return
	}
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		logger.Warn("status server shutdown", "error", err)
	}
}

func (s *StatusServer) cachedJSONResponse(key string, ttl time.Duration, build func() ([]byte, error)) ([]byte, time.Time, time.Time, error) {
	now := time.Now()
	s.jsonCacheMu.RLock()
	entry, ok := s.jsonCache[key]
	if ok && now.Before(entry.expiresAt) && len(entry.payload) > 0 {
		payload := entry.payload
		s.jsonCacheMu.RUnlock()
		return payload, entry.updatedAt, entry.expiresAt, nil
	}
	s.jsonCacheMu.RUnlock()

	payload, err := build()
	if err != nil {
		return nil, time.Time{}, time.Time{}, err
	}

	updatedAt := time.Now()
	s.jsonCacheMu.Lock()
	s.jsonCache[key] = cachedJSONResponse{
		payload:   payload,
		updatedAt: updatedAt,
		expiresAt: updatedAt.Add(ttl),
	}
	s.jsonCacheMu.Unlock()
	return payload, updatedAt, updatedAt.Add(ttl), nil
}

func (s *StatusServer) serveCachedJSON(w http.ResponseWriter, key string, ttl time.Duration, build func() ([]byte, error)) {
	payload, updatedAt, expiresAt, err := s.cachedJSONResponse(key, ttl, build)
	if err != nil {
		logger.Error("cached json response error", "key", key, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("X-JSON-Updated-At", updatedAt.UTC().Format(time.RFC3339))
	w.Header().Set("X-JSON-Next-Update-At", expiresAt.UTC().Format(time.RFC3339))
	if _, err := w.Write(payload); err != nil {
		logger.Error("write cached json response", "key", key, "error", err)
	}
}

// invalidateJSONCache drops cached views whose underlying state just
// changed, so an admin mutation is visible on the next read.
func (s *StatusServer) invalidateJSONCache(keys ...string) {
	s.jsonCacheMu.Lock()
	for _, key := range keys {
		delete(s.jsonCache, key)
	}
	s.jsonCacheMu.Unlock()
}
