package main

import (
	"errors"
	"io"
	"net/http"
	"time"
)

func (s *StatusServer) readAdminJSON(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxAdminRequestBody))
	if err != nil {
		http.Error(w, "read request", http.StatusBadRequest)
		return false
	}
	if len(body) == 0 {
		return true
	}
	if err := fastJSONUnmarshal(body, out); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return false
	}
	return true
}

func (s *StatusServer) writeAdminJSON(w http.ResponseWriter, status int, v interface{}) {
	payload, err := fastJSONMarshal(v)
	if err != nil {
		logger.Error("marshal admin response", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

// handleAdminLoginCode mints a one-time code. The code itself only appears
// in the application log; the response confirms issuance and expiry so the
// dashboard can prompt the operator to go look.
func (s *StatusServer) handleAdminLoginCode(w http.ResponseWriter, r *http.Request) {
	code, expiresAt := s.auth.IssueLoginCode()
	if code == "" {
		http.Error(w, "could not issue code", http.StatusServiceUnavailable)
		return
	}
	s.writeAdminJSON(w, http.StatusOK, map[string]interface{}{
		"issued":     true,
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
	})
}

func (s *StatusServer) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if !s.readAdminJSON(w, r, &req) {
		return
	}
	token, expiresAt, ok := s.auth.RedeemLoginCode(req.Code)
	if !ok {
		http.Error(w, "invalid or expired code", http.StatusUnauthorized)
		return
	}
	s.writeAdminJSON(w, http.StatusOK, map[string]interface{}{
		"token":      token,
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
	})
}

func (s *StatusServer) handleMiningStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Account string `json:"account"`
	}
	if !s.readAdminJSON(w, r, &req) {
		return
	}
	if err := s.monitor.Start(r.Context(), req.Account); err != nil {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, errSessionActive):
			status = http.StatusConflict
		case errors.Is(err, errEngineUnavailable):
			status = http.StatusServiceUnavailable
		}
		http.Error(w, err.Error(), status)
		return
	}
	s.invalidateJSONCache("mining", "health")
	s.writeAdminJSON(w, http.StatusOK, s.monitor.Snapshot())
}

func (s *StatusServer) handleMiningStop(w http.ResponseWriter, r *http.Request) {
	s.monitor.Stop(r.Context())
	s.invalidateJSONCache("mining", "health")
	s.writeAdminJSON(w, http.StatusOK, s.monitor.Snapshot())
}

func (s *StatusServer) handleNodeConnect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address    string `json:"address"`
		Credential string `json:"credential"`
	}
	if !s.readAdminJSON(w, r, &req) {
		return
	}
	node, err := s.nodes.AddOrConnect(r.Context(), req.Address, req.Credential)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errDuplicateNode) {
			status = http.StatusConflict
		}
		http.Error(w, err.Error(), status)
		return
	}
	s.invalidateNodeViews()
	s.writeAdminJSON(w, http.StatusOK, node)
}

func (s *StatusServer) handleNodeDisconnect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address"`
	}
	if !s.readAdminJSON(w, r, &req) {
		return
	}
	if err := s.nodes.Disconnect(r.Context(), req.Address); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.invalidateNodeViews()
	s.writeAdminJSON(w, http.StatusOK, map[string]bool{"requested": true})
}

func (s *StatusServer) handleNodeRemove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address"`
	}
	if !s.readAdminJSON(w, r, &req) {
		return
	}
	if err := s.nodes.Remove(req.Address); err != nil {
		status := http.StatusNotFound
		if errors.Is(err, errNodeOnline) {
			status = http.StatusConflict
		}
		http.Error(w, err.Error(), status)
		return
	}
	s.invalidateNodeViews()
	s.writeAdminJSON(w, http.StatusOK, map[string]bool{"removed": true})
}

func (s *StatusServer) handleReconnectAll(w http.ResponseWriter, r *http.Request) {
	attempted := s.nodes.ReconnectAll(r.Context())
	s.invalidateNodeViews()
	s.writeAdminJSON(w, http.StatusOK, map[string]int{"attempted": attempted})
}

// handleBlocksPage changes the ledger's page or page size; absent fields
// leave the current value untouched.
func (s *StatusServer) handleBlocksPage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Page     int `json:"page"`
		PageSize int `json:"page_size"`
	}
	if !s.readAdminJSON(w, r, &req) {
		return
	}
	if req.PageSize > 0 {
		if !s.pageSizeAllowed(req.PageSize) {
			http.Error(w, "page size not offered", http.StatusBadRequest)
			return
		}
		s.ledger.SetPageSize(req.PageSize)
	}
	if req.Page > 0 {
		s.ledger.SetPage(req.Page)
	}
	s.invalidateJSONCache("blocks")
	blocks, info := s.ledger.Page()
	s.writeAdminJSON(w, http.StatusOK, blocksView{
		Blocks:      blocks,
		PageInfo:    info,
		SeenHashes:  s.ledger.SeenCount(),
		RewardTotal: s.ledger.RewardTotal(),
	})
}

func (s *StatusServer) handleNodesPage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Page     int `json:"page"`
		PageSize int `json:"page_size"`
	}
	if !s.readAdminJSON(w, r, &req) {
		return
	}
	if req.PageSize > 0 {
		if !s.pageSizeAllowed(req.PageSize) {
			http.Error(w, "page size not offered", http.StatusBadRequest)
			return
		}
		s.nodes.SetPageSize(req.PageSize)
	}
	if req.Page > 0 {
		s.nodes.SetPage(req.Page)
	}
	s.invalidateNodeViews()
	nodes, info := s.nodes.Page("")
	s.writeAdminJSON(w, http.StatusOK, nodesView{Nodes: nodes, PageInfo: info})
}

func (s *StatusServer) pageSizeAllowed(size int) bool {
	for _, opt := range s.cfg.PageSizeOptions {
		if size == opt {
			return true
		}
	}
	return false
}

func (s *StatusServer) invalidateNodeViews() {
	keys := []string{"nodes", "health"}
	for status := range nodeStatusPriority {
		keys = append(keys, "nodes:"+string(status))
	}
	s.invalidateJSONCache(keys...)
}
