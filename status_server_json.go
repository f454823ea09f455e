package main

import (
	"net/http"
	"time"

	"github.com/hako/durafmt"
)

type blocksView struct {
	Blocks      []MinedBlockRecord `json:"blocks"`
	PageInfo    PageInfo           `json:"page_info"`
	SeenHashes  int                `json:"seen_hashes"`
	RewardTotal float64            `json:"reward_total"`
}

type transactionsView struct {
	Transactions []TransactionEntry `json:"transactions"`
	RewardTotal  float64            `json:"reward_total"`
}

type nodesView struct {
	Nodes    []ProxyNode `json:"nodes"`
	PageInfo PageInfo    `json:"page_info"`
}

type healthView struct {
	Software    string          `json:"software"`
	Uptime      string          `json:"uptime"`
	UptimeSecs  int64           `json:"uptime_seconds"`
	MiningState string          `json:"mining_state"`
	EngineOK    bool            `json:"engine_connected"`
	ProxyOK     bool            `json:"proxy_connected"`
	EventFeedOK bool            `json:"event_feed_healthy"`
	BlockHeight uint64          `json:"block_height"`
	Time        string          `json:"time"`
	Metrics     MetricsSnapshot `json:"metrics"`
}

func (s *StatusServer) handleMiningJSON(w http.ResponseWriter, r *http.Request) {
	s.serveCachedJSON(w, "mining", statusJSONRefreshInterval, func() ([]byte, error) {
		return fastJSONMarshal(s.monitor.Snapshot())
	})
}

func (s *StatusServer) handleBlocksJSON(w http.ResponseWriter, r *http.Request) {
	s.serveCachedJSON(w, "blocks", statusJSONRefreshInterval, func() ([]byte, error) {
		blocks, info := s.ledger.Page()
		return fastJSONMarshal(blocksView{
			Blocks:      blocks,
			PageInfo:    info,
			SeenHashes:  s.ledger.SeenCount(),
			RewardTotal: s.ledger.RewardTotal(),
		})
	})
}

func (s *StatusServer) handleTransactionsJSON(w http.ResponseWriter, r *http.Request) {
	s.serveCachedJSON(w, "transactions", statusJSONRefreshInterval, func() ([]byte, error) {
		return fastJSONMarshal(transactionsView{
			Transactions: s.ledger.Transactions(),
			RewardTotal:  s.ledger.RewardTotal(),
		})
	})
}

func (s *StatusServer) handleNodesJSON(w http.ResponseWriter, r *http.Request) {
	filter := NodeStatus(r.URL.Query().Get("status"))
	if filter != "" {
		if _, ok := nodeStatusPriority[filter]; !ok {
			http.Error(w, "unknown status filter", http.StatusBadRequest)
			return
		}
	}
	key := "nodes"
	if filter != "" {
		key += ":" + string(filter)
	}
	s.serveCachedJSON(w, key, statusJSONRefreshInterval, func() ([]byte, error) {
		nodes, info := s.nodes.Page(filter)
		return fastJSONMarshal(nodesView{Nodes: nodes, PageInfo: info})
	})
}

func (s *StatusServer) handleHealthJSON(w http.ResponseWriter, r *http.Request) {
	s.serveCachedJSON(w, "health", statusJSONRefreshInterval, func() ([]byte, error) {
		now := time.Now()
		uptime := now.Sub(s.start)
		snap := s.monitor.Snapshot()
		return fastJSONMarshal(healthView{
			Software:    appSoftwareName,
			Uptime:      durafmt.Parse(uptime.Truncate(time.Second)).LimitFirstN(2).String(),
			UptimeSecs:  int64(uptime.Seconds()),
			MiningState: snap.State,
			EngineOK:    s.monitor.engine.Connected(),
			ProxyOK:     s.nodes.proxy.Connected(),
			EventFeedOK: s.feed.Healthy(),
			BlockHeight: snap.BlockHeight,
			Time:        now.UTC().Format(time.RFC3339),
			Metrics:     s.metrics.Snapshot(),
		})
	})
}

func (s *StatusServer) handleMetricsJSON(w http.ResponseWriter, r *http.Request) {
	s.serveCachedJSON(w, "metrics", statusJSONRefreshInterval, func() ([]byte, error) {
		return fastJSONMarshal(s.metrics.Snapshot())
	})
}
