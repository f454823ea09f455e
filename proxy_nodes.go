package main

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/remeh/sizedwaitgroup"
)

type NodeStatus string

const (
	NodeConnecting NodeStatus = "connecting"
	NodeOnline     NodeStatus = "online"
	NodeOffline    NodeStatus = "offline"
	NodeTimeout    NodeStatus = "timeout"
	NodeError      NodeStatus = "error"
)

// nodeStatusPriority orders nodes for display: healthiest first.
var nodeStatusPriority = map[NodeStatus]int{
	NodeOnline:     0,
	NodeConnecting: 1,
	NodeOffline:    2,
	NodeTimeout:    3,
	NodeError:      4,
}

func parseNodeStatus(s string) (NodeStatus, bool) {
	st := NodeStatus(s)
	_, ok := nodeStatusPriority[st]
	return st, ok
}

// ProxyNode is one managed peer. Address is empty only for discovered peers
// that cannot be dialed; those are tracked by ID and never get timers.
type ProxyNode struct {
	ID         string     `json:"id"`
	Address    string     `json:"address,omitempty"`
	Status     NodeStatus `json:"status"`
	LatencyMs  float64    `json:"latency_ms"`
	HasLatency bool       `json:"has_latency"`
	Region     string     `json:"region,omitempty"`
	AddedAt    time.Time  `json:"added_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// NodeManager runs the per-node connection state machine: validate →
// connecting → online/offline/timeout, with exactly one pending timeout
// timer per connecting address. Backend events always win over timers.
type NodeManager struct {
	proxy   *ProxyClient
	metrics *Metrics

	connectTimeout time.Duration
	region         string
	reconnectLimit int

	mu           sync.Mutex
	nodes        map[string]*ProxyNode // keyed by address
	discovered   map[string]*ProxyNode // non-addressable peers, keyed by id
	credentials  map[string]string     // dial credential per address, reused on reconnect
	timers       map[string]*time.Timer
	statusSince  map[string]time.Time
	cursor       pageCursor
	closed       bool

	// onFlap runs outside the lock on online/offline transitions (Discord).
	onFlap func(node ProxyNode, previous NodeStatus)

	listPoller *poller
}

func NewNodeManager(cfg Config, proxy *ProxyClient, metrics *Metrics) *NodeManager {
	timeout := time.Duration(cfg.NodeConnectTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultNodeConnectTimeout
	}
	return &NodeManager{
		proxy:          proxy,
		metrics:        metrics,
		connectTimeout: timeout,
		region:         cfg.NodeRegion,
		reconnectLimit: cfg.ReconnectConcurrency,
		nodes:          make(map[string]*ProxyNode),
		discovered:     make(map[string]*ProxyNode),
		credentials:    make(map[string]string),
		timers:         make(map[string]*time.Timer),
		statusSince:    make(map[string]time.Time),
		cursor:         newPageCursor(cfg.NodePageSize),
		listPoller:     newPoller("proxy-list"),
	}
}

func (nm *NodeManager) SetOnFlap(fn func(node ProxyNode, previous NodeStatus)) {
	nm.mu.Lock()
	nm.onFlap = fn
	nm.mu.Unlock()
}

// AddOrConnect validates the address, registers the node in `connecting` and
// asks the backend to dial. An address already present is rejected unless it
// sits in a re-connectable state (offline/timeout/error), in which case the
// attempt restarts cleanly: timer cleared and re-armed, never stacked.
func (nm *NodeManager) AddOrConnect(ctx context.Context, address, credential string) (ProxyNode, error) {
	if err := validateNodeAddress(address); err != nil {
		return ProxyNode{}, err
	}

	now := time.Now()
	nm.mu.Lock()
	if nm.closed {
		nm.mu.Unlock()
		return ProxyNode{}, errUnknownNode
	}
	node, exists := nm.nodes[address]
	if exists {
		switch node.Status {
		case NodeOffline, NodeTimeout, NodeError:
			// Reconnect attempt: restart from connecting.
		default:
			nm.mu.Unlock()
			return ProxyNode{}, errDuplicateNode
		}
		node.Status = NodeConnecting
		node.HasLatency = false
		node.LatencyMs = 0
		node.UpdatedAt = now
	} else {
		node = &ProxyNode{
			ID:        uuid.NewString(),
			Address:   address,
			Status:    NodeConnecting,
			Region:    nm.region,
			AddedAt:   now,
			UpdatedAt: now,
		}
		nm.nodes[address] = node
	}
	// An empty credential on a reconnect keeps the one the node was added
	// with; a non-empty one replaces it.
	if credential != "" || !exists {
		nm.credentials[address] = credential
	} else {
		credential = nm.credentials[address]
	}
	nm.statusSince[address] = now
	nm.armTimeoutLocked(address)
	snapshot := *node
	nm.mu.Unlock()

	if err := nm.proxy.ConnectNode(ctx, address, credential); err != nil {
		// The dial request itself failed; the timer keeps running so the
		// node still resolves to timeout if no event ever arrives.
		logger.Warn("connect node request", "address", address, "error", err)
	}
	return snapshot, nil
}

// armTimeoutLocked starts the single pending timeout timer for address,
// replacing (never stacking) any previous one. The fired callback verifies
// it is still the registered timer, so a cancelled-but-racing timer can
// never apply a stale timeout.
func (nm *NodeManager) armTimeoutLocked(address string) {
	nm.cancelTimerLocked(address)
	var t *time.Timer
	t = time.AfterFunc(nm.connectTimeout, func() {
		nm.timeoutFired(address, t)
	})
	nm.timers[address] = t
}

func (nm *NodeManager) cancelTimerLocked(address string) {
	if t, ok := nm.timers[address]; ok {
		t.Stop()
		delete(nm.timers, address)
	}
}

func (nm *NodeManager) timeoutFired(address string, t *time.Timer) {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	if nm.timers[address] != t {
		// Replaced or cancelled while this callback was in flight.
		return
	}
	delete(nm.timers, address)
	node, ok := nm.nodes[address]
	if !ok || node.Status != NodeConnecting {
		return
	}
	node.Status = NodeTimeout
	node.UpdatedAt = time.Now()
	nm.statusSince[address] = node.UpdatedAt
	nm.metrics.RecordTimeoutFired()
	logger.Info("node connect timeout", "address", address)
}

// ApplyEvent applies an authoritative backend status event. It cancels any
// pending timeout timer and wins unconditionally, regardless of whether the
// timer already fired: the timer's only side effect is a status that this
// overwrites.
func (nm *NodeManager) ApplyEvent(address string, status NodeStatus, latencyMs float64, hasLatency bool) {
	if _, ok := nodeStatusPriority[status]; !ok {
		logger.Warn("ignoring event with unknown status", "address", address, "status", string(status))
		return
	}

	nm.mu.Lock()
	nm.cancelTimerLocked(address)
	node, ok := nm.nodes[address]
	if !ok {
		nm.mu.Unlock()
		logger.Debug("event for unknown node ignored", "address", address)
		return
	}
	previous := node.Status
	node.Status = status
	node.HasLatency = hasLatency
	if hasLatency {
		node.LatencyMs = latencyMs
	} else {
		node.LatencyMs = 0
	}
	node.UpdatedAt = time.Now()
	if previous != status {
		nm.statusSince[address] = node.UpdatedAt
	}
	nm.metrics.RecordEventApplied()
	snapshot := *node
	onFlap := nm.onFlap
	nm.mu.Unlock()

	if onFlap != nil && previous != status && (status == NodeOnline || status == NodeOffline) {
		onFlap(snapshot, previous)
	}
}

// Disconnect cancels the pending timer and requests a backend disconnect.
// The node stays in its current status until the authoritative offline
// event arrives.
func (nm *NodeManager) Disconnect(ctx context.Context, address string) error {
	nm.mu.Lock()
	_, ok := nm.nodes[address]
	if !ok {
		nm.mu.Unlock()
		return errUnknownNode
	}
	nm.cancelTimerLocked(address)
	nm.mu.Unlock()

	if err := nm.proxy.DisconnectNode(ctx, address); err != nil {
		logger.Warn("disconnect node request", "address", address, "error", err)
	}
	return nil
}

// Remove deletes a node and its timer state. Online nodes must be
// disconnected first.
func (nm *NodeManager) Remove(address string) error {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	node, ok := nm.nodes[address]
	if !ok {
		if _, disc := nm.discovered[address]; disc {
			delete(nm.discovered, address)
			return nil
		}
		return errUnknownNode
	}
	if node.Status == NodeOnline {
		return errNodeOnline
	}
	nm.cancelTimerLocked(address)
	delete(nm.nodes, address)
	delete(nm.credentials, address)
	delete(nm.statusSince, address)
	nm.cursor.clamp(nm.visibleCountLocked(""))
	return nil
}

// ReconnectAll re-dials every node in a re-connectable state with bounded
// concurrency, each with the credential it was originally added with.
func (nm *NodeManager) ReconnectAll(ctx context.Context) int {
	nm.mu.Lock()
	var addrs []string
	for addr, node := range nm.nodes {
		switch node.Status {
		case NodeOffline, NodeTimeout, NodeError:
			addrs = append(addrs, addr)
		}
	}
	nm.mu.Unlock()
	sort.Strings(addrs)

	limit := nm.reconnectLimit
	if limit < 1 {
		limit = defaultReconnectConcurrency
	}
	swg := sizedwaitgroup.New(limit)
	for _, addr := range addrs {
		swg.Add()
		go func(address string) {
			defer swg.Done()
			if _, err := nm.AddOrConnect(ctx, address, ""); err != nil {
				logger.Warn("reconnect attempt", "address", address, "error", err)
			}
		}(addr)
	}
	swg.Wait()
	return len(addrs)
}

// RefreshFromBackend merges a listnodes poll. Known addressable nodes get
// the authoritative status/latency; unknown addressable entries are adopted
// as-is (no timer: no attempt of ours is pending); non-addressable peers are
// tracked by ID for display only.
func (nm *NodeManager) RefreshFromBackend(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	nm.metrics.RecordPollTick()
	reports, err := nm.proxy.ListNodes(ctx)
	if err != nil {
		nm.metrics.RecordPollFailure("listnodes", err)
		logger.Debug("list nodes poll failed", "error", err)
		return
	}
	if ctx.Err() != nil {
		// Cancelled mid-poll; do not apply a merge that raced teardown.
		return
	}

	now := time.Now()
	for _, r := range reports {
		status, ok := parseNodeStatus(r.Status)
		if !ok {
			continue
		}
		if r.Address == "" {
			if r.ID == "" {
				continue
			}
			nm.mu.Lock()
			node, exists := nm.discovered[r.ID]
			if !exists {
				node = &ProxyNode{ID: r.ID, Region: r.Region, AddedAt: now}
				nm.discovered[r.ID] = node
			}
			node.Status = status
			node.HasLatency = r.LatencyMs > 0
			node.LatencyMs = r.LatencyMs
			node.UpdatedAt = now
			nm.mu.Unlock()
			continue
		}

		nm.mu.Lock()
		_, known := nm.nodes[r.Address]
		nm.mu.Unlock()
		if known {
			nm.ApplyEvent(r.Address, status, r.LatencyMs, r.LatencyMs > 0)
			continue
		}

		nm.mu.Lock()
		region := r.Region
		if region == "" {
			region = nm.region
		}
		id := r.ID
		if id == "" {
			id = uuid.NewString()
		}
		nm.nodes[r.Address] = &ProxyNode{
			ID:         id,
			Address:    r.Address,
			Status:     status,
			HasLatency: r.LatencyMs > 0,
			LatencyMs:  r.LatencyMs,
			Region:     region,
			AddedAt:    now,
			UpdatedAt:  now,
		}
		nm.statusSince[r.Address] = now
		nm.mu.Unlock()
	}
}

// StartPolling begins the periodic listnodes reconciliation.
func (nm *NodeManager) StartPolling(intervalSeconds int) {
	if nm.proxy == nil {
		return
	}
	nm.listPoller.Start(time.Duration(intervalSeconds)*time.Second, nm.RefreshFromBackend)
}

// Close stops polling and cancels every pending timer; nothing mutates node
// state after it returns.
func (nm *NodeManager) Close() {
	nm.listPoller.Stop()
	nm.mu.Lock()
	defer nm.mu.Unlock()
	nm.closed = true
	for addr, t := range nm.timers {
		t.Stop()
		delete(nm.timers, addr)
	}
}

// StatusSince reports how long a node has been in its current status.
func (nm *NodeManager) StatusSince(address string) (time.Time, bool) {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	since, ok := nm.statusSince[address]
	return since, ok
}

func (nm *NodeManager) visibleCountLocked(filter NodeStatus) int {
	count := 0
	for _, node := range nm.nodes {
		if filter == "" || node.Status == filter {
			count++
		}
	}
	for _, node := range nm.discovered {
		if filter == "" || node.Status == filter {
			count++
		}
	}
	return count
}

func (nm *NodeManager) sortedLocked(filter NodeStatus) []ProxyNode {
	out := make([]ProxyNode, 0, len(nm.nodes)+len(nm.discovered))
	for _, node := range nm.nodes {
		if filter == "" || node.Status == filter {
			out = append(out, *node)
		}
	}
	for _, node := range nm.discovered {
		if filter == "" || node.Status == filter {
			out = append(out, *node)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := nodeStatusPriority[out[i].Status], nodeStatusPriority[out[j].Status]
		if pi != pj {
			return pi < pj
		}
		if out[i].Address != out[j].Address {
			return out[i].Address < out[j].Address
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Nodes is a pure projection: status-priority order, optionally filtered by
// a single status.
func (nm *NodeManager) Nodes(filter NodeStatus) []ProxyNode {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	return nm.sortedLocked(filter)
}

func (nm *NodeManager) SetPageSize(size int) {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	nm.cursor.setPageSize(size, nm.visibleCountLocked(""))
}

func (nm *NodeManager) SetPage(page int) {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	nm.cursor.setPage(page, nm.visibleCountLocked(""))
}

// Page returns the current window over the filtered, sorted projection.
func (nm *NodeManager) Page(filter NodeStatus) ([]ProxyNode, PageInfo) {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	all := nm.sortedLocked(filter)
	lo, hi, info := nm.cursor.window(len(all))
	return all[lo:hi], info
}

// PendingTimerCount is used by tests and the health endpoint to assert the
// one-timer-per-connecting-address invariant.
func (nm *NodeManager) PendingTimerCount() int {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	return len(nm.timers)
}
