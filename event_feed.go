package main

import (
	"context"
	"encoding/hex"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/pebbe/zmq4"
)

// eventFeed subscribes to the backend's ZMQ publisher and turns push
// notifications into immediate reconciliation: hashblock triggers a mined
// block poll, nodestatus carries authoritative proxy node events. Polling
// remains the source of truth; the feed only cuts latency.
type eventFeed struct {
	addr    string
	monitor *MiningMonitor
	nodes   *NodeManager
	metrics *Metrics

	healthy     atomic.Bool
	disconnects uint64
	reconnects  uint64

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// nodeStatusEvent is the nodestatus topic payload.
type nodeStatusEvent struct {
	Address   string   `json:"address"`
	Status    string   `json:"status"`
	LatencyMs *float64 `json:"latency_ms"`
}

func newEventFeed(addr string, monitor *MiningMonitor, nodes *NodeManager, metrics *Metrics) *eventFeed {
	return &eventFeed{
		addr:    strings.TrimSpace(addr),
		monitor: monitor,
		nodes:   nodes,
		metrics: metrics,
		done:    make(chan struct{}),
	}
}

func (f *eventFeed) Start(ctx context.Context) {
	if f == nil || f.addr == "" {
		if f != nil {
			close(f.done)
		}
		return
	}
	ctx, f.cancel = context.WithCancel(ctx)
	go func() {
		defer close(f.done)
		f.subscribeLoop(ctx)
	}()
}

func (f *eventFeed) Stop() {
	if f == nil {
		return
	}
	f.once.Do(func() {
		if f.cancel != nil {
			f.cancel()
		}
		<-f.done
	})
}

func (f *eventFeed) Healthy() bool {
	return f != nil && f.healthy.Load()
}

func (f *eventFeed) markHealthy() {
	if f.healthy.Swap(true) {
		return
	}
	verb := "connected"
	if atomic.LoadUint64(&f.disconnects) > 0 {
		verb = "reconnected"
	}
	atomic.AddUint64(&f.reconnects, 1)
	logger.Info("event feed healthy", "addr", f.addr, "state", verb)
	f.metrics.RecordErrorEvent("zmq", verb+" to "+f.addr, time.Now())
}

func (f *eventFeed) markUnhealthy(reason string, err error) {
	fields := []interface{}{"reason", reason}
	if err != nil {
		fields = append(fields, "error", err)
	}
	if f.healthy.Swap(false) {
		atomic.AddUint64(&f.disconnects, 1)
		logger.Warn("event feed unhealthy", fields...)
	} else if err != nil {
		logger.Error("event feed error", fields...)
	}
}

// subscribeLoop owns the SUB socket lifecycle: create, subscribe, drain,
// and on any failure close and recreate with doubling backoff.
func (f *eventFeed) subscribeLoop(ctx context.Context) {
	backoff := zmqRecreateBackoffMin
	bump := func() {
		if backoff < zmqRecreateBackoffMax {
			backoff *= 2
			if backoff > zmqRecreateBackoffMax {
				backoff = zmqRecreateBackoffMax
			}
		}
	}

	for {
		if ctx.Err() != nil {
			return
		}

		sub, err := zmq4.NewSocket(zmq4.SUB)
		if err != nil {
			f.markUnhealthy("socket", err)
			if err := sleepContext(ctx, backoff); err != nil {
				return
			}
			bump()
			continue
		}
		_ = sub.SetLinger(0)

		ok := true
		for _, topic := range []string{"hashblock", "nodestatus"} {
			if err := sub.SetSubscribe(topic); err != nil {
				f.markUnhealthy("subscribe", err)
				ok = false
				break
			}
		}
		if ok {
			if err := sub.SetRcvtimeo(zmqReceiveTimeout); err != nil {
				f.markUnhealthy("set_rcvtimeo", err)
				ok = false
			}
		}
		if ok {
			_ = sub.SetReconnectIvl(zmqReconnectInterval)
			_ = sub.SetReconnectIvlMax(zmqReconnectMax)
			if err := sub.Connect(f.addr); err != nil {
				f.markUnhealthy("connect", err)
				ok = false
			}
		}
		if !ok {
			sub.Close()
			if err := sleepContext(ctx, backoff); err != nil {
				return
			}
			bump()
			continue
		}

		logger.Info("watching backend event feed", "addr", f.addr)

		for {
			if ctx.Err() != nil {
				sub.Close()
				return
			}
			frames, err := sub.RecvMessageBytes(0)
			if err != nil {
				eno := zmq4.AsErrno(err)
				if eno == zmq4.Errno(syscall.EAGAIN) || eno == zmq4.ETIMEDOUT {
					continue
				}
				f.markUnhealthy("receive", err)
				sub.Close()
				if err := sleepContext(ctx, backoff); err != nil {
					return
				}
				bump()
				break
			}
			if len(frames) < 2 {
				logger.Warn("event feed notification malformed", "frames", len(frames))
				continue
			}
			f.markHealthy()
			backoff = zmqRecreateBackoffMin
			f.handleNotification(ctx, string(frames[0]), frames[1])
		}
	}
}

func (f *eventFeed) handleNotification(ctx context.Context, topic string, payload []byte) {
	switch topic {
	case "hashblock":
		logger.Info("block notification", "block_hash", hex.EncodeToString(payload))
		f.monitor.PollBlocksNow(ctx)
	case "nodestatus":
		var ev nodeStatusEvent
		if err := fastJSONUnmarshal(payload, &ev); err != nil {
			logger.Warn("node status notification unparseable", "error", err)
			return
		}
		status, ok := parseNodeStatus(ev.Status)
		if !ok {
			logger.Warn("node status notification with unknown status", "status", ev.Status)
			return
		}
		latency := 0.0
		hasLatency := ev.LatencyMs != nil
		if hasLatency {
			latency = *ev.LatencyMs
		}
		f.nodes.ApplyEvent(ev.Address, status, latency, hasLatency)
	}
}
