package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

// discordNotifier pushes credit and node-flap notices to one channel. It is
// strictly best-effort: every entry point tolerates a nil notifier and a
// full queue, so a Discord outage can never stall polling or crediting.
type discordNotifier struct {
	dg            *discordgo.Session
	channelID     string
	flapThreshold time.Duration

	queueMu      sync.Mutex
	queue        []string
	droppedLines int

	flapMu     sync.Mutex
	lastNotice map[string]time.Time // address -> last flap notice

	cancel context.CancelFunc
	done   chan struct{}
}

func newDiscordNotifier(cfg Config) (*discordNotifier, error) {
	token := strings.TrimSpace(cfg.DiscordBotToken)
	channelID := strings.TrimSpace(cfg.DiscordNotifyChannelID)
	if token == "" || channelID == "" {
		return nil, nil
	}

	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	dg.Identify.Intents = discordgo.MakeIntent(discordgo.IntentsGuilds)
	if err := dg.Open(); err != nil {
		return nil, err
	}

	threshold := time.Duration(cfg.DiscordNodeNotifyThresholdSeconds) * time.Second
	if threshold <= 0 {
		threshold = time.Duration(defaultDiscordNodeNotifySeconds) * time.Second
	}
	n := &discordNotifier{
		dg:            dg,
		channelID:     channelID,
		flapThreshold: threshold,
		lastNotice:    make(map[string]time.Time),
		done:          make(chan struct{}),
	}
	logger.Info("discord notifier started", "channel_id", channelID)
	return n, nil
}

func (n *discordNotifier) Start(ctx context.Context) {
	if n == nil {
		return
	}
	ctx, n.cancel = context.WithCancel(ctx)
	go n.sendLoop(ctx)
}

func (n *discordNotifier) Close() {
	if n == nil {
		return
	}
	if n.cancel != nil {
		n.cancel()
		<-n.done
	}
	_ = n.dg.Close()
}

func (n *discordNotifier) noticePrefix() string {
	return "[" + appSoftwareName + "] "
}

// enqueue adds one notice line; drops when the backlog is full so the
// callers (credit path, event feed) never block on Discord.
func (n *discordNotifier) enqueue(line string) {
	if n == nil {
		return
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	const maxQueued = 12
	n.queueMu.Lock()
	defer n.queueMu.Unlock()
	if len(n.queue) >= maxQueued {
		n.droppedLines++
		return
	}
	n.queue = append(n.queue, n.noticePrefix()+line)
}

// NotifyBlockCredited is wired as the ledger's onCredit hook.
func (n *discordNotifier) NotifyBlockCredited(rec MinedBlockRecord) {
	if n == nil {
		return
	}
	n.enqueue(fmt.Sprintf("Block credited: height %d, reward %.8f (hash %s)",
		rec.Number, rec.Reward, shortHash(rec.Hash)))
}

// NotifyNodeFlap reports online/offline transitions, rate limited per
// address so a flapping node produces at most one notice per threshold
// window.
func (n *discordNotifier) NotifyNodeFlap(node ProxyNode, previous NodeStatus) {
	if n == nil || node.Address == "" {
		return
	}
	now := time.Now()
	n.flapMu.Lock()
	if last, ok := n.lastNotice[node.Address]; ok && now.Sub(last) < n.flapThreshold {
		n.flapMu.Unlock()
		return
	}
	n.lastNotice[node.Address] = now
	n.flapMu.Unlock()

	n.enqueue(fmt.Sprintf("Node %s: %s -> %s", node.Address, previous, node.Status))
}

// sendLoop drains the queue at one message per tick, batching queued lines
// into a single message to stay inside Discord rate limits.
func (n *discordNotifier) sendLoop(ctx context.Context) {
	defer close(n.done)
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.sendQueued()
		}
	}
}

func (n *discordNotifier) sendQueued() {
	n.queueMu.Lock()
	if len(n.queue) == 0 && n.droppedLines == 0 {
		n.queueMu.Unlock()
		return
	}
	lines := n.queue
	dropped := n.droppedLines
	n.queue = nil
	n.droppedLines = 0
	n.queueMu.Unlock()

	if dropped > 0 {
		lines = append(lines, n.noticePrefix()+fmt.Sprintf(
			"Notification backlog full; dropped %d updates to stay within rate limits.", dropped))
	}
	msg := strings.Join(lines, "\n")
	const maxChars = 1800
	if len(msg) > maxChars {
		msg = msg[:maxChars]
	}

	_, err := n.dg.ChannelMessageSendComplex(n.channelID, &discordgo.MessageSend{
		Content:         msg,
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	})
	if err != nil {
		logger.Warn("discord notify send failed", "error", err)
		if !isDiscordPermanentError(err) {
			// Requeue on transient failure, bounded by the enqueue cap.
			for _, line := range lines {
				n.queueMu.Lock()
				if len(n.queue) < 12 {
					n.queue = append(n.queue, line)
				}
				n.queueMu.Unlock()
			}
		}
	}
}

func isDiscordPermanentError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, discordgo.ErrUnauthorized) {
		return true
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		switch restErr.Response.StatusCode {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return true
		}
	}
	return false
}

func shortHash(h string) string {
	if len(h) > 16 {
		return h[:16] + "..."
	}
	return h
}
