package main

import (
	"os"
	"path/filepath"
	"sync"
	"time"
)

// creditArchive appends one JSONL line per credited block. Writes are
// serialized by a background goroutine so Ingest never blocks on filesystem
// I/O.
type creditArchive struct {
	dir      string
	ch       chan []byte
	done     chan struct{}
	stopOnce sync.Once
}

type creditArchiveLine struct {
	Timestamp  time.Time `json:"timestamp"`
	Hash       string    `json:"hash"`
	Number     uint64    `json:"number"`
	Nonce      uint64    `json:"nonce"`
	Difficulty uint64    `json:"difficulty"`
	Reward     float64   `json:"reward"`
	TxID       string    `json:"tx_id"`
	TxStatus   string    `json:"tx_status"`
}

func newCreditArchive(dataDir string) *creditArchive {
	if dataDir == "" {
		dataDir = defaultDataDir
	}
	a := &creditArchive{
		dir:  filepath.Join(dataDir, "state"),
		ch:   make(chan []byte, 64),
		done: make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *creditArchive) run() {
	defer close(a.done)
	path := filepath.Join(a.dir, "credited_blocks.jsonl")
	var f *os.File
	for line := range a.ch {
		if f == nil {
			if err := os.MkdirAll(a.dir, 0o755); err != nil {
				logger.Warn("credit archive mkdir", "error", err)
				continue
			}
			nf, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				logger.Warn("credit archive open", "error", err)
				continue
			}
			f = nf
		}
		if _, err := f.Write(line); err != nil {
			logger.Warn("credit archive write", "error", err)
		}
	}
	if f != nil {
		_ = f.Close()
	}
}

// Append enqueues one archive line; drops with a warning when the archive
// writer is saturated rather than stalling the credit path.
func (a *creditArchive) Append(rec MinedBlockRecord, tx TransactionEntry) {
	if a == nil {
		return
	}
	line, err := fastJSONMarshal(creditArchiveLine{
		Timestamp:  time.Now().UTC(),
		Hash:       rec.Hash,
		Number:     rec.Number,
		Nonce:      rec.Nonce,
		Difficulty: rec.Difficulty,
		Reward:     rec.Reward,
		TxID:       tx.ID,
		TxStatus:   string(tx.Status),
	})
	if err != nil {
		logger.Warn("credit archive marshal", "error", err)
		return
	}
	line = append(line, '\n')
	select {
	case a.ch <- line:
	default:
		logger.Warn("credit archive queue full; line dropped", "hash", rec.Hash)
	}
}

// Close flushes queued lines and stops the writer.
func (a *creditArchive) Close() {
	if a == nil {
		return
	}
	a.stopOnce.Do(func() {
		close(a.ch)
		<-a.done
	})
}
