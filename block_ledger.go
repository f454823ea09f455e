package main

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// MinedBlockRecord is one discovered-block credit event. Records are never
// mutated after creation; they are evicted from the visible window on
// overflow but stay in the seen set.
type MinedBlockRecord struct {
	Hash         string    `json:"hash"`
	Number       uint64    `json:"number"`
	Nonce        uint64    `json:"nonce"`
	Difficulty   uint64    `json:"difficulty"`
	Reward       float64   `json:"reward"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

type txStatus string

const (
	txStatusPending   txStatus = "pending"
	txStatusCompleted txStatus = "completed"
)

// TransactionEntry is the two-phase credit record: created pending at
// insertion, reconciled to completed by ConfirmCredits keyed on the block
// hash, never by position.
type TransactionEntry struct {
	ID          string    `json:"id"`
	BlockHash   string    `json:"block_hash"`
	Amount      float64   `json:"amount"`
	Status      txStatus  `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

// BlockLedger owns the deduplicated, bounded, paginated collection of
// discovered-block credit events. Callers submit candidate reports and read
// derived projections; nothing outside the ledger touches the seen set.
type BlockLedger struct {
	mu          sync.Mutex
	seen        map[string]struct{}
	records     []MinedBlockRecord // most-recent-first, capped
	txs         []TransactionEntry // most-recent-first, capped
	rewardTotal float64
	cursor      pageCursor

	store   *stateStore
	archive *creditArchive
	metrics *Metrics

	// onCredit runs outside the ledger lock for each newly credited record
	// (Discord notice). Display-only; crediting has already happened.
	onCredit func(MinedBlockRecord)
}

func NewBlockLedger(pageSize int, store *stateStore, archive *creditArchive, metrics *Metrics) *BlockLedger {
	l := &BlockLedger{
		seen:    make(map[string]struct{}),
		cursor:  newPageCursor(pageSize),
		store:   store,
		archive: archive,
		metrics: metrics,
	}
	if hashes, err := store.SeenHashes(); err != nil {
		logger.Warn("seed seen hashes from state db", "error", err)
	} else {
		for _, h := range hashes {
			l.seen[h] = struct{}{}
		}
		if len(hashes) > 0 {
			logger.Info("seeded block dedup set", "hashes", len(hashes))
		}
	}
	if total, err := store.RewardTotal(); err != nil {
		logger.Warn("restore reward total from state db", "error", err)
	} else {
		l.rewardTotal = total
	}
	return l
}

func (l *BlockLedger) SetOnCredit(fn func(MinedBlockRecord)) {
	l.mu.Lock()
	l.onCredit = fn
	l.mu.Unlock()
}

// Ingest merges candidate reports into the ledger. Each previously unseen
// hash is credited exactly once, in the order the backend returned it;
// duplicates (same batch or any earlier poll, evicted or not) are silently
// ignored. Returns the newly credited records.
func (l *BlockLedger) Ingest(candidates []BlockReport) []MinedBlockRecord {
	if len(candidates) == 0 {
		return nil
	}

	type creditPair struct {
		rec MinedBlockRecord
		tx  TransactionEntry
	}
	var credited []creditPair

	l.mu.Lock()
	for _, cand := range candidates {
		key := blockDedupKey(cand)
		if _, dup := l.seen[key]; dup {
			// Expected under retried/overlapping polls; not an error.
			l.metrics.RecordDuplicateIgnored()
			continue
		}
		l.seen[key] = struct{}{}

		discoveredAt := time.Now()
		if cand.Timestamp > 0 {
			discoveredAt = time.Unix(cand.Timestamp, 0)
		}
		rec := MinedBlockRecord{
			Hash:         key,
			Number:       cand.Number,
			Nonce:        cand.Nonce,
			Difficulty:   cand.Difficulty,
			Reward:       cand.Reward,
			DiscoveredAt: discoveredAt,
		}
		tx := TransactionEntry{
			ID:        uuid.NewString(),
			BlockHash: key,
			Amount:    cand.Reward,
			Status:    txStatusPending,
			CreatedAt: time.Now(),
		}

		l.records = append([]MinedBlockRecord{rec}, l.records...)
		l.txs = append([]TransactionEntry{tx}, l.txs...)
		l.rewardTotal += cand.Reward
		l.metrics.RecordBlockCredited()
		credited = append(credited, creditPair{rec: rec, tx: tx})
	}

	// Truncation bounds the visible window only; the seen set keeps every
	// hash so a block that scrolled out can never be re-credited.
	if len(l.records) > ledgerMaxVisibleBlocks {
		l.records = l.records[:ledgerMaxVisibleBlocks]
	}
	if len(l.txs) > ledgerMaxVisibleTransactions {
		l.txs = l.txs[:ledgerMaxVisibleTransactions]
	}
	if len(credited) > 0 {
		// Jump back to page 1 so the newest entry is visible.
		l.cursor.setPage(1, len(l.records))
	}
	onCredit := l.onCredit
	l.mu.Unlock()

	out := make([]MinedBlockRecord, 0, len(credited))
	for _, c := range credited {
		out = append(out, c.rec)
		if err := l.store.RecordCredit(c.rec, c.tx); err != nil {
			logger.Warn("persist credited block", "hash", c.rec.Hash, "error", err)
		}
		l.archive.Append(c.rec, c.tx)
		if onCredit != nil {
			onCredit(c.rec)
		}
		logger.Info("block credited", "hash", c.rec.Hash, "number", c.rec.Number, "reward", c.rec.Reward)
	}
	return out
}

// ConfirmCredits reconciles pending transactions to completed for the given
// block hashes once the authoritative balance confirms them. Unknown hashes
// are ignored. Returns how many entries flipped.
func (l *BlockLedger) ConfirmCredits(hashes []string) int {
	now := time.Now()
	confirmed := 0
	l.mu.Lock()
	for _, h := range hashes {
		key := blockDedupKey(BlockReport{Hash: h})
		for i := range l.txs {
			if l.txs[i].BlockHash == key && l.txs[i].Status == txStatusPending {
				l.txs[i].Status = txStatusCompleted
				l.txs[i].ConfirmedAt = now
				confirmed++
			}
		}
	}
	l.mu.Unlock()

	for _, h := range hashes {
		key := blockDedupKey(BlockReport{Hash: h})
		if err := l.store.ConfirmTransactions(key, now); err != nil {
			logger.Warn("confirm transactions", "hash", key, "error", err)
		}
	}
	return confirmed
}

// RewardTotal is the sum of rewards over every ever-credited unique hash,
// evicted or not.
func (l *BlockLedger) RewardTotal() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rewardTotal
}

func (l *BlockLedger) VisibleCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

func (l *BlockLedger) SeenCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen)
}

// SetPageSize changes the window size, keeping the choice and re-clamping
// the current page.
func (l *BlockLedger) SetPageSize(size int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cursor.setPageSize(size, len(l.records))
}

func (l *BlockLedger) SetPage(page int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cursor.setPage(page, len(l.records))
}

// Page returns the current window of the visible ledger, most recent first.
func (l *BlockLedger) Page() ([]MinedBlockRecord, PageInfo) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lo, hi, info := l.cursor.window(len(l.records))
	return append([]MinedBlockRecord(nil), l.records[lo:hi]...), info
}

// Transactions returns the visible transaction entries, most recent first.
func (l *BlockLedger) Transactions() []TransactionEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]TransactionEntry(nil), l.txs...)
}
