package main

import (
	"strings"
	"sync"
	"time"

	"github.com/martinhoefling/goxkcdpwgen/xkcdpwgen"
)

const oneTimeCodeTTL = 5 * time.Minute
const maxOneTimeCodesInMemory = 100

// oneTimeCodes issues short-lived single-use admin login codes. A code is
// printed to the log on request and exchanged for a bearer token exactly
// once; redeeming or expiring a code removes it.
type oneTimeCodes struct {
	mu      sync.Mutex
	entries map[string]oneTimeCodeEntry // code -> entry
}

type oneTimeCodeEntry struct {
	CreatedAt time.Time
	ExpiresAt time.Time
}

func generateOneTimeCodeXKCD() string {
	g := xkcdpwgen.NewGenerator()
	g.SetNumWords(3)
	g.SetCapitalize(false)
	g.SetDelimiter("-")
	return strings.TrimSpace(g.GeneratePasswordString())
}

var oneTimeCodeGenerator = generateOneTimeCodeXKCD

func newOneTimeCodes() *oneTimeCodes {
	return &oneTimeCodes{entries: make(map[string]oneTimeCodeEntry)}
}

func (c *oneTimeCodes) cleanupLocked(now time.Time) {
	for code, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, code)
		}
	}
}

func (c *oneTimeCodes) evictLocked(now time.Time) {
	c.cleanupLocked(now)
	// The cap is small; a linear scan for the oldest entry is fine.
	for len(c.entries) >= maxOneTimeCodesInMemory {
		var oldestCode string
		var oldestAt time.Time
		for code, entry := range c.entries {
			if oldestCode == "" || entry.CreatedAt.Before(oldestAt) {
				oldestCode = code
				oldestAt = entry.CreatedAt
			}
		}
		if oldestCode == "" {
			break
		}
		delete(c.entries, oldestCode)
	}
}

// Issue creates a new code valid for oneTimeCodeTTL.
func (c *oneTimeCodes) Issue(now time.Time) (code string, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictLocked(now)

	for i := 0; i < 50; i++ {
		raw := strings.TrimSpace(oneTimeCodeGenerator())
		if raw == "" {
			continue
		}
		if _, taken := c.entries[raw]; taken {
			continue
		}
		expiresAt = now.Add(oneTimeCodeTTL)
		c.entries[raw] = oneTimeCodeEntry{CreatedAt: now, ExpiresAt: expiresAt}
		return raw, expiresAt
	}
	return "", time.Time{}
}

// Redeem consumes a code. A code redeems at most once; expired codes fail.
func (c *oneTimeCodes) Redeem(code string, now time.Time) bool {
	code = strings.TrimSpace(code)
	if code == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[code]
	if !ok {
		return false
	}
	delete(c.entries, code)
	return !now.After(entry.ExpiresAt)
}
