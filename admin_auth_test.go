package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testAuth(t *testing.T) *adminAuth {
	t.Helper()
	cfg := defaultConfig()
	cfg.AdminJWTSecret = "test-secret-0123456789abcdef"
	return newAdminAuth(cfg, NewMetrics())
}

func TestOneTimeCodeSingleUse(t *testing.T) {
	codes := newOneTimeCodes()
	now := time.Now()

	code, expiresAt := codes.Issue(now)
	if code == "" {
		t.Fatal("Issue returned empty code")
	}
	if !expiresAt.After(now) {
		t.Fatal("code already expired at issue time")
	}

	if !codes.Redeem(code, now) {
		t.Fatal("first redeem failed")
	}
	if codes.Redeem(code, now) {
		t.Fatal("second redeem succeeded; code must be single use")
	}
}

func TestOneTimeCodeExpiry(t *testing.T) {
	codes := newOneTimeCodes()
	now := time.Now()
	code, _ := codes.Issue(now)

	late := now.Add(oneTimeCodeTTL + time.Second)
	if codes.Redeem(code, late) {
		t.Fatal("expired code redeemed")
	}
}

func TestOneTimeCodeEvictionCap(t *testing.T) {
	codes := newOneTimeCodes()
	now := time.Now()
	for i := 0; i < maxOneTimeCodesInMemory+50; i++ {
		codes.Issue(now.Add(time.Duration(i) * time.Millisecond))
	}
	codes.mu.Lock()
	n := len(codes.entries)
	codes.mu.Unlock()
	if n > maxOneTimeCodesInMemory {
		t.Errorf("entries = %d, want <= %d", n, maxOneTimeCodesInMemory)
	}
}

func TestAdminTokenLifecycle(t *testing.T) {
	auth := testAuth(t)

	code, _ := auth.IssueLoginCode()
	if code == "" {
		t.Fatal("no login code issued")
	}
	token, expiresAt, ok := auth.RedeemLoginCode(code)
	if !ok {
		t.Fatal("redeem failed")
	}
	if !expiresAt.After(time.Now()) {
		t.Error("token already expired")
	}
	if !auth.VerifyToken(token) {
		t.Error("freshly issued token does not verify")
	}

	if _, _, ok := auth.RedeemLoginCode(code); ok {
		t.Error("code redeemed twice")
	}
	if auth.VerifyToken("not-a-token") {
		t.Error("garbage token verified")
	}
	if auth.VerifyToken("") {
		t.Error("empty token verified")
	}
}

func TestAdminTokenWrongSecretRejected(t *testing.T) {
	authA := testAuth(t)

	cfgB := defaultConfig()
	cfgB.AdminJWTSecret = "another-secret-entirely-here"
	authB := newAdminAuth(cfgB, NewMetrics())

	code, _ := authA.IssueLoginCode()
	token, _, ok := authA.RedeemLoginCode(code)
	if !ok {
		t.Fatal("redeem failed")
	}
	if authB.VerifyToken(token) {
		t.Error("token signed with a different secret verified")
	}
}

func TestRequireAdminMiddleware(t *testing.T) {
	auth := testAuth(t)
	handler := auth.requireAdmin(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/admin/mining/start", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d, want 401", rec.Code)
	}

	code, _ := auth.IssueLoginCode()
	token, _, _ := auth.RedeemLoginCode(code)
	req = httptest.NewRequest(http.MethodPost, "/api/admin/mining/start", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("valid token: status = %d, want 204", rec.Code)
	}
}
