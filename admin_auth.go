package main

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// adminAuth issues and verifies the bearer tokens behind the mutating API.
// Tokens are HS256 with a per-deployment secret; without a configured secret
// a random one is generated at startup, which invalidates tokens on restart.
type adminAuth struct {
	secret   []byte
	issuer   string
	tokenTTL time.Duration
	codes    *oneTimeCodes
	metrics  *Metrics
}

type adminClaims struct {
	jwt.RegisteredClaims
}

func newAdminAuth(cfg Config, metrics *Metrics) *adminAuth {
	secret := strings.TrimSpace(cfg.AdminJWTSecret)
	if secret == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			fatal("generate admin token secret", err)
		}
		secret = hex.EncodeToString(buf)
		logger.Warn("admin token secret not configured; generated one (tokens will not survive a restart)")
	}
	ttl := time.Duration(cfg.AdminTokenTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = time.Duration(defaultAdminTokenTTLHours) * time.Hour
	}
	return &adminAuth{
		secret:   []byte(secret),
		issuer:   appSoftwareName,
		tokenTTL: ttl,
		codes:    newOneTimeCodes(),
		metrics:  metrics,
	}
}

// IssueLoginCode mints a one-time code and logs it; operators read it from
// the application log, there is no other distribution channel.
func (a *adminAuth) IssueLoginCode() (string, time.Time) {
	code, expiresAt := a.codes.Issue(time.Now())
	if code != "" {
		logger.Info("admin login code issued", "code", code, "expires_at", expiresAt.UTC().Format(time.RFC3339))
	}
	return code, expiresAt
}

// RedeemLoginCode exchanges a valid one-time code for a signed token.
func (a *adminAuth) RedeemLoginCode(code string) (token string, expiresAt time.Time, ok bool) {
	now := time.Now()
	if !a.codes.Redeem(code, now) {
		return "", time.Time{}, false
	}
	expiresAt = now.Add(a.tokenTTL)
	claims := adminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   "admin",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		logger.Error("sign admin token", "error", err)
		return "", time.Time{}, false
	}
	a.metrics.RecordAdminLogin()
	return signed, expiresAt, true
}

// VerifyToken checks signature, method, issuer and expiry.
func (a *adminAuth) VerifyToken(token string) bool {
	token = strings.TrimSpace(token)
	if token == "" {
		return false
	}
	claims := &adminClaims{}
	keyFunc := func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}
	tok, err := jwt.ParseWithClaims(token, claims, keyFunc,
		jwt.WithValidMethods([]string{"HS256"}), jwt.WithIssuer(a.issuer))
	if err != nil {
		return false
	}
	return tok.Valid
}

// requireAdmin wraps a mutating handler with bearer-token verification.
func (a *adminAuth) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token, found := strings.CutPrefix(auth, "Bearer ")
		if !found || !a.VerifyToken(token) {
			w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
