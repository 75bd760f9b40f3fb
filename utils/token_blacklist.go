package utils

import (
	"sync"
	"time"
)

const revokedKeyPrefix = "ama:revoked:"

var (
	revokedTokens  = map[string]time.Time{}
	revokedTokenMu sync.RWMutex
)

// BlacklistToken revokes a token until its natural expiration. Sign-out calls
// this so a stolen token stops working before the JWT itself expires.
func BlacklistToken(token string, expiresAt time.Time) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return
	}
	if rc := GetRedis(); rc != nil {
		ctx, cancel := opCtx(2 * time.Second)
		defer cancel()
		if rc.Set(ctx, revokedKeyPrefix+token, "1", ttl).Err() == nil {
			return
		}
	}
	revokedTokenMu.Lock()
	revokedTokens[token] = expiresAt
	revokedTokenMu.Unlock()
}

// IsTokenBlacklisted reports whether a token was revoked before its natural
// expiration. A Redis error fails open; accidental lockout of every signed-in
// user is worse than honoring a revoked token for a few seconds.
func IsTokenBlacklisted(token string) bool {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := opCtx(2 * time.Second)
		defer cancel()
		if n, err := rc.Exists(ctx, revokedKeyPrefix+token).Result(); err == nil && n > 0 {
			return true
		}
	}

	revokedTokenMu.RLock()
	expiresAt, ok := revokedTokens[token]
	revokedTokenMu.RUnlock()
	if !ok {
		return false
	}
	if time.Now().After(expiresAt) {
		revokedTokenMu.Lock()
		delete(revokedTokens, token)
		revokedTokenMu.Unlock()
		return false
	}
	return true
}
