package utils

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// One-time link tokens back the magic-link sign-in and password-reset flows.
// Callers namespace their keys (magic:<email>, reset:<email>) so the two flows
// cannot consume each other's tokens.

type codeEntry struct {
	code      string
	expiresAt time.Time
}

var (
	codeStore   = map[string]codeEntry{}
	codeStoreMu sync.Mutex
)

// GenerateLinkToken creates an unguessable URL-safe one-time token.
func GenerateLinkToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func codeKey(key string) string {
	return "link:" + key
}

// SaveCode stores a one-time token under a namespaced key with TTL. Prefer
// Redis; fallback to memory.
func SaveCode(key, code string, ttl time.Duration) {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rc.Set(ctx, codeKey(key), code, ttl).Err(); err == nil {
			return
		}
	}
	codeStoreMu.Lock()
	codeStore[key] = codeEntry{code: code, expiresAt: time.Now().Add(ttl)}
	codeStoreMu.Unlock()
}

// VerifyAndConsumeCode checks a token and consumes it if valid. Prefer Redis;
// fallback to memory.
func VerifyAndConsumeCode(key, code string) bool {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		rkey := codeKey(key)
		// Prefer GETDEL (Redis >= 6.2)
		if val, err := rc.GetDel(ctx, rkey).Result(); err == nil {
			return val == code
		}
		// Fallback to atomic Lua: GET then DEL
		script := `local v=redis.call('GET', KEYS[1]); if v then redis.call('DEL', KEYS[1]); end; return v`
		if res, err := rc.Eval(ctx, script, []string{rkey}).Result(); err == nil {
			if res == nil {
				return false
			}
			if s, ok := res.(string); ok {
				return s == code
			}
			return false
		}
		// On Redis error (e.g., network), fall through to memory fallback
	}
	codeStoreMu.Lock()
	defer codeStoreMu.Unlock()
	entry, ok := codeStore[key]
	if !ok {
		return false
	}
	if time.Now().After(entry.expiresAt) {
		delete(codeStore, key)
		return false
	}
	if entry.code != code {
		return false
	}
	delete(codeStore, key)
	return true
}

// EmailCooldownTrySet sets a cooldown key for sending a sign-in link. Returns
// true if set, false if cooling down.
func EmailCooldownTrySet(email string, cooldown time.Duration) bool {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		key := "cooldown:email:" + email
		// Only a clean SetNX answer is authoritative. A Redis error falls
		// through to memory; the cooldown is an abuse brake, and an
		// unreachable Redis must not block sign-in mail entirely.
		if ok, err := rc.SetNX(ctx, key, "1", cooldown).Result(); err == nil {
			return ok
		}
	}
	// memory fallback
	key := "cooldown:email:mem:" + email
	codeStoreMu.Lock()
	defer codeStoreMu.Unlock()
	if entry, ok := codeStore[key]; ok && time.Now().Before(entry.expiresAt) {
		return false
	}
	codeStore[key] = codeEntry{code: "1", expiresAt: time.Now().Add(cooldown)}
	return true
}
