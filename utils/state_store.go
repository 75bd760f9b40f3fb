package utils

import (
	"sync"
	"time"
)

const stateKeyPrefix = "ama:oauth:state:"

var (
	localStates  = map[string]time.Time{}
	localStateMu sync.Mutex
)

// SaveState records an OAuth state token for later single-use validation.
// Redis keeps the token visible across instances; the in-memory map only
// covers single-instance deployments when Redis is down.
func SaveState(state string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if rc := GetRedis(); rc != nil {
		ctx, cancel := opCtx(2 * time.Second)
		defer cancel()
		if rc.Set(ctx, stateKeyPrefix+state, "1", ttl).Err() == nil {
			return
		}
	}
	localStateMu.Lock()
	localStates[state] = time.Now().Add(ttl)
	localStateMu.Unlock()
}

// ConsumeState validates a state token and removes it so it cannot be
// replayed.
func ConsumeState(state string) bool {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := opCtx(2 * time.Second)
		defer cancel()
		key := stateKeyPrefix + state
		if v, err := rc.GetDel(ctx, key).Result(); err == nil {
			return v != ""
		}
		// Older servers lack GETDEL; emulate the atomic get+delete in Lua.
		script := `local v=redis.call('GET', KEYS[1]); if v then redis.call('DEL', KEYS[1]); end; return v`
		if res, err := rc.Eval(ctx, script, []string{key}).Result(); err == nil {
			return res != nil
		}
	}
	localStateMu.Lock()
	deadline, ok := localStates[state]
	if ok {
		delete(localStates, state)
	}
	localStateMu.Unlock()
	return ok && time.Now().Before(deadline)
}
