package utils

import (
	"sync"
	"time"
)

var (
	oauthStates   = map[string]time.Time{}
	oauthStatesMu sync.Mutex
)

// SaveState records an OAuth state nonce with a TTL.
func SaveState(state string, ttl time.Duration) {
	oauthStatesMu.Lock()
	defer oauthStatesMu.Unlock()
	now := time.Now()
	for k, exp := range oauthStates {
		if now.After(exp) {
			delete(oauthStates, k)
		}
	}
	oauthStates[state] = now.Add(ttl)
}

// ConsumeState validates and removes an OAuth state nonce. Each state is
// usable at most once.
func ConsumeState(state string) bool {
	oauthStatesMu.Lock()
	defer oauthStatesMu.Unlock()
	exp, ok := oauthStates[state]
	if !ok {
		return false
	}
	delete(oauthStates, state)
	return time.Now().Before(exp)
}
