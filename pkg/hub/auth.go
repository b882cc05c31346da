package hub

import (
	"errors"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// ErrUnauthorized is returned for a missing or unknown bearer token.
var ErrUnauthorized = errors.New("unauthorized")

// HashToken returns the bcrypt hash of token for use in Config.TokenHashes.
// A cost of zero uses bcrypt.DefaultCost.
func HashToken(token string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(token), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// authenticator checks bearer tokens against bcrypt hashes. Tokens that
// verified once are remembered so reconnects skip the hash comparison.
type authenticator struct {
	hashes [][]byte

	mu       sync.Mutex
	verified map[string]struct{}
}

func newAuthenticator(hashes []string) *authenticator {
	a := &authenticator{verified: make(map[string]struct{})}
	for _, h := range hashes {
		a.hashes = append(a.hashes, []byte(h))
	}
	return a
}

func (a *authenticator) enabled() bool {
	return len(a.hashes) > 0
}

// check authenticates the request. The token is taken from the
// Authorization header, or the "token" query parameter for browsers that
// cannot set headers on a websocket upgrade.
func (a *authenticator) check(r *http.Request) error {
	if !a.enabled() {
		return nil
	}

	token := bearerToken(r)
	if token == "" {
		return ErrUnauthorized
	}

	a.mu.Lock()
	_, ok := a.verified[token]
	a.mu.Unlock()
	if ok {
		return nil
	}

	for _, h := range a.hashes {
		if bcrypt.CompareHashAndPassword(h, []byte(token)) == nil {
			a.mu.Lock()
			a.verified[token] = struct{}{}
			a.mu.Unlock()
			return nil
		}
	}
	return ErrUnauthorized
}

func bearerToken(r *http.Request) string {
	if v := r.Header.Get("Authorization"); v != "" {
		const prefix = "Bearer "
		if len(v) > len(prefix) && strings.EqualFold(v[:len(prefix)], prefix) {
			return strings.TrimSpace(v[len(prefix):])
		}
		return ""
	}
	return r.URL.Query().Get("token")
}
