// Package gate authenticates bearer tokens and enforces a cost-weighted
// sliding-window rate limit in front of every store operation.
package gate

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/trackmock/trackmock/pkg/store"
)

// Operation costs. Search is the most expensive because it scans the full
// issue set.
const (
	CostRead   = 1
	CostWrite  = 2
	CostSearch = 5
)

// Config tunes the limiter.
type Config struct {
	// Window is the rolling admission window.
	Window time.Duration
	// Limit is the total cost admitted per token within the window.
	Limit int
	// JWTSecret, when set, additionally accepts HS256-signed JWTs whose
	// subject names a known principal.
	JWTSecret string
}

// DefaultConfig returns the documented defaults: 100 cost units per 60s.
func DefaultConfig() Config {
	return Config{Window: 60 * time.Second, Limit: 100}
}

type entry struct {
	at   time.Time
	cost int
}

// Gate validates tokens against the store and tracks per-token spending.
type Gate struct {
	store *store.Store
	cfg   Config

	mu      sync.Mutex
	windows map[string][]entry

	// now is swappable for tests.
	now func() time.Time
}

// New creates a Gate backed by the given store.
func New(s *store.Store, cfg Config) *Gate {
	if cfg.Window <= 0 {
		cfg.Window = DefaultConfig().Window
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultConfig().Limit
	}
	return &Gate{
		store:   s,
		cfg:     cfg,
		windows: make(map[string][]entry),
		now:     time.Now,
	}
}

// Authenticate resolves a bearer token to its principal. Opaque seeded
// tokens are checked first; if a JWT secret is configured, HS256 tokens with
// a known subject are accepted too.
func (g *Gate) Authenticate(token string) (*store.AuthToken, error) {
	if token == "" {
		return nil, &store.UnauthorizedError{Message: "missing bearer token"}
	}
	if t, ok := g.store.TokenByValue(token); ok {
		return t, nil
	}
	if g.cfg.JWTSecret != "" {
		if t, ok := g.parseJWT(token); ok {
			return t, nil
		}
	}
	return nil, &store.UnauthorizedError{Message: "invalid bearer token"}
}

func (g *Gate) parseJWT(raw string) (*store.AuthToken, bool) {
	parsed, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		return []byte(g.cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid {
		return nil, false
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" || !g.store.UserExists(sub) {
		return nil, false
	}
	return &store.AuthToken{Token: raw, AccountID: sub}, true
}

// Admit authenticates the token and charges cost against its window.
// forced requests (the test override header on a flagged token) are rejected
// deterministically without touching the window. On success the remaining
// quota is returned for response headers.
func (g *Gate) Admit(token string, cost int, forced bool) (*store.AuthToken, int, error) {
	principal, err := g.Authenticate(token)
	if err != nil {
		return nil, 0, err
	}

	if forced && principal.ForceRateLimit {
		now := g.now()
		return nil, 0, &store.RateLimitedError{
			RetryAfter: int(g.cfg.Window.Seconds()),
			Remaining:  0,
			Reset:      now.Add(g.cfg.Window).Unix(),
			Forced:     true,
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	window := g.pruneLocked(principal.Token, now)

	spent := 0
	for _, e := range window {
		spent += e.cost
	}

	if spent+cost > g.cfg.Limit {
		retryAfter := 1
		reset := now.Add(g.cfg.Window).Unix()
		if len(window) > 0 {
			oldest := window[0].at.Add(g.cfg.Window).Sub(now)
			retryAfter = int(oldest.Seconds()) + 1
			reset = window[len(window)-1].at.Add(g.cfg.Window).Unix()
		}
		return nil, 0, &store.RateLimitedError{
			RetryAfter: retryAfter,
			Remaining:  g.cfg.Limit - spent,
			Reset:      reset,
		}
	}

	g.windows[principal.Token] = append(window, entry{at: now, cost: cost})
	return principal, g.cfg.Limit - spent - cost, nil
}

// pruneLocked drops entries older than the window. Caller holds g.mu.
func (g *Gate) pruneLocked(token string, now time.Time) []entry {
	window := g.windows[token]
	cutoff := now.Add(-g.cfg.Window)
	i := 0
	for i < len(window) && !window[i].at.After(cutoff) {
		i++
	}
	if i > 0 {
		window = append([]entry(nil), window[i:]...)
		g.windows[token] = window
	}
	return window
}
