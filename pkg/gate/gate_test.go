package gate

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackmock/trackmock/pkg/store"
)

func newGate(t *testing.T, cfg Config) (*Gate, *time.Time) {
	t.Helper()
	s := store.New(store.WithSeed())
	g := New(s, cfg)
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }
	return g, &now
}

func TestAuthenticate(t *testing.T) {
	g, _ := newGate(t, DefaultConfig())

	principal, err := g.Authenticate("token-alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", principal.AccountID)

	_, err = g.Authenticate("")
	var unauthorized *store.UnauthorizedError
	assert.ErrorAs(t, err, &unauthorized)

	_, err = g.Authenticate("token-unknown")
	assert.ErrorAs(t, err, &unauthorized)
}

func TestAuthenticateJWT(t *testing.T) {
	g, _ := newGate(t, Config{Window: time.Minute, Limit: 100, JWTSecret: "sekrit"})

	sign := func(sub, secret string) string {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub})
		signed, err := tok.SignedString([]byte(secret))
		require.NoError(t, err)
		return signed
	}

	principal, err := g.Authenticate(sign("bob", "sekrit"))
	require.NoError(t, err)
	assert.Equal(t, "bob", principal.AccountID)

	// Wrong signature.
	_, err = g.Authenticate(sign("bob", "wrong"))
	assert.Error(t, err)

	// Valid signature but unknown subject.
	_, err = g.Authenticate(sign("ghost", "sekrit"))
	assert.Error(t, err)
}

func TestAdmitChargesCost(t *testing.T) {
	g, _ := newGate(t, Config{Window: time.Minute, Limit: 100})

	// 50 writes at cost 2 exactly exhaust the budget.
	for i := 0; i < 50; i++ {
		_, remaining, err := g.Admit("token-alice", CostWrite, false)
		require.NoError(t, err, "write %d", i+1)
		assert.Equal(t, 100-(i+1)*2, remaining)
	}

	_, _, err := g.Admit("token-alice", CostWrite, false)
	var limited *store.RateLimitedError
	require.ErrorAs(t, err, &limited)
	assert.Positive(t, limited.RetryAfter)
	assert.False(t, limited.Forced)

	// A cheaper operation is also rejected once nothing fits.
	_, _, err = g.Admit("token-alice", CostRead, false)
	assert.ErrorAs(t, err, &limited)
}

func TestAdmitWindowSlides(t *testing.T) {
	g, now := newGate(t, Config{Window: time.Minute, Limit: 10})

	for i := 0; i < 2; i++ {
		_, _, err := g.Admit("token-alice", CostSearch, false)
		require.NoError(t, err)
	}
	_, _, err := g.Admit("token-alice", CostRead, false)
	require.Error(t, err)

	// After the window fully elapses the budget is back.
	*now = now.Add(61 * time.Second)
	_, remaining, err := g.Admit("token-alice", CostSearch, false)
	require.NoError(t, err)
	assert.Equal(t, 5, remaining)
}

func TestAdmitTokensAreIsolated(t *testing.T) {
	g, _ := newGate(t, Config{Window: time.Minute, Limit: 5})

	_, _, err := g.Admit("token-alice", CostSearch, false)
	require.NoError(t, err)
	_, _, err = g.Admit("token-alice", CostRead, false)
	require.Error(t, err)

	// Bob's budget is untouched by Alice's spending.
	_, remaining, err := g.Admit("token-bob", CostRead, false)
	require.NoError(t, err)
	assert.Equal(t, 4, remaining)
}

func TestForcedRateLimit(t *testing.T) {
	g, _ := newGate(t, DefaultConfig())

	// token-flaky is flagged; the override header forces a deterministic 429.
	_, _, err := g.Admit("token-flaky", CostRead, true)
	var limited *store.RateLimitedError
	require.ErrorAs(t, err, &limited)
	assert.True(t, limited.Forced)
	assert.Positive(t, limited.RetryAfter)

	// Without the override the token behaves normally.
	_, _, err = g.Admit("token-flaky", CostRead, false)
	assert.NoError(t, err)

	// The override is a no-op on unflagged tokens.
	_, _, err = g.Admit("token-alice", CostRead, true)
	assert.NoError(t, err)
}
