package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"strayland/internal/config"
	"strayland/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

func newTestResolver(t *testing.T, mode string) *Resolver {
	t.Helper()
	r, err := NewResolver(&config.Config{
		AuthMode:     mode,
		JWTSecret:    testSecret,
		JWTIssuer:    "strayland-api",
		JWTAudience:  "strayland-app",
		VoterHashKey: "hash-key",
	})
	require.NoError(t, err)
	return r
}

func assertUnauthorized(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.CodeUnauthorized), "expected UNAUTHORIZED, got %v", err)
}

func TestResolve_BearerToken(t *testing.T) {
	t.Parallel()
	r := newTestResolver(t, config.AuthModeMixed)

	token, err := r.IssueToken("42", time.Hour)
	require.NoError(t, err)

	voter, err := r.Resolve(context.Background(), Credentials{BearerToken: token, ClientID: "device-1"})
	require.NoError(t, err)
	assert.Equal(t, "user:42", voter.ID)
	assert.Equal(t, "42", voter.Subject)
	assert.False(t, voter.Anonymous)
}

func TestResolve_RejectsBadTokens(t *testing.T) {
	t.Parallel()
	r := newTestResolver(t, config.AuthModeJWT)

	sign := func(claims jwt.Claims, method jwt.SigningMethod, key interface{}) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	base := func() jwt.RegisteredClaims {
		return jwt.RegisteredClaims{
			Subject:   "7",
			Issuer:    "strayland-api",
			Audience:  jwt.ClaimStrings{"strayland-app"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}
	}

	expired := base()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	wrongIssuer := base()
	wrongIssuer.Issuer = "someone-else"
	wrongAudience := base()
	wrongAudience.Audience = jwt.ClaimStrings{"other-app"}
	noSubject := base()
	noSubject.Subject = ""
	noExpiry := base()
	noExpiry.ExpiresAt = nil

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-jwt"},
		{"wrong secret", sign(base(), jwt.SigningMethodHS256, []byte("another-secret-another-secret-12345"))},
		{"expired", sign(expired, jwt.SigningMethodHS256, []byte(testSecret))},
		{"wrong issuer", sign(wrongIssuer, jwt.SigningMethodHS256, []byte(testSecret))},
		{"wrong audience", sign(wrongAudience, jwt.SigningMethodHS256, []byte(testSecret))},
		{"missing subject", sign(noSubject, jwt.SigningMethodHS256, []byte(testSecret))},
		{"missing expiry", sign(noExpiry, jwt.SigningMethodHS256, []byte(testSecret))},
		{"none algorithm", sign(base(), jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(context.Background(), Credentials{BearerToken: tt.token})
			assertUnauthorized(t, err)
		})
	}
}

func TestResolve_AnonymousClientID(t *testing.T) {
	t.Parallel()
	r := newTestResolver(t, config.AuthModeAnonymous)

	a1, err := r.Resolve(context.Background(), Credentials{ClientID: "device-a"})
	require.NoError(t, err)
	a2, err := r.Resolve(context.Background(), Credentials{ClientID: "  device-a  "})
	require.NoError(t, err)
	b, err := r.Resolve(context.Background(), Credentials{ClientID: "device-b"})
	require.NoError(t, err)

	assert.True(t, a1.Anonymous)
	assert.True(t, strings.HasPrefix(a1.ID, AnonymousVoterPrefix))
	assert.Equal(t, a1.ID, a2.ID, "same device must map to the same voter")
	assert.NotEqual(t, a1.ID, b.ID)
	assert.NotContains(t, a1.ID, "device-a", "raw client id must not leak into the voter id")
}

func TestResolve_HashKeySeparatesDeployments(t *testing.T) {
	t.Parallel()
	r1 := newTestResolver(t, config.AuthModeAnonymous)
	r2, err := NewResolver(&config.Config{AuthMode: config.AuthModeAnonymous, VoterHashKey: "other-key"})
	require.NoError(t, err)

	v1, err := r1.Resolve(context.Background(), Credentials{ClientID: "device-a"})
	require.NoError(t, err)
	v2, err := r2.Resolve(context.Background(), Credentials{ClientID: "device-a"})
	require.NoError(t, err)
	assert.NotEqual(t, v1.ID, v2.ID)
}

func TestResolve_ModeRestrictions(t *testing.T) {
	t.Parallel()

	jwtOnly := newTestResolver(t, config.AuthModeJWT)
	_, err := jwtOnly.Resolve(context.Background(), Credentials{ClientID: "device-a"})
	assertUnauthorized(t, err)

	anonOnly := newTestResolver(t, config.AuthModeAnonymous)
	token, err := jwtOnly.IssueToken("1", time.Hour)
	require.NoError(t, err)
	_, err = anonOnly.Resolve(context.Background(), Credentials{BearerToken: token})
	assertUnauthorized(t, err)

	_, err = anonOnly.Resolve(context.Background(), Credentials{})
	assertUnauthorized(t, err)

	_, err = anonOnly.Resolve(context.Background(), Credentials{ClientID: strings.Repeat("x", maxClientIDLength+1)})
	assertUnauthorized(t, err)
}

func TestNewResolver_RejectsLongHashKey(t *testing.T) {
	t.Parallel()
	_, err := NewResolver(&config.Config{AuthMode: config.AuthModeAnonymous, VoterHashKey: strings.Repeat("k", 65)})
	assert.Error(t, err)
}

func TestResolve_SubjectLengthBoundedByVoterColumn(t *testing.T) {
	t.Parallel()
	r := newTestResolver(t, config.AuthModeJWT)

	longest := strings.Repeat("s", models.MaxVoterIDLength-len(UserVoterPrefix))
	token, err := r.IssueToken(longest, time.Hour)
	require.NoError(t, err)
	voter, err := r.Resolve(context.Background(), Credentials{BearerToken: token})
	require.NoError(t, err)
	assert.Len(t, voter.ID, models.MaxVoterIDLength)

	token, err = r.IssueToken(strings.Repeat("s", 200), time.Hour)
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), Credentials{BearerToken: token})
	assertUnauthorized(t, err)
}
