// Package auth resolves request credentials into stable voter identities.
package auth

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"strayland/internal/config"
	"strayland/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/blake2b"
)

// Voter id prefixes; they keep user ids and device tokens from colliding.
const (
	UserVoterPrefix      = "user:"
	AnonymousVoterPrefix = "anon:"
)

const maxClientIDLength = 256

// Credentials are the raw identity inputs taken from a request.
type Credentials struct {
	BearerToken string
	ClientID    string
}

// Voter is a resolved principal.
type Voter struct {
	ID        string
	Subject   string
	Anonymous bool
}

// Resolver maps request credentials to a Voter.
type Resolver struct {
	secret         []byte
	issuer         string
	audience       string
	hashKey        []byte
	allowJWT       bool
	allowAnonymous bool
	now            func() time.Time
}

// NewResolver builds a Resolver from configuration.
func NewResolver(cfg *config.Config) (*Resolver, error) {
	hashKey := []byte(cfg.VoterHashKey)
	if len(hashKey) > blake2b.Size {
		return nil, fmt.Errorf("VOTER_HASH_KEY must be at most %d bytes", blake2b.Size)
	}
	return &Resolver{
		secret:         []byte(cfg.JWTSecret),
		issuer:         cfg.JWTIssuer,
		audience:       cfg.JWTAudience,
		hashKey:        hashKey,
		allowJWT:       cfg.UsesJWT(),
		allowAnonymous: cfg.AllowsAnonymousVoters(),
		now:            time.Now,
	}, nil
}

// Resolve returns the voter for the given credentials. A bearer token, when
// present and accepted, takes precedence over the client id.
func (r *Resolver) Resolve(_ context.Context, creds Credentials) (Voter, error) {
	token := strings.TrimSpace(creds.BearerToken)
	if token != "" && r.allowJWT {
		return r.resolveToken(token)
	}

	clientID := strings.TrimSpace(creds.ClientID)
	if clientID != "" && r.allowAnonymous {
		if len(clientID) > maxClientIDLength {
			return Voter{}, models.NewUnauthorizedError("client id is too long")
		}
		return Voter{ID: r.anonymousID(clientID), Anonymous: true}, nil
	}

	if token != "" {
		return Voter{}, models.NewUnauthorizedError("bearer tokens are not accepted")
	}
	return Voter{}, models.NewUnauthorizedError("voter credential required")
}

func (r *Resolver) resolveToken(tokenString string) (Voter, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}),
		jwt.WithTimeFunc(r.now),
		jwt.WithExpirationRequired(),
	}
	if r.issuer != "" {
		opts = append(opts, jwt.WithIssuer(r.issuer))
	}
	if r.audience != "" {
		opts = append(opts, jwt.WithAudience(r.audience))
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return r.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Voter{}, models.NewUnauthorizedError("token expired")
		}
		return Voter{}, models.NewUnauthorizedError("invalid or expired token")
	}

	sub := strings.TrimSpace(claims.Subject)
	if sub == "" {
		return Voter{}, models.NewUnauthorizedError("invalid token structure - missing subject")
	}
	if len(UserVoterPrefix)+len(sub) > models.MaxVoterIDLength {
		return Voter{}, models.NewUnauthorizedError("invalid token structure - subject too long")
	}

	return Voter{ID: UserVoterPrefix + sub, Subject: sub}, nil
}

// anonymousID derives a stable voter id without storing the raw device token.
func (r *Resolver) anonymousID(clientID string) string {
	h, err := blake2b.New256(r.hashKey)
	if err != nil {
		// Key length is validated in NewResolver.
		panic(err)
	}
	_, _ = h.Write([]byte(clientID))
	return AnonymousVoterPrefix + hex.EncodeToString(h.Sum(nil))
}

// IssueToken signs a short-lived HS256 token for subject. It is used by the
// seed tool and tests; production tokens come from the identity provider.
func (r *Resolver) IssueToken(subject string, ttl time.Duration) (string, error) {
	now := r.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    r.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if r.audience != "" {
		claims.Audience = jwt.ClaimStrings{r.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
}
