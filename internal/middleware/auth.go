package middleware

import (
	"context"
	"strings"

	"strayland/internal/auth"
	"strayland/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ClientIDHeader carries the anonymous per-device voter token.
const ClientIDHeader = "X-Client-Id"

// VoterResolver resolves request credentials into a voter.
type VoterResolver interface {
	Resolve(ctx context.Context, creds auth.Credentials) (auth.Voter, error)
}

func credentialsFrom(c *fiber.Ctx) (auth.Credentials, bool) {
	var creds auth.Credentials
	if header := c.Get(fiber.HeaderAuthorization); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return creds, false
		}
		creds.BearerToken = strings.TrimSpace(parts[1])
	}
	creds.ClientID = c.Get(ClientIDHeader)
	if creds.ClientID == "" {
		// Browsers cannot set headers on WebSocket upgrades.
		creds.ClientID = c.Query("client_id")
	}
	return creds, true
}

func setVoter(c *fiber.Ctx, voter auth.Voter) {
	c.Locals("voterID", voter.ID)
	c.SetUserContext(WithVoterID(c.UserContext(), voter.ID))
}

// VoterRequired is a middleware that rejects requests without a resolvable voter.
func VoterRequired(resolver VoterResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		creds, ok := credentialsFrom(c)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("invalid authorization header format"))
		}

		voter, err := resolver.Resolve(c.UserContext(), creds)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized, err)
		}

		setVoter(c, voter)
		return c.Next()
	}
}

// OptionalVoter resolves a voter when credentials are present and otherwise
// lets the request through anonymously.
func OptionalVoter(resolver VoterResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		creds, ok := credentialsFrom(c)
		if ok && (creds.BearerToken != "" || creds.ClientID != "") {
			if voter, err := resolver.Resolve(c.UserContext(), creds); err == nil {
				setVoter(c, voter)
			}
		}
		return c.Next()
	}
}
