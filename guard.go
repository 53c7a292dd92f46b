package accounts

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-accounts/middleware/tokenware"
)

// NewAuthGuard builds the protected-route middleware: extract the bearer
// token, validate signature and expiry, then require the token to still
// be the user's active session. Every failure is the same 401.
func NewAuthGuard(manager Manager, tokens TokenService, cfg Config) fiber.Handler {
	return tokenware.New(tokenware.Config{
		ContextKey: cfg.GetContextKey(),
		AuthScheme: cfg.GetAuthScheme(),
		Validator: tokenware.ValidatorFunc(func(raw string) (tokenware.AuthClaims, error) {
			claims, err := tokens.Validate(raw)
			if err != nil {
				return nil, err
			}
			return claims, nil
		}),
		Resolver: tokenware.ResolverFunc(func(ctx context.Context, userID, raw string) (any, error) {
			return manager.ResolveSession(ctx, userID, raw)
		}),
		ContextEnricher: func(ctx context.Context, session any, token string) context.Context {
			if user, ok := session.(*User); ok {
				ctx = WithContext(ctx, user)
			}
			return WithTokenContext(ctx, token)
		},
	})
}

// UserFromLocals retrieves the guard-resolved user from the request
func UserFromLocals(c *fiber.Ctx, key string) (*User, bool) {
	if key == "" {
		key = "user"
	}
	user, ok := c.Locals(key).(*User)
	return user, ok
}

// TokenFromLocals retrieves the raw bearer token stored by the guard
func TokenFromLocals(c *fiber.Ctx, key string) (string, bool) {
	if key == "" {
		key = "token"
	}
	token, ok := c.Locals(key).(string)
	return token, ok
}
