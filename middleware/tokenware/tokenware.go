package tokenware

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
)

var (
	defaultTokenLookup = "header:" + fiber.HeaderAuthorization

	// ErrMissingOrMalformed is returned by extractors when no usable
	// token is present in the request
	ErrMissingOrMalformed = errors.New("missing or malformed bearer token")

	// ErrSessionNotResolved is returned when the resolver rejects an
	// otherwise valid token
	ErrSessionNotResolved = errors.New("session could not be resolved")
)

// AuthClaims is the claim surface the guard needs, mirrored here to
// avoid an import cycle with the accounts package
type AuthClaims interface {
	Subject() string
	UserID() string
}

// TokenValidator validates a raw token string into claims
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// ValidatorFunc adapts a function to the TokenValidator interface
type ValidatorFunc func(tokenString string) (AuthClaims, error)

// Validate implements TokenValidator
func (f ValidatorFunc) Validate(tokenString string) (AuthClaims, error) {
	return f(tokenString)
}

// SessionResolver maps validated claims plus the raw token to a live
// session owner. A signed token is not enough on its own: the resolver
// is where revocation (logout, newer login) is enforced.
type SessionResolver interface {
	Resolve(ctx context.Context, userID, token string) (any, error)
}

// ResolverFunc adapts a function to the SessionResolver interface
type ResolverFunc func(ctx context.Context, userID, token string) (any, error)

// Resolve implements SessionResolver
func (f ResolverFunc) Resolve(ctx context.Context, userID, token string) (any, error) {
	return f(ctx, userID, token)
}

type Config struct {
	// Filter skips the guard entirely when it returns true
	Filter func(*fiber.Ctx) bool

	// SuccessHandler runs after the session resolved; defaults to Next
	SuccessHandler fiber.Handler

	// ErrorHandler handles every guard failure. The default responds
	// 401 with an undifferentiated body, callers learn nothing about
	// which check failed.
	ErrorHandler func(*fiber.Ctx, error) error

	// Validator is required for token validation
	Validator TokenValidator

	// Resolver is required to map claims to a live session
	Resolver SessionResolver

	// ContextKey is the locals key holding the resolved session owner
	ContextKey string

	// TokenKey is the locals key holding the raw bearer token
	TokenKey string

	// TokenLookup is a comma separated list of <source>:<name>, e.g.
	// "header:Authorization,cookie:token"
	TokenLookup string

	// AuthScheme expected in the Authorization header (default "Bearer")
	AuthScheme string

	// ContextEnricher propagates the resolved session into the standard
	// Go context for downstream, transport-agnostic consumers.
	ContextEnricher func(ctx context.Context, session any, token string) context.Context
}

// New builds the request guard middleware
func New(config ...Config) fiber.Handler {
	cfg := GetDefaultConfig(config...)
	extractors := GetExtractors(cfg.TokenLookup, cfg.AuthScheme)

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		raw, err := ExtractRawToken(c, extractors)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		claims, err := cfg.Validator.Validate(raw)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		session, err := cfg.Resolver.Resolve(c.UserContext(), claims.UserID(), raw)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		if session == nil {
			return cfg.ErrorHandler(c, ErrSessionNotResolved)
		}

		c.Locals(cfg.ContextKey, session)
		c.Locals(cfg.TokenKey, raw)

		if cfg.ContextEnricher != nil {
			c.SetUserContext(cfg.ContextEnricher(c.UserContext(), session, raw))
		}

		return cfg.SuccessHandler(c)
	}
}

// GetDefaultConfig resolves the effective configuration
func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c *fiber.Ctx, _ error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Not authorized",
			})
		}
	}

	if cfg.Validator == nil {
		panic("ACCOUNTS: guard configuration: Validator is required.")
	}

	if cfg.Resolver == nil {
		panic("ACCOUNTS: guard configuration: Resolver is required.")
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "user"
	}

	if cfg.TokenKey == "" {
		cfg.TokenKey = "token"
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	return cfg
}

// ExtractRawToken runs the extractors in order until one yields a token
func ExtractRawToken(c *fiber.Ctx, extractors []TokenExtractor) (string, error) {
	var raw string
	var err error

	for _, extractor := range extractors {
		raw, err = extractor(c)
		if raw != "" && err == nil {
			break
		}
	}

	return raw, err
}

// GetExtractors parses the token lookup definition into extractors
func GetExtractors(tokenLookup string, authSchemes ...string) []TokenExtractor {
	extractors := make([]TokenExtractor, 0)

	authScheme := "Bearer"
	if len(authSchemes) > 0 {
		authScheme = authSchemes[0]
	}

	// header:Authorization,cookie:token,query:auth_token,param:token
	rootParts := strings.Split(tokenLookup, ",")
	for _, rootPart := range rootParts {
		parts := strings.Split(strings.TrimSpace(rootPart), ":")
		if len(parts) < 2 {
			continue
		}

		for i, el := range parts {
			parts[i] = strings.TrimSpace(el)
		}

		switch parts[0] {
		case "header":
			extractors = append(extractors, tokenFromHeader(parts[1], authScheme))
		case "query":
			extractors = append(extractors, tokenFromQuery(parts[1]))
		case "param":
			extractors = append(extractors, tokenFromParam(parts[1]))
		case "cookie":
			extractors = append(extractors, tokenFromCookie(parts[1]))
		}
	}

	return extractors
}

type TokenExtractor func(c *fiber.Ctx) (string, error)

// tokenFromHeader returns a function that extracts the token from the
// request header, enforcing the auth scheme prefix.
func tokenFromHeader(header string, authScheme string) TokenExtractor {
	return func(c *fiber.Ctx) (string, error) {
		a := c.Get(header)
		authScheme = strings.TrimSpace(authScheme)
		l := len(authScheme)
		if l == 0 {
			return "", ErrMissingOrMalformed
		}
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) {
			return strings.TrimSpace(a[l:]), nil
		}
		return "", ErrMissingOrMalformed
	}
}

// tokenFromQuery returns a function that extracts the token from the query string.
func tokenFromQuery(param string) TokenExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Query(param)
		if token == "" {
			return "", ErrMissingOrMalformed
		}
		return token, nil
	}
}

// tokenFromParam returns a function that extracts the token from a route param.
func tokenFromParam(param string) TokenExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Params(param)
		if token == "" {
			return "", ErrMissingOrMalformed
		}
		return token, nil
	}
}

// tokenFromCookie returns a function that extracts the token from the named cookie.
func tokenFromCookie(name string) TokenExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Cookies(name)
		if token == "" {
			return "", ErrMissingOrMalformed
		}
		return token, nil
	}
}
