package tokenware_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-accounts/middleware/tokenware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClaims struct {
	subject string
}

func (s stubClaims) Subject() string { return s.subject }
func (s stubClaims) UserID() string  { return s.subject }

type stubSession struct {
	UserID string
}

func acceptAll(userID string) tokenware.ValidatorFunc {
	return func(tokenString string) (tokenware.AuthClaims, error) {
		return stubClaims{subject: userID}, nil
	}
}

func resolveAll() tokenware.ResolverFunc {
	return func(ctx context.Context, userID, token string) (any, error) {
		return &stubSession{UserID: userID}, nil
	}
}

func performRequest(t *testing.T, app *fiber.App, headers map[string]string, target string) (*http.Response, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	decoded := map[string]any{}
	if len(body) > 0 && strings.Contains(resp.Header.Get(fiber.HeaderContentType), "json") {
		require.NoError(t, json.Unmarshal(body, &decoded))
	}

	return resp, decoded
}

func TestGuardRejects(t *testing.T) {
	tests := []struct {
		name      string
		validator tokenware.TokenValidator
		resolver  tokenware.SessionResolver
		headers   map[string]string
	}{
		{
			name:      "missing authorization header",
			validator: acceptAll("user-1"),
			resolver:  resolveAll(),
			headers:   nil,
		},
		{
			name:      "wrong auth scheme",
			validator: acceptAll("user-1"),
			resolver:  resolveAll(),
			headers:   map[string]string{"Authorization": "Basic dXNlcjpwYXNz"},
		},
		{
			name: "validator rejects the token",
			validator: tokenware.ValidatorFunc(func(tokenString string) (tokenware.AuthClaims, error) {
				return nil, errors.New("token is malformed")
			}),
			resolver: resolveAll(),
			headers:  map[string]string{"Authorization": "Bearer bad.token.value"},
		},
		{
			name:      "resolver rejects the session",
			validator: acceptAll("user-1"),
			resolver: tokenware.ResolverFunc(func(ctx context.Context, userID, token string) (any, error) {
				return nil, errors.New("stale session")
			}),
			headers: map[string]string{"Authorization": "Bearer valid.but.stale"},
		},
		{
			name:      "resolver returns no session",
			validator: acceptAll("user-1"),
			resolver: tokenware.ResolverFunc(func(ctx context.Context, userID, token string) (any, error) {
				return nil, nil
			}),
			headers: map[string]string{"Authorization": "Bearer valid.but.gone"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Use(tokenware.New(tokenware.Config{
				Validator: tt.validator,
				Resolver:  tt.resolver,
			}))
			app.Get("/protected", func(c *fiber.Ctx) error {
				return c.SendStatus(fiber.StatusOK)
			})

			resp, body := performRequest(t, app, tt.headers, "/protected")

			assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, "Not authorized", body["message"])
		})
	}
}

func TestGuardSuccess(t *testing.T) {
	var (
		seenUserID string
		seenToken  string
		ctxToken   string
	)

	app := fiber.New()
	app.Use(tokenware.New(tokenware.Config{
		Validator: acceptAll("user-42"),
		Resolver: tokenware.ResolverFunc(func(ctx context.Context, userID, token string) (any, error) {
			seenUserID = userID
			seenToken = token
			return &stubSession{UserID: userID}, nil
		}),
		ContextEnricher: func(ctx context.Context, session any, token string) context.Context {
			return context.WithValue(ctx, ctxKey{}, token)
		},
	}))
	app.Get("/protected", func(c *fiber.Ctx) error {
		session, ok := c.Locals("user").(*stubSession)
		require.True(t, ok)

		if v, ok := c.UserContext().Value(ctxKey{}).(string); ok {
			ctxToken = v
		}

		return c.JSON(fiber.Map{
			"user_id": session.UserID,
			"token":   c.Locals("token"),
		})
	})

	resp, body := performRequest(t, app, map[string]string{
		"Authorization": "Bearer signed.jwt.value",
	}, "/protected")

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "user-42", body["user_id"])
	assert.Equal(t, "signed.jwt.value", body["token"])
	assert.Equal(t, "user-42", seenUserID)
	assert.Equal(t, "signed.jwt.value", seenToken)
	assert.Equal(t, "signed.jwt.value", ctxToken)
}

type ctxKey struct{}

func TestGuardFilter(t *testing.T) {
	app := fiber.New()
	app.Use(tokenware.New(tokenware.Config{
		Filter: func(c *fiber.Ctx) bool {
			return c.Path() == "/open"
		},
		Validator: tokenware.ValidatorFunc(func(tokenString string) (tokenware.AuthClaims, error) {
			return nil, errors.New("should not run")
		}),
		Resolver: resolveAll(),
	}))
	app.Get("/open", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	resp, _ := performRequest(t, app, nil, "/open")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestGuardQueryLookup(t *testing.T) {
	app := fiber.New()
	app.Use(tokenware.New(tokenware.Config{
		TokenLookup: "query:auth_token",
		Validator:   acceptAll("user-7"),
		Resolver:    resolveAll(),
	}))
	app.Get("/protected", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	resp, _ := performRequest(t, app, nil, "/protected?auth_token=from-query")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, body := performRequest(t, app, nil, "/protected")
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Not authorized", body["message"])
}

func TestGetDefaultConfigPanics(t *testing.T) {
	assert.Panics(t, func() {
		tokenware.GetDefaultConfig(tokenware.Config{})
	})

	assert.Panics(t, func() {
		tokenware.GetDefaultConfig(tokenware.Config{
			Validator: acceptAll("user-1"),
		})
	})
}
