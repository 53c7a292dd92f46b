package accounts

import (
	"context"
	"fmt"
	"strings"
)

// Logger is the minimal logging surface components depend on
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds the process-wide settings the accounts service needs,
// loaded once at startup and immutable thereafter
type Config interface {
	GetSigningKey() string
	GetTokenExpiration() int
	GetIssuer() string
	GetAudience() []string
	GetContextKey() string
	GetAuthScheme() string
	GetBaseURL() string
}

// Notifier delivers account lifecycle email. Implementations own their
// transport and retry policy; the manager never awaits them on the
// request path.
type Notifier interface {
	SendVerificationEmail(ctx context.Context, email, link string) error
}

// Manager is the account lifecycle surface consumed by the HTTP layer
type Manager interface {
	Register(ctx context.Context, email, password string) (*User, error)
	Login(ctx context.Context, email, password string) (string, *User, error)
	Logout(ctx context.Context, user *User) error
	ResolveSession(ctx context.Context, userID, token string) (*User, error)
	VerifyByToken(ctx context.Context, token string) (*User, error)
	RequestVerification(ctx context.Context, email string) error
	UpdateAvatar(ctx context.Context, user *User, avatarURL string) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ACCOUNTS "+newline(format), args...)
}

func newline(format string) string {
	if !strings.HasSuffix(format, "\n") {
		format = format + "\n"
	}
	return format
}
