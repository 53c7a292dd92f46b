package accounts_test

import (
	"context"
	"database/sql"
	"strings"
	"sync"

	accounts "github.com/goliatone/go-accounts"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

// TestConfig implements accounts.Config
type TestConfig struct {
	SigningKey      string
	TokenExpiration int
	Issuer          string
	Audience        []string
	ContextKey      string
	AuthScheme      string
	BaseURL         string
}

func newTestConfig() TestConfig {
	return TestConfig{
		SigningKey:      "test-signing-key",
		TokenExpiration: 1,
		Issuer:          "test-issuer",
		Audience:        []string{"test:audience"},
		ContextKey:      "user",
		AuthScheme:      "Bearer",
		BaseURL:         "http://localhost:3000",
	}
}

func (c TestConfig) GetSigningKey() string   { return c.SigningKey }
func (c TestConfig) GetTokenExpiration() int { return c.TokenExpiration }
func (c TestConfig) GetIssuer() string       { return c.Issuer }
func (c TestConfig) GetAudience() []string   { return c.Audience }
func (c TestConfig) GetContextKey() string   { return c.ContextKey }
func (c TestConfig) GetAuthScheme() string   { return c.AuthScheme }
func (c TestConfig) GetBaseURL() string      { return c.BaseURL }

// MockNotifier implements accounts.Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendVerificationEmail(ctx context.Context, email, link string) error {
	args := m.Called(ctx, email, link)
	return args.Error(0)
}

// RecordingNotifier captures verification email sends for asynchronous
// assertions; the manager delivers in a background goroutine.
type RecordingNotifier struct {
	mu    sync.Mutex
	Sent  chan struct{}
	email string
	link  string
}

func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{Sent: make(chan struct{}, 10)}
}

func (n *RecordingNotifier) SendVerificationEmail(ctx context.Context, email, link string) error {
	n.mu.Lock()
	n.email = email
	n.link = link
	n.mu.Unlock()
	n.Sent <- struct{}{}
	return nil
}

func (n *RecordingNotifier) Last() (string, string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.email, n.link
}

// memUsers is an in-memory accounts.Users. The embedded interface
// satisfies the generic repository surface; only the methods the
// lifecycle manager touches are implemented.
type memUsers struct {
	accounts.Users

	mu      sync.Mutex
	byID    map[string]*accounts.User
	byEmail map[string]*accounts.User
}

func newMemUsers() *memUsers {
	return &memUsers{
		byID:    map[string]*accounts.User{},
		byEmail: map[string]*accounts.User{},
	}
}

func notFound() error {
	return repository.NewRecordNotFound()
}

func (m *memUsers) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (*accounts.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.byID[id]
	if !ok {
		return nil, notFound()
	}
	return user, nil
}

func (m *memUsers) Register(ctx context.Context, user *accounts.User) (*accounts.User, error) {
	return m.RegisterTx(ctx, bun.Tx{}, user)
}

func (m *memUsers) RegisterTx(ctx context.Context, tx bun.IDB, user *accounts.User) (*accounts.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(user.Email))
	if _, exists := m.byEmail[email]; exists {
		return nil, &mockDriverError{msg: "UNIQUE constraint failed: users.email"}
	}

	user.Email = email
	user.EnsureSubscription()
	m.byID[user.ID.String()] = user
	m.byEmail[email] = user

	return user, nil
}

func (m *memUsers) GetByEmail(ctx context.Context, email string) (*accounts.User, error) {
	return m.GetByEmailTx(ctx, bun.Tx{}, email)
}

func (m *memUsers) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*accounts.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, notFound()
	}
	return user, nil
}

func (m *memUsers) GetByVerificationToken(ctx context.Context, token string) (*accounts.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if token == "" {
		return nil, notFound()
	}
	for _, user := range m.byID {
		if user.VerificationToken == token {
			return user, nil
		}
	}
	return nil, notFound()
}

func (m *memUsers) SetSessionToken(ctx context.Context, id uuid.UUID, token string) error {
	return m.mutate(id, func(u *accounts.User) { u.SessionToken = token })
}

func (m *memUsers) ClearSessionToken(ctx context.Context, id uuid.UUID) error {
	return m.SetSessionToken(ctx, id, "")
}

func (m *memUsers) MarkVerified(ctx context.Context, id uuid.UUID) error {
	return m.mutate(id, func(u *accounts.User) {
		u.Verified = true
		u.VerificationToken = ""
	})
}

func (m *memUsers) SetVerificationToken(ctx context.Context, id uuid.UUID, token string) error {
	return m.mutate(id, func(u *accounts.User) { u.VerificationToken = token })
}

func (m *memUsers) SetAvatarURL(ctx context.Context, id uuid.UUID, avatarURL string) error {
	return m.mutate(id, func(u *accounts.User) { u.AvatarURL = avatarURL })
}

func (m *memUsers) mutate(id uuid.UUID, change func(*accounts.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.byID[id.String()]
	if !ok {
		return notFound()
	}
	change(user)
	return nil
}

type mockDriverError struct {
	msg string
}

func (e *mockDriverError) Error() string {
	return e.msg
}

// memRepo implements accounts.RepositoryManager over memUsers
type memRepo struct {
	users *memUsers
}

func newMemRepo() *memRepo {
	return &memRepo{users: newMemUsers()}
}

func (r *memRepo) Users() accounts.Users { return r.users }

func (r *memRepo) Validate() error { return nil }

func (r *memRepo) MustValidate() {}

func (r *memRepo) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}
