package accounts

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// notifyTimeout bounds the background email leg so a slow mail server
// cannot pin goroutines forever.
var notifyTimeout = 15 * time.Second

// Accounts orchestrates the account lifecycle: registration, login,
// logout, session resolution and email verification.
type Accounts struct {
	repo      RepositoryManager
	tokens    TokenService
	notifier  Notifier
	baseURL   string
	useHashid bool
	logger    Logger
}

var _ Manager = (*Accounts)(nil)

// NewAccounts returns a new account lifecycle manager
func NewAccounts(repo RepositoryManager, tokens TokenService, notifier Notifier, cfg Config) *Accounts {
	return &Accounts{
		repo:     repo,
		tokens:   tokens,
		notifier: notifier,
		baseURL:  cfg.GetBaseURL(),
		logger:   defLogger{},
	}
}

// WithLogger replaces the default logger
func (s *Accounts) WithLogger(logger Logger) *Accounts {
	s.logger = logger
	return s
}

// WithDeterministicIDs derives user IDs from the email instead of
// generating random UUIDs
func (s *Accounts) WithDeterministicIDs() *Accounts {
	s.useHashid = true
	return s
}

// Register creates a new unverified account and kicks off the
// verification email. The email leg is best effort: a notifier failure
// is logged and the registration still succeeds, verification can be
// re-requested later.
func (s *Accounts) Register(ctx context.Context, email, password string) (*User, error) {
	user := &User{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	hash, err := HashPassword(password)
	if err != nil {
		if goerrors.Is(err, ErrNoEmptyString) {
			return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided")
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	verificationToken, err := NewVerificationToken()
	if err != nil {
		return nil, err
	}

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		// Pre-check to return a clean conflict; the store's uniqueness
		// constraint stays authoritative for the concurrent case.
		if _, err := s.repo.Users().GetByEmailTx(ctx, tx, email); err == nil {
			return ErrEmailInUse
		} else if !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email availability")
		}

		user.Email = email
		user.PasswordHash = hash
		user.Subscription = SubscriptionStarter
		user.VerificationToken = verificationToken
		user.ID = s.newUserID(email)

		if user, err = s.repo.Users().RegisterTx(ctx, tx, user); err != nil {
			if IsDuplicateKeyError(err) {
				return ErrEmailInUse
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not create user")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	s.notifyVerification(user.Email, verificationToken)

	return user, nil
}

// Login verifies credentials and issues a fresh session token. The new
// token overwrites the stored one, so at most one session is live per
// user and any previous token stops resolving.
func (s *Accounts) Login(ctx context.Context, email, password string) (string, *User, error) {
	user, err := s.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user during login")
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if goerrors.Is(err, ErrMismatchedHashAndPassword) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to compare password hash")
	}

	token, err := s.tokens.Generate(user.ID.String())
	if err != nil {
		return "", nil, err
	}

	if err := s.repo.Users().SetSessionToken(ctx, user.ID, token); err != nil {
		return "", nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist session token")
	}

	user.SessionToken = token

	return token, user, nil
}

// Logout clears the active session token. A replayed token then fails at
// the guard, which makes logout effectively idempotent from the outside.
func (s *Accounts) Logout(ctx context.Context, user *User) error {
	if user == nil {
		return ErrNotAuthorized
	}

	if err := s.repo.Users().ClearSessionToken(ctx, user.ID); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clear session token")
	}

	user.SessionToken = ""

	return nil
}

// ResolveSession maps a validated token claim to a live session: the user
// must exist and the presented token must still be the stored one.
// Signature validity alone is not enough, logout and re-login both
// invalidate older tokens here.
func (s *Accounts) ResolveSession(ctx context.Context, userID, token string) (*User, error) {
	if userID == "" || token == "" {
		return nil, ErrNotAuthorized
	}

	user, err := s.repo.Users().GetByID(ctx, userID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrNotAuthorized
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve session user")
	}

	if user.SessionToken == "" || user.SessionToken != token {
		return nil, ErrNotAuthorized
	}

	return user, nil
}

// VerifyByToken consumes a pending verification token. Consumption is
// one-shot: the token is cleared with the flip to verified, so a repeat
// call reports the user as not found.
func (s *Accounts) VerifyByToken(ctx context.Context, token string) (*User, error) {
	user, err := s.repo.Users().GetByVerificationToken(ctx, token)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up verification token")
	}

	if err := s.repo.Users().MarkVerified(ctx, user.ID); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mark user verified")
	}

	user.Verified = true
	user.VerificationToken = ""

	return user, nil
}

// RequestVerification reissues the verification token for an unverified
// account, invalidating any link still in flight, and sends a new email.
func (s *Accounts) RequestVerification(ctx context.Context, email string) error {
	user, err := s.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrUserNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for verification request")
	}

	if user.Verified {
		return ErrAlreadyVerified
	}

	verificationToken, err := NewVerificationToken()
	if err != nil {
		return err
	}

	if err := s.repo.Users().SetVerificationToken(ctx, user.ID, verificationToken); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist verification token")
	}

	s.notifyVerification(user.Email, verificationToken)

	return nil
}

// UpdateAvatar persists a new avatar location for the user
func (s *Accounts) UpdateAvatar(ctx context.Context, user *User, avatarURL string) error {
	if user == nil {
		return ErrNotAuthorized
	}

	if err := s.repo.Users().SetAvatarURL(ctx, user.ID, avatarURL); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist avatar URL")
	}

	user.AvatarURL = avatarURL

	return nil
}

// VerificationLink builds the URL embedded in verification email
func (s *Accounts) VerificationLink(token string) string {
	return strings.TrimRight(s.baseURL, "/") + "/api/users/verify/" + token
}

func (s *Accounts) notifyVerification(email, token string) {
	if s.notifier == nil {
		return
	}

	link := s.VerificationLink(token)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		if err := s.notifier.SendVerificationEmail(ctx, email, link); err != nil {
			s.logger.Error("failed to send verification email to %s: %v", email, err)
		}
	}()
}

func (s *Accounts) newUserID(email string) uuid.UUID {
	if s.useHashid {
		if id, err := hashid.NewUUID(email); err == nil {
			return id
		}
	}
	return uuid.New()
}
