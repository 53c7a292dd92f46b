package accounts

import (
	"context"
	"strings"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the account store contract
type Users interface {
	repository.Repository[*User]

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)

	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	GetByVerificationToken(ctx context.Context, token string) (*User, error)
	GetByVerificationTokenTx(ctx context.Context, tx bun.IDB, token string) (*User, error)

	SetSessionToken(ctx context.Context, id uuid.UUID, token string) error
	SetSessionTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token string) error
	ClearSessionToken(ctx context.Context, id uuid.UUID) error
	ClearSessionTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error

	MarkVerified(ctx context.Context, id uuid.UUID) error
	MarkVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	SetVerificationToken(ctx context.Context, id uuid.UUID, token string) error
	SetVerificationTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token string) error

	SetAvatarURL(ctx context.Context, id uuid.UUID, avatarURL string) error
	SetAvatarURLTx(ctx context.Context, tx bun.IDB, id uuid.UUID, avatarURL string) error
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

// NewUsersRepository builds the users repository over bun
func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	prepareUserDefaults(user)
	return a.Repository.CreateTx(ctx, tx, user)
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *users) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	return a.getByColumnTx(ctx, tx, "email", normalizeEmail(email))
}

func (a *users) GetByVerificationToken(ctx context.Context, token string) (*User, error) {
	return a.GetByVerificationTokenTx(ctx, a.db, token)
}

func (a *users) GetByVerificationTokenTx(ctx context.Context, tx bun.IDB, token string) (*User, error) {
	return a.getByColumnTx(ctx, tx, "verification_token", token)
}

func (a *users) getByColumnTx(ctx context.Context, tx bun.IDB, column, value string) (*User, error) {
	if value == "" {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"column": column,
			})
	}

	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias."+column+" = ?", value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"column": column,
				})
		}
		return nil, err
	}

	record.EnsureSubscription()
	return record, nil
}

func (a *users) SetSessionToken(ctx context.Context, id uuid.UUID, token string) error {
	return a.SetSessionTokenTx(ctx, a.db, id, token)
}

// SetSessionTokenTx overwrites the active session token, implicitly
// invalidating whatever token was there before.
func (a *users) SetSessionTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token string) error {
	// NOTE: zero values are skipped by the ORM update path, so session
	// and verification columns are written raw to allow clearing them.
	_, err := tx.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"session_token" = ?,
			"updated_at" = CURRENT_TIMESTAMP
		WHERE
			("usr".id = ?)
			AND "usr"."deleted_at" IS NULL;
	`, token, id).Exec(ctx)

	return err
}

func (a *users) ClearSessionToken(ctx context.Context, id uuid.UUID) error {
	return a.ClearSessionTokenTx(ctx, a.db, id)
}

func (a *users) ClearSessionTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	return a.SetSessionTokenTx(ctx, tx, id, "")
}

func (a *users) MarkVerified(ctx context.Context, id uuid.UUID) error {
	return a.MarkVerifiedTx(ctx, a.db, id)
}

// MarkVerifiedTx flips the account to verified and consumes the pending
// verification token in one statement.
func (a *users) MarkVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	_, err := tx.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"is_verified" = TRUE,
			"verification_token" = '',
			"updated_at" = CURRENT_TIMESTAMP
		WHERE
			("usr".id = ?)
			AND "usr"."deleted_at" IS NULL;
	`, id).Exec(ctx)

	return err
}

func (a *users) SetVerificationToken(ctx context.Context, id uuid.UUID, token string) error {
	return a.SetVerificationTokenTx(ctx, a.db, id, token)
}

func (a *users) SetVerificationTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token string) error {
	_, err := tx.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"verification_token" = ?,
			"updated_at" = CURRENT_TIMESTAMP
		WHERE
			("usr".id = ?)
			AND "usr"."deleted_at" IS NULL;
	`, token, id).Exec(ctx)

	return err
}

func (a *users) SetAvatarURL(ctx context.Context, id uuid.UUID, avatarURL string) error {
	return a.SetAvatarURLTx(ctx, a.db, id, avatarURL)
}

func (a *users) SetAvatarURLTx(ctx context.Context, tx bun.IDB, id uuid.UUID, avatarURL string) error {
	_, err := tx.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"avatar_url" = ?,
			"updated_at" = CURRENT_TIMESTAMP
		WHERE
			("usr".id = ?)
			AND "usr"."deleted_at" IS NULL;
	`, avatarURL, id).Exec(ctx)

	return err
}

func prepareUserDefaults(user *User) {
	if user == nil {
		return
	}
	user.Email = normalizeEmail(user.Email)
	user.EnsureSubscription()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
