package accounts

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Subscription is the user's plan classification
type Subscription = string

const (
	// SubscriptionStarter is the default plan assigned at registration
	SubscriptionStarter Subscription = "starter"
	// SubscriptionPro is the paid individual plan
	SubscriptionPro Subscription = "pro"
	// SubscriptionBusiness is the paid team plan
	SubscriptionBusiness Subscription = "business"
)

// User is the account model
type User struct {
	bun.BaseModel     `bun:"table:users,alias:usr"`
	ID                uuid.UUID    `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email             string       `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash      string       `bun:"password_hash,notnull" json:"-"`
	Subscription      Subscription `bun:"subscription,notnull" json:"subscription,omitempty"`
	SessionToken      string       `bun:"session_token" json:"-"`
	Verified          bool         `bun:"is_verified" json:"is_verified,omitempty"`
	VerificationToken string       `bun:"verification_token" json:"-"`
	AvatarURL         string       `bun:"avatar_url" json:"avatar_url,omitempty"`
	CreatedAt         *time.Time   `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt         *time.Time   `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt         *time.Time   `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// Profile is the public shape of a user: anything else (ids, hashes,
// tokens) stays server side.
type Profile struct {
	Email        string       `json:"email"`
	Subscription Subscription `json:"subscription"`
}

// Public returns the response-safe projection of the user
func (u *User) Public() Profile {
	return Profile{
		Email:        u.Email,
		Subscription: u.Subscription,
	}
}

// HasActiveSession reports whether the user currently holds a session token
func (u *User) HasActiveSession() bool {
	return u.SessionToken != ""
}

// EnsureSubscription backfills the default plan on records created
// before the column existed
func (u *User) EnsureSubscription() {
	if u.Subscription == "" {
		u.Subscription = SubscriptionStarter
	}
}
