package identity

import (
	"context"
	"time"
)

// Tier is the subscription tier carried in access tokens. Closed set.
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// Valid reports whether t is one of the defined tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierPro, TierEnterprise:
		return true
	}
	return false
}

// Source records where an account came from. Closed set.
type Source string

const (
	SourceDirect Source = "direct"
	SourceOAuth  Source = "oauth"
	SourceImport Source = "import"
)

// Valid reports whether s is one of the defined sources.
func (s Source) Valid() bool {
	switch s {
	case SourceDirect, SourceOAuth, SourceImport:
		return true
	}
	return false
}

// Target enumerates the destination properties a cross-domain token can be
// minted for. A token minted for one target is not redeemable at another.
type Target string

const (
	TargetHub    Target = "hub"
	TargetStudio Target = "studio"
	TargetForum  Target = "forum"
)

// Valid reports whether t is one of the defined targets.
func (t Target) Valid() bool {
	switch t {
	case TargetHub, TargetStudio, TargetForum:
		return true
	}
	return false
}

// User is the identity record. Email is stored lowercase and compared
// case-insensitively. PasswordHash never leaves the store layer through
// public projections.
type User struct {
	ID            string
	Email         string
	EmailVerified bool
	PasswordHash  string
	Name          string
	AvatarURL     string
	Tier          Tier
	Source        Source
	CreatedAt     time.Time
	DeletedAt     *time.Time
}

// UserProfile is the public projection of a [User], safe to return to
// clients. It never carries the credential hash.
type UserProfile struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	Name          string    `json:"name"`
	AvatarURL     string    `json:"avatar_url,omitempty"`
	Tier          Tier      `json:"tier"`
	CreatedAt     time.Time `json:"created_at"`
}

// Profile builds the public projection for u.
func (u *User) Profile() *UserProfile {
	return &UserProfile{
		ID:            u.ID,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		Name:          u.Name,
		AvatarURL:     u.AvatarURL,
		Tier:          u.Tier,
		CreatedAt:     u.CreatedAt,
	}
}

// SigningKey is an asymmetric key pair used to sign and verify access
// tokens. Immutable once created except for the Active flag. Several keys
// may be active at once during rotation; signing always uses the newest.
type SigningKey struct {
	ID         string
	Algorithm  string
	PrivateKey []byte
	PublicKey  []byte
	Active     bool
	CreatedAt  time.Time
}

// RefreshToken is one link in a refresh family. Only the SHA-256 hash of
// the raw token is ever persisted. Under correct operation exactly one
// token per family is live (not revoked, not expired).
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	FamilyID  string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// CrossDomainToken is a short-lived single-use handoff credential. Valid
// only while UsedAt is nil and ExpiresAt is in the future.
type CrossDomainToken struct {
	ID        string
	UserID    string
	TokenHash string
	Target    Target
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// RateLimitRecord is the persisted counter for one rate-limit key.
type RateLimitRecord struct {
	Key          string
	Count        int
	WindowStart  time.Time
	BlockedUntil *time.Time
}

// EmailChangeRequest is a pending email change. At most one exists per
// user; creating a new one replaces any prior request.
type EmailChangeRequest struct {
	ID        string
	UserID    string
	NewEmail  string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// TokenPair is the issued credential bundle returned by signup, login and
// refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// SignupInput is the input for [Engine.Signup]. Tier defaults to TierFree
// and Source to SourceDirect when empty.
type SignupInput struct {
	Email    string
	Password string
	Name     string
	Tier     Tier
	Source   Source
}

// SweepReport summarizes one cleanup pass.
type SweepReport struct {
	UsersPurged         int64
	RefreshTokensPurged int64
	CrossDomainPurged   int64
	EmailChangesPurged  int64
}

// UserStore persists identity records. Lookups return soft-deleted rows;
// callers decide what a set DeletedAt means for the operation at hand.
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
	UpdateUserEmail(ctx context.Context, id, email string, verified bool) error
	SetUserDeletedAt(ctx context.Context, id string, deletedAt *time.Time) error
	HardDeleteUser(ctx context.Context, id string) error
	PurgeUsersDeletedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SigningKeyStore persists signing key pairs and publishes the active set.
type SigningKeyStore interface {
	CreateSigningKey(ctx context.Context, key *SigningKey) error
	// ActiveSigningKey returns the most recently created active key.
	ActiveSigningKey(ctx context.Context) (*SigningKey, error)
	// ActiveSigningKeys returns every active key, newest first. This is the
	// verification set and the JWKS source.
	ActiveSigningKeys(ctx context.Context) ([]SigningKey, error)
	DeactivateSigningKey(ctx context.Context, id string) error
}

// RefreshTokenStore persists refresh-token lineage and revocation state.
type RefreshTokenStore interface {
	CreateRefreshToken(ctx context.Context, token *RefreshToken) error
	GetRefreshTokenByHash(ctx context.Context, hash string) (*RefreshToken, error)
	// RotateRefreshToken atomically revokes the live, unexpired token with
	// the presented hash and inserts next in its place. Returns false when
	// the presented token was no longer live: the caller lost a race or is
	// replaying a dead token.
	RotateRefreshToken(ctx context.Context, presentedHash string, next *RefreshToken) (bool, error)
	RevokeFamily(ctx context.Context, familyID string) (int64, error)
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
	PurgeExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

// CrossDomainTokenStore persists single-use handoff tokens.
type CrossDomainTokenStore interface {
	CreateCrossDomainToken(ctx context.Context, token *CrossDomainToken) error
	GetCrossDomainTokenByHash(ctx context.Context, hash string) (*CrossDomainToken, error)
	// ConsumeCrossDomainToken atomically sets used_at on the unused,
	// unexpired token for hash and target. Returns the consumed record, or
	// false when no such token was redeemable.
	ConsumeCrossDomainToken(ctx context.Context, hash string, target Target, now time.Time) (*CrossDomainToken, bool, error)
	PurgeExpiredCrossDomainTokens(ctx context.Context, now time.Time) (int64, error)
}

// RateLimitStore persists sliding-window counters. IncrementRateLimit is an
// upsert with conditional reset: a window older than the window size starts
// over at one, anything newer increments in place. Concurrent increments on
// one key serialize at the store.
type RateLimitStore interface {
	GetRateLimit(ctx context.Context, key string) (*RateLimitRecord, error)
	IncrementRateLimit(ctx context.Context, key string, now time.Time, window time.Duration) (*RateLimitRecord, error)
	BlockRateLimit(ctx context.Context, key string, until time.Time) error
	DeleteRateLimit(ctx context.Context, key string) error
}

// EmailChangeStore persists pending email changes, one per user.
type EmailChangeStore interface {
	// ReplaceEmailChangeRequest deletes any prior request for the user and
	// inserts req.
	ReplaceEmailChangeRequest(ctx context.Context, req *EmailChangeRequest) error
	// ConsumeEmailChangeRequest atomically removes and returns the unexpired
	// request with the given token hash.
	ConsumeEmailChangeRequest(ctx context.Context, hash string, now time.Time) (*EmailChangeRequest, error)
	PurgeExpiredEmailChanges(ctx context.Context, now time.Time) (int64, error)
}

// Store aggregates every persistence concern of the engine. The store is
// the sole source of truth and the sole synchronization point; all atomic
// guarantees come from its conditional operations.
type Store interface {
	Users() UserStore
	SigningKeys() SigningKeyStore
	RefreshTokens() RefreshTokenStore
	CrossDomainTokens() CrossDomainTokenStore
	RateLimits() RateLimitStore
	EmailChanges() EmailChangeStore
}
