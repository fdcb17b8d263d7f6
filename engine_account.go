package identity

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/praxisauth/identity/internal"
)

// Signup creates an account and issues an initial token pair (new refresh
// family). Email is normalized to lowercase; validation happens before any
// store access.
func (e *Engine) Signup(ctx context.Context, input SignupInput) (*TokenPair, *UserProfile, error) {
	if e == nil {
		return nil, nil, ErrEngineNotReady
	}

	email, err := normalizeEmail(input.Email)
	if err != nil {
		e.metricInc(MetricSignupRejected)
		return nil, nil, err
	}
	if len(input.Password) < e.config.Password.MinLength {
		e.metricInc(MetricSignupRejected)
		return nil, nil, ErrPasswordPolicy
	}

	tier := input.Tier
	if tier == "" {
		tier = TierFree
	}
	source := input.Source
	if source == "" {
		source = SourceDirect
	}
	if !tier.Valid() || !source.Valid() {
		e.metricInc(MetricSignupRejected)
		return nil, nil, ErrInvalidEmail
	}

	hash, err := e.passwordHash.Hash(input.Password)
	if err != nil {
		return nil, nil, err
	}

	user := &User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Name:         input.Name,
		Tier:         tier,
		Source:       source,
		CreatedAt:    time.Now().UTC(),
	}
	if err := e.store.Users().CreateUser(ctx, user); err != nil {
		e.metricInc(MetricSignupRejected)
		e.emitAudit(ctx, AuditSignup, "", false, err.Error(), nil)
		return nil, nil, err
	}

	pair, err := e.issueInitialPair(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	e.metricInc(MetricSignupSuccess)
	e.emitAudit(ctx, AuditSignup, user.ID, true, "", nil)

	return pair, user.Profile(), nil
}

// Login authenticates credentials and issues a token pair with a new
// refresh family. Attempts are rate limited per email; the counter is
// checked before the password verify, incremented only on failed attempts,
// and cleared on success.
func (e *Engine) Login(ctx context.Context, email, passwd string) (*TokenPair, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	limitKey := "login:" + normalized
	if err := e.checkLimit(ctx, limitKey, e.config.RateLimit.LoginMaxAttempts, e.config.RateLimit.LoginWindow); err != nil {
		e.metricInc(MetricLoginRateLimited)
		e.emitAudit(ctx, AuditLoginRateLimited, "", false, err.Error(), nil)
		return nil, err
	}

	user, err := e.store.Users().GetUserByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, e.failedLogin(ctx, limitKey, "")
		}
		return nil, err
	}
	if user.DeletedAt != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, AuditLogin, user.ID, false, ErrAccountDeleted.Error(), nil)
		return nil, ErrAccountDeleted
	}

	ok, err := e.passwordHash.Verify(passwd, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, e.failedLogin(ctx, limitKey, user.ID)
	}

	if err := e.limiter.Reset(ctx, limitKey); err != nil {
		return nil, err
	}

	pair, err := e.issueInitialPair(ctx, user)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, AuditLogin, user.ID, true, "", nil)

	return pair, nil
}

func (e *Engine) failedLogin(ctx context.Context, limitKey, userID string) error {
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, AuditLogin, userID, false, ErrInvalidCredentials.Error(), nil)
	if err := e.limiter.Increment(ctx, limitKey, e.config.RateLimit.LoginWindow); err != nil {
		return err
	}
	return ErrInvalidCredentials
}

// issueInitialPair starts a new refresh family for the user and issues the
// matching access token.
func (e *Engine) issueInitialPair(ctx context.Context, user *User) (*TokenPair, error) {
	access, err := e.issueAccessToken(ctx, user)
	if err != nil {
		return nil, err
	}

	raw, hash, err := internal.NewToken()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	token := &RefreshToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: hash,
		FamilyID:  uuid.NewString(),
		ExpiresAt: now.Add(e.config.Refresh.TTL),
		CreatedAt: now,
	}
	if err := e.store.RefreshTokens().CreateRefreshToken(ctx, token); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: raw,
		TokenType:    "Bearer",
		ExpiresIn:    int64(e.config.JWT.AccessTTL.Seconds()),
	}, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}
