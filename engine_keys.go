package identity

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/praxisauth/identity/jwt"
)

// keyCache is the only process-local state the engine carries: a short TTL
// snapshot of the active signing keys, explicitly invalidated on rotation.
// With a zero TTL every operation hits the store.
type keyCache struct {
	mu        sync.RWMutex
	ttl       time.Duration
	fetchedAt time.Time
	keys      []SigningKey
}

func newKeyCache(ttl time.Duration) *keyCache {
	return &keyCache{ttl: ttl}
}

func (c *keyCache) active(ctx context.Context, store SigningKeyStore) ([]SigningKey, error) {
	c.mu.RLock()
	if c.ttl > 0 && !c.fetchedAt.IsZero() && time.Since(c.fetchedAt) < c.ttl {
		keys := c.keys
		c.mu.RUnlock()
		return keys, nil
	}
	c.mu.RUnlock()

	keys, err := store.ActiveSigningKeys(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.keys = keys
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	return keys, nil
}

func (c *keyCache) invalidate() {
	c.mu.Lock()
	c.fetchedAt = time.Time{}
	c.keys = nil
	c.mu.Unlock()
}

// RotateSigningKeys generates a fresh Ed25519 pair and marks it active.
// Older active keys stop signing immediately (signing always uses the
// newest) but stay in the verification set until decommissioned, so tokens
// they signed remain verifiable until their own expiry.
func (e *Engine) RotateSigningKeys(ctx context.Context) (*SigningKey, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}

	key := &SigningKey{
		ID:         uuid.NewString(),
		Algorithm:  "EdDSA",
		PrivateKey: priv,
		PublicKey:  pub,
		Active:     true,
		CreatedAt:  time.Now().UTC(),
	}

	if err := e.store.SigningKeys().CreateSigningKey(ctx, key); err != nil {
		return nil, err
	}
	e.keys.invalidate()

	e.metricInc(MetricKeyRotated)
	e.emitAudit(ctx, AuditKeyRotated, "", true, "", map[string]string{"key_id": key.ID})

	return key, nil
}

// DecommissionSigningKey removes a key from the verification set. Only do
// this after the longest-lived token it signed has expired.
func (e *Engine) DecommissionSigningKey(ctx context.Context, keyID string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	if err := e.store.SigningKeys().DeactivateSigningKey(ctx, keyID); err != nil {
		return err
	}
	e.keys.invalidate()

	e.emitAudit(ctx, AuditKeyDecommissioned, "", true, "", map[string]string{"key_id": keyID})
	return nil
}

// EnsureSigningKey creates an initial signing key when none is active.
// Idempotent enough for startup: it only creates when the store reports no
// active key.
func (e *Engine) EnsureSigningKey(ctx context.Context) error {
	if e == nil {
		return ErrEngineNotReady
	}

	_, err := e.store.SigningKeys().ActiveSigningKey(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrKeyNotFound) {
		return err
	}

	_, err = e.RotateSigningKeys(ctx)
	return err
}

// JWKS returns the published verification key set, one entry per active
// signing key.
func (e *Engine) JWKS(ctx context.Context) (*jwt.JWKS, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	keys, err := e.keys.active(ctx, e.store.SigningKeys())
	if err != nil {
		return nil, err
	}

	set := &jwt.JWKS{Keys: make([]jwt.JWK, 0, len(keys))}
	for _, key := range keys {
		set.Keys = append(set.Keys, jwt.PublicJWK(key.ID, ed25519.PublicKey(key.PublicKey)))
	}
	return set, nil
}

// activeSigner returns the most recently created active key.
func (e *Engine) activeSigner(ctx context.Context) (*SigningKey, error) {
	keys, err := e.keys.active(ctx, e.store.SigningKeys())
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, ErrKeyNotFound
	}

	newest := keys[0]
	for _, key := range keys[1:] {
		if key.CreatedAt.After(newest.CreatedAt) {
			newest = key
		}
	}
	return &newest, nil
}

// keyResolver maps token kids onto the active verification set.
func (e *Engine) keyResolver(ctx context.Context) (jwt.KeyResolver, error) {
	keys, err := e.keys.active(ctx, e.store.SigningKeys())
	if err != nil {
		return nil, err
	}

	byID := make(map[string]ed25519.PublicKey, len(keys))
	for _, key := range keys {
		byID[key.ID] = ed25519.PublicKey(key.PublicKey)
	}

	return func(kid string) (ed25519.PublicKey, bool) {
		key, ok := byID[kid]
		return key, ok
	}, nil
}

func (e *Engine) issueAccessToken(ctx context.Context, user *User) (string, error) {
	key, err := e.activeSigner(ctx)
	if err != nil {
		return "", err
	}
	return e.jwtManager.Issue(
		user.ID,
		user.Email,
		string(user.Tier),
		string(user.Source),
		key.ID,
		ed25519.PrivateKey(key.PrivateKey),
	)
}
