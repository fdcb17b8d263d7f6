package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrExpired marks a token with a valid signature past its expiry.
	ErrExpired = errors.New("access token expired")
	// ErrInvalid marks a bad signature, issuer, audience or key id.
	ErrInvalid = errors.New("access token invalid")
)

// Config defines issuance and verification parameters. Configure once and
// treat as immutable.
type Config struct {
	AccessTTL time.Duration
	Issuer    string
	// Audiences is stamped into every issued token.
	Audiences []string
	// VerifyAudience must be a member of an inbound token's audience list.
	VerifyAudience string
	Leeway         time.Duration
}

// AccessClaims is the signed payload of an access token.
type AccessClaims struct {
	Email  string `json:"email"`
	Tier   string `json:"tier"`
	Source string `json:"src"`
	jwt.RegisteredClaims
}

// KeyResolver maps a token's key id to the matching active public key.
// Returning false fails verification with [ErrInvalid].
type KeyResolver func(kid string) (ed25519.PublicKey, bool)

// Manager issues and verifies access tokens.
type Manager struct {
	config Config
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("issuer required")
	}
	if len(cfg.Audiences) == 0 {
		return nil, errors.New("audience list required")
	}
	if cfg.VerifyAudience == "" {
		cfg.VerifyAudience = cfg.Audiences[0]
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	return &Manager{config: cfg}, nil
}

// Issue signs an access token for the subject with the given key, tagging
// the header with the key's id.
func (m *Manager) Issue(subject, email, tier, source, kid string, key ed25519.PrivateKey) (string, error) {
	if len(key) != ed25519.PrivateKeySize {
		return "", errors.New("invalid ed25519 private key")
	}
	if kid == "" {
		return "", errors.New("missing kid")
	}

	now := time.Now()
	claims := AccessClaims{
		Email:  email,
		Tier:   tier,
		Source: source,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    m.config.Issuer,
			Audience:  jwt.ClaimStrings(m.config.Audiences),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.AccessTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	token.Header["kid"] = kid

	return token.SignedString(key)
}

// Verify parses and validates a token, resolving its signing key by kid.
// Returns [ErrExpired] for signature-valid tokens past expiry and
// [ErrInvalid] for everything else that fails validation.
func (m *Manager) Verify(tokenStr string, resolve KeyResolver) (*AccessClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithAudience(m.config.VerifyAudience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &AccessClaims{}, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		key, ok := resolve(kid)
		if !ok {
			return nil, errors.New("unknown kid")
		}
		if len(key) != ed25519.PublicKeySize {
			return nil, errors.New("invalid ed25519 public key")
		}
		return key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalid
	}

	return claims, nil
}
