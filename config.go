package identity

import (
	"errors"
	"time"
)

// Config is the full engine configuration. Configure once at build time;
// the engine treats it as immutable afterwards.
type Config struct {
	JWT         JWTConfig
	Refresh     RefreshConfig
	Password    PasswordConfig
	RateLimit   RateLimitConfig
	CrossDomain CrossDomainConfig
	EmailChange EmailChangeConfig
	Lifecycle   LifecycleConfig
	Keys        KeyConfig
	Audit       AuditConfig
	Metrics     MetricsConfig
}

// JWTConfig controls access-token issuance and verification.
type JWTConfig struct {
	AccessTTL time.Duration
	Issuer    string
	// Audiences is stamped into every issued token: the properties allowed
	// to accept it.
	Audiences []string
	// VerifyAudience is the audience this engine requires on inbound
	// tokens. Defaults to the first entry of Audiences.
	VerifyAudience string
	Leeway         time.Duration
}

// RefreshConfig controls the refresh-token ledger.
type RefreshConfig struct {
	TTL time.Duration
	// ReuseGrace is the window after revocation during which presenting a
	// dead token is treated as a lost race (ErrRotationConflict) instead of
	// theft. Zero means every dead-token presentation revokes the family.
	ReuseGrace time.Duration
}

// PasswordConfig carries the Argon2id parameters.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int
}

// RateLimitConfig bounds the sensitive endpoints.
type RateLimitConfig struct {
	LoginMaxAttempts     int
	LoginWindow          time.Duration
	CrossDomainMaxIssues int
	CrossDomainWindow    time.Duration
}

// CrossDomainConfig controls single-use handoff tokens. TTLs are minutes,
// not hours.
type CrossDomainConfig struct {
	TTL time.Duration
}

// EmailChangeConfig controls pending email change requests.
type EmailChangeConfig struct {
	TTL time.Duration
}

// LifecycleConfig controls soft-delete retention.
type LifecycleConfig struct {
	// PurgeAfter is how long a soft-deleted user stays restorable before a
	// sweep hard-deletes it.
	PurgeAfter time.Duration
}

// KeyConfig controls the signing-key cache. The cache is short-lived and
// explicitly invalidated on rotation; there is no other process-wide key
// state.
type KeyConfig struct {
	CacheTTL time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the configuration [New] starts from. Callers adjust
// what they need and pass the result to [Builder.WithConfig].
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL: 15 * time.Minute,
			Issuer:    "identity",
			Audiences: []string{"hub"},
			Leeway:    30 * time.Second,
		},
		Refresh: RefreshConfig{
			TTL:        30 * 24 * time.Hour,
			ReuseGrace: 0,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
			MinLength:   10,
		},
		RateLimit: RateLimitConfig{
			LoginMaxAttempts:     5,
			LoginWindow:          time.Minute,
			CrossDomainMaxIssues: 10,
			CrossDomainWindow:    time.Minute,
		},
		CrossDomain: CrossDomainConfig{
			TTL: 5 * time.Minute,
		},
		EmailChange: EmailChangeConfig{
			TTL: time.Hour,
		},
		Lifecycle: LifecycleConfig{
			PurgeAfter: 30 * 24 * time.Hour,
		},
		Keys: KeyConfig{
			CacheTTL: 30 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate rejects configurations the engine cannot run safely with.
func (c *Config) Validate() error {
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT.AccessTTL must be positive")
	}
	if c.JWT.Issuer == "" {
		return errors.New("JWT.Issuer must be set")
	}
	if len(c.JWT.Audiences) == 0 {
		return errors.New("JWT.Audiences must not be empty")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT.Leeway out of range")
	}
	if c.Refresh.TTL <= c.JWT.AccessTTL {
		return errors.New("Refresh.TTL must exceed JWT.AccessTTL")
	}
	if c.Refresh.ReuseGrace < 0 {
		return errors.New("Refresh.ReuseGrace must not be negative")
	}
	if c.Password.MinLength < 8 {
		return errors.New("Password.MinLength below 8 is not allowed")
	}
	if c.RateLimit.LoginMaxAttempts <= 0 || c.RateLimit.LoginWindow <= 0 {
		return errors.New("RateLimit login settings must be positive")
	}
	if c.RateLimit.CrossDomainMaxIssues <= 0 || c.RateLimit.CrossDomainWindow <= 0 {
		return errors.New("RateLimit cross-domain settings must be positive")
	}
	if c.CrossDomain.TTL <= 0 || c.CrossDomain.TTL > time.Hour {
		return errors.New("CrossDomain.TTL must be positive and short")
	}
	if c.EmailChange.TTL <= 0 {
		return errors.New("EmailChange.TTL must be positive")
	}
	if c.Lifecycle.PurgeAfter <= 0 {
		return errors.New("Lifecycle.PurgeAfter must be positive")
	}
	if c.Keys.CacheTTL < 0 || c.Keys.CacheTTL > 5*time.Minute {
		return errors.New("Keys.CacheTTL out of range")
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Audiences = append([]string(nil), cfg.JWT.Audiences...)
	return out
}
