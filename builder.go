package identity

import (
	"errors"

	internalaudit "github.com/praxisauth/identity/internal/audit"
	"github.com/praxisauth/identity/jwt"
	"github.com/praxisauth/identity/password"
)

// Builder assembles an [Engine]. A builder is single-use.
type Builder struct {
	config     Config
	store      Store
	rateLimits RateLimitStore
	auditSink  AuditSink

	built bool
}

// New returns a Builder preloaded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the entire configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the persistence backend. Required.
func (b *Builder) WithStore(store Store) *Builder {
	b.store = store
	return b
}

// WithRateLimitStore overrides where rate-limit counters live, for
// deployments that keep them off the primary store (for example in Redis).
// Defaults to the primary store's RateLimits().
func (b *Builder) WithRateLimitStore(store RateLimitStore) *Builder {
	b.rateLimits = store
	return b
}

// WithAuditSink sets the destination for security events.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.store == nil {
		return nil, errors.New("store required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rateLimits := b.rateLimits
	if rateLimits == nil {
		rateLimits = b.store.RateLimits()
	}

	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:      cfg.JWT.AccessTTL,
		Issuer:         cfg.JWT.Issuer,
		Audiences:      cfg.JWT.Audiences,
		VerifyAudience: cfg.JWT.VerifyAudience,
		Leeway:         cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:       cfg,
		store:        b.store,
		rateLimits:   rateLimits,
		limiter:      &rateLimiter{store: rateLimits},
		passwordHash: hasher,
		jwtManager:   jm,
		keys:         newKeyCache(cfg.Keys.CacheTTL),
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
		metrics: NewMetrics(cfg.Metrics),
	}

	b.built = true

	return engine, nil
}
