// Package memstore is an in-memory [identity.Store] for tests and
// examples. A single mutex stands in for the conditional-update atomicity a
// production store provides; the observable semantics match the postgres
// backend, including the concurrent-loser branches.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/praxisauth/identity"
)

// Store implements every identity store interface behind one lock.
type Store struct {
	mu sync.Mutex

	users    map[string]*identity.User
	emailIdx map[string]string

	keys []identity.SigningKey

	refresh     map[string]*identity.RefreshToken
	crossDomain map[string]*identity.CrossDomainToken
	rateLimits  map[string]*identity.RateLimitRecord
	emailByUser map[string]*identity.EmailChangeRequest
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:       make(map[string]*identity.User),
		emailIdx:    make(map[string]string),
		refresh:     make(map[string]*identity.RefreshToken),
		crossDomain: make(map[string]*identity.CrossDomainToken),
		rateLimits:  make(map[string]*identity.RateLimitRecord),
		emailByUser: make(map[string]*identity.EmailChangeRequest),
	}
}

func (s *Store) Users() identity.UserStore                         { return s }
func (s *Store) SigningKeys() identity.SigningKeyStore             { return s }
func (s *Store) RefreshTokens() identity.RefreshTokenStore         { return s }
func (s *Store) CrossDomainTokens() identity.CrossDomainTokenStore { return s }
func (s *Store) RateLimits() identity.RateLimitStore               { return s }
func (s *Store) EmailChanges() identity.EmailChangeStore           { return s }

// ---- users ----

func (s *Store) CreateUser(_ context.Context, user *identity.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.emailIdx[user.Email]; taken {
		return identity.ErrEmailTaken
	}

	cp := *user
	s.users[user.ID] = &cp
	s.emailIdx[user.Email] = user.ID
	return nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*identity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.emailIdx[email]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	cp := *s.users[id]
	return &cp, nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*identity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

func (s *Store) UpdateUserEmail(_ context.Context, id, email string, verified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return identity.ErrUserNotFound
	}
	if owner, taken := s.emailIdx[email]; taken && owner != id {
		return identity.ErrEmailTaken
	}

	delete(s.emailIdx, user.Email)
	user.Email = email
	user.EmailVerified = verified
	s.emailIdx[email] = id
	return nil
}

func (s *Store) SetUserDeletedAt(_ context.Context, id string, deletedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return identity.ErrUserNotFound
	}
	if deletedAt == nil {
		user.DeletedAt = nil
	} else {
		t := *deletedAt
		user.DeletedAt = &t
	}
	return nil
}

func (s *Store) HardDeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return identity.ErrUserNotFound
	}
	s.purgeUserLocked(user)
	return nil
}

func (s *Store) PurgeUsersDeletedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var purged int64
	for _, user := range s.users {
		if user.DeletedAt != nil && user.DeletedAt.Before(cutoff) {
			s.purgeUserLocked(user)
			purged++
		}
	}
	return purged, nil
}

// purgeUserLocked removes the user and every dependent row, mirroring the
// SQL backend's ON DELETE CASCADE.
func (s *Store) purgeUserLocked(user *identity.User) {
	delete(s.users, user.ID)
	delete(s.emailIdx, user.Email)
	delete(s.emailByUser, user.ID)
	for hash, token := range s.refresh {
		if token.UserID == user.ID {
			delete(s.refresh, hash)
		}
	}
	for hash, token := range s.crossDomain {
		if token.UserID == user.ID {
			delete(s.crossDomain, hash)
		}
	}
}

// ---- signing keys ----

func (s *Store) CreateSigningKey(_ context.Context, key *identity.SigningKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *key
	cp.PrivateKey = append([]byte(nil), key.PrivateKey...)
	cp.PublicKey = append([]byte(nil), key.PublicKey...)
	s.keys = append(s.keys, cp)
	return nil
}

func (s *Store) ActiveSigningKey(_ context.Context) (*identity.SigningKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.keys) - 1; i >= 0; i-- {
		if s.keys[i].Active {
			cp := s.keys[i]
			return &cp, nil
		}
	}
	return nil, identity.ErrKeyNotFound
}

func (s *Store) ActiveSigningKeys(_ context.Context) ([]identity.SigningKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]identity.SigningKey, 0, len(s.keys))
	for i := len(s.keys) - 1; i >= 0; i-- {
		if s.keys[i].Active {
			out = append(out, s.keys[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) DeactivateSigningKey(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.keys {
		if s.keys[i].ID == id {
			s.keys[i].Active = false
			return nil
		}
	}
	return identity.ErrKeyNotFound
}

// ---- refresh tokens ----

func (s *Store) CreateRefreshToken(_ context.Context, token *identity.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *token
	s.refresh[token.TokenHash] = &cp
	return nil
}

func (s *Store) GetRefreshTokenByHash(_ context.Context, hash string) (*identity.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.refresh[hash]
	if !ok {
		return nil, identity.ErrRefreshNotFound
	}
	cp := *token
	return &cp, nil
}

func (s *Store) RotateRefreshToken(_ context.Context, presentedHash string, next *identity.RefreshToken) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.refresh[presentedHash]
	now := time.Now().UTC()
	if !ok || current.RevokedAt != nil || !current.ExpiresAt.After(now) {
		return false, nil
	}

	current.RevokedAt = &now
	cp := *next
	s.refresh[next.TokenHash] = &cp
	return true, nil
}

func (s *Store) RevokeFamily(_ context.Context, familyID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var revoked int64
	for _, token := range s.refresh {
		if token.FamilyID == familyID && token.RevokedAt == nil {
			t := now
			token.RevokedAt = &t
			revoked++
		}
	}
	return revoked, nil
}

func (s *Store) RevokeAllForUser(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var revoked int64
	for _, token := range s.refresh {
		if token.UserID == userID && token.RevokedAt == nil {
			t := now
			token.RevokedAt = &t
			revoked++
		}
	}
	return revoked, nil
}

func (s *Store) PurgeExpiredRefreshTokens(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var purged int64
	for hash, token := range s.refresh {
		if !token.ExpiresAt.After(now) {
			delete(s.refresh, hash)
			purged++
		}
	}
	return purged, nil
}

// ---- cross-domain tokens ----

func (s *Store) CreateCrossDomainToken(_ context.Context, token *identity.CrossDomainToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *token
	s.crossDomain[token.TokenHash] = &cp
	return nil
}

func (s *Store) GetCrossDomainTokenByHash(_ context.Context, hash string) (*identity.CrossDomainToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.crossDomain[hash]
	if !ok {
		return nil, identity.ErrCrossDomainNotFound
	}
	cp := *token
	return &cp, nil
}

func (s *Store) ConsumeCrossDomainToken(_ context.Context, hash string, target identity.Target, now time.Time) (*identity.CrossDomainToken, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.crossDomain[hash]
	if !ok || token.Target != target || token.UsedAt != nil || !token.ExpiresAt.After(now) {
		return nil, false, nil
	}

	t := now
	token.UsedAt = &t
	cp := *token
	return &cp, true, nil
}

func (s *Store) PurgeExpiredCrossDomainTokens(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var purged int64
	for hash, token := range s.crossDomain {
		if !token.ExpiresAt.After(now) {
			delete(s.crossDomain, hash)
			purged++
		}
	}
	return purged, nil
}

// ---- rate limits ----

func (s *Store) GetRateLimit(_ context.Context, key string) (*identity.RateLimitRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.rateLimits[key]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *Store) IncrementRateLimit(_ context.Context, key string, now time.Time, window time.Duration) (*identity.RateLimitRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.rateLimits[key]
	if !ok || !rec.WindowStart.After(now.Add(-window)) {
		rec = &identity.RateLimitRecord{Key: key, Count: 1, WindowStart: now}
		s.rateLimits[key] = rec
	} else {
		rec.Count++
	}
	cp := *rec
	return &cp, nil
}

func (s *Store) BlockRateLimit(_ context.Context, key string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.rateLimits[key]
	if !ok {
		rec = &identity.RateLimitRecord{Key: key, WindowStart: time.Now().UTC()}
		s.rateLimits[key] = rec
	}
	t := until
	rec.BlockedUntil = &t
	return nil
}

func (s *Store) DeleteRateLimit(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rateLimits, key)
	return nil
}

// ---- email changes ----

func (s *Store) ReplaceEmailChangeRequest(_ context.Context, req *identity.EmailChangeRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *req
	s.emailByUser[req.UserID] = &cp
	return nil
}

func (s *Store) ConsumeEmailChangeRequest(_ context.Context, hash string, now time.Time) (*identity.EmailChangeRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for userID, req := range s.emailByUser {
		if req.TokenHash == hash {
			if !req.ExpiresAt.After(now) {
				return nil, identity.ErrEmailChangeNotFound
			}
			cp := *req
			delete(s.emailByUser, userID)
			return &cp, nil
		}
	}
	return nil, identity.ErrEmailChangeNotFound
}

func (s *Store) PurgeExpiredEmailChanges(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var purged int64
	for userID, req := range s.emailByUser {
		if !req.ExpiresAt.After(now) {
			delete(s.emailByUser, userID)
			purged++
		}
	}
	return purged, nil
}
