// Package session mirrors identity provider sessions into cookies and caches user lookups.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/unifiedui/community-gateway/internal/core/cache"
	"github.com/unifiedui/community-gateway/internal/core/identity"
	"github.com/unifiedui/community-gateway/internal/domain/models"
	"github.com/unifiedui/community-gateway/internal/pkg/encryption"
)

const (
	// DefaultCookiePrefix is used when Config.CookiePrefix is empty.
	DefaultCookiePrefix = "cg"

	// DefaultUserCacheTTL bounds how long a validated user is served from cache.
	DefaultUserCacheTTL = 2 * time.Minute

	// DefaultCookieMaxAge is the lifetime of the session cookies.
	DefaultCookieMaxAge = 30 * 24 * time.Hour

	userCacheKeyPrefix = "session:user:"
)

// Service manages the cookie-backed session of a request.
type Service interface {
	// Current reads the session from cookies. An expired session is returned
	// without remote validation so the caller can refresh it.
	// Returns identity.ErrNoSession if there is no usable session.
	Current(ctx context.Context, cookies identity.Cookies) (*models.Session, error)

	// Refresh exchanges the session's refresh token and rewrites the cookies.
	Refresh(ctx context.Context, cookies identity.Cookies, current *models.Session) (*models.Session, error)

	// SignIn signs in with email and password and writes the session cookies.
	SignIn(ctx context.Context, cookies identity.Cookies, email, password string) (*models.Session, error)

	// SignOut revokes the session and clears its cookies.
	SignOut(ctx context.Context, cookies identity.Cookies) error

	// Clear removes the session cookies.
	Clear(cookies identity.Cookies)
}

// Config holds the configuration for the session service.
type Config struct {
	Provider     identity.Provider
	CacheClient  cache.Client
	Encryptor    encryption.Encryptor
	CookiePrefix string
	CookieDomain string
	CookieSecure bool
	CookieMaxAge time.Duration
	UserCacheTTL time.Duration
	// Now overrides the clock in tests.
	Now func() time.Time
}

type service struct {
	provider  identity.Provider
	cache     cache.Client
	encryptor encryption.Encryptor
	names     cookieNames
	domain    string
	secure    bool
	maxAge    time.Duration
	userTTL   time.Duration
	now       func() time.Time
}

type cookieNames struct {
	access  string
	refresh string
	expires string
}

// NewService creates a new session service.
func NewService(cfg *Config) (Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Provider == nil {
		return nil, fmt.Errorf("identity provider is required")
	}
	if cfg.CacheClient == nil {
		return nil, fmt.Errorf("cache client is required")
	}
	if cfg.Encryptor == nil {
		return nil, fmt.Errorf("encryptor is required")
	}

	prefix := cfg.CookiePrefix
	if prefix == "" {
		prefix = DefaultCookiePrefix
	}
	maxAge := cfg.CookieMaxAge
	if maxAge == 0 {
		maxAge = DefaultCookieMaxAge
	}
	userTTL := cfg.UserCacheTTL
	if userTTL == 0 {
		userTTL = DefaultUserCacheTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	access, refresh, expires := CookieNames(prefix)

	return &service{
		provider:  cfg.Provider,
		cache:     cfg.CacheClient,
		encryptor: cfg.Encryptor,
		names:     cookieNames{access: access, refresh: refresh, expires: expires},
		domain:    cfg.CookieDomain,
		secure:    cfg.CookieSecure,
		maxAge:    maxAge,
		userTTL:   userTTL,
		now:       now,
	}, nil
}

// CookieNames returns the access, refresh and expiry cookie names for prefix.
func CookieNames(prefix string) (access, refresh, expiresAt string) {
	if prefix == "" {
		prefix = DefaultCookiePrefix
	}
	return prefix + "-access-token", prefix + "-refresh-token", prefix + "-expires-at"
}

// Current reads and validates the session carried by cookies.
func (s *service) Current(ctx context.Context, cookies identity.Cookies) (*models.Session, error) {
	session, ok := s.read(cookies)
	if !ok {
		return nil, identity.ErrNoSession
	}

	if session.AccessToken == "" || session.IsExpired(s.now()) {
		return session, nil
	}

	user, err := s.lookupUser(ctx, session)
	if err != nil {
		return nil, err
	}
	session.User = user
	return session, nil
}

// Refresh exchanges the refresh token and rewrites the cookies.
func (s *service) Refresh(ctx context.Context, cookies identity.Cookies, current *models.Session) (*models.Session, error) {
	if current == nil || current.RefreshToken == "" {
		return nil, identity.ErrNoSession
	}

	refreshed, err := s.provider.Refresh(ctx, current.RefreshToken)
	if err != nil {
		return nil, err
	}
	if refreshed == nil {
		return nil, identity.ErrNoSession
	}
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = current.RefreshToken
	}

	if current.AccessToken != "" {
		s.evictUser(ctx, current.AccessToken)
	}
	s.write(cookies, refreshed)
	s.storeUser(ctx, refreshed)

	return refreshed, nil
}

// SignIn signs in with email and password and writes the session cookies.
func (s *service) SignIn(ctx context.Context, cookies identity.Cookies, email, password string) (*models.Session, error) {
	session, err := s.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}

	s.write(cookies, session)
	s.storeUser(ctx, session)
	return session, nil
}

// SignOut revokes the session upstream and clears its cookies.
// Provider failures are logged; the cookies are cleared regardless.
func (s *service) SignOut(ctx context.Context, cookies identity.Cookies) error {
	if access, ok := cookies.Get(s.names.access); ok && access != "" {
		if err := s.provider.SignOut(ctx, access); err != nil {
			log.Warn().Err(err).Msg("identity provider sign-out failed")
		}
		s.evictUser(ctx, access)
	}

	s.Clear(cookies)
	return nil
}

// Clear removes the session cookies.
func (s *service) Clear(cookies identity.Cookies) {
	for _, name := range []string{s.names.access, s.names.refresh, s.names.expires} {
		cookies.Set(s.cookie(name, "", -1))
	}
}

// read builds a session from cookies. It reports false when neither token is present.
func (s *service) read(cookies identity.Cookies) (*models.Session, bool) {
	access, _ := cookies.Get(s.names.access)
	refresh, _ := cookies.Get(s.names.refresh)
	if access == "" && refresh == "" {
		return nil, false
	}

	session := &models.Session{
		AccessToken:  access,
		RefreshToken: refresh,
	}

	// A missing or malformed expiry reads as already expired.
	if raw, ok := cookies.Get(s.names.expires); ok {
		if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
			session.ExpiresAt = time.Unix(unix, 0).UTC()
		}
	}

	return session, true
}

func (s *service) write(cookies identity.Cookies, session *models.Session) {
	maxAge := int(s.maxAge.Seconds())
	cookies.Set(s.cookie(s.names.access, session.AccessToken, maxAge))
	cookies.Set(s.cookie(s.names.refresh, session.RefreshToken, maxAge))
	cookies.Set(s.cookie(s.names.expires, strconv.FormatInt(session.ExpiresAt.Unix(), 10), maxAge))
}

func (s *service) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   s.domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// lookupUser resolves the session's user, preferring the cache.
func (s *service) lookupUser(ctx context.Context, session *models.Session) (*models.User, error) {
	if user := s.cachedUser(ctx, session.AccessToken); user != nil {
		return user, nil
	}

	user, err := s.provider.GetUser(ctx, session.AccessToken)
	if err != nil {
		return nil, err
	}

	session.User = user
	s.storeUser(ctx, session)
	return user, nil
}

// cachedUser returns nil on a miss or when the cache entry is unusable.
func (s *service) cachedUser(ctx context.Context, accessToken string) *models.User {
	key := userCacheKey(accessToken)

	encrypted, err := s.cache.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Msg("session cache read failed")
		return nil
	}
	if encrypted == nil {
		return nil
	}

	// A key rotation or corrupt entry is treated as a miss.
	decrypted, err := s.encryptor.Decrypt(string(encrypted))
	if err != nil {
		_, _ = s.cache.Delete(ctx, key)
		return nil
	}

	var user models.User
	if err := json.Unmarshal(decrypted, &user); err != nil || user.ID == "" {
		_, _ = s.cache.Delete(ctx, key)
		return nil
	}
	return &user
}

// storeUser caches the session's user for no longer than the token stays valid.
func (s *service) storeUser(ctx context.Context, session *models.Session) {
	if session.User == nil || session.AccessToken == "" {
		return
	}

	ttl := s.userTTL
	if remaining := session.ExpiresIn(s.now()); remaining < ttl {
		ttl = remaining
	}
	if ttl < time.Second {
		return
	}

	data, err := json.Marshal(session.User)
	if err != nil {
		return
	}
	encrypted, err := s.encryptor.Encrypt(data)
	if err != nil {
		log.Warn().Err(err).Msg("session cache encryption failed")
		return
	}
	if err := s.cache.Set(ctx, userCacheKey(session.AccessToken), []byte(encrypted), ttl); err != nil {
		log.Warn().Err(err).Msg("session cache write failed")
	}
}

func (s *service) evictUser(ctx context.Context, accessToken string) {
	if _, err := s.cache.Delete(ctx, userCacheKey(accessToken)); err != nil {
		log.Warn().Err(err).Msg("session cache eviction failed")
	}
}

// userCacheKey never stores the raw token.
func userCacheKey(accessToken string) string {
	sum := sha256.Sum256([]byte(accessToken))
	return userCacheKeyPrefix + hex.EncodeToString(sum[:])
}
