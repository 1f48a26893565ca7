package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/odoohq/orchestrator/internal/config"
	"github.com/odoohq/orchestrator/internal/model"
)

// Failure classes are distinct so the middleware and logs can tell a bad
// credential from a deliberately disabled one, even though both surface as
// 401 externally.
var (
	ErrInvalidKey        = errors.New("invalid api key")
	ErrKeyRevoked        = errors.New("api key revoked")
	ErrKeyExpired        = errors.New("api key expired")
	ErrInsufficientScope = errors.New("insufficient scope")
	ErrNameRequired      = errors.New("name is required")
	ErrInvalidSession    = errors.New("invalid session")
)

// keyPrefixLen covers "orch_" plus the first 8 hex chars, enough for display
// and support lookups without revealing the secret.
const (
	keySecretBytes = 32
	keyIDPrefix    = "orch_"
	keyPrefixLen   = len(keyIDPrefix) + 8
)

// Principal is the identity resolved from an API key, handed to route
// handlers after the middleware validates the credential.
type Principal struct {
	KeyID              int64
	Name               string
	Scopes             model.ScopeList
	CompanyID          *int64 // nil means the key is not tenant-scoped
	UserID             string
	RateLimitPerMinute int
	RateLimitPerHour   int
	RateLimitPerDay    int
}

// HasScope reports whether the principal satisfies the required scope.
func (p *Principal) HasScope(required string) bool {
	return p.Scopes.Contains(required)
}

// AdminPrincipal is the identity resolved from an admin session token.
type AdminPrincipal struct {
	AdminID int64
	Email   string
}

// CreateKeyOptions carries the optional fields of an issuance request.
type CreateKeyOptions struct {
	CompanyID          *int64
	UserID             string
	Scopes             []string
	RateLimitPerMinute int
	RateLimitPerHour   int
	RateLimitPerDay    int
	ExpiresAt          *time.Time
}

// AuthService issues and validates API keys and admin session tokens.
type AuthService struct {
	store     *config.Store
	jwtSecret []byte
}

// NewAuthService creates an AuthService over the given store.
func NewAuthService(store *config.Store, jwtSecret string) *AuthService {
	return &AuthService{store: store, jwtSecret: []byte(jwtSecret)}
}

// CreateAPIKey generates a high-entropy secret, stores only its hash and a
// short prefix, and returns the plaintext. The plaintext is disclosed here
// and never again: no read path can recover it.
func (s *AuthService) CreateAPIKey(ctx context.Context, name string, opts CreateKeyOptions) (string, *model.APIKey, error) {
	if name == "" {
		return "", nil, ErrNameRequired
	}

	secret := make([]byte, keySecretBytes)
	if _, err := rand.Read(secret); err != nil {
		return "", nil, fmt.Errorf("generate key: %w", err)
	}
	plaintext := keyIDPrefix + hex.EncodeToString(secret)

	scopes := model.ScopeList(opts.Scopes)
	if scopes == nil {
		scopes = model.ScopeList{}
	}

	key := &model.APIKey{
		KeyHash:            config.HashAPIKey(plaintext),
		KeyPrefix:          plaintext[:keyPrefixLen],
		Name:               name,
		Scopes:             scopes,
		CompanyID:          opts.CompanyID,
		UserID:             opts.UserID,
		RateLimitPerMinute: opts.RateLimitPerMinute,
		RateLimitPerHour:   opts.RateLimitPerHour,
		RateLimitPerDay:    opts.RateLimitPerDay,
		ExpiresAt:          opts.ExpiresAt,
	}

	if err := s.store.CreateAPIKey(ctx, key); err != nil {
		return "", nil, fmt.Errorf("store api key: %w", err)
	}
	return plaintext, key, nil
}

// ValidateAPIKey resolves a presented key to its principal. Revoked and
// expired keys fail with errors distinct from "no match" so callers can log
// the difference. Expiry is evaluated lazily against the current clock.
func (s *AuthService) ValidateAPIKey(ctx context.Context, rawKey string) (*Principal, error) {
	key, err := s.store.GetAPIKeyByHash(ctx, config.HashAPIKey(rawKey))
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return nil, ErrInvalidKey
		}
		return nil, fmt.Errorf("look up api key: %w", err)
	}

	if key.Revoked() {
		return nil, ErrKeyRevoked
	}
	if key.Expired(time.Now()) {
		return nil, ErrKeyExpired
	}

	// Last-used bookkeeping must not block the request.
	go s.store.TouchAPIKey(context.Background(), key.ID)

	return &Principal{
		KeyID:              key.ID,
		Name:               key.Name,
		Scopes:             key.Scopes,
		CompanyID:          key.CompanyID,
		UserID:             key.UserID,
		RateLimitPerMinute: key.RateLimitPerMinute,
		RateLimitPerHour:   key.RateLimitPerHour,
		RateLimitPerDay:    key.RateLimitPerDay,
	}, nil
}

// RevokeAPIKey disables a key and returns the updated record. Revocation is
// idempotent; the one-way active -> revoked transition never reverses.
func (s *AuthService) RevokeAPIKey(ctx context.Context, id int64) (*model.APIKey, error) {
	return s.store.RevokeAPIKey(ctx, id)
}

// DeleteAPIKey hard-deletes a key record.
func (s *AuthService) DeleteAPIKey(ctx context.Context, id int64) error {
	return s.store.DeleteAPIKey(ctx, id)
}

// ---------------------------------------------------------------------------
// Admin sessions
// ---------------------------------------------------------------------------

// LoginAdmin verifies an admin's password and issues a session token.
func (s *AuthService) LoginAdmin(ctx context.Context, email, password string, ttl time.Duration) (string, *model.Admin, error) {
	admin, err := s.store.GetAdminByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return "", nil, ErrInvalidSession
		}
		return "", nil, fmt.Errorf("look up admin: %w", err)
	}
	if !admin.IsActive {
		return "", nil, ErrInvalidSession
	}
	if bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrInvalidSession
	}

	token, err := s.issueJWT(admin.ID, admin.Email, ttl)
	if err != nil {
		return "", nil, err
	}

	_ = s.store.UpdateAdminLastLogin(ctx, admin.ID)
	return token, admin, nil
}

// ValidateSession verifies an admin session token.
func (s *AuthService) ValidateSession(tokenStr string) (*AdminPrincipal, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidSession
	}
	return &AdminPrincipal{AdminID: claims.AdminID, Email: claims.Email}, nil
}

func (s *AuthService) issueJWT(adminID int64, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		AdminID: adminID,
		Email:   email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    "orchestrator",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

type sessionClaims struct {
	AdminID int64  `json:"admin_id"`
	Email   string `json:"email"`
	jwt.RegisteredClaims
}

// HashAdminPassword bcrypt-hashes a password for storage.
func HashAdminPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
