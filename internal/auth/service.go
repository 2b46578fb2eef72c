package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"voicelog/internal/models"
	"voicelog/internal/redis"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Claims is the payload of an access token. RegisteredClaims.ID keys the
// user_tokens row so a token can be revoked before it expires.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Service issues, validates, and revokes user access tokens.
type Service struct {
	db             *sql.DB
	cache          *redis.Client
	secret         []byte
	tokenTTL       time.Duration
	cookieName     string
	headerName     string
	csrfCookieName string
	csrfHeaderName string
	now            func() time.Time
}

// NewService constructs an auth service. cache may be nil. An empty secret
// gets a random one, which invalidates every token on restart.
func NewService(db *sql.DB, cache *redis.Client, secret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	key := []byte(secret)
	if len(key) == 0 {
		log.Printf("auth: no jwt secret configured, using an ephemeral key")
		random, err := generateToken()
		if err != nil {
			panic(err)
		}
		key = []byte(random)
	}
	return &Service{
		db:             db,
		cache:          cache,
		secret:         key,
		tokenTTL:       ttl,
		cookieName:     "auth_token",
		headerName:     "Authorization",
		csrfCookieName: "csrf_token",
		csrfHeaderName: "X-CSRF-Token",
		now:            time.Now,
	}
}

// IssueToken signs a new access token for the user and records it.
func (s *Service) IssueToken(ctx context.Context, user *models.User) (*models.AuthSession, error) {
	if user == nil || user.ID == "" {
		return nil, errors.New("invalid user")
	}
	now := s.now().UTC()
	expiresAt := now.Add(s.tokenTTL)
	claims := Claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO user_tokens (token_id, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		claims.ID, user.ID, now, expiresAt,
	); err != nil {
		return nil, fmt.Errorf("record token: %w", err)
	}
	s.cacheToken(ctx, claims.ID, user.ID, s.tokenTTL)
	return &models.AuthSession{
		AccessToken: signed,
		TokenType:   "bearer",
		ExpiresAt:   claims.ExpiresAt.Time,
		User:        user,
	}, nil
}

// NewCSRFToken returns a random token used for CSRF protection.
func (s *Service) NewCSRFToken() (string, error) {
	return generateToken()
}

// ValidateToken verifies signature, expiry and revocation, returning the claims.
func (s *Service) ValidateToken(ctx context.Context, raw string) (*Claims, error) {
	if raw == "" {
		return nil, errors.New("token required")
	}
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(raw, claims, s.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		if !errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrInvalidToken
		}
		// Only drop the row once the signature is known to be ours.
		if _, verr := jwt.ParseWithClaims(raw, new(Claims), s.keyFunc,
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation()); verr == nil && claims.ID != "" {
			_ = s.revoke(ctx, claims.ID)
		}
		return nil, ErrTokenExpired
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	if s.cache != nil {
		userID, found, err := s.cache.TokenOwner(ctx, claims.ID)
		switch {
		case err != nil:
			log.Printf("auth cache lookup failed: %v", err)
		case found && userID != claims.Subject:
			return nil, ErrInvalidToken
		case found:
			return claims, nil
		}
	}

	var (
		userID  string
		expires time.Time
	)
	err = s.db.QueryRowContext(ctx,
		`SELECT user_id, expires_at FROM user_tokens WHERE token_id = ?`, claims.ID,
	).Scan(&userID, &expires)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("lookup token: %w", err)
	}
	if userID != claims.Subject {
		return nil, ErrInvalidToken
	}
	if s.now().UTC().After(expires) {
		_ = s.revoke(ctx, claims.ID)
		return nil, ErrTokenExpired
	}
	s.cacheToken(ctx, claims.ID, userID, expires.Sub(s.now().UTC()))
	return claims, nil
}

// RevokeToken invalidates a single token by its id.
func (s *Service) RevokeToken(ctx context.Context, tokenID string) error {
	if tokenID == "" {
		return nil
	}
	if err := s.revoke(ctx, tokenID); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// RevokeUserTokens removes all tokens belonging to the user.
func (s *Service) RevokeUserTokens(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT token_id FROM user_tokens WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("list user tokens: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scan token: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("list user tokens: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM user_tokens WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("revoke user tokens: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.ForgetTokens(ctx, ids...); err != nil {
			log.Printf("auth cache delete failed: %v", err)
		}
	}
	return nil
}

func (s *Service) keyFunc(*jwt.Token) (interface{}, error) {
	return s.secret, nil
}

func (s *Service) revoke(ctx context.Context, tokenID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM user_tokens WHERE token_id = ?`, tokenID); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.ForgetTokens(ctx, tokenID); err != nil {
			log.Printf("auth cache delete failed: %v", err)
		}
	}
	return nil
}

func (s *Service) cacheToken(ctx context.Context, tokenID, userID string, ttl time.Duration) {
	if s.cache == nil || ttl <= 0 {
		return
	}
	if err := s.cache.RememberToken(ctx, tokenID, userID, ttl); err != nil {
		log.Printf("auth cache token failed: %v", err)
	}
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// AuthCookieName returns the cookie name storing auth tokens.
func (s *Service) AuthCookieName() string {
	return s.cookieName
}

// CSRFCookieName returns the cookie used for CSRF tokens.
func (s *Service) CSRFCookieName() string {
	return s.csrfCookieName
}

// CSRFHeaderName returns the CSRF header name.
func (s *Service) CSRFHeaderName() string {
	return s.csrfHeaderName
}

// TokenTTL reports the configured token lifetime.
func (s *Service) TokenTTL() time.Duration {
	return s.tokenTTL
}
