package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/elearning/internal/config"
	"github.com/stemsi/elearning/internal/model"
	"github.com/stemsi/elearning/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// Claims is the session token payload. It carries identity only; the
// permission set is always recomputed server-side.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// AuthService handles passwords, session tokens and email verification.
type AuthService struct {
	cfg       *config.Config
	rdb       *redis.Client
	users     UserStore
	notifier  *Notifier
	dummyHash []byte
	log       zerolog.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config, rdb *redis.Client, users UserStore, notifier *Notifier, log zerolog.Logger) *AuthService {
	// Compared against when the email is unknown so both paths cost one bcrypt.
	dummy, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), cfg.BcryptCost)
	return &AuthService{
		cfg:       cfg,
		rdb:       rdb,
		users:     users,
		notifier:  notifier,
		dummyHash: dummy,
		log:       log.With().Str("component", "auth_service").Logger(),
	}
}

// HashPassword hashes a password with the configured bcrypt cost.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	return string(hash), err
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func (s *AuthService) CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Authenticate checks email and password. Unknown emails and wrong
// passwords both return ErrInvalidCredentials.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if err := s.CheckPassword(user.PasswordHash, password); err != nil {
		return nil, err
	}
	return user, nil
}

// IssueToken signs a session token for the user.
func (s *AuthService) IssueToken(userID string) (string, *Claims, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
		},
		UserID: userID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// ValidateToken parses a token and rejects it if it was revoked by logout.
func (s *AuthService) ValidateToken(ctx context.Context, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, errors.New("invalid token claims")
	}

	revoked, err := s.rdb.Exists(ctx, config.CacheKey.RevokedTokenKey(claims.ID)).Result()
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked > 0 {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Revoke blacklists the token until it would have expired anyway.
func (s *AuthService) Revoke(ctx context.Context, claims *Claims) error {
	ttl := time.Minute
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if ttl <= 0 {
		return nil
	}
	if err := s.rdb.Set(ctx, config.CacheKey.RevokedTokenKey(claims.ID), claims.UserID, ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	s.notifier.SessionRevoked(ctx, claims.UserID, claims.ID)
	return nil
}

// IssueVerificationToken stores a one-time email verification token.
func (s *AuthService) IssueVerificationToken(ctx context.Context, userID string) (string, error) {
	token := uuid.New().String()
	if err := s.rdb.Set(ctx, config.CacheKey.VerificationTokenKey(token), userID, s.cfg.VerificationTTL).Err(); err != nil {
		return "", fmt.Errorf("store verification token: %w", err)
	}
	return token, nil
}

// VerifyEmail consumes a verification token and marks its user verified.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (string, error) {
	userID, err := s.rdb.GetDel(ctx, config.CacheKey.VerificationTokenKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrInvalidVerificationToken
		}
		return "", fmt.Errorf("consume verification token: %w", err)
	}

	if err := s.users.SetVerified(ctx, userID, true); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrInvalidVerificationToken
		}
		return "", err
	}

	s.log.Info().Str("user_id", userID).Msg("Email verified")
	s.notifier.PrincipalChanged(ctx, userID)
	return userID, nil
}
