// AuthService handles registration, login, JWT issuance and the
// user-level net-worth snapshot.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Jjjbit/ledger/internal/domain"
	"github.com/Jjjbit/ledger/internal/port"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var authTracer = otel.Tracer("service.auth")

const (
	bcryptCost        = 12
	defaultLedgerName = "Default"
	minPasswordLen    = 8
)

// AuthService orchestrates authentication flows.
type AuthService struct {
	store     port.Store
	jwtSecret []byte
	accessTTL time.Duration
	nw        *NetWorthRefresher
	logger    *zap.Logger
}

func NewAuthService(store port.Store, jwtSecret string, accessTTL time.Duration, nw *NetWorthRefresher, logger *zap.Logger) *AuthService {
	return &AuthService{
		store:     store,
		jwtSecret: []byte(jwtSecret),
		accessTTL: accessTTL,
		nw:        nw,
		logger:    logger,
	}
}

// LoginResult carries the signed token alongside the user it belongs
// to.
type LoginResult struct {
	User        *domain.User `json:"user"`
	AccessToken string       `json:"access_token"`
	ExpiresIn   int64        `json:"expires_in"`
}

// ============================================================
// Register
// ============================================================

// Register creates a user with a default ledger seeded from the
// category template.
func (s *AuthService) Register(ctx context.Context, username, password string) (*domain.User, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Register")
	defer span.End()

	if username == "" {
		return nil, &domain.ErrValidation{Field: "username", Message: "must not be empty"}
	}
	if len(password) < minPasswordLen {
		return nil, &domain.ErrValidation{Field: "password", Message: fmt.Sprintf("must be at least %d characters", minPasswordLen)}
	}

	existing, err := s.store.GetUserByUsername(ctx, username)
	if err == nil && existing != nil {
		return nil, &domain.ErrConflict{Message: "username already taken"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &domain.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: string(hash),
		Role:         domain.RoleUser,
		CreatedAt:    time.Now(),
	}
	if err := s.store.PutUser(ctx, u); err != nil {
		return nil, err
	}

	l := &domain.Ledger{
		ID:        uuid.New().String(),
		OwnerID:   u.ID,
		Name:      defaultLedgerName,
		CreatedAt: time.Now(),
	}
	if err := s.store.PutLedger(ctx, l); err != nil {
		return nil, err
	}
	template, err := s.store.TemplateCategories(ctx)
	if err != nil {
		return nil, err
	}
	if err := copyCategoryTree(ctx, s.store, template, l.ID); err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		zap.String("user_id", u.ID),
		zap.String("username", username),
	)
	return u, nil
}

// ============================================================
// Login
// ============================================================

func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Login")
	defer span.End()

	u, err := s.store.GetUserByUsername(ctx, username)
	if err != nil || u == nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid credentials"}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn("login: bad password", zap.String("username", username))
		return nil, &domain.ErrUnauthorized{Message: "invalid credentials"}
	}

	token, err := s.signAccessToken(u)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	s.logger.Info("user logged in", zap.String("user_id", u.ID))
	return &LoginResult{
		User:        u,
		AccessToken: token,
		ExpiresIn:   int64(s.accessTTL.Seconds()),
	}, nil
}

// ============================================================
// Token validation (used by middleware)
// ============================================================

// JWTClaims represents the custom claims in access tokens.
type JWTClaims struct {
	Sub      string      `json:"sub"`
	Username string      `json:"username"`
	Role     domain.Role `json:"role"`
	Type     string      `json:"type"`
	jwt.RegisteredClaims
}

func (s *AuthService) ValidateAccessToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "invalid token"}
	}
	if claims.Type != "access" {
		return nil, &domain.ErrUnauthorized{Message: "invalid token type"}
	}
	return claims, nil
}

func (s *AuthService) signAccessToken(u *domain.User) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		Sub:      u.ID,
		Username: u.Username,
		Role:     u.Role,
		Type:     "access",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			Issuer:    "ledger-api",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ============================================================
// Credential updates
// ============================================================

// ChangePassword verifies the current password before replacing it.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	ctx, span := authTracer.Start(ctx, "AuthService.ChangePassword")
	defer span.End()

	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(currentPassword)); err != nil {
		s.logger.Warn("password change: wrong current password", zap.String("user_id", userID))
		return &domain.ErrUnauthorized{Message: "current password is incorrect"}
	}
	if len(newPassword) < minPasswordLen {
		return &domain.ErrValidation{Field: "new_password", Message: fmt.Sprintf("must be at least %d characters", minPasswordLen)}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	if err := s.store.PutUser(ctx, u); err != nil {
		return err
	}

	s.logger.Info("password changed", zap.String("user_id", userID))
	return nil
}

// ChangeUsername renames the account, keeping usernames unique.
func (s *AuthService) ChangeUsername(ctx context.Context, userID, newUsername string) (*domain.User, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.ChangeUsername")
	defer span.End()

	if newUsername == "" {
		return nil, &domain.ErrValidation{Field: "username", Message: "must not be empty"}
	}
	existing, err := s.store.GetUserByUsername(ctx, newUsername)
	if err == nil && existing != nil && existing.ID != userID {
		return nil, &domain.ErrConflict{Message: "username already taken"}
	}

	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	u.Username = newUsername
	if err := s.store.PutUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// ============================================================
// Net worth
// ============================================================

// NetWorth returns the memoized snapshot, recomputing on a cache miss.
func (s *AuthService) NetWorth(ctx context.Context, userID string) (domain.NetWorth, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.NetWorth")
	defer span.End()
	return s.nw.Get(ctx, userID)
}

// RefreshNetWorth forces a recompute from the live account set.
func (s *AuthService) RefreshNetWorth(ctx context.Context, userID string) (domain.NetWorth, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.RefreshNetWorth")
	defer span.End()
	return s.nw.Refresh(ctx, userID)
}

// Profile returns the stored user record.
func (s *AuthService) Profile(ctx context.Context, userID string) (*domain.User, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Profile")
	defer span.End()
	return s.store.GetUser(ctx, userID)
}
