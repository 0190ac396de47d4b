package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/niveshya/leadops/internal/shared"
)

// RoleResolver returns the role names currently assigned to a user.
type RoleResolver interface {
	RoleNames(ctx context.Context, userID string) ([]string, error)
}

// Service wraps authentication business rules.
type Service struct {
	repo    Repository
	roles   RoleResolver
	tokens  *TokenIssuer
	revoked RevocationList
	logger  *slog.Logger
}

// NewService constructs a new Service.
func NewService(repo Repository, roles RoleResolver, tokens *TokenIssuer, revoked RevocationList, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{repo: repo, roles: roles, tokens: tokens, revoked: revoked, logger: logger}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates the credentials and issues an access token carrying the user's role names.
func (s *Service) Login(ctx context.Context, email, password string) (TokenResponse, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return TokenResponse{}, err
	}
	roles, err := s.roles.RoleNames(ctx, user.ID)
	if err != nil {
		return TokenResponse{}, fmt.Errorf("auth: resolve roles: %w", err)
	}
	token, expiresAt, err := s.tokens.Issue(shared.Principal{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
		Roles:  roles,
	})
	if err != nil {
		return TokenResponse{}, err
	}
	if err := s.repo.TouchLastLogin(ctx, user.ID, time.Now()); err != nil {
		s.logger.Warn("touch last login", slog.String("user_id", user.ID), slog.Any("error", err))
	}
	return TokenResponse{AccessToken: token, TokenType: "bearer", ExpiresAt: expiresAt}, nil
}

// Verify parses the bearer token and rejects revoked tokens.
func (s *Service) Verify(ctx context.Context, raw string) (shared.Principal, error) {
	p, err := s.tokens.Parse(raw)
	if err != nil {
		return shared.Principal{}, err
	}
	if s.revoked != nil {
		revoked, err := s.revoked.IsRevoked(ctx, p.TokenID)
		if err != nil {
			return shared.Principal{}, fmt.Errorf("auth: revocation lookup: %w", err)
		}
		if revoked {
			return shared.Principal{}, errors.Join(shared.ErrUnauthenticated, errors.New("token revoked"))
		}
	}
	return p, nil
}

// Logout revokes the principal's token until it expires.
func (s *Service) Logout(ctx context.Context, p shared.Principal) error {
	if s.revoked == nil {
		return nil
	}
	return s.revoked.Revoke(ctx, p.TokenID, p.ExpiresAt)
}

// HashPassword returns the bcrypt hash of a password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
