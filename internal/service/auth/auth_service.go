// internal/service/auth/auth_service.go
package auth

import (
	"context"
	"fmt"

	"subgate-service/internal/domain/capability"
	"subgate-service/internal/domain/identity"
	xerrors "subgate-service/internal/pkg/errors"
	"subgate-service/internal/pkg/jwt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// IdentityStore resolves and provisions service identities.
type IdentityStore interface {
	FindByName(ctx context.Context, name string) (*identity.ServiceIdentity, error)
	Ensure(ctx context.Context, name string, cap capability.Capability, secretHash string) error
}

// Grant is one deployment-configured identity to provision at startup.
type Grant struct {
	Name       string
	Capability capability.Capability
	Secret     string
}

// AuthService exchanges service-identity credentials for short-lived
// capability tokens. There is no self-registration path; identities come
// from deployment configuration only.
type AuthService struct {
	identities IdentityStore
	jwt        *jwt.Manager
	logger     *zap.Logger
}

func NewAuthService(identities IdentityStore, jwtManager *jwt.Manager, logger *zap.Logger) *AuthService {
	return &AuthService{
		identities: identities,
		jwt:        jwtManager,
		logger:     logger,
	}
}

// IssueToken authenticates the identity and signs a capability token.
// Bad name and bad secret are indistinguishable to the caller.
func (s *AuthService) IssueToken(ctx context.Context, req *identity.TokenRequest) (*identity.TokenResponse, error) {
	si, err := s.identities.FindByName(ctx, req.Name)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid credentials", xerrors.ErrUnauthorized)
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(si.SecretHash), []byte(req.Secret)); err != nil {
		s.logger.Warn("token request with bad secret", zap.String("identity", req.Name))
		return nil, fmt.Errorf("%w: invalid credentials", xerrors.ErrUnauthorized)
	}

	token, jti, err := s.jwt.Generator.Generate(si.ID, si.Name, string(si.Capability))
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	s.logger.Info("capability token issued",
		zap.String("identity", si.Name),
		zap.String("capability", string(si.Capability)),
		zap.String("jti", jti))
	return &identity.TokenResponse{
		Token:      token,
		Capability: string(si.Capability),
		ExpiresIn:  int64(s.jwt.Generator.Ttl.Seconds()),
	}, nil
}

// ValidateToken verifies a token and returns its claims.
func (s *AuthService) ValidateToken(tokenString string) (*jwt.Claims, error) {
	claims, err := s.jwt.Verifier.Verify(tokenString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", xerrors.ErrUnauthorized, err)
	}
	if _, err := capability.Parse(claims.Capability); err != nil {
		return nil, fmt.Errorf("%w: token carries unknown capability", xerrors.ErrUnauthorized)
	}
	return claims, nil
}

// EnsureGrants provisions configured identities at startup. A grant with
// an empty secret is skipped so that unset env vars never create
// passwordless identities.
func (s *AuthService) EnsureGrants(ctx context.Context, grants []Grant) error {
	for _, g := range grants {
		if g.Name == "" || g.Secret == "" {
			continue
		}
		if _, err := capability.Parse(string(g.Capability)); err != nil {
			return fmt.Errorf("grant %q: %w", g.Name, err)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(g.Secret), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash secret for %q: %w", g.Name, err)
		}
		if err := s.identities.Ensure(ctx, g.Name, g.Capability, string(hash)); err != nil {
			return fmt.Errorf("failed to ensure identity %q: %w", g.Name, err)
		}
		s.logger.Info("service identity ensured",
			zap.String("identity", g.Name),
			zap.String("capability", string(g.Capability)))
	}
	return nil
}
