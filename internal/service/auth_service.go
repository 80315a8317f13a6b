package service

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/policyforge/policyforge-api/internal/models"
	appErrors "github.com/policyforge/policyforge-api/pkg/errors"
)

// AuthConfig carries the shared signing secret for session tokens.
type AuthConfig struct {
	TokenSecret string
}

// AuthService verifies bearer tokens minted by the web tier and resolves
// them into principals. The API never issues tokens itself.
type AuthService struct {
	config    AuthConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(config AuthConfig, validate *validator.Validate, logger *zap.Logger) *AuthService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{config: config, validator: validate, logger: logger}
}

// VerifyToken parses and validates a session JWT. NextAuth signs with the
// HMAC family, so HS256 through HS512 are accepted and everything else is
// rejected outright.
func (s *AuthService) VerifyToken(raw string) (*models.Principal, error) {
	claims := &models.SessionClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		switch t.Method.Alg() {
		case jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg():
			return []byte(s.config.TokenSecret), nil
		default:
			return nil, fmt.Errorf("unsupported signing algorithm %s", t.Method.Alg())
		}
	})
	if err != nil || !token.Valid {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	subject := claims.Subject
	if subject == "" {
		subject = claims.Email
	}
	if subject == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token missing subject")
	}

	role := models.GlobalRole(strings.ToLower(claims.Role))
	if claims.Role == "" {
		role = models.RoleOwner
	}
	if !models.ValidGlobalRole(string(role)) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "unknown role in token")
	}

	orgID := claims.OrgID
	if orgID == 0 {
		orgID = 1
	}

	return &models.Principal{
		SubjectID:  subject,
		Email:      strings.ToLower(strings.TrimSpace(claims.Email)),
		Name:       claims.Name,
		GlobalRole: role,
		OrgID:      orgID,
	}, nil
}
