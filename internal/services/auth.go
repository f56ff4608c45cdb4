package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yungbote/carecall-backend/internal/platform/ctxutil"
	"github.com/yungbote/carecall-backend/internal/platform/logger"
)

// AuthService resolves the bearer token into the request actor. Accounts and
// sessions live in the identity provider; this service only verifies tokens.
type AuthService interface {
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	IssueToken(userID uuid.UUID, role string) (string, error)
}

type authService struct {
	log          *logger.Logger
	jwtSecretKey []byte
	accessTTL    time.Duration
}

type authClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func NewAuthService(log *logger.Logger, jwtSecretKey string, accessTTL time.Duration) AuthService {
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}
	return &authService{
		log:          log.With("service", "AuthService"),
		jwtSecretKey: []byte(jwtSecretKey),
		accessTTL:    accessTTL,
	}
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	if len(as.jwtSecretKey) == 0 {
		return ctx, configurationError("JWT_SECRET_KEY is not set")
	}
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return ctx, authError("Unauthorized")
	}
	claims := &authClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return as.jwtSecretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		as.log.Debug("Token rejected", "error", err)
		return ctx, authError("Invalid or expired token")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil || userID == uuid.Nil {
		return ctx, authError("Invalid token subject")
	}
	if claims.Role != ctxutil.RoleDoctor && claims.Role != ctxutil.RolePatient {
		return ctx, authError("Invalid token role")
	}
	return ctxutil.WithRequestData(ctx, &ctxutil.RequestData{
		TokenString: tokenString,
		UserID:      userID,
		Role:        claims.Role,
	}), nil
}

func (as *authService) IssueToken(userID uuid.UUID, role string) (string, error) {
	if len(as.jwtSecretKey) == 0 {
		return "", configurationError("JWT_SECRET_KEY is not set")
	}
	now := time.Now().UTC()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, authClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(as.accessTTL)),
		},
	})
	signed, err := tok.SignedString(as.jwtSecretKey)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// actorID returns the authenticated user id when the actor has role.
func actorID(ctx context.Context, role string) (uuid.UUID, error) {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return uuid.Nil, authError("Unauthorized")
	}
	if rd.Role != role {
		return uuid.Nil, authError("Unauthorized")
	}
	return rd.UserID, nil
}
