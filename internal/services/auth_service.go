package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Kareem-3del/auction-platform-sub003/internal/domain"
	"github.com/Kareem-3del/auction-platform-sub003/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken    = errors.New("invalid token")
	ErrAccountInactive = errors.New("account inactive or missing")
)

// AuthService verifies a bearer credential against the shared signing secret
// and confirms the referenced account is still active. Both failure modes
// collapse into one rejection from the client's point of view.
type AuthService struct {
	secret []byte
	users  domain.UserRepository
	log    logger.Logger
}

func NewAuthService(secret string, users domain.UserRepository, log logger.Logger) *AuthService {
	return &AuthService{
		secret: []byte(secret),
		users:  users,
		log:    log,
	}
}

func (s *AuthService) Authenticate(ctx context.Context, token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID, err := parsed.Claims.GetSubject()
	if err != nil || userID == "" {
		return "", fmt.Errorf("%w: missing subject claim", ErrInvalidToken)
	}

	active, err := s.users.IsActive(ctx, userID)
	if err != nil {
		// An unreachable account store rejects like an invalid account; the
		// client cannot tell the difference and is expected to reconnect.
		s.log.Error("Account lookup failed", "user_id", userID, "error", err)
		return "", ErrAccountInactive
	}
	if !active {
		return "", ErrAccountInactive
	}

	return userID, nil
}
