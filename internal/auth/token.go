package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// TokenManager handles issuing and validating JWT tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string, ttlMinutes int) *TokenManager {
	if ttlMinutes <= 0 {
		ttlMinutes = 60
	}
	return &TokenManager{secret: []byte(secret), ttl: time.Duration(ttlMinutes) * time.Minute, now: time.Now}
}

// Claims describes JWT payload. The subject is the profile id.
type Claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Identity converts the claims into the actor passed to services.
func (c *Claims) Identity() domain.Identity {
	return domain.Identity{ActorID: c.Subject, Role: c.Role}
}

// IssueToken builds and signs a JWT for the identity.
func (tm *TokenManager) IssueToken(identity domain.Identity) (string, time.Time, error) {
	if identity.ActorID == "" {
		return "", time.Time{}, errors.New("identity has no actor id")
	}
	if !validRole(identity.Role) {
		return "", time.Time{}, errors.New("unknown role")
	}
	issuedAt := tm.now()
	expiresAt := issuedAt.Add(tm.ttl)
	claims := &Claims{
		Role: identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ActorID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseToken validates and returns claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	}, jwt.WithTimeFunc(tm.now))
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.Subject == "" || !validRole(claims.Role) {
		return nil, errors.New("token carries no usable identity")
	}
	return claims, nil
}

func validRole(role domain.Role) bool {
	switch role {
	case domain.RoleUser, domain.RoleTechnician, domain.RoleAdmin:
		return true
	}
	return false
}
