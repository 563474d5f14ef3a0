package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Zymoclassic/eduplat/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const RoleAdmin = "admin"

// Claims is the bearer token payload.
type Claims struct {
	Kind  domain.AccountKind `json:"kind"`
	Email string             `json:"email"`
	Role  string             `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller.
type Principal struct {
	Ref   domain.AccountRef
	Email string
	Role  string
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// TokenIssuer signs and verifies HS256 access tokens.
type TokenIssuer struct {
	secret      []byte
	ttl         time.Duration
	adminEmails map[string]bool
	now         func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration, adminEmails []string) *TokenIssuer {
	admins := make(map[string]bool, len(adminEmails))
	for _, email := range adminEmails {
		admins[strings.ToLower(strings.TrimSpace(email))] = true
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, adminEmails: admins, now: time.Now}
}

// Issue returns a signed token and its expiry.
func (t *TokenIssuer) Issue(account *domain.Account) (string, time.Time, error) {
	now := t.now()
	expiresAt := now.Add(t.ttl)
	claims := Claims{
		Kind:  account.Ref.Kind,
		Email: account.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.Ref.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if t.adminEmails[strings.ToLower(account.Email)] {
		claims.Role = RoleAdmin
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse validates a token and returns the caller it names.
func (t *TokenIssuer) Parse(raw string) (*Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if !claims.Kind.Valid() {
		return nil, errors.New("token has unknown account kind")
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("token subject: %w", err)
	}
	return &Principal{
		Ref:   domain.AccountRef{Kind: claims.Kind, ID: id},
		Email: claims.Email,
		Role:  claims.Role,
	}, nil
}
