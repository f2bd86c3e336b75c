package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Staff roles recognised by the admin API.
const (
	RoleAdmin   = "admin"
	RoleAuditor = "auditor"
)

// StaffClaims is the payload of a staff access token.
type StaffClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTVerifier issues and verifies HS256 staff tokens.
type JWTVerifier struct {
	secret []byte
	issuer string
}

func NewJWTVerifier(secret, issuer string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), issuer: issuer}
}

// Verify parses the token and checks signature, expiry and issuer.
func (v *JWTVerifier) Verify(tokenString string) (*StaffClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &StaffClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid staff token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid staff token")
	}
	if claims.Role == "" {
		return nil, fmt.Errorf("staff token carries no role")
	}
	return claims, nil
}

// Issue signs a token for subject with the given role.
func (v *JWTVerifier) Issue(subject, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := StaffClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
