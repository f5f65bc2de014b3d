package identity

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// TokenVerifier validates provider access tokens and, for local development,
// signs tokens with the same shared secret.
type TokenVerifier struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenVerifier builds a verifier for HS256 tokens signed with secret.
func NewTokenVerifier(secret string, ttl time.Duration) *TokenVerifier {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenVerifier{secret: []byte(secret), ttl: ttl}
}

// Claims describes the provider's JWT payload.
type Claims struct {
	Email        string         `json:"email,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	Role         string         `json:"role,omitempty"`
	SessionID    string         `json:"session_id,omitempty"`
	jwt.RegisteredClaims
}

// Issue signs an access token for user.
func (v *TokenVerifier) Issue(user User) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(v.ttl)
	claims := &Claims{
		Email:        user.Email,
		UserMetadata: user.Metadata,
		Role:         "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(v.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// Verify validates the signature and expiry of tokenStr.
func (v *TokenVerifier) Verify(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// SessionFromToken turns a verified access token into a session snapshot.
func (v *TokenVerifier) SessionFromToken(tokenStr string) (*Session, error) {
	claims, err := v.Verify(tokenStr)
	if err != nil {
		return nil, err
	}
	session := &Session{
		AccessToken: tokenStr,
		User: User{
			ID:       claims.Subject,
			Email:    claims.Email,
			Metadata: cloneMetadata(claims.UserMetadata),
		},
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}
