package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Subject markers keep anonymous participation tokens distinguishable from
// authenticated user tokens signed with the same key.
const (
	SubjectAccess        = "access"
	SubjectRefresh       = "refresh"
	SubjectParticipation = "participation"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrWrongSubject = errors.New("token subject mismatch")
)

// UserClaims are the claims of an authenticated user's access/refresh token
type UserClaims struct {
	UserID int    `json:"user_id"`
	Email  string `json:"email"`
	Roles  string `json:"roles"`
	jwt.RegisteredClaims
}

// SessionClaims bind an anonymous participation token to exactly one poll.
// The signature makes the bound poll verifiable without a store lookup; the
// token string itself is then used as the session's storage key.
type SessionClaims struct {
	PollUUID string `json:"poll_uuid"`
	jwt.RegisteredClaims
}

// Codec signs and verifies all tokens with one symmetric key
type Codec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewCodec creates a token codec
func NewCodec(secret string, accessTTL, refreshTTL time.Duration) *Codec {
	return &Codec{secret: []byte(secret), accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// GenerateAccessToken creates a short-lived user access token
func (c *Codec) GenerateAccessToken(userID int, email, roles string) (string, error) {
	return c.generateUserToken(userID, email, roles, SubjectAccess, c.accessTTL)
}

// GenerateRefreshToken creates a long-lived user refresh token
func (c *Codec) GenerateRefreshToken(userID int, email, roles string) (string, error) {
	return c.generateUserToken(userID, email, roles, SubjectRefresh, c.refreshTTL)
}

func (c *Codec) generateUserToken(userID int, email, roles, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := UserClaims{
		UserID: userID,
		Email:  email,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(c.secret)
}

// ValidateUserToken parses a user token and checks its subject marker
func (c *Codec) ValidateUserToken(tokenString, subject string) (*UserClaims, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, c.keyFunc)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := tok.Claims.(*UserClaims)
	if !ok || !tok.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject != subject {
		return nil, ErrWrongSubject
	}
	return claims, nil
}

// GenerateSessionToken creates an anonymous participation token bound to a
// poll. It carries no exp claim: session freshness is the store's concern,
// not the signature's.
func (c *Codec) GenerateSessionToken(pollUUID string) (token string, sessionID string, err error) {
	sessionID = uuid.New().String()
	claims := SessionClaims{
		PollUUID: pollUUID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  SubjectParticipation,
			IssuedAt: jwt.NewNumericDate(time.Now()),
			ID:       sessionID,
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token, err = tok.SignedString(c.secret)
	return token, sessionID, err
}

// ValidateSessionToken parses a participation token and returns its claims
func (c *Codec) ValidateSessionToken(tokenString string) (*SessionClaims, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, c.keyFunc)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := tok.Claims.(*SessionClaims)
	if !ok || !tok.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject != SubjectParticipation {
		return nil, ErrWrongSubject
	}
	return claims, nil
}

func (c *Codec) keyFunc(t *jwt.Token) (interface{}, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, ErrInvalidToken
	}
	return c.secret, nil
}
