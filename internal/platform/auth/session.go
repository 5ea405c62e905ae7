package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidSession is returned for tokens that fail signature, expiry or
// claim checks.
var ErrInvalidSession = errors.New("invalid session")

// Claims is the session payload. Subject holds the account id and ID the
// session id used for revocation.
type Claims struct {
	jwt.RegisteredClaims
	Role     string `json:"role"`
	Name     string `json:"name"`
	ClinicID string `json:"clinic_id,omitempty"`
}

// Session is what a successful login hands back to the caller.
type Session struct {
	ID        string    `json:"-"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	AccountID string    `json:"account_id"`
	Role      string    `json:"role"`
	Name      string    `json:"name"`
}

// Issuer signs and verifies HS256 session tokens.
type Issuer struct {
	key    []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func NewIssuer(secret []byte, ttl time.Duration) *Issuer {
	return &Issuer{key: secret, ttl: ttl, issuer: "clinic-server", now: time.Now}
}

// Issue signs a session for the given account.
func (i *Issuer) Issue(accountID, role, name, clinicID string) (*Session, error) {
	if !ValidRole(role) {
		return nil, fmt.Errorf("unknown role %q", role)
	}
	now := i.now()
	exp := now.Add(i.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   accountID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Role:     role,
		Name:     name,
		ClinicID: clinicID,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return nil, fmt.Errorf("sign session: %w", err)
	}
	return &Session{ID: claims.ID, Token: token, ExpiresAt: exp, AccountID: accountID, Role: role, Name: name}, nil
}

// Parse verifies token and returns its claims.
func (i *Issuer) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return i.key, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidSession
	}
	if claims.Subject == "" || !ValidRole(claims.Role) {
		return nil, ErrInvalidSession
	}
	return claims, nil
}
