package identity

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when the token cannot be verified.
	ErrInvalidToken = errors.New("invalid token")
	// ErrNoIdentity is returned when a token carries no user id.
	ErrNoIdentity = errors.New("no identity in token")
)

// Identity is the authenticated caller: a stable user id plus the display
// fields the identity provider knows about. DisplayName and Email may be
// empty.
type Identity struct {
	UserID      string
	DisplayName string
	Email       string
}

// SenderName picks the name denormalized onto outgoing messages: display
// name, else the email local part, else a placeholder.
func (i Identity) SenderName() string {
	if i.DisplayName != "" {
		return i.DisplayName
	}
	if i.Email != "" {
		if at := strings.Index(i.Email, "@"); at > 0 {
			return i.Email[:at]
		}
		return i.Email
	}
	return "user"
}

// Claims are the token claims the service consumes.
type Claims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Manager verifies bearer tokens into Identities.
type Manager struct {
	secret []byte
}

// NewManager builds a Manager over an HMAC secret.
func NewManager(secret string) *Manager {
	return &Manager{secret: []byte(secret)}
}

// Verify parses and validates tokenString, returning the caller's Identity.
func (m *Manager) Verify(tokenString string) (Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return Identity{}, ErrNoIdentity
	}
	return Identity{
		UserID:      claims.Subject,
		DisplayName: claims.Name,
		Email:       claims.Email,
	}, nil
}

// Issue signs a token for the given identity. Used by tests and local
// tooling; production tokens come from the identity provider.
func (m *Manager) Issue(ident Identity, registered jwt.RegisteredClaims) (string, error) {
	registered.Subject = ident.UserID
	claims := Claims{
		Name:             ident.DisplayName,
		Email:            ident.Email,
		RegisteredClaims: registered,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}
