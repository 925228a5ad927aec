// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Signer issues and verifies ed25519-signed session tokens carrying the
// participant id as the subject claim.
type Signer struct {
	private ed25519.PrivateKey
	public  ed25519.PublicKey

	// ttl of zero means tokens never expire.
	ttl time.Duration
}

// NewSigner generates a fresh key pair. Tokens signed by one process instance
// are not valid against another.
func NewSigner(expire string) (*Signer, error) {
	public, private, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key pair: %w", err)
	}
	ttl, err := parseExpire(expire)
	if err != nil {
		return nil, err
	}
	return &Signer{private: private, public: public, ttl: ttl}, nil
}

// NewSignerFromFiles loads an ed25519 key pair from disk so tokens survive
// restarts and can be verified by multiple instances.
func NewSignerFromFiles(privatePath, publicPath, expire string) (*Signer, error) {
	privateData, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	publicData, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	ttl, err := parseExpire(expire)
	if err != nil {
		return nil, err
	}
	return &Signer{
		private: ed25519.PrivateKey(privateData),
		public:  ed25519.PublicKey(publicData),
		ttl:     ttl,
	}, nil
}

func parseExpire(expire string) (time.Duration, error) {
	if expire == "" || expire == "0" || expire == "never" {
		return 0, nil
	}
	d, err := time.ParseDuration(expire)
	if err != nil {
		return 0, fmt.Errorf("parse token expire time: %w", err)
	}
	return d, nil
}

// Issue signs a token for a participant.
func (s *Signer) Issue(userID uuid.UUID) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID.String(),
	}
	if s.ttl > 0 {
		claims["exp"] = time.Now().Add(s.ttl).Unix()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(s.private)
}

// Verify checks a token's signature and expiry and returns the participant id.
func (s *Signer) Verify(tokenString string) (uuid.UUID, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.public, nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return uuid.Nil, fmt.Errorf("invalid token")
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, fmt.Errorf("invalid jwt claims")
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("missing sub in jwt")
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, fmt.Errorf("malformed sub in jwt: %w", err)
	}
	return userID, nil
}
