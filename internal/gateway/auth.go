package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the verified result of authenticating a bearer token: the
// player the token identifies and whether it carries admin privileges.
type Identity struct {
	PlayerID string
	Admin    bool
}

// TokenVerifier turns a bearer token into a verified (player_id, admin?)
// tuple. Authentication is an external collaborator: the runtime never
// decides how a token was minted.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// JWTVerifier is a reference HS256 bearer-token verifier. Production
// deployments are free to swap in any TokenVerifier (OIDC, a session
// store lookup, ...); this one exists so the reference server and
// cmd/adventureclient can run end to end without an external identity
// provider.
type JWTVerifier struct {
	secret []byte
	issuer string
}

// NewJWTVerifier builds a JWTVerifier over an HMAC secret and expected issuer.
func NewJWTVerifier(secret []byte, issuer string) *JWTVerifier {
	return &JWTVerifier{secret: secret, issuer: issuer}
}

func (v *JWTVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return Identity{}, err
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return Identity{}, errors.New("invalid token claims")
	}
	if v.issuer != "" {
		if iss, _ := claims["iss"].(string); iss != v.issuer {
			return Identity{}, fmt.Errorf("unexpected issuer %q", iss)
		}
	}
	playerID, _ := claims["sub"].(string)
	if playerID == "" {
		return Identity{}, errors.New("token carries no subject")
	}
	admin, _ := claims["admin"].(bool)
	return Identity{PlayerID: playerID, Admin: admin}, nil
}
