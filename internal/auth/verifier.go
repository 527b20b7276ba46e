package auth

import (
	"bytes"
	"encoding/base64"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"wardline/pkg/types"
)

// KeyStrategy derives a candidate signing key from the configured secret.
// Strategies are tried in order and the first one whose key validates the
// token wins; the ordering is part of the compatibility contract with tokens
// signed under any representation of the secret.
type KeyStrategy struct {
	Name   string
	Derive func(secret string) ([]byte, bool)
}

// DefaultStrategies returns the three supported secret representations:
// the secret as given, the secret base64-decoded to raw bytes, and the
// base64-decoded bytes re-encoded as a UTF-8 string.
func DefaultStrategies() []KeyStrategy {
	return []KeyStrategy{
		{
			Name: "raw",
			Derive: func(secret string) ([]byte, bool) {
				return []byte(secret), true
			},
		},
		{
			Name: "base64-bytes",
			Derive: func(secret string) ([]byte, bool) {
				decoded, err := base64.StdEncoding.DecodeString(secret)
				if err != nil {
					return nil, false
				}
				return decoded, true
			},
		},
		{
			Name: "base64-utf8",
			Derive: func(secret string) ([]byte, bool) {
				decoded, err := base64.StdEncoding.DecodeString(secret)
				if err != nil {
					return nil, false
				}
				// Each decoded byte becomes one rune, matching a text
				// decode of the base64 payload rather than a byte decode.
				var buf bytes.Buffer
				for _, c := range decoded {
					buf.WriteRune(rune(c))
				}
				return buf.Bytes(), true
			},
		},
	}
}

// Verifier validates bearer tokens against a configured secret, trying each
// key strategy in order.
type Verifier struct {
	secret     string
	strategies []KeyStrategy
	parser     *jwt.Parser
}

// NewVerifier creates a verifier. Passing no strategies selects the default
// ordered list.
func NewVerifier(secret string, strategies ...KeyStrategy) *Verifier {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Verifier{
		secret:     secret,
		strategies: strategies,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
			jwt.WithLeeway(60*time.Second),
		),
	}
}

// Verify validates the token and maps its claims to an Identity. Returns
// ErrAuthenticationFailed only when every strategy fails.
func (v *Verifier) Verify(token string) (*types.Identity, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}

	for _, strategy := range v.strategies {
		key, ok := strategy.Derive(v.secret)
		if !ok {
			continue
		}

		parsed, err := v.parser.Parse(token, func(t *jwt.Token) (any, error) {
			return key, nil
		})
		if err != nil || !parsed.Valid {
			continue
		}

		claims, ok := parsed.Claims.(jwt.MapClaims)
		if !ok {
			continue
		}

		identity, err := identityFromClaims(claims)
		if err != nil {
			return nil, err
		}

		log.Printf("Token verified: user=%s strategy=%s", identity.ID, strategy.Name)
		return identity, nil
	}

	return nil, ErrAuthenticationFailed
}

// identityFromClaims maps token claims to an Identity. The user ID is the
// only required claim.
func identityFromClaims(claims jwt.MapClaims) (*types.Identity, error) {
	id := claimString(claims, "sub", "id", "userId")
	if id == "" {
		return nil, ErrMissingSubject
	}

	return &types.Identity{
		ID:          id,
		DisplayName: claimString(claims, "name", "displayName"),
		AvatarRef:   claimString(claims, "avatar", "avatarRef"),
		Role:        claimString(claims, "role"),
		OrgID:       claimString(claims, "orgId", "organizationId"),
	}, nil
}

func claimString(claims jwt.MapClaims, keys ...string) string {
	for _, key := range keys {
		if value, ok := claims[key].(string); ok && value != "" {
			return value
		}
	}
	return ""
}
