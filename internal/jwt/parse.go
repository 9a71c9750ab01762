package jwt

import (
	"crypto/ed25519"
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenInvalid covers malformed tokens and bad signatures.
	ErrTokenInvalid = errors.New("invalid_jwt")
	// ErrTokenExpired means the token is past exp (leeway already applied).
	ErrTokenExpired = errors.New("token_expired")
	// ErrTokenNotYetValid means nbf is in the future (leeway already applied).
	ErrTokenNotYetValid = errors.New("token_not_yet_valid")
	// ErrInvalidIssuer means the iss claim does not match.
	ErrInvalidIssuer = errors.New("invalid_issuer")
	// ErrUnknownKID means the kid header names no known key.
	ErrUnknownKID = errors.New("unknown_kid")
)

// ParseEdDSA verifies the signature (EdDSA only), the issuer when
// expectedIss is non-empty, and exp/nbf with the given leeway. Returns the
// claims as map[string]any.
func ParseEdDSA(token string, ks *KeySet, expectedIss string, leeway time.Duration) (map[string]any, error) {
	keyfunc := func(t *jwtv5.Token) (any, error) {
		if kid, _ := t.Header["kid"].(string); kid != "" && kid != ks.KID {
			return nil, ErrUnknownKID
		}
		return ed25519.PublicKey(ks.Pub), nil
	}

	opts := []jwtv5.ParserOption{
		jwtv5.WithValidMethods([]string{"EdDSA"}),
		jwtv5.WithLeeway(leeway),
	}
	if expectedIss != "" {
		opts = append(opts, jwtv5.WithIssuer(expectedIss))
	}

	tok, err := jwtv5.Parse(token, keyfunc, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwtv5.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwtv5.ErrTokenNotValidYet):
			return nil, ErrTokenNotYetValid
		case errors.Is(err, jwtv5.ErrTokenInvalidIssuer):
			return nil, ErrInvalidIssuer
		case errors.Is(err, ErrUnknownKID):
			return nil, ErrUnknownKID
		default:
			return nil, ErrTokenInvalid
		}
	}
	if !tok.Valid {
		return nil, ErrTokenInvalid
	}

	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, ErrTokenInvalid
	}

	out := make(map[string]any, len(claims))
	for k, v := range claims {
		out[k] = v
	}
	return out, nil
}
