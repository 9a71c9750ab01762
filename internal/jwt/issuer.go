package jwt

import (
	"crypto/ed25519"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultAccessTTL is the default lifetime of an access token (900s).
	DefaultAccessTTL = 15 * time.Minute
	// DefaultLeeway absorbs clock skew between issuer and verifiers.
	DefaultLeeway = 30 * time.Second
)

// Issuer signs access tokens with the active key. Construct it once in
// wiring and pass it by reference everywhere; there is no hidden global.
type Issuer struct {
	Iss       string        // "iss" claim
	Keys      *KeySet       // active signing key
	AccessTTL time.Duration // lifetime of issued access tokens
	Leeway    time.Duration // clock-skew tolerance for verification
}

// NewIssuer builds an Issuer with the default TTL and leeway.
func NewIssuer(iss string, ks *KeySet) *Issuer {
	return &Issuer{
		Iss:       iss,
		Keys:      ks,
		AccessTTL: DefaultAccessTTL,
		Leeway:    DefaultLeeway,
	}
}

// ActiveKID returns the KID of the signing key.
func (i *Issuer) ActiveKID() string {
	return i.Keys.KID
}

// Keyfunc returns a jwt.Keyfunc that resolves the public key by the token's
// 'kid' header, falling back to the active key.
func (i *Issuer) Keyfunc() jwtv5.Keyfunc {
	return func(t *jwtv5.Token) (any, error) {
		if kid, _ := t.Header["kid"].(string); kid != "" && kid != i.Keys.KID {
			return nil, ErrUnknownKID
		}
		return ed25519.PublicKey(i.Keys.Pub), nil
	}
}

// IssueAccess signs an access token for a subject with the standard claims
// (iss, sub, iat, nbf, exp) plus the provided extra claims. Returns the
// compact JWT and its expiry instant.
func (i *Issuer) IssueAccess(sub string, extra map[string]any) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(i.AccessTTL)

	claims := jwtv5.MapClaims{
		"iss": i.Iss,
		"sub": sub,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": exp.Unix(),
	}
	for k, v := range extra {
		claims[k] = v
	}

	signed, _, err := i.SignRaw(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// SignRaw signs arbitrary MapClaims, sets the kid/typ headers and returns
// the signed JWT together with the KID used.
func (i *Issuer) SignRaw(claims jwtv5.MapClaims) (string, string, error) {
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodEdDSA, claims)
	tk.Header["kid"] = i.Keys.KID
	tk.Header["typ"] = "JWT"
	signed, err := tk.SignedString(i.Keys.Priv)
	if err != nil {
		return "", "", err
	}
	return signed, i.Keys.KID, nil
}

// SelfCheck signs and verifies a throwaway token. Wiring calls this at
// startup: a process that cannot sign cannot authenticate anyone, so the
// caller should treat an error as fatal.
func (i *Issuer) SelfCheck() error {
	signed, _, err := i.SignRaw(jwtv5.MapClaims{
		"iss": i.Iss,
		"sub": "selfcheck",
		"exp": time.Now().UTC().Add(time.Minute).Unix(),
	})
	if err != nil {
		return err
	}
	_, err = ParseEdDSA(signed, i.Keys, i.Iss, i.Leeway)
	return err
}

// JWKSJSON exposes the verification keys as a JWKS document.
func (i *Issuer) JWKSJSON() []byte {
	return i.Keys.JWKSJSON()
}
