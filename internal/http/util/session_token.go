package util

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidSessionToken = errors.New("invalid or expired session token")
	ErrMissingSecret       = errors.New("shopify api secret is not configured")
)

const clockSkew = 5 * time.Second

var shopDomainPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]*\.myshopify\.com$`)

// SessionClaims are the claims Shopify puts into embedded app session tokens.
type SessionClaims struct {
	Dest string `json:"dest"`
	SID  string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// SessionTokenVerifier validates Shopify session tokens (HS256 JWTs signed with the app secret).
type SessionTokenVerifier struct {
	apiKey string
	secret []byte
}

// NewSessionTokenVerifier returns a verifier for tokens issued to the app with apiKey.
func NewSessionTokenVerifier(apiKey string, secret []byte) *SessionTokenVerifier {
	return &SessionTokenVerifier{
		apiKey: apiKey,
		secret: secret,
	}
}

// Verify checks signature, audience and lifetime, and returns the shop domain the token is for.
func (v *SessionTokenVerifier) Verify(token string) (string, *SessionClaims, error) {
	if len(v.secret) == 0 {
		return "", nil, ErrMissingSecret
	}

	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return v.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(v.apiKey),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidSessionToken, err)
	}

	shop, err := shopFromDest(claims.Dest)
	if err != nil {
		return "", nil, err
	}

	if claims.Issuer != "" {
		iss, err := url.Parse(claims.Issuer)
		if err != nil || iss.Host != shop {
			return "", nil, fmt.Errorf("%w: issuer does not match destination", ErrInvalidSessionToken)
		}
	}

	return shop, claims, nil
}

func shopFromDest(dest string) (string, error) {
	u, err := url.Parse(dest)
	if err != nil || u.Scheme != "https" {
		return "", fmt.Errorf("%w: bad dest claim", ErrInvalidSessionToken)
	}
	shop := strings.ToLower(u.Host)
	if !shopDomainPattern.MatchString(shop) {
		return "", fmt.Errorf("%w: %q is not a shop domain", ErrInvalidSessionToken, shop)
	}
	return shop, nil
}
