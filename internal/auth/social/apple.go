package social

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	appleIssuer  = "https://appleid.apple.com"
	appleKeysURL = "https://appleid.apple.com/auth/keys"

	// Apple rotates signing keys rarely; a cached set this old is
	// refetched before use.
	appleKeysMaxAge = 24 * time.Hour
)

// Apple resolves Sign in with Apple identity tokens. The token is an RS256
// JWT issued by Apple; the signature is verified against Apple's published
// JWKS and the subject claim is the stable user identifier.
type Apple struct {
	clientID string
	keysURL  string
	client   *http.Client
	now      func() time.Time

	mu        sync.Mutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

type AppleOption func(*Apple)

// WithAppleClock overrides the clock used for expiry checks in tests.
func WithAppleClock(now func() time.Time) AppleOption {
	return func(a *Apple) { a.now = now }
}

// WithAppleKeysURL points the JWKS fetch at a different endpoint.
func WithAppleKeysURL(url string) AppleOption {
	return func(a *Apple) { a.keysURL = url }
}

// WithAppleHTTPClient swaps the HTTP client used for the JWKS fetch.
func WithAppleHTTPClient(client *http.Client) AppleOption {
	return func(a *Apple) { a.client = client }
}

func NewApple(clientID string, opts ...AppleOption) *Apple {
	a := &Apple{
		clientID: clientID,
		keysURL:  appleKeysURL,
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Apple) Name() string { return "apple" }

type appleClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func (a *Apple) Exchange(ctx context.Context, identityToken string) (Profile, error) {
	var claims appleClaims

	token, err := jwt.NewParser(
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(appleIssuer),
		jwt.WithAudience(a.clientID),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return a.now() }),
	).ParseWithClaims(identityToken, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("identity token missing kid header")
		}
		return a.signingKey(ctx, kid)
	})
	if err != nil || !token.Valid {
		return Profile{}, fmt.Errorf("%w: verify identity token: %v", ErrProviderExchange, err)
	}
	if claims.Subject == "" {
		return Profile{}, fmt.Errorf("%w: identity token missing subject", ErrProviderExchange)
	}

	// Apple only shares the name during the first authorization and never
	// inside the identity token, so Name stays empty here.
	return Profile{
		ID:    claims.Subject,
		Email: claims.Email,
	}, nil
}

// signingKey returns the cached public key for kid, refetching the JWKS
// when the kid is unseen or the cached set has aged out. An unknown kid
// after a fresh fetch is a verification failure, not a retry loop.
func (a *Apple) signingKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if key, ok := a.keys[kid]; ok && a.now().Sub(a.fetchedAt) < appleKeysMaxAge {
		return key, nil
	}

	keys, err := a.fetchKeys(ctx)
	if err != nil {
		return nil, err
	}
	a.keys = keys
	a.fetchedAt = a.now()

	key, ok := a.keys[kid]
	if !ok {
		return nil, fmt.Errorf("no apple signing key with kid %q", kid)
	}
	return key, nil
}

type appleJWKS struct {
	Keys []struct {
		Kty string `json:"kty"`
		Kid string `json:"kid"`
		Use string `json:"use"`
		N   string `json:"n"`
		E   string `json:"e"`
	} `json:"keys"`
}

func (a *Apple) fetchKeys(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.keysURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build jwks request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch jwks: status %d", resp.StatusCode)
	}

	var doc appleJWKS
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}
		key, err := parseRSAKey(k.N, k.E)
		if err != nil {
			return nil, fmt.Errorf("parse jwks key %q: %w", k.Kid, err)
		}
		keys[k.Kid] = key
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("jwks contains no usable keys")
	}
	return keys, nil
}

func parseRSAKey(n, e string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, fmt.Errorf("modulus: %w", err)
	}
	eb, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, fmt.Errorf("exponent: %w", err)
	}
	if len(nb) == 0 || len(eb) == 0 || len(eb) > 8 {
		return nil, fmt.Errorf("malformed key material")
	}

	exp := 0
	for _, b := range eb {
		exp = exp<<8 | int(b)
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: exp}, nil
}
