package social

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// Google resolves OAuth access tokens against Google's OpenID userinfo
// endpoint.
type Google struct {
	client  *http.Client
	baseURL string
}

type GoogleOption func(*Google)

// WithGoogleHTTPClient overrides the HTTP client used for userinfo calls.
func WithGoogleHTTPClient(c *http.Client) GoogleOption {
	return func(g *Google) { g.client = c }
}

// WithGoogleBaseURL points the provider at an alternate userinfo endpoint.
func WithGoogleBaseURL(url string) GoogleOption {
	return func(g *Google) { g.baseURL = url }
}

func NewGoogle(opts ...GoogleOption) *Google {
	g := &Google{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: googleUserInfoURL,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Google) Name() string { return "google" }

func (g *Google) Exchange(ctx context.Context, accessToken string) (Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL, nil)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %v", ErrProviderExchange, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := g.client.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %v", ErrProviderExchange, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("%w: userinfo returned %d", ErrProviderExchange, resp.StatusCode)
	}

	var body struct {
		Sub     string `json:"sub"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Profile{}, fmt.Errorf("%w: decode userinfo: %v", ErrProviderExchange, err)
	}
	if body.Sub == "" {
		return Profile{}, fmt.Errorf("%w: userinfo missing subject", ErrProviderExchange)
	}

	return Profile{
		ID:     body.Sub,
		Email:  body.Email,
		Name:   body.Name,
		Avatar: body.Picture,
	}, nil
}
