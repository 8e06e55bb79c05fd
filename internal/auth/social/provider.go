// Package social resolves third-party access tokens into identity profiles.
package social

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrUnknownProvider  = errors.New("unknown_provider")
	ErrProviderExchange = errors.New("provider_exchange_failed")
)

// Profile is the normalized identity a provider returns for a valid token.
// Email may be empty when the provider withholds it.
type Profile struct {
	ID     string
	Email  string
	Name   string
	Avatar string
}

// Provider validates a provider-issued access token and returns the
// profile it belongs to. Implementations wrap upstream failures in
// ErrProviderExchange.
type Provider interface {
	Name() string
	Exchange(ctx context.Context, accessToken string) (Profile, error)
}

// Registry dispatches exchanges by provider name.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

func (r *Registry) Exchange(ctx context.Context, provider, accessToken string) (Profile, error) {
	p, ok := r.providers[provider]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	return p.Exchange(ctx, accessToken)
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}
