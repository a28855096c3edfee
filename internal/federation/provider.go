// Package federation adapts external OAuth identity providers to a common
// interface: build the consent URL, exchange the authorization code, and
// fetch the verified identity behind the resulting token.
package federation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"

	"github.com/BradenHooton/authgate/internal/models"
	"golang.org/x/oauth2"
)

// Provider names
const (
	Google = "google"
	GitHub = "github"
)

// ErrMissingEmail means the provider did not release a usable email address.
// It wraps models.ErrFederation.
var ErrMissingEmail = fmt.Errorf("%w: email not provided", models.ErrFederation)

// maxProfileBytes caps how much of a user-info response is read
const maxProfileBytes = 1 << 20

// Identity is the subset of a provider profile the service relies on
type Identity struct {
	Provider string
	Subject  string // provider-scoped user id
	Email    string
}

// Provider is an external OAuth identity provider
type Provider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	FetchIdentity(ctx context.Context, token *oauth2.Token) (*Identity, error)
}

// Registry maps provider names to configured providers
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider)}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces a provider under its name
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns the named provider or models.ErrUnsupportedProvider
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrUnsupportedProvider, name)
	}
	return p, nil
}

// Names lists the registered providers in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// getJSON fetches url with the token's authorization and decodes the body into dst
func getJSON(ctx context.Context, client *http.Client, url string, dst interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request %s: %v", models.ErrFederation, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned status %d", models.ErrFederation, url, resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxProfileBytes)).Decode(dst); err != nil {
		return fmt.Errorf("%w: decode %s: %v", models.ErrFederation, url, err)
	}
	return nil
}

// exchange wraps oauth2 code exchange failures as federation errors
func exchange(ctx context.Context, cfg *oauth2.Config, code string) (*oauth2.Token, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: missing authorization code", models.ErrFederation)
	}
	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: code exchange: %v", models.ErrFederation, err)
	}
	return token, nil
}

func missingEmail(provider string) error {
	return fmt.Errorf("%w by %s", ErrMissingEmail, provider)
}
