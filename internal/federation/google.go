package federation

import (
	"context"
	"fmt"

	"github.com/BradenHooton/authgate/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v1/userinfo"

type GoogleProvider struct {
	config      *oauth2.Config
	userInfoURL string
}

// NewGoogleProvider configures Google sign-in with the openid, email and profile scopes
func NewGoogleProvider(clientID, clientSecret, redirectURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: googleUserInfoURL,
	}
}

// WithEndpoints points the provider at alternate OAuth and user-info URLs
func (p *GoogleProvider) WithEndpoints(endpoint oauth2.Endpoint, userInfoURL string) *GoogleProvider {
	cfg := *p.config
	cfg.Endpoint = endpoint
	return &GoogleProvider{config: &cfg, userInfoURL: userInfoURL}
}

func (p *GoogleProvider) Name() string {
	return Google
}

func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return exchange(ctx, p.config, code)
}

type googleProfile struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail *bool  `json:"verified_email"`
}

func (p *GoogleProvider) FetchIdentity(ctx context.Context, token *oauth2.Token) (*Identity, error) {
	if token == nil || token.AccessToken == "" {
		return nil, fmt.Errorf("%w: missing provider token", models.ErrFederation)
	}

	var profile googleProfile
	if err := getJSON(ctx, p.config.Client(ctx, token), p.userInfoURL, &profile); err != nil {
		return nil, err
	}

	if profile.Email == "" {
		return nil, missingEmail(Google)
	}
	if profile.VerifiedEmail != nil && !*profile.VerifiedEmail {
		return nil, fmt.Errorf("%w: google email is not verified", models.ErrFederation)
	}
	if profile.ID == "" {
		return nil, fmt.Errorf("%w: google profile has no id", models.ErrFederation)
	}

	return &Identity{Provider: Google, Subject: profile.ID, Email: profile.Email}, nil
}
