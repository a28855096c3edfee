package federation

import (
	"context"
	"fmt"
	"strconv"

	"github.com/BradenHooton/authgate/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const githubAPIBaseURL = "https://api.github.com"

type GitHubProvider struct {
	config     *oauth2.Config
	apiBaseURL string
}

// NewGitHubProvider configures GitHub sign-in with the user:email scope
func NewGitHubProvider(clientID, clientSecret, redirectURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     github.Endpoint,
			RedirectURL:  redirectURL,
			Scopes:       []string{"user:email"},
		},
		apiBaseURL: githubAPIBaseURL,
	}
}

// WithEndpoints points the provider at alternate OAuth and API URLs
func (p *GitHubProvider) WithEndpoints(endpoint oauth2.Endpoint, apiBaseURL string) *GitHubProvider {
	cfg := *p.config
	cfg.Endpoint = endpoint
	return &GitHubProvider{config: &cfg, apiBaseURL: apiBaseURL}
}

func (p *GitHubProvider) Name() string {
	return GitHub
}

func (p *GitHubProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state)
}

func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return exchange(ctx, p.config, code)
}

type githubUser struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// FetchIdentity reads /user and, when the public email is hidden, falls back
// to the primary verified address from /user/emails.
func (p *GitHubProvider) FetchIdentity(ctx context.Context, token *oauth2.Token) (*Identity, error) {
	if token == nil || token.AccessToken == "" {
		return nil, fmt.Errorf("%w: missing provider token", models.ErrFederation)
	}

	client := p.config.Client(ctx, token)

	var user githubUser
	if err := getJSON(ctx, client, p.apiBaseURL+"/user", &user); err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, fmt.Errorf("%w: github profile has no id", models.ErrFederation)
	}

	email := user.Email
	if email == "" {
		var emails []githubEmail
		if err := getJSON(ctx, client, p.apiBaseURL+"/user/emails", &emails); err != nil {
			return nil, err
		}
		for _, e := range emails {
			if e.Primary && e.Verified {
				email = e.Email
				break
			}
		}
	}

	if email == "" {
		return nil, missingEmail(GitHub)
	}

	return &Identity{Provider: GitHub, Subject: strconv.FormatInt(user.ID, 10), Email: email}, nil
}
