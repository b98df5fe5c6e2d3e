package auth

import (
	"context"
	"os"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleUser is the subset of the Google userinfo response the upsert needs.
type GoogleUser struct {
	Id      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// GoogleOAuthConfig builds the oauth2 config from environment. The redirect
// URL must match one registered in the Google console.
func GoogleOAuthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		RedirectURL:  os.Getenv("GOOGLE_REDIRECT_URL"),
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     google.Endpoint,
	}
}

// ExchangeGoogleCode trades the callback code for an access token and fetches
// the user's profile.
func ExchangeGoogleCode(ctx context.Context, conf *oauth2.Config, code string) (*GoogleUser, error) {
	token, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, errors.Wrap(err, "exchange oauth code")
	}
	return fetchGoogleUser(ctx, token.AccessToken)
}

func fetchGoogleUser(ctx context.Context, accessToken string) (*GoogleUser, error) {
	var user GoogleUser
	resp, err := resty.New().R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetResult(&user).
		Get(googleUserInfoURL)
	if err != nil {
		return nil, errors.Wrap(err, "fetch google userinfo")
	}
	if resp.IsError() {
		return nil, errors.Errorf("google userinfo returned %d", resp.StatusCode())
	}
	if user.Id == "" {
		return nil, errors.New("google userinfo missing subject id")
	}
	return &user, nil
}
