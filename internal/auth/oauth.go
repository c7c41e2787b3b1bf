package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"
)

// googleUserinfoURL is Google's OpenID Connect userinfo endpoint. The
// fields below are a subset of its response — we only unmarshal what we
// store.
const googleUserinfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// GoogleUser is the slice of a Google profile the identity service cares
// about. Subject is Google's stable "sub" claim — unlike the email, it
// never changes for an account, which is why it's the column we key the
// external identity on.
type GoogleUser struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// GoogleProvider wraps golang.org/x/oauth2 for the Google Authorization
// Code flow, and verifies Google-issued ID tokens for clients that
// obtained one directly (mobile / one-tap sign-in).
//
// The code-for-token exchange is server-to-server using the client
// secret; the Google access token never reaches the browser. Our own
// session token is what goes back to the client.
type GoogleProvider struct {
	config   *oauth2.Config
	clientID string
}

// NewGoogleProvider creates a GoogleProvider with the given OAuth app
// credentials. callbackURL must exactly match an authorized redirect URI
// configured in the Google Cloud console.
//
// Scopes: openid + email + profile — enough for the sub claim, the
// address, and the display name. Nothing else is requested.
func NewGoogleProvider(clientID, clientSecret, callbackURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		clientID: clientID,
	}
}

// AuthURL returns the Google consent-screen URL to redirect the user to.
//
// state is a random value the caller stores in a cookie before the
// redirect and checks on callback; a mismatch means the callback was not
// initiated by this server (CSRF).
func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange completes the OAuth flow: trades the authorization code for a
// Google profile.
//
//  1. Exchange the code for an access token (server-to-server)
//  2. Call the userinfo endpoint with it
//  3. Unmarshal the profile
//
// A profile with an empty sub claim is rejected — without it we cannot
// key the identity.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*GoogleUser, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	// oauth2.Config.Client returns an *http.Client that adds the
	// Authorization: Bearer header to every request.
	client := p.config.Client(ctx, oauthToken)

	resp, err := client.Get(googleUserinfoURL)
	if err != nil {
		return nil, fmt.Errorf("auth: calling Google userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: Google userinfo returned status %d", resp.StatusCode)
	}

	var gu GoogleUser
	if err := json.NewDecoder(resp.Body).Decode(&gu); err != nil {
		return nil, fmt.Errorf("auth: decoding Google userinfo response: %w", err)
	}

	if gu.Subject == "" {
		return nil, fmt.Errorf("auth: Google returned a profile without a subject")
	}
	if gu.Email == "" {
		return nil, fmt.Errorf("auth: Google profile has no email")
	}

	return &gu, nil
}

// VerifyIDToken validates a Google-issued ID token (JWT signed by Google,
// audience = our client ID) and extracts the same profile fields the
// userinfo endpoint would return.
//
// Clients that run Google Sign-In themselves (mobile apps, one-tap) end
// up with an ID token rather than an authorization code; this is their
// entry point. idtoken.Validate checks the signature against Google's
// published keys, the expiry, and the audience.
func (p *GoogleProvider) VerifyIDToken(ctx context.Context, idTok string) (*GoogleUser, error) {
	payload, err := idtoken.Validate(ctx, idTok, p.clientID)
	if err != nil {
		return nil, fmt.Errorf("auth: invalid Google ID token: %w", err)
	}

	gu := GoogleUser{Subject: payload.Subject}
	if email, ok := payload.Claims["email"].(string); ok {
		gu.Email = email
	}
	if verified, ok := payload.Claims["email_verified"].(bool); ok {
		gu.EmailVerified = verified
	}
	if name, ok := payload.Claims["name"].(string); ok {
		gu.Name = name
	}

	if gu.Subject == "" {
		return nil, fmt.Errorf("auth: Google ID token has no subject")
	}
	if gu.Email == "" {
		return nil, fmt.Errorf("auth: Google ID token has no email claim")
	}

	return &gu, nil
}
