package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
)

const userInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// Scopes cover Ads management plus enough identity to record who authorized.
var Scopes = []string{
	"https://www.googleapis.com/auth/adwords",
	"openid",
	"email",
	"profile",
}

var (
	// ErrMissingRefreshToken means the provider granted tokens without a
	// refresh token. The user has to authorize again with forced consent.
	ErrMissingRefreshToken = errors.New("no refresh token granted")

	// ErrRefreshDenied means the provider rejected the stored refresh token,
	// typically because access was revoked. The MCC must be relinked.
	ErrRefreshDenied = errors.New("refresh token rejected")
)

// Token is the credential set handed back by the provider. ExpiredTime is
// epoch milliseconds, zero when the provider omitted an expiry.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiredTime  int64
}

// Profile identifies the Google user who authorized access.
type Profile struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Client talks to Google's OAuth endpoints for the linking flow.
type Client struct {
	config      *oauth2.Config
	httpClient  *http.Client
	userInfoURL string
}

func NewClient(clientID, clientSecret, redirectURL string) *Client {
	return &Client{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       Scopes,
			Endpoint:     googleoauth.Endpoint,
		},
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		userInfoURL: userInfoURL,
	}
}

// AuthCodeURL builds the authorization URL for linking one MCC. The MCC id
// rides along verbatim as the state parameter and comes back on the callback.
// Offline access plus forced consent guarantees a refresh token even when the
// user granted access before.
func (c *Client) AuthCodeURL(mcc string) (string, error) {
	if strings.TrimSpace(mcc) == "" {
		return "", fmt.Errorf("auth code url: empty mcc id")
	}

	return c.config.AuthCodeURL(mcc,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	), nil
}

// Exchange swaps an authorization code for tokens. A response without a
// refresh token fails with ErrMissingRefreshToken because a link must never
// be stored without one.
func (c *Client) Exchange(ctx context.Context, code string) (*Token, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("exchange code: empty code")
	}

	tok, err := c.config.Exchange(c.withHTTPClient(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	if strings.TrimSpace(tok.RefreshToken) == "" {
		return nil, fmt.Errorf("exchange code: %w", ErrMissingRefreshToken)
	}

	return fromOAuth2Token(tok), nil
}

// Refresh mints a fresh access token from a stored refresh token. Exactly one
// provider call is made per invocation.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, fmt.Errorf("refresh token: empty refresh token")
	}

	source := c.config.TokenSource(c.withHTTPClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := source.Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && isDenied(retrieveErr) {
			return nil, fmt.Errorf("refresh token: %w", ErrRefreshDenied)
		}
		return nil, fmt.Errorf("refresh token: %w", err)
	}

	refreshed := fromOAuth2Token(tok)
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = refreshToken
	}
	return refreshed, nil
}

// FetchProfile reads the authorizing user's id and email. Callers treat
// failures as non-fatal; linking works without identity fields.
func (c *Client) FetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil, fmt.Errorf("fetch profile: empty access token")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("fetch profile: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var profile Profile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, fmt.Errorf("fetch profile: parse json: %w", err)
	}
	return &profile, nil
}

func (c *Client) withHTTPClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func fromOAuth2Token(tok *oauth2.Token) *Token {
	out := &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if !tok.Expiry.IsZero() {
		out.ExpiredTime = tok.Expiry.UnixMilli()
	}
	return out
}

func isDenied(err *oauth2.RetrieveError) bool {
	if strings.EqualFold(err.ErrorCode, "invalid_grant") {
		return true
	}
	if err.Response == nil {
		return false
	}
	return err.Response.StatusCode == http.StatusBadRequest || err.Response.StatusCode == http.StatusUnauthorized
}
