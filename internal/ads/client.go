package ads

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	defaultBaseURL = "https://googleads.googleapis.com/v18"

	// AccessRoleAdmin grants full administrative access on the invited account.
	AccessRoleAdmin = "ADMIN"

	// clientLinkStatusPending is the initial status of a manager link offer.
	clientLinkStatusPending = "PENDING"
)

// Config carries the process-wide Ads API settings.
type Config struct {
	DeveloperToken string
	BaseURL        string
}

// Customer is an authenticated handle on one manager account. Construction
// is pure: no network call happens until a mutation is issued. The MCC acts
// as its own login customer for the accounts it manages.
type Customer struct {
	customerID      string
	loginCustomerID string
	developerToken  string
	baseURL         string
	httpClient      *http.Client
}

// NewCustomer builds a customer handle from a canonicalized MCC id and a
// live access token.
func NewCustomer(cfg Config, mccID, accessToken string) *Customer {
	id := CanonicalID(mccID)

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	httpClient := oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
	httpClient.Timeout = 60 * time.Second

	return &Customer{
		customerID:      id,
		loginCustomerID: id,
		developerToken:  cfg.DeveloperToken,
		baseURL:         baseURL,
		httpClient:      httpClient,
	}
}

type accessInvitationCreate struct {
	EmailAddress string `json:"emailAddress"`
	AccessRole   string `json:"accessRole"`
}

type clientLinkCreate struct {
	ClientCustomer string `json:"clientCustomer"`
	Status         string `json:"status"`
}

type mutateRequest struct {
	Operation struct {
		Create any `json:"create"`
	} `json:"operation"`
}

type mutateResponse struct {
	Result struct {
		ResourceName string `json:"resourceName"`
	} `json:"result"`
}

// CreateAccessInvitation sends one access-invitation mutation for the given
// email address and role. The returned resource name identifies the pending
// invitation.
func (c *Customer) CreateAccessInvitation(ctx context.Context, email, role string) (string, error) {
	return c.mutate(ctx, "customerUserAccessInvitations", accessInvitationCreate{
		EmailAddress: email,
		AccessRole:   role,
	})
}

// CreateClientLink offers a manager link to a client account, which shows up
// on the client side as a pending invitation to accept.
func (c *Customer) CreateClientLink(ctx context.Context, clientCustomerID string) (string, error) {
	return c.mutate(ctx, "customerClientLinks", clientLinkCreate{
		ClientCustomer: "customers/" + CanonicalID(clientCustomerID),
		Status:         clientLinkStatusPending,
	})
}

func (c *Customer) mutate(ctx context.Context, service string, create any) (string, error) {
	var reqBody mutateRequest
	reqBody.Operation.Create = create

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("%s mutate: marshal request: %w", service, err)
	}

	endpoint := fmt.Sprintf("%s/customers/%s/%s:mutate", c.baseURL, c.customerID, service)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%s mutate: create request: %w", service, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("developer-token", c.developerToken)
	req.Header.Set("login-customer-id", c.loginCustomerID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s mutate: send request: %w", service, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%s mutate: read response: %w", service, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return "", parseAPIError(resp.StatusCode, body)
	}

	var result mutateResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("%s mutate: parse json: %w", service, err)
	}
	return result.Result.ResourceName, nil
}
