package ads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func decodeJSONBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

type fakeTokenProvider struct {
	token string
	err   error
	calls int
}

func (f *fakeTokenProvider) EnsureLiveToken(context.Context, string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.token, nil
}

func newTestInviter(tokens tokenProvider, transport roundTripFunc) *Inviter {
	inviter := NewInviter(tokens, Config{DeveloperToken: "dev-token"})
	inviter.newCustomer = func(cfg Config, mccID, accessToken string) *Customer {
		customer := NewCustomer(cfg, mccID, accessToken)
		customer.httpClient = &http.Client{Transport: transport}
		return customer
	}
	return inviter
}

func TestInviteAdminsInvalidArguments(t *testing.T) {
	tokens := &fakeTokenProvider{token: "access-1"}
	inviter := newTestInviter(tokens, func(*http.Request) (*http.Response, error) {
		t.Fatal("no api call expected")
		return nil, nil
	})

	cases := []struct {
		name   string
		mcc    string
		emails []string
	}{
		{"empty mcc", "", []string{"a@example.com"}},
		{"non-numeric mcc", "abc", []string{"a@example.com"}},
		{"empty email list", "4648433509", nil},
		{"malformed email", "4648433509", []string{"a@example.com", "not-an-email"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := inviter.InviteAdmins(context.Background(), tc.mcc, tc.emails)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("InviteAdmins() error = %v, want ErrInvalidArgument", err)
			}
		})
	}

	if tokens.calls != 0 {
		t.Fatalf("token provider calls = %d, want 0 before validation passes", tokens.calls)
	}
}

func TestInviteAdminsCustomerUnavailable(t *testing.T) {
	tokens := &fakeTokenProvider{err: errors.New("mcc not linked")}
	inviter := newTestInviter(tokens, func(*http.Request) (*http.Response, error) {
		t.Fatal("no api call expected")
		return nil, nil
	})

	_, err := inviter.InviteAdmins(context.Background(), "4648433509", []string{"a@example.com"})
	if !errors.Is(err, ErrCustomerUnavailable) {
		t.Fatalf("InviteAdmins() error = %v, want ErrCustomerUnavailable", err)
	}
}

func TestInviteAdminsContinuesPastFailures(t *testing.T) {
	errorBody := `{"error":{"code":400,"message":"Request contains an invalid argument.","status":"INVALID_ARGUMENT","details":[{"@type":"type.googleapis.com/google.ads.googleads.v18.errors.GoogleAdsFailure","errors":[{"errorCode":{"accessInvitationError":"EMAIL_ADDRESS_ALREADY_HAS_ACCESS"},"message":"The email address already has access."}]}]}}`

	var invited []string
	inviter := newTestInviter(&fakeTokenProvider{token: "access-1"}, func(r *http.Request) (*http.Response, error) {
		var body mutateRequest
		if err := decodeJSONBody(r, &body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		invitation := body.Operation.Create.(map[string]any)
		email := invitation["emailAddress"].(string)
		invited = append(invited, email)

		if email == "dup@example.com" {
			return newJSONResponse(http.StatusBadRequest, errorBody), nil
		}
		return newJSONResponse(http.StatusOK, `{"result":{"resourceName":"customers/4648433509/customerUserAccessInvitations/1"}}`), nil
	})

	emails := []string{"one@example.com", "dup@example.com", "three@example.com"}
	outcomes, err := inviter.InviteAdmins(context.Background(), "464-843-3509", emails)
	if err != nil {
		t.Fatalf("InviteAdmins() error: %v", err)
	}

	if len(outcomes) != 3 {
		t.Fatalf("outcomes = %d, want 3", len(outcomes))
	}
	for i, email := range emails {
		if outcomes[i].Email != email {
			t.Fatalf("outcomes[%d].Email = %q, want input order preserved", i, outcomes[i].Email)
		}
	}
	if outcomes[0].Status != StatusSuccess || outcomes[2].Status != StatusSuccess {
		t.Fatalf("outcomes = %+v, want first and third Success", outcomes)
	}
	if outcomes[1].Status != StatusFailed {
		t.Fatalf("outcomes[1].Status = %q, want Failed", outcomes[1].Status)
	}
	if !strings.Contains(outcomes[1].Error, "already has access") || !strings.Contains(outcomes[1].Error, "EMAIL_ADDRESS_ALREADY_HAS_ACCESS") {
		t.Fatalf("outcomes[1].Error = %q, want structured detail", outcomes[1].Error)
	}
	if outcomes[0].Error != "" || outcomes[2].Error != "" {
		t.Fatalf("success outcomes carry error detail: %+v", outcomes)
	}

	if len(invited) != 3 {
		t.Fatalf("api calls = %d, want all three attempted despite the failure", len(invited))
	}
}

func TestInviteClientLink(t *testing.T) {
	inviter := newTestInviter(&fakeTokenProvider{token: "access-1"}, func(r *http.Request) (*http.Response, error) {
		return newJSONResponse(http.StatusOK, `{"result":{"resourceName":"customers/4648433509/customerClientLinks/7"}}`), nil
	})

	resourceName, err := inviter.InviteClientLink(context.Background(), "4648433509", "123-456-7890")
	if err != nil {
		t.Fatalf("InviteClientLink() error: %v", err)
	}
	if resourceName != "customers/4648433509/customerClientLinks/7" {
		t.Fatalf("resourceName = %q", resourceName)
	}

	if _, err := inviter.InviteClientLink(context.Background(), "4648433509", "no-digits"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("InviteClientLink(bad client) error = %v, want ErrInvalidArgument", err)
	}
}

func TestFailureDetailFallsBackToErrorText(t *testing.T) {
	plain := fmt.Errorf("connection reset")
	if got := failureDetail(plain); got != "connection reset" {
		t.Fatalf("failureDetail(plain) = %q", got)
	}

	apiErr := &APIError{StatusCode: 500, Message: "internal"}
	if got := failureDetail(apiErr); got != "internal" {
		t.Fatalf("failureDetail(api) = %q", got)
	}
}
