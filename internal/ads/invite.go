package ads

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

var (
	// ErrInvalidArgument flags a malformed request before any external call.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrCustomerUnavailable means no authenticated customer handle could be
	// built: the MCC is not linked, its refresh was denied, or the provider
	// was unreachable.
	ErrCustomerUnavailable = errors.New("customer unavailable")
)

// InvitationStatus tags one invitee's outcome.
type InvitationStatus string

const (
	StatusSuccess InvitationStatus = "Success"
	StatusFailed  InvitationStatus = "Failed"
)

// InvitationOutcome is the result of one (mcc, email) invitation attempt.
// Error is set only when Status is Failed.
type InvitationOutcome struct {
	Email  string           `json:"email"`
	Status InvitationStatus `json:"status"`
	Error  string           `json:"error,omitempty"`
}

type tokenProvider interface {
	EnsureLiveToken(ctx context.Context, mcc string) (string, error)
}

// Inviter drives invitation mutations against managed accounts, obtaining a
// live access token per request.
type Inviter struct {
	tokens tokenProvider
	config Config

	newCustomer func(cfg Config, mccID, accessToken string) *Customer
}

func NewInviter(tokens tokenProvider, cfg Config) *Inviter {
	return &Inviter{
		tokens:      tokens,
		config:      cfg,
		newCustomer: NewCustomer,
	}
}

// InviteAdmins sends one admin access invitation per email, sequentially and
// in input order. One email's failure never aborts the rest; the returned
// list always has one entry per input email. The whole call fails only when
// the request is malformed or no customer handle could be built.
func (i *Inviter) InviteAdmins(ctx context.Context, mccID string, emails []string) ([]InvitationOutcome, error) {
	mcc := CanonicalID(mccID)
	if mcc == "" {
		return nil, fmt.Errorf("invite admins: %w: missing mcc id", ErrInvalidArgument)
	}
	if len(emails) == 0 {
		return nil, fmt.Errorf("invite admins: %w: empty email list", ErrInvalidArgument)
	}
	for _, email := range emails {
		if !plausibleEmail(email) {
			return nil, fmt.Errorf("invite admins: %w: malformed email %q", ErrInvalidArgument, email)
		}
	}

	customer, err := i.customerFor(ctx, mcc)
	if err != nil {
		return nil, fmt.Errorf("invite admins: %w: %v", ErrCustomerUnavailable, err)
	}

	outcomes := make([]InvitationOutcome, 0, len(emails))
	for _, email := range emails {
		if _, err := customer.CreateAccessInvitation(ctx, email, AccessRoleAdmin); err != nil {
			log.Warn().Str("mcc", mcc).Str("email", email).Err(err).Msg("access invitation failed")
			outcomes = append(outcomes, InvitationOutcome{
				Email:  email,
				Status: StatusFailed,
				Error:  failureDetail(err),
			})
			continue
		}
		outcomes = append(outcomes, InvitationOutcome{Email: email, Status: StatusSuccess})
	}

	return outcomes, nil
}

// InviteClientLink offers a pending manager link from the given MCC to a
// client account.
func (i *Inviter) InviteClientLink(ctx context.Context, mccID, clientCustomerID string) (string, error) {
	mcc := CanonicalID(mccID)
	client := CanonicalID(clientCustomerID)
	if mcc == "" {
		return "", fmt.Errorf("invite client link: %w: missing mcc id", ErrInvalidArgument)
	}
	if client == "" {
		return "", fmt.Errorf("invite client link: %w: missing client customer id", ErrInvalidArgument)
	}

	customer, err := i.customerFor(ctx, mcc)
	if err != nil {
		return "", fmt.Errorf("invite client link: %w: %v", ErrCustomerUnavailable, err)
	}

	resourceName, err := customer.CreateClientLink(ctx, client)
	if err != nil {
		return "", fmt.Errorf("invite client link: %w", err)
	}
	return resourceName, nil
}

func (i *Inviter) customerFor(ctx context.Context, mcc string) (*Customer, error) {
	token, err := i.tokens.EnsureLiveToken(ctx, mcc)
	if err != nil {
		return nil, err
	}
	return i.newCustomer(i.config, mcc, token), nil
}

// failureDetail prefers the API's structured failure detail over the raw
// error text.
func failureDetail(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if detail := apiErr.Detail(); detail != "" {
			return detail
		}
	}
	return err.Error()
}

func plausibleEmail(email string) bool {
	email = strings.TrimSpace(email)
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t")
}
