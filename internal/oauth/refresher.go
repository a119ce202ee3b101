package oauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mcclink/mcclink/internal/store"
)

// staleMargin keeps a safety window so a token cannot expire mid-call.
const staleMargin = 5 * time.Minute

// ErrNotLinked means no credential record exists for the requested MCC.
var ErrNotLinked = errors.New("mcc not linked")

// CredentialStore is the slice of the store the refresher needs.
type CredentialStore interface {
	FindByMCC(ctx context.Context, mcc string) (*store.Account, error)
	UpdateTokens(ctx context.Context, id primitive.ObjectID, accessToken string, expiredTime int64) error
}

type refreshClient interface {
	Refresh(ctx context.Context, refreshToken string) (*Token, error)
}

// Refresher hands out currently-valid access tokens, refreshing and
// persisting on demand. Each call makes at most one provider call and at
// most one store write.
type Refresher struct {
	store  CredentialStore
	client refreshClient
	margin time.Duration
	now    func() time.Time
}

func NewRefresher(credentials CredentialStore, client *Client) *Refresher {
	return &Refresher{
		store:  credentials,
		client: client,
		margin: staleMargin,
		now:    time.Now,
	}
}

// EnsureLiveToken returns an access token that is valid for at least the
// stale margin. A fresh stored token is returned as-is with no network call;
// a stale one is refreshed and both token and expiry are persisted together.
func (r *Refresher) EnsureLiveToken(ctx context.Context, mcc string) (string, error) {
	account, err := r.store.FindByMCC(ctx, mcc)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", fmt.Errorf("ensure live token: mcc %s: %w", mcc, ErrNotLinked)
		}
		return "", fmt.Errorf("ensure live token: %w", err)
	}
	if strings.TrimSpace(account.RefreshToken) == "" {
		return "", fmt.Errorf("ensure live token: mcc %s: %w", mcc, ErrNotLinked)
	}

	if !r.isStale(account) {
		return account.AccessToken, nil
	}

	log.Debug().Str("mcc", mcc).Msg("access token stale, refreshing")

	token, err := r.client.Refresh(ctx, account.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("ensure live token: %w", err)
	}

	if err := r.store.UpdateTokens(ctx, account.ID, token.AccessToken, token.ExpiredTime); err != nil {
		return "", fmt.Errorf("ensure live token: persist refreshed token: %w", err)
	}

	log.Info().Str("mcc", mcc).Msg("access token refreshed")
	return token.AccessToken, nil
}

func (r *Refresher) isStale(account *store.Account) bool {
	if strings.TrimSpace(account.AccessToken) == "" {
		return true
	}
	if account.ExpiredTime == 0 {
		return true
	}
	return account.ExpiredTime < r.now().Add(r.margin).UnixMilli()
}
