package oauth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mcclink/mcclink/internal/store"
)

type fakeCredentialStore struct {
	account *store.Account
	findErr error

	updates     int
	updatedID   primitive.ObjectID
	updatedTok  string
	updatedExp  int64
	updateErr   error
	updateCalls []string
}

func (f *fakeCredentialStore) FindByMCC(_ context.Context, mcc string) (*store.Account, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.account, nil
}

func (f *fakeCredentialStore) UpdateTokens(_ context.Context, id primitive.ObjectID, accessToken string, expiredTime int64) error {
	f.updates++
	f.updatedID = id
	f.updatedTok = accessToken
	f.updatedExp = expiredTime
	f.updateCalls = append(f.updateCalls, accessToken)
	return f.updateErr
}

type fakeRefreshClient struct {
	calls int
	token *Token
	err   error
}

func (f *fakeRefreshClient) Refresh(context.Context, string) (*Token, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.token, nil
}

func newTestRefresher(credentials CredentialStore, client refreshClient) *Refresher {
	return &Refresher{
		store:  credentials,
		client: client,
		margin: staleMargin,
		now:    time.Now,
	}
}

func TestEnsureLiveTokenFresh(t *testing.T) {
	credentials := &fakeCredentialStore{account: &store.Account{
		ID:           primitive.NewObjectID(),
		MCC:          "4648433509",
		RefreshToken: "refresh-1",
		AccessToken:  "live-token",
		ExpiredTime:  time.Now().Add(time.Hour).UnixMilli(),
	}}
	client := &fakeRefreshClient{}

	got, err := newTestRefresher(credentials, client).EnsureLiveToken(context.Background(), "4648433509")
	if err != nil {
		t.Fatalf("EnsureLiveToken() error: %v", err)
	}
	if got != "live-token" {
		t.Fatalf("token = %q, want stored token unchanged", got)
	}
	if client.calls != 0 {
		t.Fatalf("provider calls = %d, want 0", client.calls)
	}
	if credentials.updates != 0 {
		t.Fatalf("store writes = %d, want 0", credentials.updates)
	}
}

func TestEnsureLiveTokenStaleRefreshes(t *testing.T) {
	id := primitive.NewObjectID()
	newExpiry := time.Now().Add(time.Hour).UnixMilli()

	cases := []struct {
		name    string
		account store.Account
	}{
		{"expiring within margin", store.Account{AccessToken: "old", ExpiredTime: time.Now().Add(time.Minute).UnixMilli()}},
		{"already expired", store.Account{AccessToken: "old", ExpiredTime: time.Now().Add(-time.Hour).UnixMilli()}},
		{"no access token", store.Account{ExpiredTime: time.Now().Add(time.Hour).UnixMilli()}},
		{"no expiry", store.Account{AccessToken: "old"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			account := tc.account
			account.ID = id
			account.MCC = "4648433509"
			account.RefreshToken = "refresh-1"

			credentials := &fakeCredentialStore{account: &account}
			client := &fakeRefreshClient{token: &Token{AccessToken: "fresh", ExpiredTime: newExpiry}}

			got, err := newTestRefresher(credentials, client).EnsureLiveToken(context.Background(), "4648433509")
			if err != nil {
				t.Fatalf("EnsureLiveToken() error: %v", err)
			}
			if got != "fresh" {
				t.Fatalf("token = %q, want refreshed token", got)
			}
			if client.calls != 1 {
				t.Fatalf("provider calls = %d, want exactly 1", client.calls)
			}
			if credentials.updates != 1 {
				t.Fatalf("store writes = %d, want exactly 1", credentials.updates)
			}
			if credentials.updatedID != id {
				t.Fatalf("update targeted %s, want record id", credentials.updatedID.Hex())
			}
			if credentials.updatedTok != "fresh" || credentials.updatedExp != newExpiry {
				t.Fatalf("persisted (%q, %d), want token and expiry written together", credentials.updatedTok, credentials.updatedExp)
			}
		})
	}
}

func TestEnsureLiveTokenNotLinked(t *testing.T) {
	credentials := &fakeCredentialStore{findErr: fmt.Errorf("find account: %w", store.ErrNotFound)}
	client := &fakeRefreshClient{}

	_, err := newTestRefresher(credentials, client).EnsureLiveToken(context.Background(), "999")
	if !errors.Is(err, ErrNotLinked) {
		t.Fatalf("EnsureLiveToken() error = %v, want ErrNotLinked", err)
	}
	if client.calls != 0 {
		t.Fatalf("provider calls = %d, want 0", client.calls)
	}
}

func TestEnsureLiveTokenRefreshDenied(t *testing.T) {
	credentials := &fakeCredentialStore{account: &store.Account{
		ID:           primitive.NewObjectID(),
		MCC:          "4648433509",
		RefreshToken: "revoked",
	}}
	client := &fakeRefreshClient{err: fmt.Errorf("refresh token: %w", ErrRefreshDenied)}

	_, err := newTestRefresher(credentials, client).EnsureLiveToken(context.Background(), "4648433509")
	if !errors.Is(err, ErrRefreshDenied) {
		t.Fatalf("EnsureLiveToken() error = %v, want ErrRefreshDenied", err)
	}
	if credentials.updates != 0 {
		t.Fatalf("store writes = %d, want 0 on denied refresh", credentials.updates)
	}
}

func TestEnsureLiveTokenPersistFailure(t *testing.T) {
	credentials := &fakeCredentialStore{
		account: &store.Account{
			ID:           primitive.NewObjectID(),
			MCC:          "4648433509",
			RefreshToken: "refresh-1",
		},
		updateErr: errors.New("write concern"),
	}
	client := &fakeRefreshClient{token: &Token{AccessToken: "fresh", ExpiredTime: 1}}

	if _, err := newTestRefresher(credentials, client).EnsureLiveToken(context.Background(), "4648433509"); err == nil {
		t.Fatal("EnsureLiveToken() error = nil, want persist failure surfaced")
	}
}
