package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mcclink/mcclink/internal/ads"
	"github.com/mcclink/mcclink/internal/config"
	"github.com/mcclink/mcclink/internal/oauth"
	"github.com/mcclink/mcclink/internal/store"
)

// CredentialStore is the slice of the account store the handlers consume.
type CredentialStore interface {
	List(ctx context.Context, query store.ListQuery) (*store.ListResult, error)
	Delete(ctx context.Context, idOrMCC string) (*store.Account, error)
	UpsertByMCC(ctx context.Context, mcc string, fields store.LinkFields) (*store.Account, error)
}

// LinkClient drives the OAuth linking flow.
type LinkClient interface {
	AuthCodeURL(mcc string) (string, error)
	Exchange(ctx context.Context, code string) (*oauth.Token, error)
	FetchProfile(ctx context.Context, accessToken string) (*oauth.Profile, error)
}

// InvitationClient issues Ads API invitations.
type InvitationClient interface {
	InviteAdmins(ctx context.Context, mccID string, emails []string) ([]ads.InvitationOutcome, error)
	InviteClientLink(ctx context.Context, mccID, clientCustomerID string) (string, error)
}

// MailSender delivers templated notification mail.
type MailSender interface {
	Send(to, subject, text, html string) error
}

// Deps are the collaborators injected at process start.
type Deps struct {
	Store   CredentialStore
	Links   LinkClient
	Inviter InvitationClient
	Mailer  MailSender
}

type Server struct {
	config  *config.Config
	store   CredentialStore
	links   LinkClient
	inviter InvitationClient
	mailer  MailSender

	httpServer *http.Server
	serveFn    func() error
	shutdownFn func(ctx context.Context) error
}

func New(cfg *config.Config, deps Deps) *Server {
	if cfg == nil {
		cfg = &config.Config{
			Host: "0.0.0.0",
			Port: 8080,
		}
	}
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}

	s := &Server{
		config:  cfg,
		store:   deps.Store,
		links:   deps.Links,
		inviter: deps.Inviter,
		mailer:  deps.Mailer,
	}

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: s.setupRoutes(),
	}
	s.serveFn = s.httpServer.ListenAndServe
	s.shutdownFn = s.httpServer.Shutdown

	return s
}

func (s *Server) Start() error {
	log.Info().
		Str("addr", s.httpServer.Addr).
		Msg("http server starting")

	if err := s.serveFn(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("start server: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if err := s.shutdownFn(ctx); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("stop server: %w", err)
	}
	return nil
}
