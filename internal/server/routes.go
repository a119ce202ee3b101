package server

import "net/http"

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("/health", chain(
		http.HandlerFunc(s.handleHealth),
		LoggingMiddleware,
	))

	// The callback is hit by the provider redirect, not the operator UI, so
	// it stays outside the allow-list gate.
	mux.Handle("/api/v1/accounts/callback", chain(
		http.HandlerFunc(s.handleCallback),
		LoggingMiddleware,
	))

	gate := AllowListMiddleware(s.config.AllowedEmails)

	mux.Handle("/api/v1/accounts", chain(
		http.HandlerFunc(s.handleAccounts),
		LoggingMiddleware,
		gate,
	))

	mux.Handle("/api/v1/accounts/link", chain(
		http.HandlerFunc(s.handleGenerateLink),
		LoggingMiddleware,
		gate,
	))

	mux.Handle("/api/v1/invitations", chain(
		http.HandlerFunc(s.handleInvite),
		LoggingMiddleware,
		gate,
	))

	mux.Handle("/api/v1/client-links", chain(
		http.HandlerFunc(s.handleClientLink),
		LoggingMiddleware,
		gate,
	))

	mux.Handle("/api/v1/mail", chain(
		http.HandlerFunc(s.handleSendMail),
		LoggingMiddleware,
		gate,
	))

	return mux
}

func chain(handler http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := handler
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}
