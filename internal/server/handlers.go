package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/mcclink/mcclink/internal/ads"
	"github.com/mcclink/mcclink/internal/mailer"
	"github.com/mcclink/mcclink/internal/oauth"
	"github.com/mcclink/mcclink/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListAccounts(w, r)
	case http.MethodDelete:
		s.handleDeleteAccount(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	query := store.ListQuery{
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
		Page:   intQueryParam(r, "page", 1),
		Limit:  intQueryParam(r, "limit", 10),
	}

	result, err := s.store.List(r.Context(), query)
	if err != nil {
		log.Error().Err(err).Msg("list accounts failed")
		writeError(w, http.StatusInternalServerError, "could not list accounts")
		return
	}

	writeSuccess(w, http.StatusOK, "accounts listed", map[string]interface{}{
		"accounts": result.Accounts,
		"pagination": map[string]interface{}{
			"page":       result.Page,
			"limit":      result.Limit,
			"total":      result.Total,
			"totalPages": result.TotalPages,
		},
	})
}

type deleteAccountRequest struct {
	ID  string `json:"id"`
	MCC string `json:"mcc"`
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	var req deleteAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	key := strings.TrimSpace(req.ID)
	if key == "" {
		key = ads.CanonicalID(req.MCC)
	}
	if key == "" {
		writeError(w, http.StatusBadRequest, "id or mcc is required")
		return
	}

	account, err := s.store.Delete(r.Context(), key)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("delete account failed")
		writeError(w, http.StatusInternalServerError, "could not delete account")
		return
	}

	operator, _ := operatorFromContext(r.Context())
	log.Info().Str("mcc", account.MCC).Str("operator", operator).Msg("account unlinked")

	writeSuccess(w, http.StatusOK, "account deleted", map[string]string{
		"mcc":  account.MCC,
		"mail": account.Mail,
		"gid":  account.GID,
	})
}

type generateLinkRequest struct {
	MCCID string `json:"mccId"`
}

func (s *Server) handleGenerateLink(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req generateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	authURL, err := s.links.AuthCodeURL(req.MCCID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "mccId is required")
		return
	}

	writeSuccess(w, http.StatusOK, "authorization link generated", map[string]string{
		"url": authURL,
	})
}

const callbackSuccessHTML = `<!DOCTYPE html>
<html lang="en">
  <head>
    <meta charset="utf-8" />
    <title>Account linked</title>
  </head>
  <body style="text-align: center; font-family: system-ui, sans-serif; padding-top: 50px;">
    <h1 style="color: green;">Account linked!</h1>
    <p>%s is now linked to MCC %s.</p>
    <p>You can close this tab.</p>
  </body>
</html>`

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	query := r.URL.Query()
	code := query.Get("code")
	mcc := ads.CanonicalID(query.Get("state"))
	if code == "" || mcc == "" {
		writeError(w, http.StatusBadRequest, "missing code or mcc state")
		return
	}

	token, err := s.links.Exchange(r.Context(), code)
	if errors.Is(err, oauth.ErrMissingRefreshToken) {
		writeError(w, http.StatusBadRequest, "no refresh token granted; authorize again with forced consent")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("mcc", mcc).Msg("code exchange failed")
		writeError(w, http.StatusInternalServerError, "could not exchange authorization code")
		return
	}

	fields := store.LinkFields{
		RefreshToken: token.RefreshToken,
		AccessToken:  token.AccessToken,
		ExpiredTime:  token.ExpiredTime,
	}

	// Identity is best effort. A failed profile fetch leaves the fields
	// empty and the link still succeeds.
	displayEmail := "your Google Ads account"
	profile, err := s.links.FetchProfile(r.Context(), token.AccessToken)
	if err != nil {
		log.Warn().Err(err).Str("mcc", mcc).Msg("profile fetch failed, linking without identity")
	} else {
		fields.GID = profile.ID
		fields.Mail = profile.Email
		if profile.Email != "" {
			displayEmail = profile.Email
		}
	}

	if _, err := s.store.UpsertByMCC(r.Context(), mcc, fields); err != nil {
		log.Error().Err(err).Str("mcc", mcc).Msg("persist linked account failed")
		writeError(w, http.StatusInternalServerError, "could not store linked account")
		return
	}

	log.Info().Str("mcc", mcc).Str("mail", fields.Mail).Msg("mcc linked")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, callbackSuccessHTML, html.EscapeString(displayEmail), html.EscapeString(ads.FormatID(mcc)))
}

type inviteRequest struct {
	MCCID  string   `json:"mccId"`
	Emails []string `json:"emails"`
}

func (s *Server) handleInvite(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req inviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	outcomes, err := s.inviter.InviteAdmins(r.Context(), req.MCCID, req.Emails)
	if errors.Is(err, ads.ErrInvalidArgument) {
		writeError(w, http.StatusBadRequest, "mccId and a non-empty list of valid emails are required")
		return
	}
	if errors.Is(err, ads.ErrCustomerUnavailable) {
		writeError(w, http.StatusBadRequest, "could not build Google Ads customer; check the MCC link and its tokens")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("mcc", req.MCCID).Msg("invite failed")
		writeError(w, http.StatusInternalServerError, "invitation processing failed")
		return
	}

	operator, _ := operatorFromContext(r.Context())
	log.Info().
		Str("mcc", req.MCCID).
		Str("operator", operator).
		Int("invitees", len(outcomes)).
		Msg("bulk invitation processed")

	// Mixed and even all-failed outcomes still complete with 200; the
	// per-email status lives in the payload.
	writeSuccess(w, http.StatusOK, "invitations processed", map[string]interface{}{
		"results": outcomes,
	})
}

type clientLinkRequest struct {
	ClientCustomerID string `json:"clientCustomerId"`
}

func (s *Server) handleClientLink(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req clientLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if ads.CanonicalID(req.ClientCustomerID) == "" {
		writeError(w, http.StatusBadRequest, "clientCustomerId is required")
		return
	}

	houseMCC := strings.TrimSpace(s.config.HouseMCC)
	if houseMCC == "" {
		log.Error().Msg("client link requested but MCC_ACCOUNT_ID is not configured")
		writeError(w, http.StatusInternalServerError, "house mcc not configured")
		return
	}

	resourceName, err := s.inviter.InviteClientLink(r.Context(), houseMCC, req.ClientCustomerID)
	if errors.Is(err, ads.ErrInvalidArgument) {
		writeError(w, http.StatusBadRequest, "invalid clientCustomerId format")
		return
	}
	if errors.Is(err, ads.ErrCustomerUnavailable) {
		writeError(w, http.StatusBadRequest, "could not build Google Ads customer; check the house MCC link")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("client", req.ClientCustomerID).Msg("client link failed")
		writeError(w, http.StatusInternalServerError, "client link failed")
		return
	}

	writeSuccess(w, http.StatusOK, "client link invitation sent", map[string]string{
		"resourceName": resourceName,
	})
}

const mailTemplateLinkRequest = 1

type sendMailRequest struct {
	To       string `json:"to"`
	Template int    `json:"template"`
	Data     struct {
		MCCID string `json:"mccId"`
		Link  string `json:"link"`
	} `json:"data"`
}

func (s *Server) handleSendMail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req sendMailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.To) == "" {
		writeError(w, http.StatusBadRequest, "recipient is required")
		return
	}

	var message mailer.Message
	switch req.Template {
	case mailTemplateLinkRequest:
		if req.Data.MCCID == "" || req.Data.Link == "" {
			writeError(w, http.StatusBadRequest, "mccId and link are required for the link-request template")
			return
		}
		message = mailer.LinkRequestMessage(req.Data.MCCID, req.Data.Link)
	default:
		writeError(w, http.StatusBadRequest, "unknown template")
		return
	}

	if err := s.mailer.Send(req.To, message.Subject, message.Text, message.HTML); err != nil {
		log.Error().Err(err).Str("to", req.To).Msg("send mail failed")
		writeError(w, http.StatusInternalServerError, "could not send mail")
		return
	}

	writeSuccess(w, http.StatusOK, "mail sent", nil)
}

func intQueryParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}
