package server

import (
	"log"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/jonathan/job-tracker/internal/secrets"
	"github.com/jonathan/job-tracker/internal/types"
)

const defaultIMAPPort = 993

// ---------------------------------------------------------------------
// Mail Connection Handlers
// ---------------------------------------------------------------------

func (s *Server) handleGetConnection(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.pathUserID(w, r)
	if !ok {
		return
	}
	conn, err := s.store.GetMailConnection(r.Context(), userID)
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	if conn == nil {
		s.errorResponse(w, http.StatusNotFound, "Mail connection not found")
		return
	}
	s.jsonResponse(w, http.StatusOK, conn)
}

// handlePutConnection creates or replaces the user's mailbox settings. An
// IMAP password goes to the keychain and a Gmail refresh token is sealed
// onto the connection; either marks the connection authorized.
func (s *Server) handlePutConnection(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.pathUserID(w, r)
	if !ok {
		return
	}
	var req types.ConnectionRequest
	if !s.decodeRequest(w, r, &req, false) {
		return
	}

	existing, err := s.store.GetMailConnection(r.Context(), userID)
	if err != nil {
		s.errorFrom(w, err)
		return
	}

	conn := &types.MailConnection{
		UserID:            userID,
		Provider:          types.MailProviderKind(req.Provider),
		AccountEmail:      strings.TrimSpace(req.AccountEmail),
		SyncEnabled:       true,
		AutoUpdateEnabled: true,
	}
	if existing != nil {
		conn.SyncEnabled = existing.SyncEnabled
		conn.AutoUpdateEnabled = existing.AutoUpdateEnabled
	}
	if req.SyncEnabled != nil {
		conn.SyncEnabled = *req.SyncEnabled
	}
	if req.AutoUpdateEnabled != nil {
		conn.AutoUpdateEnabled = *req.AutoUpdateEnabled
	}

	switch conn.Provider {
	case types.ProviderIMAP:
		conn.IMAPHost = strings.TrimSpace(req.IMAPHost)
		conn.IMAPPort = req.IMAPPort
		if conn.IMAPPort == 0 {
			conn.IMAPPort = defaultIMAPPort
		}
		conn.IMAPUsername = strings.TrimSpace(req.IMAPUsername)
		if conn.AccountEmail == "" {
			conn.AccountEmail = conn.IMAPUsername
		}
		if req.Password != "" {
			if s.setIMAPPassword == nil {
				s.errorResponse(w, http.StatusBadRequest, "Password storage is not available on this server")
				return
			}
			account := secrets.IMAPKeyringAccount(userID, conn.IMAPUsername)
			if err := s.setIMAPPassword(account, req.Password); err != nil {
				log.Printf("[server] Failed to store IMAP password for %s: %v", userID, err)
				s.errorResponse(w, http.StatusInternalServerError, "Failed to store password")
				return
			}
			conn.IsAuthorized = true
		} else {
			conn.IsAuthorized = existing != nil && existing.IsAuthorized &&
				existing.Provider == types.ProviderIMAP &&
				strings.EqualFold(existing.IMAPUsername, conn.IMAPUsername) &&
				strings.EqualFold(existing.IMAPHost, conn.IMAPHost)
		}

	case types.ProviderGmail:
		if req.RefreshToken != "" {
			if s.tokens == nil {
				s.errorResponse(w, http.StatusBadRequest, "Gmail is not configured on this server")
				return
			}
			sealed, err := s.tokens.SealToken(userID, &oauth2.Token{RefreshToken: req.RefreshToken})
			if err != nil {
				log.Printf("[server] Failed to seal token for %s: %v", userID, err)
				s.errorResponse(w, http.StatusInternalServerError, "Failed to store token")
				return
			}
			conn.SealedToken = sealed
			conn.IsAuthorized = true
		} else {
			conn.IsAuthorized = existing != nil && existing.IsAuthorized && existing.Provider == types.ProviderGmail
		}
	}

	if err := s.store.UpsertMailConnection(r.Context(), conn); err != nil {
		s.errorFrom(w, err)
		return
	}
	saved, err := s.store.GetMailConnection(r.Context(), userID)
	if err != nil || saved == nil {
		saved = conn
	}
	s.jsonResponse(w, http.StatusOK, saved)
}

func (s *Server) handleDeleteConnection(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.pathUserID(w, r)
	if !ok {
		return
	}
	conn, err := s.store.GetMailConnection(r.Context(), userID)
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	if conn == nil {
		s.errorResponse(w, http.StatusNotFound, "Mail connection not found")
		return
	}

	if err := s.store.DeleteMailConnection(r.Context(), userID); err != nil {
		s.errorFrom(w, err)
		return
	}
	if conn.Provider == types.ProviderIMAP && s.deleteIMAPPassword != nil {
		if err := s.deleteIMAPPassword(secrets.IMAPKeyringAccount(userID, conn.IMAPUsername)); err != nil {
			log.Printf("[server] Failed to remove IMAP password for %s: %v", userID, err)
		}
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "deleted"})
}
