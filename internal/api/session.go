package api

import (
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/nibbleapp/nibble-server/internal/domain"
	"github.com/nibbleapp/nibble-server/internal/id"
)

// GuestSessionHeader carries the guest session ID.
const GuestSessionHeader = "X-Guest-Session"

// SessionHeaders are the request headers that identify the caller. Embed
// in operation inputs.
type SessionHeaders struct {
	Authorization string `header:"Authorization" doc:"Bearer account token"`
	GuestSession  string `header:"X-Guest-Session" doc:"Guest session ID (UUID)"`
}

// accountID returns the account of a valid bearer token, or "".
// An invalid token is treated as absent.
func (s *Server) accountID(authHeader string) string {
	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok || token == "" || s.tokens == nil {
		return ""
	}
	claims, err := s.tokens.VerifyAccessToken(strings.TrimSpace(token))
	if err != nil {
		s.logger.Debug("ignoring invalid bearer token", "error", err)
		return ""
	}
	return claims.AccountID
}

// guestID returns a well-formed guest ID from the header, or "".
func guestID(header string) string {
	header = strings.TrimSpace(header)
	if !id.ValidGuestID(header) {
		return ""
	}
	return header
}

// resolveSession picks the acting session: a valid bearer token wins, then
// the guest header.
func (s *Server) resolveSession(h SessionHeaders) (domain.Session, error) {
	if account := s.accountID(h.Authorization); account != "" {
		return domain.AccountSession(account), nil
	}
	if guest := guestID(h.GuestSession); guest != "" {
		return domain.GuestSession(guest), nil
	}
	return domain.Session{}, huma.Error401Unauthorized("A bearer token or " + GuestSessionHeader + " header is required")
}

// requireGuest returns the guest session from the header.
func (s *Server) requireGuest(h SessionHeaders) (domain.Session, error) {
	if guest := guestID(h.GuestSession); guest != "" {
		return domain.GuestSession(guest), nil
	}
	return domain.Session{}, huma.Error401Unauthorized(GuestSessionHeader + " header with a guest ID is required")
}

// requireAccount returns the account session from a valid bearer token.
func (s *Server) requireAccount(h SessionHeaders) (domain.Session, error) {
	if account := s.accountID(h.Authorization); account != "" {
		return domain.AccountSession(account), nil
	}
	return domain.Session{}, huma.Error401Unauthorized("Missing or invalid bearer token")
}

// sessionKeyFromRequest resolves the session of a plain net/http request,
// used by the event stream.
func (s *Server) sessionKeyFromRequest(r *http.Request) (string, error) {
	session, err := s.resolveSession(SessionHeaders{
		Authorization: r.Header.Get("Authorization"),
		GuestSession:  r.Header.Get(GuestSessionHeader),
	})
	if err != nil {
		return "", err
	}
	return session.Key(), nil
}
