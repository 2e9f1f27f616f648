package domain

// SessionKind says which backing store serves a session.
type SessionKind string

// Session kinds.
const (
	SessionGuest   SessionKind = "guest"
	SessionAccount SessionKind = "account"
)

// Session identifies who is acting. Guests are served by the local store,
// accounts by the remote store.
type Session struct {
	Kind SessionKind
	ID   string
}

// GuestSession returns a session for a guest ID.
func GuestSession(id string) Session {
	return Session{Kind: SessionGuest, ID: id}
}

// AccountSession returns a session for an account ID.
func AccountSession(id string) Session {
	return Session{Kind: SessionAccount, ID: id}
}

// IsGuest reports whether the session is a guest session.
func (s Session) IsGuest() bool {
	return s.Kind == SessionGuest
}

// Key is a stable identifier unique across both kinds, e.g. "guest:<id>".
func (s Session) Key() string {
	return string(s.Kind) + ":" + s.ID
}
