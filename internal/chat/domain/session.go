package domain

// Session the signed-in user every sync call acts for
type Session struct {
	// Email raw login email
	Email string
	// Name display name written into message records
	Name string
}

// NewSession build a Session
func NewSession(email, name string) Session {
	return Session{Email: email, Name: name}
}

// UserID canonical id of the session user
func (s Session) UserID() string {
	return Canonicalize(s.Email)
}

// Sender the session user as a message sender
func (s Session) Sender() Sender {
	return Sender{ID: s.UserID(), DisplayName: s.Name}
}
