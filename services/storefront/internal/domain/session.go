package domain

// Session is the authentication state read on demand from the token store.
type Session struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"user_id,omitempty"`
}

// Anonymous is the unauthenticated session.
var Anonymous = Session{}
