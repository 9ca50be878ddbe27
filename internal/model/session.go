package model

// Session is the authenticated caller, passed explicitly into every operation
// that touches owner-scoped data.
type Session struct {
	UserID string
}

func (s Session) Authenticated() bool {
	return s.UserID != ""
}
