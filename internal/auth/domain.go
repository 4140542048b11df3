package auth

import "time"

// Clock returns the current time. Stores and services accept one so tests can
// move time forward without sleeping.
type Clock func() time.Time

// User represents a registered account. PasswordHash never leaves the server;
// use Public for anything returned to clients.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// PublicUser is the redacted view of a User.
type PublicUser struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

// Public strips the password hash.
func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Username: u.Username, CreatedAt: u.CreatedAt}
}

// Session is a login session keyed by an opaque token.
type Session struct {
	ID        string
	UserID    int64
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the session is no longer valid at now. Every read
// path and every sweep goes through this predicate.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionData pairs a valid session with its owner.
type SessionData struct {
	User    *User
	Session Session
}

// Result is returned by Register and Login.
type Result struct {
	User      PublicUser
	SessionID string
}

func clockOrDefault(c Clock) Clock {
	if c == nil {
		return time.Now
	}
	return c
}
