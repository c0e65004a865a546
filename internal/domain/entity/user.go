package entity

import "time"

// User is a durable account record. ID is a freshly allocated opaque
// identifier; Username is the credential checked at handshake.
type User struct {
	ID          string
	Username    string
	DisplayName string
	Email       string
	Roles       []string
	Metadata    map[string]string
	LastLogin   *time.Time
}

// NewUser constructs a User with sane defaults for freshly-seeded accounts.
func NewUser(id, username string, defaults User) (*User, error) {
	if username == "" {
		return nil, ErrInvalidUsername
	}
	roles := defaults.Roles
	if roles == nil {
		roles = []string{}
	}
	metadata := defaults.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	return &User{
		ID:          id,
		Username:    username,
		DisplayName: defaults.DisplayName,
		Email:       defaults.Email,
		Roles:       roles,
		Metadata:    metadata,
	}, nil
}
