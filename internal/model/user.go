package model

import (
	"strings"
	"time"
)

type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserIdentity is the part of a user that gets copied into a token.
type UserIdentity struct {
	ID       int64
	Username string
	Email    string
}

func (u User) Identity() UserIdentity {
	return UserIdentity{ID: u.ID, Username: u.Username, Email: u.Email}
}

type Role struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// RoleRef is a snapshot of a role taken when a token is issued. It is not
// re-resolved on later requests.
type RoleRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Claims struct {
	SubjectID int64     `json:"sub"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Roles     []RoleRef `json:"roles"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (c *Claims) HasRole(name string) bool {
	if c == nil {
		return false
	}

	for _, role := range c.Roles {
		if strings.EqualFold(role.Name, strings.TrimSpace(name)) {
			return true
		}
	}

	return false
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}
