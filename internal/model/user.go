package model

import "time"

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	DisplayName  *string   `json:"displayName"`
	Approved     bool      `json:"approved"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Identity is the authenticated caller of an API request.
type Identity struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}
