package model

import (
	"encoding/base64"
	"time"
)

// Credential is the stored proof of a user's password. Salt and Hash are
// base64 encoded.
type Credential struct {
	Salt string `json:"-"`
	Hash string `json:"-"`
}

type SigningKey struct {
	ID        int64     `json:"id"`
	Value     string    `json:"-"`
	Revoked   bool      `json:"revoked"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Secret returns the raw HMAC secret held by the key.
func (k SigningKey) Secret() ([]byte, error) {
	return base64.StdEncoding.DecodeString(k.Value)
}

type SigningKeyList struct {
	Keys []SigningKey `json:"keys"`
}
