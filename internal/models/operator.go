package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Operator is an oversight account (adapted from the teacher's parent
// account): it can list sessions across slugs but never mutates advice.
type Operator struct {
	ID           int64     `db:"id"`
	Username     string    `db:"username"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

// Claims defines the JWT claims issued on operator login.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}
