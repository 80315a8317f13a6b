package models

import "github.com/golang-jwt/jwt/v5"

// Principal is the verified identity extracted from a bearer token issued
// by the web tier.
type Principal struct {
	SubjectID  string
	Email      string
	Name       string
	GlobalRole GlobalRole
	OrgID      int64
}

// SessionClaims mirrors the NextAuth-compatible JWT payload.
type SessionClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	OrgID int64  `json:"orgId"`
	jwt.RegisteredClaims
}
