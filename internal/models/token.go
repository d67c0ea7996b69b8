package models

import "time"

// TokenKind discriminates the two scanned credential types.
type TokenKind string

const (
	TokenKindSession  TokenKind = "session"
	TokenKindIdentity TokenKind = "identity"
)

// SessionToken is the decoded payload of a scanned session QR code.
type SessionToken struct {
	SessionID string    `json:"session_id"`
	IssuedAt  time.Time `json:"issued_at"`
}

// IdentityToken is the decoded payload of a scanned student QR code.
type IdentityToken struct {
	StudentID   string `json:"student_id"`
	RollNumber  string `json:"roll_number"`
	DisplayName string `json:"display_name"`
}
