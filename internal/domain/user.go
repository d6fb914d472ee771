package domain

import "time"

// Roles assigned to users. Admin is granted server-side only, never by a
// client-supplied field.
const (
	RoleLearner = "learner"
	RoleAdmin   = "admin"
)

// User represents a registered learner or administrator
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UserCredentials pairs a user with their stored password hash.
// Never serialized to clients.
type UserCredentials struct {
	User         User
	PasswordHash string
}

// RefreshSession is a server-side record of an issued refresh token.
// The token itself is stored only as a SHA-256 hash.
type RefreshSession struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
	UserAgent string
}

// RegisterRequest is the payload for account creation
type RegisterRequest struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	Password    string `json:"password"`
}

// LoginRequest authenticates by email or username
type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// TokenPair is returned on successful register/login/refresh
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}
