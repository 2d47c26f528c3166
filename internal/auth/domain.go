package auth

import "time"

// User is the account record returned to clients after authentication.
type User struct {
	ID                 int64          `json:"id"`
	Email              string         `json:"email"`
	Name               string         `json:"name"`
	MustChangePassword bool           `json:"mustChangePassword"`
	IsFirstLogin       bool           `json:"isFirstLogin"`
	Profile            map[string]any `json:"profile,omitempty"`
}

// RequiresPasswordChange reports whether the account is flagged for a forced
// password change, either explicitly or because it has never been used.
func (u *User) RequiresPasswordChange() bool {
	return u != nil && (u.MustChangePassword || u.IsFirstLogin)
}

// Account is the persisted row behind a User.
type Account struct {
	ID                 int64
	Email              string
	Name               string
	PasswordHash       string
	IsActive           bool
	MustChangePassword bool
	IsFirstLogin       bool
	Profile            map[string]any
	LastLoginAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// User projects the account into its client-facing shape.
func (a *Account) User() User {
	return User{
		ID:                 a.ID,
		Email:              a.Email,
		Name:               a.Name,
		MustChangePassword: a.MustChangePassword,
		IsFirstLogin:       a.IsFirstLogin,
		Profile:            a.Profile,
	}
}

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResult is the successful login response body.
type LoginResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`

	// firstSignIn is set when the account had never signed in before this login.
	firstSignIn bool
}

// PasswordChange is the change-password request body.
type PasswordChange struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,nefield=CurrentPassword"`
}
