package users

// User is the identity snapshot returned by auth/users/me/. It is fetched from the
// backend, never derived from token claims.
type User struct {
	ID          int    `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email,omitempty"`
	IsStaff     bool   `json:"is_staff"`
	IsSuperuser bool   `json:"is_superuser,omitempty"`
}

// SimpleUser is the nested user shape used inside issues and teams
type SimpleUser struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// RegisterRequest is the body of auth/users/. RePassword is only sent when the
// backend is configured with USER_CREATE_PASSWORD_RETYPE.
type RegisterRequest struct {
	Username   string `json:"username" validate:"required,max=150"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=8"`
	RePassword string `json:"re_password,omitempty" validate:"omitempty,eqfield=Password"`
}

// Simple returns the nested representation of u
func (u User) Simple() SimpleUser {
	return SimpleUser{ID: u.ID, Username: u.Username, Email: u.Email}
}

// Is reports whether u refers to the same account as s
func (u *User) Is(s *SimpleUser) bool {
	return u != nil && s != nil && u.ID == s.ID
}
