package models

import "time"

// User roles.
const (
	RoleGeneral = "general"
	RoleAdmin   = "admin"
)

// User is an account that can log in and act on reports. WorksAccountID is
// the optional external messaging address used for direct notifications.
// ArtifactDir, when set, overrides the default destination for generated
// report documents when this user is the acting approver.
type User struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	PasswordHash   string    `json:"-"`
	Role           string    `json:"role"`
	WorksAccountID string    `json:"works_account_id"`
	ArtifactDir    string    `json:"artifact_dir"`
	CreatedAt      time.Time `json:"created_at"`
}

// IsAdmin reports whether the user carries the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Actor identifies the user performing a workflow operation. The engine
// authorizes against the role and username only.
type Actor struct {
	Username string
	Role     string
}

// IsAdmin reports whether the actor carries the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
