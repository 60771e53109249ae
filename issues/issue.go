package issues

import (
	"time"

	"github.com/jrsteele09/issue-tracker-client/users"
)

// Status is the workflow state of an issue; it is also the board column
type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusInProgress Status = "IN_PROGRESS"
	StatusClosed     Status = "CLOSED"
)

// FilterAll selects every status
const FilterAll = "ALL"

// Statuses lists the statuses in board order
var Statuses = []Status{StatusOpen, StatusInProgress, StatusClosed}

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusClosed:
		return true
	}
	return false
}

// Label is the column title
func (s Status) Label() string {
	switch s {
	case StatusOpen:
		return "Open"
	case StatusInProgress:
		return "In Progress"
	case StatusClosed:
		return "Closed"
	}
	return string(s)
}

type Issue struct {
	ID           int               `json:"id"`
	Title        string            `json:"title"`
	Description  string            `json:"description,omitempty"`
	Status       Status            `json:"status"`
	Owner        *users.SimpleUser `json:"owner,omitempty"`
	AssignedTo   *users.SimpleUser `json:"assigned_to,omitempty"`
	AssignedTeam *int              `json:"assigned_team,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Input is the body for creating an issue
type Input struct {
	Title        string `json:"title" validate:"required,max=200"`
	Description  string `json:"description,omitempty" validate:"max=1000"`
	Status       Status `json:"status" validate:"required,oneof=OPEN IN_PROGRESS CLOSED"`
	AssignedToID *int   `json:"assigned_to_id,omitempty"`
	AssignedTeam *int   `json:"assigned_team,omitempty" validate:"excluded_with=AssignedToID"`
}

// Patch is a partial update; nil fields are not sent
type Patch struct {
	Title        *string `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description  *string `json:"description,omitempty" validate:"omitempty,max=1000"`
	Status       *Status `json:"status,omitempty" validate:"omitempty,oneof=OPEN IN_PROGRESS CLOSED"`
	AssignedToID *int    `json:"assigned_to_id,omitempty"`
	AssignedTeam *int    `json:"assigned_team,omitempty" validate:"excluded_with=AssignedToID"`
}

// Assignment targets either a user or a team; both nil unassigns
type Assignment struct {
	AssignedToID   *int `json:"assigned_to_id,omitempty"`
	AssignedTeamID *int `json:"assigned_team_id,omitempty" validate:"excluded_with=AssignedToID"`
}

// CanModify mirrors the backend's owner-or-staff write permission
func CanModify(user *users.User, issue *Issue) bool {
	if user == nil || issue == nil {
		return false
	}
	return user.IsStaff || user.Is(issue.Owner)
}
