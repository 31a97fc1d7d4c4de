package domain

import (
	"github.com/google/uuid"
)

// Actor is the caller of a workflow operation as asserted by the upstream
// gateway. Role is the platform role ("user", "inspector", "admin",
// "system"); the booking decides whether a plain user is owner or renter.
type Actor struct {
	UserID uuid.UUID
	Role   string
}

// Platform roles.
const (
	RoleUser      = "user"
	RoleInspector = "inspector"
	RoleAdmin     = "admin"
	RoleSystem    = "system"
)
