package model

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleViewer   Role = "viewer"
	RoleReviewer Role = "reviewer"
	RoleAdmin    Role = "admin"
)

type Permission string

const (
	PermRunsRead    Permission = "runs:read"
	PermRunsApprove Permission = "runs:approve"
	PermRunsReject  Permission = "runs:reject"
	PermCodesIssue  Permission = "codes:issue"
)

var rolePermissions = map[Role][]Permission{
	RoleViewer:   {PermRunsRead},
	RoleReviewer: {PermRunsRead, PermRunsApprove, PermRunsReject},
	RoleAdmin:    {PermRunsRead, PermRunsApprove, PermRunsReject, PermCodesIssue},
}

func (r Role) Grants(p Permission) bool {
	for _, granted := range rolePermissions[r] {
		if granted == p {
			return true
		}
	}
	return false
}

type AuditEntry struct {
	ID        uuid.UUID
	ActorID   int64
	Action    string
	RunID     uuid.UUID
	Outcome   string
	Details   []string
	CreatedAt time.Time
}
