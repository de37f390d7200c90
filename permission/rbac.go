package permission

import "strings"

// Roles known to the server. Comparisons are case-insensitive, so tokens
// carrying "admin" or " Admin " match RoleAdmin.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// HasRole reports whether required appears in roles. Both sides are trimmed
// and compared case-insensitively. An empty roles slice or a blank required
// role never matches.
func HasRole(roles []string, required string) bool {
	required = strings.TrimSpace(required)
	if required == "" {
		return false
	}
	for _, r := range roles {
		if strings.EqualFold(strings.TrimSpace(r), required) {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether any of required appears in roles.
func HasAnyRole(roles []string, required ...string) bool {
	for _, r := range required {
		if HasRole(roles, r) {
			return true
		}
	}
	return false
}

// CanManageUser reports whether the actor may act on the target user's
// resources: admins may manage anyone, everybody else only themselves.
func CanManageUser(actorID, targetID string, actorRoles []string) bool {
	if HasRole(actorRoles, RoleAdmin) {
		return true
	}
	return actorID == targetID
}
