package apiclient

import (
	"fmt"
	"strings"
)

// Backend endpoint paths, relative to the API base URL
// All backend routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes - Djoser JWT
	RouteJWTCreate  = "auth/jwt/create/"
	RouteJWTRefresh = "auth/jwt/refresh/"
	RouteJWTVerify  = "auth/jwt/verify/"

	// Auth Routes - Djoser users
	RouteUsers   = "auth/users/"
	RouteUsersMe = "auth/users/me/"

	// Issue Routes
	RouteIssues    = "issues/"
	RouteMyIssues  = "issues/my_issues/"
	RouteAllUsers  = "issues/all_users/"
	routeIssueFmt  = "issues/%d/"
	routeAssignFmt = "issues/%d/assign/"

	// Team Routes
	RouteTeams = "teams/"
)

// credentialRoutes never carry a bearer token and never enter the refresh protocol
var credentialRoutes = []string{RouteJWTCreate, RouteJWTRefresh, RouteJWTVerify}

func isCredentialRoute(path string) bool {
	path = strings.TrimPrefix(path, "/")
	for _, r := range credentialRoutes {
		if strings.HasPrefix(path, r) {
			return true
		}
	}
	return false
}

// IssuePath returns issues/{id}/
func IssuePath(id int) string {
	return fmt.Sprintf(routeIssueFmt, id)
}

// IssueAssignPath returns issues/{id}/assign/
func IssueAssignPath(id int) string {
	return fmt.Sprintf(routeAssignFmt, id)
}
