// Package api is a thin client for the CommCare HQ REST API: API-key
// auth, domain-scoped path building, and offset pagination over both
// Tastypie-style and DRF-style list responses.
package api

// Endpoint path constants. Domain-scoped paths are the components after
// /a/{domain}/; absolute paths (leading slash) are global.
const (
	// Application management
	AppList   = "api/application/v1/"
	AppDetail = "api/application/v1/%s/"

	// App package download
	AppCCZDownload = "apps/api/download_ccz/"

	// Case management
	CaseListV2 = "api/case/v2/"

	// User management
	UserList = "api/user/v1/"

	// Device restore
	Restore = "phone/restore/"

	// Identity (user-scoped, not domain-scoped)
	Identity    = "/api/identity/v1/"
	UserDomains = "/api/user_domains/v1/"
)
