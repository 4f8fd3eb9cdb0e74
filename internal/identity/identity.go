package identity

import (
	"payloom.io/internal/kyc"
)

// AuthUser is the console's projection of the authenticated user as returned
// by the platform's /me endpoint. It is replaced wholesale on every
// auth-mutating action and cleared on logout; the console never edits
// individual fields in place.
type AuthUser struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Email         string         `json:"email"`
	Permissions   []string       `json:"permissions"`
	Roles         []Role         `json:"roles"`
	Organizations []Organization `json:"organizations"`
	Admin         *AdminProfile  `json:"admin,omitempty"`
}

// Role groups permissions. System roles are immutable from the console.
type Role struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	GuardName   string   `json:"guard_name"`
	System      bool     `json:"is_system"`
	Permissions []string `json:"permissions"`
}

// OrganizationType distinguishes individual from corporate tenants.
type OrganizationType string

const (
	OrganizationIndividual OrganizationType = "individual"
	OrganizationCorporate  OrganizationType = "corporate"
)

// Organization is a tenant the user belongs to.
type Organization struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Type      OrganizationType `json:"type"`
	Country   string           `json:"country"`
	KYCStatus kyc.Status       `json:"kyc_status"`
	Vendors   []Vendor         `json:"vendors"`
}

// Vendor is an operating unit under an organization, identified by the slug
// used in vendor-scoped API paths.
type Vendor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// AdminProfile is present only for platform staff.
type AdminProfile struct {
	Roles         []string `json:"roles"`
	SuperAdmin    bool     `json:"super_admin"`
	PlatformAdmin bool     `json:"platform_admin"`
}

// PrimaryOrganization returns the user's first organization. The platform
// currently provisions a single organization per user; callers must treat
// a nil result as "not onboarded yet".
func (u *AuthUser) PrimaryOrganization() *Organization {
	if u == nil || len(u.Organizations) == 0 {
		return nil
	}
	return &u.Organizations[0]
}

// VendorSlug returns organizations[0].vendors[0].slug, or "" when either
// level is absent.
func (u *AuthUser) VendorSlug() string {
	org := u.PrimaryOrganization()
	if org == nil || len(org.Vendors) == 0 {
		return ""
	}
	return org.Vendors[0].Slug
}

// KYCStatus returns the primary organization's verification state, or
// kyc.StatusNotSubmitted when no organization exists yet.
func (u *AuthUser) KYCStatus() kyc.Status {
	org := u.PrimaryOrganization()
	if org == nil {
		return kyc.StatusNotSubmitted
	}
	return org.KYCStatus
}

// IsAdmin reports whether the user carries a platform staff profile.
func (u *AuthUser) IsAdmin() bool {
	return u != nil && u.Admin != nil
}
