// Package access decides whether an authenticated user may perform a named
// action. Every function is a pure function of (user, arguments) and fails
// closed: a nil user is denied everything.
package access

import (
	"payloom.io/internal/identity"
)

const (
	// Wildcard grants every permission when present as a permission or a
	// role name.
	Wildcard = "*"

	// SuperAdminRole is the built-in role that bypasses all checks and can
	// never be modified or deleted from the console.
	SuperAdminRole = "super-admin"
)

// Permission names used by the console's route guards. The catalog itself
// is owned by the backend; these are the subset the console checks inline.
const (
	PermViewTransactions    = "view-transactions"
	PermExportTransactions  = "export-transactions"
	PermViewDisbursements   = "view-disbursements"
	PermManageDisbursements = "manage-disbursements"
	PermManagePaymentPages  = "manage-payment-pages"
	PermSubmitKYC           = "submit-kyc"
	PermReviewKYC           = "review-kyc"
	PermManageRoles         = "manage-roles"
	PermManageUsers         = "manage-users"
	PermManageNotifications = "manage-notifications"
)

// CheckOption adjusts how a permission check is evaluated.
type CheckOption func(*checkConfig)

type checkConfig struct {
	directOnly bool
}

// DirectOnly restricts HasPermission to the user's direct permission list,
// ignoring permissions derived from roles.
func DirectOnly() CheckOption {
	return func(c *checkConfig) { c.directOnly = true }
}

// IsSuperAdmin reports whether the user bypasses all permission checks:
// either the admin profile carries the super-admin flag or the user holds
// the built-in super-admin role.
func IsSuperAdmin(user *identity.AuthUser) bool {
	if user == nil {
		return false
	}
	if user.Admin != nil && user.Admin.SuperAdmin {
		return true
	}
	return holdsRole(user, SuperAdminRole)
}

// HasPermission reports whether the user is granted the named permission,
// either directly, through a role, or through the wildcard. Super-admins
// pass every check.
func HasPermission(user *identity.AuthUser, name string, opts ...CheckOption) bool {
	if user == nil || name == "" {
		return false
	}
	var cfg checkConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if IsSuperAdmin(user) {
		return true
	}
	if contains(user.Permissions, name) || contains(user.Permissions, Wildcard) {
		return true
	}
	if cfg.directOnly {
		return false
	}
	for _, role := range user.Roles {
		if role.Name == Wildcard {
			return true
		}
		if contains(role.Permissions, name) || contains(role.Permissions, Wildcard) {
			return true
		}
	}
	return false
}

// HasAnyPermission is a logical OR over HasPermission. An empty list is
// false: a guard with nothing to check grants nothing.
func HasAnyPermission(user *identity.AuthUser, names []string, opts ...CheckOption) bool {
	for _, name := range names {
		if HasPermission(user, name, opts...) {
			return true
		}
	}
	return false
}

// HasAllPermissions is a logical AND over HasPermission. An empty list is
// true: there is no requirement to fail.
func HasAllPermissions(user *identity.AuthUser, names []string, opts ...CheckOption) bool {
	for _, name := range names {
		if !HasPermission(user, name, opts...) {
			return false
		}
	}
	return user != nil
}

// HasRole reports whether the user holds the named role. Role names are
// matched case-sensitively. Super-admins do not implicitly hold other
// roles; role checks stay exact.
func HasRole(user *identity.AuthUser, name string) bool {
	if user == nil || name == "" {
		return false
	}
	return holdsRole(user, name)
}

// HasAnyRole is a logical OR over HasRole; empty list is false.
func HasAnyRole(user *identity.AuthUser, names []string) bool {
	for _, name := range names {
		if HasRole(user, name) {
			return true
		}
	}
	return false
}

// HasAllRoles is a logical AND over HasRole; empty list is true.
func HasAllRoles(user *identity.AuthUser, names []string) bool {
	for _, name := range names {
		if !HasRole(user, name) {
			return false
		}
	}
	return user != nil
}

// CanModifyRole reports whether the user may edit the given role. System
// roles and the built-in super-admin role are immutable from the console
// regardless of the caller's permissions.
func CanModifyRole(user *identity.AuthUser, role identity.Role) bool {
	if role.System || role.Name == SuperAdminRole {
		return false
	}
	return HasPermission(user, PermManageRoles)
}

// CanDeleteRole follows the same rules as CanModifyRole.
func CanDeleteRole(user *identity.AuthUser, role identity.Role) bool {
	return CanModifyRole(user, role)
}

func holdsRole(user *identity.AuthUser, name string) bool {
	for _, role := range user.Roles {
		if role.Name == name {
			return true
		}
	}
	if user.Admin != nil && contains(user.Admin.Roles, name) {
		return true
	}
	return false
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
