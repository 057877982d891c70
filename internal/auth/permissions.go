package auth

// Permission keys recognized across the asset-tracking application.
const (
	PermMarkerView     = "marker.view"
	PermMarkerEdit     = "marker.edit"
	PermMarkerDelete   = "marker.delete"
	PermCategoryManage = "category.manage"
	PermImageUpload    = "image.upload"
	PermUserManage     = "user.manage"
	PermRoleManage     = "role.manage"
	PermSettingsEdit   = "settings.edit"
	PermAuditView      = "audit.view"
	PermSystemMaintain = "system.maintain"
)

// BuiltinPermissions is ensured idempotently at startup so the catalog is
// always complete before any role resolution runs.
var BuiltinPermissions = []Permission{
	{Key: PermMarkerView, Category: "marker", Description: "View asset markers"},
	{Key: PermMarkerEdit, Category: "marker", Description: "Create and edit asset markers"},
	{Key: PermMarkerDelete, Category: "marker", Description: "Delete asset markers"},
	{Key: PermCategoryManage, Category: "category", Description: "Manage marker categories"},
	{Key: PermImageUpload, Category: "marker", Description: "Upload marker images"},
	{Key: PermUserManage, Category: "admin", Description: "Manage user accounts"},
	{Key: PermRoleManage, Category: "admin", Description: "Manage roles and their permissions"},
	{Key: PermSettingsEdit, Category: "admin", Description: "Edit application settings"},
	{Key: PermAuditView, Category: "admin", Description: "Search and export the security audit trail"},
	{Key: PermSystemMaintain, Category: "admin", Description: "Run maintenance sweeps"},
}

// PermissionSet answers membership queries over a role's granted keys.
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from resolved permissions.
func NewPermissionSet(perms []Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p.Key] = struct{}{}
	}
	return set
}

// Has reports whether key is granted.
func (s PermissionSet) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// HasAny reports whether at least one key is granted; the first match wins.
func (s PermissionSet) HasAny(keys ...string) bool {
	for _, k := range keys {
		if s.Has(k) {
			return true
		}
	}
	return false
}

// HasAll reports whether every key is granted; the first miss fails.
func (s PermissionSet) HasAll(keys ...string) bool {
	for _, k := range keys {
		if !s.Has(k) {
			return false
		}
	}
	return true
}
