package authz

import "github.com/crewhub/crewhub/internal/roles"

// HierarchyFloor is the effective hierarchy of staff holding no role.
// It guarantees roleless staff never out-rank anyone.
const HierarchyFloor = roles.HierarchyMax

// Breakdown separates the origins of an effective permission set. It feeds
// audit and debug views, never the allow/deny decision itself.
type Breakdown struct {
	// FromRoles maps a permission name to the role names granting it.
	FromRoles map[string][]string `json:"from_roles"`
	// Direct lists permission names granted independently of any role.
	Direct []string `json:"direct"`
	// All is the merged, deduplicated total.
	All []string `json:"all"`
}
