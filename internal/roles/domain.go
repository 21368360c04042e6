package roles

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Level is the coarse authority tier of a role.
type Level string

const (
	LevelSuperAdmin Level = "super_admin"
	LevelAdmin      Level = "admin"
	LevelManager    Level = "manager"
	LevelStaff      Level = "staff"
)

// Valid reports whether the level is one of the known tiers.
func (l Level) Valid() bool {
	switch l {
	case LevelSuperAdmin, LevelAdmin, LevelManager, LevelStaff:
		return true
	}
	return false
}

const (
	// DefaultHierarchy is assigned to roles created without an explicit rank.
	DefaultHierarchy = 100
	// HierarchyMin is the highest authority rank (lower = more authority).
	HierarchyMin = 1
	// HierarchyMax is the lowest authority rank and the floor for roleless staff.
	HierarchyMax = 1000
)

// Role represents a named permission grouping with an authority rank.
// A lower hierarchy value denotes greater authority.
type Role struct {
	ID          int64
	Name        string
	DisplayName string
	Description string
	Level       Level
	Hierarchy   int
	IsSystem    bool
	IsEditable  bool
	IsDefault   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

var titleCaser = cases.Title(language.English)

// DisplayNameFromName derives a human readable default from a role name,
// e.g. "shift_manager" becomes "Shift Manager".
func DisplayNameFromName(name string) string {
	return titleCaser.String(strings.ReplaceAll(name, "_", " "))
}
